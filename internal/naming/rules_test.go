package naming

import (
	"errors"
	"testing"
)

func TestRuleSetApply(t *testing.T) {
	cases := []struct {
		name    string
		rules   []Rule
		in      string
		want    string
		wantErr bool
	}{
		{
			name:  "deconvolution pair",
			rules: []Rule{{Find: "dw_Sample", Replace: "Sample"}, {Find: "561", Replace: "405"}},
			in:    "dw_Sample1.ome.tif_ch561_001.tiff",
			want:  "Sample1.ome.tif_ch405_001.tiff",
		},
		{
			name:  "ordered application",
			rules: []Rule{{Find: "a", Replace: "b"}, {Find: "bb", Replace: "c"}},
			in:    "ab",
			want:  "c",
		},
		{
			name:  "replaces all occurrences",
			rules: []Rule{{Find: "561", Replace: "405"}},
			in:    "x561_y561",
			want:  "x405_y405",
		},
		{
			name:    "find absent",
			rules:   []Rule{{Find: "dw_Sample", Replace: "Sample"}},
			in:      "Sample1_ch405.tif",
			wantErr: true,
		},
		{
			name:    "second rule absent",
			rules:   []Rule{{Find: "dw_", Replace: ""}, {Find: "999", Replace: "111"}},
			in:      "dw_Sample1_ch561.tif",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs := RuleSet{Name: "test", Rules: tc.rules}
			got, err := rs.Apply(tc.in)
			if tc.wantErr {
				if !errors.Is(err, ErrNoMatchFound) {
					t.Fatalf("err = %v, want ErrNoMatchFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

// Applying a set and then its reverse must reproduce the original name.
func TestRuleSetRoundTrip(t *testing.T) {
	sets := []RuleSet{
		{Name: "decon", Rules: []Rule{
			{Find: "dw_Sample", Replace: "Sample"},
			{Find: "561", Replace: "405"},
		}},
		{Name: "single", Rules: []Rule{
			{Find: "ch488", Replace: "ch640"},
		}},
		{Name: "chain", Rules: []Rule{
			{Find: "posA", Replace: "posB"},
			{Find: "B_r", Replace: "B_q"},
		}},
	}
	names := map[string]string{
		"decon":  "dw_Sample1.ome.tif_ch561_001.tiff",
		"single": "Exp2_ch488_stack.tif",
		"chain":  "run_posA_raw.tif",
	}

	for _, rs := range sets {
		t.Run(rs.Name, func(t *testing.T) {
			in := names[rs.Name]
			derived, err := rs.Apply(in)
			if err != nil {
				t.Fatalf("forward: %v", err)
			}
			back, err := rs.Reversed().Apply(derived)
			if err != nil {
				t.Fatalf("reverse: %v", err)
			}
			if back != in {
				t.Errorf("round trip %q -> %q -> %q", in, derived, back)
			}
		})
	}
}

func TestRuleSetValidate(t *testing.T) {
	if err := (RuleSet{Name: "empty"}).Validate(); err == nil {
		t.Error("empty rule set accepted")
	}
	if err := (RuleSet{Name: "nofind", Rules: []Rule{{Find: "", Replace: "x"}}}).Validate(); err == nil {
		t.Error("empty find accepted")
	}
	if err := (RuleSet{Name: "loop", Rules: []Rule{{Find: "a", Replace: "a"}}}).Validate(); err == nil {
		t.Error("find == replace accepted")
	}
	ok := RuleSet{Name: "ok", Rules: []Rule{{Find: "a", Replace: "b"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("valid set rejected: %v", err)
	}
}
