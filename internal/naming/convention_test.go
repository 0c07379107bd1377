package naming

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	return path
}

func TestPairDeconvolutionScenario(t *testing.T) {
	dir := t.TempDir()
	seed := touch(t, dir, "dw_Sample1.ome.tif_ch561_001.tiff")
	sibling := touch(t, dir, "Sample1.ome.tif_ch405_001.tiff")

	p, err := DefaultConvention().Pair(seed)
	require.NoError(t, err)

	require.Len(t, p.Siblings, 1)
	assert.Equal(t, sibling, p.Siblings[0].Path)
	assert.Equal(t, "ch405", p.Siblings[0].Label)
	assert.Equal(t, "raw-counterstain", p.Siblings[0].Set)
	assert.Equal(t, "ch561_decon", p.SeedLabel)
	assert.Equal(t, "merged_Sample1.ome.tif_ch561_001.tiff", p.Output)
	assert.Empty(t, p.Missing)

	assert.Equal(t, []string{sibling, seed}, p.Inputs())
	assert.Equal(t, []string{"ch405", "ch561_decon"}, p.ChannelLabels())
}

func TestPairMissingSibling(t *testing.T) {
	dir := t.TempDir()
	seed := touch(t, dir, "dw_Sample7_ch561.tif")

	p, err := DefaultConvention().Pair(seed)
	require.NoError(t, err)

	assert.Empty(t, p.Siblings)
	require.Len(t, p.Missing, 1)
	assert.Equal(t, "raw-counterstain", p.Missing[0].Set)
	assert.Equal(t, filepath.Join(dir, "Sample7_ch405.tif"), p.Missing[0].Expected)
	assert.ErrorIs(t, p.Missing[0].Err, ErrNoMatchFound)
}

func TestPairRuleDoesNotApply(t *testing.T) {
	dir := t.TempDir()
	// No dw_Sample prefix, so the first rule cannot apply at all.
	seed := touch(t, dir, "other_export_ch561.tif")

	p, err := DefaultConvention().Pair(seed)
	require.NoError(t, err)

	assert.Empty(t, p.Siblings)
	require.Len(t, p.Missing, 1)
	assert.Empty(t, p.Missing[0].Expected)
	assert.ErrorIs(t, p.Missing[0].Err, ErrNoMatchFound)
}

func TestMergedNameFallback(t *testing.T) {
	c := DefaultConvention()
	// Seed without the dw_ prefix still gets a distinct output name.
	if got := c.MergedName("Sample1_ch561.tif"); got != "merged_Sample1_ch561.tif" {
		t.Errorf("got %q", got)
	}
	if got := c.MergedName("dw_Sample1_ch561.tif"); got != "merged_Sample1_ch561.tif" {
		t.Errorf("got %q", got)
	}
}

func TestLabelFor(t *testing.T) {
	cases := []struct {
		base     string
		position int
		want     string
	}{
		{"Sample1.ome.tif_ch405_001.tiff", 0, "ch405"},
		{"dw_Sample1_CH561.tif", 1, "CH561"},
		{"stack_ch-02_export.tif", 0, "ch-02"},
		{"ch2_series_ch561.tif", 0, "ch561"}, // last token wins
		{"plain_stack.tif", 2, "c02"},
	}
	for _, tc := range cases {
		if got := labelFor(tc.base, tc.position); got != tc.want {
			t.Errorf("labelFor(%q) = %q, want %q", tc.base, got, tc.want)
		}
	}
}

func TestDedupeLabels(t *testing.T) {
	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"all distinct", []string{"DAPI", "GFP"}, []string{"DAPI", "GFP"}},
		{"repeat blanked", []string{"DAPI", "DAPI", "GFP"}, []string{"DAPI", "", "GFP"}},
		{"empties pass through", []string{"", "a", ""}, []string{"", "a", ""}},
		{"empty slice", []string{}, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DedupeLabels(tc.in))
		})
	}
}

func TestLoadConvention(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `siblings:
  - name: raw-counterstain
    rules:
      - {find: "dw_Sample", replace: "Sample"}
      - {find: "561", replace: "405"}
merged:
  - {find: "dw_", replace: "merged_"}
channel_labels:
  seed_suffix: "_decon"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := LoadConvention(path)
	require.NoError(t, err)
	require.Len(t, c.Siblings, 1)
	assert.Equal(t, "raw-counterstain", c.Siblings[0].Name)
	assert.Equal(t, Rule{Find: "561", Replace: "405"}, c.Siblings[0].Rules[1])
	assert.Equal(t, "_decon", c.Labels.SeedSuffix)
}

func TestLoadConventionRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `siblings:
  - name: x
    rules:
      - {find: "a", replace: "b"}
siblngs_typo: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := LoadConvention(path)
	assert.Error(t, err)
}

func TestLoadConventionRejectsInvalidRules(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	body := `siblings:
  - name: broken
    rules:
      - {find: "", replace: "b"}
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	_, err := LoadConvention(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, os.ErrNotExist))
}
