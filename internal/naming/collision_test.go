package naming

import "testing"

func TestCollisionResolver(t *testing.T) {
	cr := NewCollisionResolver()

	first := cr.Resolve("/in/dw_a_ch561.tif", "/out/merged_a.ome.tif")
	if first != "/out/merged_a.ome.tif" {
		t.Fatalf("first claim: %q", first)
	}

	// Same seed asking again gets the same path.
	again := cr.Resolve("/in/dw_a_ch561.tif", "/out/merged_a.ome.tif")
	if again != first {
		t.Errorf("re-resolve: %q", again)
	}

	// A different seed colliding on the same output gets a dup variant,
	// with the marker before the compound extension.
	second := cr.Resolve("/in/dw_a_ch561 (copy).tif", "/out/merged_a.ome.tif")
	if second != "/out/merged_a_dup1.ome.tif" {
		t.Errorf("second claim: %q", second)
	}

	third := cr.Resolve("/in/dw_a_ch561 (copy 2).tif", "/out/merged_a.ome.tif")
	if third != "/out/merged_a_dup2.ome.tif" {
		t.Errorf("third claim: %q", third)
	}
}

func TestSplitExt(t *testing.T) {
	cases := []struct {
		in   string
		stem string
		ext  string
	}{
		{"merged_a.ome.tif", "merged_a", ".ome.tif"},
		{"merged_a.ome.tiff", "merged_a", ".ome.tiff"},
		{"notes.txt", "notes", ".txt"},
		{"bare", "bare", ""},
	}
	for _, tc := range cases {
		stem, ext := splitExt(tc.in)
		if stem != tc.stem || ext != tc.ext {
			t.Errorf("splitExt(%q) = (%q, %q), want (%q, %q)", tc.in, stem, ext, tc.stem, tc.ext)
		}
	}
}
