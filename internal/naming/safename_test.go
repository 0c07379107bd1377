package naming

import "testing"

func TestSafeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Pos21 (copy)", "Pos21_copy"},
		{"TileScan 1/Region 2", "TileScan_1_Region_2"},
		{"ch:561 nm", "ch_561_nm"},
		{"already_safe-1.0", "already_safe-1.0"},
		{"___", "unnamed"},
		{"", "unnamed"},
		{"  spaces  ", "spaces"},
	}
	for _, tc := range cases {
		if got := SafeName(tc.in); got != tc.want {
			t.Errorf("SafeName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStem(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sample.lif", "sample"},
		{"stack.ome.tif", "stack"},
		{"stack.OME.TIFF", "stack"},
		{"meta.ome.xml", "meta"},
		{"noext", "noext"},
	}
	for _, tc := range cases {
		if got := Stem(tc.in); got != tc.want {
			t.Errorf("Stem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSceneDir(t *testing.T) {
	if got := SceneDir("TileScan 1/Pos A", 0); got != "scene_TileScan_1_Pos_A" {
		t.Errorf("got %q", got)
	}
	if got := SceneDir("", 3); got != "scene_03" {
		t.Errorf("got %q", got)
	}
}

func TestSplitFileName(t *testing.T) {
	got := SplitFileName("exp1", "Pos 21", 0, "DAPI 405", 0)
	if got != "exp1_scene-Pos_21_ch-DAPI_405.ome.tif" {
		t.Errorf("labeled: got %q", got)
	}

	got = SplitFileName("exp1", "", 2, "", 1)
	if got != "exp1_scene-02_c01.ome.tif" {
		t.Errorf("unlabeled: got %q", got)
	}
}

func TestConvertFileName(t *testing.T) {
	if got := ConvertFileName("exp1", "Region 1", 0); got != "exp1_scene-Region_1.ome.tif" {
		t.Errorf("got %q", got)
	}
}

func TestExportDir(t *testing.T) {
	if got := ExportDir("/data/run4/sample.lif"); got != "/data/run4/sample_export" {
		t.Errorf("got %q", got)
	}
	if got := ExportDir("/data/stack.ome.tif"); got != "/data/stack_export" {
		t.Errorf("got %q", got)
	}
}
