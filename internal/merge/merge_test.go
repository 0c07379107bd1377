package merge

import (
	"errors"
	"testing"

	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/pixel"
)

func plane(label string, d pixel.DType, x, y, z int) *pixel.Plane {
	return &pixel.Plane{
		Label: label,
		DType: d,
		SizeX: x, SizeY: y, SizeZ: z,
		Data: make([]byte, x*y*z*d.BytesPerSample()),
	}
}

func TestMergePreservesOrder(t *testing.T) {
	planes := []*pixel.Plane{
		plane("", pixel.DTypeUint16, 4, 4, 2),
		plane("", pixel.DTypeUint16, 4, 4, 2),
	}
	planes[0].Data[0] = 0xAA
	planes[1].Data[0] = 0xBB

	img, err := Merge(planes, Options{Name: "merged_sample", Labels: []string{"ch405", "ch561_decon"}})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.ChannelLabels(); got[0] != "ch405" || got[1] != "ch561_decon" {
		t.Errorf("labels = %v, want caller order kept", got)
	}
	if img.Planes[0].Data[0] != 0xAA || img.Planes[1].Data[0] != 0xBB {
		t.Error("plane order does not follow input order")
	}
	if img.DType != pixel.DTypeUint16 || img.SizeZ != 2 {
		t.Errorf("image = %s %dx%dx%d, want uint16 4x4x2", img.DType, img.SizeX, img.SizeY, img.SizeZ)
	}
}

func TestMergeLabelFallbacks(t *testing.T) {
	planes := []*pixel.Plane{
		plane("DAPI", pixel.DTypeUint8, 2, 2, 1),
		plane("", pixel.DTypeUint8, 2, 2, 1),
	}
	img, err := Merge(planes, Options{Name: "m"})
	if err != nil {
		t.Fatal(err)
	}
	got := img.ChannelLabels()
	if got[0] != "DAPI" || got[1] != "c01" {
		t.Errorf("labels = %v, want [DAPI c01]", got)
	}

	// Caller plane labels survive; only the merged copies are renamed.
	img2, err := Merge(planes, Options{Name: "m", Labels: []string{"a", "b"}})
	if err != nil {
		t.Fatal(err)
	}
	if planes[0].Label != "DAPI" {
		t.Errorf("input plane label mutated to %q", planes[0].Label)
	}
	if got := img2.ChannelLabels(); got[0] != "a" || got[1] != "b" {
		t.Errorf("labels = %v, want [a b]", got)
	}
}

func TestMergeDimensionMismatch(t *testing.T) {
	planes := []*pixel.Plane{
		plane("a", pixel.DTypeUint16, 4, 4, 2),
		plane("b", pixel.DTypeUint16, 4, 4, 3),
	}
	_, err := Merge(planes, Options{Name: "m"})
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("err = %v, want ErrDimensionMismatch", err)
	}
}

func TestMergeDuplicateLabels(t *testing.T) {
	planes := []*pixel.Plane{
		plane("GFP", pixel.DTypeUint8, 2, 2, 1),
		plane("GFP", pixel.DTypeUint8, 2, 2, 1),
	}
	_, err := Merge(planes, Options{Name: "m"})
	if !errors.Is(err, ErrDuplicateChannelLabel) {
		t.Errorf("err = %v, want ErrDuplicateChannelLabel", err)
	}
}

func TestMergeLabelCountMismatch(t *testing.T) {
	planes := []*pixel.Plane{
		plane("a", pixel.DTypeUint8, 2, 2, 1),
		plane("b", pixel.DTypeUint8, 2, 2, 1),
	}
	_, err := Merge(planes, Options{Name: "m", Labels: []string{"only-one"}})
	if !errors.Is(err, container.ErrChannelCountMismatch) {
		t.Errorf("err = %v, want ErrChannelCountMismatch", err)
	}
}

func TestMergeMixedDTypes(t *testing.T) {
	planes := []*pixel.Plane{
		plane("a", pixel.DTypeUint8, 2, 2, 1),
		plane("b", pixel.DTypeFloat32, 2, 2, 1),
	}

	_, err := Merge(planes, Options{Name: "m"})
	if !errors.Is(err, pixel.ErrUnsupportedDType) {
		t.Errorf("native merge of mixed dtypes: err = %v, want ErrUnsupportedDType", err)
	}

	img, err := Merge(planes, Options{Name: "m", DType: pixel.DTypeUint16})
	if err != nil {
		t.Fatal(err)
	}
	if img.DType != pixel.DTypeUint16 {
		t.Errorf("dtype = %s, want uint16", img.DType)
	}
	for i, p := range img.Planes {
		if p.DType != pixel.DTypeUint16 {
			t.Errorf("channel %d dtype = %s, want uint16", i, p.DType)
		}
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if _, err := Merge(nil, Options{Name: "m"}); err == nil {
		t.Error("expected error for empty plane list")
	}
}
