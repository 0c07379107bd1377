package pixel

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func u16Plane(vals ...uint16) *Plane {
	p := &Plane{DType: DTypeUint16, SizeX: len(vals), SizeY: 1, SizeZ: 1, Data: make([]byte, len(vals)*2)}
	for i, v := range vals {
		binary.LittleEndian.PutUint16(p.Data[i*2:], v)
	}
	return p
}

func u8Plane(vals ...uint8) *Plane {
	return &Plane{DType: DTypeUint8, SizeX: len(vals), SizeY: 1, SizeZ: 1, Data: append([]byte(nil), vals...)}
}

func f32Plane(vals ...float32) *Plane {
	p := &Plane{DType: DTypeFloat32, SizeX: len(vals), SizeY: 1, SizeZ: 1, Data: make([]byte, len(vals)*4)}
	for i, v := range vals {
		binary.LittleEndian.PutUint32(p.Data[i*4:], math.Float32bits(v))
	}
	return p
}

func samplesOf(t *testing.T, p *Plane) []float64 {
	t.Helper()
	out := make([]float64, p.SampleCount())
	for i := range out {
		out[i] = p.Sample(i)
	}
	return out
}

func TestConvertIdentity(t *testing.T) {
	p := u16Plane(0, 1000, 65535)
	got, err := Convert(p, DTypeUint16)
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Error("identity conversion should return the same plane")
	}
}

func TestConvertWidenNarrow(t *testing.T) {
	cases := []struct {
		name   string
		in     *Plane
		target DType
		want   []float64
	}{
		{"uint8 to uint16 full range", u8Plane(0, 1, 128, 255), DTypeUint16, []float64{0, 257, 32896, 65535}},
		{"uint16 to uint8 full range", u16Plane(0, 257, 32896, 65535), DTypeUint8, []float64{0, 1, 128, 255}},
		{"uint16 to uint8 rounding", u16Plane(128, 129, 385, 386), DTypeUint8, []float64{0, 1, 1, 2}},
		{"uint16 to float32 exact", u16Plane(0, 12345, 65535), DTypeFloat32, []float64{0, 12345, 65535}},
		{"uint8 to float32 exact", u8Plane(0, 200, 255), DTypeFloat32, []float64{0, 200, 255}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Convert(tc.in, tc.target)
			if err != nil {
				t.Fatal(err)
			}
			if got.DType != tc.target {
				t.Fatalf("dtype = %s, want %s", got.DType, tc.target)
			}
			vals := samplesOf(t, got)
			for i, want := range tc.want {
				if vals[i] != want {
					t.Errorf("sample %d: got %v, want %v", i, vals[i], want)
				}
			}
		})
	}
}

// Narrowing from float clips at the target range instead of wrapping.
func TestConvertFloatClips(t *testing.T) {
	in := f32Plane(-50, 0, 0.4, 0.5, 254.6, 255, 300, float32(math.NaN()))
	got, err := Convert(in, DTypeUint8)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{0, 0, 0, 1, 255, 255, 255, 0}
	vals := samplesOf(t, got)
	for i := range want {
		if vals[i] != want[i] {
			t.Errorf("sample %d: got %v, want %v", i, vals[i], want[i])
		}
	}

	wide, err := Convert(f32Plane(70000, 65535.4), DTypeUint16)
	if err != nil {
		t.Fatal(err)
	}
	vals = samplesOf(t, wide)
	if vals[0] != 65535 || vals[1] != 65535 {
		t.Errorf("got %v, want clip to 65535", vals)
	}
}

func TestConvertRoundTrips(t *testing.T) {
	// uint8 -> uint16 -> uint8 is lossless.
	orig := u8Plane(0, 1, 2, 3, 50, 100, 200, 254, 255)
	up, err := Convert(orig, DTypeUint16)
	if err != nil {
		t.Fatal(err)
	}
	down, err := Convert(up, DTypeUint8)
	if err != nil {
		t.Fatal(err)
	}
	a, b := samplesOf(t, orig), samplesOf(t, down)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("sample %d: %v -> %v", i, a[i], b[i])
		}
	}

	// uint16 -> float32 -> uint16 is lossless on integer data.
	o16 := u16Plane(0, 7, 65535, 30000)
	f, err := Convert(o16, DTypeFloat32)
	if err != nil {
		t.Fatal(err)
	}
	back, err := Convert(f, DTypeUint16)
	if err != nil {
		t.Fatal(err)
	}
	a, b = samplesOf(t, o16), samplesOf(t, back)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("sample %d: %v -> %v", i, a[i], b[i])
		}
	}
}

func TestConvertRejectsBadTarget(t *testing.T) {
	if _, err := Convert(u8Plane(1), DType("int8")); !errors.Is(err, ErrUnsupportedDType) {
		t.Errorf("err = %v, want ErrUnsupportedDType", err)
	}
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in      string
		want    DType
		wantErr bool
	}{
		{"", DTypeNative, false},
		{"native", DTypeNative, false},
		{"uint8", DTypeUint8, false},
		{"uint16", DTypeUint16, false},
		{"float32", DTypeFloat32, false},
		{"int32", "", true},
	}
	for _, tc := range cases {
		got, err := ParseTarget(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrUnsupportedDType) {
				t.Errorf("ParseTarget(%q) err = %v, want ErrUnsupportedDType", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseTarget(%q) = %s, %v, want %s", tc.in, got, err, tc.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	p := u16Plane(257, 514)

	same, err := Normalize(p, DTypeNative)
	if err != nil || same != p {
		t.Errorf("native target should pass the plane through, got %v, %v", same, err)
	}

	down, err := Normalize(p, DTypeUint8)
	if err != nil {
		t.Fatal(err)
	}
	if vals := samplesOf(t, down); vals[0] != 1 || vals[1] != 2 {
		t.Errorf("got %v, want [1 2]", vals)
	}
}
