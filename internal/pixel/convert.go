package pixel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Convert returns a plane with every sample converted to the target dtype.
// Same-dtype conversion returns p unchanged (no copy). Integer widening and
// narrowing rescale linearly against the full theoretical range of the
// source dtype, so relative brightness stays comparable across files
// converted independently. Integer to float is an exact value cast; float
// to integer clips to the target range, never wraps.
func Convert(p *Plane, target DType) (*Plane, error) {
	if _, err := ParseDType(string(target)); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.DType == target {
		return p, nil
	}

	n := p.SampleCount()
	out := &Plane{
		Label: p.Label,
		DType: target,
		SizeX: p.SizeX,
		SizeY: p.SizeY,
		SizeZ: p.SizeZ,
		Data:  make([]byte, n*target.BytesPerSample()),
	}

	switch {
	case p.DType == DTypeUint8 && target == DTypeUint16:
		for i := 0; i < n; i++ {
			// 0..255 -> 0..65535 (255*257 = 65535).
			binary.LittleEndian.PutUint16(out.Data[i*2:], uint16(p.Data[i])*257)
		}
	case p.DType == DTypeUint16 && target == DTypeUint8:
		for i := 0; i < n; i++ {
			v := binary.LittleEndian.Uint16(p.Data[i*2:])
			// Rounded v*255/65535; 65535 = 255*257.
			out.Data[i] = uint8((uint32(v) + 128) / 257)
		}
	case target == DTypeFloat32:
		for i := 0; i < n; i++ {
			binary.LittleEndian.PutUint32(out.Data[i*4:], math.Float32bits(float32(p.Sample(i))))
		}
	case p.DType == DTypeFloat32:
		max := float64(target.MaxValue())
		bps := target.BytesPerSample()
		for i := 0; i < n; i++ {
			v := p.Sample(i)
			u := clampRound(v, max)
			if bps == 1 {
				out.Data[i] = uint8(u)
			} else {
				binary.LittleEndian.PutUint16(out.Data[i*2:], uint16(u))
			}
		}
	default:
		return nil, fmt.Errorf("%w: cannot convert %s to %s", ErrUnsupportedDType, p.DType, target)
	}
	return out, nil
}

// Normalize converts p to target unless target is native, in which case
// the plane passes through untouched.
func Normalize(p *Plane, target DType) (*Plane, error) {
	if target == DTypeNative || target == "" {
		return p, nil
	}
	return Convert(p, target)
}

// clampRound clips v into [0, max] and rounds half away from zero.
// NaN maps to 0.
func clampRound(v, max float64) uint32 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= max {
		return uint32(max)
	}
	return uint32(math.Round(v))
}
