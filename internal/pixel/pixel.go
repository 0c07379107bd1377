// Package pixel defines the numeric sample types and in-memory plane
// representation shared by the container readers, the merger, and the
// OME-TIFF writer.
package pixel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrUnsupportedDType is returned for a dtype outside the supported set.
var ErrUnsupportedDType = errors.New("unsupported dtype")

// DType identifies the numeric type of one pixel sample.
type DType string

const (
	DTypeUint8   DType = "uint8"   // 8-bit unsigned integer.
	DTypeUint16  DType = "uint16"  // 16-bit unsigned integer (most acquisitions).
	DTypeFloat32 DType = "float32" // 32-bit IEEE float (deconvolution output).

	// DTypeNative is the passthrough conversion target: planes keep
	// whatever dtype the source container declares.
	DTypeNative DType = "native"
)

// ParseDType validates a dtype string from config or container metadata.
func ParseDType(s string) (DType, error) {
	switch DType(s) {
	case DTypeUint8, DTypeUint16, DTypeFloat32:
		return DType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedDType, s)
}

// ParseTarget validates a conversion target: the supported dtypes plus
// "native". The empty string counts as native so an unset config field
// means passthrough.
func ParseTarget(s string) (DType, error) {
	if s == "" || DType(s) == DTypeNative {
		return DTypeNative, nil
	}
	return ParseDType(s)
}

// BytesPerSample returns the storage size of one sample, or 0 for an
// unrecognized dtype.
func (d DType) BytesPerSample() int {
	switch d {
	case DTypeUint8:
		return 1
	case DTypeUint16:
		return 2
	case DTypeFloat32:
		return 4
	}
	return 0
}

// MaxValue returns the top of the theoretical range for integer dtypes.
// Float32 has no bounded range and returns 0.
func (d DType) MaxValue() uint32 {
	switch d {
	case DTypeUint8:
		return math.MaxUint8
	case DTypeUint16:
		return math.MaxUint16
	}
	return 0
}

// Plane is the pixel payload of one channel of one scene. Data is stored
// Z-major (plane, then row, then column) in little-endian sample order.
type Plane struct {
	Label string
	DType DType

	SizeX int
	SizeY int
	SizeZ int

	Data []byte
}

// SampleCount returns the number of samples the extent implies.
func (p *Plane) SampleCount() int {
	return p.SizeX * p.SizeY * p.SizeZ
}

// ByteSize returns the expected length of Data for the extent and dtype.
func (p *Plane) ByteSize() int {
	return p.SampleCount() * p.DType.BytesPerSample()
}

// ZeroExtent reports whether any spatial axis is zero.
func (p *Plane) ZeroExtent() bool {
	return p.SizeX <= 0 || p.SizeY <= 0 || p.SizeZ <= 0
}

// Validate checks dtype and that Data length matches the declared extent.
func (p *Plane) Validate() error {
	if _, err := ParseDType(string(p.DType)); err != nil {
		return err
	}
	if p.SizeX < 0 || p.SizeY < 0 || p.SizeZ < 0 {
		return fmt.Errorf("negative extent %dx%dx%d", p.SizeX, p.SizeY, p.SizeZ)
	}
	if len(p.Data) != p.ByteSize() {
		return fmt.Errorf("plane %q: data length %d, extent %dx%dx%d %s needs %d",
			p.Label, len(p.Data), p.SizeX, p.SizeY, p.SizeZ, p.DType, p.ByteSize())
	}
	return nil
}

// ExtentEquals reports whether two planes share the same spatial extent.
func (p *Plane) ExtentEquals(q *Plane) bool {
	return p.SizeX == q.SizeX && p.SizeY == q.SizeY && p.SizeZ == q.SizeZ
}

// ExtentString returns "XxYxZ" for log and error messages.
func (p *Plane) ExtentString() string {
	return fmt.Sprintf("%dx%dx%d", p.SizeX, p.SizeY, p.SizeZ)
}

// Sample returns sample i as float64 regardless of dtype.
func (p *Plane) Sample(i int) float64 {
	switch p.DType {
	case DTypeUint8:
		return float64(p.Data[i])
	case DTypeUint16:
		return float64(binary.LittleEndian.Uint16(p.Data[i*2:]))
	case DTypeFloat32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(p.Data[i*4:])))
	}
	return 0
}

// MinMax scans all samples and returns the observed range.
// An empty plane reports (0, 0).
func (p *Plane) MinMax() (float64, float64) {
	n := p.SampleCount()
	if n == 0 || len(p.Data) == 0 {
		return 0, 0
	}
	lo, hi := p.Sample(0), p.Sample(0)
	for i := 1; i < n; i++ {
		v := p.Sample(i)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return lo, hi
}

// AllZero reports whether every sample is exactly zero. Used for
// background-only scene detection.
func (p *Plane) AllZero() bool {
	lo, hi := p.MinMax()
	return lo == 0 && hi == 0
}

// ZSlice returns the byte range of one Z plane within Data.
func (p *Plane) ZSlice(z int) []byte {
	stride := p.SizeX * p.SizeY * p.DType.BytesPerSample()
	return p.Data[z*stride : (z+1)*stride]
}
