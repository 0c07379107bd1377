package pixel

import "fmt"

// Image is a consolidated multi-channel acquisition: an ordered list of
// planes sharing one extent and dtype, plus the metadata the OME-TIFF
// writer needs. Channel order is meaningful and is preserved exactly as
// the caller assembled it.
type Image struct {
	Name   string
	DType  DType
	SizeX  int
	SizeY  int
	SizeZ  int
	Planes []*Plane

	// Physical pixel sizes in micrometers, zero when the source container
	// did not declare them. Propagated best-effort.
	PhysicalSizeX float64
	PhysicalSizeY float64
	PhysicalSizeZ float64
}

// Channels returns the number of channel planes.
func (img *Image) Channels() int { return len(img.Planes) }

// ChannelLabels returns the plane labels in channel order.
func (img *Image) ChannelLabels() []string {
	out := make([]string, len(img.Planes))
	for i, p := range img.Planes {
		out[i] = p.Label
	}
	return out
}

// ProjectedSize returns the projected pixel payload size in bytes when
// serialized: extent × channels × bytes per sample.
func (img *Image) ProjectedSize() int64 {
	return int64(img.SizeX) * int64(img.SizeY) * int64(img.SizeZ) *
		int64(len(img.Planes)) * int64(img.DType.BytesPerSample())
}

// Validate checks structural consistency: at least one plane, every plane
// matching the image extent and dtype with a full payload.
func (img *Image) Validate() error {
	if len(img.Planes) == 0 {
		return fmt.Errorf("image %q has no channels", img.Name)
	}
	if img.SizeX <= 0 || img.SizeY <= 0 || img.SizeZ <= 0 {
		return fmt.Errorf("image %q has zero extent %dx%dx%d", img.Name, img.SizeX, img.SizeY, img.SizeZ)
	}
	for i, p := range img.Planes {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
		if p.DType != img.DType {
			return fmt.Errorf("channel %d (%s): dtype %s, image is %s", i, p.Label, p.DType, img.DType)
		}
		if p.SizeX != img.SizeX || p.SizeY != img.SizeY || p.SizeZ != img.SizeZ {
			return fmt.Errorf("channel %d (%s): extent %s, image is %dx%dx%d",
				i, p.Label, p.ExtentString(), img.SizeX, img.SizeY, img.SizeZ)
		}
	}
	return nil
}
