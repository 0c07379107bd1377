// Package merge consolidates single-channel planes into one multi-channel
// image. It is pure assembly: callers read the planes and write the
// result; this package owns the ordering, labeling, extent, and dtype
// rules that make a merge valid.
package merge

import (
	"errors"
	"fmt"

	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/pixel"
)

var (
	// ErrDimensionMismatch marks planes whose X/Y/Z extents disagree.
	// Merging never resamples.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDuplicateChannelLabel marks two channels resolving to the same
	// label; downstream channel extraction would be ambiguous.
	ErrDuplicateChannelLabel = errors.New("duplicate channel label")
)

// Options carries the caller-declared naming and conversion choices.
type Options struct {
	// Name is the output image name.
	Name string

	// Labels are the channel labels, one per plane in merge order. Empty
	// entries fall back to the plane's own label, then to a positional
	// c00, c01, ... name. A nil slice uses plane labels throughout.
	Labels []string

	// DType is the conversion target; native keeps the shared source
	// dtype, which then must agree across all planes.
	DType pixel.DType

	// Physical pixel sizes propagated to the output metadata.
	PhysicalSizeX float64
	PhysicalSizeY float64
	PhysicalSizeZ float64
}

// Merge assembles planes into one image. Channel order is exactly the
// order given; nothing is sorted or deduplicated behind the caller's
// back. Planes are copied structurally (pixel data is shared) so callers
// keep their labels.
func Merge(planes []*pixel.Plane, opts Options) (*pixel.Image, error) {
	if len(planes) == 0 {
		return nil, fmt.Errorf("merge %q: no channels given", opts.Name)
	}
	if len(opts.Labels) > 0 && len(opts.Labels) != len(planes) {
		return nil, fmt.Errorf("%w: %d labels for %d channels",
			container.ErrChannelCountMismatch, len(opts.Labels), len(planes))
	}

	first := planes[0]
	for i, p := range planes[1:] {
		if !p.ExtentEquals(first) {
			return nil, fmt.Errorf("%w: channel %d is %s, channel 0 is %s",
				ErrDimensionMismatch, i+1, p.ExtentString(), first.ExtentString())
		}
	}

	target := opts.DType
	if target == "" {
		target = pixel.DTypeNative
	}
	if target == pixel.DTypeNative {
		for i, p := range planes[1:] {
			if p.DType != first.DType {
				return nil, fmt.Errorf("%w: channel 0 is %s, channel %d is %s; pass an explicit dtype",
					pixel.ErrUnsupportedDType, first.DType, i+1, p.DType)
			}
		}
	}

	img := &pixel.Image{
		Name:          opts.Name,
		SizeX:         first.SizeX,
		SizeY:         first.SizeY,
		SizeZ:         first.SizeZ,
		PhysicalSizeX: opts.PhysicalSizeX,
		PhysicalSizeY: opts.PhysicalSizeY,
		PhysicalSizeZ: opts.PhysicalSizeZ,
	}

	seen := make(map[string]int, len(planes))
	for i, p := range planes {
		converted, err := pixel.Normalize(p, target)
		if err != nil {
			return nil, fmt.Errorf("channel %d (%s): %w", i, p.Label, err)
		}
		cp := *converted

		label := ""
		if i < len(opts.Labels) {
			label = opts.Labels[i]
		}
		if label == "" {
			label = p.Label
		}
		if label == "" {
			label = fmt.Sprintf("c%02d", i)
		}
		if prev, dup := seen[label]; dup {
			return nil, fmt.Errorf("%w: %q names both channel %d and channel %d",
				ErrDuplicateChannelLabel, label, prev, i)
		}
		seen[label] = i

		cp.Label = label
		img.Planes = append(img.Planes, &cp)
	}
	img.DType = img.Planes[0].DType

	if err := img.Validate(); err != nil {
		return nil, err
	}
	return img, nil
}
