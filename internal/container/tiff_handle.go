package container

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/backmassage/scopemux/internal/ome"
	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/tiff"
)

// tiffHandle reads plain TIFF, BigTIFF, and OME-TIFF files. With an OME
// metadata block in the first ImageDescription, scenes and channels follow
// the declared dimension layout; without one, the file is treated as a
// single-channel Z-stack, one IFD per slice.
type tiffHandle struct {
	path string
	f    *os.File
	tf   *tiff.File

	scenes              []*tiffScene
	physX, physY, physZ float64
}

// tiffScene maps one scene's (channel, z) grid onto IFD indices.
type tiffScene struct {
	name                string
	sizeX, sizeY, sizeZ int
	dtype               pixel.DType
	names               []string
	planeIFD            [][]int // [channel][z], -1 when the metadata maps no IFD
}

func openTIFF(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	tf, err := tiff.Parse(f, fi.Size())
	if err != nil {
		f.Close()
		if errors.Is(err, tiff.ErrNotTIFF) {
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
		}
		return nil, corruptf(path, "%v", err)
	}

	h := &tiffHandle{path: path, f: f, tf: tf}
	desc := tf.IFDs[0].Description
	if ome.LooksLikeOME(desc) {
		doc, err := ome.Parse(desc)
		if err != nil {
			f.Close()
			return nil, corruptf(path, "%v", err)
		}
		if err := h.scenesFromOME(doc); err != nil {
			f.Close()
			return nil, err
		}
	} else {
		if err := h.scenesBare(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return h, nil
}

// scenesBare models a TIFF without OME metadata: one scene, one unnamed
// channel, the IFD chain as its Z-stack. Every page must agree on extent
// and sample layout.
func (h *tiffHandle) scenesBare() error {
	first := h.tf.IFDs[0]
	dtype, err := dtypeOfIFD(h.path, first)
	if err != nil {
		return err
	}
	for i, ifd := range h.tf.IFDs[1:] {
		if ifd.Width != first.Width || ifd.Height != first.Height ||
			ifd.Bits != first.Bits || ifd.SampleFormat != first.SampleFormat {
			return corruptf(h.path, "page %d layout disagrees with page 0", i+1)
		}
	}

	planes := make([]int, len(h.tf.IFDs))
	for z := range planes {
		planes[z] = z
	}
	h.scenes = []*tiffScene{{
		sizeX:    first.Width,
		sizeY:    first.Height,
		sizeZ:    len(h.tf.IFDs),
		dtype:    dtype,
		names:    []string{""},
		planeIFD: [][]int{planes},
	}}
	return nil
}

// scenesFromOME builds the scene list from the embedded OME document. Each
// Image element is one scene; TiffData entries map planes to IFDs, with the
// declared DimensionOrder as fallback when a file carries none.
func (h *tiffHandle) scenesFromOME(doc *ome.OME) error {
	base := 0 // running IFD offset for images without TiffData
	for si, img := range doc.Images {
		px := img.Pixels
		if px.SizeT > 1 {
			return fmt.Errorf("%w: %s: %d timepoints", ErrUnsupportedFormat, filepath.Base(h.path), px.SizeT)
		}
		sizeC := px.SizeC
		if sizeC == 0 {
			sizeC = len(px.Channels)
		}
		sizeZ := px.SizeZ

		dtype, err := ome.DTypeOf(px.Type)
		if err != nil {
			return corruptf(h.path, "scene %d: %v", si, err)
		}

		names := make([]string, sizeC)
		for c := range px.Channels {
			if c < sizeC {
				names[c] = px.Channels[c].Name
			}
		}

		sc := &tiffScene{
			name:     img.Name,
			sizeX:    px.SizeX,
			sizeY:    px.SizeY,
			sizeZ:    sizeZ,
			dtype:    dtype,
			names:    names,
			planeIFD: make([][]int, sizeC),
		}
		for c := range sc.planeIFD {
			sc.planeIFD[c] = make([]int, sizeZ)
			for z := range sc.planeIFD[c] {
				sc.planeIFD[c][z] = -1
			}
		}

		zInner := zInnerOrder(px.DimensionOrder)
		if len(px.TiffData) == 0 {
			for c := 0; c < sizeC; c++ {
				for z := 0; z < sizeZ; z++ {
					idx := base + linearPlane(zInner, z, c, sizeZ, sizeC)
					if idx >= len(h.tf.IFDs) {
						return corruptf(h.path, "scene %d declares plane (z=%d c=%d) beyond the %d IFDs present",
							si, z, c, len(h.tf.IFDs))
					}
					sc.planeIFD[c][z] = idx
				}
			}
		} else {
			for _, td := range px.TiffData {
				count := td.PlaneCount
				if count <= 0 {
					// A bare <TiffData/> covers the whole image in
					// dimension order; otherwise a missing PlaneCount
					// means a single plane.
					if len(px.TiffData) == 1 && td.FirstZ == 0 && td.FirstC == 0 {
						count = sizeZ * sizeC
					} else {
						count = 1
					}
				}
				start := linearPlane(zInner, td.FirstZ, td.FirstC, sizeZ, sizeC)
				for k := 0; k < count; k++ {
					z, c := planeCoords(zInner, start+k, sizeZ, sizeC)
					if z < 0 || z >= sizeZ || c < 0 || c >= sizeC {
						return corruptf(h.path, "scene %d: TiffData plane %d outside the %dx%d grid",
							si, start+k, sizeZ, sizeC)
					}
					idx := td.IFD + k
					if idx < 0 || idx >= len(h.tf.IFDs) {
						return corruptf(h.path, "scene %d: TiffData maps plane (z=%d c=%d) to IFD %d of %d",
							si, z, c, idx, len(h.tf.IFDs))
					}
					sc.planeIFD[c][z] = idx
				}
			}
		}

		base += sizeZ * sizeC
		h.scenes = append(h.scenes, sc)
	}
	if len(h.scenes) == 0 {
		return corruptf(h.path, "OME metadata without Image elements")
	}

	px := doc.Images[0].Pixels
	h.physX, h.physY, h.physZ = px.PhysicalSizeX, px.PhysicalSizeY, px.PhysicalSizeZ
	return nil
}

func (h *tiffHandle) Path() string    { return h.path }
func (h *tiffHandle) SceneCount() int { return len(h.scenes) }

func (h *tiffHandle) SceneName(scene int) string {
	if scene < 0 || scene >= len(h.scenes) {
		return ""
	}
	return h.scenes[scene].name
}

func (h *tiffHandle) ChannelNames(scene int) []string {
	if scene < 0 || scene >= len(h.scenes) {
		return nil
	}
	return append([]string(nil), h.scenes[scene].names...)
}

func (h *tiffHandle) SceneExtent(scene int) (int, int, int, error) {
	if scene < 0 || scene >= len(h.scenes) {
		return 0, 0, 0, fmt.Errorf("scene %d of %d", scene, len(h.scenes))
	}
	sc := h.scenes[scene]
	return sc.sizeX, sc.sizeY, sc.sizeZ, nil
}

func (h *tiffHandle) SceneDType(scene int) (pixel.DType, error) {
	if scene < 0 || scene >= len(h.scenes) {
		return "", fmt.Errorf("scene %d of %d", scene, len(h.scenes))
	}
	return h.scenes[scene].dtype, nil
}

func (h *tiffHandle) PhysicalSizes() (float64, float64, float64) {
	return h.physX, h.physY, h.physZ
}

func (h *tiffHandle) ReadPlane(scene, channel int) (*pixel.Plane, error) {
	if scene < 0 || scene >= len(h.scenes) {
		return nil, fmt.Errorf("scene %d of %d", scene, len(h.scenes))
	}
	sc := h.scenes[scene]
	if channel < 0 || channel >= len(sc.planeIFD) {
		return nil, fmt.Errorf("channel %d of %d in scene %d", channel, len(sc.planeIFD), scene)
	}

	p := &pixel.Plane{
		Label: sc.names[channel],
		DType: sc.dtype,
		SizeX: sc.sizeX,
		SizeY: sc.sizeY,
		SizeZ: sc.sizeZ,
		Data:  make([]byte, 0, sc.sizeX*sc.sizeY*sc.sizeZ*sc.dtype.BytesPerSample()),
	}
	for z := 0; z < sc.sizeZ; z++ {
		idx := sc.planeIFD[channel][z]
		if idx < 0 {
			return nil, corruptf(h.path, "scene %d: no IFD mapped for channel %d z %d", scene, channel, z)
		}
		ifd := h.tf.IFDs[idx]
		if ifd.Width != sc.sizeX || ifd.Height != sc.sizeY {
			return nil, corruptf(h.path, "IFD %d extent %dx%d disagrees with declared %dx%d",
				idx, ifd.Width, ifd.Height, sc.sizeX, sc.sizeY)
		}
		data, err := ifd.Data()
		if err != nil {
			return nil, corruptf(h.path, "IFD %d: %v", idx, err)
		}
		p.Data = append(p.Data, data...)
	}

	if err := p.Validate(); err != nil {
		return nil, corruptf(h.path, "scene %d channel %d: %v", scene, channel, err)
	}
	return p, nil
}

func (h *tiffHandle) Close() error { return h.f.Close() }

// dtypeOfIFD maps a page's sample layout to a dtype.
func dtypeOfIFD(path string, ifd *tiff.IFD) (pixel.DType, error) {
	if ifd.SamplesPerPixel != 1 {
		return "", fmt.Errorf("%w: %s: %d samples per pixel", ErrUnsupportedFormat,
			filepath.Base(path), ifd.SamplesPerPixel)
	}
	switch {
	case ifd.Bits == 8 && ifd.SampleFormat == tiff.SampleFormatUint:
		return pixel.DTypeUint8, nil
	case ifd.Bits == 16 && ifd.SampleFormat == tiff.SampleFormatUint:
		return pixel.DTypeUint16, nil
	case ifd.Bits == 32 && ifd.SampleFormat == tiff.SampleFormatFloat:
		return pixel.DTypeFloat32, nil
	}
	return "", fmt.Errorf("%w: %d-bit samples, format %d", pixel.ErrUnsupportedDType, ifd.Bits, ifd.SampleFormat)
}

// zInnerOrder reports whether Z varies faster than C in a DimensionOrder
// string. Dimensions after the leading XY are listed fastest first, so
// "XYZCT" stores Z-inner and "XYCZT" channel-inner. Single-timepoint data
// makes T's position irrelevant.
func zInnerOrder(order string) bool {
	zi := strings.IndexByte(order, 'Z')
	ci := strings.IndexByte(order, 'C')
	if zi < 0 || ci < 0 {
		return true // XYZCT default
	}
	return zi < ci
}

// linearPlane converts (z, c) to a plane index in storage order.
func linearPlane(zInner bool, z, c, sizeZ, sizeC int) int {
	if zInner {
		return c*sizeZ + z
	}
	return z*sizeC + c
}

// planeCoords inverts linearPlane.
func planeCoords(zInner bool, p, sizeZ, sizeC int) (z, c int) {
	if zInner {
		if sizeZ == 0 {
			return -1, -1
		}
		return p % sizeZ, p / sizeZ
	}
	if sizeC == 0 {
		return -1, -1
	}
	return p / sizeC, p % sizeC
}

func corruptf(path, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrCorruptData, filepath.Base(path), fmt.Sprintf(format, args...))
}
