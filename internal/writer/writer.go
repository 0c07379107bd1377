// Package writer serializes consolidated images to OME-TIFF files. It
// owns the BigTIFF decision, the embedded OME metadata block, and the
// atomic on-disk commit: data goes to a same-directory .partial file that
// is fsynced and renamed over the final path, so readers never observe a
// half-written output.
package writer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/backmassage/scopemux/internal/ome"
	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/tiff"
)

// ErrWrite marks output failures: disk full, permissions, rename not
// honored by the filesystem.
var ErrWrite = errors.New("write failed")

// classicLimit is the largest byte offset a classic TIFF can address.
const classicLimit = int64(1)<<32 - 1

// structuralAllowance covers header, IFD chain, and metadata bytes on top
// of the raw pixel payload when projecting the final file size.
const structuralAllowance = int64(64 * 1024)

// softwareTag is written to every output file.
const softwareTag = "scopemux"

// Options controls variant selection and the on-disk behavior.
type Options struct {
	ForceBig  bool // BigTIFF regardless of projected size
	Compress  bool // Deflate strips
	Overwrite bool // replace an existing output instead of skipping
}

// Result reports one committed (or skipped) output file.
type Result struct {
	Path    string
	Bytes   int64
	Big     bool
	Skipped bool   // an existing output was kept
	OMEXML  []byte // the embedded metadata document, for sidecar writing
}

// SelectBig decides the container variant from the projected uncompressed
// payload size. Compression never factors in: a file that would overflow
// classic offsets when stored raw gets BigTIFF headroom either way.
func SelectBig(projected int64, force bool) bool {
	return force || projected+structuralAllowance > classicLimit
}

// Write commits img to path as one OME-TIFF. Planes stream channel-outer,
// Z-inner; the OME document lands in the first IFD's ImageDescription.
// When path exists and Overwrite is off, nothing is written and the
// result reports Skipped.
func Write(ctx context.Context, img *pixel.Image, path string, opts Options) (Result, error) {
	if err := img.Validate(); err != nil {
		return Result{}, err
	}

	if !opts.Overwrite {
		if _, err := os.Stat(path); err == nil {
			return Result{Path: path, Skipped: true}, nil
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Result{}, werr(path, err)
	}

	big := SelectBig(img.ProjectedSize(), opts.ForceBig)
	doc, err := ome.Build(img, uuid.New())
	if err != nil {
		return Result{}, err
	}
	xmlBytes, err := doc.Marshal()
	if err != nil {
		return Result{}, err
	}

	partial := path + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return Result{}, werr(path, err)
	}
	fail := func(err error) (Result, error) {
		f.Close()
		os.Remove(partial)
		return Result{}, err
	}

	tw := tiff.NewWriter(f, tiff.WriterOptions{Big: big, Compress: opts.Compress})
	if err := tw.WriteHeader(); err != nil {
		return fail(werr(path, err))
	}
	bits, format := sampleLayout(img.DType)
	for _, p := range img.Planes {
		for z := 0; z < img.SizeZ; z++ {
			if err := ctx.Err(); err != nil {
				return fail(err)
			}
			if err := tw.WritePlane(img.SizeX, img.SizeY, bits, format, p.ZSlice(z)); err != nil {
				return fail(werr(path, err))
			}
		}
	}
	if err := tw.Finish(xmlBytes, softwareTag); err != nil {
		return fail(werr(path, err))
	}

	if err := f.Sync(); err != nil {
		return fail(werr(path, err))
	}
	fi, err := f.Stat()
	if err != nil {
		return fail(werr(path, err))
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return Result{}, werr(path, err)
	}
	if err := os.Rename(partial, path); err != nil {
		os.Remove(partial)
		return Result{}, werr(path, err)
	}

	return Result{Path: path, Bytes: fi.Size(), Big: big, OMEXML: xmlBytes}, nil
}

// WriteSidecar commits the standalone OME metadata document next to an
// output, with the same partial-then-rename discipline.
func WriteSidecar(xmlBytes []byte, path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
	}
	partial := path + ".partial"
	f, err := os.Create(partial)
	if err != nil {
		return werr(path, err)
	}
	if _, err := f.Write(xmlBytes); err != nil {
		f.Close()
		os.Remove(partial)
		return werr(path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(partial)
		return werr(path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(partial)
		return werr(path, err)
	}
	if err := os.Rename(partial, path); err != nil {
		os.Remove(partial)
		return werr(path, err)
	}
	return nil
}

// sampleLayout maps a dtype to the TIFF bits and sample format tags.
func sampleLayout(d pixel.DType) (int, uint16) {
	switch d {
	case pixel.DTypeUint8:
		return 8, tiff.SampleFormatUint
	case pixel.DTypeFloat32:
		return 32, tiff.SampleFormatFloat
	default:
		return 16, tiff.SampleFormatUint
	}
}

func werr(path string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
}
