// Package split extracts every (scene, channel) combination of a
// container into its own single-channel OME-TIFF. Scene failures are
// isolated: one unreadable scene is recorded and the rest of the
// container still converts.
package split

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/naming"
	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/writer"
)

// ErrEmptyScene marks a scene skipped for holding no image data. It is a
// recorded outcome, never a failure.
var ErrEmptyScene = errors.New("empty scene")

// Options selects output placement, labeling, and conversion.
type Options struct {
	// OutDir is the output root; empty means "<stem>_export" next to the
	// input.
	OutDir string

	// Channels overrides the container's channel names. Must match the
	// channel count of every non-empty scene.
	Channels []string

	// DType is the conversion target; native keeps the source dtype.
	DType pixel.DType

	// IncludeEmpty writes scenes whose every sample is zero instead of
	// skipping them. Zero-extent scenes are skipped regardless.
	IncludeEmpty bool

	ForceBig  bool
	Compress  bool
	Overwrite bool
}

// Result records one attempted output, or one scene-level skip/failure
// (Channel is -1 for those).
type Result struct {
	Scene     int
	SceneName string
	Channel   int
	Label     string
	Path      string
	DType     pixel.DType // dtype as written
	Bytes     int64
	Big       bool
	Skipped   bool
	Reason    string // set when skipped
	Err       error  // set when failed
}

// Failed reports whether this record is a failure rather than a
// successful write or an intentional skip.
func (r Result) Failed() bool { return r.Err != nil && !r.Skipped }

// Split writes one file per (scene, channel) of the opened container.
// The returned slice holds one record per written file plus one per
// skipped or failed scene. The error return is reserved for whole-run
// problems: a channel override that cannot match, or cancellation.
func Split(ctx context.Context, h container.Handle, opts Options) ([]Result, error) {
	outDir := opts.OutDir
	if outDir == "" {
		outDir = naming.ExportDir(h.Path())
	}
	stem := naming.Stem(filepath.Base(h.Path()))

	// A bad override fails the whole container before any file lands.
	if len(opts.Channels) > 0 {
		for s := 0; s < h.SceneCount(); s++ {
			names := h.ChannelNames(s)
			if len(names) > 0 && len(names) != len(opts.Channels) {
				return nil, fmt.Errorf("%w: %d names given, scene %d has %d channels",
					container.ErrChannelCountMismatch, len(opts.Channels), s, len(names))
			}
		}
	}

	var results []Result
	for s := 0; s < h.SceneCount(); s++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		sceneName := h.SceneName(s)
		names := naming.DedupeLabels(h.ChannelNames(s))

		x, y, z, err := h.SceneExtent(s)
		if err != nil {
			results = append(results, Result{Scene: s, SceneName: sceneName, Channel: -1, Err: err})
			continue
		}
		if x == 0 || y == 0 || z == 0 || len(names) == 0 {
			results = append(results, Result{
				Scene: s, SceneName: sceneName, Channel: -1,
				Skipped: true,
				Reason:  fmt.Sprintf("%v: zero extent %dx%dx%d with %d channels", ErrEmptyScene, x, y, z, len(names)),
				Err:     ErrEmptyScene,
			})
			continue
		}

		planes := make([]*pixel.Plane, len(names))
		var readErr error
		for c := range names {
			if planes[c], readErr = h.ReadPlane(s, c); readErr != nil {
				break
			}
		}
		if readErr != nil {
			results = append(results, Result{Scene: s, SceneName: sceneName, Channel: -1, Err: readErr})
			continue
		}

		if !opts.IncludeEmpty && allZero(planes) {
			results = append(results, Result{
				Scene: s, SceneName: sceneName, Channel: -1,
				Skipped: true,
				Reason:  fmt.Sprintf("%v: no signal above background", ErrEmptyScene),
				Err:     ErrEmptyScene,
			})
			continue
		}

		sceneDir := filepath.Join(outDir, naming.SceneDir(sceneName, s))
		for c, p := range planes {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			label := names[c]
			if len(opts.Channels) > 0 {
				label = opts.Channels[c]
			}
			results = append(results, writeChannel(ctx, h, p, opts, channelOut{
				scene: s, sceneName: sceneName, channel: c,
				label: label, stem: stem, dir: sceneDir,
			}))
		}
	}
	return results, nil
}

// channelOut carries the placement of one extracted channel.
type channelOut struct {
	scene     int
	sceneName string
	channel   int
	label     string
	stem      string
	dir       string
}

// writeChannel converts and commits a single channel stack.
func writeChannel(ctx context.Context, h container.Handle, p *pixel.Plane, opts Options, out channelOut) Result {
	res := Result{
		Scene: out.scene, SceneName: out.sceneName,
		Channel: out.channel, Label: out.label,
	}

	fileName := naming.SplitFileName(out.stem, out.sceneName, out.scene, out.label, out.channel)
	res.Path = filepath.Join(out.dir, fileName)

	converted, err := pixel.Normalize(p, opts.DType)
	if err != nil {
		res.Err = err
		return res
	}
	cp := *converted
	cp.Label = out.label
	if cp.Label == "" {
		cp.Label = fmt.Sprintf("c%02d", out.channel)
	}
	res.Label = cp.Label

	px, py, pz := h.PhysicalSizes()
	img := &pixel.Image{
		Name:          strings.TrimSuffix(fileName, naming.OutExt),
		DType:         cp.DType,
		SizeX:         cp.SizeX,
		SizeY:         cp.SizeY,
		SizeZ:         cp.SizeZ,
		Planes:        []*pixel.Plane{&cp},
		PhysicalSizeX: px,
		PhysicalSizeY: py,
		PhysicalSizeZ: pz,
	}

	wres, err := writer.Write(ctx, img, res.Path, writer.Options{
		ForceBig:  opts.ForceBig,
		Compress:  opts.Compress,
		Overwrite: opts.Overwrite,
	})
	if err != nil {
		res.Err = err
		return res
	}
	res.DType = img.DType
	res.Bytes = wres.Bytes
	res.Big = wres.Big
	if wres.Skipped {
		res.Skipped = true
		res.Reason = "output exists"
	}
	return res
}

func allZero(planes []*pixel.Plane) bool {
	for _, p := range planes {
		if !p.AllZero() {
			return false
		}
	}
	return true
}
