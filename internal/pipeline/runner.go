package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/backmassage/scopemux/internal/config"
	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/display"
	"github.com/backmassage/scopemux/internal/logging"
	"github.com/backmassage/scopemux/internal/manifest"
	"github.com/backmassage/scopemux/internal/merge"
	"github.com/backmassage/scopemux/internal/naming"
	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/split"
	"github.com/backmassage/scopemux/internal/writer"
)

// unit is one independent piece of batch work: a container to split or
// convert, or a source group to consolidate into one output.
type unit struct {
	op     config.Command
	name   string   // display name, the container or seed basename
	inputs []string // merge order for consolidating ops
	labels []string // channel labels matching inputs, consolidating ops only
	output string   // resolved output path, consolidating ops only

	// missing holds the derived-but-absent siblings of a pair unit; each
	// one is logged before the unit runs.
	missing []naming.Miss
}

// Run is the top-level batch entry point. It expands the inputs into
// units, opens the run manifest, processes the units across a bounded
// worker pool, and returns aggregate stats.
func Run(ctx context.Context, cfg *config.Config, log *logging.Logger) *RunStats {
	stats := &RunStats{}

	units, err := buildUnits(cfg, log)
	if err != nil {
		log.Error("%v", err)
		stats.Failed++
		return stats
	}
	stats.Total = len(units)
	if len(units) == 0 {
		log.Warn("Nothing to do")
		return stats
	}

	man, err := openManifest(cfg)
	if err != nil {
		log.Error("Cannot open manifest: %v", err)
		stats.Failed++
		return stats
	}
	defer man.Close()

	logBatchHeader(cfg, log, stats)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Jobs)
	for _, u := range units {
		u := u
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return processUnit(gctx, cfg, log, man, stats, u)
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("Interrupted")
	}

	logSummary(cfg, log, stats)
	return stats
}

// buildUnits turns the validated config into the work list. Split and
// convert get one unit per discovered container; merge is a single
// caller-described group; pair derives its groups from the naming rules.
func buildUnits(cfg *config.Config, log *logging.Logger) ([]*unit, error) {
	switch cfg.Command {
	case config.CommandMerge:
		return []*unit{{
			op:     config.CommandMerge,
			name:   filepath.Base(cfg.Output),
			inputs: cfg.Inputs,
			labels: cfg.Channels,
			output: cfg.Output,
		}}, nil
	case config.CommandPair:
		return pairUnits(cfg, log)
	default:
		files, err := Discover(cfg.Inputs)
		if err != nil {
			return nil, err
		}
		units := make([]*unit, len(files))
		for i, f := range files {
			units[i] = &unit{op: cfg.Command, name: filepath.Base(f), inputs: []string{f}}
		}
		return units, nil
	}
}

// pairUnits matches every seed candidate against the naming convention
// and builds one merge unit per seed. Walked files that no rule set
// applies to are bystanders (most directories hold seeds and siblings
// side by side) and are dropped quietly; an explicitly named file that
// fails every rule set keeps its unit and fails loudly instead.
func pairUnits(cfg *config.Config, log *logging.Logger) ([]*unit, error) {
	conv := naming.DefaultConvention()
	if cfg.RulesFile != "" {
		var err error
		conv, err = naming.LoadConvention(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
	}

	resolver := naming.NewCollisionResolver()
	var units []*unit
	for _, in := range cfg.Inputs {
		candidates, explicit, err := discoverOne(in)
		if err != nil {
			return nil, err
		}
		for _, seed := range candidates {
			p, err := conv.Pair(seed)
			if err != nil {
				return nil, err
			}
			if !explicit && len(p.Siblings) == 0 && !anyRuleApplied(p.Missing) {
				log.Debug(cfg.Verbose, "Not a seed: %s", filepath.Base(seed))
				continue
			}

			outDir := cfg.OutDir
			if outDir == "" {
				outDir = filepath.Dir(seed)
			}
			units = append(units, &unit{
				op:      config.CommandPair,
				name:    filepath.Base(seed),
				inputs:  p.Inputs(),
				labels:  p.ChannelLabels(),
				output:  resolver.Resolve(seed, filepath.Join(outDir, p.Output)),
				missing: p.Missing,
			})
		}
	}
	return units, nil
}

// anyRuleApplied reports whether at least one miss derived a concrete
// sibling path, i.e. the name is seed-shaped even though nothing was
// found on disk.
func anyRuleApplied(missing []naming.Miss) bool {
	for _, m := range missing {
		if m.Expected != "" {
			return true
		}
	}
	return false
}

// openManifest opens the per-run JSONL stream, defaulting next to the
// outputs when no explicit path was given.
func openManifest(cfg *config.Config) (*manifest.Appender, error) {
	path := cfg.ManifestPath
	if path == "" {
		path = filepath.Join(cfg.Workspace(), "scopemux-run.jsonl")
	}
	return manifest.Open(path, os.Args, config.Version())
}

// processUnit runs one unit, reports it to the log and the manifest, and
// folds its outcome into stats. The error return is reserved for
// cancellation: a cancelled unit reached no outcome worth recording, and
// the non-nil error stops the pool.
func processUnit(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	man *manifest.Appender,
	stats *RunStats,
	u *unit,
) error {
	log.Info("[%d/%d] %s", stats.next(), stats.Total, u.name)

	start := time.Now()
	var rec manifest.Record
	var err error
	switch u.op {
	case config.CommandSplit:
		rec, err = processSplit(ctx, cfg, log, stats, u)
	case config.CommandConvert:
		rec, err = processConvert(ctx, cfg, log, stats, u)
	default: // merge and pair share the consolidation path
		rec, err = processMerge(ctx, cfg, log, stats, u)
	}
	if err != nil {
		return err
	}

	elapsed := time.Since(start)
	log.Debug(cfg.Verbose, "%s finished in %s", u.name, display.FormatDuration(elapsed))

	rec.Op = string(u.op)
	rec.Sources = u.inputs
	rec.ElapsedMS = elapsed.Milliseconds()
	if aerr := man.Append(rec); aerr != nil {
		log.Error("Manifest append: %v", aerr)
	}
	stats.unitDone(rec.Status == manifest.StatusFailed)
	return nil
}

// processSplit extracts every (scene, channel) of one container into its
// own file.
func processSplit(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	stats *RunStats,
	u *unit,
) (manifest.Record, error) {
	path := u.inputs[0]
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = naming.ExportDir(path)
	}
	rec := manifest.Record{Output: outDir, DType: string(cfg.DType)}

	if fi, err := os.Stat(path); err == nil {
		stats.addInput(fi.Size())
	}

	h, err := container.Open(path)
	if err != nil {
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}
	defer h.Close()

	results, err := split.Split(ctx, h, split.Options{
		OutDir:       outDir,
		Channels:     cfg.Channels,
		DType:        cfg.DType,
		IncludeEmpty: cfg.IncludeEmpty,
		ForceBig:     cfg.ForceBigTIFF,
		Compress:     cfg.Compress,
		Overwrite:    cfg.Overwrite,
	})
	if err != nil {
		if ctx.Err() != nil {
			return rec, err
		}
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}

	var failed bool
	var written, skipped int
	for _, r := range results {
		switch {
		case r.Failed():
			failed = true
			if rec.Error == "" {
				rec.Error = r.Err.Error()
			}
			if r.Channel < 0 {
				log.Error("Scene %d: %v", r.Scene, r.Err)
			} else {
				log.Error("Scene %d channel %d: %v", r.Scene, r.Channel, r.Err)
			}
		case r.Skipped && r.Channel < 0:
			skipped++
			stats.addSkipped()
			rec.Scenes = append(rec.Scenes, manifest.SceneSkip{Scene: r.Scene, Reason: r.Reason})
			log.Warn("Scene %d skipped: %s", r.Scene, r.Reason)
		case r.Skipped:
			skipped++
			stats.addSkipped()
			log.Warn("Skip (exists): %s", filepath.Base(r.Path))
		default:
			written++
			stats.addWritten(r.Bytes)
			rec.Bytes += r.Bytes
			rec.Channels = appendUnique(rec.Channels, r.Label)
			rec.DType = string(r.DType)
			if r.Big {
				rec.BigTIFF = true
			}
			log.Success("Wrote %s (%s%s)", filepath.Base(r.Path), display.FormatBytes(r.Bytes), variantSuffix(r.Big))
		}
	}

	rec.Status = unitStatus(failed, written, skipped)
	return rec, nil
}

// processConvert rewrites one container scene by scene, all channels
// kept, one consolidated file plus an XML sidecar per scene.
func processConvert(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	stats *RunStats,
	u *unit,
) (manifest.Record, error) {
	path := u.inputs[0]
	outDir := cfg.OutDir
	if outDir == "" {
		outDir = filepath.Dir(path)
	}
	rec := manifest.Record{Output: outDir, DType: string(cfg.DType)}

	if fi, err := os.Stat(path); err == nil {
		stats.addInput(fi.Size())
	}

	h, err := container.Open(path)
	if err != nil {
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}
	defer h.Close()

	stem := naming.Stem(filepath.Base(path))
	px, py, pz := h.PhysicalSizes()

	var failed bool
	var written, skipped int
	for s := 0; s < h.SceneCount(); s++ {
		if err := ctx.Err(); err != nil {
			return rec, err
		}

		x, y, z, err := h.SceneExtent(s)
		if err != nil {
			failed = true
			rec.Error = err.Error()
			log.Error("Scene %d: %v", s, err)
			continue
		}
		names := naming.DedupeLabels(h.ChannelNames(s))
		if x == 0 || y == 0 || z == 0 || len(names) == 0 {
			skipped++
			stats.addSkipped()
			reason := fmt.Sprintf("empty scene: zero extent %dx%dx%d with %d channels", x, y, z, len(names))
			rec.Scenes = append(rec.Scenes, manifest.SceneSkip{Scene: s, Reason: reason})
			log.Warn("Scene %d skipped: %s", s, reason)
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
			failed = true
			rec.Error = readErr.Error()
			log.Error("Scene %d: %v", s, readErr)
			continue
		}

		fileName := naming.ConvertFileName(stem, h.SceneName(s), s)
		img, err := merge.Merge(planes, merge.Options{
			Name:          strings.TrimSuffix(fileName, naming.OutExt),
			Labels:        names,
			DType:         cfg.DType,
			PhysicalSizeX: px,
			PhysicalSizeY: py,
			PhysicalSizeZ: pz,
		})
		if err != nil {
			failed = true
			rec.Error = err.Error()
			log.Error("Scene %d: %v", s, err)
			continue
		}

		outPath := filepath.Join(outDir, fileName)
		res, err := writer.Write(ctx, img, outPath, writer.Options{
			ForceBig:  cfg.ForceBigTIFF,
			Compress:  cfg.Compress,
			Overwrite: cfg.Overwrite,
		})
		if err != nil {
			if ctx.Err() != nil {
				return rec, err
			}
			failed = true
			rec.Error = err.Error()
			log.Error("Scene %d: %v", s, err)
			continue
		}
		if res.Skipped {
			skipped++
			stats.addSkipped()
			rec.Scenes = append(rec.Scenes, manifest.SceneSkip{Scene: s, Reason: "output exists"})
			log.Warn("Skip (exists): %s", fileName)
			continue
		}

		sidecar := strings.TrimSuffix(outPath, naming.OutExt) + naming.MetaExt
		if err := writer.WriteSidecar(res.OMEXML, sidecar, cfg.Overwrite); err != nil {
			failed = true
			rec.Error = err.Error()
			log.Error("Scene %d sidecar: %v", s, err)
			continue
		}

		written++
		stats.addWritten(res.Bytes)
		rec.Bytes += res.Bytes
		for _, l := range img.ChannelLabels() {
			rec.Channels = appendUnique(rec.Channels, l)
		}
		rec.DType = string(img.DType)
		if res.Big {
			rec.BigTIFF = true
		}
		log.Success("Wrote %s (%s, %d channels%s)", fileName, display.FormatBytes(res.Bytes), len(names), variantSuffix(res.Big))
	}

	rec.Status = unitStatus(failed, written, skipped)
	return rec, nil
}

// processMerge consolidates one source group, caller-described (merge)
// or rule-derived (pair), into a single multi-channel file.
func processMerge(
	ctx context.Context,
	cfg *config.Config,
	log *logging.Logger,
	stats *RunStats,
	u *unit,
) (manifest.Record, error) {
	rec := manifest.Record{Output: u.output, Channels: u.labels, DType: string(cfg.DType)}

	// Pair derivations that found nothing on disk are reported before any
	// pixels move, naming the expected path.
	for _, m := range u.missing {
		if m.Expected != "" {
			log.Warn("No match for %s: expected %s (rule set %s)", u.name, m.Expected, m.Set)
		}
	}

	if u.op == config.CommandPair && len(u.inputs) < 2 {
		err := fmt.Errorf("%w: no siblings on disk for %s", naming.ErrNoMatchFound, u.name)
		if cfg.DryRun {
			// A seed without siblings is listed, not failed, when nothing
			// would be written anyway.
			log.Warn("[DRY] %v", err)
			rec.Status = manifest.StatusSkipped
			rec.DryRun = true
			return rec, nil
		}
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}

	if cfg.DryRun {
		log.Success("[DRY] Would merge %d channels -> %s", len(u.inputs), u.output)
		for i, in := range u.inputs {
			log.Info("  %s <- %s", u.labels[i], filepath.Base(in))
		}
		rec.Status = manifest.StatusOK
		rec.DryRun = true
		return rec, nil
	}

	planes, phys, err := readSources(ctx, log, stats, u.inputs)
	if err != nil {
		if ctx.Err() != nil {
			return rec, err
		}
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}

	img, err := merge.Merge(planes, merge.Options{
		Name:          strings.TrimSuffix(filepath.Base(u.output), naming.OutExt),
		Labels:        u.labels,
		DType:         cfg.DType,
		PhysicalSizeX: phys[0],
		PhysicalSizeY: phys[1],
		PhysicalSizeZ: phys[2],
	})
	if err != nil {
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}

	res, err := writer.Write(ctx, img, u.output, writer.Options{
		ForceBig:  cfg.ForceBigTIFF,
		Compress:  cfg.Compress,
		Overwrite: cfg.Overwrite,
	})
	if err != nil {
		if ctx.Err() != nil {
			return rec, err
		}
		log.Error("%v", err)
		return failRecord(rec, err), nil
	}
	if res.Skipped {
		stats.addSkipped()
		rec.Status = manifest.StatusSkipped
		log.Warn("Skip (exists): %s", filepath.Base(u.output))
		return rec, nil
	}

	stats.addWritten(res.Bytes)
	rec.Status = manifest.StatusOK
	rec.Channels = img.ChannelLabels()
	rec.DType = string(img.DType)
	rec.BigTIFF = res.Big
	rec.Bytes = res.Bytes
	log.Success("Merged %d channels into %s (%s%s)",
		len(planes), filepath.Base(u.output), display.FormatBytes(res.Bytes), variantSuffix(res.Big))
	return rec, nil
}

// readSources opens each input in order and collects every channel plane
// it holds. Multi-scene sources contribute scene 0 only; the first
// declared physical pixel size wins.
func readSources(
	ctx context.Context,
	log *logging.Logger,
	stats *RunStats,
	inputs []string,
) ([]*pixel.Plane, [3]float64, error) {
	var planes []*pixel.Plane
	var phys [3]float64
	havePhys := false

	for _, path := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, phys, err
		}

		h, err := container.Open(path)
		if err != nil {
			return nil, phys, err
		}
		if fi, serr := os.Stat(path); serr == nil {
			stats.addInput(fi.Size())
		}
		if h.SceneCount() > 1 {
			log.Warn("%s holds %d scenes; merging scene 0 only", filepath.Base(path), h.SceneCount())
		}

		for c := range h.ChannelNames(0) {
			p, rerr := h.ReadPlane(0, c)
			if rerr != nil {
				h.Close()
				return nil, phys, fmt.Errorf("%s: %w", filepath.Base(path), rerr)
			}
			planes = append(planes, p)
		}
		if !havePhys {
			phys[0], phys[1], phys[2] = h.PhysicalSizes()
			havePhys = phys != [3]float64{}
		}
		h.Close()
	}
	return planes, phys, nil
}

// failRecord marks rec failed with err, keeping whatever partial detail
// the processor already filled in.
func failRecord(rec manifest.Record, err error) manifest.Record {
	rec.Status = manifest.StatusFailed
	if rec.Error == "" {
		rec.Error = err.Error()
	}
	return rec
}

// unitStatus reduces per-output outcomes to the unit's manifest status.
func unitStatus(failed bool, written, skipped int) manifest.Status {
	switch {
	case failed:
		return manifest.StatusFailed
	case written == 0 && skipped > 0:
		return manifest.StatusSkipped
	default:
		return manifest.StatusOK
	}
}

func appendUnique(list []string, s string) []string {
	for _, have := range list {
		if have == s {
			return list
		}
	}
	return append(list, s)
}

func variantSuffix(big bool) string {
	if big {
		return ", BigTIFF"
	}
	return ""
}

// --- Logging helpers ---

func logBatchHeader(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	noun := "containers"
	switch cfg.Command {
	case config.CommandMerge:
		noun = "merge group"
	case config.CommandPair:
		noun = "seeds"
	}
	log.Info("Found %d %s", stats.Total, pluralFix(stats.Total, noun))

	log.Info("Dtype: %s | Compression: %s | Variant: %s",
		cfg.DType, compressionLabel(cfg.Compress), variantLabel(cfg.ForceBigTIFF))

	if cfg.Command == config.CommandPair {
		rules := "built-in convention"
		if cfg.RulesFile != "" {
			rules = cfg.RulesFile
		}
		log.Info("Rules: %s", rules)
	}
	if cfg.Command == config.CommandSplit && cfg.IncludeEmpty {
		log.Info("Empty scenes: keep all-zero scenes")
	}
	if cfg.Overwrite {
		log.Info("Existing outputs: overwrite")
	} else {
		log.Info("Existing outputs: keep and skip")
	}
	log.Info("Workers: %d", cfg.Jobs)
	if cfg.DryRun {
		log.Warn("DRY RUN - nothing will be written")
	}
	fmt.Println()
}

func compressionLabel(on bool) string {
	if on {
		return "deflate"
	}
	return "none"
}

func variantLabel(forceBig bool) string {
	if forceBig {
		return "BigTIFF (forced)"
	}
	return "auto (BigTIFF past 4 GiB)"
}

// pluralFix trims the plural s when exactly one unit was found. The nouns
// above are chosen so this is the only adjustment needed.
func pluralFix(n int, noun string) string {
	if n == 1 {
		return strings.TrimSuffix(noun, "s")
	}
	return noun
}

func logSummary(cfg *config.Config, log *logging.Logger, stats *RunStats) {
	fmt.Println()
	log.Info("==============================")
	log.Info("Done: %d written, %d skipped, %d failed", stats.Written, stats.Skipped, stats.Failed)
	log.Info("  Units completed: %d of %d", stats.Done, stats.Total)

	if cfg.DryRun {
		log.Info("  Output volume: n/a (dry run)")
		return
	}
	if stats.Written == 0 {
		return
	}

	log.Info("  Input %s -> output %s",
		display.FormatBytes(stats.InputBytes), display.FormatBytes(stats.OutputBytes))
	delta := stats.Delta()
	if delta < 0 {
		log.Success("  Outputs are %s smaller than their sources", display.FormatBytes(-delta))
	} else if delta > 0 {
		log.Info("  Outputs grew by %s (padding and metadata)", display.FormatBytes(delta))
	}
}
