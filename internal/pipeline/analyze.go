package pipeline

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/backmassage/scopemux/internal/config"
	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/display"
	"github.com/backmassage/scopemux/internal/logging"
	"github.com/backmassage/scopemux/internal/term"
	"github.com/backmassage/scopemux/internal/writer"
)

// containerRow holds the surveyed per-container data for the info table.
type containerRow struct {
	Name     string
	Scenes   int
	Channels string
	Extent   string
	DType    string
	Variant  string
	Payload  int64 // raw pixel bytes across all scenes
}

// Analyze surveys every discovered container without decoding pixels and
// prints a tabular report with statistical outlier highlighting on the
// payload size. An unusually small or large container in an otherwise
// uniform acquisition batch is usually a truncated export or a stray
// file. Returns false when any container could not be read.
func Analyze(ctx context.Context, cfg *config.Config, log *logging.Logger) bool {
	files, err := Discover(cfg.Inputs)
	if err != nil {
		log.Error("%v", err)
		return false
	}
	if len(files) == 0 {
		log.Warn("No containers found")
		return true
	}

	total := len(files)
	log.Info("Surveying %d containers …", total)
	fmt.Println()

	isTTY := term.IsTerminal(os.Stdout)
	var rows []containerRow
	var failed int
	var payloadVals []float64

	for i, path := range files {
		if ctx.Err() != nil {
			if isTTY {
				clearProgress()
			}
			log.Warn("Interrupted")
			return failed == 0
		}

		printProgress(isTTY, i+1, total, failed, filepath.Base(path))

		row, err := surveyContainer(path)
		if err != nil {
			failed++
			if isTTY {
				clearProgress()
			}
			log.Error("Skip (unreadable): %s: %v", filepath.Base(path), err)
			continue
		}

		rows = append(rows, row)
		if row.Payload > 0 {
			payloadVals = append(payloadVals, float64(row.Payload))
		}
	}

	if isTTY {
		clearProgress()
	}

	if len(rows) == 0 {
		log.Warn("No containers could be read")
		return failed == 0
	}

	bounds := computeStats(payloadVals)
	printSurveyTable(rows, bounds)
	printSurveySummary(log, rows, bounds, failed)
	return failed == 0
}

// surveyContainer opens one container and collects its declared layout.
// Only metadata is touched; pixel strips stay on disk.
func surveyContainer(path string) (containerRow, error) {
	h, err := container.Open(path)
	if err != nil {
		return containerRow{}, err
	}
	defer h.Close()

	row := containerRow{Name: filepath.Base(path), Scenes: h.SceneCount()}

	var payload int64
	dtypes := make(map[string]bool)
	for s := 0; s < h.SceneCount(); s++ {
		x, y, z, err := h.SceneExtent(s)
		if err != nil {
			return containerRow{}, err
		}
		d, err := h.SceneDType(s)
		if err != nil {
			return containerRow{}, err
		}
		names := h.ChannelNames(s)
		payload += int64(x) * int64(y) * int64(z) * int64(len(names)) * int64(d.BytesPerSample())
		if d != "" {
			dtypes[string(d)] = true
		}

		if s == 0 {
			row.Extent = fmt.Sprintf("%dx%dx%d", x, y, z)
			row.Channels = channelSummary(names)
		}
	}

	row.Payload = payload
	row.DType = joinSorted(dtypes)
	row.Variant = "classic"
	if writer.SelectBig(payload, false) {
		row.Variant = "big"
	}
	return row, nil
}

// channelSummary renders scene-0 channel names compactly: declared names
// joined by comma, a bare count when the container names nothing.
func channelSummary(names []string) string {
	named := false
	for _, n := range names {
		if n != "" {
			named = true
			break
		}
	}
	if !named {
		return fmt.Sprintf("%d", len(names))
	}
	s := strings.Join(names, ",")
	if len(s) > 24 {
		s = s[:23] + "…"
	}
	return s
}

func joinSorted(set map[string]bool) string {
	if len(set) == 0 {
		return "n/a"
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "/")
}

// iqrBounds holds the IQR-based thresholds for outlier classification.
type iqrBounds struct {
	q1, q3    float64
	outlierLo float64 // Q1 - 1.5*IQR
	outlierHi float64 // Q3 + 1.5*IQR
	extremeLo float64 // Q1 - 3.0*IQR
	extremeHi float64 // Q3 + 3.0*IQR
	valid     bool
}

func computeStats(vals []float64) iqrBounds {
	if len(vals) < 4 {
		return iqrBounds{}
	}

	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)

	q1 := percentile(sorted, 25)
	q3 := percentile(sorted, 75)
	iqr := q3 - q1

	return iqrBounds{
		q1:        q1,
		q3:        q3,
		outlierLo: q1 - 1.5*iqr,
		outlierHi: q3 + 1.5*iqr,
		extremeLo: q1 - 3.0*iqr,
		extremeHi: q3 + 3.0*iqr,
		valid:     iqr > 0,
	}
}

// classify returns "" (normal), "outlier", or "extreme" for a value.
func (b *iqrBounds) classify(v float64) string {
	if !b.valid || v <= 0 {
		return ""
	}
	if v < b.extremeLo || v > b.extremeHi {
		return "extreme"
	}
	if v < b.outlierLo || v > b.outlierHi {
		return "outlier"
	}
	return ""
}

func printSurveyTable(rows []containerRow, bounds iqrBounds) {
	nameW := len("File")
	scW := len("Scenes")
	chW := len("Channels")
	exW := len("Extent")
	dtW := len("Dtype")
	vaW := len("Variant")
	szW := len("Size")

	for _, r := range rows {
		if len(r.Name) > nameW {
			nameW = len(r.Name)
		}
		if len(r.Channels) > chW {
			chW = len(r.Channels)
		}
		if len(r.Extent) > exW {
			exW = len(r.Extent)
		}
		if len(r.DType) > dtW {
			dtW = len(r.DType)
		}
		if s := display.FormatBytes(r.Payload); len(s) > szW {
			szW = len(s)
		}
	}

	if nameW > 50 {
		nameW = 50
	}

	header := fmt.Sprintf("  %-*s  %*s  %-*s  %-*s  %-*s  %-*s  %-*s",
		nameW, "File",
		scW, "Scenes",
		chW, "Channels",
		exW, "Extent",
		dtW, "Dtype",
		vaW, "Variant",
		szW, "Size",
	)
	separator := "  " + strings.Repeat("─", len(header)-2)

	fmt.Println(header)
	fmt.Println(separator)

	for _, r := range rows {
		name := r.Name
		if len(name) > nameW {
			name = name[:nameW-1] + "…"
		}

		class := bounds.classify(float64(r.Payload))
		// Pad the plain text first, then wrap in ANSI color. This avoids
		// the alignment bug where %-*s counts escape bytes as visible width.
		szCell := colorPad(display.FormatBytes(r.Payload), szW, class)

		fmt.Printf("  %-*s  %*d  %-*s  %-*s  %-*s  %-*s  %s  %s\n",
			nameW, name,
			scW, r.Scenes,
			chW, r.Channels,
			exW, r.Extent,
			dtW, r.DType,
			vaW, r.Variant,
			szCell,
			formatFlag(class),
		)
	}
	fmt.Println()
}

func printSurveySummary(log *logging.Logger, rows []containerRow, bounds iqrBounds, failed int) {
	var outliers, extremes int
	for _, r := range rows {
		switch bounds.classify(float64(r.Payload)) {
		case "extreme":
			extremes++
		case "outlier":
			outliers++
		}
	}

	log.Info("Surveyed %d containers", len(rows))
	if bounds.valid {
		log.Info("  Payload IQR: %s – %s (outlier < %s or > %s)",
			display.FormatBytes(int64(bounds.q1)), display.FormatBytes(int64(bounds.q3)),
			display.FormatBytes(int64(bounds.outlierLo)), display.FormatBytes(int64(bounds.outlierHi)))
	}
	if outliers > 0 {
		log.Outlier("  %d outlier(s) flagged [*]", outliers)
	}
	if extremes > 0 {
		log.Error("  %d extreme outlier(s) flagged [!]", extremes)
	}
	if outliers == 0 && extremes == 0 {
		log.Success("  No outliers detected")
	}
	if failed > 0 {
		log.Error("  %d container(s) unreadable", failed)
	}
}

func formatFlag(flag string) string {
	switch flag {
	case "extreme":
		return term.Red + "[!]" + term.NC
	case "outlier":
		return term.Orange + "[*]" + term.NC
	default:
		return ""
	}
}

// colorPad pads a plain string to width, then wraps in ANSI color. This
// ensures %-*s-style alignment works correctly regardless of escape sequences.
func colorPad(s string, width int, class string) string {
	padded := fmt.Sprintf("%-*s", width, s)
	switch class {
	case "extreme":
		return term.Red + padded + term.NC
	case "outlier":
		return term.Orange + padded + term.NC
	default:
		return padded
	}
}

// printProgress shows a live survey counter. On a TTY it writes an
// inline \r-overwritten line; otherwise it is a no-op (the unreadable
// warnings already provide enough breadcrumbs in piped/logged output).
func printProgress(isTTY bool, current, total, failed int, name string) {
	if !isTTY {
		return
	}
	pct := current * 100 / total
	status := fmt.Sprintf("  Scanning [%d/%d] %d%% ", current, total, pct)
	if failed > 0 {
		status += fmt.Sprintf("(%d unreadable) ", failed)
	}

	maxName := 40
	if len(name) > maxName {
		name = name[:maxName-1] + "…"
	}
	status += name

	// Pad to 80 chars to overwrite previous longer lines, then \r.
	if len(status) < 80 {
		status += strings.Repeat(" ", 80-len(status))
	}
	fmt.Fprintf(os.Stdout, "\r%s", status)
}

// clearProgress erases the inline progress line on a TTY.
func clearProgress() {
	fmt.Fprintf(os.Stdout, "\r%s\r", strings.Repeat(" ", 80))
}

// percentile computes the p-th percentile using linear interpolation.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := (p / 100) * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi || hi >= len(sorted) {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
