// Package config holds runtime configuration: defaults, CLI flag parsing,
// and validation. One Config is constructed in main and passed down by
// pointer; no package reads flags or environment on its own.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/backmassage/scopemux/internal/pixel"
)

// --- Enum types for validated string fields ---

// Command is the selected subcommand.
type Command string

const (
	CommandSplit   Command = "split"   // Extract every scene/channel to its own file.
	CommandMerge   Command = "merge"   // Consolidate single-channel inputs into one file.
	CommandPair    Command = "pair"    // Rule-driven batch merge over seed files.
	CommandConvert Command = "convert" // Whole-container conversion, all channels kept.
	CommandInfo    Command = "info"    // Inspect containers without writing anything.
	CommandCheck   Command = "check"   // Environment diagnostics.
)

// ColorMode controls ANSI color output.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"   // Enable colors when stdout is a TTY (default).
	ColorAlways ColorMode = "always" // Force colors on.
	ColorNever  ColorMode = "never"  // Disable colors entirely.
)

// Config holds all runtime settings. It is populated by [DefaultConfig]
// and then mutated by [ParseFlags] before being passed (by pointer) to
// packages that need it.
type Config struct {
	Command Command

	// Paths (set from positional args).
	Inputs []string // Containers (split/convert), ordered sources (merge), seeds or dirs (pair).
	Output string   // Merge only: the output file path.
	OutDir string   // Output root; empty means alongside the input.

	// Channel and conversion settings.
	Channels  []string    // Channel label override (split) or merge labels, in order.
	DType     pixel.DType // Conversion target. Default: native (keep source dtype).
	RulesFile string      // Pair: YAML naming rules; empty uses the built-in convention.

	// Behavior flags.
	IncludeEmpty bool // Write scenes whose samples are all zero.
	ForceBigTIFF bool // BigTIFF regardless of projected size.
	Compress     bool // Deflate strips.
	Overwrite    bool // Replace existing outputs instead of skipping.
	DryRun       bool // Pair: print pairings without writing.

	// Execution.
	Jobs int // Parallel units. Default: min(4, GOMAXPROCS).

	// Display and logging.
	Quiet        bool      // Drop Info/Success from the console (file sink keeps them).
	Verbose      bool
	ColorMode    ColorMode // Default: "auto".
	LogFile      string    // Optional rolling log file path.
	ManifestPath string    // Default: "<out dir>/scopemux-run.jsonl".
}

// DefaultConfig returns a Config with all defaults applied. Used as the
// base before [ParseFlags] applies CLI overrides.
func DefaultConfig() Config {
	return Config{
		DType:     pixel.DTypeNative,
		Jobs:      defaultJobs(),
		ColorMode: ColorAuto,
	}
}

// defaultJobs caps the worker pool at four: units are I/O heavy and wider
// pools mostly fight the disk.
func defaultJobs() int {
	n := runtime.GOMAXPROCS(0)
	if n > 4 {
		n = 4
	}
	if n < 1 {
		n = 1
	}
	return n
}

// SplitList splits list-valued arguments on commas and whitespace, so
// "DAPI,GFP" and "DAPI GFP" both give two entries. Empty parts drop out.
func SplitList(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.FieldsFunc(v, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		}) {
			out = append(out, part)
		}
	}
	return out
}

// Workspace returns the directory outputs land in: the explicit out dir,
// the merge output's directory, or the current directory.
func (c *Config) Workspace() string {
	if c.OutDir != "" {
		return c.OutDir
	}
	if c.Command == CommandMerge && c.Output != "" {
		return filepath.Dir(c.Output)
	}
	return "."
}

// Validate checks enum fields and the per-command argument shape. Errors
// here are usage errors: main reports them and exits with status 2.
func (c *Config) Validate() error {
	switch c.Command {
	case CommandSplit, CommandMerge, CommandPair, CommandConvert, CommandInfo, CommandCheck:
		// valid
	default:
		return fmt.Errorf("unknown command %q (run 'scopemux help')", c.Command)
	}

	switch c.ColorMode {
	case ColorAuto, ColorAlways, ColorNever:
		// valid
	default:
		return errors.New("invalid color mode (use 'auto', 'always' or 'never')")
	}

	d, err := pixel.ParseTarget(string(c.DType))
	if err != nil {
		return fmt.Errorf("invalid dtype %q (use 'uint8', 'uint16', 'float32' or 'native')", c.DType)
	}
	c.DType = d

	if c.Jobs < 1 {
		return errors.New("jobs must be at least 1")
	}

	switch c.Command {
	case CommandCheck:
		return nil
	case CommandMerge:
		if c.Output == "" || len(c.Inputs) < 2 {
			return errors.New("merge needs an output path followed by at least two inputs")
		}
		if len(c.Channels) == 0 {
			return errors.New("merge needs -c with one channel label per input")
		}
		if len(c.Channels) != len(c.Inputs) {
			return fmt.Errorf("%d channel labels for %d inputs", len(c.Channels), len(c.Inputs))
		}
	case CommandSplit, CommandConvert, CommandInfo:
		if len(c.Inputs) == 0 {
			return errors.New("need at least one container file or directory")
		}
	case CommandPair:
		if len(c.Inputs) == 0 {
			return errors.New("need at least one seed file or directory")
		}
	}
	return nil
}
