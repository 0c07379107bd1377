package config

// This file implements CLI flag parsing and help text. The first argument
// selects the command; each command registers only the flags it honors,
// so a stray flag fails parsing instead of being silently ignored.

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/backmassage/scopemux/internal/pixel"
)

// version is shown in --version and help; override at build time with
// -ldflags "-X github.com/backmassage/scopemux/internal/config.version=...".
var version = "1.0.0-dev"

// Version returns the build version string.
func Version() string { return version }

// ParseFlags parses args (os.Args[1:]) into cfg. On help or version
// requests it prints and exits. On error it returns non-nil (unknown
// command or flag, malformed value); main reports it as a usage error.
func ParseFlags(cfg *Config, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("no command given")
	}

	switch args[0] {
	case "help", "--help", "-h":
		printUsage()
		os.Exit(0)
	case "version", "--version", "-V":
		fmt.Fprintln(os.Stdout, "scopemux v"+version)
		os.Exit(0)
	}
	if strings.HasPrefix(args[0], "-") {
		return fmt.Errorf("the command must come first (got flag %q)", args[0])
	}
	cfg.Command = Command(args[0])

	fs := pflag.NewFlagSet("scopemux "+args[0], pflag.ContinueOnError)
	fs.SortFlags = false
	fs.Usage = printUsage

	var (
		channels   []string
		forceColor bool
		noColor    bool
		showHelp   bool
	)
	defineGlobalFlags(fs, cfg, &forceColor, &noColor, &showHelp)
	defineCommandFlags(fs, cfg, &channels)

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	if showHelp {
		printUsage()
		os.Exit(0)
	}
	if noColor {
		cfg.ColorMode = ColorNever
	} else if forceColor {
		cfg.ColorMode = ColorAlways
	}
	cfg.Channels = SplitList(channels)

	return parsePositionalArgs(fs, cfg)
}

// defineGlobalFlags registers the flags every command shares.
func defineGlobalFlags(fs *pflag.FlagSet, cfg *Config, forceColor, noColor, showHelp *bool) {
	fs.IntVarP(&cfg.Jobs, "jobs", "j", cfg.Jobs, "Parallel units of work")
	fs.BoolVarP(&cfg.Quiet, "quiet", "q", false, "Console errors and warnings only")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Debug output")
	fs.StringVar(&cfg.LogFile, "log-file", "", "Append logs to a rolling file")
	fs.StringVar(&cfg.ManifestPath, "manifest", "", "Per-run JSONL manifest path")
	fs.BoolVar(forceColor, "color", false, "Force colored logs")
	fs.BoolVar(noColor, "no-color", false, "Disable colored logs")
	fs.BoolVarP(showHelp, "help", "h", false, "Show this help and exit")
}

// defineCommandFlags registers the per-command flag set.
func defineCommandFlags(fs *pflag.FlagSet, cfg *Config, channels *[]string) {
	switch cfg.Command {
	case CommandSplit:
		fs.StringSliceVarP(channels, "channels", "c", nil, "Channel label override, one per channel")
		fs.BoolVar(&cfg.IncludeEmpty, "include-empty", false, "Write scenes whose samples are all zero")
		defineOutDirFlag(fs, cfg)
		defineDTypeFlag(fs, cfg)
		defineOutputFlags(fs, cfg)
	case CommandMerge:
		fs.StringSliceVarP(channels, "channels", "c", nil, "Channel labels, one per input")
		defineDTypeFlag(fs, cfg)
		defineOutputFlags(fs, cfg)
	case CommandPair:
		fs.StringVar(&cfg.RulesFile, "rules", "", "YAML naming rules file")
		fs.BoolVarP(&cfg.DryRun, "dry-run", "d", false, "Print pairings without writing")
		defineOutDirFlag(fs, cfg)
		defineDTypeFlag(fs, cfg)
		defineOutputFlags(fs, cfg)
	case CommandConvert:
		defineOutDirFlag(fs, cfg)
		defineDTypeFlag(fs, cfg)
		defineOutputFlags(fs, cfg)
	}
}

// defineOutputFlags registers the flags of every writing command.
func defineOutputFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.Compress, "compress", "z", false, "Deflate-compress pixel strips")
	fs.BoolVar(&cfg.ForceBigTIFF, "force-bigtiff", false, "Write BigTIFF regardless of projected size")
	fs.BoolVarP(&cfg.Overwrite, "overwrite", "f", false, "Replace existing outputs instead of skipping")
}

func defineOutDirFlag(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.OutDir, "out-dir", "o", "", "Output root (default: alongside each input)")
}

func defineDTypeFlag(fs *pflag.FlagSet, cfg *Config) {
	fs.Var(&dtypeValue{&cfg.DType}, "dtype", "Sample dtype: uint8 | uint16 | float32 | native")
}

// parsePositionalArgs distributes fs.Args() into the path fields.
func parsePositionalArgs(fs *pflag.FlagSet, cfg *Config) error {
	args := fs.Args()
	switch cfg.Command {
	case CommandMerge:
		if len(args) == 0 {
			return errors.New("merge needs an output path followed by its inputs")
		}
		cfg.Output = args[0]
		cfg.Inputs = args[1:]
	case CommandCheck:
		if len(args) != 0 {
			return fmt.Errorf("check takes no arguments (got %q)", args[0])
		}
	default:
		cfg.Inputs = args
	}
	return nil
}

// printUsage writes the help text to stderr. Column-aligned for
// readability.
func printUsage() {
	const col1 = 30 // width of "  -x, --long-name <arg>  "
	lines := []struct {
		flags string
		desc  string
	}{
		{"", "scopemux v" + version + " - microscopy containers to OME-TIFF"},
		{"", ""},
		{"  scopemux <command> [flags] <args>", ""},
		{"", ""},
		{"Commands", ""},
		{"  split <container>...", "Extract every scene/channel to its own OME-TIFF"},
		{"  merge <output> <input>...", "Consolidate single-channel inputs into one file"},
		{"  pair <seed>...", "Derive channel siblings by naming rules, merge each group"},
		{"  convert <container>...", "Convert whole containers, all channels kept"},
		{"  info <container>...", "Inspect containers: scenes, channels, extent, dtype"},
		{"  check", "Environment diagnostics"},
		{"", ""},
		{"Channels & conversion", ""},
		{"  -c, --channels <list>", "Channel labels, comma or space separated"},
		{"  --dtype <type>", "Sample dtype: uint8 | uint16 | float32 | native"},
		{"  --rules <file>", "YAML naming rules for pair (default: built-in)"},
		{"  --include-empty", "Write scenes whose samples are all zero"},
		{"", ""},
		{"Output", ""},
		{"  -o, --out-dir <dir>", "Output root (default: alongside each input)"},
		{"  -z, --compress", "Deflate-compress pixel strips"},
		{"  --force-bigtiff", "Write BigTIFF regardless of projected size"},
		{"  -f, --overwrite", "Replace existing outputs instead of skipping"},
		{"  -d, --dry-run", "Print pairings without writing (pair)"},
		{"", ""},
		{"Execution & logging", ""},
		{"  -j, --jobs <n>", "Parallel units of work (default: min(4, cores))"},
		{"  --manifest <path>", "Per-run JSONL manifest (default: <out-dir>/scopemux-run.jsonl)"},
		{"  --log-file <path>", "Append logs to a rolling file"},
		{"  -q, --quiet", "Console errors and warnings only"},
		{"  -v, --verbose", "Debug output"},
		{"  --color / --no-color", "Force or disable ANSI colors"},
		{"  -V, --version", "Print version and exit"},
		{"  -h, --help", "Show this help and exit"},
	}

	for _, l := range lines {
		if l.flags == "" && l.desc == "" {
			fmt.Fprintln(os.Stderr)
			continue
		}
		if l.desc == "" {
			fmt.Fprintln(os.Stderr, l.flags)
			continue
		}
		if l.flags == "" {
			fmt.Fprintln(os.Stderr, l.desc)
			continue
		}
		padding := col1 - len(l.flags)
		if padding < 1 {
			padding = 1
		}
		fmt.Fprintf(os.Stderr, "%s%*s%s\n", l.flags, padding, "", l.desc)
	}
}

// dtypeValue adapts pixel.DType to pflag.Value so --dtype validates at
// parse time.
type dtypeValue struct{ p *pixel.DType }

func (d *dtypeValue) String() string { return string(*d.p) }
func (d *dtypeValue) Type() string   { return "dtype" }
func (d *dtypeValue) Set(s string) error {
	v, err := pixel.ParseTarget(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return fmt.Errorf("invalid dtype %q (use 'uint8', 'uint16', 'float32' or 'native')", s)
	}
	*d.p = v
	return nil
}
