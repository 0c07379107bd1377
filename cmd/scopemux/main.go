// Command scopemux is the CLI entrypoint for the scopemux microscopy
// conversion toolkit.
//
// It parses the subcommand and flags, validates configuration, and runs
// environment diagnostics (check), the container survey (info), or the
// batch conversion pipeline (split, merge, pair, convert).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/backmassage/scopemux/internal/check"
	"github.com/backmassage/scopemux/internal/config"
	"github.com/backmassage/scopemux/internal/display"
	"github.com/backmassage/scopemux/internal/logging"
	"github.com/backmassage/scopemux/internal/naming"
	"github.com/backmassage/scopemux/internal/pipeline"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Phase 1: Bootstrap — the logger doesn't exist yet, so errors go
	// directly to stderr via fmt. Once NewLogger succeeds, all output
	// goes through the logger for consistent formatting and log-file
	// capture. Exit status 2 marks usage and configuration errors,
	// 1 marks processing failures.
	cfg := config.DefaultConfig()
	if err := config.ParseFlags(&cfg, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "scopemux: %v\n", err)
		return 2
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "scopemux: %v\n", err)
		return 2
	}

	// A malformed rules file is a configuration error, caught before any
	// unit runs.
	if cfg.Command == config.CommandPair && cfg.RulesFile != "" {
		if _, err := naming.LoadConvention(cfg.RulesFile); err != nil {
			fmt.Fprintf(os.Stderr, "scopemux: %v\n", err)
			return 2
		}
	}

	log := logging.NewLogger(&cfg)
	defer log.Close()

	// Phase 2: Logger available — all output goes through log from here on.
	if !cfg.Quiet {
		display.PrintBanner()
	}

	if cfg.Command == config.CommandCheck {
		if !check.RunCheck(&cfg, log) {
			return 1
		}
		return 0
	}

	// Phase 3: Signal handling — cancel the run context on SIGINT/SIGTERM
	// so in-flight units stop at their next checkpoint. Committed outputs
	// are safe either way: the writer publishes by rename.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn("Received interrupt, finishing in-flight units…")
		cancel()
	}()

	if cfg.Command == config.CommandInfo {
		if !pipeline.Analyze(ctx, &cfg, log) {
			return 1
		}
		return 0
	}

	log.Info("=== scopemux v%s (%s) ===", config.Version(), cfg.Command)
	log.Info("In:  %s", strings.Join(cfg.Inputs, ", "))
	switch {
	case cfg.Command == config.CommandMerge:
		log.Info("Out: %s", cfg.Output)
	case cfg.OutDir != "":
		log.Info("Out: %s", cfg.OutDir)
	default:
		log.Info("Out: alongside each input")
	}
	log.Info("")

	// Fail fast when inputs are absent or the workspace cannot take the
	// atomic write scheme.
	if err := check.CheckDeps(&cfg); err != nil {
		log.Error("%v", err)
		return 2
	}

	// Phase 4: Run the batch (expand units → read → consolidate → write).
	stats := pipeline.Run(ctx, &cfg, log)

	if stats.Failed > 0 {
		return 1
	}
	return 0
}
