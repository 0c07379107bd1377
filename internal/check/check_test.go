package check

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/backmassage/scopemux/internal/config"
)

type memLog struct {
	errors int
}

func (l *memLog) Info(string, ...interface{})        {}
func (l *memLog) Success(string, ...interface{})     {}
func (l *memLog) Warn(string, ...interface{})        {}
func (l *memLog) Error(string, ...interface{})       { l.errors++ }
func (l *memLog) Debug(bool, string, ...interface{}) {}

func TestRunCheckPasses(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Command = config.CommandCheck
	cfg.OutDir = t.TempDir()

	log := &memLog{}
	if !RunCheck(&cfg, log) {
		t.Fatal("RunCheck reported failure on a healthy workspace")
	}
	if log.errors != 0 {
		t.Errorf("RunCheck logged %d errors", log.errors)
	}
}

func TestCheckDeps(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "sample.tif")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Command = config.CommandSplit
	cfg.Inputs = []string{input}
	cfg.OutDir = filepath.Join(dir, "out")
	if err := CheckDeps(&cfg); err != nil {
		t.Fatalf("CheckDeps() = %v", err)
	}

	cfg.Inputs = []string{filepath.Join(dir, "missing.tif")}
	if err := CheckDeps(&cfg); !errors.Is(err, ErrInputMissing) {
		t.Errorf("CheckDeps() = %v, want ErrInputMissing", err)
	}
}

func TestCheckDepsDryRunSkipsProbe(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "seed.tif")
	if err := os.WriteFile(input, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Command = config.CommandPair
	cfg.Inputs = []string{input}
	cfg.OutDir = filepath.Join(dir, "never-created")
	cfg.DryRun = true
	if err := CheckDeps(&cfg); err != nil {
		t.Fatalf("CheckDeps() = %v", err)
	}
	if _, err := os.Stat(cfg.OutDir); !os.IsNotExist(err) {
		t.Error("dry run should not touch the workspace")
	}
}
