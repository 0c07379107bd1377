package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/backmassage/scopemux/internal/config"
)

func TestNewLogger_NoFile(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	l := NewLogger(&cfg)
	defer l.Close()
	l.Info("test message")
	l.Debug(false, "suppressed")
}

func TestNewLogger_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "logs", "scopemux.log")
	l := NewLogger(&cfg)
	l.Info("to file")
	l.Warn("rough edge")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("[INFO] to file")) || !bytes.Contains(b, []byte("[WARN] rough edge")) {
		t.Errorf("log file content: %s", string(b))
	}
}

func TestQuietStillReachesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.Quiet = true
	cfg.LogFile = filepath.Join(dir, "scopemux.log")
	l := NewLogger(&cfg)
	l.Info("quiet info")
	l.Success("quiet success")
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	b, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(b, []byte("quiet info")) || !bytes.Contains(b, []byte("quiet success")) {
		t.Errorf("quiet mode dropped file lines: %s", string(b))
	}
}
