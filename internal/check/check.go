// Package check provides system diagnostics (the check command) and
// pre-pipeline validation (CheckDeps) for the workspace and codec paths.
package check

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zlib"

	"github.com/backmassage/scopemux/internal/config"
	"github.com/backmassage/scopemux/internal/container"
	"github.com/backmassage/scopemux/internal/display"
	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/writer"
)

// Sentinel errors returned by CheckDeps when the run cannot possibly
// succeed.
var (
	ErrInputMissing         = errors.New("input path does not exist")
	ErrWorkspaceNotWritable = errors.New("workspace is not writable")
	ErrAtomicRenameFailed   = errors.New("workspace does not support atomic rename")
)

// Logger is the minimal logging interface needed by RunCheck.
// Defined here (rather than importing the logging package) so that check
// remains dependency-light and testable with a mock logger.
type Logger interface {
	Info(string, ...interface{})
	Success(string, ...interface{})
	Warn(string, ...interface{})
	Error(string, ...interface{})
	Debug(bool, string, ...interface{})
}

// RunCheck runs the check command: it probes the workspace for writes and
// atomic renames, self-tests the dtype conversions, the Deflate codec,
// and a full write-then-reopen round trip. It does not stop on failure;
// the return value reports whether every probe passed.
func RunCheck(cfg *config.Config, log Logger) bool {
	log.Info("=== System Check ===")

	ok := checkWorkspace(cfg.Workspace(), log)
	ok = checkConversions(log) && ok
	ok = checkDeflate(log) && ok
	ok = checkRoundTrip(log) && ok
	return ok
}

// checkWorkspace probes dir for regular writes and atomic renames.
func checkWorkspace(dir string, log Logger) bool {
	if err := probeWorkspace(dir); err != nil {
		log.Error("Workspace %s: %v", dir, err)
		return false
	}
	log.Success("Workspace %s: writable, atomic rename ok", dir)
	return true
}

// checkConversions runs the dtype converters over known sample values.
func checkConversions(log Logger) bool {
	src := &pixel.Plane{
		DType: pixel.DTypeUint8,
		SizeX: 3, SizeY: 1, SizeZ: 1,
		Data: []byte{0, 1, 255},
	}
	wide, err := pixel.Convert(src, pixel.DTypeUint16)
	if err != nil {
		log.Error("uint8 to uint16 conversion failed: %v", err)
		return false
	}
	for i, want := range []float64{0, 257, 65535} {
		if got := wide.Sample(i); got != want {
			log.Error("uint8 to uint16: sample %d = %v, want %v", i, got, want)
			return false
		}
	}
	back, err := pixel.Convert(wide, pixel.DTypeUint8)
	if err != nil {
		log.Error("uint16 to uint8 conversion failed: %v", err)
		return false
	}
	for i := range src.Data {
		if got := back.Sample(i); got != float64(src.Data[i]) {
			log.Error("uint16 to uint8: sample %d = %v, want %d", i, got, src.Data[i])
			return false
		}
	}
	log.Success("Sample dtype conversions ok")
	return true
}

// checkDeflate compresses and re-inflates a synthetic strip.
func checkDeflate(log Logger) bool {
	strip := make([]byte, 64*1024)
	for i := range strip {
		strip[i] = byte(i % 251)
	}

	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(strip); err != nil {
		log.Error("Deflate write failed: %v", err)
		return false
	}
	if err := zw.Close(); err != nil {
		log.Error("Deflate close failed: %v", err)
		return false
	}

	zr, err := zlib.NewReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		log.Error("Deflate reopen failed: %v", err)
		return false
	}
	out, err := io.ReadAll(zr)
	zr.Close()
	if err != nil || !bytes.Equal(out, strip) {
		log.Error("Deflate round trip corrupted the strip")
		return false
	}
	log.Success("Deflate codec ok (%s strip to %s)",
		display.FormatBytes(int64(len(strip))), display.FormatBytes(int64(buf.Len())))
	return true
}

// checkRoundTrip writes a tiny image through the full writer and reads it
// back through the container layer.
func checkRoundTrip(log Logger) bool {
	dir, err := os.MkdirTemp("", "scopemux-check-")
	if err != nil {
		log.Error("Temp dir for round trip: %v", err)
		return false
	}
	defer os.RemoveAll(dir)

	img := &pixel.Image{
		Name:  "check",
		DType: pixel.DTypeUint16,
		SizeX: 8, SizeY: 8, SizeZ: 2,
	}
	for c := 0; c < 2; c++ {
		data := make([]byte, 8*8*2*2)
		for i := range data {
			data[i] = byte(i + c*7)
		}
		img.Planes = append(img.Planes, &pixel.Plane{
			Label: fmt.Sprintf("c%02d", c),
			DType: pixel.DTypeUint16,
			SizeX: 8, SizeY: 8, SizeZ: 2,
			Data:  data,
		})
	}

	path := filepath.Join(dir, "check.ome.tif")
	if _, err := writer.Write(context.Background(), img, path, writer.Options{Compress: true}); err != nil {
		log.Error("Round trip write failed: %v", err)
		return false
	}

	h, err := container.Open(path)
	if err != nil {
		log.Error("Round trip reopen failed: %v", err)
		return false
	}
	defer h.Close()

	for c := 0; c < 2; c++ {
		p, err := h.ReadPlane(0, c)
		if err != nil {
			log.Error("Round trip read channel %d: %v", c, err)
			return false
		}
		if !bytes.Equal(p.Data, img.Planes[c].Data) {
			log.Error("Round trip channel %d: samples differ", c)
			return false
		}
	}
	log.Success("OME-TIFF write and reopen ok")
	return true
}

// CheckDeps is the pre-pipeline validation: every input path must exist
// and the workspace must support the atomic write scheme. Dry runs skip
// the workspace probe since nothing will be written.
func CheckDeps(cfg *config.Config) error {
	for _, in := range cfg.Inputs {
		if _, err := os.Stat(in); err != nil {
			return fmt.Errorf("%w: %s", ErrInputMissing, in)
		}
	}
	if cfg.DryRun {
		return nil
	}
	return probeWorkspace(cfg.Workspace())
}

// probeWorkspace verifies dir accepts a write, a sync, and a same-dir
// rename, the operations every output file goes through.
func probeWorkspace(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ErrWorkspaceNotWritable
	}
	probe := filepath.Join(dir, ".scopemux-probe")
	f, err := os.Create(probe)
	if err != nil {
		return ErrWorkspaceNotWritable
	}
	_, werr := f.WriteString("scopemux write probe\n")
	serr := f.Sync()
	cerr := f.Close()
	if werr != nil || serr != nil || cerr != nil {
		os.Remove(probe)
		return ErrWorkspaceNotWritable
	}
	renamed := probe + ".renamed"
	if err := os.Rename(probe, renamed); err != nil {
		os.Remove(probe)
		return ErrAtomicRenameFailed
	}
	return os.Remove(renamed)
}
