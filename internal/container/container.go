// Package container is the reader boundary between the pipeline and
// microscopy file formats. Commands never touch format details directly;
// they open a path, get a [Handle], and pull scenes and channel planes
// through it. Formats register an opener keyed by magic-byte sniffing, so
// adding a backend never changes a caller.
package container

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/backmassage/scopemux/internal/pixel"
	"github.com/backmassage/scopemux/internal/tiff"
)

var (
	// ErrUnsupportedFormat marks files whose magic matches no registered
	// backend.
	ErrUnsupportedFormat = errors.New("unsupported container format")

	// ErrCorruptData marks files a backend recognized but could not read
	// through: truncated strips, broken directory chains, metadata that
	// contradicts the pixel payload.
	ErrCorruptData = errors.New("corrupt container data")

	// ErrChannelCountMismatch is raised when a caller-supplied channel
	// list does not line up with the channels a container actually holds.
	ErrChannelCountMismatch = errors.New("channel count mismatch")
)

// Handle is read access to one opened container. Scene and channel
// indices are zero-based. Implementations keep the file open for lazy
// plane reads until Close.
type Handle interface {
	// Path returns the path the handle was opened from.
	Path() string

	// SceneCount returns the number of scenes (acquisition positions).
	SceneCount() int

	// SceneName returns the container-declared scene name, or "" when the
	// format carries none.
	SceneName(scene int) string

	// ChannelNames returns the declared channel names of one scene, in
	// storage order. Entries may be empty strings; the slice length is the
	// scene's channel count.
	ChannelNames(scene int) []string

	// SceneExtent returns the pixel grid of one scene.
	SceneExtent(scene int) (x, y, z int, err error)

	// SceneDType returns the declared sample dtype of one scene without
	// decoding any pixels.
	SceneDType(scene int) (pixel.DType, error)

	// ReadPlane decodes the full Z-stack of one channel of one scene.
	ReadPlane(scene, channel int) (*pixel.Plane, error)

	// PhysicalSizes returns the voxel size in micrometers per axis, zero
	// when the container does not declare one.
	PhysicalSizes() (x, y, z float64)

	// Close releases the underlying file.
	Close() error
}

// format couples a magic-sniffing predicate with its opener.
type format struct {
	name  string
	sniff func(head []byte) bool
	open  func(path string) (Handle, error)
}

// formats is the backend registry, probed in order.
var formats = []format{
	{name: "tiff", sniff: tiff.Sniff, open: openTIFF},
}

// Open sniffs the leading bytes of the file and dispatches to the
// matching backend. Unknown magic returns ErrUnsupportedFormat.
func Open(path string) (Handle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	head := make([]byte, 16)
	n, err := io.ReadFull(f, head)
	f.Close()
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, filepath.Base(path), err)
	}

	for _, fm := range formats {
		if fm.sniff(head[:n]) {
			return fm.open(path)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
}
