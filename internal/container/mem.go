package container

import (
	"fmt"

	"github.com/backmassage/scopemux/internal/pixel"
)

// Mem is an in-memory Handle for tests and self-diagnostics. Scenes and
// planes are declared directly; ReadErrs injects per-plane read failures.
type Mem struct {
	Name   string
	Scenes []MemScene

	PhysX, PhysY, PhysZ float64

	// ReadErrs maps {scene, channel} to an injected ReadPlane error.
	ReadErrs map[[2]int]error

	Closed bool
}

// MemScene is one synthetic scene. Extent defaults to the first plane's
// when the Size fields are zero, so zero-extent scenes are declared by
// leaving Planes empty. DType likewise defaults to the first plane's.
type MemScene struct {
	SceneName           string
	Names               []string
	Planes              []*pixel.Plane
	SizeX, SizeY, SizeZ int
	DType               pixel.DType
}

var _ Handle = (*Mem)(nil)

func (m *Mem) Path() string    { return m.Name }
func (m *Mem) SceneCount() int { return len(m.Scenes) }

func (m *Mem) SceneName(scene int) string {
	if scene < 0 || scene >= len(m.Scenes) {
		return ""
	}
	return m.Scenes[scene].SceneName
}

func (m *Mem) ChannelNames(scene int) []string {
	if scene < 0 || scene >= len(m.Scenes) {
		return nil
	}
	sc := m.Scenes[scene]
	if len(sc.Names) > 0 {
		return append([]string(nil), sc.Names...)
	}
	names := make([]string, len(sc.Planes))
	for i, p := range sc.Planes {
		names[i] = p.Label
	}
	return names
}

func (m *Mem) SceneExtent(scene int) (int, int, int, error) {
	if scene < 0 || scene >= len(m.Scenes) {
		return 0, 0, 0, fmt.Errorf("scene %d of %d", scene, len(m.Scenes))
	}
	sc := m.Scenes[scene]
	if sc.SizeX > 0 || sc.SizeY > 0 || sc.SizeZ > 0 {
		return sc.SizeX, sc.SizeY, sc.SizeZ, nil
	}
	if len(sc.Planes) == 0 {
		return 0, 0, 0, nil
	}
	p := sc.Planes[0]
	return p.SizeX, p.SizeY, p.SizeZ, nil
}

func (m *Mem) SceneDType(scene int) (pixel.DType, error) {
	if scene < 0 || scene >= len(m.Scenes) {
		return "", fmt.Errorf("scene %d of %d", scene, len(m.Scenes))
	}
	sc := m.Scenes[scene]
	if sc.DType != "" {
		return sc.DType, nil
	}
	if len(sc.Planes) > 0 {
		return sc.Planes[0].DType, nil
	}
	return "", nil
}

func (m *Mem) PhysicalSizes() (float64, float64, float64) {
	return m.PhysX, m.PhysY, m.PhysZ
}

func (m *Mem) ReadPlane(scene, channel int) (*pixel.Plane, error) {
	if err := m.ReadErrs[[2]int{scene, channel}]; err != nil {
		return nil, err
	}
	if scene < 0 || scene >= len(m.Scenes) {
		return nil, fmt.Errorf("scene %d of %d", scene, len(m.Scenes))
	}
	sc := m.Scenes[scene]
	if channel < 0 || channel >= len(sc.Planes) {
		return nil, fmt.Errorf("channel %d of %d in scene %d", channel, len(sc.Planes), scene)
	}
	// Shallow copy so callers can relabel without touching the fixture.
	cp := *sc.Planes[channel]
	return &cp, nil
}

func (m *Mem) Close() error {
	m.Closed = true
	return nil
}
