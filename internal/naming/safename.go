package naming

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// OutExt is the extension of every OME-TIFF this tool writes.
const OutExt = ".ome.tif"

// MetaExt is the extension of the standalone metadata sidecar written by
// the convert operation.
const MetaExt = ".ome.xml"

var reUnsafe = regexp.MustCompile(`[^\w\-.]+`)

// SafeName makes a string safe for use as a path component: runs of
// characters outside [A-Za-z0-9_.-] collapse to a single underscore, and a
// name that sanitizes to nothing becomes "unnamed".
func SafeName(name string) string {
	s := reUnsafe.ReplaceAllString(name, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "unnamed"
	}
	return s
}

// Stem strips the extension from a container basename, treating the
// compound .ome.tif/.ome.tiff endings as one extension.
func Stem(base string) string {
	lower := strings.ToLower(base)
	for _, ext := range []string{".ome.tiff", ".ome.tif", ".ome.xml"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)]
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SceneDir names the per-scene output subdirectory. Unnamed scenes use
// their zero-based index.
func SceneDir(sceneName string, index int) string {
	if strings.TrimSpace(sceneName) == "" {
		return fmt.Sprintf("scene_%02d", index)
	}
	return "scene_" + SafeName(sceneName)
}

// SplitFileName names one extracted channel file. Labeled channels get a
// _ch-<label> part; unlabeled ones fall back to the positional _c<NN> form.
func SplitFileName(stem, sceneName string, sceneIndex int, label string, channel int) string {
	scenePart := fmt.Sprintf("%02d", sceneIndex)
	if strings.TrimSpace(sceneName) != "" {
		scenePart = SafeName(sceneName)
	}
	chPart := fmt.Sprintf("_c%02d", channel)
	if strings.TrimSpace(label) != "" {
		chPart = "_ch-" + SafeName(label)
	}
	return fmt.Sprintf("%s_scene-%s%s%s", SafeName(stem), scenePart, chPart, OutExt)
}

// ConvertFileName names the whole-container conversion output for one scene.
func ConvertFileName(stem, sceneName string, sceneIndex int) string {
	scenePart := fmt.Sprintf("%02d", sceneIndex)
	if strings.TrimSpace(sceneName) != "" {
		scenePart = SafeName(sceneName)
	}
	return fmt.Sprintf("%s_scene-%s%s", SafeName(stem), scenePart, OutExt)
}

// ExportDir is the default output directory for split when the caller
// gives none: "<stem>_export" next to the input.
func ExportDir(sourcePath string) string {
	dir := filepath.Dir(sourcePath)
	return filepath.Join(dir, Stem(filepath.Base(sourcePath))+"_export")
}
