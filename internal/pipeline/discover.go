package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// containerExtensions lists the filename extensions picked up when an
// input argument is a directory. Files named explicitly skip the filter;
// the magic-byte sniff at open time is the real gate.
var containerExtensions = map[string]bool{
	".tif":  true,
	".tiff": true,
}

// Discover expands the input arguments into a flat container list. File
// arguments pass through as given; directory arguments are walked
// recursively, keeping container extensions and pruning "*_export"
// directories so a rerun over a workspace does not pick up its own
// outputs. The result is deduplicated and sorted lexicographically for
// a deterministic unit order.
func Discover(inputs []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, in := range inputs {
		fi, err := os.Stat(in)
		if err != nil {
			return nil, fmt.Errorf("input %s: %w", in, err)
		}
		if !fi.IsDir() {
			add(in)
			continue
		}
		walkErr := filepath.WalkDir(in, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != in && strings.HasSuffix(strings.ToLower(d.Name()), "_export") {
					return filepath.SkipDir
				}
				return nil
			}
			if containerExtensions[strings.ToLower(filepath.Ext(path))] {
				add(path)
			}
			return nil
		})
		if walkErr != nil {
			return nil, fmt.Errorf("scanning %s: %w", in, walkErr)
		}
	}

	sort.Strings(files)
	return files, nil
}

// discoverOne classifies a single input argument: an explicit file is
// the sole candidate, a directory yields its walked contents. Pair uses
// the distinction to tell a user-named seed (which must pair or fail)
// from a walked bystander (which may simply not be a seed).
func discoverOne(in string) (candidates []string, explicit bool, err error) {
	fi, err := os.Stat(in)
	if err != nil {
		return nil, false, fmt.Errorf("input %s: %w", in, err)
	}
	if !fi.IsDir() {
		return []string{in}, true, nil
	}
	candidates, err = Discover([]string{in})
	return candidates, false, err
}
