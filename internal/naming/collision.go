package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// CollisionResolver tracks output paths claimed by pairings and resolves
// duplicates by inserting _dupN before the extension. Two seeds deriving
// the same merged name is a misconfigured rule set, but the batch must not
// silently overwrite one output with the other. All methods are
// goroutine-safe.
type CollisionResolver struct {
	mu       sync.Mutex
	owners   map[string]string // output path → seed path that owns it
	counters map[string]int    // base output path → next dup counter
}

// NewCollisionResolver creates a ready-to-use resolver.
func NewCollisionResolver() *CollisionResolver {
	return &CollisionResolver{
		owners:   make(map[string]string),
		counters: make(map[string]int),
	}
}

// Resolve returns the final output path for seed, handling collisions.
// If requestedOutput is unclaimed (or already owned by seed), it is
// returned as-is. Otherwise a _dupN variant is generated.
func (cr *CollisionResolver) Resolve(seed, requestedOutput string) string {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	owner, exists := cr.owners[requestedOutput]
	if !exists || owner == seed {
		cr.owners[requestedOutput] = seed
		return requestedOutput
	}

	dir := filepath.Dir(requestedOutput)
	base := filepath.Base(requestedOutput)
	stem, ext := splitExt(base)

	counter := cr.counters[requestedOutput]
	if counter == 0 {
		counter = 1
	}

	for {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_dup%d%s", stem, counter, ext))
		cOwner, cExists := cr.owners[candidate]
		if !cExists || cOwner == seed {
			cr.counters[requestedOutput] = counter + 1
			cr.owners[candidate] = seed
			return candidate
		}
		counter++
	}
}

// splitExt splits a basename into stem and extension, keeping the compound
// .ome.tif endings intact so dup markers land before them.
func splitExt(base string) (string, string) {
	lower := strings.ToLower(base)
	for _, ext := range []string{".ome.tiff", ".ome.tif", ".ome.xml"} {
		if strings.HasSuffix(lower, ext) {
			return base[:len(base)-len(ext)], base[len(base)-len(ext):]
		}
	}
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}
