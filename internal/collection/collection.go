// Package collection holds the ordered test collection a pipeline run
// operates on.
//
// The collection is discovered once at startup and is immutable for the
// duration of the run. Stages never mutate it; they only read the sub-slice
// their boundary selects. Immutability is what makes the stage layout
// meaningful: every stage of a run, whether it executes on this machine or
// another, must observe the same identifiers in the same order.
package collection

import (
	"context"
	"fmt"

	"github.com/vk/stagehand/internal/ctxlog"
	"github.com/vk/stagehand/internal/fsutil"
)

// Collection is an ordered, read-only sequence of test identifiers.
type Collection struct {
	ids []string
}

// New builds a collection from the given identifiers. The slice is copied so
// later mutation by the caller cannot leak into a running pipeline.
func New(ids []string) *Collection {
	copied := make([]string, len(ids))
	copy(copied, ids)
	return &Collection{ids: copied}
}

// Count returns the total number of tests in the collection.
func (c *Collection) Count() int {
	return len(c.ids)
}

// Slice returns the identifiers in [lo, hi). The caller is expected to pass
// a range already resolved by partition.Boundary.Slice.
func (c *Collection) Slice(lo, hi int) []string {
	if lo < 0 || hi > len(c.ids) || lo > hi {
		panic(fmt.Sprintf("collection slice [%d, %d) out of range for %d tests", lo, hi, len(c.ids)))
	}
	out := make([]string, hi-lo)
	copy(out, c.ids[lo:hi])
	return out
}

// Discover enumerates the test collection by walking the suite root for
// files matching the configured suffix. fsutil returns the paths sorted, so
// the resulting order is stable across machines and runs.
func Discover(ctx context.Context, root, match string) (*Collection, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Discovering test collection.", "root", root, "match", match)

	files, err := fsutil.FindFilesBySuffix(root, match)
	if err != nil {
		return nil, fmt.Errorf("failed to discover tests under %s: %w", root, err)
	}

	logger.Info("Test collection discovered.", "count", len(files))
	return New(files), nil
}
