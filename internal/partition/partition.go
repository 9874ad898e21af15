// Package partition defines the index boundaries that split an ordered test
// collection into independent execution stages.
//
// A boundary is a half-open index range [Start, End). The End side is
// optional: a nil End is the open-end sentinel meaning "through the last
// test". For a valid stage layout the union of all boundaries over
// [0, total) must be exactly [0, total) with no gap and no overlap, so that
// every test runs in exactly one stage.
package partition

import (
	"fmt"
	"sort"
)

// Boundary is the half-open index range [Start, End) owned by one stage.
// A nil End means the range extends through the last test.
type Boundary struct {
	Start int
	End   *int
}

// Closed returns a boundary with both ends fixed.
func Closed(start, end int) Boundary {
	return Boundary{Start: start, End: &end}
}

// Open returns a boundary that extends from start through the last test.
func Open(start int) Boundary {
	return Boundary{Start: start}
}

// String renders the boundary in [start, end) notation for logs and errors.
func (b Boundary) String() string {
	if b.End == nil {
		return fmt.Sprintf("[%d, end)", b.Start)
	}
	return fmt.Sprintf("[%d, %d)", b.Start, *b.End)
}

// Validate checks the boundary for configuration errors. A negative index or
// an inverted range is rejected outright, never clamped.
func (b Boundary) Validate() error {
	if b.Start < 0 {
		return fmt.Errorf("invalid boundary %s: start index must not be negative", b)
	}
	if b.End != nil {
		if *b.End < 0 {
			return fmt.Errorf("invalid boundary %s: end index must not be negative", b)
		}
		if b.Start > *b.End {
			return fmt.Errorf("invalid boundary %s: start index is past the end index", b)
		}
	}
	return nil
}

// Slice resolves the boundary against a concrete collection size and returns
// the effective [lo, hi) range. The open end resolves to total; a closed end
// past the collection is trimmed to it; a start at or past the collection
// yields an empty range, which is legal and trivially succeeds.
func (b Boundary) Slice(total int) (lo, hi int, err error) {
	if err := b.Validate(); err != nil {
		return 0, 0, err
	}
	if total < 0 {
		return 0, 0, fmt.Errorf("invalid collection size %d", total)
	}
	hi = total
	if b.End != nil && *b.End < total {
		hi = *b.End
	}
	lo = b.Start
	if lo > hi {
		lo = hi
	}
	return lo, hi, nil
}

// Even computes stageCount contiguous boundaries that cover [0, total) with
// near-even sizes. Any remainder is spread across the leading stages, and
// the final boundary is left open so the layout survives collection growth.
func Even(total, stageCount int) ([]Boundary, error) {
	if total < 0 {
		return nil, fmt.Errorf("invalid collection size %d", total)
	}
	if stageCount < 1 {
		return nil, fmt.Errorf("invalid stage count %d: at least one stage is required", stageCount)
	}

	size := total / stageCount
	rem := total % stageCount

	boundaries := make([]Boundary, 0, stageCount)
	start := 0
	for i := 0; i < stageCount; i++ {
		n := size
		if i < rem {
			n++
		}
		if i == stageCount-1 {
			boundaries = append(boundaries, Open(start))
		} else {
			boundaries = append(boundaries, Closed(start, start+n))
		}
		start += n
	}
	return boundaries, nil
}

// CheckCoverage verifies that the boundaries jointly cover [0, total)
// exactly once. A gap means tests would silently never execute; an overlap
// means tests would execute in more than one stage. Both are configuration
// errors and abort the run before any stage is launched.
func CheckCoverage(boundaries []Boundary, total int) error {
	if total < 0 {
		return fmt.Errorf("invalid collection size %d", total)
	}
	if len(boundaries) == 0 {
		if total == 0 {
			return nil
		}
		return fmt.Errorf("no stage boundaries defined for %d tests", total)
	}

	type span struct{ lo, hi int }
	spans := make([]span, 0, len(boundaries))
	for _, b := range boundaries {
		lo, hi, err := b.Slice(total)
		if err != nil {
			return err
		}
		if lo < hi {
			spans = append(spans, span{lo, hi})
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	next := 0
	for _, s := range spans {
		if s.lo > next {
			return fmt.Errorf("stage boundaries leave tests %d through %d unexecuted", next, s.lo-1)
		}
		if s.lo < next {
			return fmt.Errorf("stage boundaries overlap at test %d", s.lo)
		}
		next = s.hi
	}
	if next < total {
		return fmt.Errorf("stage boundaries leave tests %d through %d unexecuted", next, total-1)
	}
	return nil
}
