// Package interval implements the closed-interval overlap rule used for
// availability entries and booking windows.
package interval

import "time"

// Range is a closed interval. A zero End means the range is open-ended.
type Range struct {
	Start time.Time
	End   time.Time
}

func (r Range) OpenEnded() bool {
	return r.End.IsZero()
}

// Valid reports whether End is not before Start.
func (r Range) Valid() bool {
	return r.OpenEnded() || !r.End.Before(r.Start)
}

// Overlaps reports whether a and b share at least one instant:
// a.Start <= b.End && a.End >= b.Start. Ranges that touch at a boundary
// overlap.
func Overlaps(a, b Range) bool {
	if !b.OpenEnded() && b.End.Before(a.Start) {
		return false
	}
	if !a.OpenEnded() && a.End.Before(b.Start) {
		return false
	}
	return true
}

func (r Range) Overlaps(o Range) bool {
	return Overlaps(r, o)
}
