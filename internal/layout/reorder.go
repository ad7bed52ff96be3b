// Package layout places widgets on the dashboard. Two engines share one
// interface: a resizable absolute grid and an ordered, reorderable flow.
package layout

import "math"

// Rect is a rectangle in host coordinates, used for drop zones and the
// dragged widget's bounds.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

func (r Rect) Center() (x, y float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// NearestDropZone returns the index of the zone whose center is closest to
// the dragged rectangle's center. Ties go to the lowest index; an empty
// zone list yields -1.
func NearestDropZone(dragged Rect, zones []Rect) int {
	cx, cy := dragged.Center()
	best, bestDist := -1, math.Inf(1)
	for i, z := range zones {
		zx, zy := z.Center()
		if d := math.Hypot(zx-cx, zy-cy); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Move returns a copy of items with the element at from spliced out and
// reinserted at to. to is clamped to the slice bounds; an out-of-range from
// or from == to leaves the order unchanged.
func Move[T any](items []T, from, to int) []T {
	out := make([]T, len(items))
	copy(out, items)
	if from < 0 || from >= len(out) {
		return out
	}
	to = max(0, min(to, len(out)-1))
	if from == to {
		return out
	}

	item := out[from]
	out = append(out[:from], out[from+1:]...)
	out = append(out[:to], append([]T{item}, out[to:]...)...)
	return out
}
