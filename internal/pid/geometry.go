package pid

import "math"

// descentRatio is the share of the run height that sits below the baseline.
const descentRatio = 0.2

// BoundingBox is an axis-aligned rectangle in PDF user space (y grows upward).
// X1 <= X2 and Y1 <= Y2 always hold.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Width returns the width of the box
func (b BoundingBox) Width() float64 {
	return b.X2 - b.X1
}

// Height returns the height of the box
func (b BoundingBox) Height() float64 {
	return b.Y2 - b.Y1
}

// CenterX returns the horizontal center of the box
func (b BoundingBox) CenterX() float64 {
	return (b.X1 + b.X2) / 2
}

// CenterY returns the vertical center of the box
func (b BoundingBox) CenterY() float64 {
	return (b.Y1 + b.Y2) / 2
}

// Valid reports whether the corner ordering invariant holds and all values are finite
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 <= b.X2 && b.Y1 <= b.Y2
}

// Union returns the smallest box enclosing both boxes
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	return BoundingBox{
		X1: math.Min(b.X1, o.X1),
		Y1: math.Min(b.Y1, o.Y1),
		X2: math.Max(b.X2, o.X2),
		Y2: math.Max(b.Y2, o.Y2),
	}
}

// CenterDistance returns the Euclidean distance between the centers of two boxes
func (b BoundingBox) CenterDistance(o BoundingBox) float64 {
	return math.Hypot(b.CenterX()-o.CenterX(), b.CenterY()-o.CenterY())
}

// ComputeBoundingBox returns the envelope of a text run drawn with the given
// text matrix. The run is a width x (height + descent) rectangle whose
// baseline starts at (e, f), rotated by atan2(b, a).
func ComputeBoundingBox(transform [6]float64, width, height float64) BoundingBox {
	a, b, e, f := transform[0], transform[1], transform[4], transform[5]
	descent := descentRatio * height

	angle := math.Atan2(b, a)
	cos, sin := math.Cos(angle), math.Sin(angle)

	corners := [4][2]float64{
		{0, -descent},
		{width, -descent},
		{width, height},
		{0, height},
	}

	box := BoundingBox{
		X1: math.Inf(1),
		Y1: math.Inf(1),
		X2: math.Inf(-1),
		Y2: math.Inf(-1),
	}
	for _, c := range corners {
		x := c[0]*cos - c[1]*sin + e
		y := c[0]*sin + c[1]*cos + f
		box.X1 = math.Min(box.X1, x)
		box.Y1 = math.Min(box.Y1, y)
		box.X2 = math.Max(box.X2, x)
		box.Y2 = math.Max(box.Y2, y)
	}
	return box
}

// UnionAll returns the union of all boxes. It returns the zero box for an empty slice.
func UnionAll(boxes []BoundingBox) BoundingBox {
	if len(boxes) == 0 {
		return BoundingBox{}
	}
	out := boxes[0]
	for _, b := range boxes[1:] {
		out = out.Union(b)
	}
	return out
}
