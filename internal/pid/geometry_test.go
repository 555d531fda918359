package pid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeBoundingBox_Unrotated(t *testing.T) {
	sizes := []struct{ w, h float64 }{
		{0, 0},
		{14, 10},
		{20, 12.5},
		{1000, 0.1},
		{3.75, 100},
	}

	for _, s := range sizes {
		transform := [6]float64{1, 0, 0, 1, 42.5, 317}
		got := ComputeBoundingBox(transform, s.w, s.h)
		want := BoundingBox{
			X1: 42.5,
			Y1: 317 - 0.2*s.h,
			X2: 42.5 + s.w,
			Y2: 317 + s.h,
		}
		assert.Equal(t, want, got, "w=%v h=%v", s.w, s.h)
		assert.True(t, got.Valid())
	}
}

func TestComputeBoundingBox_ScaledMatrixIgnoresScale(t *testing.T) {
	// Scale lives in width/height; only the rotation angle of the matrix matters.
	got := ComputeBoundingBox([6]float64{12, 0, 0, 12, 10, 20}, 30, 10)
	assert.Equal(t, BoundingBox{X1: 10, Y1: 18, X2: 40, Y2: 30}, got)
}

func TestComputeBoundingBox_Rotated(t *testing.T) {
	tests := []struct {
		name      string
		transform [6]float64
		w, h      float64
		want      BoundingBox
	}{
		{
			name:      "quarter turn",
			transform: [6]float64{0, 1, -1, 0, 100, 100},
			w:         20,
			h:         10,
			// corners (0,-2) (20,-2) (20,10) (0,10) rotated 90 degrees
			want: BoundingBox{X1: 90, Y1: 100, X2: 102, Y2: 120},
		},
		{
			name:      "half turn",
			transform: [6]float64{-1, 0, 0, -1, 50, 50},
			w:         10,
			h:         5,
			want:      BoundingBox{X1: 40, Y1: 45, X2: 50, Y2: 51},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeBoundingBox(tt.transform, tt.w, tt.h)
			assert.InDelta(t, tt.want.X1, got.X1, 1e-9)
			assert.InDelta(t, tt.want.Y1, got.Y1, 1e-9)
			assert.InDelta(t, tt.want.X2, got.X2, 1e-9)
			assert.InDelta(t, tt.want.Y2, got.Y2, 1e-9)
		})
	}
}

func TestBoundingBox_Helpers(t *testing.T) {
	a := BoundingBox{X1: 0, Y1: 0, X2: 10, Y2: 4}
	b := BoundingBox{X1: 6, Y1: -2, X2: 16, Y2: 2}

	assert.Equal(t, 10.0, a.Width())
	assert.Equal(t, 4.0, a.Height())
	assert.Equal(t, 5.0, a.CenterX())
	assert.Equal(t, 2.0, a.CenterY())
	assert.Equal(t, BoundingBox{X1: 0, Y1: -2, X2: 16, Y2: 4}, a.Union(b))
	assert.Equal(t, a.Union(b), UnionAll([]BoundingBox{a, b}))
	assert.Equal(t, BoundingBox{}, UnionAll(nil))
	assert.InDelta(t, math.Hypot(6, 2), a.CenterDistance(b), 1e-12)

	assert.False(t, BoundingBox{X1: 2, X2: 1}.Valid())
	assert.False(t, BoundingBox{X2: math.NaN()}.Valid())
}
