package calibration

import (
	"math"
	"sort"
)

// IsotonicMap is a monotone non-decreasing step function fitted with
// pool-adjacent-violators. Knots are block centres; values between knots are
// linearly interpolated and values outside are clamped.
type IsotonicMap struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

// Apply maps a raw class probability.
func (m IsotonicMap) Apply(p float64) float64 {
	n := len(m.X)
	switch {
	case n == 0:
		return p
	case p <= m.X[0]:
		return clampProb(m.Y[0])
	case p >= m.X[n-1]:
		return clampProb(m.Y[n-1])
	}
	i := sort.SearchFloat64s(m.X, p)
	x0, x1 := m.X[i-1], m.X[i]
	y0, y1 := m.Y[i-1], m.Y[i]
	if x1 == x0 {
		return clampProb(y1)
	}
	return clampProb(y0 + (y1-y0)*(p-x0)/(x1-x0))
}

type pavBlock struct {
	sumX, sumY, weight float64
}

func (b pavBlock) mean() float64 { return b.sumY / b.weight }

func fitIsotonic(p []float64, hit []bool) (IsotonicMap, error) {
	if len(p) == 0 || len(p) != len(hit) {
		return IsotonicMap{}, errDegenerateFit
	}
	idx := make([]int, len(p))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	blocks := make([]pavBlock, 0, len(p))
	for _, i := range idx {
		y := 0.0
		if hit[i] {
			y = 1
		}
		blocks = append(blocks, pavBlock{sumX: p[i], sumY: y, weight: 1})
		for len(blocks) > 1 {
			last, prev := blocks[len(blocks)-1], blocks[len(blocks)-2]
			if prev.mean() <= last.mean() {
				break
			}
			blocks = blocks[:len(blocks)-2]
			blocks = append(blocks, pavBlock{
				sumX:   prev.sumX + last.sumX,
				sumY:   prev.sumY + last.sumY,
				weight: prev.weight + last.weight,
			})
		}
	}

	m := IsotonicMap{X: make([]float64, 0, len(blocks)), Y: make([]float64, 0, len(blocks))}
	for _, b := range blocks {
		x := b.sumX / b.weight
		if n := len(m.X); n > 0 && x <= m.X[n-1] {
			// Equal centres collapse to one knot.
			m.Y[n-1] = math.Max(m.Y[n-1], b.mean())
			continue
		}
		m.X = append(m.X, x)
		m.Y = append(m.Y, b.mean())
	}
	return m, nil
}
