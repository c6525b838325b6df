package ml

import (
	"math/rand"
	"sort"
)

const leafMarker = -1

// treeNode is one entry of a flattened binary tree. Leaves have Left == -1.
type treeNode struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t"`
	Left      int       `json:"l"`
	Right     int       `json:"r"`
	Value     []float64 `json:"v,omitempty"`
}

// Tree is a flattened decision tree. Node 0 is the root.
type Tree struct {
	Nodes []treeNode `json:"nodes"`
}

// Leaf returns the value stored at the leaf x falls into.
func (t *Tree) Leaf(x []float64) []float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left == leafMarker {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *Tree) addLeaf(value []float64) int {
	t.Nodes = append(t.Nodes, treeNode{Left: leafMarker, Right: leafMarker, Value: value})
	return len(t.Nodes) - 1
}

func (t *Tree) setSplit(id, feature int, threshold float64, left, right int) {
	t.Nodes[id] = treeNode{Feature: feature, Threshold: threshold, Left: left, Right: right}
}

// sampleFeatures draws m distinct feature indices out of d.
func sampleFeatures(rng *rand.Rand, d, m int) []int {
	if m <= 0 || m >= d {
		all := make([]int, d)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return rng.Perm(d)[:m]
}

// sortedByFeature returns a copy of idx ordered by feature f.
func sortedByFeature(x [][]float64, idx []int, f int) []int {
	s := append([]int(nil), idx...)
	sort.SliceStable(s, func(a, b int) bool { return x[s[a]][f] < x[s[b]][f] })
	return s
}

func partition(x [][]float64, idx []int, f int, threshold float64) (left, right []int) {
	left = make([]int, 0, len(idx))
	right = make([]int, 0, len(idx))
	for _, i := range idx {
		if x[i][f] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// classifierConfig drives growth of a gini classification tree.
type classifierConfig struct {
	maxDepth     int
	minLeaf      int
	maxFeatures  int
	randomSplits bool
}

type split struct {
	ok        bool
	feature   int
	threshold float64
	score     float64
}

type classifierGrower struct {
	x    [][]float64
	y    []int
	cfg  classifierConfig
	rng  *rand.Rand
	tree *Tree
}

// growClassifier fits a classification tree on the rows in idx. Leaves hold class
// frequencies. With randomSplits the threshold for each candidate feature is drawn
// uniformly between its observed bounds instead of searched.
func growClassifier(x [][]float64, y []int, idx []int, cfg classifierConfig, rng *rand.Rand) *Tree {
	g := &classifierGrower{x: x, y: y, cfg: cfg, rng: rng, tree: &Tree{}}
	g.grow(idx, 0)
	return g.tree
}

func (g *classifierGrower) counts(idx []int) [3]float64 {
	var c [3]float64
	for _, i := range idx {
		c[g.y[i]]++
	}
	return c
}

func (g *classifierGrower) grow(idx []int, depth int) int {
	counts := g.counts(idx)
	n := float64(len(idx))
	id := g.tree.addLeaf([]float64{counts[0] / n, counts[1] / n, counts[2] / n})

	pure := counts[0] == n || counts[1] == n || counts[2] == n
	if pure || depth >= g.cfg.maxDepth || len(idx) < 2*g.cfg.minLeaf {
		return id
	}

	best := g.bestSplit(idx)
	if !best.ok {
		return id
	}
	leftIdx, rightIdx := partition(g.x, idx, best.feature, best.threshold)
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return id
	}
	left := g.grow(leftIdx, depth+1)
	right := g.grow(rightIdx, depth+1)
	g.tree.setSplit(id, best.feature, best.threshold, left, right)
	return id
}

// purity is sum(c^2)/n, the quantity a gini split maximises per side.
func purity(c [3]float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	return (c[0]*c[0] + c[1]*c[1] + c[2]*c[2]) / n
}

func (g *classifierGrower) bestSplit(idx []int) split {
	total := g.counts(idx)
	n := float64(len(idx))
	parent := purity(total, n)
	best := split{score: parent + 1e-12}
	minLeaf := g.cfg.minLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}

	for _, f := range sampleFeatures(g.rng, len(g.x[idx[0]]), g.cfg.maxFeatures) {
		if g.cfg.randomSplits {
			lo, hi := g.x[idx[0]][f], g.x[idx[0]][f]
			for _, i := range idx {
				v := g.x[i][f]
				if v < lo {
					lo = v
				}
				if v > hi {
					hi = v
				}
			}
			if hi <= lo {
				continue
			}
			threshold := lo + g.rng.Float64()*(hi-lo)
			var left [3]float64
			nl := 0.0
			for _, i := range idx {
				if g.x[i][f] <= threshold {
					left[g.y[i]]++
					nl++
				}
			}
			nr := n - nl
			if nl < float64(minLeaf) || nr < float64(minLeaf) {
				continue
			}
			right := [3]float64{total[0] - left[0], total[1] - left[1], total[2] - left[2]}
			if score := purity(left, nl) + purity(right, nr); score > best.score {
				best = split{ok: true, feature: f, threshold: threshold, score: score}
			}
			continue
		}

		sorted := sortedByFeature(g.x, idx, f)
		var left [3]float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			left[g.y[sorted[pos]]]++
			nl := float64(pos + 1)
			nr := n - nl
			cur, next := g.x[sorted[pos]][f], g.x[sorted[pos+1]][f]
			if cur == next || nl < float64(minLeaf) || nr < float64(minLeaf) {
				continue
			}
			right := [3]float64{total[0] - left[0], total[1] - left[1], total[2] - left[2]}
			if score := purity(left, nl) + purity(right, nr); score > best.score {
				best = split{ok: true, feature: f, threshold: (cur + next) / 2, score: score}
			}
		}
	}
	return best
}

// gradientConfig drives growth of a second-order regression tree.
type gradientConfig struct {
	maxDepth       int
	minLeaf        int
	minChildWeight float64
	lambda         float64
	maxDelta       float64
}

type gradientGrower struct {
	x        [][]float64
	grad     []float64
	hess     []float64
	features []int
	cfg      gradientConfig
	tree     *Tree
}

// growGradient fits a regression tree to gradient/hessian pairs using the
// Newton gain G_L²/(H_L+λ) + G_R²/(H_R+λ) − G²/(H+λ). Leaves hold −G/(H+λ).
func growGradient(x [][]float64, grad, hess []float64, idx, features []int, cfg gradientConfig) *Tree {
	g := &gradientGrower{x: x, grad: grad, hess: hess, features: features, cfg: cfg, tree: &Tree{}}
	g.grow(idx, 0)
	return g.tree
}

func (g *gradientGrower) sums(idx []int) (float64, float64) {
	var gs, hs float64
	for _, i := range idx {
		gs += g.grad[i]
		hs += g.hess[i]
	}
	return gs, hs
}

func (g *gradientGrower) leafValue(gs, hs float64) float64 {
	v := -gs / (hs + g.cfg.lambda)
	if g.cfg.maxDelta > 0 {
		if v > g.cfg.maxDelta {
			v = g.cfg.maxDelta
		} else if v < -g.cfg.maxDelta {
			v = -g.cfg.maxDelta
		}
	}
	return v
}

func (g *gradientGrower) grow(idx []int, depth int) int {
	gs, hs := g.sums(idx)
	id := g.tree.addLeaf([]float64{g.leafValue(gs, hs)})
	if depth >= g.cfg.maxDepth || len(idx) < 2*g.cfg.minLeaf {
		return id
	}

	minLeaf := g.cfg.minLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	parent := gs * gs / (hs + g.cfg.lambda)
	best := split{score: 1e-9}
	for _, f := range g.features {
		sorted := sortedByFeature(g.x, idx, f)
		var gl, hl float64
		for pos := 0; pos < len(sorted)-1; pos++ {
			gl += g.grad[sorted[pos]]
			hl += g.hess[sorted[pos]]
			nl := pos + 1
			nr := len(sorted) - nl
			cur, next := g.x[sorted[pos]][f], g.x[sorted[pos+1]][f]
			if cur == next || nl < minLeaf || nr < minLeaf {
				continue
			}
			gr, hr := gs-gl, hs-hl
			if hl < g.cfg.minChildWeight || hr < g.cfg.minChildWeight {
				continue
			}
			gain := gl*gl/(hl+g.cfg.lambda) + gr*gr/(hr+g.cfg.lambda) - parent
			if gain > best.score {
				best = split{ok: true, feature: f, threshold: (cur + next) / 2, score: gain}
			}
		}
	}
	if !best.ok {
		return id
	}

	leftIdx, rightIdx := partition(g.x, idx, best.feature, best.threshold)
	if len(leftIdx) == 0 || len(rightIdx) == 0 {
		return id
	}
	left := g.grow(leftIdx, depth+1)
	right := g.grow(rightIdx, depth+1)
	g.tree.setSplit(id, best.feature, best.threshold, left, right)
	return id
}
