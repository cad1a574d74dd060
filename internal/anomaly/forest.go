package anomaly

import (
	"math"
	"math/rand/v2"
	"slices"
)

const (
	eulerGamma = 0.5772156649
	pcgStream  = 0xda3e39cb94b95bdb
)

// node is one isolation tree node. Leaves have feature -1.
type node struct {
	feature     int
	threshold   float64
	left, right int
	size        int
}

type tree struct {
	nodes []node
}

// forest is an isolation forest over dense rows.
type forest struct {
	trees      []tree
	sampleSize int
}

// fitForest grows nTrees trees, each on maxSamples rows drawn without
// replacement, with height limited to ceil(log2(sampleSize)).
func fitForest(data [][]float64, nTrees, maxSamples int, seed uint64) *forest {
	rng := rand.New(rand.NewPCG(seed, pcgStream))
	psi := min(maxSamples, len(data))
	limit := int(math.Ceil(math.Log2(float64(max(psi, 2)))))

	f := &forest{trees: make([]tree, nTrees), sampleSize: psi}
	for t := range f.trees {
		sample := rng.Perm(len(data))[:psi]
		b := &builder{data: data, rng: rng, limit: limit}
		b.grow(sample, 0)
		f.trees[t] = tree{nodes: b.nodes}
	}
	return f
}

type builder struct {
	data  [][]float64
	rng   *rand.Rand
	limit int
	nodes []node
}

func (b *builder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: -1, size: len(idx)})
	if depth >= b.limit || len(idx) <= 1 {
		return at
	}

	// Only features that vary across this node can split it.
	dim := len(b.data[idx[0]])
	var candidates []int
	lows := make([]float64, dim)
	highs := make([]float64, dim)
	for f := 0; f < dim; f++ {
		lo, hi := b.data[idx[0]][f], b.data[idx[0]][f]
		for _, i := range idx[1:] {
			v := b.data[i][f]
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		if lo < hi {
			candidates = append(candidates, f)
			lows[f], highs[f] = lo, hi
		}
	}
	if len(candidates) == 0 {
		return at
	}

	f := candidates[b.rng.IntN(len(candidates))]
	thr := lows[f] + b.rng.Float64()*(highs[f]-lows[f])

	var left, right []int
	for _, i := range idx {
		if b.data[i][f] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = node{feature: f, threshold: thr, left: l, right: r, size: len(idx)}
	return at
}

func (t tree) pathLength(x []float64) float64 {
	depth := 0
	n := t.nodes[0]
	for n.feature >= 0 {
		if x[n.feature] <= n.threshold {
			n = t.nodes[n.left]
		} else {
			n = t.nodes[n.right]
		}
		depth++
	}
	return float64(depth) + averagePathLength(n.size)
}

// score returns -2^(-E[h(x)]/c(psi)); lower is more anomalous.
func (f *forest) score(x []float64) float64 {
	total := 0.0
	for _, t := range f.trees {
		total += t.pathLength(x)
	}
	mean := total / float64(len(f.trees))
	norm := averagePathLength(f.sampleSize)
	if norm == 0 {
		return -1
	}
	return -math.Pow(2, -mean/norm)
}

// averagePathLength is c(n), the mean unsuccessful-search path length of a
// binary search tree with n nodes.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// percentile uses linear interpolation between closest ranks, p in [0,100].
func percentile(xs []float64, p float64) float64 {
	s := slices.Clone(xs)
	slices.Sort(s)
	if len(s) == 1 {
		return s[0]
	}
	pos := p / 100 * float64(len(s)-1)
	lo := int(math.Floor(pos))
	hi := min(lo+1, len(s)-1)
	frac := pos - float64(lo)
	return s[lo] + frac*(s[hi]-s[lo])
}
