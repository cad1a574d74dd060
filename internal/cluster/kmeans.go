package cluster

import (
	"math"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// pcgStream is the fixed PCG stream selector; only the seed varies.
const pcgStream = 0x9e3779b97f4a7c15

// kmeansResult is one fitted partition.
type kmeansResult struct {
	labels  []int
	centers *mat.Dense
	inertia float64
	iters   int
}

type kmeans struct {
	k       int
	inits   int
	maxIter int
	tol     float64
	rng     *rand.Rand
}

func newKMeans(k, inits, maxIter int, tol float64, seed uint64) *kmeans {
	return &kmeans{
		k:       k,
		inits:   inits,
		maxIter: maxIter,
		tol:     tol,
		rng:     rand.New(rand.NewPCG(seed, pcgStream)),
	}
}

// fit runs Lloyd's algorithm from inits k-means++ starts and keeps the
// partition with the lowest inertia. The first start wins ties.
func (km *kmeans) fit(data *mat.Dense) kmeansResult {
	tol := km.tol * meanColumnVariance(data)

	var best kmeansResult
	for run := 0; run < km.inits; run++ {
		res := km.lloyd(data, km.seedCenters(data), tol)
		if run == 0 || res.inertia < best.inertia {
			best = res
		}
	}
	return best
}

func (km *kmeans) lloyd(data *mat.Dense, centers *mat.Dense, tol float64) kmeansResult {
	labels := assign(data, centers)
	iters := 0
	for iters < km.maxIter {
		iters++
		shift := updateCenters(data, labels, centers)
		next := assign(data, centers)
		stable := slices.Equal(next, labels)
		labels = next
		if stable || shift <= tol {
			break
		}
	}
	// Centers always end as the mean of their final members.
	updateCenters(data, labels, centers)
	return kmeansResult{
		labels:  labels,
		centers: centers,
		inertia: inertia(data, labels, centers),
		iters:   iters,
	}
}

// seedCenters picks initial centers with greedy k-means++: each step draws
// several candidates proportional to squared distance and keeps the one that
// lowers the potential most.
func (km *kmeans) seedCenters(data *mat.Dense) *mat.Dense {
	n, d := data.Dims()
	centers := mat.NewDense(km.k, d, nil)
	trials := 2 + int(math.Log(float64(km.k)))

	first := km.rng.IntN(n)
	centers.SetRow(0, data.RawRowView(first))

	closest := make([]float64, n)
	for i := 0; i < n; i++ {
		closest[i] = sqDist(data.RawRowView(i), centers.RawRowView(0))
	}

	for c := 1; c < km.k; c++ {
		potential := floats.Sum(closest)
		bestIdx := -1
		bestPot := math.Inf(1)
		var bestClosest []float64

		for t := 0; t < trials; t++ {
			cand := km.sample(closest, potential)
			candRow := data.RawRowView(cand)
			next := make([]float64, n)
			for i := 0; i < n; i++ {
				next[i] = math.Min(closest[i], sqDist(data.RawRowView(i), candRow))
			}
			if pot := floats.Sum(next); pot < bestPot {
				bestIdx, bestPot, bestClosest = cand, pot, next
			}
		}
		centers.SetRow(c, data.RawRowView(bestIdx))
		closest = bestClosest
	}
	return centers
}

// sample draws an index with probability proportional to weights. A zero
// total (all points on existing centers) falls back to uniform.
func (km *kmeans) sample(weights []float64, total float64) int {
	if total <= 0 {
		return km.rng.IntN(len(weights))
	}
	target := km.rng.Float64() * total
	cum := 0.0
	for i, w := range weights {
		cum += w
		if cum > target {
			return i
		}
	}
	return len(weights) - 1
}

// assign returns the index of the nearest center for every row, lowest index
// on ties.
func assign(data, centers *mat.Dense) []int {
	n, _ := data.Dims()
	k, _ := centers.Dims()
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		row := data.RawRowView(i)
		best, bestDist := 0, math.Inf(1)
		for c := 0; c < k; c++ {
			if dist := sqDist(row, centers.RawRowView(c)); dist < bestDist {
				best, bestDist = c, dist
			}
		}
		labels[i] = best
	}
	return labels
}

// updateCenters moves each center to the mean of its members in place and
// returns the total squared shift. An empty cluster keeps its center.
func updateCenters(data *mat.Dense, labels []int, centers *mat.Dense) float64 {
	k, d := centers.Dims()
	sums := make([][]float64, k)
	counts := make([]int, k)
	for c := range sums {
		sums[c] = make([]float64, d)
	}
	for i, c := range labels {
		floats.Add(sums[c], data.RawRowView(i))
		counts[c]++
	}

	shift := 0.0
	for c := 0; c < k; c++ {
		if counts[c] == 0 {
			continue
		}
		floats.Scale(1/float64(counts[c]), sums[c])
		shift += sqDist(centers.RawRowView(c), sums[c])
		centers.SetRow(c, sums[c])
	}
	return shift
}

func inertia(data *mat.Dense, labels []int, centers *mat.Dense) float64 {
	total := 0.0
	for i, c := range labels {
		total += sqDist(data.RawRowView(i), centers.RawRowView(c))
	}
	return total
}

func meanColumnVariance(data *mat.Dense) float64 {
	n, d := data.Dims()
	if d == 0 {
		return 0
	}
	col := make([]float64, n)
	total := 0.0
	for j := 0; j < d; j++ {
		mat.Col(col, j, data)
		_, v := stat.PopMeanVariance(col, nil)
		total += v
	}
	return total / float64(d)
}

func sqDist(a, b []float64) float64 {
	dist := floats.Distance(a, b, 2)
	return dist * dist
}
