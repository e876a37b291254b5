package reduce

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"vector-viz/config"
)

const (
	// smallest bandwidth relative to the mean neighbor distance
	minKDistScale = 1e-3
	// gradient clip used by the layout optimizer
	gradClip = 4.0
	// binary search tolerance and iterations for the per-point bandwidth
	bandwidthTolerance  = 1e-5
	bandwidthIterations = 64
)

/*
UMAP reduces high-dimensional vectors to a low-dimensional layout that preserves local
neighborhoods (uniform manifold approximation and projection).

The k-nearest-neighbor graph is turned into a fuzzy graph, laid out starting from the
principal components, and refined by stochastic gradient descent with negative sampling.
Every random choice draws from a source seeded with Seed, so identical input in identical
order yields identical output.
*/
type UMAP struct {
	Neighbors       int
	MinDist         float64
	Spread          float64
	Epochs          int
	NegativeSamples int
	LearningRate    float64
	Seed            int64
	Metric          config.DistanceType
	// above this many points the neighbor graph comes from HNSW instead of brute force
	BruteForceLimit int
}

/*
NewUMAP creates a reducer from the projection configuration
*/
func NewUMAP(cfg config.ProjectionConfig) *UMAP {
	u := &UMAP{
		Neighbors:       cfg.Neighbors,
		MinDist:         cfg.MinDist,
		Spread:          1.0,
		Epochs:          cfg.Epochs,
		NegativeSamples: 5,
		LearningRate:    1.0,
		Seed:            cfg.Seed,
		Metric:          cfg.DistanceType,
		BruteForceLimit: 4096,
	}
	if u.Neighbors < 2 {
		u.Neighbors = 15
	}
	if u.Epochs <= 0 {
		u.Epochs = 200
	}
	if u.MinDist < 0 {
		u.MinDist = 0.1
	}
	return u
}

type edge struct {
	head, tail int
	weight     float64
}

/*
Reduce maps every row of data to a point with dims coordinates
*/
func (u *UMAP) Reduce(data [][]float64, dims int) ([][]float64, error) {
	if dims < 1 {
		return nil, fmt.Errorf("%w: dims %d", ErrInvalidParameter, dims)
	}
	n := len(data)
	if n < 2 {
		return nil, fmt.Errorf("%w: %d", ErrTooFewSamples, n)
	}
	width := len(data[0])
	if width == 0 {
		return nil, ErrEmptyVector
	}
	for _, v := range data {
		if len(v) != width {
			return nil, ErrDimensionMismatch
		}
	}
	if !allFinite(data) {
		return nil, fmt.Errorf("%w in input", ErrNonFinite)
	}

	rng := rand.New(rand.NewSource(u.Seed))
	k := min(u.Neighbors, n-1)

	indices, distances, err := u.nearestNeighbors(data, k)
	if err != nil {
		return nil, err
	}

	edges := fuzzyGraph(indices, distances)
	embedding := u.initialize(data, dims, rng)
	a, b := fitCurve(u.Spread, u.MinDist)
	u.optimize(embedding, edges, a, b, rng)

	if !allFinite(embedding) {
		return nil, fmt.Errorf("%w in layout", ErrNonFinite)
	}
	return embedding, nil
}

/*
nearestNeighbors returns, for every point, the indices and distances of its k nearest
other points, closest first
*/
func (u *UMAP) nearestNeighbors(data [][]float64, k int) ([][]int, [][]float64, error) {
	n := len(data)
	indices := make([][]int, n)
	distances := make([][]float64, n)

	if u.BruteForceLimit <= 0 || n <= u.BruteForceLimit {
		for i := range data {
			all := make([]Neighbor, 0, n-1)
			for j := range data {
				if i != j {
					all = append(all, Neighbor{Index: j, Distance: Distance(u.Metric, data[i], data[j])})
				}
			}
			sort.Slice(all, func(x, y int) bool {
				if all[x].Distance == all[y].Distance {
					return all[x].Index < all[y].Index
				}
				return all[x].Distance < all[y].Distance
			})
			indices[i], distances[i] = split(all[:k])
		}
		return indices, distances, nil
	}

	graph := NewHNSWGraph(16, 200, u.Metric, u.Seed)
	graph.EfSearch = max(4*k, 100)
	for _, v := range data {
		if _, err := graph.Insert(v); err != nil {
			return nil, nil, err
		}
	}
	for i, v := range data {
		found, err := graph.Search(v, k+1)
		if err != nil {
			return nil, nil, err
		}
		others := make([]Neighbor, 0, k)
		for _, f := range found {
			if f.Index != i && len(others) < k {
				others = append(others, f)
			}
		}
		indices[i], distances[i] = split(others)
	}
	return indices, distances, nil
}

func split(neighbors []Neighbor) ([]int, []float64) {
	idx := make([]int, len(neighbors))
	dist := make([]float64, len(neighbors))
	for i, nb := range neighbors {
		idx[i] = nb.Index
		dist[i] = nb.Distance
	}
	return idx, dist
}

/*
fuzzyGraph calibrates a bandwidth per point so that its membership strengths sum to log2(k),
then merges both directions of every edge with the probabilistic union a + b - ab
*/
func fuzzyGraph(indices [][]int, distances [][]float64) []edge {
	n := len(indices)
	directed := make(map[[2]int]float64)

	var meanAll float64
	var count int
	for _, row := range distances {
		for _, d := range row {
			meanAll += d
			count++
		}
	}
	if count > 0 {
		meanAll /= float64(count)
	}

	for i := 0; i < n; i++ {
		row := distances[i]
		if len(row) == 0 {
			continue
		}
		target := math.Log2(float64(len(row)))

		rho := 0.0
		for _, d := range row {
			if d > 0 {
				rho = d
				break
			}
		}

		lo, hi, sigma := 0.0, math.Inf(1), 1.0
		for iter := 0; iter < bandwidthIterations; iter++ {
			var sum float64
			for _, d := range row {
				sum += math.Exp(-math.Max(0, d-rho) / sigma)
			}
			if math.Abs(sum-target) < bandwidthTolerance {
				break
			}
			if sum > target {
				hi = sigma
				sigma = (lo + hi) / 2
			} else {
				lo = sigma
				if math.IsInf(hi, 1) {
					sigma *= 2
				} else {
					sigma = (lo + hi) / 2
				}
			}
		}

		var meanRow float64
		for _, d := range row {
			meanRow += d
		}
		meanRow /= float64(len(row))
		if rho > 0 {
			sigma = math.Max(sigma, minKDistScale*meanRow)
		} else {
			sigma = math.Max(sigma, minKDistScale*meanAll)
		}
		if sigma <= 0 {
			sigma = 1
		}

		for j, nb := range indices[i] {
			w := 1.0
			if d := row[j] - rho; d > 0 {
				w = math.Exp(-d / sigma)
			}
			directed[[2]int{i, nb}] = w
		}
	}

	merged := make(map[[2]int]float64)
	for key, w := range directed {
		i, j := key[0], key[1]
		back := directed[[2]int{j, i}]
		w = w + back - w*back
		merged[[2]int{i, j}] = w
		merged[[2]int{j, i}] = w
	}

	edges := make([]edge, 0, len(merged))
	for key, w := range merged {
		if w > 0 {
			edges = append(edges, edge{head: key[0], tail: key[1], weight: w})
		}
	}
	sort.Slice(edges, func(x, y int) bool {
		if edges[x].head == edges[y].head {
			return edges[x].tail < edges[y].tail
		}
		return edges[x].head < edges[y].head
	})
	return edges
}

/*
initialize places points on their leading principal components, scaled into [0, 10] per axis.
Axes without a principal component, or inputs the decomposition rejects, start from seeded
uniform noise instead.
*/
func (u *UMAP) initialize(data [][]float64, dims int, rng *rand.Rand) [][]float64 {
	n, width := len(data), len(data[0])
	embedding := make([][]float64, n)
	for i := range embedding {
		embedding[i] = make([]float64, dims)
		for d := range embedding[i] {
			embedding[i][d] = rng.Float64() * 10
		}
	}

	flat := make([]float64, 0, n*width)
	means := make([]float64, width)
	for _, v := range data {
		flat = append(flat, v...)
		for j, x := range v {
			means[j] += x / float64(n)
		}
	}
	x := mat.NewDense(n, width, flat)

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return embedding
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	_, components := vecs.Dims()

	for d := 0; d < dims && d < components; d++ {
		lo, hi := math.Inf(1), math.Inf(-1)
		column := make([]float64, n)
		for i, v := range data {
			var s float64
			for j := range v {
				s += (v[j] - means[j]) * vecs.At(j, d)
			}
			column[i] = s
			lo = math.Min(lo, s)
			hi = math.Max(hi, s)
		}
		if hi-lo <= 0 || math.IsNaN(hi-lo) {
			continue
		}
		for i := range column {
			// jitter separates duplicate points
			embedding[i][d] = 10*(column[i]-lo)/(hi-lo) + rng.NormFloat64()*1e-4
		}
	}
	return embedding
}

/*
optimize runs the layout epochs: each edge is sampled in proportion to its weight, pulls its
endpoints together, and pushes the head away from a few random points
*/
func (u *UMAP) optimize(embedding [][]float64, edges []edge, a, b float64, rng *rand.Rand) {
	if len(edges) == 0 {
		return
	}
	n := len(embedding)
	epochs := u.Epochs
	negatives := max(1, u.NegativeSamples)

	maxWeight := 0.0
	for _, e := range edges {
		maxWeight = math.Max(maxWeight, e.weight)
	}

	active := edges[:0:0]
	for _, e := range edges {
		if e.weight >= maxWeight/float64(epochs) {
			active = append(active, e)
		}
	}

	perSample := make([]float64, len(active))
	nextSample := make([]float64, len(active))
	perNegative := make([]float64, len(active))
	nextNegative := make([]float64, len(active))
	for i, e := range active {
		perSample[i] = maxWeight / e.weight
		nextSample[i] = perSample[i]
		perNegative[i] = perSample[i] / float64(negatives)
		nextNegative[i] = perNegative[i]
	}

	for epoch := 0; epoch < epochs; epoch++ {
		alpha := u.LearningRate * (1 - float64(epoch)/float64(epochs))
		current := float64(epoch)

		for i, e := range active {
			if nextSample[i] > current {
				continue
			}

			head, tail := embedding[e.head], embedding[e.tail]
			d2 := squaredDistance(head, tail)
			coeff := 0.0
			if d2 > 0 {
				coeff = -2 * a * b * math.Pow(d2, b-1) / (a*math.Pow(d2, b) + 1)
			}
			for d := range head {
				g := clip(coeff * (head[d] - tail[d]))
				head[d] += g * alpha
				tail[d] -= g * alpha
			}
			nextSample[i] += perSample[i]

			samples := int((current - nextNegative[i]) / perNegative[i])
			for p := 0; p < samples; p++ {
				k := rng.Intn(n)
				if k == e.head {
					continue
				}
				other := embedding[k]
				d2 := squaredDistance(head, other)
				coeff := 0.0
				if d2 > 0 {
					coeff = 2 * b / ((0.001 + d2) * (a*math.Pow(d2, b) + 1))
				}
				for d := range head {
					g := gradClip
					if coeff > 0 {
						g = clip(coeff * (head[d] - other[d]))
					}
					head[d] += g * alpha
				}
			}
			if samples > 0 {
				nextNegative[i] += float64(samples) * perNegative[i]
			}
		}
	}
}

/*
fitCurve finds a and b such that 1 / (1 + a*x^(2b)) best matches the target membership curve:
1 up to minDist, then exp(-(x - minDist) / spread). A coarse grid search is refined twice
around its best cell.
*/
func fitCurve(spread, minDist float64) (float64, float64) {
	if spread <= 0 {
		spread = 1
	}
	const samples = 300
	xs := make([]float64, samples)
	ys := make([]float64, samples)
	for i := range xs {
		x := 3 * spread * float64(i) / float64(samples-1)
		xs[i] = x
		if x < minDist {
			ys[i] = 1
		} else {
			ys[i] = math.Exp(-(x - minDist) / spread)
		}
	}

	loss := func(a, b float64) float64 {
		var sum float64
		for i, x := range xs {
			r := 1/(1+a*math.Pow(x, 2*b)) - ys[i]
			sum += r * r
		}
		return sum
	}

	search := func(aLo, aHi, bLo, bHi float64, steps int) (float64, float64) {
		bestA, bestB, best := aLo, bLo, math.Inf(1)
		for i := 0; i <= steps; i++ {
			a := aLo + (aHi-aLo)*float64(i)/float64(steps)
			if a <= 0 {
				continue
			}
			for j := 0; j <= steps; j++ {
				b := bLo + (bHi-bLo)*float64(j)/float64(steps)
				if b <= 0 {
					continue
				}
				if l := loss(a, b); l < best {
					bestA, bestB, best = a, b, l
				}
			}
		}
		return bestA, bestB
	}

	a, b := search(0.05, 5, 0.2, 2, 60)
	a, b = search(a-0.2, a+0.2, b-0.06, b+0.06, 40)
	a, b = search(a-0.02, a+0.02, b-0.006, b+0.006, 40)
	return a, b
}

func squaredDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func clip(v float64) float64 {
	if v > gradClip {
		return gradClip
	}
	if v < -gradClip {
		return -gradClip
	}
	return v
}
