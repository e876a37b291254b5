package reduce

import (
	"container/heap"
	"math"
	"math/rand"
	"sort"
	"sync"

	"vector-viz/config"
)

/*
HNSWGraph is a Hierarchical Navigable Small World graph over points addressed by their
insertion index.

It answers approximate k-nearest-neighbor queries and is used to build the neighborhood
graph of large inputs. Layer assignment draws from a seeded source, so the same points
inserted in the same order always produce the same graph.

Key parameters:
- M: connections made per insert, and the degree cap above layer 0 (layer 0 allows 2*M)
- EfConstruction: size of the dynamic candidate list during construction
- EfSearch: size of the dynamic candidate list during search
*/
type HNSWGraph struct {
	M              int
	EfConstruction int
	EfSearch       int
	MaxLayer       int
	// -1 while the graph is empty
	EntryPoint int
	// Layers[l][node] lists the neighbors of node on layer l
	Layers []map[int][]int
	Points [][]float64
	Metric config.DistanceType

	rng *rand.Rand
	mL  float64
	mu  sync.RWMutex
}

/*
Neighbor is a search result: the index of a point and its distance to the query
*/
type Neighbor struct {
	Index    int
	Distance float64
}

/*
NewHNSWGraph creates an empty graph.

The mL factor 1/ln(M) sets how quickly the layers thin out.
*/
func NewHNSWGraph(m, efConstruction int, metric config.DistanceType, seed int64) *HNSWGraph {
	if m <= 1 {
		m = 16
	}
	if efConstruction <= 0 {
		efConstruction = 200
	}

	return &HNSWGraph{
		M:              m,
		EfConstruction: efConstruction,
		EfSearch:       efConstruction,
		EntryPoint:     -1,
		Layers:         []map[int][]int{make(map[int][]int)},
		Metric:         metric,
		rng:            rand.New(rand.NewSource(seed)),
		mL:             1.0 / math.Log(float64(m)),
	}
}

/*
Len returns the number of inserted points
*/
func (g *HNSWGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.Points)
}

/*
Insert adds a point and returns its index.

The point is assigned a random top layer, the graph is descended greedily from the entry
point down to that layer, and on every layer below it the point is linked to its selected
neighbors in both directions. Neighbor lists that grow beyond their layer's cap are pruned again.
*/
func (g *HNSWGraph) Insert(point []float64) (int, error) {
	if len(point) == 0 {
		return -1, ErrEmptyVector
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.Points) > 0 && len(point) != len(g.Points[0]) {
		return -1, ErrDimensionMismatch
	}

	levelRand := g.rng.Float64()
	if levelRand == 0 {
		levelRand = math.SmallestNonzeroFloat64
	}
	layer := int(math.Floor(-math.Log(levelRand) * g.mL))

	id := len(g.Points)
	g.Points = append(g.Points, point)
	for len(g.Layers) <= layer {
		g.Layers = append(g.Layers, make(map[int][]int))
	}
	for l := 0; l <= layer; l++ {
		g.Layers[l][id] = nil
	}

	if g.EntryPoint < 0 {
		g.EntryPoint = id
		g.MaxLayer = layer
		return id, nil
	}

	// Greedy descent through the layers above the new point
	entry := g.EntryPoint
	for l := g.MaxLayer; l > layer; l-- {
		if best := g.searchLayer(point, entry, 1, l); len(best) > 0 {
			entry = best[0].Index
		}
	}

	for l := min(layer, g.MaxLayer); l >= 0; l-- {
		candidates := g.searchLayer(point, entry, g.EfConstruction, l)
		neighbors := g.selectNeighbors(candidates, g.M)
		limit := g.maxLinks(l)

		g.Layers[l][id] = neighbors
		for _, n := range neighbors {
			g.Layers[l][n] = append(g.Layers[l][n], id)
			if len(g.Layers[l][n]) > limit {
				g.Layers[l][n] = g.prune(n, g.Layers[l][n], limit)
			}
		}

		if len(candidates) > 0 {
			entry = candidates[0].Index
		}
	}

	if layer > g.MaxLayer {
		g.MaxLayer = layer
		g.EntryPoint = id
	}
	return id, nil
}

/*
Search finds the k approximate nearest neighbors of query, closest first
*/
func (g *HNSWGraph) Search(query []float64, k int) ([]Neighbor, error) {
	if len(query) == 0 {
		return nil, ErrEmptyVector
	}
	if k <= 0 {
		return nil, ErrInvalidParameter
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.EntryPoint < 0 {
		return []Neighbor{}, nil
	}
	if len(query) != len(g.Points[0]) {
		return nil, ErrDimensionMismatch
	}

	entry := g.EntryPoint
	for l := g.MaxLayer; l > 0; l-- {
		best := g.searchLayer(query, entry, 1, l)
		if len(best) == 0 {
			break
		}
		entry = best[0].Index
	}

	results := g.searchLayer(query, entry, max(g.EfSearch, k), 0)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// minHeap pops the closest candidate first
type minHeap []Neighbor

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return h[i].Distance < h[j].Distance }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *minHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// maxHeap keeps the worst result on top so it can be evicted
type maxHeap []Neighbor

func (h maxHeap) Len() int           { return len(h) }
func (h maxHeap) Less(i, j int) bool { return h[i].Distance > h[j].Distance }
func (h maxHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x any)        { *h = append(*h, x.(Neighbor)) }
func (h *maxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

/*
searchLayer runs a best-first search on one layer and returns up to ef results sorted by distance
*/
func (g *HNSWGraph) searchLayer(query []float64, entry, ef, layer int) []Neighbor {
	if ef <= 0 {
		return nil
	}

	visited := map[int]bool{entry: true}
	start := Neighbor{Index: entry, Distance: g.distance(query, g.Points[entry])}

	results := &maxHeap{start}
	candidates := &minHeap{start}

	for candidates.Len() > 0 {
		current := heap.Pop(candidates).(Neighbor)
		if results.Len() >= ef && current.Distance > (*results)[0].Distance {
			break
		}

		for _, n := range g.Layers[layer][current.Index] {
			if visited[n] {
				continue
			}
			visited[n] = true

			d := g.distance(query, g.Points[n])
			if results.Len() < ef || d < (*results)[0].Distance {
				heap.Push(results, Neighbor{Index: n, Distance: d})
				heap.Push(candidates, Neighbor{Index: n, Distance: d})
				if results.Len() > ef {
					heap.Pop(results)
				}
			}
		}
	}

	out := make([]Neighbor, results.Len())
	copy(out, *results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].Index < out[j].Index
		}
		return out[i].Distance < out[j].Distance
	})
	return out
}

/*
selectNeighbors walks the candidates closest first and keeps one only when it is closer to the
inserted point than to every neighbor already kept. Slots left over are topped up with the closest
discarded candidates, so a node always gets m links when that many candidates exist.
*/
func (g *HNSWGraph) selectNeighbors(candidates []Neighbor, m int) []int {
	sorted := append([]Neighbor(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Distance < sorted[j].Distance
	})
	if len(sorted) <= m {
		return indicesOf(sorted)
	}

	kept := make([]Neighbor, 0, m)
	var discarded []Neighbor
	for _, c := range sorted {
		if len(kept) >= m {
			break
		}
		diverse := true
		for _, k := range kept {
			if g.distance(g.Points[c.Index], g.Points[k.Index]) < c.Distance {
				diverse = false
				break
			}
		}
		if diverse {
			kept = append(kept, c)
		} else {
			discarded = append(discarded, c)
		}
	}
	for _, c := range discarded {
		if len(kept) >= m {
			break
		}
		kept = append(kept, c)
	}
	return indicesOf(kept)
}

func indicesOf(neighbors []Neighbor) []int {
	ids := make([]int, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.Index
	}
	return ids
}

// maxLinks is the degree cap of a layer; the bottom layer holds every point and gets twice M
func (g *HNSWGraph) maxLinks(layer int) int {
	if layer == 0 {
		return 2 * g.M
	}
	return g.M
}

func (g *HNSWGraph) prune(node int, links []int, limit int) []int {
	candidates := make([]Neighbor, 0, len(links))
	for _, l := range links {
		candidates = append(candidates, Neighbor{Index: l, Distance: g.distance(g.Points[node], g.Points[l])})
	}
	return g.selectNeighbors(candidates, limit)
}

func (g *HNSWGraph) distance(a, b []float64) float64 {
	return Distance(g.Metric, a, b)
}
