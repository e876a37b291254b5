package reduce

import (
	"math/rand"
	"sort"
	"testing"

	"vector-viz/config"
)

func randomPoints(rng *rand.Rand, n, dims int) [][]float64 {
	points := make([][]float64, n)
	for i := range points {
		points[i] = make([]float64, dims)
		for j := range points[i] {
			points[i][j] = rng.Float64()
		}
	}
	return points
}

func TestHNSWInsertAndSearch(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	graph := NewHNSWGraph(8, 100, config.DistanceTypeEuclidean, 42)

	points := randomPoints(rng, 100, 64)
	for i, p := range points {
		id, err := graph.Insert(p)
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		if id != i {
			t.Fatalf("Expected index %d, got %d", i, id)
		}
	}
	if graph.Len() != 100 {
		t.Fatalf("Expected 100 points, got %d", graph.Len())
	}

	query := randomPoints(rng, 1, 64)[0]
	k := 5
	results, err := graph.Search(query, k)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != k {
		t.Errorf("Expected %d results, got %d", k, len(results))
	}

	// Verify distances are in ascending order
	for i := 1; i < len(results); i++ {
		if results[i-1].Distance > results[i].Distance {
			t.Errorf("Distances not in ascending order: %f > %f", results[i-1].Distance, results[i].Distance)
		}
	}
}

func TestHNSWRecall(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	graph := NewHNSWGraph(16, 200, config.DistanceTypeEuclidean, 42)

	points := randomPoints(rng, 500, 16)
	for _, p := range points {
		if _, err := graph.Insert(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	const k = 10
	hits, total := 0, 0
	for q := 0; q < 20; q++ {
		query := randomPoints(rng, 1, 16)[0]

		exact := make([]Neighbor, len(points))
		for i, p := range points {
			exact[i] = Neighbor{Index: i, Distance: EuclideanDistance(query, p)}
		}
		sort.Slice(exact, func(i, j int) bool { return exact[i].Distance < exact[j].Distance })
		truth := map[int]bool{}
		for _, n := range exact[:k] {
			truth[n.Index] = true
		}

		found, err := graph.Search(query, k)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		for _, n := range found {
			if truth[n.Index] {
				hits++
			}
		}
		total += k
	}

	recall := float64(hits) / float64(total)
	if recall < 0.8 {
		t.Errorf("Expected recall >= 0.8, got %.2f", recall)
	}
}

func TestHNSWDeterministic(t *testing.T) {
	points := randomPoints(rand.New(rand.NewSource(3)), 200, 8)

	build := func() *HNSWGraph {
		g := NewHNSWGraph(8, 50, config.DistanceTypeCosine, 99)
		for _, p := range points {
			if _, err := g.Insert(p); err != nil {
				t.Fatalf("Insert failed: %v", err)
			}
		}
		return g
	}

	a, b := build(), build()
	if a.EntryPoint != b.EntryPoint || a.MaxLayer != b.MaxLayer {
		t.Fatalf("Graphs differ: entry %d/%d, max layer %d/%d", a.EntryPoint, b.EntryPoint, a.MaxLayer, b.MaxLayer)
	}

	ra, _ := a.Search(points[0], 5)
	rb, _ := b.Search(points[0], 5)
	for i := range ra {
		if ra[i].Index != rb[i].Index {
			t.Errorf("Result %d differs: %d vs %d", i, ra[i].Index, rb[i].Index)
		}
	}
	if ra[0].Index != 0 {
		t.Errorf("Expected a point to be its own nearest neighbor, got %d", ra[0].Index)
	}
}

func TestHNSWErrors(t *testing.T) {
	graph := NewHNSWGraph(8, 100, config.DistanceTypeEuclidean, 1)

	if _, err := graph.Insert(nil); err != ErrEmptyVector {
		t.Errorf("Expected ErrEmptyVector, got %v", err)
	}

	results, err := graph.Search([]float64{1, 2}, 3)
	if err != nil || len(results) != 0 {
		t.Errorf("Expected empty result on empty graph, got %v, %v", results, err)
	}

	if _, err := graph.Insert([]float64{1, 2}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := graph.Insert([]float64{1, 2, 3}); err != ErrDimensionMismatch {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := graph.Search([]float64{1, 2}, 0); err != ErrInvalidParameter {
		t.Errorf("Expected ErrInvalidParameter, got %v", err)
	}
	if _, err := graph.Search([]float64{1}, 1); err != ErrDimensionMismatch {
		t.Errorf("Expected ErrDimensionMismatch, got %v", err)
	}
}

func TestHNSWConcurrentOperations(t *testing.T) {
	graph := NewHNSWGraph(8, 100, config.DistanceTypeEuclidean, 42)
	points := randomPoints(rand.New(rand.NewSource(4)), 100, 64)

	// Concurrent insertions
	done := make(chan bool)
	for i := 0; i < 2; i++ {
		go func(start, end int) {
			for j := start; j < end; j++ {
				if _, err := graph.Insert(points[j]); err != nil {
					t.Errorf("Insert failed: %v", err)
				}
			}
			done <- true
		}(i*50, (i+1)*50)
	}

	// Wait for all insertions to complete
	for i := 0; i < 2; i++ {
		<-done
	}
	if graph.Len() != 100 {
		t.Fatalf("Expected 100 points, got %d", graph.Len())
	}

	// Concurrent searches
	query := randomPoints(rand.New(rand.NewSource(5)), 1, 64)[0]
	for i := 0; i < 2; i++ {
		go func() {
			results, err := graph.Search(query, 5)
			if err != nil {
				t.Errorf("Search failed: %v", err)
			} else if len(results) != 5 {
				t.Errorf("Expected 5 results, got %d", len(results))
			}
			done <- true
		}()
	}

	// Wait for all searches to complete
	for i := 0; i < 2; i++ {
		<-done
	}
}

func TestHNSWDifferentDistanceMetrics(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	points := randomPoints(rng, 50, 64)
	query := randomPoints(rng, 1, 64)[0]

	// Test different distance metrics
	metrics := []config.DistanceType{
		config.DistanceTypeEuclidean,
		config.DistanceTypeCosine,
		config.DistanceTypeManhattan,
		config.DistanceTypeHamming,
	}

	for _, metric := range metrics {
		graph := NewHNSWGraph(8, 100, metric, 42)
		for _, p := range points {
			if _, err := graph.Insert(p); err != nil {
				t.Errorf("Insert failed for metric %v: %v", metric, err)
			}
		}

		results, err := graph.Search(query, 5)
		if err != nil {
			t.Errorf("Search failed for metric %v: %v", metric, err)
			continue
		}
		if len(results) != 5 {
			t.Errorf("Expected 5 results for metric %v, got %d", metric, len(results))
		}
	}
}

func TestHNSWSelectNeighborsPrefersClosest(t *testing.T) {
	graph := NewHNSWGraph(2, 10, config.DistanceTypeEuclidean, 1)
	for _, p := range [][]float64{{1, 0}, {1.1, 0}, {-1, 0}, {5, 0}, {9, 0}} {
		if _, err := graph.Insert(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	// distances measured from the origin
	candidates := []Neighbor{
		{Index: 3, Distance: 5},
		{Index: 0, Distance: 1},
		{Index: 4, Distance: 9},
		{Index: 1, Distance: 1.1},
		{Index: 2, Distance: 1},
	}

	// 1.1 sits behind 1 and is skipped; -1 covers the other direction
	got := graph.selectNeighbors(candidates, 2)
	if len(got) != 2 || got[0] != 0 || got[1] != 2 {
		t.Errorf("Expected [0 2], got %v", got)
	}

	// skipped candidates fill the remaining slots closest first, never the far ones
	got = graph.selectNeighbors(candidates, 3)
	if len(got) != 3 || got[2] != 1 {
		t.Errorf("Expected the shadowed neighbor 1 as top-up, got %v", got)
	}
}

func TestHNSWDegreeCap(t *testing.T) {
	graph := NewHNSWGraph(4, 40, config.DistanceTypeEuclidean, 8)
	for _, p := range randomPoints(rand.New(rand.NewSource(8)), 300, 6) {
		if _, err := graph.Insert(p); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}
	for l, layer := range graph.Layers {
		for node, links := range layer {
			if len(links) > graph.maxLinks(l) {
				t.Errorf("Node %d on layer %d has %d links, cap is %d", node, l, len(links), graph.maxLinks(l))
			}
		}
	}
}
