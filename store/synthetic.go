package store

import (
	"fmt"
	"math/rand"
)

var syntheticTopics = []string{"science", "history", "sports", "music", "travel", "finance", "health", "cooking"}

/*
SyntheticOptions describes a generated data set
*/
type SyntheticOptions struct {
	Namespace string
	Count     int
	Clusters  int
	Dims      int
	// standard deviation of the points around their cluster center
	Spread float64
	Seed   int64
	// every n-th record is stored without vector values; 0 disables
	MissingEvery int
}

/*
Synthetic fills a new in-memory store with records scattered around Clusters random centers.

Each record carries its cluster as category metadata, so the projection can be checked by eye.
*/
func Synthetic(opts SyntheticOptions) (*Memory, error) {
	if opts.Count <= 0 || opts.Dims <= 0 {
		return nil, fmt.Errorf("count and dims must be positive, got %d and %d", opts.Count, opts.Dims)
	}
	if opts.Clusters <= 0 {
		opts.Clusters = 1
	}
	if opts.Spread <= 0 {
		opts.Spread = 0.1
	}

	rng := rand.New(rand.NewSource(opts.Seed))

	// Generate cluster centers on the unit hypercube
	centers := make([][]float64, opts.Clusters)
	for c := range centers {
		centers[c] = make([]float64, opts.Dims)
		for d := range centers[c] {
			centers[c][d] = rng.Float64()*2 - 1
		}
	}

	m := NewMemory()
	if _, err := m.CreateNamespace(opts.Namespace); err != nil {
		return nil, err
	}

	for i := 0; i < opts.Count; i++ {
		cluster := i % opts.Clusters
		rec := Record{
			ID: fmt.Sprintf("doc-%05d", i),
			Metadata: map[string]any{
				"category": syntheticTopics[cluster%len(syntheticTopics)],
				"cluster":  cluster,
				"text":     fmt.Sprintf("Synthetic document %d about %s", i, syntheticTopics[cluster%len(syntheticTopics)]),
			},
		}
		if opts.MissingEvery <= 0 || (i+1)%opts.MissingEvery != 0 {
			rec.Values = make([]float64, opts.Dims)
			for d := range rec.Values {
				rec.Values[d] = centers[cluster][d] + rng.NormFloat64()*opts.Spread
			}
		}
		if err := m.Add(opts.Namespace, rec); err != nil {
			return nil, err
		}
	}
	return m, nil
}
