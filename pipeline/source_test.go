package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"vector-viz/store"
)

var errNetwork = errors.New("simulated network error")

// fakeSource wraps the in-memory store, counts requests and fails selected calls
type fakeSource struct {
	*store.Memory

	mu         sync.Mutex
	fetchSizes []int
	listCalls  int
	// 1-based numbers of Fetch calls that fail
	failFetch map[int]bool
	// batches containing this id fail
	failWith string
	// 1-based numbers of ListPage calls that fail
	failList map[int]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{Memory: store.NewMemory(), failFetch: map[int]bool{}, failList: map[int]error{}}
}

func (f *fakeSource) ListPage(ctx context.Context, namespace, cursor string, limit int) (store.Page, error) {
	f.mu.Lock()
	f.listCalls++
	err := f.failList[f.listCalls]
	f.mu.Unlock()
	if err != nil {
		return store.Page{}, err
	}
	return f.Memory.ListPage(ctx, namespace, cursor, limit)
}

func (f *fakeSource) Fetch(ctx context.Context, namespace string, ids []string) ([]store.Record, error) {
	f.mu.Lock()
	f.fetchSizes = append(f.fetchSizes, len(ids))
	fail := f.failFetch[len(f.fetchSizes)]
	f.mu.Unlock()
	for _, id := range ids {
		if f.failWith != "" && id == f.failWith {
			fail = true
		}
	}
	if fail {
		return nil, errNetwork
	}
	return f.Memory.Fetch(ctx, namespace, ids)
}

// seed adds n records with dims-dimensional random vectors and the given metadata
func (f *fakeSource) seed(namespace string, n, dims int, metadata map[string]any) []string {
	rng := rand.New(rand.NewSource(int64(n)))
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		values := make([]float64, dims)
		for j := range values {
			values[j] = rng.NormFloat64()
		}
		ids[i] = fmt.Sprintf("rec-%02d", i)
		meta := map[string]any{}
		for k, v := range metadata {
			meta[k] = v
		}
		if err := f.Add(namespace, store.Record{ID: ids[i], Values: values, Metadata: meta}); err != nil {
			panic(err)
		}
	}
	return ids
}
