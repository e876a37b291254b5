package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"vector-viz/config"
	"vector-viz/store"
)

/*
FetchOptions controls how identifiers are fetched.
*/
type FetchOptions struct {
	BatchSize int
	// batches fetched concurrently; 1 fetches strictly in order
	Workers int
	Policy  config.VectorPolicy
	// called after every batch, successful or not
	OnBatch func(done, total int)
	Logger  logrus.FieldLogger
}

/*
Batches splits ids into contiguous chunks of at most size ids
*/
func Batches(ids []string, size int) [][]string {
	if size <= 0 {
		size = 100
	}
	batches := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		batches = append(batches, ids[start:end])
	}
	return batches
}

/*
FetchRecords fetches the records for ids, one request per batch.

A failed batch is logged and contributes no records; the other batches are unaffected and
nothing is retried. Records without vector values are dropped with a warning unless the
policy allows them. The result follows batch order regardless of the number of workers.
Only cancellation of ctx makes FetchRecords return an error.
*/
func FetchRecords(ctx context.Context, src store.Source, namespace string, ids []string, opts FetchOptions) ([]store.Record, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	batches := Batches(ids, opts.BatchSize)
	results := make([][]store.Record, len(batches))

	var done atomic.Int32
	fetch := func(ctx context.Context, i int) {
		batch := batches[i]
		records, err := src.Fetch(ctx, namespace, batch)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"batch": i + 1,
				"of":    len(batches),
				"size":  len(batch),
			}).WithError(err).Warn("Failed to fetch batch, skipping")
		} else {
			results[i] = keepRecords(records, batch, opts.Policy, logger)
		}
		n := done.Add(1)
		if opts.OnBatch != nil {
			opts.OnBatch(int(n), len(batches))
		}
	}

	if opts.Workers <= 1 {
		for i := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fetch(ctx, i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range batches {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				fetch(gctx, i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []store.Record
	for _, r := range results {
		records = append(records, r...)
	}
	return records, nil
}

/*
keepRecords applies the vector policy and discards records that were not requested
*/
func keepRecords(records []store.Record, requested []string, policy config.VectorPolicy, logger logrus.FieldLogger) []store.Record {
	wanted := make(map[string]bool, len(requested))
	for _, id := range requested {
		wanted[id] = true
	}

	kept := make([]store.Record, 0, len(records))
	for _, rec := range records {
		if !wanted[rec.ID] {
			continue
		}
		if !rec.HasValues() && policy != config.VectorPolicyAllowMissing {
			logger.WithField("id", rec.ID).Warn("Record has no vector values, dropping")
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}
