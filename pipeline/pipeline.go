package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"vector-viz/config"
	"vector-viz/reduce"
	"vector-viz/store"
)

/*
Options configures one pipeline.
*/
type Options struct {
	Namespace string
	PageSize  int
	BatchSize int
	Workers   int
	Policy    config.VectorPolicy
	Dims      int
	// false skips the projection stage; rows keep zero coordinates
	Projection bool
	Reducer    Reducer
	// called after every fetched batch
	OnBatch func(done, total int)
}

/*
OptionsFromConfig builds pipeline options from the application configuration
*/
func OptionsFromConfig(cfg *config.Config, reducer Reducer) Options {
	return Options{
		Namespace:  cfg.Pinecone.Namespace,
		PageSize:   cfg.Pipeline.PageSize,
		BatchSize:  cfg.Pipeline.BatchSize,
		Workers:    cfg.Pipeline.Workers,
		Policy:     cfg.Pipeline.VectorPolicy,
		Dims:       cfg.Pipeline.Dimensions,
		Projection: cfg.Pipeline.Projection,
		Reducer:    reducer,
	}
}

/*
Pipeline lists, fetches, flattens and projects the records of one namespace.

It holds no state between runs, so a single pipeline can serve both the CLI and the API.
*/
type Pipeline struct {
	src    store.Source
	opts   Options
	logger logrus.FieldLogger
}

/*
New creates a pipeline reading from src
*/
func New(src store.Source, opts Options, logger logrus.FieldLogger) *Pipeline {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 100
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Dims != 2 && opts.Dims != 3 {
		opts.Dims = 3
	}
	if opts.Policy == "" {
		opts.Policy = config.VectorPolicyRequire
	}
	if opts.Projection && opts.Reducer == nil {
		opts.Reducer = reduce.NewUMAP(config.DefaultConfig().Projection)
	}
	return &Pipeline{src: src, opts: opts, logger: logger}
}

/*
Options returns the effective options
*/
func (p *Pipeline) Options() Options {
	return p.opts
}

/*
Run executes the pipeline once.

A nil table with a nil error means there was nothing to export: the namespace is empty or no
record survived fetching.
*/
func (p *Pipeline) Run(ctx context.Context) (*Table, error) {
	return p.RunWithProgress(ctx, p.opts.OnBatch)
}

/*
RunWithProgress is Run with a per-call progress callback in place of the configured one
*/
func (p *Pipeline) RunWithProgress(ctx context.Context, onBatch func(done, total int)) (*Table, error) {
	start := time.Now()
	logger := p.logger.WithFields(logrus.Fields{
		"run_id":    uuid.NewString(),
		"namespace": p.opts.Namespace,
	})

	ids, err := ListIDs(ctx, p.src, p.opts.Namespace, p.opts.PageSize, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to list record ids")
		return nil, err
	}
	if len(ids) == 0 {
		logger.Info("No record ids found")
		return nil, nil
	}
	logger.WithField("ids", len(ids)).Info("Listed record ids")

	records, err := FetchRecords(ctx, p.src, p.opts.Namespace, ids, FetchOptions{
		BatchSize: p.opts.BatchSize,
		Workers:   p.opts.Workers,
		Policy:    p.opts.Policy,
		OnBatch:   onBatch,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}
	if len(records) == 0 {
		logger.Warn("No records fetched")
		return nil, nil
	}

	table, vectors := buildTable(records, p.opts.Dims, logger)

	method := MethodNone
	if p.opts.Projection {
		method = Project(table, vectors, p.opts.Reducer, logger)
	}

	logger.WithFields(logrus.Fields{
		"rows":       table.Len(),
		"projection": method,
		"duration":   time.Since(start),
	}).Info("Pipeline finished")
	return table, nil
}

// buildTable flattens records into rows; repeated ids keep their first row, except the
// placeholder id, which stands for distinct records
func buildTable(records []store.Record, dims int, logger logrus.FieldLogger) (*Table, []Vector) {
	table := NewTable(dims)
	vectors := make([]Vector, 0, len(records))
	for _, rec := range records {
		row := Flatten(rec, table.Dims)
		if _, dup := table.Lookup(row.ID); dup && row.ID != UnknownID {
			logger.WithField("id", row.ID).Debug("Duplicate record, skipping")
			continue
		}
		table.Append(row)
		if rec.HasValues() {
			vectors = append(vectors, Vector{ID: row.ID, Values: rec.Values})
		}
	}
	return table, vectors
}
