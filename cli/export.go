package cli

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vector-viz/config"
	"vector-viz/sink"
)

type exportFlags struct {
	output       string
	namespace    string
	batchSize    int
	dims         int
	workers      int
	noProjection bool
	upload       bool
	quiet        bool
}

func newExportCmd(a *app) *cobra.Command {
	var flags exportFlags

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run the pipeline once and write the table as CSV",
		Long: `Fetch every record of the namespace, project the embeddings and write the table.

With --no-projection the export keeps records without vector values and leaves the
coordinates at zero, which is enough for a metadata-only dump.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, a, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default from config)")
	cmd.Flags().StringVarP(&flags.namespace, "namespace", "n", "", "namespace to export")
	cmd.Flags().IntVar(&flags.batchSize, "batch-size", 100, "ids per fetch request")
	cmd.Flags().IntVar(&flags.dims, "dims", 3, "output dimensions (2 or 3)")
	cmd.Flags().IntVar(&flags.workers, "workers", 1, "concurrent fetch requests")
	cmd.Flags().BoolVar(&flags.noProjection, "no-projection", false, "export metadata only, keeping records without vectors")
	cmd.Flags().BoolVar(&flags.upload, "upload", false, "also upload the file to object storage")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func runExport(cmd *cobra.Command, a *app, flags exportFlags) error {
	cfg := a.cfg
	if cmd.Flags().Changed("output") {
		cfg.Output.Path = flags.output
	}
	if cmd.Flags().Changed("namespace") {
		cfg.Pinecone.Namespace = flags.namespace
	}
	if cmd.Flags().Changed("batch-size") {
		cfg.Pipeline.BatchSize = flags.batchSize
	}
	if cmd.Flags().Changed("dims") {
		cfg.Pipeline.Dimensions = flags.dims
	}
	if cmd.Flags().Changed("workers") {
		cfg.Pipeline.Workers = flags.workers
	}
	if flags.noProjection {
		cfg.Pipeline.Projection = false
		cfg.Pipeline.VectorPolicy = config.VectorPolicyAllowMissing
	}
	if flags.upload {
		cfg.Storage.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	src, err := a.source()
	if err != nil {
		return err
	}
	p := a.newPipeline(src)

	out := cmd.OutOrStdout()
	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	onBatch := func(done, total int) {
		if flags.quiet {
			return
		}
		barMu.Lock()
		defer barMu.Unlock()

		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Fetching batches[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Fprintln(cmd.ErrOrStderr())
				}),
			)
		}
		bar.Set(done)
	}

	table, err := p.RunWithProgress(cmd.Context(), onBatch)
	if err != nil {
		return err
	}
	if table == nil {
		fmt.Fprintln(out, "No vectors found, nothing written")
		return nil
	}

	cache := sink.NewFileCache(cfg.Output.Path, cfg.Output.Delimiter, cfg.Pipeline.Dimensions)
	if err := cache.Save(table); err != nil {
		return fmt.Errorf("failed to write %s: %w", cfg.Output.Path, err)
	}
	fmt.Fprintf(out, "Wrote %d rows (%d extra fields) to %s\n", table.Len(), len(table.Fields), cfg.Output.Path)

	if cfg.Storage.Enabled {
		objects, err := sink.NewObjectSink(cfg.Storage, cfg.Output.Delimiter)
		if err != nil {
			return err
		}
		key, err := objects.Upload(cmd.Context(), filepath.Base(cfg.Output.Path), table)
		if err != nil {
			return err
		}
		log.WithField("key", key).Debug("Export uploaded")
		fmt.Fprintf(out, "Uploaded to %s/%s\n", cfg.Storage.Bucket, key)
	}
	return nil
}
