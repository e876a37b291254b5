package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"vector-viz/store"
)

func newFixtureCmd() *cobra.Command {
	var (
		output string
		opts   store.SyntheticOptions
	)

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Generate a synthetic fixture for offline runs",
		Long: `Write a JSON fixture of clustered random vectors that --fixture can read instead of
a live index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := store.Synthetic(opts)
			if err != nil {
				return err
			}
			if err := store.SaveFixture(output, m); err != nil {
				return fmt.Errorf("failed to save fixture: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d records in %d clusters to %s\n", m.Count(opts.Namespace), opts.Clusters, output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "fixture.json", "output file")
	cmd.Flags().StringVarP(&opts.Namespace, "namespace", "n", "", "namespace of the records")
	cmd.Flags().IntVar(&opts.Count, "count", 300, "number of records")
	cmd.Flags().IntVar(&opts.Clusters, "clusters", 5, "number of clusters")
	cmd.Flags().IntVar(&opts.Dims, "dims", 64, "vector dimensionality")
	cmd.Flags().Float64Var(&opts.Spread, "spread", 0.1, "standard deviation around the cluster centers")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 42, "random seed")
	cmd.Flags().IntVar(&opts.MissingEvery, "missing-every", 0, "store every n-th record without a vector")
	return cmd
}
