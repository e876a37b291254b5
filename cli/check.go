package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"vector-viz/store"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify the connection and show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch s := src.(type) {
			case *store.Memory:
				printFixture(out, s)
				return nil
			case *store.Pinecone:
				return checkPinecone(cmd, s, a.cfg.Pinecone.Index)
			}
			return nil
		},
	}
}

func printFixture(out io.Writer, m *store.Memory) {
	fmt.Fprintln(out, "Fixture namespaces:")
	for _, name := range m.ListNamespaces() {
		fmt.Fprintf(out, "  %-20q %d records\n", name, m.Count(name))
	}
}

func checkPinecone(cmd *cobra.Command, p *store.Pinecone, index string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if index != "" {
		indexes, err := p.ListIndexes(ctx)
		if err != nil {
			return fmt.Errorf("failed to list indexes: %w", err)
		}
		fmt.Fprintln(out, "Indexes:")
		for _, idx := range indexes {
			fmt.Fprintf(out, "  %s (dimension %d, metric %s)\n", idx.Name, idx.Dimension, idx.Metric)
		}

		desc, err := p.DescribeIndex(ctx, index)
		if err != nil {
			return fmt.Errorf("failed to describe index %s: %w", index, err)
		}
		fmt.Fprintf(out, "\nIndex %s: host %s, state %s, ready %v\n", desc.Name, desc.Host, desc.Status.State, desc.Status.Ready)
	}

	stats, err := p.DescribeIndexStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to describe index stats: %w", err)
	}
	fmt.Fprintf(out, "\nTotal vectors: %d, dimension %d, fullness %.2f\n", stats.TotalVectorCount, stats.Dimension, stats.IndexFullness)

	names := make([]string, 0, len(stats.Namespaces))
	for name := range stats.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-20q %d vectors\n", name, stats.Namespaces[name].VectorCount)
	}
	return nil
}
