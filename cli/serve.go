package cli

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vector-viz/api"
	"vector-viz/sink"
)

func newServeCmd(a *app) *cobra.Command {
	var host, port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the projected table over HTTP",
		Long: `Serve the table on /api/vectors and stream it over the /api/ws websocket.
The cached CSV is returned when present; otherwise the pipeline runs and its result is cached.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				a.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				a.cfg.Server.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			src, err := a.source()
			if err != nil {
				return err
			}
			cache := sink.NewFileCache(a.cfg.Output.Path, a.cfg.Output.Delimiter, a.cfg.Pipeline.Dimensions)
			server := api.NewServer(a.newPipeline(src), cache)

			printWelcome(cmd)

			// Handle graceful shutdown
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				addr := net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port)
				log.Info("Starting API server on ", addr)
				errCh <- server.Start(addr)
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("failed to start API server: %w", err)
			case <-ctx.Done():
			}
			log.Info("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "localhost", "Host address")
	cmd.Flags().StringVar(&port, "port", "5000", "Port number")
	return cmd
}

func printWelcome(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "                 _                          _     ")
	fmt.Fprintln(out, " __   _____  ___| |_ ___  _ __      __   _(_)____")
	fmt.Fprintln(out, " \\ \\ / / _ \\/ __| __/ _ \\| '__|____ \\ \\ / / |_  /")
	fmt.Fprintln(out, "  \\ V /  __/ (__| || (_) | | |_____| \\ V /| |/ / ")
	fmt.Fprintln(out, "   \\_/ \\___|\\___|\\__\\___/|_|          \\_/ |_/___|")
}
