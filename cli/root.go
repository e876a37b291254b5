package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vector-viz/config"
	"vector-viz/pipeline"
	"vector-viz/reduce"
	"vector-viz/store"
)

const defaultConfigFile = "./config.json"

/*
app holds what every command shares once the persistent flags are processed
*/
type app struct {
	cfgFile     string
	envFile     string
	logLevel    string
	fixturePath string

	cfg *config.Config
}

/*
NewRootCommand builds the command tree
*/
func NewRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "vector-viz",
		Short: "Export and visualize the records of a vector index",
		Long: `vector-viz pulls every record of a Pinecone namespace, flattens the metadata into a
table, projects the embeddings to 2D or 3D and serves the result over HTTP or writes it as CSV.

Example usage:
  vector-viz check                       # Verify credentials and show index stats
  vector-viz export -o embedding.csv     # Write the projected table
  vector-viz serve --port 5000           # Serve /api/vectors
  vector-viz fixture -o demo.json && vector-viz --fixture demo.json export`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file, JSON or YAML (default is ./config.json when present)")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "file with environment variables")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().StringVar(&a.fixturePath, "fixture", "", "read records from a JSON fixture instead of Pinecone")

	rootCmd.AddCommand(
		newServeCmd(a),
		newExportCmd(a),
		newCheckCmd(a),
		newFixtureCmd(),
	)
	return rootCmd
}

/*
Execute runs the command line
*/
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	// load the environment variables
	if err := godotenv.Load(a.envFile); err != nil {
		if cmd.Flags().Changed("env-file") || !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	config.ApplyEnv(cfg)
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	// Initialize logging
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	log.SetLevel(level)

	a.cfg = cfg
	return nil
}

func (a *app) loadConfig() (*config.Config, error) {
	if a.cfgFile != "" {
		cfg, err := config.LoadFromFile(a.cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.LoadFromFile(defaultConfigFile)
	if errors.Is(err, fs.ErrNotExist) {
		return config.DefaultConfig(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

/*
source returns the fixture store when one is given, the Pinecone client otherwise.
Missing credentials fail here, before any request is made.
*/
func (a *app) source() (store.Source, error) {
	if a.fixturePath != "" {
		m, err := store.LoadFixture(a.fixturePath)
		if err != nil {
			return nil, fmt.Errorf("failed to load fixture: %w", err)
		}
		log.WithField("fixture", a.fixturePath).Info("Using fixture store")
		return m, nil
	}

	if err := a.cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	return store.NewPinecone(a.cfg.Pinecone), nil
}

func (a *app) newPipeline(src store.Source) *pipeline.Pipeline {
	opts := pipeline.OptionsFromConfig(a.cfg, reduce.NewUMAP(a.cfg.Projection))
	return pipeline.New(src, opts, log.StandardLogger())
}
