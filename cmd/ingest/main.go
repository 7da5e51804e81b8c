// Command ingest loads reference PDFs into the vector store used for clause
// classification.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Itish41/ndareview/initializers"
	"github.com/Itish41/ndareview/logger"
	service "github.com/Itish41/ndareview/service"
)

// corpusService is the subset of *service.CorpusService the commands use.
type corpusService interface {
	Ingest(ctx context.Context, location string) (*service.IngestReport, error)
	Search(ctx context.Context, query string, limit int) ([]service.CorpusHit, error)
}

var (
	corpus  corpusService
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Manage the NDA reference corpus",
	Long: `Loads reference NDA documents into the vector store and queries it.
Configuration is read from .env, CONFIG_FILE and the environment, as for the server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
}

// setup builds the corpus service unless a test already injected one.
func setup(cmd *cobra.Command, args []string) error {
	if corpus != nil {
		return nil
	}
	if err := initializers.LoadEnv(); err != nil {
		return err
	}
	cfg, err := initializers.LoadIngestConfig()
	if err != nil {
		return err
	}
	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log, err := logger.New(cfg.AppEnv, level)
	if err != nil {
		return err
	}

	client, err := initializers.NewLLM(cfg, log)
	if err != nil {
		return err
	}
	vectors, err := initializers.NewVectorStore(cmd.Context(), cfg, log)
	if err != nil {
		return err
	}
	corpus = service.NewCorpusService(client, vectors, log, cfg.ChunkSize, cfg.ChunkOverlap)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
