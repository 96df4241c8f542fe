// docctl is the operator CLI: offline index maintenance against the same
// data directory the API server uses. Stop the server before running write
// commands, the sqlite databases are single-writer.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/obig20/docorganizer/internal/config"
	"github.com/obig20/docorganizer/internal/domain"
	"github.com/obig20/docorganizer/internal/index/keyword"
	"github.com/obig20/docorganizer/internal/index/vector"
	logpkg "github.com/obig20/docorganizer/internal/logger"
	"github.com/obig20/docorganizer/internal/store"
	openaiEmb "github.com/obig20/docorganizer/internal/transport/openai"
	indexeruc "github.com/obig20/docorganizer/internal/usecase/indexer"
	"github.com/obig20/docorganizer/internal/version"
)

var (
	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "docctl",
	Short:         "Maintenance CLI for the docorganizer search indices",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(config.GetEnv())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, err = logpkg.NewLogger(config.GetEnv(), cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("create logger: %w", err)
		}
		return nil
	},
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the keyword and vector indices from the document store",
	RunE: func(cmd *cobra.Command, args []string) error {
		workers, _ := cmd.Flags().GetInt("workers")

		docStore, err := store.Open(cfg.Storage.DocumentsDB)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer func() { _ = docStore.Close() }()

		kw := keyword.Open(cfg.Storage.KeywordIndex, logger)
		defer func() { _ = kw.Close() }()

		vec, err := vector.Open(cfg.Storage.VectorIndex, cfg.Embedding.Dimensions)
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}

		var embedder domain.Embedder
		if cfg.Embedding.Enabled() {
			embedder = openaiEmb.NewEmbedder(&openaiEmb.Config{
				APIKey:     cfg.Embedding.APIKey,
				BaseURL:    cfg.Embedding.BaseURL,
				Model:      cfg.Embedding.Model,
				Dimensions: cfg.Embedding.Dimensions,
				Provider:   cfg.Embedding.Provider,
				Logger:     logger,
			})
		} else {
			fmt.Fprintln(os.Stderr, "no embedding api key configured, rebuilding keyword index only")
		}

		svc := indexeruc.New(kw, vec, embedder, docStore, logger).WithWorkers(workers)

		start := time.Now()
		indexed, err := svc.Reindex(context.Background())
		if err != nil {
			return fmt.Errorf("reindex: %w", err)
		}

		fmt.Printf("reindexed %d documents in %s\n", indexed, time.Since(start).Round(time.Millisecond))
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Rewrite the vector index dropping tombstoned rows",
	RunE: func(cmd *cobra.Command, args []string) error {
		vec, err := vector.Open(cfg.Storage.VectorIndex, cfg.Embedding.Dimensions)
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}

		before := vec.Rows()
		dropped, err := vec.Compact()
		if err != nil {
			return fmt.Errorf("compact: %w", err)
		}

		fmt.Printf("compacted vector index: %d rows, dropped %d tombstones\n", before-dropped, dropped)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print document and index counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		docStore, err := store.Open(cfg.Storage.DocumentsDB)
		if err != nil {
			return fmt.Errorf("open document store: %w", err)
		}
		defer func() { _ = docStore.Close() }()

		kw := keyword.Open(cfg.Storage.KeywordIndex, logger)
		defer func() { _ = kw.Close() }()

		vec, err := vector.Open(cfg.Storage.VectorIndex, cfg.Embedding.Dimensions)
		if err != nil {
			return fmt.Errorf("open vector index: %w", err)
		}

		docs, err := docStore.Count(ctx)
		if err != nil {
			return fmt.Errorf("count documents: %w", err)
		}
		kwCount, err := kw.Count(ctx)
		if err != nil {
			return fmt.Errorf("count keyword entries: %w", err)
		}

		fmt.Printf("documents:       %d\n", docs)
		fmt.Printf("keyword entries: %d (available: %t)\n", kwCount, kw.Available())
		fmt.Printf("vectors:         %d live, %d rows on disk (dim %d)\n", vec.Count(), vec.Rows(), vec.Dim())
		return nil
	},
}

func main() {
	reindexCmd.Flags().Int("workers", 4, "concurrent embedding workers")

	rootCmd.AddCommand(reindexCmd, compactCmd, statsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
