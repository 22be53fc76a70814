package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/avencourt/memtext-mcp/internal/embedder"
	"github.com/avencourt/memtext-mcp/internal/indexer"
	"github.com/avencourt/memtext-mcp/internal/searcher"
	"github.com/avencourt/memtext-mcp/internal/storage"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "memtextctl",
		Usage:   "index and search text documents from the command line",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Usage:   "database directory",
				EnvVars: []string{"MEMTEXT_DB_DIR"},
			},
		},
		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			statsCommand(),
			clearCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

// app bundles the wired components behind a CLI invocation
type app struct {
	storage  storage.Storage
	indexer  *indexer.Indexer
	searcher *searcher.Searcher
}

func newApp(c *cli.Context) (*app, error) {
	dbDir := c.String("db")
	if dbDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbDir = filepath.Join(home, ".memtext")
	}
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	store, err := storage.NewSQLiteStorage(filepath.Join(dbDir, "memtext.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	semantic := searcher.NewSemanticIndex(store, emb, searcher.DefaultSemanticConfig(), logger)

	srch, err := searcher.NewSearcher(store, semantic, searcher.DefaultHybridConfig(), logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{
		storage:  store,
		indexer:  indexer.New(store, semantic, logger),
		searcher: srch,
	}, nil
}

func (a *app) close() {
	_ = a.storage.Close()
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "index a document or directory",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "recursive",
				Usage: "index every markdown/text file under a directory",
			},
			&cli.BoolFlag{
				Name:  "skip-embeddings",
				Usage: "store chunks without embeddings (keyword search only)",
			},
		},
		Action: func(c *cli.Context) error {
			path := c.Args().First()
			if path == "" {
				return fmt.Errorf("path argument is required")
			}

			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			config := &indexer.Config{SkipEmbeddings: c.Bool("skip-embeddings")}

			var stats *indexer.Statistics
			if c.Bool("recursive") {
				stats, err = a.indexer.IndexDirectory(context.Background(), path, config)
			} else {
				stats, err = a.indexer.IndexFile(context.Background(), path, config)
			}
			if err != nil {
				return err
			}

			color.Green("indexed %d document(s) in %s", stats.DocumentsIndexed, stats.Duration.Round(1e6))
			fmt.Printf("  skipped:    %d\n", stats.DocumentsSkipped)
			fmt.Printf("  failed:     %d\n", stats.DocumentsFailed)
			fmt.Printf("  chunks:     %d\n", stats.ChunksCreated)
			fmt.Printf("  embedded:   %d\n", stats.ChunksEmbedded)
			if stats.EmbeddingFailures > 0 {
				color.Yellow("  embedding failures: %d", stats.EmbeddingFailures)
			}
			for _, msg := range stats.ErrorMessages {
				color.Red("  %s", msg)
			}
			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search indexed documents",
		ArgsUsage: "<query>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Value: 10,
				Usage: "maximum number of results",
			},
			&cli.Float64Flag{
				Name:  "semantic-weight",
				Value: searcher.DefaultSemanticWeight,
				Usage: "weight for semantic similarity scores",
			},
			&cli.Float64Flag{
				Name:  "keyword-weight",
				Value: searcher.DefaultKeywordWeight,
				Usage: "weight for keyword match scores",
			},
		},
		Action: func(c *cli.Context) error {
			query := c.Args().First()
			if query == "" {
				return fmt.Errorf("query argument is required")
			}

			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.searcher.Reconfigure(searcher.HybridConfig{
				SemanticWeight: c.Float64("semantic-weight"),
				KeywordWeight:  c.Float64("keyword-weight"),
			})
			if err != nil {
				return err
			}

			resp, err := a.searcher.Search(context.Background(), searcher.SearchRequest{
				Query: query,
				Limit: c.Int("limit"),
			})
			if err != nil {
				return err
			}

			if len(resp.Results) == 0 {
				color.Yellow("no results")
				return nil
			}

			title := color.New(color.FgCyan, color.Bold)
			dim := color.New(color.Faint)
			for _, r := range resp.Results {
				title.Printf("%d. %s", r.Rank, r.Document.Path)
				fmt.Printf("  (%.3f)\n", r.Similarity)
				if r.HeadingPath != "" {
					dim.Printf("   %s\n", r.HeadingPath)
				}
				if r.Snippet != "" {
					fmt.Printf("   %s\n", r.Snippet)
				} else {
					fmt.Printf("   %s\n", firstLine(r.Content))
				}
				fmt.Println()
			}
			dim.Printf("%d result(s) in %s\n", resp.TotalResults, resp.Duration.Round(1e6))
			return nil
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show index statistics",
		Action: func(c *cli.Context) error {
			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.searcher.Stats(context.Background())
			if err != nil {
				return err
			}

			fmt.Printf("documents:  %d\n", stats.Documents)
			fmt.Printf("chunks:     %d\n", stats.Chunks)
			fmt.Printf("embeddings: %d\n", stats.Embeddings)
			fmt.Printf("index size: %.2f MB\n", stats.IndexSizeMB)
			if stats.SemanticAvailable {
				color.Green("semantic search: available")
			} else {
				color.Yellow("semantic search: unavailable (keyword only)")
			}
			return nil
		},
	}
}

func clearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "remove all indexed data",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "yes",
				Usage: "confirm clearing the index",
			},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("yes") {
				return fmt.Errorf("pass --yes to confirm clearing the index")
			}

			a, err := newApp(c)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.searcher.ClearIndex(context.Background()); err != nil {
				return err
			}
			color.Green("index cleared")
			return nil
		},
	}
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
	}
	return s
}
