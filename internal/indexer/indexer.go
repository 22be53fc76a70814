package indexer

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/avencourt/memtext-mcp/internal/chunker"
	"github.com/avencourt/memtext-mcp/internal/parser"
	"github.com/avencourt/memtext-mcp/internal/searcher"
	"github.com/avencourt/memtext-mcp/internal/storage"
	"github.com/avencourt/memtext-mcp/pkg/types"
)

// Indexer coordinates the ingestion pipeline: parse -> chunk -> store -> embed
type Indexer struct {
	parser   *parser.Parser
	chunker  *chunker.Chunker
	storage  storage.Storage
	semantic *searcher.SemanticIndex
	log      *slog.Logger

	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Workers        int // Number of concurrent workers (default: runtime.NumCPU())
	SkipEmbeddings bool
	ChunkerConfig  *chunker.Config
}

// Statistics contains statistics about an ingestion operation
type Statistics struct {
	DocumentsIndexed  int
	DocumentsSkipped  int
	DocumentsFailed   int
	ChunksCreated     int
	ChunksEmbedded    int
	EmbeddingFailures int
	Duration          time.Duration
	ErrorMessages     []string
}

// New creates a new Indexer instance
func New(st storage.Storage, semantic *searcher.SemanticIndex, log *slog.Logger) *Indexer {
	if log == nil {
		log = slog.Default()
	}
	return &Indexer{
		parser:   parser.New(),
		chunker:  chunker.New(chunker.DefaultConfig()),
		storage:  st,
		semantic: semantic,
		log:      log,
		workers:  runtime.NumCPU(),
	}
}

// IndexContent ingests a single document given its content directly. A
// document whose content hash matches the stored version is skipped.
func (idx *Indexer) IndexContent(ctx context.Context, path, content string, config *Config) (*Statistics, error) {
	config = idx.applyDefaults(config)
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	if err := idx.indexDocument(ctx, path, content, config, stats, &sync.Mutex{}); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// IndexFile ingests a single document from disk
func (idx *Indexer) IndexFile(ctx context.Context, path string, config *Config) (*Statistics, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return idx.IndexContent(ctx, path, string(content), config)
}

// IndexDirectory ingests every markdown and text file under rootPath,
// processing documents concurrently on a bounded errgroup.
func (idx *Indexer) IndexDirectory(ctx context.Context, rootPath string, config *Config) (*Statistics, error) {
	config = idx.applyDefaults(config)
	startTime := time.Now()
	stats := &Statistics{ErrorMessages: make([]string, 0)}

	files, err := idx.discoverFiles(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(config.Workers)

	for _, path := range files {
		path := path
		g.Go(func() error {
			content, err := os.ReadFile(path)
			if err != nil {
				mu.Lock()
				stats.DocumentsFailed++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
				return nil // Keep going; a bad file should not abort the batch
			}

			if err := idx.indexDocument(gctx, path, string(content), config, stats, &mu); err != nil {
				mu.Lock()
				stats.DocumentsFailed++
				stats.ErrorMessages = append(stats.ErrorMessages, fmt.Sprintf("%s: %v", path, err))
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	stats.Duration = time.Since(startTime)
	return stats, nil
}

// indexDocument runs the full pipeline for one document. The mutex guards the
// shared stats when called from concurrent workers.
func (idx *Indexer) indexDocument(ctx context.Context, path, content string, config *Config, stats *Statistics, mu *sync.Mutex) error {
	contentHash := sha256.Sum256([]byte(content))

	// Skip unchanged documents
	existing, err := idx.storage.GetDocumentByPath(ctx, path)
	if err == nil && existing.ContentHash == contentHash {
		mu.Lock()
		stats.DocumentsSkipped++
		mu.Unlock()
		idx.log.Debug("document unchanged, skipping", "path", path)
		return nil
	}
	if err != nil && err != storage.ErrNotFound {
		return err
	}

	doc := &types.Document{
		UID:         uuid.NewString(),
		Path:        path,
		Title:       idx.parser.Title(content),
		Content:     content,
		ContentHash: contentHash,
	}
	if err := idx.storage.UpsertDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to store document: %w", err)
	}

	headings := idx.parser.ParseHeadings(content)

	ck := idx.chunker
	if config.ChunkerConfig != nil {
		ck = chunker.New(*config.ChunkerConfig)
	}
	chunks := ck.Chunk(content, headings)

	if err := idx.storage.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	var embedded, embedFailed int
	if !config.SkipEmbeddings && idx.semantic != nil && idx.semantic.Available() {
		indexStats, err := idx.semantic.IndexChunks(ctx, chunks)
		if err != nil {
			idx.log.Warn("batch embedding failed", "path", path, "error", err)
		} else {
			embedded = indexStats.Indexed
			embedFailed = indexStats.Failed
		}
	}

	mu.Lock()
	stats.DocumentsIndexed++
	stats.ChunksCreated += len(chunks)
	stats.ChunksEmbedded += embedded
	stats.EmbeddingFailures += embedFailed
	mu.Unlock()

	idx.log.Info("document indexed",
		"path", path,
		"chunks", len(chunks),
		"embedded", embedded)
	return nil
}

// discoverFiles finds indexable text files under rootPath
func (idx *Indexer) discoverFiles(rootPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			name := info.Name()
			if strings.HasPrefix(name, ".") && name != "." && name != ".." {
				return filepath.SkipDir
			}
			return nil
		}

		switch strings.ToLower(filepath.Ext(path)) {
		case ".md", ".markdown", ".txt":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}

func (idx *Indexer) applyDefaults(config *Config) *Config {
	if config == nil {
		config = &Config{}
	}
	if config.Workers <= 0 {
		config.Workers = runtime.NumCPU()
	}
	return config
}
