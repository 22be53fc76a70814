package searcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/avencourt/memtext-mcp/internal/embedder"
	"github.com/avencourt/memtext-mcp/internal/storage"
	"github.com/avencourt/memtext-mcp/pkg/types"
)

const (
	// DefaultEmbedTimeout bounds how long a query waits on the embedding
	// provider before the search degrades to keyword-only.
	DefaultEmbedTimeout = 10 * time.Second

	// DefaultIndexPoolSize is the worker count for batch chunk embedding
	DefaultIndexPoolSize = 4
)

// SemanticConfig configures a SemanticIndex
type SemanticConfig struct {
	MinSimilarity float64
	EmbedTimeout  time.Duration
	PoolSize      int
}

// DefaultSemanticConfig returns the default semantic index configuration
func DefaultSemanticConfig() SemanticConfig {
	return SemanticConfig{
		MinSimilarity: 0.0,
		EmbedTimeout:  DefaultEmbedTimeout,
		PoolSize:      DefaultIndexPoolSize,
	}
}

// IndexStats reports the outcome of a batch indexing run. A batch succeeds
// partially: chunks that fail to embed are counted, not fatal.
type IndexStats struct {
	Indexed int
	Failed  int
}

// SemanticIndex performs vector similarity search over chunk embeddings.
// When the embedding provider is down it reports empty results rather than
// erroring, so hybrid search can degrade to keyword-only.
type SemanticIndex struct {
	storage  storage.Storage
	embedder embedder.Embedder
	config   SemanticConfig
	log      *slog.Logger
}

// NewSemanticIndex creates a semantic index over the given storage and provider
func NewSemanticIndex(st storage.Storage, emb embedder.Embedder, config SemanticConfig, log *slog.Logger) *SemanticIndex {
	if config.EmbedTimeout <= 0 {
		config.EmbedTimeout = DefaultEmbedTimeout
	}
	if config.PoolSize <= 0 {
		config.PoolSize = DefaultIndexPoolSize
	}
	if log == nil {
		log = slog.Default()
	}

	return &SemanticIndex{
		storage:  st,
		embedder: emb,
		config:   config,
		log:      log,
	}
}

// Available reports whether the embedding provider can serve requests
func (s *SemanticIndex) Available() bool {
	return s.embedder != nil && s.embedder.Available()
}

// IndexChunk embeds a single chunk and persists the vector
func (s *SemanticIndex) IndexChunk(ctx context.Context, chunk *types.Chunk) error {
	if chunk == nil || chunk.Content == "" {
		return fmt.Errorf("cannot index empty chunk")
	}
	if !s.Available() {
		return fmt.Errorf("index chunk %d: %w", chunk.ID, embedder.ErrProviderUnavailable)
	}

	emb, err := s.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", chunk.ID, err)
	}

	return s.storage.UpsertEmbedding(ctx, &storage.Embedding{
		ChunkID:   chunk.ID,
		Vector:    storage.SerializeVector(emb.Vector),
		Dimension: emb.Dimension,
		Provider:  emb.Provider,
		Model:     emb.Model,
	})
}

// IndexChunks embeds a batch of chunks on a bounded worker pool. Individual
// failures are logged and counted; the batch keeps going.
func (s *SemanticIndex) IndexChunks(ctx context.Context, chunks []*types.Chunk) (*IndexStats, error) {
	stats := &IndexStats{}
	if len(chunks) == 0 {
		return stats, nil
	}

	pool, err := ants.NewPool(s.config.PoolSize)
	if err != nil {
		return nil, fmt.Errorf("create index pool: %w", err)
	}
	defer pool.Release()

	var indexed, failed int64
	var wg sync.WaitGroup

	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if err := s.IndexChunk(ctx, chunk); err != nil {
				s.log.Warn("chunk embedding failed",
					"chunk_id", chunk.ID,
					"ordinal", chunk.OrdinalIndex,
					"error", err)
				atomic.AddInt64(&failed, 1)
				return
			}
			atomic.AddInt64(&indexed, 1)
		})
		if err != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
		}
	}

	wg.Wait()

	stats.Indexed = int(atomic.LoadInt64(&indexed))
	stats.Failed = int(atomic.LoadInt64(&failed))
	return stats, nil
}

// Search embeds the query and returns the nearest chunks above the configured
// similarity floor. An unavailable or failing provider yields empty results,
// never an error.
func (s *SemanticIndex) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		return []Match{}, nil
	}

	if !s.Available() {
		s.log.Debug("embedding provider unavailable, skipping semantic search")
		return []Match{}, nil
	}

	embCtx, cancel := context.WithTimeout(ctx, s.config.EmbedTimeout)
	defer cancel()

	emb, err := s.embedder.Embed(embCtx, query)
	if err != nil {
		s.log.Warn("query embedding failed, degrading to keyword-only", "error", err)
		return []Match{}, nil
	}

	vectorResults, err := s.storage.SearchVector(ctx, emb.Vector, limit, s.config.MinSimilarity)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}

	matches := make([]Match, len(vectorResults))
	for i, vr := range vectorResults {
		matches[i] = Match{
			ChunkID:    vr.ChunkID,
			Similarity: vr.Similarity,
		}
	}

	return matches, nil
}
