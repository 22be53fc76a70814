package searcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/avencourt/memtext-mcp/internal/cache"
	"github.com/avencourt/memtext-mcp/internal/storage"
	"github.com/avencourt/memtext-mcp/pkg/types"
)

const (
	// DefaultLimit is applied when a request does not specify one
	DefaultLimit = 10

	// MaxLimit caps the number of results a single request can ask for
	MaxLimit = 100

	// ContextWords is how many adjacent-chunk words surround a result
	ContextWords = 50

	// Query cache defaults
	DefaultCacheSize = 1000
	DefaultCacheTTL  = 1 * time.Hour
)

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query    string
	Limit    int
	UseCache bool
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []types.SearchResult
	TotalResults  int
	Duration      time.Duration
	CacheHit      bool
	SemanticCount int
	KeywordCount  int
}

// Stats describes the current state of the index and query cache
type Stats struct {
	Documents         int
	Chunks            int
	Embeddings        int
	SemanticAvailable bool
	IndexSizeMB       float64
	Cache             cache.Stats
}

// Searcher coordinates hybrid retrieval: it fans a query out to the semantic
// and keyword indexes concurrently, fuses the rankings, hydrates results with
// document metadata and adjacency context, and caches whole result sets.
type Searcher struct {
	storage  storage.Storage
	semantic *SemanticIndex
	keyword  *KeywordIndex
	cache    *cache.Cache[[]types.SearchResult]
	log      *slog.Logger

	mu     sync.RWMutex
	ranker *HybridRanker
}

// NewSearcher creates a Searcher with the given fusion weights
func NewSearcher(st storage.Storage, semantic *SemanticIndex, config HybridConfig, log *slog.Logger) (*Searcher, error) {
	ranker, err := NewHybridRanker(config)
	if err != nil {
		return nil, err
	}

	queryCache, err := cache.New[[]types.SearchResult](DefaultCacheSize, DefaultCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("create query cache: %w", err)
	}

	if log == nil {
		log = slog.Default()
	}

	return &Searcher{
		storage:  st,
		semantic: semantic,
		keyword:  NewKeywordIndex(st),
		ranker:   ranker,
		cache:    queryCache,
		log:      log,
	}, nil
}

// Reconfigure swaps the fusion weights. Invalid weights leave the current
// configuration untouched.
func (s *Searcher) Reconfigure(config HybridConfig) error {
	ranker, err := NewHybridRanker(config)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.ranker = ranker
	s.mu.Unlock()
	return nil
}

// Config returns the active fusion weights
func (s *Searcher) Config() HybridConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ranker.Config()
}

// sideResult holds the outcome of one concurrent index search
type sideResult struct {
	matches []Match
	err     error
}

// Search runs a hybrid query. Each index receives an intake of twice the
// requested limit so fusion has enough overlap candidates to rerank.
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("invalid search request: %w", err)
	}

	key := s.cacheKey(req)
	if req.UseCache {
		if results, ok := s.cache.Get(key); ok {
			return &SearchResponse{
				Results:      results,
				TotalResults: len(results),
				Duration:     time.Since(startTime),
				CacheHit:     true,
			}, nil
		}
	}

	intake := req.Limit * 2
	semanticChan := make(chan sideResult, 1)
	keywordChan := make(chan sideResult, 1)

	go func() {
		matches, err := s.semantic.Search(ctx, req.Query, intake)
		select {
		case semanticChan <- sideResult{matches: matches, err: err}:
		case <-ctx.Done():
		}
	}()
	go func() {
		matches, err := s.keyword.Search(ctx, req.Query, intake)
		select {
		case keywordChan <- sideResult{matches: matches, err: err}:
		case <-ctx.Done():
		}
	}()

	var semanticRes, keywordRes sideResult
	var semanticDone, keywordDone bool
	for !semanticDone || !keywordDone {
		select {
		case semanticRes = <-semanticChan:
			semanticDone = true
		case keywordRes = <-keywordChan:
			keywordDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	// One side may fail; only a double failure is fatal
	if semanticRes.err != nil && keywordRes.err != nil {
		return nil, fmt.Errorf("both searches failed: semantic=%w, keyword=%v", semanticRes.err, keywordRes.err)
	}
	if semanticRes.err != nil {
		s.log.Warn("semantic search failed, using keyword results only", "error", semanticRes.err)
	}
	if keywordRes.err != nil {
		s.log.Warn("keyword search failed, using semantic results only", "error", keywordRes.err)
	}

	s.mu.RLock()
	fused := s.ranker.Fuse(semanticRes.matches, keywordRes.matches, req.Limit)
	s.mu.RUnlock()

	results, err := s.fetchResults(ctx, fused)
	if err != nil {
		return nil, err
	}

	if req.UseCache {
		s.cache.Set(key, results)
	}

	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		Duration:      time.Since(startTime),
		SemanticCount: len(semanticRes.matches),
		KeywordCount:  len(keywordRes.matches),
	}, nil
}

// fetchResults hydrates fused matches with chunk content, document metadata,
// and adjacency context. Matches whose chunk or document has gone away since
// ranking are skipped.
func (s *Searcher) fetchResults(ctx context.Context, fused []Match) ([]types.SearchResult, error) {
	results := make([]types.SearchResult, 0, len(fused))

	for _, m := range fused {
		chunk, err := s.storage.GetChunk(ctx, m.ChunkID)
		if err != nil {
			continue // Dangling reference, skip
		}

		doc, err := s.storage.GetDocument(ctx, chunk.DocumentID)
		if err != nil {
			continue
		}

		headingPath := ""
		if chunk.HeadingPath != nil {
			headingPath = *chunk.HeadingPath
		}

		results = append(results, types.SearchResult{
			ChunkID:    m.ChunkID,
			Rank:       len(results) + 1,
			Similarity: m.Similarity,
			Document: &types.DocumentInfo{
				UID:   doc.UID,
				Path:  doc.Path,
				Title: doc.Title,
			},
			Content:     chunk.Content,
			HeadingPath: headingPath,
			Context:     s.buildContext(ctx, chunk),
			Snippet:     m.Snippet,
		})
	}

	return results, nil
}

// buildContext surrounds a chunk with words from its document neighbors: the
// tail of the previous chunk and the head of the next, each ellipsis-marked.
func (s *Searcher) buildContext(ctx context.Context, chunk *types.Chunk) string {
	var parts []string

	if chunk.OrdinalIndex > 0 {
		prev, err := s.storage.GetChunkByOrdinal(ctx, chunk.DocumentID, chunk.OrdinalIndex-1)
		if err == nil {
			parts = append(parts, "..."+lastWords(prev.Content, ContextWords))
		}
	}

	next, err := s.storage.GetChunkByOrdinal(ctx, chunk.DocumentID, chunk.OrdinalIndex+1)
	if err == nil {
		parts = append(parts, firstWords(next.Content, ContextWords)+"...")
	}

	return strings.Join(parts, "\n\n")
}

// validateRequest ensures the search request is valid, applying defaults
func (s *Searcher) validateRequest(req *SearchRequest) error {
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = DefaultLimit
	}
	if req.Limit > MaxLimit {
		req.Limit = MaxLimit
	}
	return nil
}

// cacheKey builds a deterministic key covering everything that affects the
// result set, including the active fusion weights.
func (s *Searcher) cacheKey(req SearchRequest) string {
	config := s.Config()

	var data strings.Builder
	data.WriteString(req.Query)
	data.WriteString("|")
	fmt.Fprintf(&data, "%d", req.Limit)
	data.WriteString("|")
	fmt.Fprintf(&data, "%.3f:%.3f", config.SemanticWeight, config.KeywordWeight)

	hash := sha256.Sum256([]byte(data.String()))
	return fmt.Sprintf("%x", hash)
}

// Stats returns index counts, provider availability, and cache counters
func (s *Searcher) Stats(ctx context.Context) (*Stats, error) {
	indexStats, err := s.storage.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Documents:         indexStats.Documents,
		Chunks:            indexStats.Chunks,
		Embeddings:        indexStats.Embeddings,
		SemanticAvailable: s.semantic.Available(),
		IndexSizeMB:       indexStats.SizeMB,
		Cache:             s.cache.GetStats(),
	}, nil
}

// ClearIndex removes all indexed data and invalidates the query cache
func (s *Searcher) ClearIndex(ctx context.Context) error {
	if err := s.storage.ClearAll(ctx); err != nil {
		return err
	}
	s.cache.Clear()
	return nil
}

// InvalidateCache drops all cached query results. Called after reindexing.
func (s *Searcher) InvalidateCache() {
	s.cache.Clear()
}

// lastWords returns the trailing n whitespace-separated words of text
func lastWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}

// firstWords returns the leading n whitespace-separated words of text
func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
