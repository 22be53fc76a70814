package searcher

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Weight validation
const (
	// WeightSumTolerance is the allowed deviation when checking that the
	// semantic and keyword weights sum to 1.0.
	WeightSumTolerance = 0.001

	DefaultSemanticWeight = 0.7
	DefaultKeywordWeight  = 0.3
)

// ErrInvalidWeights is returned when fusion weights do not sum to 1.0
var ErrInvalidWeights = errors.New("semantic and keyword weights must sum to 1.0")

// HybridConfig holds the score fusion weights
type HybridConfig struct {
	SemanticWeight float64
	KeywordWeight  float64
}

// DefaultHybridConfig returns the default 70/30 semantic/keyword split
func DefaultHybridConfig() HybridConfig {
	return HybridConfig{
		SemanticWeight: DefaultSemanticWeight,
		KeywordWeight:  DefaultKeywordWeight,
	}
}

// Validate checks that the weights are non-negative and sum to 1.0 within
// tolerance.
func (c HybridConfig) Validate() error {
	if c.SemanticWeight < 0 || c.KeywordWeight < 0 {
		return fmt.Errorf("%w: weights cannot be negative", ErrInvalidWeights)
	}
	sum := c.SemanticWeight + c.KeywordWeight
	if math.Abs(sum-1.0) > WeightSumTolerance {
		return fmt.Errorf("%w: got %.3f + %.3f = %.3f", ErrInvalidWeights,
			c.SemanticWeight, c.KeywordWeight, sum)
	}
	return nil
}

// HybridRanker fuses semantic and keyword matches into a single ranking by
// weighted score combination.
type HybridRanker struct {
	config HybridConfig
}

// NewHybridRanker creates a ranker, rejecting weight configurations that do
// not sum to 1.0.
func NewHybridRanker(config HybridConfig) (*HybridRanker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &HybridRanker{config: config}, nil
}

// Config returns the current fusion weights
func (h *HybridRanker) Config() HybridConfig {
	return h.config
}

// fusedMatch tracks the per-side scores for one chunk during fusion
type fusedMatch struct {
	chunkID  int64
	semantic float64
	keyword  float64
	snippet  string
}

// Fuse combines the two result lists into one ranking. Each chunk's combined
// score is semantic*semanticWeight + keyword*keywordWeight, with a missing
// side contributing zero. Ties keep first-seen order: semantic matches enter
// before keyword matches, each list in its own order.
func (h *HybridRanker) Fuse(semantic, keyword []Match, limit int) []Match {
	byChunk := make(map[int64]int, len(semantic)+len(keyword))
	fused := make([]fusedMatch, 0, len(semantic)+len(keyword))

	for _, m := range semantic {
		if idx, ok := byChunk[m.ChunkID]; ok {
			fused[idx].semantic = m.Similarity
			continue
		}
		byChunk[m.ChunkID] = len(fused)
		fused = append(fused, fusedMatch{chunkID: m.ChunkID, semantic: m.Similarity})
	}

	for _, m := range keyword {
		if idx, ok := byChunk[m.ChunkID]; ok {
			fused[idx].keyword = m.Similarity
			if fused[idx].snippet == "" {
				fused[idx].snippet = m.Snippet
			}
			continue
		}
		byChunk[m.ChunkID] = len(fused)
		fused = append(fused, fusedMatch{chunkID: m.ChunkID, keyword: m.Similarity, snippet: m.Snippet})
	}

	// Stable sort keeps insertion order for equal combined scores
	sort.SliceStable(fused, func(i, j int) bool {
		return h.combined(fused[i]) > h.combined(fused[j])
	})

	if limit > 0 && limit < len(fused) {
		fused = fused[:limit]
	}

	// Per-side scores do not leave the ranker; callers see only the
	// combined score.
	results := make([]Match, len(fused))
	for i, f := range fused {
		results[i] = Match{
			ChunkID:    f.chunkID,
			Similarity: h.combined(f),
			Snippet:    f.snippet,
		}
	}
	return results
}

func (h *HybridRanker) combined(f fusedMatch) float64 {
	return f.semantic*h.config.SemanticWeight + f.keyword*h.config.KeywordWeight
}
