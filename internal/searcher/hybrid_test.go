package searcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHybridConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		semantic float64
		keyword  float64
		wantErr  bool
	}{
		{"default split", 0.7, 0.3, false},
		{"even split", 0.5, 0.5, false},
		{"all semantic", 1.0, 0.0, false},
		{"all keyword", 0.0, 1.0, false},
		{"within tolerance", 0.7005, 0.3, false},
		{"sum too high", 0.9, 0.3, true},
		{"sum too low", 0.4, 0.3, true},
		{"negative semantic", -0.2, 1.2, true},
		{"negative keyword", 1.2, -0.2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := HybridConfig{SemanticWeight: tt.semantic, KeywordWeight: tt.keyword}.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidWeights)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewHybridRanker_RejectsBadWeights(t *testing.T) {
	_, err := NewHybridRanker(HybridConfig{SemanticWeight: 0.9, KeywordWeight: 0.3})
	assert.ErrorIs(t, err, ErrInvalidWeights)

	r, err := NewHybridRanker(DefaultHybridConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultSemanticWeight, r.Config().SemanticWeight)
	assert.Equal(t, DefaultKeywordWeight, r.Config().KeywordWeight)
}

func TestFuse_WeightedCombination(t *testing.T) {
	r, err := NewHybridRanker(HybridConfig{SemanticWeight: 0.7, KeywordWeight: 0.3})
	require.NoError(t, err)

	semantic := []Match{
		{ChunkID: 1, Similarity: 0.9},
		{ChunkID: 2, Similarity: 0.4},
	}
	keyword := []Match{
		{ChunkID: 1, Similarity: 0.5, Snippet: "one <b>hit</b>"},
		{ChunkID: 3, Similarity: 1.0, Snippet: "keyword <b>only</b>"},
	}

	results := r.Fuse(semantic, keyword, 10)
	require.Len(t, results, 3)

	// chunk 1: 0.9*0.7 + 0.5*0.3 = 0.78
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.InDelta(t, 0.78, results[0].Similarity, 1e-9)
	assert.Equal(t, "one <b>hit</b>", results[0].Snippet)

	// chunk 3 keyword-only: 1.0*0.3 = 0.30
	assert.Equal(t, int64(3), results[1].ChunkID)
	assert.InDelta(t, 0.30, results[1].Similarity, 1e-9)
	assert.Equal(t, "keyword <b>only</b>", results[1].Snippet)

	// chunk 2 semantic-only: 0.4*0.7 = 0.28
	assert.Equal(t, int64(2), results[2].ChunkID)
	assert.InDelta(t, 0.28, results[2].Similarity, 1e-9)
	assert.Empty(t, results[2].Snippet)
}

func TestFuse_TiesKeepFirstSeenOrder(t *testing.T) {
	r, err := NewHybridRanker(HybridConfig{SemanticWeight: 0.5, KeywordWeight: 0.5})
	require.NoError(t, err)

	// All three chunks score 0.4 combined; semantic entries were seen first
	semantic := []Match{
		{ChunkID: 10, Similarity: 0.8},
		{ChunkID: 20, Similarity: 0.8},
	}
	keyword := []Match{
		{ChunkID: 30, Similarity: 0.8},
	}

	results := r.Fuse(semantic, keyword, 10)
	require.Len(t, results, 3)
	assert.Equal(t, int64(10), results[0].ChunkID)
	assert.Equal(t, int64(20), results[1].ChunkID)
	assert.Equal(t, int64(30), results[2].ChunkID)
}

func TestFuse_TruncatesToLimit(t *testing.T) {
	r, err := NewHybridRanker(DefaultHybridConfig())
	require.NoError(t, err)

	semantic := make([]Match, 20)
	for i := range semantic {
		semantic[i] = Match{ChunkID: int64(i + 1), Similarity: 1.0 - float64(i)*0.01}
	}

	results := r.Fuse(semantic, nil, 5)
	require.Len(t, results, 5)
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.Equal(t, int64(5), results[4].ChunkID)
}

func TestFuse_EmptyInputs(t *testing.T) {
	r, err := NewHybridRanker(DefaultHybridConfig())
	require.NoError(t, err)

	assert.Empty(t, r.Fuse(nil, nil, 10))

	keywordOnly := r.Fuse(nil, []Match{{ChunkID: 1, Similarity: 0.5}}, 10)
	require.Len(t, keywordOnly, 1)
	assert.InDelta(t, 0.5*DefaultKeywordWeight, keywordOnly[0].Similarity, 1e-9)
}

func TestNormalizeRank(t *testing.T) {
	// FTS5 ranks are negative, smaller (more negative) is a better match
	assert.InDelta(t, 1.0, normalizeRank(0), 1e-9)
	assert.InDelta(t, 0.5, normalizeRank(-1.0), 1e-9)
	assert.InDelta(t, 0.25, normalizeRank(-3.0), 1e-9)

	// A better raw rank always yields a higher similarity
	assert.Greater(t, normalizeRank(-1.5), normalizeRank(-4.2))
}
