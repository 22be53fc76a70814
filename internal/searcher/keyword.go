package searcher

import (
	"context"
	"fmt"
	"math"

	"github.com/avencourt/memtext-mcp/internal/storage"
)

// Match is a per-index search hit before fusion
type Match struct {
	ChunkID    int64
	Similarity float64
	Snippet    string
}

// KeywordIndex performs BM25 full-text search over chunk content. It is a
// thin layer over the FTS5 index that normalizes raw ranks into similarity
// scores comparable with the semantic side.
type KeywordIndex struct {
	storage storage.Storage
}

// NewKeywordIndex creates a keyword index over the given storage
func NewKeywordIndex(st storage.Storage) *KeywordIndex {
	return &KeywordIndex{storage: st}
}

// Search runs an FTS5 match and returns hits ordered best-first. The raw FTS5
// rank is negative with smaller values being better; it is normalized to
// similarity = 1/(|rank|+1) so scores land in (0, 1] with higher being better.
func (k *KeywordIndex) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	if query == "" {
		return nil, fmt.Errorf("query cannot be empty")
	}
	if limit <= 0 {
		return []Match{}, nil
	}

	textResults, err := k.storage.SearchText(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	matches := make([]Match, len(textResults))
	for i, tr := range textResults {
		matches[i] = Match{
			ChunkID:    tr.ChunkID,
			Similarity: normalizeRank(tr.Rank),
			Snippet:    tr.Snippet,
		}
	}

	return matches, nil
}

// normalizeRank converts a raw FTS5 BM25 rank into a similarity score
func normalizeRank(rank float64) float64 {
	return 1.0 / (math.Abs(rank) + 1.0)
}
