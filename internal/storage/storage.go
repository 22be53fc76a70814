package storage

import (
	"context"
	"time"

	"github.com/avencourt/memtext-mcp/pkg/types"
)

// Storage defines the interface for persisting and querying indexed documents
type Storage interface {
	// Document operations
	UpsertDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, id int64) (*types.Document, error)
	GetDocumentByUID(ctx context.Context, uid string) (*types.Document, error)
	GetDocumentByPath(ctx context.Context, path string) (*types.Document, error)
	ListDocuments(ctx context.Context) ([]*types.Document, error)
	DeleteDocument(ctx context.Context, id int64) error

	// Chunk operations. ReplaceChunks atomically swaps a document's chunk set
	// so ordinal uniqueness is never violated mid-reindex.
	ReplaceChunks(ctx context.Context, documentID int64, chunks []*types.Chunk) error
	GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error)
	GetChunkByOrdinal(ctx context.Context, documentID int64, ordinal int) (*types.Chunk, error)
	ListChunksByDocument(ctx context.Context, documentID int64) ([]*types.Chunk, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error)
	ClearEmbeddings(ctx context.Context) error

	// Search operations
	SearchVector(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]VectorResult, error)
	SearchText(ctx context.Context, query string, limit int) ([]TextResult, error)

	// Index maintenance
	ClearAll(ctx context.Context) error
	Stats(ctx context.Context) (*IndexStats, error)

	// Database operations
	Close() error
}

// Embedding represents a stored vector embedding for a chunk
type Embedding struct {
	ID        int64
	ChunkID   int64
	Vector    []byte // Serialized float32 array
	Dimension int
	Provider  string
	Model     string
	CreatedAt time.Time
}

// VectorResult represents a result from vector similarity search
type VectorResult struct {
	ChunkID    int64
	Similarity float64
}

// TextResult represents a result from full-text search. Rank is the raw FTS5
// BM25 rank: negative, with smaller values being better matches.
type TextResult struct {
	ChunkID int64
	Rank    float64
	Snippet string
}

// IndexStats contains counts and size information about the index
type IndexStats struct {
	Documents  int
	Chunks     int
	Embeddings int
	SizeMB     float64
}
