package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avencourt/memtext-mcp/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when trying to create a duplicate entity
	ErrAlreadyExists = errors.New("already exists")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Apply migrations
	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Document operations

func (s *SQLiteStorage) UpsertDocument(ctx context.Context, doc *types.Document) error {
	return s.upsertDocumentWithQuerier(ctx, s.db, doc)
}

func (s *SQLiteStorage) upsertDocumentWithQuerier(ctx context.Context, q querier, doc *types.Document) error {
	query := `
		INSERT INTO documents (uid, path, title, content, content_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at
		RETURNING id, uid, created_at
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		doc.UID, doc.Path, doc.Title, doc.Content, doc.ContentHash[:],
		now, now).Scan(&doc.ID, &doc.UID, &doc.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}

	doc.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*types.Document, error) {
	return s.getDocumentWhere(ctx, "id = ?", id)
}

func (s *SQLiteStorage) GetDocumentByUID(ctx context.Context, uid string) (*types.Document, error) {
	return s.getDocumentWhere(ctx, "uid = ?", uid)
}

func (s *SQLiteStorage) GetDocumentByPath(ctx context.Context, path string) (*types.Document, error) {
	return s.getDocumentWhere(ctx, "path = ?", path)
}

func (s *SQLiteStorage) getDocumentWhere(ctx context.Context, where string, arg interface{}) (*types.Document, error) {
	query := `
		SELECT id, uid, path, title, content, content_hash, created_at, updated_at
		FROM documents
		WHERE ` + where
	var doc types.Document
	var hash []byte
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&doc.ID, &doc.UID, &doc.Path, &doc.Title, &doc.Content,
		&hash, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(doc.ContentHash[:], hash)
	return &doc, nil
}

func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]*types.Document, error) {
	query := `
		SELECT id, uid, path, title, content, content_hash, created_at, updated_at
		FROM documents
		ORDER BY path
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	docs := make([]*types.Document, 0)
	for rows.Next() {
		var doc types.Document
		var hash []byte
		err := rows.Scan(
			&doc.ID, &doc.UID, &doc.Path, &doc.Title, &doc.Content,
			&hash, &doc.CreatedAt, &doc.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		copy(doc.ContentHash[:], hash)
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	query := `DELETE FROM documents WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, id)
	return err
}

// Chunk operations

// ReplaceChunks atomically replaces a document's chunk set. Old chunks, their
// FTS rows, and their embeddings go away in the same transaction, so a failed
// reindex never leaves mixed generations.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, documentID int64, chunks []*types.Chunk) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.deleteChunksByDocumentWithQuerier(ctx, tx, documentID); err != nil {
		return fmt.Errorf("failed to delete old chunks: %w", err)
	}

	for _, chunk := range chunks {
		chunk.DocumentID = documentID
		if err := s.insertChunkWithQuerier(ctx, tx, chunk); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStorage) insertChunkWithQuerier(ctx context.Context, q querier, chunk *types.Chunk) error {
	query := `
		INSERT INTO chunks (
			document_id, ordinal_index, heading_path, content,
			start_offset, end_offset, word_count, token_count, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	var headingPath interface{}
	if chunk.HeadingPath != nil {
		headingPath = *chunk.HeadingPath
	}

	result, err := q.ExecContext(ctx, query,
		chunk.DocumentID, chunk.OrdinalIndex, headingPath, chunk.Content,
		chunk.StartOffset, chunk.EndOffset, chunk.WordCount, chunk.TokenCount,
		time.Now())
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: chunk ordinal %d for document %d", ErrAlreadyExists, chunk.OrdinalIndex, chunk.DocumentID)
		}
		return fmt.Errorf("failed to insert chunk: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	chunk.ID = id
	return nil
}

func (s *SQLiteStorage) deleteChunksByDocumentWithQuerier(ctx context.Context, q querier, documentID int64) error {
	query := `DELETE FROM chunks WHERE document_id = ?`
	_, err := q.ExecContext(ctx, query, documentID)
	return err
}

func (s *SQLiteStorage) GetChunk(ctx context.Context, chunkID int64) (*types.Chunk, error) {
	return s.getChunkWhere(ctx, "id = ?", chunkID)
}

func (s *SQLiteStorage) GetChunkByOrdinal(ctx context.Context, documentID int64, ordinal int) (*types.Chunk, error) {
	return s.getChunkWhere(ctx, "document_id = ? AND ordinal_index = ?", documentID, ordinal)
}

func (s *SQLiteStorage) getChunkWhere(ctx context.Context, where string, args ...interface{}) (*types.Chunk, error) {
	query := `
		SELECT id, document_id, ordinal_index, heading_path, content,
		       start_offset, end_offset, word_count, token_count
		FROM chunks
		WHERE ` + where
	var chunk types.Chunk
	var headingPath sql.NullString

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&chunk.ID, &chunk.DocumentID, &chunk.OrdinalIndex, &headingPath,
		&chunk.Content, &chunk.StartOffset, &chunk.EndOffset,
		&chunk.WordCount, &chunk.TokenCount,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if headingPath.Valid {
		path := headingPath.String
		chunk.HeadingPath = &path
	}
	return &chunk, nil
}

func (s *SQLiteStorage) ListChunksByDocument(ctx context.Context, documentID int64) ([]*types.Chunk, error) {
	query := `
		SELECT id, document_id, ordinal_index, heading_path, content,
		       start_offset, end_offset, word_count, token_count
		FROM chunks
		WHERE document_id = ?
		ORDER BY ordinal_index
	`
	rows, err := s.db.QueryContext(ctx, query, documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	chunks := make([]*types.Chunk, 0)
	for rows.Next() {
		var chunk types.Chunk
		var headingPath sql.NullString

		err := rows.Scan(
			&chunk.ID, &chunk.DocumentID, &chunk.OrdinalIndex, &headingPath,
			&chunk.Content, &chunk.StartOffset, &chunk.EndOffset,
			&chunk.WordCount, &chunk.TokenCount,
		)
		if err != nil {
			return nil, err
		}

		if headingPath.Valid {
			path := headingPath.String
			chunk.HeadingPath = &path
		}
		chunks = append(chunks, &chunk)
	}
	return chunks, rows.Err()
}

// Embedding operations

func (s *SQLiteStorage) UpsertEmbedding(ctx context.Context, embedding *Embedding) error {
	query := `
		INSERT INTO embeddings (chunk_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now()
	result, err := s.db.ExecContext(ctx, query,
		embedding.ChunkID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}

	if embedding.ID == 0 {
		id, err := result.LastInsertId()
		if err == nil {
			embedding.ID = id
		}
	}

	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) GetEmbedding(ctx context.Context, chunkID int64) (*Embedding, error) {
	query := `
		SELECT id, chunk_id, vector, dimension, provider, model, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`
	var embedding Embedding
	err := s.db.QueryRowContext(ctx, query, chunkID).Scan(
		&embedding.ID, &embedding.ChunkID, &embedding.Vector,
		&embedding.Dimension, &embedding.Provider, &embedding.Model,
		&embedding.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &embedding, nil
}

func (s *SQLiteStorage) ClearEmbeddings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM embeddings`)
	return err
}

// Index maintenance

// ClearAll removes every document, chunk, and embedding. Cascade deletes and
// the FTS triggers keep the derived tables consistent.
func (s *SQLiteStorage) ClearAll(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{
		`DELETE FROM embeddings`,
		`DELETE FROM chunks`,
		`DELETE FROM documents`,
	} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to clear index: %w", err)
		}
	}

	return tx.Commit()
}

// Search operations

func (s *SQLiteStorage) SearchVector(ctx context.Context, queryVector []float32, limit int, minSimilarity float64) ([]VectorResult, error) {
	return searchVector(ctx, s.db, queryVector, limit, minSimilarity)
}

func (s *SQLiteStorage) SearchText(ctx context.Context, query string, limit int) ([]TextResult, error) {
	return searchText(ctx, s.db, query, limit)
}

// Stats returns index counts and the database size on disk.
func (s *SQLiteStorage) Stats(ctx context.Context) (*IndexStats, error) {
	stats := &IndexStats{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM documents", &stats.Documents},
		{"SELECT COUNT(*) FROM chunks", &stats.Chunks},
		{"SELECT COUNT(*) FROM embeddings", &stats.Embeddings},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var pageCount, pageSize int
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		stats.SizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return stats, nil
}
