// Package vectorstore persists dense embedding vectors keyed by
// reference id and document type, and ranks them by cosine similarity.
package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/kestrelfin/swiftpipe/internal/encoding"
	"github.com/kestrelfin/swiftpipe/internal/storeerr"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
)

// DocType tags what kind of entity a vector belongs to.
type DocType string

const (
	DocTypeMessage  DocType = "MESSAGE"
	DocTypeTemplate DocType = "TEMPLATE"
)

// Vector is one stored embedding and its associated metadata.
type Vector struct {
	ID        string
	DocType   DocType
	Embedding []float32
	ClusterID string
	Preview   string
}

// Scored pairs a vector id with its similarity to a query.
type Scored struct {
	ID         string
	Similarity float64
}

// Store is the SQLite-backed hybrid vector store.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (creating if necessary) the SQLite database at path and
// prepares the vectors table. The WAL/NORMAL pragma dial mirrors the
// teacher's store: good read concurrency with a bounded busy timeout.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_cache_size=-2000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, storeerr.Wrap("open", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(2 * time.Hour)

	s := &Store{db: db}
	if err := s.createTables(ctx); err != nil {
		db.Close()
		return nil, storeerr.Wrap("open", err)
	}

	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vectors (
			id         TEXT PRIMARY KEY,
			doc_type   TEXT NOT NULL,
			vector     BLOB NOT NULL,
			cluster_id TEXT NOT NULL DEFAULT '',
			preview    TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_vectors_doc_type ON vectors(doc_type);
		CREATE INDEX IF NOT EXISTS idx_vectors_cluster_id ON vectors(cluster_id);
	`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores or replaces a vector. A zero-magnitude vector is
// rejected and returns storeerr.ErrZeroVector — a skip signal, not a
// failure, per the store's consistency contract.
func (s *Store) Put(ctx context.Context, v Vector) error {
	if embed.Cosine(v.Embedding, v.Embedding) == 0 {
		return storeerr.ErrZeroVector
	}

	encoded, err := encoding.EncodeVector(v.Embedding)
	if err != nil {
		return storeerr.Wrap("put", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vectors (id, doc_type, vector, cluster_id, preview)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			doc_type = excluded.doc_type,
			vector = excluded.vector,
			cluster_id = excluded.cluster_id,
			preview = excluded.preview
	`, v.ID, string(v.DocType), encoded, v.ClusterID, preview200(v.Preview))
	if err != nil {
		return storeerr.Wrap("put", err)
	}

	return nil
}

func preview200(s string) string {
	if len(s) <= 200 {
		return s
	}
	return s[:200]
}

// Get fetches a vector by id.
func (s *Store) Get(ctx context.Context, id string) (*Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, doc_type, vector, cluster_id, preview FROM vectors WHERE id = ?
	`, id)

	return scanVector(row)
}

func scanVector(row *sql.Row) (*Vector, error) {
	var v Vector
	var docType string
	var blob []byte

	if err := row.Scan(&v.ID, &docType, &blob, &v.ClusterID, &v.Preview); err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("get", storeerr.ErrNotFound)
		}
		return nil, storeerr.Wrap("get", err)
	}

	vec, err := encoding.DecodeVector(blob)
	if err != nil {
		return nil, storeerr.Wrap("get", err)
	}

	v.DocType = DocType(docType)
	v.Embedding = vec
	return &v, nil
}

// Delete removes a vector by id. Deleting a missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM vectors WHERE id = ?`, id)
	if err != nil {
		return storeerr.Wrap("delete", err)
	}
	return nil
}

// ListByDocType returns all vectors of the given document type.
func (s *Store) ListByDocType(ctx context.Context, docType DocType) ([]Vector, error) {
	return s.query(ctx, `SELECT id, doc_type, vector, cluster_id, preview FROM vectors WHERE doc_type = ?`, string(docType))
}

// ListByCluster returns all vectors tagged with the given cluster id.
func (s *Store) ListByCluster(ctx context.Context, clusterID string) ([]Vector, error) {
	return s.query(ctx, `SELECT id, doc_type, vector, cluster_id, preview FROM vectors WHERE cluster_id = ?`, clusterID)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Vector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeerr.Wrap("query", err)
	}
	defer rows.Close()

	var out []Vector
	for rows.Next() {
		var v Vector
		var docType string
		var blob []byte

		if err := rows.Scan(&v.ID, &docType, &blob, &v.ClusterID, &v.Preview); err != nil {
			return nil, storeerr.Wrap("query", err)
		}

		vec, err := encoding.DecodeVector(blob)
		if err != nil {
			return nil, storeerr.Wrap("query", err)
		}

		v.DocType = DocType(docType)
		v.Embedding = vec
		out = append(out, v)
	}

	return out, rows.Err()
}

// TopK ranks every vector in docType's partition by cosine similarity
// to query and returns the best k. It is a full scan: dataset sizes
// for this domain are thousands, not millions, per the store's
// documented allowance to substitute an ANN index later without
// changing ranking semantics at the threshold boundary.
func (s *Store) TopK(ctx context.Context, query []float32, docType DocType, k int) ([]Scored, error) {
	vectors, err := s.ListByDocType(ctx, docType)
	if err != nil {
		return nil, err
	}

	scored := make([]Scored, 0, len(vectors))
	for _, v := range vectors {
		scored = append(scored, Scored{ID: v.ID, Similarity: embed.Cosine(query, v.Embedding)})
	}

	sort.Slice(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if k >= 0 && k < len(scored) {
		scored = scored[:k]
	}

	return scored, nil
}
