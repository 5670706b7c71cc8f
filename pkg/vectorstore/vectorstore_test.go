package vectorstore

import (
	"context"
	"testing"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPut_RejectsZeroVector(t *testing.T) {
	s := newTestStore(t)
	err := s.Put(context.Background(), Vector{ID: "v1", DocType: DocTypeMessage, Embedding: make([]float32, 384)})
	require.ErrorIs(t, err, storeerr.ErrZeroVector)
}

func TestPutGet_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	vec := Vector{ID: "v1", DocType: DocTypeMessage, Embedding: []float32{0.6, 0.8}, Preview: "hello"}
	require.NoError(t, s.Put(ctx, vec))

	got, err := s.Get(ctx, "v1")
	require.NoError(t, err)
	require.Equal(t, vec.Embedding, got.Embedding)
	require.Equal(t, "hello", got.Preview)
}

func TestTopK_RanksBySimilarity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Vector{ID: "close", DocType: DocTypeMessage, Embedding: []float32{1, 0}}))
	require.NoError(t, s.Put(ctx, Vector{ID: "far", DocType: DocTypeMessage, Embedding: []float32{0, 1}}))

	results, err := s.TopK(ctx, []float32{1, 0}, DocTypeMessage, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "close", results[0].ID)
}

func TestListByDocType_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Vector{ID: "m1", DocType: DocTypeMessage, Embedding: []float32{1, 0}}))
	require.NoError(t, s.Put(ctx, Vector{ID: "t1", DocType: DocTypeTemplate, Embedding: []float32{0, 1}}))

	msgs, err := s.ListByDocType(ctx, DocTypeMessage)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "m1", msgs[0].ID)
}

func TestDelete_RemovesVector(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, Vector{ID: "v1", DocType: DocTypeMessage, Embedding: []float32{1, 0}}))
	require.NoError(t, s.Delete(ctx, "v1"))

	_, err := s.Get(ctx, "v1")
	require.ErrorIs(t, err, storeerr.ErrNotFound)
}
