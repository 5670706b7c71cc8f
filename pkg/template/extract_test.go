package template

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/idgen"
	"github.com/kestrelfin/swiftpipe/pkg/cluster"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
	"github.com/stretchr/testify/require"
)

func newExtractor(t *testing.T) (*Extractor, *docstore.Store, *vectorstore.Store, embed.Embedder) {
	t.Helper()
	docs, err := docstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	vecs, err := vectorstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { vecs.Close() })

	embedder := embed.NewHashProjectionEmbedder(embed.Dimension)

	return &Extractor{Docs: docs, Vectors: vecs, ClusterCfg: cluster.DefaultConfig()}, docs, vecs, embedder
}

func ingestMessage(t *testing.T, ctx context.Context, docs *docstore.Store, vecs *vectorstore.Store, embedder embed.Embedder, raw string) string {
	t.Helper()
	parsed := swiftmsg.Parse(raw)
	id := idgen.New()

	vec, err := embedder.Embed(ctx, raw)
	require.NoError(t, err)

	require.NoError(t, docs.SaveMessage(ctx, docstore.Message{
		ID: id, Type: "MT700", RawContent: raw, Fields: parsed.Fields,
		SenderID: parsed.SenderID, ReceiverID: parsed.ReceiverID,
		Timestamp: time.Now(), Status: docstore.StatusEmbedded,
	}))
	require.NoError(t, vecs.Put(ctx, vectorstore.Vector{ID: id, DocType: vectorstore.DocTypeMessage, Embedding: vec}))

	return id
}

func TestExtract_ClusterEmergence(t *testing.T) {
	extractor, docs, vecs, embedder := newExtractor(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		raw := fmt.Sprintf("{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC%d\n:32B:USD%d00000,00\n:59:BENE\n", i, 100+i)
		ingestMessage(t, ctx, docs, vecs, embedder, raw)
	}

	summary, err := extractor.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Templates, 1)

	tpl := summary.Templates[0]
	require.Equal(t, 10, tpl.MessageCount)
	require.Equal(t, "MT700", tpl.Type)

	var has32B bool
	for _, f := range tpl.VariableFields {
		if f.Tag == "32B" {
			has32B = true
			require.Equal(t, docstore.FieldAmount, f.Type)
		}
	}
	require.True(t, has32B)

	clustered, err := docs.FindMessagesByStatus(ctx, docstore.StatusClustered)
	require.NoError(t, err)
	require.Len(t, clustered, 10)
}

func TestExtract_TradingPairIsolation(t *testing.T) {
	extractor, docs, vecs, embedder := newExtractor(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		raw := fmt.Sprintf("{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC%d\n:59:BENE\n", i)
		ingestMessage(t, ctx, docs, vecs, embedder, raw)
	}
	for i := 0; i < 5; i++ {
		raw := fmt.Sprintf("{1:F01BANKBEBBAXXX0000000000}{2:I700BANKGB22XXXXN}:20:LC%d\n:59:BENE\n", i)
		ingestMessage(t, ctx, docs, vecs, embedder, raw)
	}

	summary, err := extractor.Extract(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Templates, 2)
	require.NotEqual(t, summary.Templates[0].SellerID, summary.Templates[1].SellerID)
}

func TestExtract_BelowMinClusterSizeProducesNoTemplate(t *testing.T) {
	extractor, docs, vecs, embedder := newExtractor(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		raw := fmt.Sprintf("{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC%d\n", i)
		ingestMessage(t, ctx, docs, vecs, embedder, raw)
	}

	summary, err := extractor.Extract(ctx)
	require.NoError(t, err)
	require.Empty(t, summary.Templates)
}
