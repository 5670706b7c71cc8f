package match

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/idgen"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
	"github.com/stretchr/testify/require"
)

func newMatcher(t *testing.T) (*Matcher, *docstore.Store, *vectorstore.Store, embed.Embedder) {
	t.Helper()
	docs, err := docstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	vecs, err := vectorstore.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { vecs.Close() })

	embedder := embed.NewHashProjectionEmbedder(embed.Dimension)

	return &Matcher{Docs: docs, Vectors: vecs, Embedder: embedder}, docs, vecs, embedder
}

func seedTemplate(t *testing.T, ctx context.Context, docs *docstore.Store, vecs *vectorstore.Store, embedder embed.Embedder, raw, msgType, buyerID, sellerID string) docstore.Template {
	t.Helper()
	content := ":20:LC{VARIABLE}\n:32B:USD{VARIABLE}\n:59:BENE\n"
	vec, err := embedder.Embed(ctx, raw)
	require.NoError(t, err)

	tpl := docstore.Template{
		ID: idgen.New(), Type: msgType, BuyerID: buyerID, SellerID: sellerID,
		TemplateContent: content,
		VariableFields: []docstore.VariableField{
			{Tag: "20", FieldName: "20", Type: docstore.FieldAlphaNumeric},
			{Tag: "32B", FieldName: "32B", Type: docstore.FieldAmount},
		},
		MessageCount: 5, Confidence: 0.9, CreatedAt: time.Now(),
	}
	require.NoError(t, docs.SaveTemplate(ctx, tpl))
	require.NoError(t, vecs.Put(ctx, vectorstore.Vector{ID: tpl.ID, DocType: vectorstore.DocTypeTemplate, Embedding: vec}))
	return tpl
}

func seedMessage(t *testing.T, ctx context.Context, docs *docstore.Store, vecs *vectorstore.Store, embedder embed.Embedder, raw string) docstore.Message {
	t.Helper()
	parsed := swiftmsg.Parse(raw)
	vec, err := embedder.Embed(ctx, raw)
	require.NoError(t, err)

	msg := docstore.Message{
		ID: idgen.New(), Type: "MT700", RawContent: raw, Fields: parsed.Fields,
		SenderID: parsed.SenderID, ReceiverID: parsed.ReceiverID,
		Timestamp: time.Now(), Status: docstore.StatusClustered,
	}
	require.NoError(t, docs.SaveMessage(ctx, msg))
	require.NoError(t, vecs.Put(ctx, vectorstore.Vector{ID: msg.ID, DocType: vectorstore.DocTypeMessage, Embedding: vec}))
	return msg
}

func TestMatch_HighConfidenceAutoApproves(t *testing.T) {
	matcher, docs, vecs, embedder := newMatcher(t)
	ctx := context.Background()

	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC1\n:32B:USD1000,00\n:59:BENE\n"
	tpl := seedTemplate(t, ctx, docs, vecs, embedder, raw, "MT700", "BANKBEBB", "BANKUS33")
	msg := seedMessage(t, ctx, docs, vecs, embedder, raw)

	result, err := matcher.Match(ctx, msg.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Transaction)
	require.Equal(t, tpl.ID, result.Transaction.TemplateID)
	require.Equal(t, docstore.TxMatched, result.Transaction.Status)
	require.False(t, result.RequiresManualReview)

	updated, err := docs.FindMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.StatusTemplateMatched, updated.Status)
}

func TestMatch_NoCandidatesRequiresManualReview(t *testing.T) {
	matcher, docs, vecs, embedder := newMatcher(t)
	ctx := context.Background()

	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC1\n:32B:USD1000,00\n"
	msg := seedMessage(t, ctx, docs, vecs, embedder, raw)

	result, err := matcher.Match(ctx, msg.ID)
	require.NoError(t, err)
	require.True(t, result.RequiresManualReview)
	require.Nil(t, result.Transaction)
}

func TestMatch_MissingVectorRequiresManualReview(t *testing.T) {
	matcher, docs, _, _ := newMatcher(t)
	ctx := context.Background()

	msg := docstore.Message{
		ID: idgen.New(), Type: "MT700", RawContent: "x", SenderID: "A", ReceiverID: "B",
		Timestamp: time.Now(), Status: docstore.StatusEmbedded,
	}
	require.NoError(t, docs.SaveMessage(ctx, msg))

	result, err := matcher.Match(ctx, msg.ID)
	require.NoError(t, err)
	require.True(t, result.RequiresManualReview)
}

func TestReanalyze_IdempotentOnTransactionCount(t *testing.T) {
	matcher, docs, vecs, embedder := newMatcher(t)
	ctx := context.Background()

	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC1\n:32B:USD1000,00\n:59:BENE\n"
	seedTemplate(t, ctx, docs, vecs, embedder, raw, "MT700", "BANKBEBB", "BANKUS33")
	msg := seedMessage(t, ctx, docs, vecs, embedder, raw)

	_, err := matcher.Match(ctx, msg.ID)
	require.NoError(t, err)

	const reanalyzeRuns = 3
	for i := 0; i < reanalyzeRuns; i++ {
		_, err := matcher.Reanalyze(ctx, msg.ID)
		require.NoError(t, err)
	}

	txs, err := docs.FindAllTransactions(ctx)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.Equal(t, fmt.Sprintf("%d", reanalyzeRuns), txs[0].Metadata["reanalysisCount"])
}

func TestReanalyze_PreservesUserEnteredData(t *testing.T) {
	matcher, docs, vecs, embedder := newMatcher(t)
	ctx := context.Background()

	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC1\n:32B:USD1000,00\n:59:BENE\n"
	seedTemplate(t, ctx, docs, vecs, embedder, raw, "MT700", "BANKBEBB", "BANKUS33")
	msg := seedMessage(t, ctx, docs, vecs, embedder, raw)

	result, err := matcher.Match(ctx, msg.ID)
	require.NoError(t, err)

	tx, err := docs.FindTransactionByID(ctx, result.Transaction.ID)
	require.NoError(t, err)
	tx.UserEnteredData = map[string]string{"note": "manually verified"}
	require.NoError(t, docs.SaveTransaction(ctx, *tx))

	_, err = matcher.Reanalyze(ctx, msg.ID)
	require.NoError(t, err)

	reanalyzed, err := docs.FindTransactionBySwiftMessageID(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, "manually verified", reanalyzed.UserEnteredData["note"])
}

func TestPreviewFieldConfidences_IsPure(t *testing.T) {
	matcher, docs, vecs, embedder := newMatcher(t)
	ctx := context.Background()

	raw := "{1:F01BANKBEBBAXXX0000000000}{2:I700BANKUS33XXXXN}:20:LC1\n:32B:USD1000,00\n:59:BENE\n"
	tpl := seedTemplate(t, ctx, docs, vecs, embedder, raw, "MT700", "BANKBEBB", "BANKUS33")
	msg := seedMessage(t, ctx, docs, vecs, embedder, raw)

	first, err := matcher.PreviewFieldConfidences(ctx, msg.ID, tpl.ID)
	require.NoError(t, err)
	second, err := matcher.PreviewFieldConfidences(ctx, msg.ID, tpl.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	unchanged, err := docs.FindMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	require.Equal(t, docstore.StatusClustered, unchanged.Status)
}

func TestReconcileParties_FlagsKnownInversion(t *testing.T) {
	// tx.BuyerID=receiverId/tx.SellerID=senderId vs a template's
	// tpl.BuyerID=senderId/tpl.SellerID=receiverId for the same pair:
	// the inversion Match produces on every real matched transaction.
	tx := &docstore.Transaction{BuyerID: "Y", SellerID: "X"}
	tpl := docstore.Template{BuyerID: "X", SellerID: "Y"}

	ReconcileParties(tx, tpl)
	require.Contains(t, tx.Metadata, "partyReconciliation")
}

func TestReconcileParties_NoFlagWhenBuyerSellerAgree(t *testing.T) {
	tx := &docstore.Transaction{BuyerID: "X", SellerID: "Y"}
	tpl := docstore.Template{BuyerID: "X", SellerID: "Y"}

	ReconcileParties(tx, tpl)
	require.NotContains(t, tx.Metadata, "partyReconciliation")
}
