// Package match implements the template matcher: it shortlists
// candidate templates for an embedded message, ranks them by cosine
// similarity, scores per-field confidence against the best match, and
// persists the resulting transaction.
package match

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/idgen"
	"github.com/kestrelfin/swiftpipe/internal/logging"
	"github.com/kestrelfin/swiftpipe/internal/storeerr"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/narrative"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
)

// Matcher ties the document store, vector store, embedder, and
// narrative analyzer together to produce and persist transactions.
type Matcher struct {
	Docs                 *docstore.Store
	Vectors              *vectorstore.Store
	Embedder             embed.Embedder
	Analyzer             narrative.Analyzer
	SimilarityThreshold  float64
	AutoApproveThreshold float64
	Logger               logging.Logger
}

// Result reports what Match decided for one message.
type Result struct {
	RequiresManualReview bool
	MatchConfidence      float64
	Transaction          *docstore.Transaction
}

func (m *Matcher) defaults() {
	if m.Logger == nil {
		m.Logger = logging.Nop()
	}
	if m.SimilarityThreshold == 0 {
		m.SimilarityThreshold = 0.85
	}
	if m.AutoApproveThreshold == 0 {
		m.AutoApproveThreshold = 0.95
	}
}

// Match runs the full matching pipeline for one message: shortlist,
// rank, threshold-gate, score fields, narrate, and persist.
func (m *Matcher) Match(ctx context.Context, messageID string) (*Result, error) {
	m.defaults()

	msg, err := m.Docs.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}

	msgVec, err := m.Vectors.Get(ctx, messageID)
	if err != nil {
		if errors.Is(err, storeerr.ErrNotFound) {
			return &Result{RequiresManualReview: true}, nil
		}
		return nil, err
	}

	candidates, err := m.Docs.FindTemplatesByMessageTypeAndBuyerIDAndSellerIDOrderByConfidenceDesc(ctx, msg.Type, msg.SenderID, msg.ReceiverID)
	if err != nil {
		return nil, err
	}

	best, bestScore, err := m.bestCandidate(ctx, candidates, msgVec.Embedding)
	if err != nil {
		return nil, err
	}

	if best == nil || bestScore < m.SimilarityThreshold {
		return &Result{RequiresManualReview: true, MatchConfidence: bestScore}, nil
	}

	parsed := swiftmsg.ParsedMessage{Fields: msg.Fields}
	fieldConfidences, err := m.fieldConfidences(ctx, *best, parsed)
	if err != nil {
		return nil, err
	}

	analysis := narrative.Analyze(ctx, m.Analyzer, msg.RawContent, best.TemplateContent, msg.Fields)

	status := docstore.TxPending
	if bestScore >= m.AutoApproveThreshold {
		status = docstore.TxMatched
	}

	tx := docstore.Transaction{
		ID:              idgen.New(),
		SwiftMessageID:  msg.ID,
		TemplateID:      best.ID,
		Type:            msg.Type,
		ExtractedData:   msg.Fields,
		MatchConfidence: bestScore,
		MatchingDetails: docstore.MatchingDetails{
			PrimaryTemplateID: best.ID,
			FieldConfidences:  fieldConfidences,
		},
		Status:      status,
		BuyerID:     msg.ReceiverID,
		SellerID:    msg.SenderID,
		ProcessedAt: time.Now(),
		Metadata:    map[string]string{"overallRisk": string(analysis.OverallRisk), "narrativeNotes": analysis.Notes},
	}
	ReconcileParties(&tx, *best)

	if err := m.Docs.SaveTransaction(ctx, tx); err != nil {
		return nil, err
	}

	msg.TemplateID = best.ID
	msg.Status = docstore.StatusTemplateMatched
	if err := m.Docs.SaveMessage(ctx, *msg); err != nil {
		return nil, err
	}

	return &Result{MatchConfidence: bestScore, Transaction: &tx}, nil
}

func (m *Matcher) bestCandidate(ctx context.Context, candidates []docstore.Template, msgEmbedding []float32) (*docstore.Template, float64, error) {
	var best *docstore.Template
	var bestScore float64

	for i := range candidates {
		tpl := candidates[i]
		vec, err := m.Vectors.Get(ctx, tpl.ID)
		if err != nil {
			if errors.Is(err, storeerr.ErrNotFound) {
				continue
			}
			return nil, 0, err
		}
		score := embed.Cosine(msgEmbedding, vec.Embedding)
		if best == nil || score > bestScore {
			best = &tpl
			bestScore = score
		}
	}

	return best, bestScore, nil
}

// fieldConfidences scores each extracted field against the matched
// template's content. A tag absent from the template yields 0.95 when
// it's a catalogued variable field, 1.00 otherwise (the template never
// saw it, so there is nothing to contradict).
func (m *Matcher) fieldConfidences(ctx context.Context, tpl docstore.Template, msg swiftmsg.ParsedMessage) (map[string]float64, error) {
	templateFields := swiftmsg.Parse(tpl.TemplateContent).Fields
	variable := make(map[string]bool, len(tpl.VariableFields))
	for _, vf := range tpl.VariableFields {
		variable[vf.Tag] = true
	}

	out := make(map[string]float64, len(msg.Fields))
	for tag, value := range msg.Fields {
		t, ok := templateFields[tag]
		if !ok || t == "" {
			if variable[tag] {
				out[tag] = 0.95
			} else {
				out[tag] = 1.0
			}
			continue
		}

		sim, err := embed.FieldSimilarity(ctx, m.Embedder, t, value)
		if err != nil {
			return nil, err
		}
		if sim < 0.5 {
			sim = 0.5
		}
		out[tag] = sim
	}

	return out, nil
}

// PreviewFieldConfidences runs the field-scoring step alone, without
// persisting anything. Calling it twice for the same inputs returns
// identical maps.
func (m *Matcher) PreviewFieldConfidences(ctx context.Context, messageID, templateID string) (map[string]float64, error) {
	m.defaults()

	msg, err := m.Docs.FindMessageByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	tpl, err := m.Docs.FindTemplateByID(ctx, templateID)
	if err != nil {
		return nil, err
	}

	return m.fieldConfidences(ctx, *tpl, swiftmsg.ParsedMessage{Fields: msg.Fields})
}

// Reanalyze re-runs matching for a message that already has a
// transaction, updating that row in place (the swift_message_id
// uniqueness constraint guarantees exactly one transaction survives
// regardless of how many times Reanalyze runs) while preserving any
// user-entered data and appending a reanalysis marker to metadata.
func (m *Matcher) Reanalyze(ctx context.Context, messageID string) (*Result, error) {
	m.defaults()

	existing, err := m.Docs.FindTransactionBySwiftMessageID(ctx, messageID)
	if err != nil && !errors.Is(err, storeerr.ErrNotFound) {
		return nil, err
	}

	result, err := m.Match(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if result.Transaction == nil {
		return result, nil
	}

	if existing != nil {
		result.Transaction.ID = existing.ID
		result.Transaction.UserEnteredData = existing.UserEnteredData
		if result.Transaction.Metadata == nil {
			result.Transaction.Metadata = map[string]string{}
		}
		count := reanalysisCount(existing.Metadata) + 1
		result.Transaction.Metadata["reanalysisCount"] = strconv.Itoa(count)
		result.Transaction.Metadata["lastReanalyzedAt"] = time.Now().Format(time.RFC3339Nano)

		if err := m.Docs.SaveTransaction(ctx, *result.Transaction); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func reanalysisCount(metadata map[string]string) int {
	if metadata == nil {
		return 0
	}
	n, err := strconv.Atoi(metadata["reanalysisCount"])
	if err != nil {
		return 0
	}
	return n
}
