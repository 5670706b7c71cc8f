package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/idgen"
	"github.com/kestrelfin/swiftpipe/internal/logging"
	"github.com/kestrelfin/swiftpipe/internal/storeerr"
	"github.com/kestrelfin/swiftpipe/pkg/docstore"
	"github.com/kestrelfin/swiftpipe/pkg/embed"
	"github.com/kestrelfin/swiftpipe/pkg/match"
	"github.com/kestrelfin/swiftpipe/pkg/swiftmsg"
	"github.com/kestrelfin/swiftpipe/pkg/template"
	"github.com/kestrelfin/swiftpipe/pkg/vectorstore"
)

// Pipeline holds one bounded pool per stage, sharing the document
// store, vector store, and embedder across all of them.
type Pipeline struct {
	Docs      *docstore.Store
	Vectors   *vectorstore.Store
	Embedder  embed.Embedder
	Extractor *template.Extractor
	Matcher   *match.Matcher
	Logger    logging.Logger

	IngestPool  *Pool
	EmbedPool   *Pool
	ExtractPool *Pool
	MatchPool   *Pool
}

// New builds a pipeline with a default concurrency of 8 for the
// ingest, embed, and match stages and a single slot for extraction.
func New(docs *docstore.Store, vecs *vectorstore.Store, embedder embed.Embedder, extractor *template.Extractor, matcher *match.Matcher, logger logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{
		Docs: docs, Vectors: vecs, Embedder: embedder, Extractor: extractor, Matcher: matcher, Logger: logger,
		IngestPool: NewPool(8), EmbedPool: NewPool(8), ExtractPool: NewPool(1), MatchPool: NewPool(8),
	}
}

// IngestMessage parses raw and persists it as a NEW message. Parsing
// never fails: a malformed message is stored with whatever fields
// could be recovered.
func (p *Pipeline) IngestMessage(ctx context.Context, msgType, raw string) (string, error) {
	parsed := swiftmsg.Parse(raw)
	id := idgen.New()

	msg := docstore.Message{
		ID: id, Type: msgType, RawContent: raw, Fields: parsed.Fields,
		SenderID: parsed.SenderID, ReceiverID: parsed.ReceiverID,
		Timestamp: time.Now(), Status: docstore.StatusNew,
	}
	if err := p.Docs.SaveMessage(ctx, msg); err != nil {
		return "", err
	}
	return id, nil
}

// IngestBatch ingests many raw messages concurrently on the ingest
// pool and returns the assigned ids in input order. A per-message
// failure does not abort the rest of the batch: the corresponding
// slot is left empty and the error is returned alongside the ids that
// did succeed.
func (p *Pipeline) IngestBatch(ctx context.Context, msgType string, raws []string) ([]string, error) {
	ids := make([]string, len(raws))
	var mu sync.Mutex
	var firstErr error

	jobs := make([]func(context.Context) error, len(raws))
	for i, raw := range raws {
		i, raw := i, raw
		jobs[i] = func(ctx context.Context) error {
			id, err := p.IngestMessage(ctx, msgType, raw)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				p.Logger.Warn("ingest failed", "index", i, "error", err.Error())
				if firstErr == nil {
					firstErr = err
				}
				return nil
			}
			ids[i] = id
			return nil
		}
	}

	if err := p.IngestPool.Run(ctx, jobs...); err != nil {
		return ids, err
	}
	return ids, firstErr
}

// EmbedMessage embeds one NEW message's raw content and transitions it
// to EMBEDDED. Embedding failure is not swallowed here: callers decide
// whether to retry (the write is idempotent either way).
func (p *Pipeline) EmbedMessage(ctx context.Context, id string) error {
	msg, err := p.Docs.FindMessageByID(ctx, id)
	if err != nil {
		return err
	}

	vec, err := p.Embedder.Embed(ctx, msg.RawContent)
	if err != nil {
		return err
	}

	if err := p.Vectors.Put(ctx, vectorstore.Vector{ID: id, DocType: vectorstore.DocTypeMessage, Embedding: vec}); err != nil {
		if err != storeerr.ErrZeroVector {
			return err
		}
	}

	msg.Status = docstore.StatusEmbedded
	return p.Docs.SaveMessage(ctx, *msg)
}

// EmbedBatch runs EmbedMessage over many ids on the embed pool.
func (p *Pipeline) EmbedBatch(ctx context.Context, ids []string) error {
	jobs := make([]func(context.Context) error, len(ids))
	for i, id := range ids {
		id := id
		jobs[i] = func(ctx context.Context) error {
			if err := p.EmbedMessage(ctx, id); err != nil {
				p.Logger.Warn("embed failed", "id", id, "error", err.Error())
				return err
			}
			return nil
		}
	}
	return p.EmbedPool.Run(ctx, jobs...)
}

// ExtractTemplates runs the batch template-extraction job. Extraction
// is serialized on a single-slot pool: it must observe one consistent
// snapshot of EMBEDDED messages, not an interleaving of concurrent
// runs.
func (p *Pipeline) ExtractTemplates(ctx context.Context) (*template.Summary, error) {
	var summary *template.Summary
	err := p.ExtractPool.Run(ctx, func(ctx context.Context) error {
		s, err := p.Extractor.Extract(ctx)
		summary = s
		return err
	})
	return summary, err
}

// MatchBatch runs the matcher over many message ids concurrently on
// the match pool.
func (p *Pipeline) MatchBatch(ctx context.Context, ids []string) ([]*match.Result, error) {
	results := make([]*match.Result, len(ids))
	jobs := make([]func(context.Context) error, len(ids))
	for i, id := range ids {
		i, id := i, id
		jobs[i] = func(ctx context.Context) error {
			result, err := p.Matcher.Match(ctx, id)
			if err != nil {
				p.Logger.Warn("match failed", "id", id, "error", err.Error())
				return err
			}
			results[i] = result
			return nil
		}
	}
	if err := p.MatchPool.Run(ctx, jobs...); err != nil {
		return results, err
	}
	return results, nil
}
