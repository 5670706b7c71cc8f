package vectorstore

import "context"

// DocumentSource is the minimal view of the document store Reconcile
// needs: the set of ids that are supposed to have a vector, per
// entity kind. Implemented by pkg/docstore.Store (see
// pkg/docstore/reconcile_adapter.go), so this package never imports
// docstore.
type DocumentSource interface {
	EmbeddedMessageIDs(ctx context.Context) ([]string, error)
	TemplateIDsWithCentroid(ctx context.Context) ([]string, error)
}

// Report lists ids that violate the "vector store is a rebuildable
// projection of messages+templates" invariant from the data model.
type Report struct {
	MissingMessageVectors  []string
	MissingTemplateVectors []string
}

// Reconcile walks the document store's expected vector ids and
// checks each one exists in this store. It only detects; repair is
// the caller's job (re-embed and Put), since this package has no
// embedder.
func (s *Store) Reconcile(ctx context.Context, docs DocumentSource) (*Report, error) {
	report := &Report{}

	msgIDs, err := docs.EmbeddedMessageIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range msgIDs {
		if _, err := s.Get(ctx, id); err != nil {
			report.MissingMessageVectors = append(report.MissingMessageVectors, id)
		}
	}

	tplIDs, err := docs.TemplateIDsWithCentroid(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range tplIDs {
		if _, err := s.Get(ctx, id); err != nil {
			report.MissingTemplateVectors = append(report.MissingTemplateVectors, id)
		}
	}

	return report, nil
}
