package docstore

import "context"

// EmbeddedMessageIDs returns the ids of every message whose status
// implies a MESSAGE vector should exist, satisfying
// vectorstore.DocumentSource.
func (s *Store) EmbeddedMessageIDs(ctx context.Context) ([]string, error) {
	msgs, err := s.queryMessages(ctx, "WHERE status != ?", string(StatusNew))
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// TemplateIDsWithCentroid returns every template id, satisfying
// vectorstore.DocumentSource. All persisted templates are expected to
// have a non-zero centroid, per the extractor's skip-on-zero-vector
// policy at creation time.
func (s *Store) TemplateIDsWithCentroid(ctx context.Context) ([]string, error) {
	tpls, err := s.FindAllTemplates(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tpls))
	for _, t := range tpls {
		ids = append(ids, t.ID)
	}
	return ids, nil
}
