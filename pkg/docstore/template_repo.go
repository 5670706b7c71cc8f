package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
)

// SaveTemplate inserts or replaces a template. The (type, buyer,
// seller, cluster) uniqueness invariant is enforced by the table's
// UNIQUE constraint; a conflicting insert for a different cluster id
// on an existing (type, buyer, seller) is allowed (a trading pair may
// have several templates), but a second template for the same
// (type, buyer, seller, cluster) tuple is rejected as store
// corruption.
func (s *Store) SaveTemplate(ctx context.Context, t Template) error {
	fieldsJSON, err := json.Marshal(t.VariableFields)
	if err != nil {
		return storeerr.Wrap("SaveTemplate", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO templates (id, type, buyer_id, seller_id, template_content, variable_fields_json, cluster_id, message_count, confidence, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, buyer_id = excluded.buyer_id, seller_id = excluded.seller_id,
			template_content = excluded.template_content, variable_fields_json = excluded.variable_fields_json,
			cluster_id = excluded.cluster_id, message_count = excluded.message_count,
			confidence = excluded.confidence, description = excluded.description
	`, t.ID, t.Type, t.BuyerID, t.SellerID, t.TemplateContent, string(fieldsJSON),
		t.ClusterID, t.MessageCount, t.Confidence, t.Description, t.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueConstraintErr(err) {
			return storeerr.Wrap("SaveTemplate", storeerr.ErrDuplicateEntity)
		}
		return storeerr.Wrap("SaveTemplate", err)
	}
	return nil
}

func isUniqueConstraintErr(err error) bool {
	return err != nil && (containsFold(err.Error(), "UNIQUE constraint"))
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

const templateColumns = `id, type, buyer_id, seller_id, template_content, variable_fields_json, cluster_id, message_count, confidence, description, created_at`

func scanTemplate(scan func(dest ...any) error) (Template, error) {
	var t Template
	var fieldsJSON, createdAt string

	if err := scan(&t.ID, &t.Type, &t.BuyerID, &t.SellerID, &t.TemplateContent, &fieldsJSON,
		&t.ClusterID, &t.MessageCount, &t.Confidence, &t.Description, &createdAt); err != nil {
		return t, err
	}

	_ = json.Unmarshal([]byte(fieldsJSON), &t.VariableFields)
	if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		t.CreatedAt = ts
	}
	return t, nil
}

// FindTemplateByID fetches one template by id. CentroidEmbedding is
// left empty: the vector store owns the centroid, not this table, and
// callers fetch it from there.
func (s *Store) FindTemplateByID(ctx context.Context, id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("FindTemplateByID", storeerr.ErrNotFound)
		}
		return nil, storeerr.Wrap("FindTemplateByID", err)
	}
	return &t, nil
}

func (s *Store) queryTemplates(ctx context.Context, where string, args ...any) ([]Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+templateColumns+` FROM templates `+where, args...)
	if err != nil {
		return nil, storeerr.Wrap("queryTemplates", err)
	}
	defer rows.Close()

	var out []Template
	for rows.Next() {
		t, err := scanTemplate(rows.Scan)
		if err != nil {
			return nil, storeerr.Wrap("queryTemplates", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindAllTemplates returns every template.
func (s *Store) FindAllTemplates(ctx context.Context) ([]Template, error) {
	return s.queryTemplates(ctx, "")
}

// FindTemplatesByType returns templates of the given MT type.
func (s *Store) FindTemplatesByType(ctx context.Context, msgType string) ([]Template, error) {
	return s.queryTemplates(ctx, "WHERE type = ?", msgType)
}

// FindTemplatesByMessageTypeAndBuyerIDAndSellerIDOrderByConfidenceDesc
// shortlists candidate templates for matching: same type and trading
// pair, highest stored confidence first.
func (s *Store) FindTemplatesByMessageTypeAndBuyerIDAndSellerIDOrderByConfidenceDesc(ctx context.Context, msgType, buyerID, sellerID string) ([]Template, error) {
	return s.queryTemplates(ctx, "WHERE type = ? AND buyer_id = ? AND seller_id = ? ORDER BY confidence DESC", msgType, buyerID, sellerID)
}

// CountTemplatesByType returns how many templates exist for a type.
func (s *Store) CountTemplatesByType(ctx context.Context, msgType string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM templates WHERE type = ?`, msgType).Scan(&count)
	if err != nil {
		return 0, storeerr.Wrap("CountTemplatesByType", err)
	}
	return count, nil
}

// DeleteTemplate removes a template by id.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return storeerr.Wrap("DeleteTemplate", err)
	}
	return nil
}

