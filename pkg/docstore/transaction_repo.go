package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
)

// SaveTransaction inserts or replaces a transaction. swift_message_id
// is unique: re-running match/reanalyze on the same message updates
// the existing row rather than creating a second one.
func (s *Store) SaveTransaction(ctx context.Context, t Transaction) error {
	extractedJSON, _ := json.Marshal(t.ExtractedData)
	userJSON, _ := json.Marshal(t.UserEnteredData)
	detailsJSON, _ := json.Marshal(t.MatchingDetails)
	metaJSON, _ := json.Marshal(t.Metadata)
	auditJSON, _ := json.Marshal(t.AuditTrail)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transactions (id, swift_message_id, template_id, type, extracted_json, user_entered_json,
			match_confidence, matching_details_json, status, buyer_id, seller_id, structured_analysis,
			processed_at, metadata_json, audit_trail_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(swift_message_id) DO UPDATE SET
			template_id = excluded.template_id, type = excluded.type,
			extracted_json = excluded.extracted_json, user_entered_json = excluded.user_entered_json,
			match_confidence = excluded.match_confidence, matching_details_json = excluded.matching_details_json,
			status = excluded.status, buyer_id = excluded.buyer_id, seller_id = excluded.seller_id,
			structured_analysis = excluded.structured_analysis, processed_at = excluded.processed_at,
			metadata_json = excluded.metadata_json, audit_trail_json = excluded.audit_trail_json
	`, t.ID, t.SwiftMessageID, t.TemplateID, t.Type, string(extractedJSON), string(userJSON),
		t.MatchConfidence, string(detailsJSON), string(t.Status), t.BuyerID, t.SellerID,
		t.StructuredAnalysis, t.ProcessedAt.Format(time.RFC3339Nano), string(metaJSON), string(auditJSON))
	if err != nil {
		return storeerr.Wrap("SaveTransaction", err)
	}
	return nil
}

const transactionColumns = `id, swift_message_id, template_id, type, extracted_json, user_entered_json,
	match_confidence, matching_details_json, status, buyer_id, seller_id, structured_analysis,
	processed_at, metadata_json, audit_trail_json`

func scanTransaction(scan func(dest ...any) error) (Transaction, error) {
	var t Transaction
	var extractedJSON, userJSON, detailsJSON, metaJSON, auditJSON, status, processedAt string

	if err := scan(&t.ID, &t.SwiftMessageID, &t.TemplateID, &t.Type, &extractedJSON, &userJSON,
		&t.MatchConfidence, &detailsJSON, &status, &t.BuyerID, &t.SellerID, &t.StructuredAnalysis,
		&processedAt, &metaJSON, &auditJSON); err != nil {
		return t, err
	}

	t.Status = TransactionStatus(status)
	_ = json.Unmarshal([]byte(extractedJSON), &t.ExtractedData)
	_ = json.Unmarshal([]byte(userJSON), &t.UserEnteredData)
	_ = json.Unmarshal([]byte(detailsJSON), &t.MatchingDetails)
	_ = json.Unmarshal([]byte(metaJSON), &t.Metadata)
	_ = json.Unmarshal([]byte(auditJSON), &t.AuditTrail)
	if ts, err := time.Parse(time.RFC3339Nano, processedAt); err == nil {
		t.ProcessedAt = ts
	}

	return t, nil
}

// FindTransactionByID fetches one transaction by id.
func (s *Store) FindTransactionByID(ctx context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("FindTransactionByID", storeerr.ErrNotFound)
		}
		return nil, storeerr.Wrap("FindTransactionByID", err)
	}
	return &t, nil
}

// FindTransactionBySwiftMessageID fetches the (at most one)
// transaction for a message, used by reanalyze to find the existing
// row to update in place.
func (s *Store) FindTransactionBySwiftMessageID(ctx context.Context, messageID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE swift_message_id = ?`, messageID)
	t, err := scanTransaction(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("FindTransactionBySwiftMessageID", storeerr.ErrNotFound)
		}
		return nil, storeerr.Wrap("FindTransactionBySwiftMessageID", err)
	}
	return &t, nil
}

func (s *Store) queryTransactions(ctx context.Context, where string, args ...any) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+transactionColumns+` FROM transactions `+where, args...)
	if err != nil {
		return nil, storeerr.Wrap("queryTransactions", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, storeerr.Wrap("queryTransactions", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindAllTransactions returns every transaction.
func (s *Store) FindAllTransactions(ctx context.Context) ([]Transaction, error) {
	return s.queryTransactions(ctx, "")
}

// FindTransactionsByStatus returns transactions in the given status.
func (s *Store) FindTransactionsByStatus(ctx context.Context, status TransactionStatus) ([]Transaction, error) {
	return s.queryTransactions(ctx, "WHERE status = ?", string(status))
}

// FindTransactionsByTemplateID returns every transaction matched
// against a template.
func (s *Store) FindTransactionsByTemplateID(ctx context.Context, templateID string) ([]Transaction, error) {
	return s.queryTransactions(ctx, "WHERE template_id = ?", templateID)
}

// CountTransactionsByStatus returns how many transactions are in a
// status.
func (s *Store) CountTransactionsByStatus(ctx context.Context, status TransactionStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, storeerr.Wrap("CountTransactionsByStatus", err)
	}
	return count, nil
}

// DeleteTransaction removes a transaction by id.
func (s *Store) DeleteTransaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return storeerr.Wrap("DeleteTransaction", err)
	}
	return nil
}
