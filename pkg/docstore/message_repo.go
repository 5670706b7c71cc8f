package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
)

// SaveMessage inserts or replaces a message. Last-writer-wins, since
// the pipeline is idempotent at the entity level.
func (s *Store) SaveMessage(ctx context.Context, m Message) error {
	fieldsJSON, err := json.Marshal(m.Fields)
	if err != nil {
		return storeerr.Wrap("SaveMessage", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages (id, type, raw_content, fields_json, sender_id, receiver_id, timestamp, status, cluster_id, template_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type, raw_content = excluded.raw_content, fields_json = excluded.fields_json,
			sender_id = excluded.sender_id, receiver_id = excluded.receiver_id, timestamp = excluded.timestamp,
			status = excluded.status, cluster_id = excluded.cluster_id, template_id = excluded.template_id
	`, m.ID, m.Type, m.RawContent, string(fieldsJSON), m.SenderID, m.ReceiverID,
		m.Timestamp.Format(time.RFC3339Nano), string(m.Status), m.ClusterID, m.TemplateID)
	if err != nil {
		return storeerr.Wrap("SaveMessage", err)
	}
	return nil
}

func scanMessage(scan func(dest ...any) error) (Message, error) {
	var m Message
	var fieldsJSON, ts, status string

	if err := scan(&m.ID, &m.Type, &m.RawContent, &fieldsJSON, &m.SenderID, &m.ReceiverID, &ts, &status, &m.ClusterID, &m.TemplateID); err != nil {
		return m, err
	}

	m.Status = MessageStatus(status)
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		m.Timestamp = t
	}
	_ = json.Unmarshal([]byte(fieldsJSON), &m.Fields)

	return m, nil
}

const messageColumns = `id, type, raw_content, fields_json, sender_id, receiver_id, timestamp, status, cluster_id, template_id`

// FindMessageByID fetches one message by id.
func (s *Store) FindMessageByID(ctx context.Context, id string) (*Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	m, err := scanMessage(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("FindMessageByID", storeerr.ErrNotFound)
		}
		return nil, storeerr.Wrap("FindMessageByID", err)
	}
	return &m, nil
}

func (s *Store) queryMessages(ctx context.Context, where string, args ...any) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages `+where, args...)
	if err != nil {
		return nil, storeerr.Wrap("queryMessages", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows.Scan)
		if err != nil {
			return nil, storeerr.Wrap("queryMessages", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// FindAllMessages returns every message.
func (s *Store) FindAllMessages(ctx context.Context) ([]Message, error) {
	return s.queryMessages(ctx, "")
}

// FindMessagesByType returns messages of the given MT type.
func (s *Store) FindMessagesByType(ctx context.Context, msgType string) ([]Message, error) {
	return s.queryMessages(ctx, "WHERE type = ?", msgType)
}

// FindMessagesByStatus returns messages in the given status.
func (s *Store) FindMessagesByStatus(ctx context.Context, status MessageStatus) ([]Message, error) {
	return s.queryMessages(ctx, "WHERE status = ?", string(status))
}

// FindUnmatchedMessages returns messages with status EMBEDDED or
// CLUSTERED — candidates for extraction or matching.
func (s *Store) FindUnmatchedMessages(ctx context.Context) ([]Message, error) {
	return s.queryMessages(ctx, "WHERE status IN (?, ?)", string(StatusEmbedded), string(StatusClustered))
}

// FindMessagesByTemplateID returns every message assigned to a
// template.
func (s *Store) FindMessagesByTemplateID(ctx context.Context, templateID string) ([]Message, error) {
	return s.queryMessages(ctx, "WHERE template_id = ?", templateID)
}

// CountMessagesByStatus returns how many messages are in a status.
func (s *Store) CountMessagesByStatus(ctx context.Context, status MessageStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, storeerr.Wrap("CountMessagesByStatus", err)
	}
	return count, nil
}

// DeleteMessage removes a message by id.
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, id)
	if err != nil {
		return storeerr.Wrap("DeleteMessage", err)
	}
	return nil
}
