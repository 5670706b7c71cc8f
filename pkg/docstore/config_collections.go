package docstore

import (
	"context"

	"github.com/kestrelfin/swiftpipe/internal/storeerr"
)

// SetSystemConfiguration writes a key/value pair to the
// system_configuration collection named in the external interface
// surface. internal/config is the source of truth for the typed
// clustering/embeddings/similarity/template keys at runtime; this
// collection exists so the named collection is a real, queryable
// store rather than a dead stub.
func (s *Store) SetSystemConfiguration(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_configuration (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return storeerr.Wrap("SetSystemConfiguration", err)
	}
	return nil
}

// GetSystemConfiguration reads a key from system_configuration.
func (s *Store) GetSystemConfiguration(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_configuration WHERE key = ?`, key).Scan(&value)
	if err != nil {
		return "", storeerr.Wrap("GetSystemConfiguration", storeerr.ErrNotFound)
	}
	return value, nil
}

// SetUserPreference writes a per-user key/value pair.
func (s *Store) SetUserPreference(ctx context.Context, userID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, userID, key, value)
	if err != nil {
		return storeerr.Wrap("SetUserPreference", err)
	}
	return nil
}

// GetUserPreference reads a per-user key.
func (s *Store) GetUserPreference(ctx context.Context, userID, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM user_preferences WHERE user_id = ? AND key = ?`, userID, key).Scan(&value)
	if err != nil {
		return "", storeerr.Wrap("GetUserPreference", storeerr.ErrNotFound)
	}
	return value, nil
}
