package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// GetValue returns the raw JSON for a named config value.
func (s *Store) GetValue(ctx context.Context, name string) ([]byte, error) {
	if s == nil || s.db == nil {
		return nil, sql.ErrConnDone
	}

	var value string
	err := s.db.QueryRowContext(ctx, `
        SELECT value FROM config_values WHERE name = ?
    `, name).Scan(&value)
	switch {
	case err == sql.ErrNoRows:
		return nil, NotFoundError{Name: name}
	case err != nil:
		return nil, fmt.Errorf("config: get value %q: %w", name, err)
	default:
		return []byte(value), nil
	}
}

// SetValue upserts the raw JSON for a named config value. The value must be
// valid JSON; the store is the source of truth the backup codec snapshots,
// so malformed payloads are rejected at the boundary.
func (s *Store) SetValue(ctx context.Context, name string, value []byte) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}
	if !json.Valid(value) {
		return fmt.Errorf("config: set value %q: payload is not valid JSON", name)
	}

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO config_values (name, value, updated_at)
        VALUES (?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(name) DO UPDATE SET
            value = excluded.value,
            updated_at = CURRENT_TIMESTAMP
    `, name, string(value))
	if err != nil {
		return fmt.Errorf("config: set value %q: %w", name, err)
	}
	return nil
}

// RemoveValue deletes a named config value. Removing an absent value is not
// an error.
func (s *Store) RemoveValue(ctx context.Context, name string) error {
	if s == nil || s.db == nil {
		return sql.ErrConnDone
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM config_values WHERE name = ?`, name); err != nil {
		return fmt.Errorf("config: remove value %q: %w", name, err)
	}
	return nil
}

// ListNames returns the names of all stored config values.
func (s *Store) ListNames(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, sql.ErrConnDone
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name FROM config_values ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("config: list value names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("config: scan value name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: iterate value names: %w", err)
	}
	return names, nil
}

// GetJSON decodes a named config value into out.
func (s *Store) GetJSON(ctx context.Context, name string, out any) error {
	raw, err := s.GetValue(ctx, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("config: decode value %q: %w", name, err)
	}
	return nil
}

// SetJSON encodes v and stores it under the given name.
func (s *Store) SetJSON(ctx context.Context, name string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("config: encode value %q: %w", name, err)
	}
	return s.SetValue(ctx, name, raw)
}
