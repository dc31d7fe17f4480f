package sqlite

import (
	"context"
	"database/sql"
	"errors"
)

// SetConfig sets a configuration value
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapDBErrorf(err, "set config %s", key)
}

// GetConfig gets a configuration value. A missing key reads as "".
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	return s.getKV(ctx, `SELECT value FROM config WHERE key = ?`, key)
}

// GetAllConfig gets all configuration key-value pairs
func (s *SQLiteStorage) GetAllConfig(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM config ORDER BY key`)
	if err != nil {
		return nil, wrapDBError("get all config", err)
	}
	defer func() { _ = rows.Close() }()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, wrapDBError("scan config", err)
		}
		config[key] = value
	}
	return config, wrapDBError("iterate config", rows.Err())
}

// DeleteConfig deletes a configuration value
func (s *SQLiteStorage) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM config WHERE key = ?`, key)
	return wrapDBErrorf(err, "delete config %s", key)
}

// SetMetadata sets a metadata value (for internal state like import hashes)
func (s *SQLiteStorage) SetMetadata(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return wrapDBErrorf(err, "set metadata %s", key)
}

// GetMetadata gets a metadata value. A missing key reads as "".
func (s *SQLiteStorage) GetMetadata(ctx context.Context, key string) (string, error) {
	return s.getKV(ctx, `SELECT value FROM metadata WHERE key = ?`, key)
}

func (s *SQLiteStorage) getKV(ctx context.Context, query, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", wrapDBErrorf(err, "get %s", key)
	}
	return value, nil
}
