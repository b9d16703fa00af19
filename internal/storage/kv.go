// Package storage is the SDK's durable key-value store, backed by an
// embedded sqlite database in the host application's data directory. It
// persists identity (device id) and cached tokens across process restarts.
// Absence of a key is a first-class result, not an error.
package storage

import (
	"database/sql"
	"strconv"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

type KV struct {
	db *sql.DB
}

// Open creates or opens the store at path. Use ":memory:" for tests.
func Open(path string) (*KV, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open kv store at %s", path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to init kv schema")
	}
	return &KV{db: db}, nil
}

func (s *KV) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close kv store")
}

func (s *KV) put(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO kv (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return errors.Wrapf(err, "failed to put kv key %s", key)
}

func (s *KV) get(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "failed to get kv key %s", key)
	}
	return value, true, nil
}

func (s *KV) PutString(key, value string) error { return s.put(key, value) }

func (s *KV) GetString(key string) (string, bool, error) { return s.get(key) }

func (s *KV) PutInt64(key string, value int64) error {
	return s.put(key, strconv.FormatInt(value, 10))
}

func (s *KV) GetInt64(key string) (int64, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "kv key %s holds a non-integer value", key)
	}
	return n, true, nil
}

func (s *KV) PutFloat64(key string, value float64) error {
	return s.put(key, strconv.FormatFloat(value, 'g', -1, 64))
}

func (s *KV) GetFloat64(key string) (float64, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, ok, err
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, errors.Wrapf(err, "kv key %s holds a non-float value", key)
	}
	return f, true, nil
}

func (s *KV) PutBool(key string, value bool) error {
	return s.put(key, strconv.FormatBool(value))
}

func (s *KV) GetBool(key string) (bool, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return false, ok, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, errors.Wrapf(err, "kv key %s holds a non-bool value", key)
	}
	return b, true, nil
}

func (s *KV) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return errors.Wrapf(err, "failed to delete kv key %s", key)
}

// Clear removes every key.
func (s *KV) Clear() error {
	_, err := s.db.Exec(`DELETE FROM kv`)
	return errors.Wrap(err, "failed to clear kv store")
}
