package vectorstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const cacheSchema = `
CREATE TABLE IF NOT EXISTS embeddings (
	model      TEXT    NOT NULL,
	dimensions INTEGER NOT NULL,
	hash       TEXT    NOT NULL,
	vector     BLOB    NOT NULL,
	created_at TEXT    NOT NULL,
	PRIMARY KEY (model, dimensions, hash)
)`

// Cache persists embeddings keyed by model, dimensions and chunk hash so an
// unchanged CV is not sent to the embedding API again.
type Cache struct {
	db *sql.DB
}

// OpenCache opens (and creates when needed) a SQLite cache at path.
func OpenCache(ctx context.Context, path string) (*Cache, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("cache path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	// sqlite does not like concurrent writers on one file
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create embedding cache schema: %w", err)
	}

	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Get returns cached vectors for the given hashes. Missing hashes are absent from the map.
func (c *Cache) Get(ctx context.Context, model string, dimensions int, hashes []string) (map[string][]float32, error) {
	found := make(map[string][]float32, len(hashes))
	if len(hashes) == 0 {
		return found, nil
	}

	stmt, err := c.db.PrepareContext(ctx, `SELECT vector FROM embeddings WHERE model = ? AND dimensions = ? AND hash = ?`)
	if err != nil {
		return nil, fmt.Errorf("prepare cache lookup: %w", err)
	}
	defer stmt.Close()

	for _, hash := range hashes {
		var blob []byte
		err := stmt.QueryRowContext(ctx, model, dimensions, hash).Scan(&blob)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("lookup cached embedding: %w", err)
		}

		vector, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("decode cached embedding %s: %w", hash, err)
		}
		found[hash] = vector
	}

	return found, nil
}

// Put stores vectors by hash, replacing existing rows.
func (c *Cache) Put(ctx context.Context, model string, dimensions int, vectors map[string][]float32) error {
	if len(vectors) == 0 {
		return nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cache transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO embeddings (model, dimensions, hash, vector, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare cache insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for hash, vector := range vectors {
		if _, err := stmt.ExecContext(ctx, model, dimensions, hash, encodeVector(vector), now); err != nil {
			return fmt.Errorf("store embedding %s: %w", hash, err)
		}
	}

	return tx.Commit()
}

// Len returns the number of cached vectors.
func (c *Cache) Len(ctx context.Context) (int, error) {
	var n int
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("invalid vector length %d", len(buf))
	}
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector, nil
}
