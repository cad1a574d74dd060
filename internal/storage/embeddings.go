package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// GetEmbedding returns the cached vector for key. The boolean is false on a miss.
func (s *Store) GetEmbedding(ctx context.Context, key string) ([]float32, bool, error) {
	var blob []byte
	err := s.db.QueryRowContext(ctx, `SELECT vector FROM embeddings WHERE key = ?`, key).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	vec, err := decodeFloat32s(blob)
	if err != nil {
		return nil, false, fmt.Errorf("embedding %s: %w", key, err)
	}
	return vec, true, nil
}

// PutEmbedding stores vec under key, replacing any previous value.
func (s *Store) PutEmbedding(ctx context.Context, key, model string, vec []float32) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (key, model, dim, vector, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET model = excluded.model, dim = excluded.dim,
			vector = excluded.vector, created_at = excluded.created_at`,
		key, model, len(vec), encodeFloat32s(vec), formatTime(time.Now()),
	)
	return err
}

// CountEmbeddings returns the number of cached vectors.
func (s *Store) CountEmbeddings() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM embeddings`).Scan(&n)
	return n, err
}

// PurgeEmbeddings drops cached vectors for model, or all of them when model is empty.
func (s *Store) PurgeEmbeddings(model string) (int64, error) {
	var res sql.Result
	var err error
	if model == "" {
		res, err = s.db.Exec(`DELETE FROM embeddings`)
	} else {
		res, err = s.db.Exec(`DELETE FROM embeddings WHERE model = ?`, model)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// encodeFloat32s packs a vector as little-endian IEEE-754.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeFloat32s(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}
