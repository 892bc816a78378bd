package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"pkm2-predict/api/internal/descriptor"
)

type DescriptorRepo struct {
	DB     *sql.DB
	MaxAge time.Duration
}

func NewDescriptorRepo(db *sql.DB, maxAge time.Duration) *DescriptorRepo {
	return &DescriptorRepo{DB: db, MaxAge: maxAge}
}

// FindDescriptors returns the cached mapping for (key, provider).
// Missing, stale or unreadable rows report descriptor.ErrCacheMiss.
func (r *DescriptorRepo) FindDescriptors(ctx context.Context, key, provider string) (descriptor.Mapping, error) {
	const q = `select descriptors_json, created_at
	           from descriptor_cache
	           where smiles_hash=$1 and provider=$2`
	var (
		js []byte
		ts time.Time
	)
	if err := r.DB.QueryRowContext(ctx, q, key, provider).Scan(&js, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, descriptor.ErrCacheMiss
		}
		return nil, err
	}
	if r.MaxAge > 0 && time.Since(ts) > r.MaxAge {
		return nil, descriptor.ErrCacheMiss
	}
	m, err := decodeMapping(js)
	if err != nil {
		return nil, descriptor.ErrCacheMiss
	}
	return m, nil
}

// SaveDescriptors upserts the mapping. PK: (smiles_hash, provider).
func (r *DescriptorRepo) SaveDescriptors(ctx context.Context, key, provider string, m descriptor.Mapping) error {
	js, err := encodeMapping(m)
	if err != nil {
		return err
	}
	const q = `
insert into descriptor_cache(smiles_hash, provider, descriptors_json)
values ($1,$2,$3)
on conflict (smiles_hash, provider)
do update set descriptors_json=excluded.descriptors_json, created_at=now()`
	_, err = r.DB.ExecContext(ctx, q, key, provider, js)
	return err
}

// Values are stored as strings: JSON has no NaN or Infinity, PaDEL emits both.
func encodeMapping(m descriptor.Mapping) ([]byte, error) {
	raw := make(map[string]string, len(m))
	for k, v := range m {
		raw[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode descriptors: %w", err)
	}
	return js, nil
}

func decodeMapping(js []byte) (descriptor.Mapping, error) {
	var raw map[string]string
	if err := json.Unmarshal(js, &raw); err != nil {
		return nil, err
	}
	m := make(descriptor.Mapping, len(raw))
	for k, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", k, err)
		}
		m[k] = v
	}
	return m, nil
}
