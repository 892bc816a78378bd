package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pkm2-predict/api/internal/service"
	"pkm2-predict/api/internal/util"
)

type PredictionRepo struct{ DB *sql.DB }

func NewPredictionRepo(db *sql.DB) *PredictionRepo { return &PredictionRepo{DB: db} }

// PredictionRow is one logged request.
type PredictionRow struct {
	ID         int64
	CreatedAt  time.Time
	SmilesHash string
	Compound   string
	Provider   string
	Prediction any
	Missing    []string
	ErrCode    string
	ErrText    string
	DurationMS int64
}

func (r *PredictionRepo) RecordPrediction(ctx context.Context, rec service.Record) error {
	pred, missing, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	const q = `
insert into prediction_log(smiles_hash, compound, provider, prediction_json, missing_json, err_code, err_text, duration_ms)
values ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err = r.DB.ExecContext(ctx, q,
		util.SHA256Hex(rec.Compound), rec.Compound, rec.Provider,
		pred, missing, string(rec.ErrCode), rec.ErrText, rec.Duration.Milliseconds(),
	)
	return err
}

// Recent returns the latest rows for a compound, newest first.
func (r *PredictionRepo) Recent(ctx context.Context, compound string, limit int) ([]PredictionRow, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `
select id, created_at, smiles_hash, compound, provider,
       prediction_json, missing_json,
       coalesce(err_code,'') as err_code, coalesce(err_text,'') as err_text,
       duration_ms
from prediction_log
where smiles_hash = $1
order by created_at desc
limit $2`
	rows, err := r.DB.QueryContext(ctx, q, util.SHA256Hex(compound), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PredictionRow
	for rows.Next() {
		var (
			row          PredictionRow
			pred, missed []byte
		)
		if err := rows.Scan(&row.ID, &row.CreatedAt, &row.SmilesHash, &row.Compound, &row.Provider,
			&pred, &missed, &row.ErrCode, &row.ErrText, &row.DurationMS); err != nil {
			return nil, err
		}
		if err := decodeRecordJSON(pred, missed, &row); err != nil {
			return nil, fmt.Errorf("prediction_log %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func encodeRecord(rec service.Record) (pred, missing []byte, err error) {
	if pred, err = json.Marshal(rec.Prediction); err != nil {
		return nil, nil, fmt.Errorf("encode prediction: %w", err)
	}
	if missing, err = json.Marshal(rec.Missing); err != nil {
		return nil, nil, fmt.Errorf("encode missing: %w", err)
	}
	return pred, missing, nil
}

// decodeRecordJSON fills the jsonb columns; SQL NULL leaves the field empty.
func decodeRecordJSON(pred, missing []byte, row *PredictionRow) error {
	if len(pred) > 0 {
		if err := json.Unmarshal(pred, &row.Prediction); err != nil {
			return fmt.Errorf("decode prediction: %w", err)
		}
	}
	if len(missing) > 0 {
		if err := json.Unmarshal(missing, &row.Missing); err != nil {
			return fmt.Errorf("decode missing: %w", err)
		}
	}
	return nil
}
