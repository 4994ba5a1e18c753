package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/job-extractor/internal/types"
)

// Batch statuses
const (
	BatchRunning   = "running"
	BatchCompleted = "completed"
	BatchCancelled = "cancelled"
)

// ProcessedBatch is a stored batch run and its records.
type ProcessedBatch struct {
	ID          uuid.UUID                `json:"id"`
	Status      string                   `json:"status"`
	URLCount    int                      `json:"url_count"`
	FailedCount int                      `json:"failed_count"`
	Records     []types.JobPostingRecord `json:"records"`
	Scores      json.RawMessage          `json:"scores,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// BatchSummary is the listing view of a batch, without records.
type BatchSummary struct {
	ID          uuid.UUID  `json:"id"`
	Status      string     `json:"status"`
	URLCount    int        `json:"url_count"`
	FailedCount int        `json:"failed_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CreateBatch records the start of a batch.
func (db *DB) CreateBatch(ctx context.Context, id uuid.UUID, urlCount int) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO processed_batches (id, status, url_count) VALUES ($1, $2, $3)`,
		id, BatchRunning, urlCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}
	return nil
}

// CompleteBatch stores the final records and status.
func (db *DB) CompleteBatch(ctx context.Context, id uuid.UUID, status string, records []types.JobPostingRecord) error {
	jsonBytes, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal records: %w", err)
	}
	failed := 0
	for _, r := range records {
		if r.Failed() {
			failed++
		}
	}

	result, err := db.pool.Exec(ctx,
		`UPDATE processed_batches
		 SET status = $2, records = $3, failed_count = $4, completed_at = NOW()
		 WHERE id = $1`,
		id, status, jsonBytes, failed,
	)
	if err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("batch not found: %s", id)
	}
	return nil
}

// SaveBatchScores attaches fit scores to a batch.
func (db *DB) SaveBatchScores(ctx context.Context, id uuid.UUID, scores any) error {
	jsonBytes, err := json.Marshal(scores)
	if err != nil {
		return fmt.Errorf("failed to marshal scores: %w", err)
	}
	if _, err := db.pool.Exec(ctx,
		`UPDATE processed_batches SET scores = $2 WHERE id = $1`, id, jsonBytes,
	); err != nil {
		return fmt.Errorf("failed to save scores: %w", err)
	}
	return nil
}

// GetBatch retrieves a batch by ID. It returns nil when none exists.
func (db *DB) GetBatch(ctx context.Context, id uuid.UUID) (*ProcessedBatch, error) {
	var b ProcessedBatch
	var recordsJSON, scoresJSON []byte

	err := db.pool.QueryRow(ctx,
		`SELECT id, status, url_count, failed_count, records, scores, created_at, completed_at
		 FROM processed_batches WHERE id = $1`,
		id,
	).Scan(&b.ID, &b.Status, &b.URLCount, &b.FailedCount, &recordsJSON, &scoresJSON, &b.CreatedAt, &b.CompletedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get batch: %w", err)
	}

	if err := json.Unmarshal(recordsJSON, &b.Records); err != nil {
		return nil, fmt.Errorf("failed to decode batch records: %w", err)
	}
	if len(scoresJSON) > 0 {
		b.Scores = scoresJSON
	}
	return &b, nil
}

// ListBatches returns the most recent batches.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]BatchSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, status, url_count, failed_count, created_at, completed_at
		 FROM processed_batches ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var s BatchSummary
		if err := rows.Scan(&s.ID, &s.Status, &s.URLCount, &s.FailedCount, &s.CreatedAt, &s.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
