package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/idea-evaluator/internal/types"
)

// -----------------------------------------------------------------------------
// Evaluation Audit Log Methods
// -----------------------------------------------------------------------------

// SaveEvaluation stores an evaluation and returns the stored record
func (db *DB) SaveEvaluation(ctx context.Context, input *EvaluationInput) (*EvaluationRecord, error) {
	if input == nil || input.Evaluation == nil {
		return nil, fmt.Errorf("evaluation is required")
	}

	ideaJSON, err := json.Marshal(input.Idea)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal idea: %w", err)
	}
	resultJSON, err := json.Marshal(input.Evaluation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal evaluation: %w", err)
	}

	record := &EvaluationRecord{
		ID:         uuid.New(),
		IdeaName:   input.Idea.Name,
		Idea:       input.Idea,
		Evaluation: input.Evaluation,
		Sentineled: sentinelNames(input.Evaluation),
		Model:      input.Model,
		DurationMs: int(input.Duration.Milliseconds()),
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO evaluations (id, idea_name, idea, result, overall_score, sentineled, model, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING created_at`,
		record.ID, record.IdeaName, ideaJSON, resultJSON, input.Evaluation.OverallScore(),
		record.Sentineled, record.Model, record.DurationMs,
	).Scan(&record.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save evaluation: %w", err)
	}
	return record, nil
}

// GetEvaluation retrieves an evaluation by ID. It returns nil, nil when not found.
func (db *DB) GetEvaluation(ctx context.Context, id uuid.UUID) (*EvaluationRecord, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT id, idea_name, idea, result, sentineled, model, duration_ms, created_at
		 FROM evaluations WHERE id = $1`,
		id,
	)
	record, err := scanEvaluation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get evaluation: %w", err)
	}
	return record, nil
}

// ListEvaluations returns the most recent evaluations, newest first
func (db *DB) ListEvaluations(ctx context.Context, limit, offset int) ([]EvaluationRecord, error) {
	if offset < 0 {
		offset = 0
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, idea_name, idea, result, sentineled, model, duration_ms, created_at
		 FROM evaluations
		 ORDER BY created_at DESC, id
		 LIMIT $1 OFFSET $2`,
		clampLimit(limit), offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	defer rows.Close()

	records := []EvaluationRecord{}
	for rows.Next() {
		record, err := scanEvaluation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan evaluation: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list evaluations: %w", err)
	}
	return records, nil
}

func scanEvaluation(row pgx.Row) (*EvaluationRecord, error) {
	var record EvaluationRecord
	var ideaJSON, resultJSON []byte

	err := row.Scan(&record.ID, &record.IdeaName, &ideaJSON, &resultJSON,
		&record.Sentineled, &record.Model, &record.DurationMs, &record.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(ideaJSON, &record.Idea); err != nil {
		return nil, fmt.Errorf("failed to unmarshal idea: %w", err)
	}
	record.Evaluation = &types.CompositeEvaluation{}
	if err := json.Unmarshal(resultJSON, record.Evaluation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal evaluation: %w", err)
	}
	return &record, nil
}
