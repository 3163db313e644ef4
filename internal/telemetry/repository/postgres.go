package repository

import (
	"context"
	"database/sql"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// PostgresPersister writes accepted records to the telemetry_records table.
type PostgresPersister struct {
	db *sql.DB
}

// NewPostgresPersister returns a persister that uses the given db.
func NewPostgresPersister(db *sql.DB) *PostgresPersister {
	return &PostgresPersister{db: db}
}

// Persist implements Persister. The idempotency key is unique in the table;
// ON CONFLICT DO NOTHING keeps a racing insert from failing the pipeline if
// the claim window expired between two deliveries of the same attempt.
func (p *PostgresPersister) Persist(ctx context.Context, rec *domain.TelemetryRecord, outcome domain.ValidationOutcome) error {
	warnings := make([]string, len(outcome.Warnings))
	for i, w := range outcome.Warnings {
		warnings[i] = string(w)
	}

	var totalMs, queueMs, computeMs sql.NullFloat64
	if l := rec.Latency; l != nil {
		totalMs = sql.NullFloat64{Float64: l.TotalMs, Valid: true}
		queueMs = sql.NullFloat64{Float64: l.QueueWaitMs, Valid: true}
		computeMs = sql.NullFloat64{Float64: l.ComputeMs, Valid: true}
	}
	var safety sql.NullFloat64
	if rec.SafetyScore != nil {
		safety = sql.NullFloat64{Float64: *rec.SafetyScore, Valid: true}
	}
	var height, width, channels sql.NullInt32
	if s := rec.ImageShape; s != nil {
		height = sql.NullInt32{Int32: int32(s.Height), Valid: true}
		width = sql.NullInt32{Int32: int32(s.Width), Valid: true}
		channels = sql.NullInt32{Int32: int32(s.Channels), Valid: true}
	}
	errMsg := sql.NullString{String: rec.ErrorMessage, Valid: rec.ErrorMessage != ""}

	_, err := p.db.ExecContext(ctx, `
		INSERT INTO telemetry_records (
			idempotency_key, occurred_at, subject_type, instruction_text,
			control_vector, status, safety_score,
			latency_total_ms, latency_queue_ms, latency_compute_ms,
			error_message, image_height, image_width, image_channels,
			decision, warnings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		rec.IdempotencyKey, rec.OccurredAt.UTC(), rec.SubjectType, rec.InstructionText,
		rec.ControlVector, string(rec.Status), safety,
		totalMs, queueMs, computeMs,
		errMsg, height, width, channels,
		string(outcome.Decision), warnings,
	)
	return err
}
