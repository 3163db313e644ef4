// Package repository persists accepted telemetry records together with their
// classification outcome. The engine only knows the Persister interface; how
// and where records are stored is the collaborator's concern.
package repository

import (
	"context"
	"sync"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// Persister stores one accepted record with its outcome.
type Persister interface {
	Persist(ctx context.Context, rec *domain.TelemetryRecord, outcome domain.ValidationOutcome) error
}

// StoredRecord pairs a record with its outcome, as persisted.
type StoredRecord struct {
	Record  domain.TelemetryRecord
	Outcome domain.ValidationOutcome
}

// MemoryPersister keeps accepted records in memory. Used in tests and when no
// DATABASE_URL is configured.
type MemoryPersister struct {
	mu      sync.Mutex
	records []StoredRecord
}

// NewMemoryPersister returns an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// Persist implements Persister.
func (p *MemoryPersister) Persist(_ context.Context, rec *domain.TelemetryRecord, outcome domain.ValidationOutcome) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, StoredRecord{Record: *rec, Outcome: outcome})
	return nil
}

// All returns a copy of everything persisted so far.
func (p *MemoryPersister) All() []StoredRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StoredRecord(nil), p.records...)
}

// Len reports how many records were persisted.
func (p *MemoryPersister) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.records)
}
