// Package claim implements exact-duplicate suppression keyed by idempotency
// key. A claim is a single atomic check-and-set: under concurrent delivery of
// the same key, exactly one caller wins the claim and runs full validation;
// every other caller within the TTL window receives the winner's outcome.
package claim

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

// DefaultWindow is the reference claim TTL: retries of the same attempt within
// this window replay the first outcome instead of re-running side effects.
const DefaultWindow = 60 * time.Second

// Store is the atomic TTL claim surface. Implementations must close the race
// between a request and its own retry: the claim check and the claim insert
// are one primitive, never two.
type Store interface {
	// Claim atomically claims key for window. On first claim it returns a
	// non-nil Ticket and the caller must call Resolve exactly once with the
	// terminal outcome. On a duplicate it blocks until the winner resolves
	// (or ctx is done) and returns the cached outcome.
	Claim(ctx context.Context, key uuid.UUID, window time.Duration) (*Ticket, *domain.ValidationOutcome, error)
	// Len reports live entries, for observability.
	Len() int
}

// Ticket is the winner's obligation to publish its outcome for replays.
type Ticket struct {
	once    sync.Once
	resolve func(domain.ValidationOutcome)
}

// Resolve publishes the outcome to every waiting and future duplicate of the
// claimed key. Safe to call once; additional calls are ignored.
func (t *Ticket) Resolve(outcome domain.ValidationOutcome) {
	t.once.Do(func() { t.resolve(outcome) })
}

type entry struct {
	claimedAt time.Time
	expiresAt time.Time
	done      chan struct{}
	outcome   domain.ValidationOutcome
}

// MemoryStore is the in-process Store. Expiry is passive (checked on claim) so
// there is no background sweep on the hot path; an optional compaction pass
// amortizes memory growth.
type MemoryStore struct {
	mu   sync.Mutex
	m    map[uuid.UUID]*entry
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		m:    make(map[uuid.UUID]*entry),
		nowF: func() time.Time { return time.Now().UTC() },
	}
}

// Claim implements Store.
func (s *MemoryStore) Claim(ctx context.Context, key uuid.UUID, window time.Duration) (*Ticket, *domain.ValidationOutcome, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	now := s.nowF()

	s.mu.Lock()
	e, ok := s.m[key]
	if ok && now.After(e.expiresAt) && resolved(e) {
		// Expired claim: the window has elapsed, so this delivery counts as a
		// fresh attempt. Pending claims are never evicted; their winner is
		// still mid-validation.
		ok = false
	}
	if !ok {
		e = &entry{
			claimedAt: now,
			expiresAt: now.Add(window),
			done:      make(chan struct{}),
		}
		s.m[key] = e
		s.mu.Unlock()
		return &Ticket{resolve: func(o domain.ValidationOutcome) {
			s.mu.Lock()
			e.outcome = o
			s.mu.Unlock()
			close(e.done)
		}}, nil, nil
	}
	s.mu.Unlock()

	select {
	case <-e.done:
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	}
	s.mu.Lock()
	out := e.outcome
	s.mu.Unlock()
	out.Duplicate = true
	return nil, &out, nil
}

// Len implements Store.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

// Compact removes expired, resolved entries and returns how many were removed.
func (s *MemoryStore) Compact() int {
	now := s.nowF()
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.m {
		if now.After(e.expiresAt) && resolved(e) {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

// StartCompaction runs Compact every interval until ctx is done.
func (s *MemoryStore) StartCompaction(ctx context.Context, interval time.Duration) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Compact()
			}
		}
	}()
}

func resolved(e *entry) bool {
	select {
	case <-e.done:
		return true
	default:
		return false
	}
}
