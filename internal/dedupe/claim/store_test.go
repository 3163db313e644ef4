package claim

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

func TestClaim_FirstCallerWinsTicket(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()

	ticket, cached, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if ticket == nil {
		t.Fatal("first claim should return a ticket")
	}
	if cached != nil {
		t.Fatalf("first claim returned a cached outcome: %+v", cached)
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestClaim_DuplicateReplaysFirstOutcome(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()

	ticket, _, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})

	dup, cached, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("duplicate Claim: %v", err)
	}
	if dup != nil {
		t.Fatal("duplicate claim should not win a ticket")
	}
	if cached == nil {
		t.Fatal("duplicate claim should return the cached outcome")
	}
	if cached.Decision != domain.DecisionAccepted {
		t.Errorf("cached decision = %s, want %s", cached.Decision, domain.DecisionAccepted)
	}
	if !cached.Duplicate {
		t.Error("replayed outcome must be marked Duplicate")
	}
}

func TestClaim_DuplicateBlocksUntilResolve(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()

	ticket, _, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	got := make(chan *domain.ValidationOutcome, 1)
	go func() {
		_, cached, err := s.Claim(context.Background(), key, DefaultWindow)
		if err != nil {
			t.Errorf("waiting Claim: %v", err)
		}
		got <- cached
	}()

	select {
	case <-got:
		t.Fatal("duplicate returned before the winner resolved")
	case <-time.After(20 * time.Millisecond):
	}

	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionRejected})

	select {
	case cached := <-got:
		if cached == nil || cached.Decision != domain.DecisionRejected {
			t.Fatalf("cached = %+v, want rejected", cached)
		}
	case <-time.After(time.Second):
		t.Fatal("duplicate never unblocked after resolve")
	}
}

func TestClaim_WaiterHonorsContextCancellation(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()
	if _, _, err := s.Claim(context.Background(), key, DefaultWindow); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err := s.Claim(ctx, key, DefaultWindow)
	if err != context.DeadlineExceeded {
		t.Fatalf("err = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestClaim_ExactlyOneWinnerUnderConcurrency(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()
	const callers = 64

	var wins atomic.Int64
	var replays atomic.Int64
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ticket, cached, err := s.Claim(context.Background(), key, DefaultWindow)
			if err != nil {
				t.Errorf("Claim: %v", err)
				return
			}
			if ticket != nil {
				wins.Add(1)
				ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})
				return
			}
			if cached != nil && cached.Duplicate {
				replays.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("winners = %d, want exactly 1", wins.Load())
	}
	if replays.Load() != callers-1 {
		t.Errorf("replays = %d, want %d", replays.Load(), callers-1)
	}
}

func TestClaim_ExpiredEntryYieldsFreshClaim(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }
	key := uuid.New()

	ticket, _, err := s.Claim(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionRejected})

	now = now.Add(61 * time.Second)
	ticket, cached, err := s.Claim(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("Claim after expiry: %v", err)
	}
	if ticket == nil || cached != nil {
		t.Fatalf("post-expiry claim should be fresh, got cached %+v", cached)
	}
}

func TestClaim_PendingEntryNeverExpires(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }
	key := uuid.New()

	ticket, _, err := s.Claim(context.Background(), key, time.Minute)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	// Window elapses while the winner is still validating; the retry must wait
	// for the pending outcome, not start a competing claim.
	now = now.Add(2 * time.Minute)
	got := make(chan *domain.ValidationOutcome, 1)
	go func() {
		_, cached, _ := s.Claim(context.Background(), key, time.Minute)
		got <- cached
	}()

	select {
	case <-got:
		t.Fatal("retry of a pending claim returned before resolve")
	case <-time.After(20 * time.Millisecond):
	}

	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})
	select {
	case cached := <-got:
		if cached == nil || cached.Decision != domain.DecisionAccepted {
			t.Fatalf("cached = %+v, want the winner's outcome", cached)
		}
	case <-time.After(time.Second):
		t.Fatal("retry never received the pending outcome")
	}
}

func TestTicket_ResolveIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	key := uuid.New()
	ticket, _, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionRejected})

	_, cached, err := s.Claim(context.Background(), key, DefaultWindow)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if cached == nil || cached.Decision != domain.DecisionAccepted {
		t.Fatalf("cached = %+v, want the first resolution to stick", cached)
	}
}

func TestCompact_RemovesOnlyExpiredResolved(t *testing.T) {
	s := NewMemoryStore()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s.nowF = func() time.Time { return now }

	resolvedKey, pendingKey, freshKey := uuid.New(), uuid.New(), uuid.New()

	ticket, _, _ := s.Claim(context.Background(), resolvedKey, time.Minute)
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})
	if _, _, err := s.Claim(context.Background(), pendingKey, time.Minute); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	now = now.Add(2 * time.Minute)
	ticket, _, _ = s.Claim(context.Background(), freshKey, time.Minute)
	ticket.Resolve(domain.ValidationOutcome{Decision: domain.DecisionAccepted})

	if removed := s.Compact(); removed != 1 {
		t.Errorf("Compact() = %d, want 1 (expired resolved entry only)", removed)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
