// Package gate composes the validation pipeline into the classification
// decision: structural, then cross-field, then kinematic checks, then exact
// and near-duplicate handling. Any hard reject short-circuits the remaining
// stages. The engine is called concurrently by request workers; the only
// shared mutable state is the claim store and the content index, each behind
// its own lock.
package gate

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"telemetry-quality-gate/backend/internal/capability"
	"telemetry-quality-gate/backend/internal/dedupe/claim"
	"telemetry-quality-gate/backend/internal/dedupe/content"
	"telemetry-quality-gate/backend/internal/embedding"
	"telemetry-quality-gate/backend/internal/metrics"
	"telemetry-quality-gate/backend/internal/quality/alert"
	"telemetry-quality-gate/backend/internal/quality/bounds"
	"telemetry-quality-gate/backend/internal/quality/consistency"
	"telemetry-quality-gate/backend/internal/quality/structural"
	"telemetry-quality-gate/backend/internal/telemetry"
	"telemetry-quality-gate/backend/internal/telemetry/domain"
	"telemetry-quality-gate/backend/internal/telemetry/repository"
)

const (
	// DefaultAlertWindow is the rolling window for alert-rate tracking.
	DefaultAlertWindow = time.Hour

	// defaultAlertInterval throttles how often the alert policy runs.
	defaultAlertInterval = 30 * time.Second

	// defaultMinAlertSample avoids paging on tiny denominators.
	defaultMinAlertSample = 100

	// embedTimeout caps the embedding-provider call; on timeout the record is
	// folded by exact hash only.
	embedTimeout = 2 * time.Second
)

// Engine classifies telemetry records. Safe for concurrent use.
type Engine struct {
	structural  *structural.Validator
	consistency *consistency.Checker
	bounds      *bounds.Checker
	claims      claim.Store
	index       *content.Index
	claimWindow time.Duration

	embedder  embedding.Provider
	sink      metrics.Sink
	persister repository.Persister
	emitter   telemetry.EventEmitter
	alerts    alert.Evaluator
	nowF      func() time.Time

	total          *rollingCounter
	rejects        *rollingCounter
	missingSubject *rollingCounter
	nonFinite      *rollingCounter
	duplicates     *rollingCounter

	alertMu        sync.Mutex
	lastAlertEval  time.Time
	alertInterval  time.Duration
	minAlertSample int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersister sets the storage collaborator for accepted records.
func WithPersister(p repository.Persister) Option {
	return func(e *Engine) { e.persister = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithEmbedding sets the embedding provider used for similarity flagging.
func WithEmbedding(p embedding.Provider) Option {
	return func(e *Engine) { e.embedder = p }
}

// WithEventEmitter sets the outcome event emitter.
func WithEventEmitter(em telemetry.EventEmitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithAlertEvaluator sets the rolling-rate alert policy.
func WithAlertEvaluator(a alert.Evaluator) Option {
	return func(e *Engine) { e.alerts = a }
}

// WithClaimWindow overrides the exact-duplicate suppression window.
func WithClaimWindow(d time.Duration) Option {
	return func(e *Engine) { e.claimWindow = d }
}

// WithClock injects the time source, for tests.
func WithClock(nowF func() time.Time) Option {
	return func(e *Engine) { e.nowF = nowF }
}

// WithStructuralValidator replaces the default structural validator.
func WithStructuralValidator(v *structural.Validator) Option {
	return func(e *Engine) { e.structural = v }
}

// WithConsistencyChecker replaces the default cross-field checker.
func WithConsistencyChecker(c *consistency.Checker) Option {
	return func(e *Engine) { e.consistency = c }
}

// New builds an Engine over the given registry, claim store, and content
// index. The registry must already be loaded; it is never mutated.
func New(registry *capability.Registry, claims claim.Store, index *content.Index, opts ...Option) *Engine {
	e := &Engine{
		structural:     structural.New(),
		consistency:    consistency.New(),
		bounds:         bounds.New(registry),
		claims:         claims,
		index:          index,
		claimWindow:    claim.DefaultWindow,
		sink:           metrics.Noop{},
		nowF:           func() time.Time { return time.Now().UTC() },
		total:          newRollingCounter(DefaultAlertWindow, 60),
		rejects:        newRollingCounter(DefaultAlertWindow, 60),
		missingSubject: newRollingCounter(DefaultAlertWindow, 60),
		nonFinite:      newRollingCounter(DefaultAlertWindow, 60),
		duplicates:     newRollingCounter(DefaultAlertWindow, 60),
		alertInterval:  defaultAlertInterval,
		minAlertSample: defaultMinAlertSample,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Classify runs the record through the full pipeline and returns its terminal
// outcome. Synchronous; side effects (claim store, content index, metrics,
// persistence) happen only at or after the terminal state. Retries carrying a
// key claimed within the window replay the first delivery's outcome: the
// first-seen outcome always wins, even if the retry payload would now fail
// validation.
func (e *Engine) Classify(ctx context.Context, rec *domain.TelemetryRecord) domain.ValidationOutcome {
	start := e.nowF()

	// A zero key is a structural violation; claiming it would collide every
	// malformed record on one entry, so the claim stage is skipped for it.
	if rec.IdempotencyKey != uuid.Nil {
		ticket, cached, err := e.claims.Claim(ctx, rec.IdempotencyKey, e.claimWindow)
		switch {
		case err != nil:
			// Interrupted while waiting on the claim winner. Classify fresh;
			// the outcome is not cached and not persisted (the winner owns
			// persistence for this key).
			log.Printf("gate: claim wait interrupted: %v", err)
			outcome := e.classify(ctx, rec, start)
			e.observe(rec, outcome, start)
			return outcome
		case cached != nil:
			e.sink.IncClaim(true)
			e.total.Inc(start)
			e.duplicates.Inc(start)
			e.sink.ObserveClassifyDuration(e.nowF().Sub(start))
			e.maybeEvaluateAlerts(start)
			return *cached
		default:
			e.sink.IncClaim(false)
			outcome := e.classify(ctx, rec, start)
			ticket.Resolve(outcome)
			e.observe(rec, outcome, start)
			e.forward(ctx, rec, outcome)
			return outcome
		}
	}

	outcome := e.classify(ctx, rec, start)
	e.observe(rec, outcome, start)
	e.forward(ctx, rec, outcome)
	return outcome
}

// classify runs the checking stages in their fixed order. Stage order also
// fixes the triggering reason when several rules are violated at once.
func (e *Engine) classify(ctx context.Context, rec *domain.TelemetryRecord, now time.Time) domain.ValidationOutcome {
	if violations := e.structural.Validate(rec); len(violations) > 0 {
		return domain.Rejected(domain.RejectionReason{
			Code:       violations[0].Code,
			Field:      violations[0].Field,
			Detail:     violations[0].Message,
			Violations: violations,
		})
	}

	warns, rej := e.consistency.Check(rec, now)
	if rej != nil {
		return domain.Rejected(*rej)
	}

	boundsWarns, rej := e.bounds.Check(rec)
	if rej != nil {
		return domain.Rejected(*rej)
	}
	warns = append(warns, boundsWarns...)

	var emb []float32
	if e.embedder != nil {
		embedCtx, cancel := context.WithTimeout(ctx, embedTimeout)
		v, err := e.embedder.Embed(embedCtx, rec.InstructionText)
		cancel()
		if err != nil {
			log.Printf("gate: embedding unavailable, folding by exact hash only: %v", err)
		} else {
			emb = v
		}
	}
	fold := e.index.Fold(rec, emb)
	e.sink.IncFold(string(fold.Kind))
	if fold.Kind == content.FoldFlagged {
		warns = append(warns, domain.WarnNearDuplicateFlagged)
		log.Printf("gate: near-duplicate flagged for review: aggregate=%s similar_to=%s similarity=%.3f",
			fold.AggregateID, fold.SimilarTo, fold.Similarity)
	}

	return domain.Accept(warns)
}

// observe emits counters and rolling-rate samples for a terminal outcome.
// Observability failures never abort a classification.
func (e *Engine) observe(rec *domain.TelemetryRecord, outcome domain.ValidationOutcome, start time.Time) {
	e.sink.IncOutcome(outcome.Decision)
	for _, w := range outcome.Warnings {
		e.sink.IncWarning(w)
	}
	e.total.Inc(start)
	if outcome.Decision == domain.DecisionRejected && outcome.Reason != nil {
		e.sink.IncRejection(outcome.Reason.Code)
		e.rejects.Inc(start)
		switch outcome.Reason.Code {
		case domain.ReasonSubjectTypeUnspecified, domain.ReasonSubjectTypeMissing:
			e.missingSubject.Inc(start)
		case domain.ReasonControlVectorNonFinite:
			e.nonFinite.Inc(start)
		}
	}

	now := e.nowF()
	var reason domain.ReasonCode
	if outcome.Reason != nil {
		reason = outcome.Reason.Code
	}
	telemetry.EmitAsync(e.emitter, &telemetry.OutcomeEvent{
		IdempotencyKey: rec.IdempotencyKey,
		SubjectType:    rec.SubjectType,
		Decision:       outcome.Decision,
		ReasonCode:     reason,
		Warnings:       outcome.Warnings,
		Duplicate:      outcome.Duplicate,
		OccurredAt:     rec.OccurredAt,
		ClassifiedAt:   now,
	})
	e.sink.ObserveClassifyDuration(now.Sub(start))
	e.maybeEvaluateAlerts(start)
}

// forward hands an accepted record to the storage collaborator. Rejected
// records are never persisted.
func (e *Engine) forward(ctx context.Context, rec *domain.TelemetryRecord, outcome domain.ValidationOutcome) {
	if e.persister == nil || !outcome.Accepted() {
		return
	}
	if err := e.persister.Persist(ctx, rec, outcome); err != nil {
		log.Printf("gate: persist failed for %s: %v", rec.IdempotencyKey, err)
	}
}

// maybeEvaluateAlerts runs the alert policy at most once per alertInterval,
// off the hot path. Policy errors are logged; they never surface to callers.
func (e *Engine) maybeEvaluateAlerts(now time.Time) {
	if e.alerts == nil {
		return
	}
	e.alertMu.Lock()
	if now.Sub(e.lastAlertEval) < e.alertInterval {
		e.alertMu.Unlock()
		return
	}
	e.lastAlertEval = now
	e.alertMu.Unlock()

	total := e.total.Sum(now)
	if total < e.minAlertSample {
		return
	}
	rates := alert.Rates{
		Total:              total,
		HardRejectRate:     float64(e.rejects.Sum(now)) / float64(total),
		MissingSubjectRate: float64(e.missingSubject.Sum(now)) / float64(total),
		NonFiniteRate:      float64(e.nonFinite.Sum(now)) / float64(total),
		DuplicateRate:      float64(e.duplicates.Sum(now)) / float64(total),
	}
	go func() {
		evalCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		alerts, err := e.alerts.Evaluate(evalCtx, rates)
		if err != nil {
			log.Printf("gate: alert evaluation failed: %v", err)
			return
		}
		for _, a := range alerts {
			log.Printf("gate: ALERT %s: %s (window total=%d reject=%.4f missing_subject=%.4f non_finite=%.4f duplicate=%.4f)",
				a.Name, a.Detail, rates.Total, rates.HardRejectRate, rates.MissingSubjectRate, rates.NonFiniteRate, rates.DuplicateRate)
		}
	}()
}
