// Package content folds semantically/textually identical instructions into
// running aggregates instead of storing each occurrence independently. Exact
// matches (normalized-text hash) merge incrementally; embedding similarity
// above the threshold is flagged for review, never merged automatically,
// because a false-positive merge would corrupt an aggregate irreversibly.
package content

import (
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"telemetry-quality-gate/backend/internal/telemetry/domain"
)

const (
	// DefaultSimilarityThreshold is the cosine similarity above which a
	// non-exact match is flagged for asynchronous review.
	DefaultSimilarityThreshold = 0.95

	// maxSubjectTypes bounds the per-aggregate subject list.
	maxSubjectTypes = 16

	// defaultEmbeddingCacheSize bounds how many embeddings are retained for
	// the similarity scan. Embeddings dominate the index's memory footprint,
	// so they are evicted LRU while aggregates themselves are kept.
	defaultEmbeddingCacheSize = 4096
)

// Aggregate is the running statistics for one normalized instruction.
type Aggregate struct {
	ID             uuid.UUID `json:"id"`
	NormalizedText string    `json:"normalized_text"`
	Hash           string    `json:"hash"`
	FirstSeen      time.Time `json:"first_seen"`
	LastSeen       time.Time `json:"last_seen"`
	UseCount       int64     `json:"use_count"`
	// SuccessRate, AvgSafetyScore, and AvgLatencyMs are incremental means:
	// new = (old*n + sample) / (n+1). Safety and latency keep their own
	// sample counts because those fields are optional per record.
	SuccessRate    float64 `json:"success_rate"`
	AvgSafetyScore float64 `json:"avg_safety_score"`
	safetyN        int64
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	latencyN       int64
	SubjectTypes   []string `json:"subject_types"`
}

// FoldKind tags a fold result.
type FoldKind string

const (
	FoldNew     FoldKind = "new_aggregate"
	FoldMerged  FoldKind = "merged"
	FoldFlagged FoldKind = "flagged_similar"
)

// FoldResult reports where a record's content landed. For FoldFlagged the
// record still gets its own aggregate (AggregateID); SimilarTo names the
// existing aggregate the reviewer should compare against.
type FoldResult struct {
	Kind        FoldKind
	AggregateID uuid.UUID
	SimilarTo   uuid.UUID
	Similarity  float64
}

// Index is the near-duplicate index. Safe for concurrent use; a single
// mutex guards the aggregate map, separate from the claim store's lock so the
// two dedup axes never serialize behind each other.
type Index struct {
	mu         sync.Mutex
	byHash     map[string]*Aggregate
	embeddings *lru.Cache[string, []float32]
	threshold  float64
	nowF       func() time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithSimilarityThreshold overrides the cosine flag threshold.
func WithSimilarityThreshold(t float64) Option {
	return func(ix *Index) { ix.threshold = t }
}

// WithEmbeddingCacheSize overrides the embedding LRU capacity.
func WithEmbeddingCacheSize(n int) Option {
	return func(ix *Index) {
		cache, err := lru.New[string, []float32](n)
		if err != nil {
			panic(err)
		}
		ix.embeddings = cache
	}
}

// NewIndex returns an empty index with the reference threshold.
func NewIndex(opts ...Option) *Index {
	cache, err := lru.New[string, []float32](defaultEmbeddingCacheSize)
	if err != nil {
		panic(err)
	}
	ix := &Index{
		byHash:     make(map[string]*Aggregate),
		embeddings: cache,
		threshold:  DefaultSimilarityThreshold,
		nowF:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Fold merges the record's content into the index. embedding may be nil, in
// which case only exact hash matching applies.
func (ix *Index) Fold(rec *domain.TelemetryRecord, embedding []float32) FoldResult {
	norm := Normalize(rec.InstructionText)
	hash := HashText(rec.InstructionText)
	now := ix.nowF()

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if agg, ok := ix.byHash[hash]; ok {
		agg.merge(rec, now)
		return FoldResult{Kind: FoldMerged, AggregateID: agg.ID}
	}

	var (
		bestHash string
		bestSim  float64
	)
	if embedding != nil {
		bestHash, bestSim = ix.nearest(embedding)
	}

	agg := newAggregate(norm, hash, rec, now)
	ix.byHash[hash] = agg
	if embedding != nil {
		ix.embeddings.Add(hash, embedding)
	}

	if bestHash != "" && bestSim >= ix.threshold {
		similarTo := ix.byHash[bestHash]
		return FoldResult{
			Kind:        FoldFlagged,
			AggregateID: agg.ID,
			SimilarTo:   similarTo.ID,
			Similarity:  bestSim,
		}
	}
	return FoldResult{Kind: FoldNew, AggregateID: agg.ID}
}

// Lookup returns a copy of the aggregate for the given instruction text.
func (ix *Index) Lookup(text string) (Aggregate, bool) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	agg, ok := ix.byHash[HashText(text)]
	if !ok {
		return Aggregate{}, false
	}
	out := *agg
	out.SubjectTypes = append([]string(nil), agg.SubjectTypes...)
	return out, true
}

// Len reports the number of aggregates.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.byHash)
}

// nearest scans the cached embeddings for the best cosine match. Called with
// ix.mu held. The scan set is bounded by the LRU capacity, keeping this
// constant-ish work per call.
func (ix *Index) nearest(embedding []float32) (hash string, sim float64) {
	for _, h := range ix.embeddings.Keys() {
		cand, ok := ix.embeddings.Peek(h)
		if !ok {
			continue
		}
		if s := cosineSimilarity(embedding, cand); s > sim {
			hash, sim = h, s
		}
	}
	return hash, sim
}

func newAggregate(norm, hash string, rec *domain.TelemetryRecord, now time.Time) *Aggregate {
	agg := &Aggregate{
		ID:             uuid.New(),
		NormalizedText: norm,
		Hash:           hash,
		FirstSeen:      now,
		LastSeen:       now,
	}
	agg.merge(rec, now)
	return agg
}

// merge folds one sample into the running statistics using the incremental
// mean rule, preserving numerical stability without re-scanning history.
func (a *Aggregate) merge(rec *domain.TelemetryRecord, now time.Time) {
	success := 0.0
	if rec.Status == domain.StatusSuccess {
		success = 1.0
	}
	a.SuccessRate = (a.SuccessRate*float64(a.UseCount) + success) / float64(a.UseCount+1)
	a.UseCount++
	a.LastSeen = now

	if rec.SafetyScore != nil {
		a.AvgSafetyScore = (a.AvgSafetyScore*float64(a.safetyN) + *rec.SafetyScore) / float64(a.safetyN+1)
		a.safetyN++
	}
	if rec.Latency != nil {
		a.AvgLatencyMs = (a.AvgLatencyMs*float64(a.latencyN) + rec.Latency.TotalMs) / float64(a.latencyN+1)
		a.latencyN++
	}

	subject := rec.SubjectType
	for _, s := range a.SubjectTypes {
		if s == subject {
			return
		}
	}
	if len(a.SubjectTypes) < maxSubjectTypes {
		a.SubjectTypes = append(a.SubjectTypes, subject)
	}
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
