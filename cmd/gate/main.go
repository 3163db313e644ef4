// gate classifies JSONL telemetry records through the quality gate. Used for
// backfill vetting: each input line is one TelemetryRecord; each output line
// is its outcome. Exits non-zero when any record hard-rejects.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"

	"telemetry-quality-gate/backend/internal/capability"
	"telemetry-quality-gate/backend/internal/config"
	"telemetry-quality-gate/backend/internal/db"
	"telemetry-quality-gate/backend/internal/dedupe/claim"
	"telemetry-quality-gate/backend/internal/dedupe/content"
	"telemetry-quality-gate/backend/internal/embedding"
	"telemetry-quality-gate/backend/internal/metrics"
	"telemetry-quality-gate/backend/internal/quality/alert"
	"telemetry-quality-gate/backend/internal/quality/consistency"
	"telemetry-quality-gate/backend/internal/quality/gate"
	"telemetry-quality-gate/backend/internal/quality/structural"
	"telemetry-quality-gate/backend/internal/telemetry"
	"telemetry-quality-gate/backend/internal/telemetry/domain"
	otelsetup "telemetry-quality-gate/backend/internal/telemetry/otel"
	"telemetry-quality-gate/backend/internal/telemetry/repository"
)

func main() {
	input := flag.String("input", "-", "JSONL file of telemetry records, or - for stdin")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	registry, err := capability.Load(cfg.RegistryPath)
	if err != nil {
		// A missing or malformed registry is a service-startup failure, never
		// a per-record condition.
		log.Fatalf("capability registry: %v", err)
	}
	log.Printf("capability registry loaded: subjects=%v", registry.Subjects())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "telemetry-quality-gate", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		time.Sleep(telemetry.ShutdownDrainDuration)
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	otelSink, err := metrics.NewOTelSink(providers.MeterProvider)
	if err != nil {
		log.Fatalf("metrics: %v", err)
	}
	sink := metrics.Sink(otelSink)
	if cfg.PrometheusAddr != "" {
		promSink, err := metrics.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			log.Fatalf("metrics: %v", err)
		}
		sink = metrics.Multi(otelSink, promSink)
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("prometheus metrics on %s/metrics", cfg.PrometheusAddr)
			if err := http.ListenAndServe(cfg.PrometheusAddr, mux); err != nil {
				log.Printf("prometheus listener: %v", err)
			}
		}()
	}

	var persister repository.Persister
	if cfg.DatabaseURL != "" {
		sqlDB, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer sqlDB.Close()
		persister = repository.NewPostgresPersister(sqlDB)
	} else {
		log.Printf("DATABASE_URL not set; accepted records are kept in memory only")
		persister = repository.NewMemoryPersister()
	}

	policy := ""
	if cfg.AlertPolicyPath != "" {
		raw, err := os.ReadFile(cfg.AlertPolicyPath)
		if err != nil {
			log.Fatalf("alert policy: %v", err)
		}
		policy = string(raw)
	}
	evaluator := alert.NewOPAEvaluator(policy, alert.DefaultThresholds())
	if err := evaluator.HealthCheck(ctx); err != nil {
		log.Fatalf("alert policy: %v", err)
	}

	opts := []gate.Option{
		gate.WithPersister(persister),
		gate.WithMetrics(sink),
		gate.WithEventEmitter(otelsetup.NewEventEmitter(providers.LoggerProvider)),
		gate.WithAlertEvaluator(evaluator),
		gate.WithClaimWindow(cfg.ClaimWindowDuration()),
		gate.WithStructuralValidator(structural.New(structural.WithVectorLength(cfg.VectorLength))),
		gate.WithConsistencyChecker(consistency.New(
			consistency.WithClockSkew(cfg.ClockSkewDuration()),
			consistency.WithLatencyTolerance(cfg.LatencyToleranceMs),
		)),
	}
	if cfg.EmbeddingURL != "" {
		opts = append(opts, gate.WithEmbedding(embedding.NewHTTPClient(cfg.EmbeddingURL)))
	}

	claims := claim.NewMemoryStore()
	claims.StartCompaction(ctx, time.Minute)
	index := content.NewIndex(content.WithSimilarityThreshold(cfg.SimilarityThreshold))
	engine := gate.New(registry, claims, index, opts...)

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			log.Fatalf("open %s: %v", *input, err)
		}
		defer f.Close()
		in = f
	}

	batchCtx, span := otel.Tracer("tqg.gate").Start(ctx, "classify_batch")
	defer span.End()

	var (
		accepted, warned, rejected, malformed int
		line                                  int
	)
	enc := json.NewEncoder(os.Stdout)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec domain.TelemetryRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			malformed++
			log.Printf("line %d: malformed record: %v", line, err)
			continue
		}
		outcome := engine.Classify(batchCtx, &rec)
		switch outcome.Decision {
		case domain.DecisionAccepted:
			accepted++
		case domain.DecisionAcceptedWarning:
			warned++
		case domain.DecisionRejected:
			rejected++
		}
		if err := enc.Encode(struct {
			IdempotencyKey string                   `json:"idempotency_key"`
			Outcome        domain.ValidationOutcome `json:"outcome"`
		}{rec.IdempotencyKey.String(), outcome}); err != nil {
			log.Fatalf("write outcome: %v", err)
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read input: %v", err)
	}

	fmt.Fprintf(os.Stderr, "classified %d records: accepted=%d accepted_with_warnings=%d rejected=%d malformed=%d aggregates=%d\n",
		line, accepted, warned, rejected, malformed, index.Len())
	if rejected > 0 || malformed > 0 {
		os.Exit(1)
	}
}
