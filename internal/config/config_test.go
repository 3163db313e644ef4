package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.RegistryPath != "configs/capabilities.yaml" {
		t.Errorf("RegistryPath = %q, want default", cfg.RegistryPath)
	}
	if cfg.ClaimWindow != "60s" {
		t.Errorf("ClaimWindow = %q, want %q", cfg.ClaimWindow, "60s")
	}
	if cfg.SimilarityThreshold != 0.95 {
		t.Errorf("SimilarityThreshold = %v, want 0.95", cfg.SimilarityThreshold)
	}
	if cfg.LatencyToleranceMs != 1.0 {
		t.Errorf("LatencyToleranceMs = %v, want 1.0", cfg.LatencyToleranceMs)
	}
	if cfg.VectorLength != 7 {
		t.Errorf("VectorLength = %d, want 7", cfg.VectorLength)
	}
	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.OTLPInsecure {
		t.Error("OTLPInsecure should default to false")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("REGISTRY_PATH", "/etc/tqg/profiles.yaml")
	os.Setenv("CLAIM_WINDOW", "120s")
	os.Setenv("SIMILARITY_THRESHOLD", "0.9")
	os.Setenv("VECTOR_LENGTH", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RegistryPath != "/etc/tqg/profiles.yaml" {
		t.Errorf("RegistryPath = %q", cfg.RegistryPath)
	}
	if cfg.ClaimWindow != "120s" {
		t.Errorf("ClaimWindow = %q, want %q", cfg.ClaimWindow, "120s")
	}
	if cfg.SimilarityThreshold != 0.9 {
		t.Errorf("SimilarityThreshold = %v, want 0.9", cfg.SimilarityThreshold)
	}
	if cfg.VectorLength != 14 {
		t.Errorf("VectorLength = %d, want 14", cfg.VectorLength)
	}
}

func TestLoad_InvalidSimilarityThreshold(t *testing.T) {
	for _, v := range []string{"0", "-0.5", "1.5"} {
		os.Clearenv()
		os.Setenv("SIMILARITY_THRESHOLD", v)
		if _, err := Load(); err == nil {
			t.Errorf("SIMILARITY_THRESHOLD=%s should fail validation", v)
		}
	}
}

func TestLoad_InvalidClaimWindow(t *testing.T) {
	os.Clearenv()
	os.Setenv("CLAIM_WINDOW", "sixty seconds")
	if _, err := Load(); err == nil {
		t.Error("non-duration CLAIM_WINDOW should fail validation")
	}
}

func TestLoad_InvalidVectorLength(t *testing.T) {
	os.Clearenv()
	os.Setenv("VECTOR_LENGTH", "-1")
	if _, err := Load(); err == nil {
		t.Error("negative VECTOR_LENGTH should fail validation")
	}
}

func TestClaimWindowDuration(t *testing.T) {
	cfg := &Config{ClaimWindow: "90s"}
	if d := cfg.ClaimWindowDuration(); d != 90*time.Second {
		t.Errorf("ClaimWindowDuration = %v, want 90s", d)
	}

	cfg = &Config{ClaimWindow: "invalid"}
	if d := cfg.ClaimWindowDuration(); d != 60*time.Second {
		t.Errorf("ClaimWindowDuration = %v, want 60s fallback", d)
	}

	cfg = &Config{ClaimWindow: "-5s"}
	if d := cfg.ClaimWindowDuration(); d != 60*time.Second {
		t.Errorf("ClaimWindowDuration = %v, want 60s fallback for negative", d)
	}
}

func TestClockSkewDuration(t *testing.T) {
	cfg := &Config{ClockSkew: "5s"}
	if d := cfg.ClockSkewDuration(); d != 5*time.Second {
		t.Errorf("ClockSkewDuration = %v, want 5s", d)
	}

	cfg = &Config{ClockSkew: "bogus"}
	if d := cfg.ClockSkewDuration(); d != 0 {
		t.Errorf("ClockSkewDuration = %v, want 0 fallback", d)
	}

	cfg = &Config{ClockSkew: "-1s"}
	if d := cfg.ClockSkewDuration(); d != 0 {
		t.Errorf("ClockSkewDuration = %v, want 0 for negative", d)
	}
}
