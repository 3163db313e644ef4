package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embed" {
			t.Errorf("path = %s, want /embed", r.URL.Path)
		}
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Texts) != 1 || req.Texts[0] != "pick up the red cube" {
			t.Errorf("texts = %v", req.Texts)
		}
		json.NewEncoder(w).Encode(embedResponse{Vectors: [][]float32{{0.1, 0.2, 0.3}}, Dim: 3})
	}))
	defer srv.Close()

	vec, err := NewHTTPClient(srv.URL).Embed(context.Background(), "pick up the red cube")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vec = %v, want [0.1 0.2 0.3]", vec)
	}
}

func TestHTTPClient_EmbedServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL).Embed(context.Background(), "wave"); err == nil {
		t.Fatal("Embed should surface a non-200 response as an error")
	}
}

func TestHTTPClient_EmbedEmptyVectors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(embedResponse{Vectors: nil})
	}))
	defer srv.Close()

	if _, err := NewHTTPClient(srv.URL).Embed(context.Background(), "wave"); err == nil {
		t.Fatal("Embed should reject a response without vectors")
	}
}

func TestHTTPClient_EmbedContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHTTPClient(srv.URL).Embed(ctx, "wave"); err == nil {
		t.Fatal("Embed should honor context cancellation")
	}
}
