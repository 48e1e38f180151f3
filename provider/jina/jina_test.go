package jina_provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	t.Parallel()
	if _, err := NewClient("", "jina-embeddings-v3", time.Second); err == nil {
		t.Fatalf("expected error for empty api key")
	}
}

func TestEmbedManySendsAuthAndTruncatesInput(t *testing.T) {
	t.Parallel()
	var gotAuth string
	var gotBody struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		resp := map[string]interface{}{
			"data": []map[string]interface{}{
				{"object": "embedding", "embedding": []float32{0.1, 0.2}, "index": 0},
				{"object": "embedding", "embedding": []float32{0.3, 0.4}, "index": 1},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	c, err := NewClient("test-key", "jina-embeddings-v3", time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.apiURL = srv.URL

	long := strings.Repeat("x", maxInputChars+500)
	vecs, err := c.EmbedMany(context.Background(), []string{"short", long})
	if err != nil {
		t.Fatalf("EmbedMany() error = %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("authorization header = %q", gotAuth)
	}
	if len(gotBody.Input) != 2 || len(gotBody.Input[1]) != maxInputChars {
		t.Fatalf("long input not truncated to %d chars", maxInputChars)
	}
	if len(vecs) != 2 || len(vecs[0]) != 2 {
		t.Fatalf("unexpected vectors: %v", vecs)
	}
}

func TestEmbedReturnsErrorOnBadStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClient("test-key", "", time.Second)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	c.apiURL = srv.URL

	if _, err := c.Embed(context.Background(), "query"); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}
