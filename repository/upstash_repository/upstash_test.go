package upstash_repository

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGetSetDelRoundTrip(t *testing.T) {
	t.Parallel()
	store := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer up-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
			return
		}
		switch {
		case r.URL.Path == "/ping":
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "PONG"})
		case len(r.URL.Path) > 5 && r.URL.Path[:5] == "/get/":
			key := r.URL.Path[5:]
			if v, ok := store[key]; ok {
				_ = json.NewEncoder(w).Encode(map[string]string{"result": v})
			} else {
				_, _ = w.Write([]byte(`{"result":null}`))
			}
		case len(r.URL.Path) > 5 && r.URL.Path[:5] == "/set/":
			if r.URL.Query().Get("EX") != "86400" {
				t.Errorf("expected EX=86400, got %q", r.URL.Query().Get("EX"))
			}
			body, _ := io.ReadAll(r.Body)
			store[r.URL.Path[5:]] = string(body)
			_ = json.NewEncoder(w).Encode(map[string]string{"result": "OK"})
		case len(r.URL.Path) > 5 && r.URL.Path[:5] == "/del/":
			delete(store, r.URL.Path[5:])
			_ = json.NewEncoder(w).Encode(map[string]int{"result": 1})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown command"})
		}
	}))
	defer srv.Close()

	kv := NewKV(srv.URL, "up-token", time.Second)
	ctx := context.Background()

	if err := kv.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	if _, ok, err := kv.Get(ctx, "sess-1"); err != nil || ok {
		t.Fatalf("Get() on missing key = ok=%v err=%v, want absent without error", ok, err)
	}

	if err := kv.Set(ctx, "sess-1", `{"chats":[]}`, 24*time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, ok, err := kv.Get(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("Get() after Set = ok=%v err=%v", ok, err)
	}
	if val != `{"chats":[]}` {
		t.Fatalf("Get() value = %q", val)
	}

	if err := kv.Del(ctx, "sess-1"); err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if _, ok, _ := kv.Get(ctx, "sess-1"); ok {
		t.Fatalf("key still present after Del()")
	}
}

func TestErrorsSurfaceUpstashMessage(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid token"})
	}))
	defer srv.Close()

	kv := NewKV(srv.URL, "bad", time.Second)
	if _, _, err := kv.Get(context.Background(), "k"); err == nil {
		t.Fatalf("expected error for unauthorized response")
	}
}
