package openrouter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"cleaning-cards/config"
	"cleaning-cards/llm"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := config.Load()
	cfg.OpenRouterAPIKey = "test-key"
	client := NewClient(cfg)
	client.endpoint = srv.URL
	return client, srv, &calls
}

func chatBody(content any) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestCompleteSuccess(t *testing.T) {
	client, _, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer test-key", got)
		}
		if r.Header.Get("HTTP-Referer") == "" || r.Header.Get("X-Title") == "" {
			t.Error("identification headers missing")
		}
		w.Write([]byte(chatBody(`{"cards":[]}`)))
	})

	got, err := client.Complete(context.Background(), []llm.Message{{Role: "user", Content: "hi"}}, llm.CallOptions{Temperature: 0.2, MaxTokens: 1400})
	if err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if got != `{"cards":[]}` {
		t.Errorf("Complete() = %q", got)
	}
	if *calls != 1 {
		t.Errorf("expected 1 call, got %d", *calls)
	}
}

func TestCompleteMultiPartContent(t *testing.T) {
	client, _, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody([]any{
			map[string]any{"type": "text", "text": `{"cards":`},
			map[string]any{"type": "text", "text": `[]}`},
		})))
	})

	got, err := client.Complete(context.Background(), nil, llm.CallOptions{})
	if err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if got != `{"cards":[]}` {
		t.Errorf("Complete() = %q", got)
	}
}

// A call failing on the first two attempts and succeeding on the third must
// return the successful result, having waited at least 800ms + 1600ms.
func TestCompleteRetryBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("retry timing test waits for real backoff delays")
	}

	var n int32
	client, _, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&n, 1) < 3 {
			http.Error(w, "upstream busy", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(chatBody("ok")))
	})

	start := time.Now()
	got, err := client.Complete(context.Background(), nil, llm.CallOptions{})
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Complete() unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("Complete() = %q, want ok", got)
	}
	if elapsed < 2400*time.Millisecond {
		t.Errorf("elapsed = %v, want >= 2.4s of backoff", elapsed)
	}
}

func TestCompleteAllAttemptsFail(t *testing.T) {
	client, _, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	client.retryBase = time.Millisecond

	_, err := client.Complete(context.Background(), nil, llm.CallOptions{})
	if err == nil {
		t.Fatal("Complete() expected error")
	}
	var httpErr *llm.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %T, want *llm.HTTPError", err)
	}
	if httpErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", httpErr.Status)
	}
	if *calls != 3 {
		t.Errorf("expected 3 attempts, got %d", *calls)
	}
}

func TestCompleteMissingContentRetried(t *testing.T) {
	client, _, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})
	client.retryBase = time.Millisecond

	_, err := client.Complete(context.Background(), nil, llm.CallOptions{})
	if !errors.Is(err, llm.ErrMissingContent) {
		t.Fatalf("error = %v, want ErrMissingContent", err)
	}
	if *calls != 3 {
		t.Errorf("expected 3 attempts, got %d", *calls)
	}
}

func TestCompleteMissingAPIKeyFatal(t *testing.T) {
	client, _, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatBody("ok")))
	})
	client.apiKey = ""

	_, err := client.Complete(context.Background(), nil, llm.CallOptions{})
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Fatalf("error = %v, want ErrMissingAPIKey", err)
	}
	if *calls != 0 {
		t.Errorf("expected no HTTP calls, got %d", *calls)
	}
}

func TestCompleteContextCancelStopsRetries(t *testing.T) {
	client, _, calls := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Complete(ctx, nil, llm.CallOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if *calls != 1 {
		t.Errorf("expected 1 attempt before cancel, got %d", *calls)
	}
}
