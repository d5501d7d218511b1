package httputil

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flexcrow/escrowctl/internal/errors"
	"github.com/flexcrow/escrowctl/internal/logging"
	"github.com/flexcrow/escrowctl/pkg/logger"
)

func newTestClient(url string, token string) *Client {
	return NewClient(ClientConfig{
		BaseURL: url,
		Backoff: time.Millisecond,
		Token:   func() string { return token },
		Logger:  logger.Discard(),
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:8000/"})

	if client.baseURL != "http://localhost:8000" {
		t.Errorf("baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
	if client.maxRetries != 2 {
		t.Errorf("default maxRetries = %d, want 2", client.maxRetries)
	}
	if client.limiter != nil {
		t.Error("limiter should be nil when RequestsPerSecond is unset")
	}

	noRetry := NewClient(ClientConfig{MaxRetries: -1})
	if noRetry.maxRetries != 0 {
		t.Errorf("negative MaxRetries should disable retries, got %d", noRetry.maxRetries)
	}
}

func TestClient_AttachesTokenAndTrace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get(TokenHeader); got != "jwt-abc" {
			t.Errorf("token header = %q", got)
		}
		if got := r.Header.Get(logging.TraceHeader); got != "trace-42" {
			t.Errorf("trace header = %q", got)
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}))
	defer server.Close()

	client := newTestClient(server.URL, "jwt-abc")
	ctx := logging.WithTraceID(context.Background(), "trace-42")
	resp, err := client.Get(ctx, "/auth/verify")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	var out map[string]string
	if err := DecodeResponse(resp, &out); err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if out["status"] != "ok" {
		t.Fatalf("body = %v", out)
	}
}

func TestClient_PostSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %s", ct)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["status"] != float64(1) {
			t.Errorf("body = %v", body)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	resp, err := client.Post(context.Background(), "/withdrawals", map[string]int{"status": 1})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if err := DecodeResponse(resp, nil); err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
}

func TestClient_RetriesIdempotentOnTransientStatus(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	resp, err := client.Put(context.Background(), "/transactions/1", map[string]int{"status": 2})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	resp, err := client.Post(context.Background(), "/pay?transaction=1", map[string]int{"amount": 1})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	resp.Body.Close()
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://127.0.0.1:1", RequestsPerSecond: 0.001, Burst: 1, Logger: logger.Discard()})
	// consume the single token
	client.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.DoRaw(ctx, http.MethodGet, "/", "", nil); err == nil {
		t.Fatal("expected limiter error")
	}
}

func TestDecodeResponse_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusBadRequest, "product_error")
	}))
	defer server.Close()

	client := newTestClient(server.URL, "")
	resp, err := client.Get(context.Background(), "/x")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	err = DecodeResponse(resp, nil)
	if !errors.Is(err, errors.CodeProduct) {
		t.Fatalf("DecodeResponse() = %v, want product_error", err)
	}
}

func TestDecodeResponse_Raw(t *testing.T) {
	resp := &http.Response{StatusCode: 200, Body: io.NopCloser(strings.NewReader(`{"total_count":0}`))}
	var raw []byte
	if err := DecodeResponse(resp, &raw); err != nil {
		t.Fatalf("DecodeResponse() error = %v", err)
	}
	if string(raw) != `{"total_count":0}` {
		t.Fatalf("raw = %s", raw)
	}
}

func TestReadAllWithLimit(t *testing.T) {
	data, truncated, err := ReadAllWithLimit(strings.NewReader("abcdef"), 4)
	if err != nil || !truncated || string(data) != "abcd" {
		t.Fatalf("got %q truncated=%v err=%v", data, truncated, err)
	}
	if _, err := ReadAllStrict(strings.NewReader("abcdef"), 4); err == nil {
		t.Fatal("ReadAllStrict should fail on oversize body")
	}
	data, err = ReadAllStrict(strings.NewReader("abc"), 4)
	if err != nil || string(data) != "abc" {
		t.Fatalf("got %q err=%v", data, err)
	}
}
