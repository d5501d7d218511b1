package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	tests := map[string]string{
		"":                           "/",
		"/":                          "/",
		"/transactions":              "/transactions",
		"/transactions/64f1":         "/transactions/:id",
		"/products/remove/64f1":      "/products/remove/:id",
		"/users/username":            "/users/username",
		"/users/login":               "/users/login",
		"/users/64f1/password":       "/users/:id/password",
		"/auth/verify":               "/auth/verify",
		"/addresses/remove/a1/extra": "/addresses/remove/:id",
	}
	for in, want := range tests {
		if got := canonicalPath(in); got != want {
			t.Errorf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstrumentTransportCounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer server.Close()

	client := &http.Client{Transport: InstrumentTransport(nil)}
	before := testutil.ToFloat64(apiRequests.WithLabelValues("GET", "/payments/:id", "418"))

	resp, err := client.Get(server.URL + "/payments/p-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	after := testutil.ToFloat64(apiRequests.WithLabelValues("GET", "/payments/:id", "418"))
	if after-before != 1 {
		t.Fatalf("counter delta = %v, want 1", after-before)
	}
}

func TestWatchGauges(t *testing.T) {
	SetWatchCounts("buyer", map[string]int{"Pending": 2, "In transit": 1})
	SetWatchCounts("buyer", map[string]int{"Completed": 3})

	if got := testutil.ToFloat64(watchTransactions.WithLabelValues("buyer", "Completed")); got != 3 {
		t.Fatalf("Completed gauge = %v", got)
	}

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if strings.Contains(body, `label="Pending",party="buyer"`) {
		t.Fatal("stale gauge should have been removed")
	}
	if !strings.Contains(body, "escrowctl_watch_transactions") {
		t.Fatal("metrics output missing watch gauge")
	}
}
