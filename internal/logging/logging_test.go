package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetUserID(ctx) != "" || GetRole(ctx) != "" {
		t.Fatal("empty context should carry no values")
	}

	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithUserID(ctx, "u-1")
	ctx = WithRole(ctx, "ADMIN")

	if GetTraceID(ctx) != "trace-1" || GetUserID(ctx) != "u-1" || GetRole(ctx) != "ADMIN" {
		t.Fatalf("unexpected values: %q %q %q", GetTraceID(ctx), GetUserID(ctx), GetRole(ctx))
	}

	if WithTraceID(context.Background(), "") != context.Background() {
		t.Fatal("empty trace id should not wrap the context")
	}
}

func TestNewTraceIDUnique(t *testing.T) {
	a, b := NewTraceID(), NewTraceID()
	if a == "" || a == b {
		t.Fatalf("trace ids not unique: %q %q", a, b)
	}
}

func TestLogRequestIncludesContext(t *testing.T) {
	log := New("test", "debug", "text")
	var buf bytes.Buffer
	log.SetOutput(&buf)

	ctx := WithUserID(WithTraceID(context.Background(), "trace-9"), "u-7")
	log.LogRequest(ctx, "GET", "/transactions", 200, 15*time.Millisecond)

	out := buf.String()
	for _, want := range []string{"trace_id=trace-9", "user_id=u-7", "path=/transactions", "status=200"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}
}
