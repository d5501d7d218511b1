package logger

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewParsesLevelAndFormat(t *testing.T) {
	log, err := New(LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if log.GetLevel().String() != "debug" {
		t.Fatalf("level = %s, want debug", log.GetLevel())
	}

	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.Named("hydrate").WithField("transaction_id", "tx-1").Info("loaded")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode json log line %q: %v", buf.String(), err)
	}
	if line["component"] != "hydrate" || line["transaction_id"] != "tx-1" {
		t.Fatalf("unexpected fields: %v", line)
	}
}

func TestNewRejectsBadLevel(t *testing.T) {
	if _, err := New(LoggingConfig{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
	if _, err := New(LoggingConfig{Output: "syslog"}); err == nil {
		t.Fatal("expected error for unknown output")
	}
}

func TestNewDefaultTagsComponent(t *testing.T) {
	log := NewDefault("watch")
	if log.Component() != "watch" {
		t.Fatalf("component = %q", log.Component())
	}
	var buf bytes.Buffer
	log.SetOutput(&buf)
	log.Warnf("step changed to %d", 4)
	if !bytes.Contains(buf.Bytes(), []byte("component=watch")) {
		t.Fatalf("missing component field: %s", buf.String())
	}
}
