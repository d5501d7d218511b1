package system

import (
	"context"
	"errors"
	"testing"
)

type recordingService struct {
	name    string
	failOn  string
	journal *[]string
}

func (r recordingService) Name() string { return r.name }

func (r recordingService) Start(context.Context) error {
	*r.journal = append(*r.journal, "start "+r.name)
	if r.failOn == "start" {
		return errors.New("boom")
	}
	return nil
}

func (r recordingService) Stop(context.Context) error {
	*r.journal = append(*r.journal, "stop "+r.name)
	return nil
}

func TestManagerOrdering(t *testing.T) {
	var journal []string
	m := NewManager()
	for _, name := range []string{"a", "b", "c"} {
		if err := m.Register(recordingService{name: name, journal: &journal}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	if err := m.Register(NoopService{ServiceName: "a"}); err == nil {
		t.Fatal("expected duplicate name error")
	}

	ctx := context.Background()
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Register(NoopService{ServiceName: "late"}); err == nil {
		t.Fatal("expected register after start to fail")
	}
	if err := m.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}

	want := []string{"start a", "start b", "start c", "stop c", "stop b", "stop a"}
	if len(journal) != len(want) {
		t.Fatalf("journal = %v", journal)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Fatalf("journal[%d] = %q, want %q", i, journal[i], want[i])
		}
	}
}

func TestManagerStartFailureRollsBack(t *testing.T) {
	var journal []string
	m := NewManager()
	_ = m.Register(recordingService{name: "a", journal: &journal})
	_ = m.Register(recordingService{name: "b", failOn: "start", journal: &journal})
	_ = m.Register(recordingService{name: "c", journal: &journal})

	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	want := []string{"start a", "start b", "stop a"}
	if len(journal) != len(want) {
		t.Fatalf("journal = %v, want %v", journal, want)
	}
	for i := range want {
		if journal[i] != want[i] {
			t.Fatalf("journal = %v, want %v", journal, want)
		}
	}
}
