package editor

import (
	"context"
	"testing"
	"time"

	"certistage/models"
)

func TestManagerReusesSessionPerTemplate(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	m := NewManager(store, &fakePreviewer{}, testOptions(sched), 5*time.Minute)
	ctx := context.Background()
	sess := models.Session{EventID: "evt-1", OperatorID: "op-1"}

	first, err := m.Open(ctx, sess, "type-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	second, err := m.Open(ctx, sess, "type-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if first != second {
		t.Error("Expected one session per template")
	}

	got, err := m.Get(first.ID())
	if err != nil || got != first {
		t.Fatalf("Get() = %v, %v", got, err)
	}

	if err := first.MoveField(NameFieldSelection{}, models.Position{X: 9, Y: 9}); err != nil {
		t.Fatalf("MoveField() error = %v", err)
	}
	if err := m.Close(ctx, first.ID()); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if store.writes() != 1 {
		t.Errorf("Expected the close to flush once, got %d writes", store.writes())
	}
	if _, err := m.Get(first.ID()); models.KindOf(err) != models.KindNotFound {
		t.Errorf("Expected NotFound after close, got %v", err)
	}

	reopened, err := m.Open(ctx, sess, "type-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if reopened.ID() == first.ID() {
		t.Error("Expected a fresh session after close")
	}
}

func TestManagerSweepsIdleSessions(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	m := NewManager(store, &fakePreviewer{}, testOptions(sched), 5*time.Minute)
	ctx := context.Background()

	idle, err := m.Open(ctx, models.Session{EventID: "evt-1"}, "type-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sched.Advance(4 * time.Minute)

	active, err := m.Open(ctx, models.Session{EventID: "evt-1"}, "type-2")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	sched.Advance(2 * time.Minute)

	if n := m.SweepIdle(ctx); n != 1 {
		t.Fatalf("Expected 1 idle session closed, got %d", n)
	}
	if !idle.Closed() || active.Closed() {
		t.Errorf("Expected only the idle session to close, idle=%v active=%v", idle.Closed(), active.Closed())
	}
	if m.Len() != 1 {
		t.Errorf("Expected 1 open session, got %d", m.Len())
	}
}

func TestManagerShutdownFlushesEverySession(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	sched := NewManualScheduler(epoch)
	m := NewManager(store, &fakePreviewer{}, testOptions(sched), time.Minute)
	ctx := context.Background()

	s, err := m.Open(ctx, models.Session{EventID: "evt-1"}, "type-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.SetFontSize(NameFieldSelection{}, 50); err != nil {
		t.Fatalf("SetFontSize() error = %v", err)
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if store.stored().NameField.FontSize != 50 {
		t.Error("Expected the buffered edit to be flushed on shutdown")
	}
	if m.Len() != 0 {
		t.Errorf("Expected no sessions after shutdown, got %d", m.Len())
	}
}
