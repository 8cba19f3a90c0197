package incident

import (
	"context"
	"errors"
	"sync"
	"testing"
	"watchtower/pkg/apperror"

	"github.com/rs/zerolog"
)

type fakeNotifier struct {
	mu    sync.Mutex
	calls []Incident
}

func (f *fakeNotifier) Notify(inc Incident) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, inc)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// flakyRepo fails the first n writes, then delegates.
type flakyRepo struct {
	Repository
	mu       sync.Mutex
	failures int
}

func (r *flakyRepo) SaveIncident(ctx context.Context, inc *Incident) error {
	r.mu.Lock()
	if r.failures > 0 {
		r.failures--
		r.mu.Unlock()
		return errors.New("connection reset")
	}
	r.mu.Unlock()
	return r.Repository.SaveIncident(ctx, inc)
}

func newTestManager() (*Manager, *fakeNotifier) {
	logger := zerolog.Nop()
	notifier := &fakeNotifier{}
	return NewManager(NewMemoryRepository(), notifier, &logger), notifier
}

func TestManager_OpenThenConflict(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	inc, err := m.Open(ctx, "web-1", "http service error: status 503")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if inc.Status != StatusOpen || inc.TargetID != "web-1" {
		t.Fatalf("unexpected incident: %+v", inc)
	}

	_, err = m.Open(ctx, "web-1", "still down")
	if !apperror.IsKind(err, apperror.Conflict) {
		t.Fatalf("want conflict on second open, got %v", err)
	}

	// a different target is unaffected
	if _, err := m.Open(ctx, "web-2", "host unreachable (ping failed)"); err != nil {
		t.Fatalf("open for second target: %v", err)
	}
}

func TestManager_OpenRetriesTransientWriteFailure(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	repo := &flakyRepo{Repository: NewMemoryRepository(), failures: 2}
	m := NewManager(repo, nil, &logger)

	inc, err := m.Open(ctx, "web-1", "timeout")
	if err != nil {
		t.Fatalf("open should survive two transient failures: %v", err)
	}

	got, err := m.Get(ctx, inc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != StatusOpen {
		t.Fatalf("want open, got %v", got.Status)
	}
}

func TestManager_CloseIsTerminal(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")

	if err := m.Close(ctx, inc.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, _ := m.Get(ctx, inc.ID)
	if got.Status != StatusClosed || got.ClosedAt.IsZero() {
		t.Fatalf("want closed with timestamp, got %+v", got)
	}

	err := m.Close(ctx, inc.ID)
	if !apperror.IsKind(err, apperror.NotFound) {
		t.Fatalf("want not-found on double close, got %v", err)
	}

	// target is free for a fresh incident now
	if _, err := m.Open(ctx, "web-1", "down again"); err != nil {
		t.Fatalf("open after close: %v", err)
	}
}

func TestManager_EscalateNotifiesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	m, notifier := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")

	if err := m.Escalate(ctx, inc.ID); err != nil {
		t.Fatalf("escalate: %v", err)
	}
	if err := m.Escalate(ctx, inc.ID); err != nil {
		t.Fatalf("second escalate should be a no-op: %v", err)
	}

	if notifier.count() != 1 {
		t.Fatalf("want exactly one notification, got %d", notifier.count())
	}

	got, _ := m.Get(ctx, inc.ID)
	if got.Status != StatusEscalated {
		t.Fatalf("want escalated, got %v", got.Status)
	}
}

func TestManager_EscalateConcurrentCallsNotifyOnce(t *testing.T) {
	ctx := context.Background()
	m, notifier := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Escalate(ctx, inc.ID)
		}()
	}
	wg.Wait()

	if notifier.count() != 1 {
		t.Fatalf("want exactly one notification, got %d", notifier.count())
	}
}

func TestManager_EscalateClosedIncidentIsNoop(t *testing.T) {
	ctx := context.Background()
	m, notifier := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")
	m.Close(ctx, inc.ID)

	if err := m.Escalate(ctx, inc.ID); err != nil {
		t.Fatalf("escalate closed: %v", err)
	}
	if notifier.count() != 0 {
		t.Fatalf("closed incident must not notify, got %d", notifier.count())
	}

	got, _ := m.Get(ctx, inc.ID)
	if got.Status != StatusClosed {
		t.Fatalf("status must stay closed, got %v", got.Status)
	}
}

func TestManager_RecordAttemptNumbersSequentially(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")

	for range 3 {
		attempt := &RemediationAttempt{
			IncidentID: inc.ID,
			ActionName: "restart_nginx",
			Outcome:    OutcomeFailed,
		}
		if err := m.RecordAttempt(ctx, attempt); err != nil {
			t.Fatalf("record attempt: %v", err)
		}
	}

	got, _ := m.Get(ctx, inc.ID)
	if len(got.Attempts) != 3 {
		t.Fatalf("want 3 attempts, got %d", len(got.Attempts))
	}
	for i, a := range got.Attempts {
		if a.AttemptNumber != i+1 {
			t.Fatalf("attempt %d: want number %d, got %d", i, i+1, a.AttemptNumber)
		}
		if a.ID.String() == "00000000-0000-0000-0000-000000000000" {
			t.Fatalf("attempt %d: id not assigned", i)
		}
	}
}

func TestManager_MarkRemediatingOnlyFromOpen(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	inc, _ := m.Open(ctx, "web-1", "down")

	if err := m.MarkRemediating(ctx, inc.ID); err != nil {
		t.Fatalf("mark remediating: %v", err)
	}
	got, _ := m.Get(ctx, inc.ID)
	if got.Status != StatusRemediating {
		t.Fatalf("want remediating, got %v", got.Status)
	}

	m.Escalate(ctx, inc.ID)
	if err := m.MarkRemediating(ctx, inc.ID); err != nil {
		t.Fatalf("mark remediating after escalate: %v", err)
	}
	got, _ = m.Get(ctx, inc.ID)
	if got.Status != StatusEscalated {
		t.Fatalf("escalated incident must not go back to remediating, got %v", got.Status)
	}
}

func TestManager_ListOpenSkipsClosed(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager()

	a, _ := m.Open(ctx, "web-1", "down")
	m.Open(ctx, "web-2", "down")
	m.Close(ctx, a.ID)

	open, err := m.ListOpen(ctx)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 1 || open[0].TargetID != "web-2" {
		t.Fatalf("want only web-2 open, got %+v", open)
	}
}
