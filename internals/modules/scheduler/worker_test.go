package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"watchtower/internals/modules/incident"
	"watchtower/internals/modules/probe"
	"watchtower/internals/modules/state"
	"watchtower/internals/modules/target"
	"watchtower/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeIncidentSvc struct {
	mu        sync.Mutex
	openErrs  []error // consumed per Open call, nil means success
	closeErrs []error
	opened    []string
	closed    []uuid.UUID
	existing  *incident.Incident
}

func (f *fakeIncidentSvc) Open(ctx context.Context, targetID string, cause string) (*incident.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.openErrs) > 0 {
		err := f.openErrs[0]
		f.openErrs = f.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}

	inc := &incident.Incident{ID: uuid.New(), TargetID: targetID, Status: incident.StatusOpen, CauseSummary: cause}
	f.opened = append(f.opened, targetID)
	return inc, nil
}

func (f *fakeIncidentSvc) FindOpen(ctx context.Context, targetID string) (*incident.Incident, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing, nil
}

func (f *fakeIncidentSvc) Close(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.closeErrs) > 0 {
		err := f.closeErrs[0]
		f.closeErrs = f.closeErrs[1:]
		if err != nil {
			return err
		}
	}
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeIncidentSvc) openCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.opened)
}

func (f *fakeIncidentSvc) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

// fakeRemediator reports each Run invocation and blocks until cancelled.
type fakeRemediator struct {
	started chan uuid.UUID
}

func newFakeRemediator() *fakeRemediator {
	return &fakeRemediator{started: make(chan uuid.UUID, 8)}
}

func (f *fakeRemediator) Run(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult) {
	f.started <- incidentID
	<-ctx.Done()
}

func (f *fakeRemediator) waitStarted(t *testing.T) uuid.UUID {
	t.Helper()
	select {
	case id := <-f.started:
		return id
	case <-time.After(time.Second):
		t.Fatal("remediation never started")
		return uuid.Nil
	}
}

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, t target.Target) (probe.CheckResult, error) {
	return probe.CheckResult{TargetID: t.ID, Timestamp: time.Now(), Success: true}, nil
}

func testWorker(svc *fakeIncidentSvc, eng Remediator, ft, st int) *Worker {
	logger := zerolog.Nop()
	tgt := target.Target{ID: "web-1", Kind: target.KindService, CheckInterval: time.Minute, FailureThreshold: ft, SuccessThreshold: st}
	return NewWorker(tgt, state.NewMachine(tgt.ID, ft, st), fakeRunner{}, svc, eng, nil, &logger)
}

func result(success bool) probe.CheckResult {
	return probe.CheckResult{TargetID: "web-1", Timestamp: time.Now(), Success: success, Detail: "http service error: status 503"}
}

func TestWorker_OpensIncidentAndStartsRemediationAtThreshold(t *testing.T) {
	svc := &fakeIncidentSvc{}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 2, 2)
	ctx := context.Background()

	w.apply(ctx, result(false))
	if svc.openCount() != 0 {
		t.Fatalf("one failure must not open an incident")
	}

	w.apply(ctx, result(false))
	if svc.openCount() != 1 {
		t.Fatalf("want incident opened at threshold, got %d opens", svc.openCount())
	}
	if w.machine.OpenIncidentID() == uuid.Nil {
		t.Fatalf("incident id not bound to machine")
	}

	if got := eng.waitStarted(t); got != w.machine.OpenIncidentID() {
		t.Fatalf("remediation started for wrong incident: %v", got)
	}

	w.stopRemediation()
}

func TestWorker_AdoptsExistingOpenIncidentOnConflict(t *testing.T) {
	existing := &incident.Incident{ID: uuid.New(), TargetID: "web-1", Status: incident.StatusOpen}
	svc := &fakeIncidentSvc{
		openErrs: []error{&apperror.Error{Kind: apperror.Conflict, Op: "test", Message: "open incident already exists for target"}},
		existing: existing,
	}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 2)
	ctx := context.Background()

	w.apply(ctx, result(false))

	if w.machine.OpenIncidentID() != existing.ID {
		t.Fatalf("want adopted incident %v, got %v", existing.ID, w.machine.OpenIncidentID())
	}
	if got := eng.waitStarted(t); got != existing.ID {
		t.Fatalf("remediation must run against the adopted incident, got %v", got)
	}

	w.stopRemediation()
}

func TestWorker_FailedOpenIsHeldPendingAndReplayed(t *testing.T) {
	svc := &fakeIncidentSvc{openErrs: []error{errors.New("connection refused")}}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 2)
	ctx := context.Background()

	w.apply(ctx, result(false))
	if w.machine.Status() != state.StatusFailing {
		t.Fatalf("state must advance even when the write fails, got %v", w.machine.Status())
	}
	if w.machine.OpenIncidentID() != uuid.Nil {
		t.Fatalf("no incident should be bound yet")
	}
	if len(w.pending) != 1 {
		t.Fatalf("want one pending write, got %d", len(w.pending))
	}

	// repository recovered, next result replays the held write first
	w.apply(ctx, result(false))
	if svc.openCount() != 1 {
		t.Fatalf("pending open not replayed, got %d opens", svc.openCount())
	}
	if w.machine.OpenIncidentID() == uuid.Nil {
		t.Fatalf("replayed open must bind the incident")
	}
	if len(w.pending) != 0 {
		t.Fatalf("pending queue should be drained, got %d", len(w.pending))
	}
	eng.waitStarted(t)

	w.stopRemediation()
}

func TestWorker_SupersededPendingOpenIsDropped(t *testing.T) {
	svc := &fakeIncidentSvc{openErrs: []error{errors.New("connection refused")}}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 1)
	ctx := context.Background()

	w.apply(ctx, result(false))
	if len(w.pending) != 1 {
		t.Fatalf("want pending open, got %d", len(w.pending))
	}

	// target came back before the write ever committed: failing -> healthy,
	// the queued open notices it is stale and becomes a no-op
	w.apply(ctx, result(true))
	if svc.openCount() != 0 {
		t.Fatalf("superseded open must not create an incident, got %d", svc.openCount())
	}
	if len(w.pending) != 0 {
		t.Fatalf("stale pending write should clear, got %d", len(w.pending))
	}
}

func TestWorker_SustainedRecoveryClosesIncident(t *testing.T) {
	svc := &fakeIncidentSvc{}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 2)
	ctx := context.Background()

	w.apply(ctx, result(false))
	eng.waitStarted(t)
	id := w.machine.OpenIncidentID()

	w.apply(ctx, result(true)) // recovering, remediation cancelled
	if svc.closedCount() != 0 {
		t.Fatalf("close must wait for the success threshold")
	}

	w.apply(ctx, result(true)) // healthy, incident closes
	if svc.closedCount() != 1 {
		t.Fatalf("want incident closed, got %d", svc.closedCount())
	}
	svc.mu.Lock()
	closedID := svc.closed[0]
	svc.mu.Unlock()
	if closedID != id {
		t.Fatalf("closed wrong incident: %v", closedID)
	}
	if w.machine.OpenIncidentID() != uuid.Nil {
		t.Fatalf("machine must drop the incident binding after close")
	}
}

func TestWorker_FailedCloseIsHeldPendingAndReplayed(t *testing.T) {
	svc := &fakeIncidentSvc{closeErrs: []error{errors.New("connection refused")}}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 1)
	ctx := context.Background()

	w.apply(ctx, result(false))
	eng.waitStarted(t)

	w.apply(ctx, result(true)) // close fails, held pending
	if svc.closedCount() != 0 {
		t.Fatalf("close should have failed")
	}
	if len(w.pending) != 1 {
		t.Fatalf("want pending close, got %d", len(w.pending))
	}

	w.apply(ctx, result(true))
	if svc.closedCount() != 1 {
		t.Fatalf("pending close not replayed, got %d", svc.closedCount())
	}
	if len(w.pending) != 0 {
		t.Fatalf("pending queue should be drained")
	}
}

func TestWorker_VerificationResultsJoinTheTimeline(t *testing.T) {
	svc := &fakeIncidentSvc{}
	eng := newFakeRemediator()
	w := testWorker(svc, eng, 1, 1)
	ctx := context.Background()

	w.apply(ctx, result(false))
	eng.waitStarted(t)

	// a verification success from the engine drives the same transition a
	// scheduled check would
	w.apply(ctx, probe.CheckResult{TargetID: "web-1", Timestamp: time.Now(), Success: true})
	if w.machine.Status() != state.StatusHealthy {
		t.Fatalf("want healthy after verification success, got %v", w.machine.Status())
	}
	if svc.closedCount() != 1 {
		t.Fatalf("want incident closed, got %d", svc.closedCount())
	}
}

func TestWorker_StopRemediationDrainsVerifyChannel(t *testing.T) {
	svc := &fakeIncidentSvc{}
	logger := zerolog.Nop()
	tgt := target.Target{ID: "web-1", Kind: target.KindService, CheckInterval: time.Minute, FailureThreshold: 1, SuccessThreshold: 2}

	started := make(chan struct{})
	eng := remediatorFunc(func(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult) {
		close(started)
		// keep emitting until cancelled, the worker must not deadlock
		for {
			select {
			case <-ctx.Done():
				return
			case verifyCh <- probe.CheckResult{TargetID: t.ID, Success: false}:
			}
		}
	})

	w := NewWorker(tgt, state.NewMachine(tgt.ID, 1, 2), fakeRunner{}, svc, eng, nil, &logger)
	ctx := context.Background()

	w.apply(ctx, result(false))
	<-started

	done := make(chan struct{})
	go func() {
		w.stopRemediation()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stopRemediation deadlocked on a chatty engine")
	}
}

type remediatorFunc func(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult)

func (f remediatorFunc) Run(ctx context.Context, t target.Target, incidentID uuid.UUID, verifyCh chan<- probe.CheckResult) {
	f(ctx, t, incidentID, verifyCh)
}
