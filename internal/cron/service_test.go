package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeJob struct {
	name string
	runs int
	err  error
}

func (f *fakeJob) Name() string { return f.name }

func (f *fakeJob) Run(ctx context.Context) error {
	f.runs++
	return f.err
}

type fakeLock struct {
	acquired   bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	return f.acquired, f.acquireErr
}

func (f *fakeLock) Release(ctx context.Context) error {
	f.releases++
	return nil
}

func newTestCronService(t *testing.T, lock Lock, jobs ...Job) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(jobs...),
		Lock:     lock,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestService_RunCycleExecutesJobs(t *testing.T) {
	lock := &fakeLock{acquired: true}
	first := &fakeJob{name: "first"}
	second := &fakeJob{name: "second"}
	svc := newTestCronService(t, lock, first, second)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if first.runs != 1 || second.runs != 1 {
		t.Fatalf("expected each job once, got %d and %d", first.runs, second.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released once, got %d", lock.releases)
	}
}

func TestService_RunCycleSkipsWhenLocked(t *testing.T) {
	lock := &fakeLock{acquired: false}
	job := &fakeJob{name: "only"}
	svc := newTestCronService(t, lock, job)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while lock held elsewhere, got %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("expected no release for unheld lock, got %d", lock.releases)
	}
}

func TestService_RunCycleContinuesPastJobFailure(t *testing.T) {
	lock := &fakeLock{acquired: true}
	failing := &fakeJob{name: "failing", err: errors.New("boom")}
	ok := &fakeJob{name: "ok"}
	svc := newTestCronService(t, lock, failing, ok)

	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if ok.runs != 1 {
		t.Fatalf("expected later job to run, got %d", ok.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected lock released, got %d", lock.releases)
	}
}

func TestService_RunCycleReturnsAcquireError(t *testing.T) {
	lock := &fakeLock{acquireErr: errors.New("redis down")}
	job := &fakeJob{name: "only"}
	svc := newTestCronService(t, lock, job)

	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected acquire error")
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs, got %d", job.runs)
	}
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error without lock")
	}
}
