package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

type fakeLock struct {
	held       bool
	acquireErr error
	releases   int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.acquireErr != nil {
		return false, f.acquireErr
	}
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunOnceRunsEveryJobAndRecordsMetrics(t *testing.T) {
	ok := &testJob{name: "ok"}
	failing := &testJob{name: "failing", err: errors.New("boom")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(ok, nil, failing),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got ok=%d failing=%d", ok.runs, failing.runs)
	}
	if lock.held || lock.releases != 1 {
		t.Fatalf("expected lock released once, held=%v releases=%d", lock.held, lock.releases)
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	counts := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "job" && m.GetCounter() != nil {
					counts[mf.GetName()+"/"+label.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["storefront_cron_job_success_total/ok"] != 1 {
		t.Fatalf("expected success for ok job, got %v", counts)
	}
	if counts["storefront_cron_job_failure_total/failing"] != 1 {
		t.Fatalf("expected failure for failing job, got %v", counts)
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	lock := &fakeLock{held: true}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("job should not run without the lock")
	}
}

func TestRunOnceSurfacesLockErrors(t *testing.T) {
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Lock: &fakeLock{acquireErr: errors.New("redis down")}})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := svc.RunOnce(context.Background()); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: &fakeLock{}, Interval: time.Hour})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := svc.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestNewServiceRequiresDeps(t *testing.T) {
	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected logger error")
	}
	if _, err := NewService(ServiceParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected lock error")
	}
}

func TestRegistryCopiesJobs(t *testing.T) {
	a := &testJob{name: "a"}
	b := &testJob{name: "b"}
	registry := NewRegistry(a)
	registry.Register(nil)
	registry.Register(b)

	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != a || jobs[1] != b {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("registry slice leaked")
	}
}

type fakeLockStore struct {
	values map[string]string
}

func (f *fakeLockStore) LockKey(name string) string { return "sf:lock:" + name }

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	v, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestRedisLockExclusiveAndTokenChecked(t *testing.T) {
	store := &fakeLockStore{values: map[string]string{}}
	ctx := context.Background()

	first, err := NewRedisLock(store, "cron:dev", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if first.Key() != "sf:lock:cron:dev" {
		t.Fatalf("unexpected key %s", first.Key())
	}
	second, _ := NewRedisLock(store, "cron:dev", time.Minute)

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("first acquire should win")
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("second acquire should lose")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, held := store.values[first.Key()]; !held {
		t.Fatal("non-owner release must not drop the lock")
	}

	// simulate expiry and takeover
	delete(store.values, first.Key())
	if ok, _ := second.Acquire(ctx); !ok {
		t.Fatal("second should acquire after expiry")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	if _, held := store.values[first.Key()]; !held {
		t.Fatal("stale owner must not release successor's lock")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, held := store.values[first.Key()]; held {
		t.Fatal("owner release should drop the lock")
	}
}

func TestNewRedisLockValidation(t *testing.T) {
	if _, err := NewRedisLock(nil, "x", 0); err == nil {
		t.Fatal("expected nil store error")
	}
	if _, err := NewRedisLock(&fakeLockStore{}, "", 0); err == nil {
		t.Fatal("expected empty name error")
	}
}
