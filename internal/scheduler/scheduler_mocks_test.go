package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"microgrid/internal/db"
	"microgrid/internal/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func noSleep(context.Context, time.Duration) error { return nil }

// ============================================================
// Mock: state readers and tick store
// ============================================================

type mockStateStore struct {
	mu sync.Mutex

	soc       float64
	socErr    error
	target    float64
	targetErr error
	readDelay time.Duration

	saveErrs []error // consumed one per Save call
	saved    []types.DispatchResult
	saves    int
}

func (m *mockStateStore) LatestSoC(context.Context) (float64, error) {
	time.Sleep(m.readDelay)
	return m.soc, m.socErr
}

func (m *mockStateStore) TargetLoad(context.Context) (float64, error) {
	time.Sleep(m.readDelay)
	return m.target, m.targetErr
}

func (m *mockStateStore) Save(_ context.Context, res *types.DispatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if len(m.saveErrs) > 0 {
		err := m.saveErrs[0]
		m.saveErrs = m.saveErrs[1:]
		if err != nil {
			return err
		}
	}
	if res.TickID == "" {
		res.TickID = "tick-1"
	}
	m.saved = append(m.saved, *res)
	return nil
}

// ============================================================
// Mock: cross-process tick lock
// ============================================================

type mockTickLock struct {
	mu       sync.Mutex
	held     bool // held by another process
	err      error
	acquired int
	released int
}

func (m *mockTickLock) TryAcquire(context.Context) (func(context.Context), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	if m.held {
		return nil, false, nil
	}
	m.acquired++
	return func(context.Context) {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.released++
	}, true, nil
}

// ============================================================
// Mock: publisher and metrics
// ============================================================

type mockPublisher struct {
	mu        sync.Mutex
	published []types.DispatchResult
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, res types.DispatchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, res)
	return m.err
}

type mockRecorder struct {
	mu       sync.Mutex
	ticks    int
	failures int
	archived []int
}

func (m *mockRecorder) RecordTick(context.Context, types.DispatchResult, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *mockRecorder) RecordTickFailure(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *mockRecorder) RecordPublishFailure(context.Context, string) {}

func (m *mockRecorder) RecordArchived(_ context.Context, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived = append(m.archived, n)
}

// ============================================================
// Mock: archive
// ============================================================

type mockArchiveDB struct {
	batches   [][]db.ArchivedTick
	listErr   error
	deleteErr error
	deleted   [][]string
	lastLimit int
}

func (m *mockArchiveDB) ListOlderThan(_ context.Context, _ time.Time, limit int) ([]db.ArchivedTick, error) {
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.batches) == 0 {
		return nil, nil
	}
	b := m.batches[0]
	m.batches = m.batches[1:]
	return b, nil
}

func (m *mockArchiveDB) DeleteTicks(_ context.Context, ids []string) (int64, error) {
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	m.deleted = append(m.deleted, ids)
	return int64(len(ids)), nil
}

type mockUploader struct {
	keys []string
	data [][]byte
	err  error
}

func (m *mockUploader) Upload(_ context.Context, key string, data []byte) error {
	if m.err != nil {
		return m.err
	}
	m.keys = append(m.keys, key)
	m.data = append(m.data, data)
	return nil
}
