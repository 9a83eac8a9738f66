package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"microgrid/internal/types"
)

// fakeScripter answers EVALSHA with a canned reply and records the keys and
// arguments it was called with.
type fakeScripter struct {
	mu    sync.Mutex
	reply any
	err   error
	keys  [][]string
	args  [][]any
}

func (f *fakeScripter) record(keys []string, args []any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, keys)
	f.args = append(f.args, args)
}

func (f *fakeScripter) Eval(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.record(keys, args)
	return redis.NewCmdResult(f.reply, f.err)
}

func (f *fakeScripter) EvalSha(_ context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.record(keys, args)
	return redis.NewCmdResult(f.reply, f.err)
}

func (f *fakeScripter) EvalRO(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeScripter) EvalShaRO(ctx context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	return f.EvalSha(ctx, sha, keys, args...)
}

func (f *fakeScripter) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(make([]bool, len(hashes)), nil)
}

func (f *fakeScripter) ScriptLoad(_ context.Context, _ string) *redis.StringCmd {
	return redis.NewStringResult("", nil)
}

func TestRedisStore_WithinLimit(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &fakeScripter{reply: []any{int64(3), int64(45000)}}
	store := NewRedisStore(f, "api")
	store.clock = types.FixedClock(now)

	res, err := store.IncrementAndCheck(context.Background(), "10.0.0.1", 5, time.Minute)
	require.NoError(t, err)

	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
	assert.Equal(t, now.Add(45*time.Second), res.ResetAt)
	require.Len(t, f.keys, 1)
	assert.Equal(t, []string{"api:10.0.0.1"}, f.keys[0])
	assert.Equal(t, []any{int64(60000)}, f.args[0])
}

func TestRedisStore_OverLimit(t *testing.T) {
	f := &fakeScripter{reply: []any{int64(6), int64(1000)}}
	store := NewRedisStore(f, "")

	res, err := store.IncrementAndCheck(context.Background(), "k", 5, time.Minute)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Zero(t, res.Remaining)
	assert.Equal(t, "ratelimit:k", f.keys[0][0])
}

func TestRedisStore_Errors(t *testing.T) {
	t.Run("redis down", func(t *testing.T) {
		f := &fakeScripter{err: errors.New("dial tcp: connection refused")}
		_, err := NewRedisStore(f, "").IncrementAndCheck(context.Background(), "k", 5, time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("short reply", func(t *testing.T) {
		f := &fakeScripter{reply: []any{int64(1)}}
		_, err := NewRedisStore(f, "").IncrementAndCheck(context.Background(), "k", 5, time.Minute)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected reply")
	})
}

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestMemoryStore_WindowResets(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock)
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		res, err := store.IncrementAndCheck(ctx, "k", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3-i, res.Remaining)
	}

	res, _ := store.IncrementAndCheck(ctx, "k", 3, time.Minute)
	assert.False(t, res.Allowed)
	assert.Equal(t, clock.now.Add(time.Minute), res.ResetAt)

	clock.now = clock.now.Add(time.Minute)
	res, _ = store.IncrementAndCheck(ctx, "k", 3, time.Minute)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestMemoryStore_KeysAreIndependent(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx := context.Background()

	_, _ = store.IncrementAndCheck(ctx, "a", 1, time.Minute)
	res, _ := store.IncrementAndCheck(ctx, "a", 1, time.Minute)
	assert.False(t, res.Allowed)

	res, _ = store.IncrementAndCheck(ctx, "b", 1, time.Minute)
	assert.True(t, res.Allowed)
}

func TestMemoryStore_Sweep(t *testing.T) {
	clock := &stepClock{now: time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(clock)
	ctx := context.Background()

	_, _ = store.IncrementAndCheck(ctx, "old", 10, time.Second)
	_, _ = store.IncrementAndCheck(ctx, "fresh", 10, time.Hour)

	clock.now = clock.now.Add(2 * time.Second)
	assert.Equal(t, 1, store.Sweep())
	assert.Len(t, store.windows, 1)
}
