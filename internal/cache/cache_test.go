package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/kyvra-tech/myip/pkg/errors"
)

// testTimeout is the common timeout for tests and contexts.
const testTimeout = 1 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	return ctx
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

// errorStore fails every operation.
type errorStore struct {
	closed atomic.Bool
}

func (s *errorStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}

func (s *errorStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}

func (s *errorStore) Name() string { return "broken" }

func (s *errorStore) Close() error {
	s.closed.Store(true)
	return nil
}

func TestStores(t *testing.T) {
	ldb, err := OpenLevelDB(filepath.Join(t.TempDir(), "cache.ldb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ldb.Close() })

	stores := []Store{
		NewMemory(time.Minute),
		NewLRU(16),
		ldb,
	}

	for _, s := range stores {
		t.Run(s.Name(), func(t *testing.T) {
			ctx := testContext(t)

			_, ok, err := s.Get(ctx, "geoip:1.1.1.1")
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = Fetch(ctx, s, "geoip:1.1.1.1")
			assert.True(t, apperrors.IsCacheMiss(err))

			val := []byte{1, 2, 3}
			require.NoError(t, s.Set(ctx, "geoip:1.1.1.1", val, time.Minute))
			val[0] = 9

			got, ok, err := s.Get(ctx, "geoip:1.1.1.1")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, []byte{1, 2, 3}, got)

			assert.NoError(t, Probe(ctx, s))
		})
	}
}

func TestMemory_Expiry(t *testing.T) {
	ctx := testContext(t)
	m := NewMemory(time.Minute)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLevelDB_Expiry(t *testing.T) {
	ctx := testContext(t)

	l, err := OpenLevelDB(filepath.Join(t.TempDir(), "cache.ldb"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })

	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	require.NoError(t, l.Set(ctx, "rdns", []byte("one.one.one.one"), time.Hour))

	now = now.Add(59 * time.Minute)
	got, ok, err := l.Get(ctx, "rdns")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "one.one.one.one", string(got))

	now = now.Add(2 * time.Minute)
	_, ok, err = l.Get(ctx, "rdns")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBackendOrder(t *testing.T) {
	tests := []struct {
		adapter string
		want    []string
		wantErr bool
	}{
		{"", []string{BackendRedis, BackendMemcached, BackendMemory}, false},
		{"auto", []string{BackendRedis, BackendMemcached, BackendMemory}, false},
		{"RedisCache", []string{BackendRedis}, false},
		{"ram", []string{BackendMemory}, false},
		{"mcache", []string{BackendMemcached}, false},
		{"sqlite3", []string{BackendLevelDB}, false},
		{"gcache", []string{BackendLRU}, false},
		{"mongodb", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.adapter, func(t *testing.T) {
			got, err := BackendOrder(tt.adapter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect(t *testing.T) {
	ctx := testContext(t)
	broken := &errorStore{}

	cands := []Candidate{{
		Name: "broken",
		New:  func(context.Context) (Store, error) { return broken, nil },
	}, {
		Name: "unconstructible",
		New:  func(context.Context) (Store, error) { return nil, errors.New("no such file") },
	}, {
		Name: BackendMemory,
		New:  func(context.Context) (Store, error) { return NewMemory(time.Minute), nil },
	}}

	s, err := Select(ctx, cands, testLogger())
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, s.Name())
	assert.True(t, broken.closed.Load())
}

func TestSelect_NoneWork(t *testing.T) {
	ctx := testContext(t)

	_, err := Select(ctx, []Candidate{{
		Name: "broken",
		New:  func(context.Context) (Store, error) { return &errorStore{}, nil },
	}}, testLogger())
	assert.ErrorContains(t, err, "no usable cache backend")
}

func TestCandidates(t *testing.T) {
	cands, err := Candidates(Config{Adapter: "memory"})
	require.NoError(t, err)
	require.Len(t, cands, 1)

	s, err := cands[0].New(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, s.Name())
}

func TestLazy(t *testing.T) {
	ctx := testContext(t)

	var inits atomic.Int32
	l := NewLazy(func(context.Context) (Store, error) {
		inits.Add(1)
		return NewMemory(time.Minute), nil
	})
	assert.Equal(t, "uninitialized", l.Name())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Set(ctx, "k", []byte("v"), time.Minute)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), inits.Load())
	assert.Equal(t, BackendMemory, l.Name())

	active, ok := l.Active()
	require.True(t, ok)
	assert.Equal(t, BackendMemory, active.Name())
}

func TestLazy_RetriesFailedInit(t *testing.T) {
	ctx := testContext(t)

	var inits atomic.Int32
	fail := true
	l := NewLazy(func(context.Context) (Store, error) {
		inits.Add(1)
		if fail {
			return nil, errors.New("not yet")
		}
		return NewMemory(time.Minute), nil
	})

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	_, _, err := l.Get(ctx, "k")
	require.Error(t, err)

	// Calls within the retry delay reuse the failure.
	fail = false
	_, _, err = l.Get(ctx, "k")
	require.Error(t, err)
	assert.ErrorContains(t, err, "not yet")
	require.Error(t, l.Set(ctx, "k", []byte("v"), time.Minute))
	assert.Equal(t, int32(1), inits.Load())

	now = now.Add(initRetryDelay)
	_, ok, err := l.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(2), inits.Load())
}
