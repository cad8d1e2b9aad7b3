package figcache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/resilience"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]string
	fail error
	gets int
}

func newMemStore() *memStore { return &memStore{data: map[string]string{}} }

func (m *memStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.fail != nil {
		return "", m.fail
	}
	v, ok := m.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (m *memStore) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.data[key] = string(value.([]byte))
	return nil
}

func (m *memStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range m.data {
		if strings.HasPrefix(k, prefix) {
			delete(m.data, k)
			n++
		}
	}
	return n, nil
}

var testKey = Key{Revision: "abc", Format: "svg", Width: 800, Height: 600}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "figure:abc:svg:800x600", testKey.String())
}

func TestGetOrRenderCachesResult(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	ctx := context.Background()
	renders := 0
	render := func() ([]byte, error) {
		renders++
		return []byte("<svg/>"), nil
	}

	img, hit, err := c.GetOrRender(ctx, testKey, render)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "<svg/>", string(img))

	img, hit, err = c.GetOrRender(ctx, testKey, render)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "<svg/>", string(img))
	assert.Equal(t, 1, renders)

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestGetOrRenderPropagatesRenderError(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	boom := errors.New("boom")

	_, _, err := c.GetOrRender(context.Background(), testKey, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
}

func TestGetOrRenderSurvivesStoreFailure(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	c := New(store, time.Minute, nil)

	img, hit, err := c.GetOrRender(context.Background(), testKey, func() ([]byte, error) { return []byte("x"), nil })
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "x", string(img))
}

func TestGetOrRenderCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemStore(), time.Minute, nil)
	var renders atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := c.GetOrRender(context.Background(), testKey, func() ([]byte, error) {
				renders.Add(1)
				<-release
				return []byte("img"), nil
			})
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, renders.Load(), int32(8))
	assert.GreaterOrEqual(t, renders.Load(), int32(1))
}

func TestInvalidate(t *testing.T) {
	store := newMemStore()
	store.data["figure:a:svg:1x1"] = "a"
	store.data["figure:b:png:1x1"] = "b"
	store.data["session:x"] = "s"
	c := New(store, time.Minute, nil)

	n, err := c.Invalidate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, store.data, "session:x")
}

func TestBreakerBypassesFailingStore(t *testing.T) {
	store := newMemStore()
	store.fail = errors.New("connection refused")
	breaker := resilience.NewBreaker("figure-cache", resilience.BreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
	})
	c := New(store, time.Minute, breaker)
	render := func() ([]byte, error) { return []byte("x"), nil }

	for i := 0; i < 5; i++ {
		img, hit, err := c.GetOrRender(context.Background(), testKey, render)
		require.NoError(t, err)
		assert.False(t, hit)
		assert.Equal(t, "x", string(img))
	}

	assert.Equal(t, resilience.StateOpen, breaker.State())
	// The first Get and Set failures trip it; later calls skip the store.
	assert.Equal(t, 1, store.gets)

	_, err := c.Invalidate(context.Background())
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestMissIsNotABreakerFailure(t *testing.T) {
	breaker := resilience.NewBreaker("figure-cache", resilience.BreakerConfig{FailureThreshold: 1})
	c := New(newMemStore(), time.Minute, breaker)

	_, ok := c.Get(context.Background(), testKey)
	assert.False(t, ok)
	assert.Equal(t, resilience.StateClosed, breaker.State())
}
