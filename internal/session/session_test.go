package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/redis"
)

func sampleState() *State {
	return &State{
		Filter: explorer.FilterState{
			Month:        "Feb",
			Sentiment:    explorer.Range{Low: -1, High: 1},
			Subjectivity: explorer.Range{Low: 0, High: 1},
		},
		Revision:  "rev-1",
		Selection: []int{2, 0},
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	st := sampleState()
	require.NoError(t, s.Put(ctx, "a", st))
	st.Selection[0] = 99 // stored copy is independent

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "rev-1", got.Revision)
	assert.Equal(t, []int{2, 0}, got.Selection)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
}

func TestMemoryStoreUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)

	_, err := s.Update(ctx, "missing", func(*State) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, "a", sampleState()))
	got, err := s.Update(ctx, "a", func(st *State) error {
		st.Selection = []int{7}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{7}, got.Selection)

	// A failing update leaves the stored state alone.
	_, err = s.Update(ctx, "a", func(st *State) error {
		st.Selection = []int{1, 2, 3}
		return apperrors.ErrStaleSelection
	})
	assert.ErrorIs(t, err, apperrors.ErrStaleSelection)
	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []int{7}, stored.Selection)
}

func TestMemoryStoreKeepsNilSelection(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	st := sampleState()
	st.Selection = nil
	require.NoError(t, s.Put(ctx, "a", st))

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.Selection)
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore(time.Minute)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Put(ctx, "a", sampleState()))
	require.NoError(t, s.Put(ctx, "b", sampleState()))
	now = now.Add(2 * time.Minute)

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(time.Hour)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Put(ctx, "shared", sampleState())
			_, _ = s.Get(ctx, "shared")
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.Len())
}

type fakeKV struct {
	data     map[string]string
	conflict bool
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	v, ok := f.data[key]
	if !ok {
		return "", pkgredis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.data[key] = string(value.([]byte))
	return nil
}

func (f *fakeKV) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeKV) Update(_ context.Context, key string, _ time.Duration, fn func(string) (string, error)) error {
	v, ok := f.data[key]
	if !ok {
		return pkgredis.Nil
	}
	if f.conflict {
		return pkgredis.ErrConflict
	}
	next, err := fn(v)
	if err != nil {
		return err
	}
	f.data[key] = next
	return nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{data: map[string]string{}}
	s := NewRedisStore(kv, time.Hour)

	_, err := s.Get(ctx, "a")
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, "a", sampleState()))
	assert.Contains(t, kv.data, "session:a")

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, sampleState().Filter, got.Filter)
	assert.Equal(t, []int{2, 0}, got.Selection)

	empty := sampleState()
	empty.Selection = nil
	require.NoError(t, s.Put(ctx, "b", empty))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.Nil(t, got.Selection)

	require.NoError(t, s.Delete(ctx, "a"))
	assert.NotContains(t, kv.data, "session:a")
}

func TestRedisStoreUpdate(t *testing.T) {
	ctx := context.Background()
	kv := &fakeKV{data: map[string]string{}}
	s := NewRedisStore(kv, time.Hour)

	_, err := s.Update(ctx, "a", func(*State) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrSessionNotFound)

	require.NoError(t, s.Put(ctx, "a", sampleState()))
	got, err := s.Update(ctx, "a", func(st *State) error {
		st.Selection = nil
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, got.Selection)
	stored, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, stored.Selection)
	assert.Equal(t, "Feb", stored.Filter.Month)

	kv.conflict = true
	_, err = s.Update(ctx, "a", func(*State) error { return nil })
	assert.ErrorIs(t, err, apperrors.ErrStaleSelection)
}

func TestCookiesIssueAndReuse(t *testing.T) {
	c := Cookies{Name: "sid", MaxAge: time.Hour}

	rec := httptest.NewRecorder()
	id := c.ID(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, id)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, id, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: id})
	rec = httptest.NewRecorder()
	assert.Equal(t, id, c.ID(rec, req))
	assert.Empty(t, rec.Result().Cookies())

	// forged ids are replaced
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "../../etc"})
	rec = httptest.NewRecorder()
	assert.NotEqual(t, "../../etc", c.ID(rec, req))
}
