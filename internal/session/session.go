// Package session keeps each browser's dashboard state: the filter it last
// rendered, the revision of that figure, and the current plot selection. The
// dataset itself is shared; only this state is per user.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/internal/explorer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/errors"
	pkgredis "github.com/Adithya-Monish-Kumar-K/Sentiment-Explorer/pkg/redis"
)

// State is what one session remembers between interactions. A nil Selection
// means nothing has been selected since the figure was rendered.
type State struct {
	Filter    explorer.FilterState `json:"filter"`
	Revision  string               `json:"revision"`
	Selection []int                `json:"selection"`
	UpdatedAt time.Time            `json:"updated_at"`
}

// Store persists session state by id. Get and Update return an error
// matching apperrors.ErrSessionNotFound for unknown or expired ids.
//
// Update is an atomic read-modify-write: fn sees the latest stored state and
// its changes are saved only if no other writer got in between. When fn
// returns an error nothing is written and that error is returned.
type Store interface {
	Get(ctx context.Context, id string) (*State, error)
	Put(ctx context.Context, id string, st *State) error
	Update(ctx context.Context, id string, fn func(st *State) error) (*State, error)
	Delete(ctx context.Context, id string) error
}

type memoryEntry struct {
	state     State
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory with a sliding TTL.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, id string) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrSessionNotFound)
	}
	if m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, fmt.Errorf("session %s expired: %w", id, apperrors.ErrSessionNotFound)
	}
	st := e.state
	st.Selection = cloneInts(e.state.Selection)
	return &st, nil
}

func (m *MemoryStore) Update(_ context.Context, id string, fn func(st *State) error) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok || m.now().After(e.expiresAt) {
		delete(m.entries, id)
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrSessionNotFound)
	}
	st := e.state
	st.Selection = cloneInts(e.state.Selection)
	if err := fn(&st); err != nil {
		return nil, err
	}
	saved := st
	saved.Selection = cloneInts(st.Selection)
	m.entries[id] = memoryEntry{state: saved, expiresAt: m.now().Add(m.ttl)}
	return &st, nil
}

func (m *MemoryStore) Put(_ context.Context, id string, st *State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	saved := *st
	saved.Selection = cloneInts(st.Selection)
	m.entries[id] = memoryEntry{state: saved, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, id)
			removed++
		}
	}
	return removed
}

// Len is the number of stored sessions, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// StartJanitor sweeps expired sessions every interval until ctx ends.
func (m *MemoryStore) StartJanitor(ctx context.Context, interval time.Duration) {
	logger := slog.Default().With("component", "session-janitor")
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					logger.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	return out
}

// KV is the subset of the Redis client the Redis store needs.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Update(ctx context.Context, key string, ttl time.Duration, fn func(current string) (string, error)) error
}

const redisKeyPrefix = "session:"

// RedisStore keeps sessions in Redis so several server processes can share
// them.
type RedisStore struct {
	kv  KV
	ttl time.Duration
}

func NewRedisStore(kv KV, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, id string) (*State, error) {
	data, err := s.kv.Get(ctx, redisKeyPrefix+id)
	if err != nil {
		if pkgredis.IsNilError(err) {
			return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	var st State
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &st, nil
}

func (s *RedisStore) Put(ctx context.Context, id string, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding session %s: %w", id, err)
	}
	if err := s.kv.Set(ctx, redisKeyPrefix+id, data, s.ttl); err != nil {
		return fmt.Errorf("saving session %s: %w", id, err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, id string, fn func(st *State) error) (*State, error) {
	var updated State
	err := s.kv.Update(ctx, redisKeyPrefix+id, s.ttl, func(current string) (string, error) {
		var st State
		if err := json.Unmarshal([]byte(current), &st); err != nil {
			return "", fmt.Errorf("decoding session %s: %w", id, err)
		}
		if err := fn(&st); err != nil {
			return "", err
		}
		data, err := json.Marshal(&st)
		if err != nil {
			return "", fmt.Errorf("encoding session %s: %w", id, err)
		}
		updated = st
		return string(data), nil
	})
	switch {
	case err == nil:
		return &updated, nil
	case pkgredis.IsNilError(err):
		return nil, fmt.Errorf("session %s: %w", id, apperrors.ErrSessionNotFound)
	case errors.Is(err, pkgredis.ErrConflict):
		return nil, fmt.Errorf("session %s changed concurrently: %w", id, apperrors.ErrStaleSelection)
	default:
		return nil, err
	}
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Del(ctx, redisKeyPrefix+id); err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// Cookies issues and reads the session id cookie.
type Cookies struct {
	Name   string
	MaxAge time.Duration
}

// ID returns the request's session id, issuing a new one on the response
// when the request has none.
func (c Cookies) ID(w http.ResponseWriter, r *http.Request) string {
	if cookie, err := r.Cookie(c.Name); err == nil {
		if _, err := uuid.Parse(cookie.Value); err == nil {
			return cookie.Value
		}
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(c.MaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}
