package services

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/zatekoja/brakebee-search/internal/infrastructure/observability"
)

const (
	DefaultMaxSessions = 10000
	DefaultSessionTTL  = 30 * time.Minute
)

// SessionStore keeps a bounded number of search sessions. A session expires
// after ttl without access; evicted sessions have their search cancelled.
type SessionStore struct {
	mu         sync.Mutex
	sessions   *expirable.LRU[string, *SearchSession]
	aggregator Aggregator
	metrics    *observability.Metrics
}

// NewSessionStore creates a new session store
func NewSessionStore(aggregator Aggregator, size int, ttl time.Duration, metrics *observability.Metrics) *SessionStore {
	if size <= 0 {
		size = DefaultMaxSessions
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	onEvict := func(_ string, s *SearchSession) {
		s.Cancel()
	}
	return &SessionStore{
		sessions:   expirable.NewLRU[string, *SearchSession](size, onEvict, ttl),
		aggregator: aggregator,
		metrics:    metrics,
	}
}

// GetOrCreate returns the session with the given id, creating it when it does
// not exist. An empty id creates a session with a new id.
func (st *SessionStore) GetOrCreate(id string) (*SearchSession, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	} else if s, ok := st.sessions.Get(id); ok {
		// re-adding renews the expiry
		st.sessions.Add(id, s)
		return s, false
	}

	s := NewSearchSession(id, st.aggregator, st.metrics)
	st.sessions.Add(id, s)
	return s, true
}

// Get returns an existing session and renews its expiry
func (st *SessionStore) Get(id string) (*SearchSession, bool) {
	if id == "" {
		return nil, false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions.Get(id)
	if ok {
		st.sessions.Add(id, s)
	}
	return s, ok
}

// Len returns the number of live sessions
func (st *SessionStore) Len() int {
	return st.sessions.Len()
}

// Close cancels every session's search and empties the store
func (st *SessionStore) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions.Purge()
}
