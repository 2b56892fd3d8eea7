package memory

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tarabaramaksym/jira-to-bulletpoints/internal/model"
)

// Data-presence keys accepted by FindSessionWithData. They mirror the JSON
// field names of model.SessionData.
const (
	DataKeyCSV       = "csvData"
	DataKeyProcessed = "processedData"
	DataKeyFinal     = "finalData"
)

type fallbackEntry struct {
	data    *model.SessionData
	savedAt time.Time
}

// SessionRepository keeps pipeline state for anonymous sessions in two
// tiers: a TTL-expiring primary cache, and a plain fallback map that is the
// authoritative source while populated. The primary's evictions drive the
// deferred cleanup of the fallback tier, with a grace window so a client
// mid-download is not cut off the moment its session expires.
type SessionRepository struct {
	primary *cache.Cache

	mu       sync.RWMutex
	fallback map[string]fallbackEntry

	grace        time.Duration
	recoveryScan bool
	onExpired    func(*model.SessionData)
}

// NewSessionRepository builds the store. onExpired (optional) is invoked,
// after the grace delay, with the session data of an expired identity so the
// caller can release its temp files.
func NewSessionRepository(ttl, grace time.Duration, recoveryScan bool, onExpired func(*model.SessionData)) *SessionRepository {
	purgeEvery := ttl / 6
	if purgeEvery < time.Minute {
		purgeEvery = time.Minute
	}

	r := &SessionRepository{
		primary:      cache.New(ttl, purgeEvery),
		fallback:     make(map[string]fallbackEntry),
		grace:        grace,
		recoveryScan: recoveryScan,
		onExpired:    onExpired,
	}
	r.primary.OnEvicted(func(sessionID string, _ interface{}) {
		r.scheduleExpiry(sessionID)
	})
	return r
}

// Save writes the record into both tiers. It never fails the caller's flow:
// this is best-effort caching, not a transactional write.
func (r *SessionRepository) Save(session *model.SessionData) {
	if session == nil || session.ID == "" {
		return
	}

	r.mu.Lock()
	r.fallback[session.ID] = fallbackEntry{data: session, savedAt: time.Now()}
	r.mu.Unlock()

	r.primary.Set(session.ID, session, cache.DefaultExpiration)
}

// Get prefers the fallback map; the primary backend is not guaranteed to
// retain entries across its TTL, so fallback is authoritative when populated.
func (r *SessionRepository) Get(sessionID string) (*model.SessionData, bool) {
	r.mu.RLock()
	entry, ok := r.fallback[sessionID]
	r.mu.RUnlock()
	if ok {
		return entry.data, true
	}

	if x, found := r.primary.Get(sessionID); found {
		if data, ok := x.(*model.SessionData); ok {
			return data, true
		}
	}
	return nil, false
}

// FindSessionWithData scans the fallback map for the most recently written
// record that has the given optional field populated. It is a last-resort
// recovery for identity misses and assumes a single active session; the
// recoveryScan flag disables it for deployments where that does not hold.
func (r *SessionRepository) FindSessionWithData(dataKey string) (*model.SessionData, bool) {
	if !r.recoveryScan {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var best fallbackEntry
	found := false
	for _, entry := range r.fallback {
		if !hasData(entry.data, dataKey) {
			continue
		}
		if !found || entry.savedAt.After(best.savedAt) {
			best = entry
			found = true
		}
	}
	if !found {
		return nil, false
	}
	return best.data, true
}

// Destroy removes the identity from both tiers. The fallback entry goes
// first so the primary's eviction hook sees nothing left to clean up.
func (r *SessionRepository) Destroy(sessionID string) {
	r.mu.Lock()
	delete(r.fallback, sessionID)
	r.mu.Unlock()

	r.primary.Delete(sessionID)
}

// scheduleExpiry runs when the primary backend drops an identity. If the
// fallback tier still holds data after the grace delay, it is released then.
func (r *SessionRepository) scheduleExpiry(sessionID string) {
	r.mu.RLock()
	_, ok := r.fallback[sessionID]
	r.mu.RUnlock()
	if !ok {
		return
	}

	time.AfterFunc(r.grace, func() {
		r.mu.Lock()
		entry, ok := r.fallback[sessionID]
		if ok {
			delete(r.fallback, sessionID)
		}
		r.mu.Unlock()

		if ok && r.onExpired != nil {
			r.onExpired(entry.data)
		}
	})
}

func hasData(s *model.SessionData, dataKey string) bool {
	if s == nil {
		return false
	}
	switch dataKey {
	case DataKeyCSV:
		return s.CSVData != nil
	case DataKeyProcessed:
		return s.ProcessedData != nil
	case DataKeyFinal:
		return s.FinalData != nil
	default:
		return false
	}
}
