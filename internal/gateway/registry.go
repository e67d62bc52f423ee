package gateway

import (
	"container/list"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
)

// Factory builds the controller for a new session.
type Factory func(key types.SessionKey, id types.SessionID) *session.Controller

// Registry maps session keys to live controllers. When MaxSessions is set,
// the least recently used idle session is dropped to make room.
type Registry struct {
	factory Factory
	max     int
	now     func() time.Time

	mu    sync.Mutex
	byKey map[types.SessionKey]*list.Element
	byID  map[types.SessionID]*list.Element
	lru   *list.List // front is most recently used
}

type entry struct {
	key        types.SessionKey
	ctrl       *session.Controller
	createdAt  time.Time
	lastActive time.Time
}

// NewRegistry creates an empty registry. maxSessions <= 0 disables eviction.
func NewRegistry(factory Factory, maxSessions int) *Registry {
	return &Registry{
		factory: factory,
		max:     maxSessions,
		now:     time.Now,
		byKey:   make(map[types.SessionKey]*list.Element),
		byID:    make(map[types.SessionID]*list.Element),
		lru:     list.New(),
	}
}

// ResolveOrCreate returns the controller for key, creating it on first use.
// created reports whether a new session was made.
func (r *Registry) ResolveOrCreate(key types.SessionKey) (ctrl *session.Controller, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if el, ok := r.byKey[key]; ok {
		r.touch(el)
		return el.Value.(*entry).ctrl, false
	}

	r.evict()

	ctrl = r.factory(key, types.NewSessionID())
	now := r.now()
	el := r.lru.PushFront(&entry{key: key, ctrl: ctrl, createdAt: now, lastActive: now})
	r.byKey[key] = el
	r.byID[ctrl.ID()] = el
	slog.Debug("session created", "session_id", string(ctrl.ID()), "source", key.Source())
	return ctrl, true
}

// Get returns the controller with the given ID.
func (r *Registry) Get(id types.SessionID) (*session.Controller, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	el, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	r.touch(el)
	return el.Value.(*entry).ctrl, true
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

// List returns a summary of every live session, most recently active first.
func (r *Registry) List() []types.SessionInfo {
	r.mu.Lock()
	entries := make([]entry, 0, r.lru.Len())
	for el := r.lru.Front(); el != nil; el = el.Next() {
		entries = append(entries, *el.Value.(*entry))
	}
	r.mu.Unlock()

	out := make([]types.SessionInfo, len(entries))
	for i, e := range entries {
		snap := e.ctrl.Snapshot()
		out[i] = types.SessionInfo{
			SessionID:     e.ctrl.ID(),
			SessionKey:    e.key,
			DatasetLoaded: snap.DatasetLoaded,
			Busy:          snap.Busy,
			Messages:      len(snap.Timeline),
			CreatedAt:     e.createdAt,
			LastActive:    e.lastActive,
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActive.After(out[j].LastActive)
	})
	return out
}

// touch marks el as most recently used. Caller must hold r.mu.
func (r *Registry) touch(el *list.Element) {
	el.Value.(*entry).lastActive = r.now()
	r.lru.MoveToFront(el)
}

// evict drops least recently used idle sessions until there is room for one
// more. Busy sessions are skipped; if every session is busy the cap is
// exceeded rather than interrupting work. Caller must hold r.mu.
func (r *Registry) evict() {
	if r.max <= 0 {
		return
	}
	for el := r.lru.Back(); el != nil && r.lru.Len() >= r.max; {
		prev := el.Prev()
		e := el.Value.(*entry)
		if !e.ctrl.Snapshot().Busy {
			r.lru.Remove(el)
			delete(r.byKey, e.key)
			delete(r.byID, e.ctrl.ID())
			slog.Info("session evicted", "session_id", string(e.ctrl.ID()), "source", e.key.Source(), "session_key", string(e.key))
		}
		el = prev
	}
}
