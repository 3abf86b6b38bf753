package fasting

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore owns one owner's current-session pointer and history.
// All transitions are serialized by mu; the store is the only writer of current.
type SessionStore struct {
	mu      sync.Mutex
	owner   string
	current *entities.FastingSession
	history []*entities.FastingSession

	// saveMu orders snapshot writes so an older snapshot never overwrites a newer one.
	saveMu sync.Mutex
}

// NewSessionStore rebuilds a store from a persisted list of sessions. The
// most recently started active session becomes current.
func NewSessionStore(owner string, sessions []entities.FastingSession) *SessionStore {
	s := &SessionStore{owner: owner}
	for i := range sessions {
		sess := clone(&sessions[i])
		if sess.IsActive() && (s.current == nil || sess.StartAt.After(s.current.StartAt)) {
			if s.current != nil {
				s.history = append(s.history, s.current)
			}
			s.current = sess
			continue
		}
		s.history = append(s.history, sess)
	}
	return s
}

func (s *SessionStore) Owner() string {
	return s.owner
}

// Current returns a copy of the active session, or nil while idle.
func (s *SessionStore) Current() *entities.FastingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return clone(s.current)
}

func (s *SessionStore) State() domain.FastingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return domain.StatusIdle
	}
	return s.current.Status
}

// History returns archived sessions, most recent start first.
func (s *SessionStore) History() []entities.FastingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entities.FastingSession, 0, len(s.history))
	for _, h := range s.history {
		out = append(out, *clone(h))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartAt.After(out[j].StartAt)
	})
	return out
}

// Sessions returns every session the store holds, current first.
func (s *SessionStore) Sessions() []entities.FastingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionsLocked()
}

// Persist hands a consistent snapshot to save. Calls are serialized and the
// snapshot is taken after the previous save returned.
func (s *SessionStore) Persist(save func([]entities.FastingSession) error) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return save(s.Sessions())
}

// Drain empties the store and returns every session it held.
func (s *SessionStore) Drain() []entities.FastingSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.sessionsLocked()
	s.current = nil
	s.history = nil
	return out
}

// Absorb merges sessions moved over from another owner and returns how many
// were added. Sessions already held are skipped. When both sides carry an
// active session the most recently started one stays current and the other
// is closed by Supersede.
func (s *SessionStore) Absorb(sessions []entities.FastingSession) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	held := make(map[uuid.UUID]bool, len(s.history)+1)
	if s.current != nil {
		held[s.current.ID] = true
	}
	for _, h := range s.history {
		held[h.ID] = true
	}

	added := 0
	for i := range sessions {
		in := clone(&sessions[i])
		if held[in.ID] {
			continue
		}
		held[in.ID] = true
		added++

		if !in.IsActive() {
			s.history = append(s.history, in)
			continue
		}
		if s.current == nil {
			s.current = in
			continue
		}
		winner, loser := s.current, in
		if in.StartAt.After(s.current.StartAt) {
			winner, loser = in, s.current
		}
		s.current = winner
		s.history = append(s.history, Supersede(loser, winner.StartAt))
	}
	return added
}

func (s *SessionStore) sessionsLocked() []entities.FastingSession {
	out := make([]entities.FastingSession, 0, len(s.history)+1)
	if s.current != nil {
		out = append(out, *clone(s.current))
	}
	for _, h := range s.history {
		out = append(out, *clone(h))
	}
	return out
}

func (s *SessionStore) Start(params StartParams, now time.Time) (*entities.FastingSession, error) {
	return s.apply(func(cur *entities.FastingSession) (*entities.FastingSession, error) {
		return Start(cur, params, now)
	})
}

func (s *SessionStore) Pause(now time.Time) (*entities.FastingSession, error) {
	return s.apply(func(cur *entities.FastingSession) (*entities.FastingSession, error) {
		return Pause(cur, now)
	})
}

func (s *SessionStore) Resume(now time.Time) (*entities.FastingSession, error) {
	return s.apply(func(cur *entities.FastingSession) (*entities.FastingSession, error) {
		return Resume(cur, now)
	})
}

func (s *SessionStore) CompleteFast(now time.Time) (*entities.FastingSession, error) {
	return s.apply(func(cur *entities.FastingSession) (*entities.FastingSession, error) {
		return CompleteFast(cur, now)
	})
}

func (s *SessionStore) EndEatingWindow(now time.Time) (*entities.FastingSession, error) {
	return s.apply(func(cur *entities.FastingSession) (*entities.FastingSession, error) {
		return EndEatingWindow(cur, now)
	})
}

// Backfill adds an archived session without touching the current pointer.
func (s *SessionStore) Backfill(params EditParams, now time.Time) (*entities.FastingSession, error) {
	sess, err := Backfill(params, now)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, sess)
	return clone(sess), nil
}

// Edit corrects any session by id. Editing the current session archives it.
func (s *SessionStore) Edit(id uuid.UUID, params EditParams, now time.Time) (*entities.FastingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil && s.current.ID == id {
		edited, err := ManualEdit(s.current, params, now)
		if err != nil {
			return nil, err
		}
		s.current = nil
		s.history = append(s.history, edited)
		return clone(edited), nil
	}
	for i, h := range s.history {
		if h.ID != id {
			continue
		}
		edited, err := ManualEdit(h, params, now)
		if err != nil {
			return nil, err
		}
		s.history[i] = edited
		return clone(edited), nil
	}
	return nil, domain.ErrSessionNotFound
}

// Recover applies AutoRecover to the current session.
func (s *SessionStore) Recover(now time.Time, policy RecoveryPolicy) (*entities.FastingSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recovered, ok := AutoRecover(s.current, now, policy)
	if !ok {
		return nil, false
	}
	s.current = nil
	s.history = append(s.history, recovered)
	return clone(recovered), true
}

func (s *SessionStore) apply(transition func(*entities.FastingSession) (*entities.FastingSession, error)) (*entities.FastingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := transition(s.current)
	if err != nil {
		return nil, err
	}
	if next.IsActive() {
		s.current = next
	} else {
		s.current = nil
		s.history = append(s.history, next)
	}
	return clone(next), nil
}

// Registry holds one SessionStore per owner. A store is created on first
// Open and dropped by Release (logout, account deletion, shutdown) or by
// EvictIdle once nobody has opened it for a while.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*SessionStore
	used   map[string]time.Time
	now    func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		stores: make(map[string]*SessionStore),
		used:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Open returns the owner's store, building it from load on first use.
// created reports whether load was called.
func (r *Registry) Open(owner string, load func() ([]entities.FastingSession, error)) (store *SessionStore, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.stores[owner]; ok {
		r.used[owner] = r.now()
		return st, false, nil
	}
	sessions, err := load()
	if err != nil {
		return nil, false, err
	}
	st := NewSessionStore(owner, sessions)
	r.stores[owner] = st
	r.used[owner] = r.now()
	return st, true, nil
}

func (r *Registry) Release(owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stores, owner)
	delete(r.used, owner)
}

// EvictIdle drops every store not opened within idle and returns their owners.
// A dropped store is rebuilt from its local snapshot on the next Open.
func (r *Registry) EvictIdle(idle time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-idle)
	var evicted []string
	for owner, last := range r.used {
		if last.After(cutoff) {
			continue
		}
		delete(r.stores, owner)
		delete(r.used, owner)
		evicted = append(evicted, owner)
	}
	sort.Strings(evicted)
	return evicted
}

func (r *Registry) Has(owner string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.stores[owner]
	return ok
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
