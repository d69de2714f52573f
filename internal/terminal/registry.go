package terminal

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/term-broker/termbroker/internal/broker"
)

var uuidShaped = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ValidateName applies spec.md §4.C's naming rules: non-empty, and not
// shaped like a UUID (UUIDs are reserved for ids, never names, so a
// lookup by either key is unambiguous).
func ValidateName(name string) error {
	if name == "" {
		return broker.New(broker.KindNameInvalid, "name must not be empty")
	}
	if uuidShaped.MatchString(name) {
		return broker.New(broker.KindNameInvalid, "name must not look like a uuid")
	}
	return nil
}

// Registry is the process-wide named-session directory. Grounded on
// session_manager.go's SessionManager singleton: a map guarded by a
// mutex, a background cleanup loop, GetOrCreate semantics.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]*Session
	byID     map[string]*Session
	bufSize  int
	coalesce bool
	idleTTL  time.Duration

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewRegistry builds a registry. idleTTL of 0 disables idle reaping.
func NewRegistry(bufSize int, coalesceSpinners bool, idleTTL time.Duration) *Registry {
	r := &Registry{
		byName:   make(map[string]*Session),
		byID:     make(map[string]*Session),
		bufSize:  bufSize,
		coalesce: coalesceSpinners,
		idleTTL:  idleTTL,
		stopCh:   make(chan struct{}),
	}
	r.wg.Add(1)
	go r.reapLoop()
	return r
}

// Create spawns a new named session. Returns KindNameInvalid if the
// name fails validation or is already in use by an active session.
func (r *Registry) Create(name, shell, cwd string, env map[string]string, cols, rows uint16) (*Session, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if existing, ok := r.byName[name]; ok && existing.IsActive() {
		r.mu.Unlock()
		return nil, broker.New(broker.KindNameInvalid, fmt.Sprintf("session %q already exists", name))
	}
	r.mu.Unlock()

	id := uuid.NewString()
	s, err := newSession(name, id, shell, cwd, env, cols, rows, r.bufSize, r.coalesce)
	if err != nil {
		return nil, broker.Wrap(broker.KindInternalError, "spawn session", err)
	}

	r.mu.Lock()
	r.byName[name] = s
	r.byID[id] = s
	r.mu.Unlock()
	return s, nil
}

// Resolve looks a session up by name first, then by id, per spec.md
// §4.C's dual-key lookup.
func (r *Registry) Resolve(key string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[key]; ok {
		return s, nil
	}
	if s, ok := r.byID[key]; ok {
		return s, nil
	}
	return nil, broker.New(broker.KindNotFound, fmt.Sprintf("no session named or identified by %q", key))
}

// GetOrCreate resolves an existing session by name, or creates one if
// none exists, per spec.md §4.F's interact auto-creation rule.
func (r *Registry) GetOrCreate(name, shell, cwd string, env map[string]string, cols, rows uint16) (*Session, bool, error) {
	if s, err := r.Resolve(name); err == nil && s.IsActive() {
		return s, false, nil
	}
	s, err := r.Create(name, shell, cwd, env, cols, rows)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// List returns a snapshot of every session currently tracked,
// including terminated ones not yet reaped.
func (r *Registry) List() []SessionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionInfo, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s.Snapshot())
	}
	return out
}

// Kill terminates the named/identified session and drops it from the
// registry.
func (r *Registry) Kill(key string) error {
	s, err := r.Resolve(key)
	if err != nil {
		return err
	}
	if err := s.Kill(); err != nil {
		return broker.Wrap(broker.KindInternalError, "kill session", err)
	}
	r.mu.Lock()
	delete(r.byName, s.Name)
	delete(r.byID, s.ID)
	r.mu.Unlock()
	return nil
}

// KillAll terminates every active session, returning the count killed.
func (r *Registry) KillAll() int {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.byName))
	for _, s := range r.byName {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	count := 0
	for _, s := range sessions {
		if s.IsActive() {
			_ = s.Kill()
			count++
		}
		r.mu.Lock()
		delete(r.byName, s.Name)
		delete(r.byID, s.ID)
		r.mu.Unlock()
	}
	return count
}

// Stats reports aggregate registry counts for the agent stats resource
// and the REST health endpoint.
type Stats struct {
	Total      int
	Active     int
	Terminated int
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{Total: len(r.byName)}
	for _, s := range r.byName {
		if s.IsActive() {
			st.Active++
		} else {
			st.Terminated++
		}
	}
	return st
}

// reapLoop drops terminated sessions and idle-timed-out sessions every
// tick. Grounded on SessionManager.cleanupLoop's fixed-interval sweep;
// must never keep a process alive just to observe it.
func (r *Registry) reapLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.reapOnce()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) reapOnce() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, s := range r.byName {
		if !s.IsActive() {
			delete(r.byName, name)
			delete(r.byID, s.ID)
			continue
		}
		if r.idleTTL > 0 && s.IdleSince() > r.idleTTL {
			_ = s.Kill()
			delete(r.byName, name)
			delete(r.byID, s.ID)
		}
	}
}

// Shutdown stops the reaper and kills every active session, per
// spec.md §6's graceful-shutdown sequence.
func (r *Registry) Shutdown() {
	close(r.stopCh)
	r.wg.Wait()
	r.KillAll()
}
