package session

import (
	"os"
	"sync"

	"github.com/adred-codev/kvnotify/internal/store"
)

// State is a session slot's position in the Idle -> Connected ->
// Draining -> Idle state machine of spec.md §4.6.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateDraining
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnected:
		return "connected"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// slot is one session's stable numeric position [0, S) together with
// its handle triple. The handle triple is guarded by mu because the
// admin-signal path (§4.7) closes handles concurrently with the worker
// that owns the session — this is the "per-slot mutex" spec.md §4.6/§4.7
// calls for.
type slot struct {
	index int

	mu           sync.Mutex
	state        State
	request      *os.File
	response     *os.File
	notification *os.File
	sink         store.SinkID
}

// open installs a freshly-opened handle triple and marks the slot
// Connected. Called only by the slot's owning worker, after all three
// pipes are open.
func (s *slot) open(req, resp, notif *os.File, sink store.SinkID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.request, s.response, s.notification = req, resp, notif
	s.sink = sink
	s.state = StateConnected
}

// closeHandles closes whichever of the three handles are currently open
// and clears them, idempotently. Called by the owning worker on normal
// session end, and by the admin-signal watcher (Manager.watchAdminSignal,
// §4.7) — hence the mutex.
func (s *slot) closeHandles() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeHandlesLocked()
}

func (s *slot) closeHandlesLocked() {
	if s.request != nil {
		s.request.Close()
		s.request = nil
	}
	if s.response != nil {
		s.response.Close()
		s.response = nil
	}
	if s.notification != nil {
		s.notification.Close()
		s.notification = nil
	}
}

func (s *slot) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = st
}

func (s *slot) currentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *slot) currentSink() (store.SinkID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sink, s.state != StateIdle
}
