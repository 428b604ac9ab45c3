package ceiling

import (
	"sync"

	"github.com/dokzlo13/ceilingd/internal/state"
)

// Kind is the resource kind virtual state is stored under.
const Kind = "ceiling"

// StateStore holds the virtual state of every fixture, keyed by serial.
type StateStore interface {
	// Get returns the state and whether one was stored.
	Get(serial string) (DeviceState, bool, error)
	Put(serial string, st DeviceState) error
}

// MemoryStore keeps virtual state for the lifetime of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]DeviceState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]DeviceState)}
}

func (s *MemoryStore) Get(serial string) (DeviceState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[serial]
	return st, ok, nil
}

func (s *MemoryStore) Put(serial string, st DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[serial] = st
	return nil
}

// PersistentStore keeps virtual state in the SQLite resource store so it
// survives restarts.
type PersistentStore struct {
	typed *state.TypedStore[DeviceState]
}

// NewPersistentStore creates a store on top of the generic resource store.
func NewPersistentStore(base *state.Store) *PersistentStore {
	return &PersistentStore{typed: state.NewTypedStore[DeviceState](base, Kind)}
}

func (s *PersistentStore) Get(serial string) (DeviceState, bool, error) {
	st, version, err := s.typed.Get(serial)
	if err != nil {
		return DeviceState{}, false, err
	}
	return st, version > 0, nil
}

func (s *PersistentStore) Put(serial string, st DeviceState) error {
	return s.typed.Set(serial, st)
}

// Clear removes all stored virtual state.
func (s *PersistentStore) Clear() error {
	return s.typed.Clear()
}
