package progress

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"github.com/jackzampolin/tome/internal/chunk"
)

// MemoryStore implements Store in memory for unit tests.
// Records are stored encoded, so callers never share memory with the store
// and every saved state passes the same validation as on disk.
// Error injection is supported for testing error handling paths.
type MemoryStore struct {
	mu sync.Mutex

	states  map[string][]byte
	units   map[string][]byte
	sources map[string]string

	// saves records every successfully saved state, in order.
	saves []*JobState

	// --- Error injection fields for testing ---

	// LoadErr is returned by Load when non-nil
	LoadErr error

	// SaveErr is returned by Save when non-nil
	SaveErr error

	// SaveUnitsErr is returned by SaveUnits when non-nil
	SaveUnitsErr error

	// ErrAfterNSaves causes Save to return SaveErr (or ErrInjected)
	// after N successful saves. Zero disables it.
	ErrAfterNSaves int
}

// ErrInjected is the default error returned by ErrAfterNSaves.
var ErrInjected = errors.New("injected storage failure")

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		states:  make(map[string][]byte),
		units:   make(map[string][]byte),
		sources: make(map[string]string),
	}
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, jobID string) (*JobState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	raw, ok := m.states[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return DecodeState(raw)
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, st *JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil && m.ErrAfterNSaves == 0 {
		return m.SaveErr
	}
	if m.ErrAfterNSaves > 0 && len(m.saves) >= m.ErrAfterNSaves {
		if m.SaveErr != nil {
			return m.SaveErr
		}
		return ErrInjected
	}
	data, err := EncodeState(st)
	if err != nil {
		return err
	}
	m.states[st.JobID] = data
	m.saves = append(m.saves, st.Clone())
	return nil
}

// LoadUnits implements Store.
func (m *MemoryStore) LoadUnits(_ context.Context, jobID string) ([]chunk.Unit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.units[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	return DecodeUnits(raw)
}

// SaveUnits implements Store.
func (m *MemoryStore) SaveUnits(_ context.Context, jobID string, units []chunk.Unit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveUnitsErr != nil {
		return m.SaveUnitsErr
	}
	data, err := EncodeUnits(units)
	if err != nil {
		return err
	}
	m.units[jobID] = data
	return nil
}

// SaveSource implements Store.
func (m *MemoryStore) SaveSource(_ context.Context, jobID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[jobID] = text
	return nil
}

// LoadSource implements Store.
func (m *MemoryStore) LoadSource(_ context.Context, jobID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.sources[jobID]
	if !ok {
		return "", ErrNotFound
	}
	return text, nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.states))
	for id := range m.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, hasState := m.states[jobID]
	_, hasUnits := m.units[jobID]
	if !hasState && !hasUnits {
		return ErrNotFound
	}
	delete(m.states, jobID)
	delete(m.units, jobID)
	delete(m.sources, jobID)
	return nil
}

// PutRaw stores an encoded state without validation, for corruption tests.
func (m *MemoryStore) PutRaw(jobID string, raw []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[jobID] = slices.Clone(raw)
}

// Saves returns copies of every state saved so far.
func (m *MemoryStore) Saves() []*JobState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*JobState, len(m.saves))
	for i, s := range m.saves {
		out[i] = s.Clone()
	}
	return out
}
