package testing

import (
	"sync"

	"github.com/eos/eos-sub010/internal/modules/sampling"
)

type chainKey struct {
	phase sampling.Phase
	chain int
}

// MockStore is an in-memory implementation of sampling.Store for testing
type MockStore struct {
	mu        sync.RWMutex
	chunks    map[chainKey][][]sampling.State
	modes     map[chainKey]sampling.State
	proposals map[chainKey][]sampling.ProposalState
	err       error
}

// NewMockStore creates a new mock store
func NewMockStore() *MockStore {
	return &MockStore{
		chunks:    make(map[chainKey][][]sampling.State),
		modes:     make(map[chainKey]sampling.State),
		proposals: make(map[chainKey][]sampling.ProposalState),
	}
}

// SetError sets the error to return
func (m *MockStore) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// AppendChunk records a copy of states
func (m *MockStore) AppendChunk(phase sampling.Phase, chain int, states []sampling.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	chunk := make([]sampling.State, len(states))
	for i, s := range states {
		chunk[i] = s.Clone()
	}
	k := chainKey{phase, chain}
	m.chunks[k] = append(m.chunks[k], chunk)
	return nil
}

// SaveMode records the latest mode
func (m *MockStore) SaveMode(phase sampling.Phase, chain int, mode sampling.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.modes[chainKey{phase, chain}] = mode.Clone()
	return nil
}

// SaveProposal records a proposal state
func (m *MockStore) SaveProposal(phase sampling.Phase, chain int, state sampling.ProposalState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	k := chainKey{phase, chain}
	m.proposals[k] = append(m.proposals[k], state)
	return nil
}

// Chunks returns the stored chunks of one chain
func (m *MockStore) Chunks(phase sampling.Phase, chain int) [][]sampling.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.chunks[chainKey{phase, chain}]
}

// Mode returns the stored mode of one chain
func (m *MockStore) Mode(phase sampling.Phase, chain int) (sampling.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.modes[chainKey{phase, chain}]
	return s, ok
}

// Proposals returns the stored proposal states of one chain
func (m *MockStore) Proposals(phase sampling.Phase, chain int) []sampling.ProposalState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.proposals[chainKey{phase, chain}]
}
