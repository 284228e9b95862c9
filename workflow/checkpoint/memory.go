package checkpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/BaSui01/agentgraph/workflow"
)

// MemoryStore keeps checkpoints in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]*workflow.RunState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]*workflow.RunState)}
}

func (s *MemoryStore) Save(ctx context.Context, state *workflow.RunState) error {
	if err := validateState(state); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state.RunID] = state.Clone()
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, runID string) (*workflow.RunState, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[runID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return state.Clone(), nil
}

func (s *MemoryStore) List(ctx context.Context, graph string, limit int) ([]*workflow.RunState, error) {
	s.mu.RLock()
	out := make([]*workflow.RunState, 0, len(s.states))
	for _, state := range s.states {
		if graph == "" || state.Graph == graph {
			out = append(out, state.Clone())
		}
	}
	s.mu.RUnlock()
	return sortNewest(out, limit), nil
}

func (s *MemoryStore) Delete(ctx context.Context, runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.states[runID]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	delete(s.states, runID)
	return nil
}

func (s *MemoryStore) Close() error { return nil }
