// Package checkpoint persists paused and failed runs so they can be resumed
// later, possibly by another process.
//
// Four backends share the Store contract: MemoryStore for tests and
// single-process use, FileStore (one JSON document per run), RedisStore and
// SQLStore (gorm; postgres, mysql or sqlite). NewStore picks one from
// config.CheckpointConfig.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/BaSui01/agentgraph/workflow"
)

var (
	// ErrNotFound is returned when no checkpoint exists for a run id.
	ErrNotFound = errors.New("checkpoint not found")
	// ErrInvalidInput is returned for nil states and unusable run ids.
	ErrInvalidInput = errors.New("invalid checkpoint input")
)

// Store saves and restores run states. Save overwrites any earlier
// checkpoint of the same run. States returned by Load and List are owned by
// the caller.
type Store interface {
	workflow.Checkpointer

	Load(ctx context.Context, runID string) (*workflow.RunState, error)
	// List returns checkpoints of one graph, most recently updated first.
	// An empty graph lists every run; limit <= 0 means no limit.
	List(ctx context.Context, graph string, limit int) ([]*workflow.RunState, error)
	Delete(ctx context.Context, runID string) error
	Close() error
}

func validateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidInput)
	}
	if strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("%w: run id %q", ErrInvalidInput, runID)
	}
	return nil
}

func validateState(state *workflow.RunState) error {
	if state == nil {
		return fmt.Errorf("%w: nil state", ErrInvalidInput)
	}
	return validateRunID(state.RunID)
}

func encode(state *workflow.RunState) ([]byte, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint %s: %w", state.RunID, err)
	}
	return data, nil
}

func decode(data []byte) (*workflow.RunState, error) {
	var state workflow.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, nil
}

// sortNewest orders states by UpdatedAt descending, then RunID, and applies
// limit.
func sortNewest(states []*workflow.RunState, limit int) []*workflow.RunState {
	slices.SortFunc(states, func(a, b *workflow.RunState) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RunID, b.RunID)
	})
	if limit > 0 && len(states) > limit {
		states = states[:limit]
	}
	return states
}
