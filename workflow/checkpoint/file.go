package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BaSui01/agentgraph/workflow"
	"go.uber.org/zap"
)

const checkpointExt = ".json"

// FileStore writes one JSON document per run under a base directory.
// Writes go to a temp file that is renamed into place, so a reader never
// sees a partial checkpoint.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	logger  *zap.Logger
}

// NewFileStore creates baseDir if needed.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("%w: empty base directory", ErrInvalidInput)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint directory: %w", err)
	}
	return &FileStore{
		baseDir: baseDir,
		logger:  logger.With(zap.String("component", "checkpoint_file"), zap.String("dir", baseDir)),
	}, nil
}

func (s *FileStore) path(runID string) string {
	return filepath.Join(s.baseDir, runID+checkpointExt)
}

func (s *FileStore) Save(ctx context.Context, state *workflow.RunState) error {
	if err := validateState(state); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(state)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.baseDir, "."+state.RunID+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, s.path(state.RunID)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint saved", zap.String("run_id", state.RunID), zap.String("status", string(state.Status)))
	return nil
}

func (s *FileStore) Load(ctx context.Context, runID string) (*workflow.RunState, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(runID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("read checkpoint %s: %w", runID, err)
	}
	return decode(data)
}

func (s *FileStore) List(ctx context.Context, graph string, limit int) ([]*workflow.RunState, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var out []*workflow.RunState
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, checkpointExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, name))
		if err != nil {
			// 并发删除
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("read checkpoint %s: %w", name, err)
		}
		state, err := decode(data)
		if err != nil {
			s.logger.Warn("skipping unreadable checkpoint", zap.String("file", name), zap.Error(err))
			continue
		}
		if graph == "" || state.Graph == graph {
			out = append(out, state)
		}
	}
	return sortNewest(out, limit), nil
}

func (s *FileStore) Delete(ctx context.Context, runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path(runID)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return fmt.Errorf("delete checkpoint %s: %w", runID, err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
