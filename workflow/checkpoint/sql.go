package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentgraph/workflow"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// checkpointRecord is the row layout of graph_checkpoints. The full state is
// stored as JSON; the other columns exist for listing and inspection.
type checkpointRecord struct {
	RunID   string    `gorm:"column:run_id;primaryKey;size:64"`
	Graph   string    `gorm:"column:graph;size:128;index"`
	Status  string    `gorm:"column:status;size:32"`
	Next    string    `gorm:"column:next;size:128"`
	Steps   int       `gorm:"column:steps"`
	State   string    `gorm:"column:state;type:text"`
	Updated time.Time `gorm:"column:updated_at;index"`
}

func (checkpointRecord) TableName() string { return "graph_checkpoints" }

// SQLStore persists checkpoints through gorm.
type SQLStore struct {
	db      *gorm.DB
	closeFn func() error
}

// NewSQLStore wraps db. closeFn, if non-nil, is called by Close; pass the
// owning pool's Close to hand the connection over to the store.
func NewSQLStore(db *gorm.DB, closeFn func() error) *SQLStore {
	return &SQLStore{db: db, closeFn: closeFn}
}

// AutoMigrate creates or updates the checkpoint table.
func (s *SQLStore) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&checkpointRecord{}); err != nil {
		return fmt.Errorf("migrate checkpoint table: %w", err)
	}
	return nil
}

func (s *SQLStore) Save(ctx context.Context, state *workflow.RunState) error {
	if err := validateState(state); err != nil {
		return err
	}
	data, err := encode(state)
	if err != nil {
		return err
	}
	rec := checkpointRecord{
		RunID:   state.RunID,
		Graph:   state.Graph,
		Status:  string(state.Status),
		Next:    state.Next,
		Steps:   state.Steps,
		State:   string(data),
		Updated: state.UpdatedAt.UTC(),
	}
	err = s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", state.RunID, err)
	}
	return nil
}

func (s *SQLStore) Load(ctx context.Context, runID string) (*workflow.RunState, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}
	var rec checkpointRecord
	err := s.db.WithContext(ctx).Where("run_id = ?", runID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, fmt.Errorf("load checkpoint %s: %w", runID, err)
	}
	return decode([]byte(rec.State))
}

func (s *SQLStore) List(ctx context.Context, graph string, limit int) ([]*workflow.RunState, error) {
	q := s.db.WithContext(ctx).Model(&checkpointRecord{})
	if graph != "" {
		q = q.Where("graph = ?", graph)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []checkpointRecord
	if err := q.Order("updated_at DESC").Order("run_id ASC").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	out := make([]*workflow.RunState, 0, len(recs))
	for _, rec := range recs {
		state, err := decode([]byte(rec.State))
		if err != nil {
			return nil, fmt.Errorf("checkpoint %s: %w", rec.RunID, err)
		}
		out = append(out, state)
	}
	return sortNewest(out, 0), nil
}

func (s *SQLStore) Delete(ctx context.Context, runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Where("run_id = ?", runID).Delete(&checkpointRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete checkpoint %s: %w", runID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

func (s *SQLStore) Close() error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn()
}
