// Package dependency maintains master/dependent links between records and
// deletes a master together with everything hanging off it.
package dependency

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/reconcile/internal/ir"
)

// Store is the subset of the record store the manager needs.
type Store interface {
	SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error
	Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error)
	DeleteDependents(ctx context.Context, masterID int64) error
	Delete(ctx context.Context, id int64) error
}

// Manager saves dependency edges and runs cascade deletes.
type Manager struct {
	store    Store
	logger   *slog.Logger
	onDelete func(id int64)
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithOnDelete registers fn to run after each record is deleted.
func WithOnDelete(fn func(id int64)) Option {
	return func(m *Manager) { m.onDelete = fn }
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SaveDependents links masterID to each dependent.
func (m *Manager) SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error {
	for _, e := range edges {
		if e.DependentID == masterID {
			return fmt.Errorf("save dependents of %d: record cannot depend on itself", masterID)
		}
	}
	return m.store.SaveDependents(ctx, masterID, edges)
}

// DeleteCascade deletes every dependent of masterID, recursing into JOB
// dependents, then the master's edges and record.
//
// The cascade is not transactional. It stops at the first failure and
// returns the ids it had already deleted; those stay deleted and the
// remaining dependents are left for a retried cascade.
func (m *Manager) DeleteCascade(ctx context.Context, masterID int64) ([]int64, error) {
	var deleted []int64
	visited := make(map[int64]bool)
	err := m.cascade(ctx, masterID, visited, &deleted)
	if err != nil {
		m.logger.Error("cascade delete incomplete",
			"master_id", masterID,
			"deleted", len(deleted),
			"error", err)
		return deleted, err
	}
	m.logger.Info("cascade delete finished", "master_id", masterID, "deleted", len(deleted))
	return deleted, nil
}

func (m *Manager) cascade(ctx context.Context, id int64, visited map[int64]bool, deleted *[]int64) error {
	if visited[id] {
		return nil
	}
	visited[id] = true

	edges, err := m.store.Dependents(ctx, id)
	if err != nil {
		return err
	}
	for _, e := range edges {
		switch e.DependentType {
		case ir.DependentJob:
			if err := m.cascade(ctx, e.DependentID, visited, deleted); err != nil {
				return err
			}
		case ir.DependentTrans:
			if visited[e.DependentID] {
				continue
			}
			visited[e.DependentID] = true
			// A TRANS dependent's own edges are dropped, not followed.
			if err := m.store.DeleteDependents(ctx, e.DependentID); err != nil {
				return err
			}
			if err := m.deleteRecord(ctx, e.DependentID, deleted); err != nil {
				return err
			}
		default:
			return fmt.Errorf("dependent %d of %d: unknown type %q", e.DependentID, id, e.DependentType)
		}
	}

	if err := m.store.DeleteDependents(ctx, id); err != nil {
		return err
	}
	return m.deleteRecord(ctx, id, deleted)
}

func (m *Manager) deleteRecord(ctx context.Context, id int64, deleted *[]int64) error {
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	*deleted = append(*deleted, id)
	if m.onDelete != nil {
		m.onDelete(id)
	}
	return nil
}
