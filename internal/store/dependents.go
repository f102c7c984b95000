package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/reconcile/internal/ir"
)

// SaveDependents records edges from masterID to each dependent. Saving an
// edge that already exists is a no-op. The master id on each edge is
// overwritten with masterID.
func (s *Store) SaveDependents(ctx context.Context, masterID int64, edges []ir.DependencyEdge) error {
	for _, e := range edges {
		if !e.DependentType.Valid() {
			return fmt.Errorf("save dependents of %d: %w: unknown dependent type %q", masterID, ErrInvalidRecord, e.DependentType)
		}
	}

	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, e := range edges {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO dependent_record (master_id, dependent_id, dependent_type, create_time)
				VALUES (?, ?, ?, ?)
				ON CONFLICT DO NOTHING
			`, masterID, e.DependentID, string(e.DependentType), now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save dependents of %d: %w", masterID, err)
	}
	return nil
}

// Dependents returns the edges leaving masterID in the order they were saved.
func (s *Store) Dependents(ctx context.Context, masterID int64) ([]ir.DependencyEdge, error) {
	edges := []ir.DependencyEdge{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT master_id, dependent_id, dependent_type, create_time
			FROM dependent_record
			WHERE master_id = ?
			ORDER BY create_time ASC, dependent_id ASC
		`, masterID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e   ir.DependencyEdge
				typ string
				at  int64
			)
			if err := rows.Scan(&e.MasterID, &e.DependentID, &typ, &at); err != nil {
				return err
			}
			e.DependentType = ir.DependentType(typ)
			e.CreateTime = time.UnixMilli(at)
			edges = append(edges, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read dependents of %d: %w", masterID, err)
	}
	return edges, nil
}

// DeleteDependents removes every edge leaving masterID.
func (s *Store) DeleteDependents(ctx context.Context, masterID int64) error {
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM dependent_record WHERE master_id = ?`, masterID)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete dependents of %d: %w", masterID, err)
	}
	return nil
}
