package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/reconcile/internal/ir"
)

func appendHistory(ctx context.Context, q querier, rec ir.TransferRecord, at int64) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO history_record (id, name, run_id, status, hostname, error_message, create_time)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Name, rec.RunID, string(rec.Status), rec.Hostname, rec.ErrorMessage, at)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// History returns the terminal-transition snapshots of a record in the
// order they were taken. Entries outlive the record itself.
func (s *Store) History(ctx context.Context, id int64) ([]ir.HistoryEntry, error) {
	entries := []ir.HistoryEntry{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT seq, id, name, run_id, status, hostname, error_message, create_time
			FROM history_record
			WHERE id = ?
			ORDER BY seq ASC
		`, id)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var (
				e      ir.HistoryEntry
				status string
				at     int64
			)
			if err := rows.Scan(&e.Seq, &e.ID, &e.Name, &e.RunID, &status, &e.Hostname, &e.ErrorMessage, &at); err != nil {
				return err
			}
			e.Status = ir.Status(status)
			e.Timestamp = time.UnixMilli(at)
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("read history %d: %w", id, err)
	}
	return entries, nil
}
