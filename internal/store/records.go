package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/roach88/reconcile/internal/ir"
)

const recordColumns = `id, name, run_id, status, hostname, error_message, cron_expression, create_time, update_time`

// querier is satisfied by *sql.Conn and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// validateRecord checks status and cron expression before a write.
func validateRecord(rec ir.TransferRecord) error {
	if !rec.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidRecord, rec.Status)
	}
	if rec.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRecord)
	}
	if rec.CronExpression != "" {
		if _, err := cron.ParseStandard(rec.CronExpression); err != nil {
			return fmt.Errorf("%w: cron expression %q: %v", ErrInvalidRecord, rec.CronExpression, err)
		}
	}
	return nil
}

// Insert stores a new record and returns it with its assigned id and
// create/update times. An empty status defaults to APPLY; any id on the
// input is ignored.
func (s *Store) Insert(ctx context.Context, rec ir.TransferRecord) (ir.TransferRecord, error) {
	if rec.Status == "" {
		rec.Status = ir.StatusApply
	}
	if err := validateRecord(rec); err != nil {
		return ir.TransferRecord{}, fmt.Errorf("insert record: %w", err)
	}

	now := s.now()
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			INSERT INTO job_record
			(name, run_id, status, hostname, error_message, cron_expression, create_time, update_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			rec.Name,
			rec.RunID,
			string(rec.Status),
			rec.Hostname,
			rec.ErrorMessage,
			nullableString(rec.CronExpression),
			now,
			now,
		)
		if err != nil {
			return err
		}
		rec.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return ir.TransferRecord{}, fmt.Errorf("insert record: %w", err)
	}

	rec.CreateTime = time.UnixMilli(now)
	rec.UpdateTime = rec.CreateTime
	return rec, nil
}

// Update overwrites the mutable fields of an existing record and sets its
// update time to now. A history entry is appended when the new status is
// terminal and differs from the stored one. Returns ErrNotFound if the
// record does not exist and ErrTerminalRecord if the stored record is
// terminal with no cron expression.
func (s *Store) Update(ctx context.Context, rec ir.TransferRecord) error {
	if err := validateRecord(rec); err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateOne(ctx, tx, rec)
	})
	if err != nil {
		return fmt.Errorf("update record %d: %w", rec.ID, err)
	}
	return nil
}

// UpdateBatch applies Update to every record in one transaction. Records
// that no longer exist or are terminal with no cron expression are
// skipped. Returns how many records were updated.
func (s *Store) UpdateBatch(ctx context.Context, recs []ir.TransferRecord) (int, error) {
	for _, rec := range recs {
		if err := validateRecord(rec); err != nil {
			return 0, fmt.Errorf("update batch: record %d: %w", rec.ID, err)
		}
	}

	updated := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, rec := range recs {
			err := s.updateOne(ctx, tx, rec)
			if errors.Is(err, ErrNotFound) || errors.Is(err, ErrTerminalRecord) {
				continue
			}
			if err != nil {
				return fmt.Errorf("record %d: %w", rec.ID, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("update batch: %w", err)
	}
	return updated, nil
}

func (s *Store) updateOne(ctx context.Context, q querier, rec ir.TransferRecord) error {
	var (
		stored     string
		storedCron sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT status, cron_expression FROM job_record WHERE id = ?`, rec.ID).
		Scan(&stored, &storedCron)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	if ir.Status(stored).Terminal() && (!storedCron.Valid || storedCron.String == "") {
		return ErrTerminalRecord
	}

	now := s.now()
	_, err = q.ExecContext(ctx, `
		UPDATE job_record
		SET name = ?, run_id = ?, status = ?, hostname = ?, error_message = ?, cron_expression = ?, update_time = ?
		WHERE id = ?
	`,
		rec.Name,
		rec.RunID,
		string(rec.Status),
		rec.Hostname,
		rec.ErrorMessage,
		nullableString(rec.CronExpression),
		now,
		rec.ID,
	)
	if err != nil {
		return fmt.Errorf("write record: %w", err)
	}

	if rec.Status.Terminal() && ir.Status(stored) != rec.Status {
		if err := appendHistory(ctx, q, rec, now); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the record with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (ir.TransferRecord, error) {
	var rec ir.TransferRecord
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM job_record WHERE id = ?`, id)
		var err error
		rec, err = scanRecord(row)
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ir.TransferRecord{}, fmt.Errorf("get record %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return ir.TransferRecord{}, fmt.Errorf("get record %d: %w", id, err)
	}
	return rec, nil
}

// GetMany returns the records among ids that exist, ordered by id.
func (s *Store) GetMany(ctx context.Context, ids []int64) ([]ir.TransferRecord, error) {
	if len(ids) == 0 {
		return []ir.TransferRecord{}, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.selectRecords(ctx, "get records",
		`SELECT `+recordColumns+` FROM job_record WHERE id IN (`+placeholders+`) ORDER BY id ASC`, args...)
}

// Delete removes a record. Deleting a missing record is not an error.
// History entries are kept.
func (s *Store) Delete(ctx context.Context, id int64) error {
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, `DELETE FROM job_record WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete record %d: %w", id, err)
	}
	return nil
}

// ActiveSet returns every record carrying a cron expression or in APPLY or
// RUNNING status, ordered by id.
func (s *Store) ActiveSet(ctx context.Context) ([]ir.TransferRecord, error) {
	return s.selectRecords(ctx, "active set", `
		SELECT `+recordColumns+` FROM job_record
		WHERE cron_expression IS NOT NULL OR status IN ('RUNNING', 'APPLY')
		ORDER BY id ASC
	`)
}

// ActiveByHostname returns the active records last reported by hostname.
func (s *Store) ActiveByHostname(ctx context.Context, hostname string) ([]ir.TransferRecord, error) {
	return s.selectRecords(ctx, "active by hostname", `
		SELECT `+recordColumns+` FROM job_record
		WHERE hostname = ? AND (cron_expression IS NOT NULL OR status IN ('RUNNING', 'APPLY'))
		ORDER BY id ASC
	`, hostname)
}

// TerminalSet returns every record with no cron expression whose status is
// FINISHED or ERROR, ordered by id.
func (s *Store) TerminalSet(ctx context.Context) ([]ir.TransferRecord, error) {
	return s.selectRecords(ctx, "terminal set", `
		SELECT `+recordColumns+` FROM job_record
		WHERE cron_expression IS NULL AND status IN ('FINISHED', 'ERROR')
		ORDER BY id ASC
	`)
}

// PurgeTerminal deletes terminal-set records last updated before the given
// time and returns how many were removed.
func (s *Store) PurgeTerminal(ctx context.Context, before time.Time) (int64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `
			DELETE FROM job_record
			WHERE cron_expression IS NULL AND status IN ('FINISHED', 'ERROR') AND update_time < ?
		`, before.UnixMilli())
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("purge terminal records: %w", err)
	}
	return n, nil
}

func (s *Store) selectRecords(ctx context.Context, op, query string, args ...any) ([]ir.TransferRecord, error) {
	records := []ir.TransferRecord{}
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			rec, err := scanRecord(rows)
			if err != nil {
				return err
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (ir.TransferRecord, error) {
	var (
		rec        ir.TransferRecord
		status     string
		cronExpr   sql.NullString
		createTime int64
		updateTime int64
	)
	err := row.Scan(&rec.ID, &rec.Name, &rec.RunID, &status, &rec.Hostname, &rec.ErrorMessage, &cronExpr, &createTime, &updateTime)
	if err != nil {
		return ir.TransferRecord{}, err
	}
	rec.Status = ir.Status(status)
	rec.CronExpression = cronExpr.String
	rec.CreateTime = time.UnixMilli(createTime)
	rec.UpdateTime = time.UnixMilli(updateTime)
	return rec, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
