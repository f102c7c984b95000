package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/ir"
)

func TestInsert_AssignsIDAndTimes(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("a", "w1")
	rec.ID = 99
	rec.Status = ""

	got, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.ID, "input id is ignored")
	assert.Equal(t, ir.StatusApply, got.Status, "empty status defaults to APPLY")
	assert.True(t, got.CreateTime.Equal(clock.Now()))
	assert.True(t, got.UpdateTime.Equal(got.CreateTime))

	stored, err := s.Get(ctx, got.ID)
	require.NoError(t, err)
	assert.Equal(t, got.RunID, stored.RunID)
	assert.True(t, stored.CreateTime.Equal(got.CreateTime))
}

func TestInsert_Validation(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*ir.TransferRecord)
		want   string
	}{
		{"bad status", func(r *ir.TransferRecord) { r.Status = "DONE" }, `unknown status "DONE"`},
		{"no name", func(r *ir.TransferRecord) { r.Name = "" }, "name is required"},
		{"bad cron", func(r *ir.TransferRecord) { r.CronExpression = "every minute" }, "cron expression"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testRecord("a", "w1")
			tt.mutate(&rec)
			_, err := s.Insert(ctx, rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRecord)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInsert_AcceptsStandardCron(t *testing.T) {
	s, _ := createTestStore(t)

	rec := testRecord("a", "w1")
	rec.CronExpression = "*/5 * * * *"
	got, err := s.Insert(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, "*/5 * * * *", got.CronExpression)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	_, err := s.Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_Lifecycle(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)

	clock.Advance(time.Second)
	rec.Status = ir.StatusRunning
	require.NoError(t, s.Update(ctx, rec))

	active, err := s.ActiveSet(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	clock.Advance(time.Second)
	rec.Status = ir.StatusFinished
	require.NoError(t, s.Update(ctx, rec))

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusFinished, stored.Status)
	assert.True(t, stored.UpdateTime.Equal(clock.Now()), "update time is set to now")
	assert.True(t, stored.CreateTime.Before(stored.UpdateTime))

	active, err = s.ActiveSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, active, "terminal record without cron leaves the active set")

	terminal, err := s.TerminalSet(ctx)
	require.NoError(t, err)
	require.Len(t, terminal, 1)
	assert.Equal(t, rec.ID, terminal[0].ID)

	history, err := s.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, ir.StatusFinished, history[0].Status)
	assert.Equal(t, "run-a", history[0].RunID)
	assert.True(t, history[0].Timestamp.Equal(clock.Now()))
}

func TestUpdate_TerminalRecordIsImmutable(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)

	rec.Status = ir.StatusError
	rec.ErrorMessage = "connection refused"
	require.NoError(t, s.Update(ctx, rec))
	finished := clock.Now()

	clock.Advance(time.Second)
	for _, status := range []ir.Status{ir.StatusError, ir.StatusRunning, ir.StatusFinished} {
		again := rec
		again.Status = status
		again.ErrorMessage = "late report"
		err := s.Update(ctx, again)
		assert.ErrorIs(t, err, ErrTerminalRecord, status)
		assert.ErrorIs(t, err, ErrInvalidRecord, status)
	}

	stored, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, stored.Status)
	assert.Equal(t, "connection refused", stored.ErrorMessage)
	assert.True(t, stored.UpdateTime.Equal(finished))

	history, err := s.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "connection refused", history[0].ErrorMessage)
}

func TestUpdate_RepeatedCronTerminalReportAppendsOnce(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("nightly", "w1")
	rec.CronExpression = "0 2 * * *"
	rec, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	rec.Status = ir.StatusError
	rec.ErrorMessage = "connection refused"
	require.NoError(t, s.Update(ctx, rec))
	require.NoError(t, s.Update(ctx, rec))

	history, err := s.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "connection refused", history[0].ErrorMessage)
}

func TestUpdate_CronRecordHistoryPerTerminalTransition(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	rec := testRecord("nightly", "w1")
	rec.CronExpression = "0 2 * * *"
	rec, err := s.Insert(ctx, rec)
	require.NoError(t, err)

	for _, status := range []ir.Status{
		ir.StatusRunning, ir.StatusFinished,
		ir.StatusRunning, ir.StatusError,
		ir.StatusApply, ir.StatusRunning, ir.StatusFinished,
	} {
		rec.Status = status
		require.NoError(t, s.Update(ctx, rec))
	}

	history, err := s.History(ctx, rec.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ir.StatusFinished, history[0].Status)
	assert.Equal(t, ir.StatusError, history[1].Status)
	assert.Equal(t, ir.StatusFinished, history[2].Status)

	active, err := s.ActiveSet(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1, "cron records stay active when terminal")

	terminal, err := s.TerminalSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, terminal)
}

func TestUpdate_NotFound(t *testing.T) {
	s, _ := createTestStore(t)

	rec := testRecord("a", "w1")
	rec.ID = 7
	err := s.Update(context.Background(), rec)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateBatch(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)
	b, err := s.Insert(ctx, testRecord("b", "w1"))
	require.NoError(t, err)

	a.Status = ir.StatusFinished
	b.Status = ir.StatusRunning
	missing := testRecord("gone", "w1")
	missing.ID = 1000

	n, err := s.UpdateBatch(ctx, []ir.TransferRecord{a, missing, b})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.GetMany(ctx, []int64{a.ID, b.ID, 1000})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ir.StatusFinished, got[0].Status)
	assert.Equal(t, ir.StatusRunning, got[1].Status)

	history, err := s.History(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateBatch_SkipsTerminalRecords(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	done, err := s.Insert(ctx, testRecord("done", "w1"))
	require.NoError(t, err)
	done.Status = ir.StatusFinished
	require.NoError(t, s.Update(ctx, done))

	live, err := s.Insert(ctx, testRecord("live", "w1"))
	require.NoError(t, err)

	done.Status = ir.StatusRunning
	live.Status = ir.StatusRunning
	n, err := s.UpdateBatch(ctx, []ir.TransferRecord{done, live})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.GetMany(ctx, []int64{done.ID, live.ID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ir.StatusFinished, got[0].Status)
	assert.Equal(t, ir.StatusRunning, got[1].Status)
}

func TestUpdateBatch_InvalidRecordWritesNothing(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)

	a.Status = ir.StatusRunning
	bad := a
	bad.Status = "LOST"

	_, err = s.UpdateBatch(ctx, []ir.TransferRecord{a, bad})
	require.ErrorIs(t, err, ErrInvalidRecord)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusApply, got.Status)
}

func TestGetMany_Empty(t *testing.T) {
	s, _ := createTestStore(t)

	got, err := s.GetMany(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	rec, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)
	rec.Status = ir.StatusFinished
	require.NoError(t, s.Update(ctx, rec))

	require.NoError(t, s.Delete(ctx, rec.ID))
	require.NoError(t, s.Delete(ctx, rec.ID))

	_, err = s.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := s.History(ctx, rec.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "history outlives the record")
}

func TestActiveByHostname(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	a, err := s.Insert(ctx, testRecord("a", "w1"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, testRecord("b", "w2"))
	require.NoError(t, err)
	done, err := s.Insert(ctx, testRecord("c", "w1"))
	require.NoError(t, err)
	done.Status = ir.StatusFinished
	require.NoError(t, s.Update(ctx, done))

	got, err := s.ActiveByHostname(ctx, "w1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestPurgeTerminal(t *testing.T) {
	s, clock := createTestStore(t)
	ctx := context.Background()

	old, err := s.Insert(ctx, testRecord("old", "w1"))
	require.NoError(t, err)
	old.Status = ir.StatusFinished
	require.NoError(t, s.Update(ctx, old))

	clock.Advance(time.Hour)
	cutoff := clock.Now()

	recent, err := s.Insert(ctx, testRecord("recent", "w1"))
	require.NoError(t, err)
	recent.Status = ir.StatusError
	require.NoError(t, s.Update(ctx, recent))

	running, err := s.Insert(ctx, testRecord("running", "w1"))
	require.NoError(t, err)

	n, err := s.PurgeTerminal(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.Get(ctx, old.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, recent.ID)
	assert.NoError(t, err)
	_, err = s.Get(ctx, running.ID)
	assert.NoError(t, err)
}

func TestConcurrentOperationsSerialize(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := s.Insert(ctx, testRecord(fmt.Sprintf("r%d", i), "w1"))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.ActiveSet(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	active, err := s.ActiveSet(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 20)
}
