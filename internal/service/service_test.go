package service_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/reconcile/internal/compiler"
	"github.com/roach88/reconcile/internal/dispatch"
	"github.com/roach88/reconcile/internal/ir"
	"github.com/roach88/reconcile/internal/poller"
	"github.com/roach88/reconcile/internal/service"
	"github.com/roach88/reconcile/internal/store"
	"github.com/roach88/reconcile/internal/testutil"
)

func request() ir.TransferRequest {
	return ir.TransferRequest{
		Source: ir.TransferSpec{
			Host:              "db1",
			Database:          "employees",
			Query:             "SELECT emp_no, dept_no, first_name FROM employees ORDER BY emp_no",
			Columns:           []string{"emp_no", "dept_no", "first_name"},
			PrimaryKeyColumns: []string{"emp_no"},
		},
		Target: ir.TransferSpec{
			Host:              "db2",
			Database:          "hr",
			Query:             "SELECT empID, deptID, firstName FROM person ORDER BY empID",
			Columns:           []string{"empID", "deptID", "firstName"},
			PrimaryKeyColumns: []string{"empID"},
			TableName:         "person",
		},
	}
}

func newService(t *testing.T, workers ...*testutil.FakeWorker) (*service.Service, *store.Store) {
	t.Helper()
	return newServiceWithStore(t, nil, workers...)
}

func newServiceWithStore(t *testing.T, opts []store.Option, workers ...*testutil.FakeWorker) (*service.Service, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "records.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ws := make([]dispatch.Worker, len(workers))
	for i, w := range workers {
		ws[i] = w
	}
	svc, err := service.New(service.Options{
		Store:         s,
		Workers:       ws,
		StoreTimeout:  5 * time.Second,
		SubmitTimeout: 5 * time.Second,
		Poller:        poller.Options{Period: time.Hour},
	})
	require.NoError(t, err)
	return svc, s
}

func TestCreateTransfer_SubmitsAndTracks(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	svc, _ := newService(t, w)
	ctx := context.Background()

	h, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, ir.StatusRunning, h.Status)

	submitted := w.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, 4, submitted[0].CountKind(ir.KindNoop)+submitted[0].CountKind(ir.KindInsert)+
		submitted[0].CountKind(ir.KindUpdate)+submitted[0].CountKind(ir.KindDelete))

	got, ok, err := svc.QueryTransfer(ctx, h.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestCreateTransfer_InvalidRequestSubmitsNothing(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	svc, s := newService(t, w)
	ctx := context.Background()

	req := request()
	req.Target.PrimaryKeyColumns = []string{"ssn"}
	_, err := svc.CreateTransfer(ctx, req)

	var specErrs compiler.SpecErrors
	require.True(t, errors.As(err, &specErrs))
	assert.Equal(t, []string{compiler.ErrKeyNotInColumns}, specErrs.Codes())
	assert.Empty(t, w.Submitted())

	active, err := s.ActiveSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestCreateTransfer_BadCron(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	svc, _ := newService(t, w)

	req := request()
	req.CronExpression = "61 * * * *"
	_, err := svc.CreateTransfer(context.Background(), req)

	var specErrs compiler.SpecErrors
	require.True(t, errors.As(err, &specErrs))
	assert.Equal(t, []string{compiler.ErrInvalidCron}, specErrs.Codes())
	assert.Empty(t, w.Submitted())
}

func TestCreateTransfer_NoWorker(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	w.FailSubmissions(errors.New("connection refused"))
	svc, _ := newService(t, w)

	_, err := svc.CreateTransfer(context.Background(), request())
	var dispatchErr *dispatch.DispatchError
	require.True(t, errors.As(err, &dispatchErr))
	assert.ErrorIs(t, err, dispatch.ErrNoWorker)
}

// hungStore never completes an insert before the caller's deadline.
type hungStore struct {
	*store.Store
}

func (hungStore) Insert(ctx context.Context, _ ir.TransferRecord) (ir.TransferRecord, error) {
	<-ctx.Done()
	return ir.TransferRecord{}, ctx.Err()
}

func TestCreateTransfer_StoreTimeout(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	w := testutil.NewFakeWorker("w1")
	svc, err := service.New(service.Options{
		Store:        hungStore{s},
		Workers:      []dispatch.Worker{w},
		StoreTimeout: 50 * time.Millisecond,
		Poller:       poller.Options{Period: time.Hour},
	})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.CreateTransfer(context.Background(), request())
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("CreateTransfer did not return")
	}
	assert.Len(t, w.Submitted(), 1)
}

func TestLifecycle_ApplyRunningFinished(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	w.SetInitialStatus(ir.StatusApply)
	svc, s := newService(t, w)
	ctx := context.Background()

	h, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)
	assert.Equal(t, ir.StatusApply, h.Status)
	rec, err := s.Get(ctx, h.ID)
	require.NoError(t, err)

	w.SetStatus(rec.RunID, ir.StatusRunning, "")
	require.NoError(t, svc.PollOnce(ctx))
	got, _, err := svc.QueryTransfer(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusRunning, got.Status)

	w.SetStatus(rec.RunID, ir.StatusFinished, "")
	require.NoError(t, svc.PollOnce(ctx))
	got, _, err = svc.QueryTransfer(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusFinished, got.Status)

	active, err := svc.ActiveTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	hist, err := svc.History(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, ir.StatusFinished, hist[0].Status)
}

func TestQueryTransfer_Absent(t *testing.T) {
	svc, _ := newService(t, testutil.NewFakeWorker("w1"))

	_, ok, err := svc.QueryTransfer(context.Background(), 404)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteTransfer(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	svc, _ := newService(t, w)
	ctx := context.Background()

	h, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)
	require.NoError(t, svc.DeleteTransfer(ctx, h.ID))

	_, ok, err := svc.QueryTransfer(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// Nothing left to poll.
	require.NoError(t, svc.PollOnce(ctx))
	assert.Equal(t, 0, w.StatusCalls())

	// Idempotent.
	require.NoError(t, svc.DeleteTransfer(ctx, h.ID))
}

func TestDeleteJob_Cascade(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	svc, _ := newService(t, w)
	ctx := context.Background()

	master, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)
	a, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)
	b, err := svc.CreateTransfer(ctx, request())
	require.NoError(t, err)

	require.NoError(t, svc.SaveDependents(ctx, master.ID, []ir.DependencyEdge{
		{DependentID: a.ID, DependentType: ir.DependentTrans},
		{DependentID: b.ID, DependentType: ir.DependentTrans},
	}))
	edges, err := svc.Dependents(ctx, master.ID)
	require.NoError(t, err)
	assert.Len(t, edges, 2)

	deleted, err := svc.DeleteJob(ctx, master.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{master.ID, a.ID, b.ID}, deleted)

	active, err := svc.ActiveTransfers(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, svc.PollOnce(ctx))
	assert.Equal(t, 0, w.StatusCalls())
}

func TestStart_RecoversRecordsFromPreviousProcess(t *testing.T) {
	w := testutil.NewFakeWorker("w1")
	path := filepath.Join(t.TempDir(), "records.db")
	ctx := context.Background()

	// First process submits and exits without finishing.
	s1, err := store.Open(path)
	require.NoError(t, err)
	svc1, err := service.New(service.Options{Store: s1, Workers: []dispatch.Worker{w}, Poller: poller.Options{Period: time.Hour}})
	require.NoError(t, err)
	h, err := svc1.CreateTransfer(ctx, request())
	require.NoError(t, err)
	rec, err := s1.Get(ctx, h.ID)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	// Second process picks it up on start.
	s2, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })
	svc2, err := service.New(service.Options{Store: s2, Workers: []dispatch.Worker{w}, Poller: poller.Options{Period: time.Hour}})
	require.NoError(t, err)
	require.NoError(t, svc2.Start(ctx))
	t.Cleanup(svc2.Stop)

	w.SetStatus(rec.RunID, ir.StatusError, "duplicate key")
	require.NoError(t, svc2.PollOnce(ctx))

	got, err := svc2.Transfer(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.StatusError, got.Status)
	assert.Equal(t, "duplicate key", got.ErrorMessage)
}

func TestPurge(t *testing.T) {
	clock := testutil.NewManualClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	w := testutil.NewFakeWorker("w1")
	svc, s := newServiceWithStore(t, []store.Option{store.WithClock(clock.Now)}, w)
	ctx := context.Background()

	finish := func() int64 {
		h, err := svc.CreateTransfer(ctx, request())
		require.NoError(t, err)
		rec, err := s.Get(ctx, h.ID)
		require.NoError(t, err)
		w.SetStatus(rec.RunID, ir.StatusFinished, "")
		require.NoError(t, svc.PollOnce(ctx))
		return h.ID
	}

	old := finish()
	clock.Advance(48 * time.Hour)
	recent := finish()

	n, err := svc.Purge(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := svc.QueryTransfer(ctx, old)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = svc.QueryTransfer(ctx, recent)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := service.New(service.Options{})
	require.Error(t, err)
}
