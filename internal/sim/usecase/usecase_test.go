package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/sim/bulk"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
	"github.com/shandysiswandi/simtrack/internal/sim/store"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

type flakyStore struct {
	*store.InMemoryStore
	failInsertAt int
	deleteErr    error
	calls        int
}

func (f *flakyStore) InsertMany(ctx context.Context, cards []entity.SimCard) error {
	f.calls++
	if f.calls == f.failInsertAt {
		return errors.New("connection reset")
	}
	return f.InMemoryStore.InsertMany(ctx, cards)
}

func (f *flakyStore) DeleteByBatch(ctx context.Context, batchID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.InMemoryStore.DeleteByBatch(ctx, batchID)
}

type testPublisher struct {
	mu     sync.Mutex
	events []entity.BatchEvent
}

// Publish drops events sent with a done context, like event.Bus can.
func (p *testPublisher) Publish(ctx context.Context, event entity.BatchEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *testPublisher) types() []entity.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]entity.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type testID struct {
	mu sync.Mutex
	n  int
}

func (t *testID) Generate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return fmt.Sprintf("id-%d", t.n)
}

type testRowID struct {
	mu sync.Mutex
	n  int64
}

func (t *testRowID) Generate() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.n++
	return t.n
}

type fixedClock struct {
	now time.Time
}

func (f fixedClock) Now() time.Time {
	return f.now
}

// syncRunner runs background work inline so tests can assert on its effects.
// refuse makes it report the work as never scheduled; cancel runs the work
// with a context that is already done, as during shutdown.
type syncRunner struct {
	errs   []error
	refuse bool
	cancel bool
}

func (r *syncRunner) Go(ctx context.Context, f func(ctx context.Context) error) bool {
	if r.refuse {
		return false
	}
	if r.cancel {
		var stop context.CancelFunc
		ctx, stop = context.WithCancel(ctx)
		stop()
	}
	if err := f(ctx); err != nil {
		r.errs = append(r.errs, err)
	}
	return true
}

type fixture struct {
	uc     *usecase.Usecase
	store  usecase.Store
	events *testPublisher
	runner *syncRunner
}

func newFixture(t *testing.T, st usecase.Store) fixture {
	t.Helper()
	if st == nil {
		st = store.NewInMemoryStore()
	}

	f := fixture{store: st, events: &testPublisher{}, runner: &syncRunner{}}
	f.uc = usecase.New(usecase.Dependency{
		Store:     st,
		Events:    f.events,
		Runner:    f.runner,
		Clock:     fixedClock{now: time.Unix(1700000000, 0)},
		ID:        &testID{},
		RowID:     &testRowID{},
		RootCtx:   context.Background(),
		ChunkSize: 50,
	})
	return f
}

func makeCards(n int) []entity.SimCard {
	cards := make([]entity.SimCard, n)
	for i := range cards {
		cards[i] = entity.SimCard{SerialNumber: fmt.Sprintf("8962%015d", i), LotNumber: "L-1"}
	}
	return cards
}

func requireCode(t *testing.T, err error, code pkgerror.Code) *pkgerror.Error {
	t.Helper()
	var perr *pkgerror.Error
	require.ErrorAs(t, err, &perr)
	require.Equal(t, code, perr.Code())
	return perr
}

func TestBulkInsertStoresAllRecords(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	var percents []int
	res, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{
		BatchID: "batch-1",
		Records: makeCards(120),
		OnProgress: func(_ context.Context, p bulk.Progress) {
			percents = append(percents, p.Percent)
		},
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, bulk.StateCompleted, res.State)
	require.Equal(t, 120, res.Success)
	require.Zero(t, res.Failed)
	require.Empty(t, res.Errors)
	require.Equal(t, []int{42, 83, 100}, percents)

	meta, err := f.uc.Batch(ctx, "batch-1")
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusDone, meta.Batch.Status)
	require.Equal(t, int64(120), meta.Batch.Inserted)
	require.Equal(t, 100, meta.Batch.Percent)
	require.Equal(t, string(bulk.StateCompleted), meta.Batch.RollbackState)

	cards, err := f.uc.ListCards(ctx, usecase.CardFilter{BatchID: "batch-1"}, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 120, cards.Total)
	require.Len(t, cards.Cards, 10)
	require.Equal(t, entity.SimStatusInStock, cards.Cards[0].Status)
	require.NotZero(t, cards.Cards[0].ID)

	require.Equal(t, []entity.EventType{entity.EventBatchCompleted}, f.events.types())
}

func TestBulkInsertDuplicateRollsBack(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	records := makeCards(100)
	records[75].SerialNumber = records[10].SerialNumber

	res, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{BatchID: "batch-dup", Records: records})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, bulk.StateRolledBack, res.State)
	require.Zero(t, res.Success)
	require.Equal(t, 100, res.Failed)
	require.Len(t, res.Errors, 1)

	cards, err := f.uc.ListCards(ctx, usecase.CardFilter{BatchID: "batch-dup"}, 1, 10)
	require.NoError(t, err)
	require.Zero(t, cards.Total)

	meta, err := f.uc.Batch(ctx, "batch-dup")
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Equal(t, int64(100), meta.Batch.Failed)
	require.NotEmpty(t, meta.Batch.Err)

	require.Equal(t, []entity.EventType{entity.EventBatchRolledBack}, f.events.types())
}

func TestBulkInsertRollbackFailureIsReported(t *testing.T) {
	st := &flakyStore{
		InMemoryStore: store.NewInMemoryStore(),
		failInsertAt:  2,
		deleteErr:     errors.New("database unavailable"),
	}
	f := newFixture(t, st)

	res, err := f.uc.BulkInsert(context.Background(), usecase.BulkInsertInput{BatchID: "batch-rb", Records: makeCards(80)})
	require.NoError(t, err)
	require.Equal(t, bulk.StateRollbackFailed, res.State)
	require.Equal(t, 80, res.Failed)
	require.Len(t, res.Errors, 2)
	require.Contains(t, res.Errors[0], "connection reset")
	require.Contains(t, res.Errors[1], "database unavailable")
	require.Equal(t, []entity.EventType{entity.EventBatchRollbackFailed}, f.events.types())
}

func TestBulkInsertFirstChunkFailureSkipsRollback(t *testing.T) {
	st := &flakyStore{
		InMemoryStore: store.NewInMemoryStore(),
		failInsertAt:  1,
		deleteErr:     errors.New("must not be called"),
	}
	f := newFixture(t, st)

	res, err := f.uc.BulkInsert(context.Background(), usecase.BulkInsertInput{BatchID: "batch-first", Records: makeCards(30)})
	require.NoError(t, err)
	require.Equal(t, bulk.StateFailed, res.State)
	require.Equal(t, 30, res.Failed)
	require.Len(t, res.Errors, 1)
	require.Equal(t, []entity.EventType{entity.EventBatchFailed}, f.events.types())
}

func TestBulkInsertBatchIDs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{Records: makeCards(3)})
	require.NoError(t, err)
	require.Equal(t, "id-1", res.BatchID)

	records := makeCards(6)[3:]
	res, err = f.uc.BulkInsert(ctx, usecase.BulkInsertInput{BatchID: "id-1", Records: records})
	require.Error(t, err)
	requireCode(t, err, pkgerror.CodeConflict)
	require.Empty(t, res.BatchID)

	records[1].BatchID = "other"
	_, err = f.uc.BulkInsert(ctx, usecase.BulkInsertInput{BatchID: "batch-mixed", Records: records})
	requireCode(t, err, pkgerror.CodeInvalidInput)
	require.ErrorIs(t, err, bulk.ErrCallerContract)

	meta, err := f.uc.Batch(ctx, "batch-mixed")
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
}

func TestBulkInsertValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{})
	requireCode(t, err, pkgerror.CodeInvalidInput)

	records := makeCards(2)
	records[0].SerialNumber = "  "
	records[1].Status = "LOST"
	_, err = f.uc.BulkInsert(ctx, usecase.BulkInsertInput{Records: records})
	perr := requireCode(t, err, pkgerror.CodeInvalidInput)
	require.Contains(t, perr.Fields(), "records[0].serial_number")
	require.Contains(t, perr.Fields(), "records[1].status")

	_, err = f.uc.BulkInsert(ctx, usecase.BulkInsertInput{Records: makeCards(2), ChunkSize: -1})
	require.ErrorIs(t, err, bulk.ErrInvalidChunkSize)
}

func TestBulkInsertDoesNotMutateInput(t *testing.T) {
	f := newFixture(t, nil)

	records := makeCards(2)
	_, err := f.uc.BulkInsert(context.Background(), usecase.BulkInsertInput{BatchID: "batch-x", Records: records})
	require.NoError(t, err)
	require.Empty(t, records[0].BatchID)
	require.Zero(t, records[0].ID)
}

func TestUploadParsesCSV(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := strings.Join([]string{
		"Serial_Number, lot_number, status, team_id, customer_name",
		"896200000000000000001, L-7, in_stock, team-a,",
		"896200000000000000002, L-7, , ,",
		"896200000000000000003, L-7, SOLD, team-b, Jane",
	}, "\n")

	out, err := f.uc.Upload(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	require.Equal(t, "id-1", out.BatchID)
	require.Empty(t, f.runner.errs)

	meta, err := f.uc.Batch(ctx, out.BatchID)
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusDone, meta.Batch.Status)
	require.Equal(t, int64(3), meta.Batch.Total)
	require.Equal(t, int64(3), meta.Batch.Inserted)

	cards, err := f.uc.ListCards(ctx, usecase.CardFilter{BatchID: out.BatchID}, 1, 10)
	require.NoError(t, err)
	require.Len(t, cards.Cards, 3)
	require.NotNil(t, cards.Cards[0].TeamID)
	require.Equal(t, "team-a", *cards.Cards[0].TeamID)
	require.Nil(t, cards.Cards[1].TeamID)
	require.Nil(t, cards.Cards[1].AssignedToUserID)
	require.Equal(t, entity.SimStatusInStock, cards.Cards[1].Status)
	require.Equal(t, entity.SimStatusSold, cards.Cards[2].Status)
}

func TestUploadRejectsInvalidRows(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := strings.Join([]string{
		"serial_number,status",
		"896200000000000000001,IN_STOCK",
		",IN_STOCK",
		"896200000000000000003,LOST",
	}, "\n")

	out, err := f.uc.Upload(ctx, strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, f.runner.errs, 1)

	meta, err := f.uc.Batch(ctx, out.BatchID)
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Contains(t, meta.Batch.Err, "line_3")
	require.Contains(t, meta.Batch.Err, "line_4")

	cards, err := f.uc.ListCards(ctx, usecase.CardFilter{BatchID: out.BatchID}, 1, 10)
	require.NoError(t, err)
	require.Zero(t, cards.Total)
	require.Equal(t, []entity.EventType{entity.EventBatchFailed}, f.events.types())
}

func TestUploadRequiresSerialColumn(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	out, err := f.uc.Upload(ctx, strings.NewReader("lot_number\nL-1\n"))
	require.NoError(t, err)

	meta, err := f.uc.Batch(ctx, out.BatchID)
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Contains(t, meta.Batch.Err, "serial_number")
}

func TestBatchNotFound(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.Batch(context.Background(), "missing")
	requireCode(t, err, pkgerror.CodeNotFound)

	_, err = f.uc.Activities(context.Background(), "missing")
	requireCode(t, err, pkgerror.CodeNotFound)
}

func TestCardLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	records := makeCards(1)
	serial := records[0].SerialNumber
	_, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{BatchID: "batch-life", Records: records})
	require.NoError(t, err)

	card, err := f.uc.AssignCard(ctx, serial, "user-1")
	require.NoError(t, err)
	require.Equal(t, entity.SimStatusAssigned, card.Status)
	require.Equal(t, "user-1", *card.AssignedToUserID)

	_, err = f.uc.AssignCard(ctx, serial, "user-1")
	require.NoError(t, err)

	_, err = f.uc.AssignCard(ctx, serial, "user-2")
	requireCode(t, err, pkgerror.CodeConflict)

	card, err = f.uc.UnassignCard(ctx, serial)
	require.NoError(t, err)
	require.Equal(t, entity.SimStatusInStock, card.Status)
	require.Nil(t, card.AssignedToUserID)

	_, err = f.uc.UnassignCard(ctx, serial)
	requireCode(t, err, pkgerror.CodeConflict)

	_, err = f.uc.SellCard(ctx, serial, usecase.SaleInput{CustomerName: "Budi"})
	requireCode(t, err, pkgerror.CodeInvalidInput)

	_, err = f.uc.AssignCard(ctx, serial, "user-3")
	require.NoError(t, err)

	card, err = f.uc.SellCard(ctx, serial, usecase.SaleInput{CustomerName: "Budi", CustomerPhone: " 0812 "})
	require.NoError(t, err)
	require.Equal(t, entity.SimStatusSold, card.Status)
	require.Equal(t, "user-3", *card.SoldByUserID)
	require.Equal(t, "0812", card.CustomerPhone)
	require.Equal(t, int64(1700000000), card.SoldAt)

	_, err = f.uc.UnassignCard(ctx, serial)
	requireCode(t, err, pkgerror.CodeConflict)

	_, err = f.uc.AssignCard(ctx, "8962000", "user-1")
	requireCode(t, err, pkgerror.CodeNotFound)

	_, err = f.uc.AssignCard(ctx, serial, " ")
	requireCode(t, err, pkgerror.CodeInvalidInput)
}

func TestListCardsRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.ListCards(context.Background(), usecase.CardFilter{Statuses: []entity.SimStatus{"LOST"}}, 1, 10)
	perr := requireCode(t, err, pkgerror.CodeInvalidInput)
	require.Contains(t, perr.Fields(), "status")

	out, err := f.uc.ListCards(context.Background(), usecase.CardFilter{}, 0, 1000)
	require.NoError(t, err)
	require.Equal(t, 1, out.Page)
	require.Equal(t, 200, out.PageSize)
}

func TestImportCSV(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	csv := "serial_number,lot_number\n896200000000000000001,L-1\n896200000000000000002,L-1\n"
	var last bulk.Progress
	res, err := f.uc.ImportCSV(ctx, strings.NewReader(csv), usecase.BulkInsertInput{
		BatchID:    "batch-import",
		ChunkSize:  1,
		OnProgress: func(_ context.Context, p bulk.Progress) { last = p },
	})
	require.NoError(t, err)
	require.True(t, res.OK)
	require.Equal(t, 2, res.Success)
	require.Equal(t, 100, last.Percent)

	_, err = f.uc.ImportCSV(ctx, strings.NewReader("serial_number,status\n1,LOST\n"), usecase.BulkInsertInput{})
	perr := requireCode(t, err, pkgerror.CodeInvalidInput)
	require.Contains(t, perr.Fields(), "line_2")
}

// pipeUpload feeds csv through an io.Pipe the way the HTTP handler does and
// returns the writer's outcome.
func pipeUpload(t *testing.T, uc *usecase.Usecase, csv string) (usecase.UploadResult, <-chan error, error) {
	t.Helper()

	pr, pw := io.Pipe()
	result, err := uc.Upload(context.Background(), pr)
	if err != nil {
		_ = pr.Close()
	}

	written := make(chan error, 1)
	go func() {
		_, werr := io.Copy(pw, strings.NewReader(csv))
		_ = pw.Close()
		written <- werr
	}()

	return result, written, err
}

func waitWriter(t *testing.T, written <-chan error) error {
	t.Helper()
	select {
	case err := <-written:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("upload writer still blocked")
		return nil
	}
}

func TestUploadNotScheduledFailsBatch(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.refuse = true

	_, written, err := pipeUpload(t, f.uc, "serial_number\n"+makeCards(1)[0].SerialNumber+"\n")
	requireCode(t, err, pkgerror.CodeUnavailable)
	require.Error(t, waitWriter(t, written))

	meta, err := f.uc.Batch(context.Background(), "id-1")
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Contains(t, meta.Batch.Err, "not scheduled")
	require.Equal(t, []entity.EventType{entity.EventBatchFailed}, f.events.types())
}

func TestUploadAbandonedOnShutdown(t *testing.T) {
	f := newFixture(t, nil)
	f.runner.cancel = true

	result, written, err := pipeUpload(t, f.uc, "serial_number\n"+makeCards(1)[0].SerialNumber+"\n")
	require.NoError(t, err)
	require.ErrorIs(t, waitWriter(t, written), context.Canceled)

	meta, err := f.uc.Batch(context.Background(), result.BatchID)
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Contains(t, meta.Batch.Err, "upload abandoned")
	require.Equal(t, []entity.EventType{entity.EventBatchFailed}, f.events.types())

	require.Len(t, f.runner.errs, 1)
	require.ErrorIs(t, f.runner.errs[0], context.Canceled)
}

func TestUploadRefusedAfterRootCanceled(t *testing.T) {
	root, cancel := context.WithCancel(context.Background())
	cancel()

	uc := usecase.New(usecase.Dependency{
		Store:   store.NewInMemoryStore(),
		Runner:  &syncRunner{},
		ID:      &testID{},
		RowID:   &testRowID{},
		RootCtx: root,
	})

	_, err := uc.Upload(context.Background(), strings.NewReader("serial_number\n"))
	requireCode(t, err, pkgerror.CodeUnavailable)
}

func TestBulkInsertCanceledMidwayRecordsOutcome(t *testing.T) {
	st, err := store.OpenSQL(context.Background(), store.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	f := newFixture(t, st)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := f.uc.BulkInsert(ctx, usecase.BulkInsertInput{
		BatchID:   "batch-cancel",
		ChunkSize: 2,
		Records:   makeCards(4),
		OnProgress: func(ctx context.Context, p bulk.Progress) {
			cancel()
		},
	})
	require.NoError(t, err)
	require.False(t, res.OK)
	require.Equal(t, bulk.StateRolledBack, res.State)

	meta, err := f.uc.Batch(context.Background(), "batch-cancel")
	require.NoError(t, err)
	require.Equal(t, entity.BatchStatusFailed, meta.Batch.Status)
	require.Equal(t, string(bulk.StateRolledBack), meta.Batch.RollbackState)
	require.NotZero(t, meta.Batch.EndedAt)
	require.Equal(t, []entity.EventType{entity.EventBatchRolledBack}, f.events.types())

	cards, err := f.uc.ListCards(context.Background(), usecase.CardFilter{BatchID: "batch-cancel"}, 1, 20)
	require.NoError(t, err)
	require.Zero(t, cards.Total)
}
