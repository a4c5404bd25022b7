package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkguid"
	"github.com/shandysiswandi/simtrack/internal/sim/bulk"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

type Store interface {
	bulk.Store
	CreateBatch(ctx context.Context, meta entity.Batch) error
	UpdateBatch(ctx context.Context, batchID string, fn func(meta *entity.Batch)) error
	GetBatch(ctx context.Context, batchID string) (entity.Batch, error)
	ListCards(ctx context.Context, filter CardFilter, page, pageSize int) ([]entity.SimCard, int, error)
	GetCard(ctx context.Context, serial string) (entity.SimCard, error)
	UpdateCard(ctx context.Context, serial string, fn func(card *entity.SimCard) error) error
	AppendActivity(ctx context.Context, act entity.Activity) error
	ListActivities(ctx context.Context, batchID string) ([]entity.Activity, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event entity.BatchEvent) error
}

// Runner runs f in the background. Go reports false when f will never run.
type Runner interface {
	Go(ctx context.Context, f func(ctx context.Context) error) bool
}

type Clock interface {
	Now() time.Time
}

type Dependency struct {
	Store     Store
	Events    EventPublisher
	Runner    Runner
	Clock     Clock
	ID        pkguid.StringID
	RowID     pkguid.NumberID
	RootCtx   context.Context
	ChunkSize int
}

type Usecase struct {
	store     Store
	events    EventPublisher
	runner    Runner
	clock     Clock
	id        pkguid.StringID
	rowID     pkguid.NumberID
	rootCtx   context.Context
	chunkSize int
	inserter  *bulk.Inserter
}

func New(dep Dependency) *Usecase {
	root := dep.RootCtx
	if root == nil {
		root = context.Background()
	}

	clock := dep.Clock
	if clock == nil {
		clock = realClock{}
	}

	chunkSize := dep.ChunkSize
	if chunkSize < 1 {
		chunkSize = bulk.DefaultChunkSize
	}

	return &Usecase{
		store:     dep.Store,
		events:    dep.Events,
		runner:    dep.Runner,
		clock:     clock,
		id:        dep.ID,
		rowID:     dep.RowID,
		rootCtx:   root,
		chunkSize: chunkSize,
		inserter:  bulk.New(dep.Store),
	}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// BulkInsert stores the records synchronously as one batch.
//
// A batch ID given in the input is stamped onto records that have none; if no
// batch ID is given anywhere a new one is generated. Registering the batch
// fails with a conflict when the ID was used before.
func (u *Usecase) BulkInsert(ctx context.Context, in BulkInsertInput) (BulkInsertResult, error) {
	if u.store == nil || u.id == nil || u.rowID == nil {
		return BulkInsertResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	if len(in.Records) == 0 {
		return BulkInsertResult{}, pkgerror.NewInvalidInput(errors.New("at least one record is required"))
	}

	records := u.stampBatch(in.Records, in.BatchID)
	if fields := validateRecords(records); len(fields) > 0 {
		return BulkInsertResult{}, pkgerror.NewInvalidFields(errors.New("invalid records"), fields)
	}

	batchID := records[0].BatchID
	ctx = pkglog.SetBatchID(ctx, batchID)

	if err := u.store.CreateBatch(ctx, entity.Batch{
		ID:        batchID,
		Status:    entity.BatchStatusProcessing,
		StartedAt: u.clock.Now().Unix(),
		Total:     int64(len(records)),
	}); err != nil {
		return BulkInsertResult{}, mapStoreErr(err, "batch")
	}

	res, err := u.runBatch(ctx, batchID, records, in.ChunkSize, in.OnProgress)
	if err != nil {
		return BulkInsertResult{}, err
	}

	return toBulkResult(res), nil
}

// Upload accepts a CSV stream and processes it in the background. The
// returned batch ID can be polled with Batch.
//
// r is owned by the background task. When the task cannot be scheduled the
// batch is failed and r is closed with the cause if it supports
// CloseWithError, so a writer feeding it is released.
func (u *Usecase) Upload(ctx context.Context, r io.Reader) (UploadResult, error) {
	if u.store == nil || u.id == nil || u.rowID == nil || u.runner == nil {
		return UploadResult{}, pkgerror.NewServer(errors.New("missing dependency"))
	}

	if err := u.rootCtx.Err(); err != nil {
		return UploadResult{}, pkgerror.NewUnavailable(fmt.Errorf("not accepting uploads: %w", err))
	}

	batchID := u.id.Generate()
	if err := u.store.CreateBatch(ctx, entity.Batch{
		ID:     batchID,
		Status: entity.BatchStatusQueued,
	}); err != nil {
		return UploadResult{}, mapStoreErr(err, "batch")
	}

	scheduled := u.runner.Go(u.rootCtx, func(ctx context.Context) error {
		ctx = pkglog.SetBatchID(ctx, batchID)
		if err := u.processUpload(ctx, batchID, r); err != nil {
			slog.ErrorContext(ctx, "upload processing failed", "error", err)
			return err
		}
		return nil
	})
	if !scheduled {
		cause := errors.New("upload was not scheduled")
		if err := u.rootCtx.Err(); err != nil {
			cause = fmt.Errorf("upload was not scheduled: %w", err)
		}

		abandon(r, cause)
		if err := u.rejectBatch(pkglog.SetBatchID(ctx, batchID), batchID, 0, cause); !errors.Is(err, cause) {
			slog.ErrorContext(ctx, "failed to reject unscheduled upload", "batch_id", batchID, "error", err)
		}
		return UploadResult{}, pkgerror.NewUnavailable(cause)
	}

	return UploadResult{BatchID: batchID}, nil
}

// ImportCSV parses a whole CSV stream and stores it synchronously with
// BulkInsert. Any invalid row rejects the import before a batch is created.
func (u *Usecase) ImportCSV(ctx context.Context, r io.Reader, in BulkInsertInput) (BulkInsertResult, error) {
	records, lineErrs, err := parseCSV(ctx, r)
	if err != nil {
		return BulkInsertResult{}, pkgerror.NewInvalidInput(err)
	}
	if len(lineErrs) > 0 {
		return BulkInsertResult{}, pkgerror.NewInvalidFields(lineErrs, lineErrs)
	}

	in.Records = records
	return u.BulkInsert(ctx, in)
}

func (u *Usecase) Batch(ctx context.Context, batchID string) (BatchResult, error) {
	if batchID == "" {
		return BatchResult{}, pkgerror.NewInvalidInput(errors.New("batch_id is required"))
	}

	meta, err := u.store.GetBatch(ctx, batchID)
	if err != nil {
		return BatchResult{}, mapStoreErr(err, "batch")
	}

	return BatchResult{Batch: meta}, nil
}

func (u *Usecase) Activities(ctx context.Context, batchID string) ([]entity.Activity, error) {
	if _, err := u.Batch(ctx, batchID); err != nil {
		return nil, err
	}

	acts, err := u.store.ListActivities(ctx, batchID)
	if err != nil {
		return nil, normalizeErr(err)
	}

	return acts, nil
}

func (u *Usecase) processUpload(ctx context.Context, batchID string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		cause := fmt.Errorf("upload abandoned: %w", err)
		abandon(r, cause)
		return u.rejectBatch(ctx, batchID, 0, cause)
	}

	startedAt := u.clock.Now().Unix()
	if err := u.store.UpdateBatch(ctx, batchID, func(meta *entity.Batch) {
		meta.Status = entity.BatchStatusProcessing
		meta.StartedAt = startedAt
	}); err != nil {
		drain(r)
		return err
	}

	records, lineErrs, err := parseCSV(ctx, r)
	if err == nil && len(lineErrs) > 0 {
		err = lineErrs
	}
	if err == nil && len(records) == 0 {
		err = errors.New("upload contains no records")
	}
	if err != nil {
		return u.rejectBatch(ctx, batchID, int64(len(records)), err)
	}

	for i := range records {
		records[i].BatchID = batchID
	}

	if err := u.store.UpdateBatch(ctx, batchID, func(meta *entity.Batch) {
		meta.Total = int64(len(records))
	}); err != nil {
		return u.rejectBatch(ctx, batchID, int64(len(records)), err)
	}

	res, err := u.runBatch(ctx, batchID, records, 0, nil)
	if err != nil {
		return err
	}
	if !res.OK() {
		return res.Err()
	}

	return nil
}

// rejectBatch fails a batch before anything was written. It runs detached
// from ctx cancellation so the batch never stays queued or processing.
func (u *Usecase) rejectBatch(ctx context.Context, batchID string, total int64, cause error) error {
	ctx = context.WithoutCancel(ctx)
	endedAt := u.clock.Now().Unix()
	if err := u.store.UpdateBatch(ctx, batchID, func(meta *entity.Batch) {
		meta.Status = entity.BatchStatusFailed
		meta.Err = cause.Error()
		meta.EndedAt = endedAt
		meta.Total = total
		meta.Failed = total
	}); err != nil {
		return err
	}

	u.publish(ctx, entity.BatchEvent{
		BatchID: batchID,
		Type:    entity.EventBatchFailed,
		Failed:  total,
		Errors:  []string{cause.Error()},
	})

	return cause
}

// runBatch assigns row IDs, runs the chunked insert, and records the outcome
// on the batch. The batch must already exist.
func (u *Usecase) runBatch(ctx context.Context, batchID string, records []entity.SimCard, chunkSize int, onProgress bulk.ProgressFunc) (bulk.Result, error) {
	now := u.clock.Now().Unix()
	for i := range records {
		records[i].ID = u.rowID.Generate()
		records[i].CreatedAt = now
	}

	if chunkSize == 0 {
		chunkSize = u.chunkSize
	}

	res, err := u.inserter.Run(ctx, records, bulk.Options{
		ChunkSize:  chunkSize,
		OnProgress: u.trackProgress(batchID, onProgress),
	})
	if err != nil {
		_ = u.rejectBatch(ctx, batchID, int64(len(records)), err)
		return bulk.Result{}, pkgerror.NewInvalidInput(err)
	}

	// The outcome is recorded even when ctx was what stopped the insert.
	ctx = context.WithoutCancel(ctx)
	endedAt := u.clock.Now().Unix()
	if err := u.store.UpdateBatch(ctx, batchID, func(meta *entity.Batch) {
		meta.EndedAt = endedAt
		meta.Inserted = int64(res.Success)
		meta.Failed = int64(res.Failed)
		meta.RollbackState = string(res.State)
		if res.OK() {
			meta.Status = entity.BatchStatusDone
			meta.Percent = 100
			meta.Err = ""
			return
		}
		meta.Status = entity.BatchStatusFailed
		meta.Percent = 0
		meta.Err = res.Message()
	}); err != nil {
		slog.ErrorContext(ctx, "failed to record batch outcome", "state", res.State, "error", err)
	}

	u.publish(ctx, entity.BatchEvent{
		BatchID: batchID,
		Type:    eventTypeOf(res.State),
		Success: int64(res.Success),
		Failed:  int64(res.Failed),
		Errors:  res.ErrorMessages(),
	})

	return res, nil
}

// trackProgress keeps the batch row current and forwards to the caller's
// callback. Without one, progress is logged.
func (u *Usecase) trackProgress(batchID string, next bulk.ProgressFunc) bulk.ProgressFunc {
	return func(ctx context.Context, p bulk.Progress) {
		if err := u.store.UpdateBatch(ctx, batchID, func(meta *entity.Batch) {
			meta.Percent = p.Percent
			meta.Inserted = int64(p.Inserted)
		}); err != nil {
			slog.WarnContext(ctx, "failed to record progress", "percent", p.Percent, "error", err)
		}

		if next == nil {
			slog.InfoContext(ctx, "bulk insert progress",
				"percent", p.Percent,
				"inserted", p.Inserted,
				"total", p.Total,
				"chunk_size", len(p.Chunk),
			)
			return
		}
		next(ctx, p)
	}
}

func (u *Usecase) publish(ctx context.Context, event entity.BatchEvent) {
	if u.events == nil {
		return
	}

	event.EventID = u.id.Generate()
	event.Occurred = u.clock.Now().Unix()
	if err := u.events.Publish(ctx, event); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "event_id", event.EventID, "type", event.Type, "error", err)
	}
}

// stampBatch copies records and fills in missing batch IDs.
func (u *Usecase) stampBatch(in []entity.SimCard, batchID string) []entity.SimCard {
	records := make([]entity.SimCard, len(in))
	copy(records, in)

	if batchID == "" {
		batchID = records[0].BatchID
	}
	if batchID == "" {
		batchID = u.id.Generate()
	}

	for i := range records {
		if records[i].BatchID == "" {
			records[i].BatchID = batchID
		}
	}

	return records
}

func eventTypeOf(state bulk.State) entity.EventType {
	switch state {
	case bulk.StateCompleted:
		return entity.EventBatchCompleted
	case bulk.StateRolledBack:
		return entity.EventBatchRolledBack
	case bulk.StateRollbackFailed:
		return entity.EventBatchRollbackFailed
	default:
		return entity.EventBatchFailed
	}
}

func toBulkResult(res bulk.Result) BulkInsertResult {
	return BulkInsertResult{
		BatchID: res.BatchID,
		OK:      res.OK(),
		State:   res.State,
		Success: res.Success,
		Failed:  res.Failed,
		Errors:  res.ErrorMessages(),
		Message: res.Message(),
	}
}

func mapStoreErr(err error, resource string) error {
	if errors.Is(err, pkgerror.ErrNotFound) {
		return pkgerror.NewBusiness(resource+" not found", pkgerror.CodeNotFound)
	}
	if errors.Is(err, pkgerror.ErrConflict) {
		return pkgerror.NewBusiness(resource+" already exists", pkgerror.CodeConflict)
	}
	return normalizeErr(err)
}

func normalizeErr(err error) error {
	var perr *pkgerror.Error
	if errors.As(err, &perr) {
		return perr
	}
	return pkgerror.NewServer(err)
}
