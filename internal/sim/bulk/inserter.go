package bulk

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkglog"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

// DefaultChunkSize is used when Options.ChunkSize is zero.
const DefaultChunkSize = 50

// Store is the persistence the inserter needs. InsertMany must store the
// whole slice or nothing.
type Store interface {
	InsertMany(ctx context.Context, cards []entity.SimCard) error
	DeleteByBatch(ctx context.Context, batchID string) error
}

type Options struct {
	// ChunkSize is the number of records per InsertMany call. Zero means
	// DefaultChunkSize; a negative value is rejected.
	ChunkSize int
	// OnProgress is optional; without it progress is logged.
	OnProgress ProgressFunc
}

// Inserter runs chunked inserts with rollback. It holds no per-run state and
// is safe for concurrent use with distinct batch IDs.
type Inserter struct {
	store Store
}

func New(store Store) *Inserter {
	return &Inserter{store: store}
}

// Run stores records chunk by chunk. The returned error is non-nil only for
// caller contract violations, detected before anything is written; store
// failures are reported through Result.
//
// The batch ID is taken from the first record and every record must carry
// it. Cancelling ctx stops the run before the next chunk and rolls back what
// was committed; the rollback itself ignores the cancellation.
func (i *Inserter) Run(ctx context.Context, records []entity.SimCard, opts Options) (Result, error) {
	size := opts.ChunkSize
	if size == 0 {
		size = DefaultChunkSize
	}
	if size < 0 {
		return Result{}, ErrInvalidChunkSize
	}

	total := len(records)
	if total == 0 {
		return completed("", 0), nil
	}

	batchID, err := batchIDOf(records)
	if err != nil {
		return Result{}, err
	}

	chunks, err := Chunks(records, size)
	if err != nil {
		return Result{}, err
	}

	ctx = pkglog.SetBatchID(ctx, batchID)

	var (
		inserted int
		errs     []error
		failure  *ChunkInsertError
	)

	for idx, chunk := range chunks {
		offset := idx * size

		if err := ctx.Err(); err != nil {
			failure = &ChunkInsertError{Index: idx, Offset: offset, Size: len(chunk), Err: err}
			break
		}

		if err := i.store.InsertMany(ctx, sanitizeAll(chunk)); err != nil {
			failure = &ChunkInsertError{Index: idx, Offset: offset, Size: len(chunk), Err: err}
			break
		}

		inserted += len(chunk)
		report(ctx, opts.OnProgress, Progress{
			Percent:  percentOf(inserted, total),
			Inserted: inserted,
			Total:    total,
			Chunk:    chunk,
			Errors:   slices.Clone(errs),
		})
	}

	if failure == nil {
		slog.InfoContext(ctx, "bulk insert completed", "inserted", inserted, "chunks", len(chunks))
		return completed(batchID, inserted), nil
	}

	slog.WarnContext(ctx, "bulk insert chunk failed",
		"chunk", failure.Index+1,
		"chunks", len(chunks),
		"committed", inserted,
		"error", failure.Err,
	)
	errs = append(errs, failure)

	state, rbErr := i.rollback(ctx, batchID, inserted)
	if rbErr != nil {
		errs = append(errs, rbErr)
	}

	return failed(batchID, total, inserted, state, errs), nil
}

// rollback moves a failed run to its terminal state. With nothing committed
// there is nothing to undo; otherwise exactly one delete is issued.
func (i *Inserter) rollback(ctx context.Context, batchID string, committed int) (State, error) {
	if committed == 0 {
		return StateFailed, nil
	}

	slog.InfoContext(ctx, "rolling back batch", "committed", committed)

	if err := i.store.DeleteByBatch(context.WithoutCancel(ctx), batchID); err != nil {
		slog.ErrorContext(ctx, "rollback failed, records of the batch may remain", "error", err)
		return StateRollbackFailed, &RollbackDeleteError{BatchID: batchID, Err: err}
	}

	slog.InfoContext(ctx, "batch rolled back", "deleted", committed)
	return StateRolledBack, nil
}

func batchIDOf(records []entity.SimCard) (string, error) {
	batchID := records[0].BatchID
	if strings.TrimSpace(batchID) == "" {
		return "", ErrMissingBatchID
	}

	for idx, r := range records {
		if r.BatchID != batchID {
			return "", fmt.Errorf("%w: record %d has %q, first record has %q", ErrMixedBatchID, idx+1, r.BatchID, batchID)
		}
	}

	return batchID, nil
}
