package bulk

import (
	"errors"
	"fmt"
)

// ErrCallerContract is matched (errors.Is) by every input validation error.
// These errors are returned before any chunk is attempted.
var ErrCallerContract = errors.New("bulk: caller contract violated")

var (
	ErrInvalidChunkSize = fmt.Errorf("%w: chunk size must be positive", ErrCallerContract)
	ErrMissingBatchID   = fmt.Errorf("%w: batch id is required", ErrCallerContract)
	ErrMixedBatchID     = fmt.Errorf("%w: records must share one batch id", ErrCallerContract)
)

// ChunkInsertError reports a chunk the store rejected.
type ChunkInsertError struct {
	Index  int // zero-based chunk index
	Offset int // index of the chunk's first record in the input
	Size   int
	Err    error
}

func (e *ChunkInsertError) Error() string {
	return fmt.Sprintf("insert chunk %d (records %d-%d): %v", e.Index+1, e.Offset+1, e.Offset+e.Size, e.Err)
}

func (e *ChunkInsertError) Unwrap() error {
	return e.Err
}

// RollbackDeleteError reports a failed compensating delete. Records of the
// batch may be left behind.
type RollbackDeleteError struct {
	BatchID string
	Err     error
}

func (e *RollbackDeleteError) Error() string {
	return fmt.Sprintf("rollback batch %s: %v", e.BatchID, e.Err)
}

func (e *RollbackDeleteError) Unwrap() error {
	return e.Err
}
