package bulk

import (
	"errors"
	"fmt"
)

// Result is the outcome of one Run. It is built once, at the end.
type Result struct {
	BatchID string
	Success int
	Failed  int
	Errors  []error
	State   State

	// Committed counts records that were stored before a failure and then
	// targeted by the rollback. Zero on success.
	Committed int
}

func completed(batchID string, inserted int) Result {
	return Result{
		BatchID: batchID,
		Success: inserted,
		Failed:  0,
		Errors:  []error{},
		State:   StateCompleted,
	}
}

// failed reports the whole input as failed, whatever chunk broke: a batch
// that was rolled back is never partially successful.
func failed(batchID string, total, committed int, state State, errs []error) Result {
	return Result{
		BatchID:   batchID,
		Success:   0,
		Failed:    total,
		Errors:    errs,
		State:     state,
		Committed: committed,
	}
}

// OK reports whether every record was stored.
func (r Result) OK() bool {
	return r.State == StateCompleted
}

// Err joins all collected errors, or returns nil.
func (r Result) Err() error {
	return errors.Join(r.Errors...)
}

// ErrorMessages renders Errors for transport.
func (r Result) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// Message is a one-line human readable summary.
func (r Result) Message() string {
	switch r.State {
	case StateCompleted:
		return fmt.Sprintf("%d sim cards inserted", r.Success)
	case StateRolledBack:
		return fmt.Sprintf("upload failed and %d committed sim cards were rolled back: %v", r.Committed, r.Errors[0])
	case StateRollbackFailed:
		return fmt.Sprintf("upload failed and rollback of batch %s failed, records may remain: %v", r.BatchID, r.Errors[0])
	default:
		if len(r.Errors) > 0 {
			return fmt.Sprintf("upload failed: %v", r.Errors[0])
		}
		return "upload failed"
	}
}
