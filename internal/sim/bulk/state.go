package bulk

// State is the lifecycle of one Run.
//
//	RUNNING -> COMPLETED
//	RUNNING -> FAILED                                  (nothing committed)
//	RUNNING -> FAILED -> ROLLING_BACK -> ROLLED_BACK
//	RUNNING -> FAILED -> ROLLING_BACK -> ROLLBACK_FAILED
type State string

const (
	StateRunning        State = "RUNNING"
	StateCompleted      State = "COMPLETED"
	StateFailed         State = "FAILED"
	StateRollingBack    State = "ROLLING_BACK"
	StateRolledBack     State = "ROLLED_BACK"
	StateRollbackFailed State = "ROLLBACK_FAILED"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateRolledBack, StateRollbackFailed:
		return true
	default:
		return false
	}
}
