package entity

type SimStatus string

const (
	SimStatusInStock  SimStatus = "IN_STOCK"
	SimStatusAssigned SimStatus = "ASSIGNED"
	SimStatusSold     SimStatus = "SOLD"
)

// Valid reports whether s is a known status.
func (s SimStatus) Valid() bool {
	switch s {
	case SimStatusInStock, SimStatusAssigned, SimStatusSold:
		return true
	default:
		return false
	}
}

type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "QUEUED"
	BatchStatusProcessing BatchStatus = "PROCESSING"
	BatchStatusDone       BatchStatus = "DONE"
	BatchStatusFailed     BatchStatus = "FAILED"
)

type EventType string

const (
	EventBatchCompleted      EventType = "BATCH_COMPLETED"
	EventBatchFailed         EventType = "BATCH_FAILED"
	EventBatchRolledBack     EventType = "BATCH_ROLLED_BACK"
	EventBatchRollbackFailed EventType = "BATCH_ROLLBACK_FAILED"
)
