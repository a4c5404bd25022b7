package entity

type Batch struct {
	ID        string
	Status    BatchStatus
	Err       string
	StartedAt int64
	EndedAt   int64

	Total         int64
	Inserted      int64
	Failed        int64
	Percent       int
	RollbackState string
}

// Activity is one audit trail line.
type Activity struct {
	ID        int64
	BatchID   string
	Kind      EventType
	Detail    string
	CreatedAt int64
}

// BatchEvent is published when an upload batch reaches a terminal state.
type BatchEvent struct {
	EventID  string
	BatchID  string
	Type     EventType
	Success  int64
	Failed   int64
	Errors   []string
	Occurred int64
}
