package entity

// SimCard is one stocked SIM card. Optional foreign keys are nil when absent
// so they are stored as NULL.
type SimCard struct {
	ID               int64
	SerialNumber     string
	BatchID          string
	LotNumber        string
	Status           SimStatus
	TeamID           *string
	AssignedToUserID *string
	SoldByUserID     *string
	CustomerName     string
	CustomerPhone    string
	SoldAt           int64
	CreatedAt        int64
}
