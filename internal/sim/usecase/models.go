package usecase

import (
	"slices"

	"github.com/shandysiswandi/simtrack/internal/sim/bulk"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

type BulkInsertInput struct {
	BatchID    string
	ChunkSize  int
	Records    []entity.SimCard
	OnProgress bulk.ProgressFunc
}

type BulkInsertResult struct {
	BatchID string
	OK      bool
	State   bulk.State
	Success int
	Failed  int
	Errors  []string
	Message string
}

type UploadResult struct {
	BatchID string
}

type BatchResult struct {
	Batch entity.Batch
}

type CardsResult struct {
	Cards    []entity.SimCard
	Page     int
	PageSize int
	Total    int
}

type PicklistLot struct {
	Lot     string
	Serials []string
}

type PicklistResult struct {
	Lots    []PicklistLot
	Serials []string
}

type CardFilter struct {
	BatchID  string
	Statuses []entity.SimStatus
}

func (f CardFilter) Matches(card entity.SimCard) bool {
	if f.BatchID != "" && card.BatchID != f.BatchID {
		return false
	}

	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, card.Status) {
		return false
	}

	return true
}

type SaleInput struct {
	SoldByUserID  string
	CustomerName  string
	CustomerPhone string
}
