package inbound

import (
	"net/http"

	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

type SimCardRecord struct {
	SerialNumber     string           `json:"serial_number"`
	BatchID          string           `json:"batch_id"`
	LotNumber        string           `json:"lot_number"`
	Status           entity.SimStatus `json:"status"`
	TeamID           *string          `json:"team_id"`
	AssignedToUserID *string          `json:"assigned_to_user_id"`
	SoldByUserID     *string          `json:"sold_by_user_id"`
	CustomerName     string           `json:"customer_name"`
	CustomerPhone    string           `json:"customer_phone"`
}

type BulkInsertRequest struct {
	BatchID   string          `json:"batch_id"`
	ChunkSize int             `json:"chunk_size"`
	Records   []SimCardRecord `json:"records"`
}

// BulkInsertResponse is returned for both outcomes of a bulk insert; a
// rolled back batch is reported with 422 and ok=false.
type BulkInsertResponse struct {
	OK      bool     `json:"ok"`
	BatchID string   `json:"batch_id"`
	State   string   `json:"state"`
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
	Error   string   `json:"error,omitempty"`
	message string
}

func (r BulkInsertResponse) StatusCode() int {
	if r.OK {
		return http.StatusOK
	}
	return http.StatusUnprocessableEntity
}

func (r BulkInsertResponse) Message() string {
	return r.message
}

type UploadResponse struct {
	BatchID string `json:"batch_id"`
}

func (UploadResponse) StatusCode() int {
	return http.StatusAccepted
}

func (UploadResponse) Message() string {
	return "upload accepted"
}

type BatchResponse struct {
	BatchID       string             `json:"batch_id"`
	Status        entity.BatchStatus `json:"status"`
	Error         string             `json:"error,omitempty"`
	Total         int64              `json:"total"`
	Inserted      int64              `json:"inserted"`
	Failed        int64              `json:"failed"`
	Percent       int                `json:"percent"`
	RollbackState string             `json:"rollback_state,omitempty"`
	StartedAt     int64              `json:"started_at,omitempty"`
	EndedAt       int64              `json:"ended_at,omitempty"`
}

type SimCard struct {
	ID               int64            `json:"id,string"`
	SerialNumber     string           `json:"serial_number"`
	BatchID          string           `json:"batch_id"`
	LotNumber        string           `json:"lot_number"`
	Status           entity.SimStatus `json:"status"`
	TeamID           *string          `json:"team_id"`
	AssignedToUserID *string          `json:"assigned_to_user_id"`
	SoldByUserID     *string          `json:"sold_by_user_id"`
	CustomerName     string           `json:"customer_name,omitempty"`
	CustomerPhone    string           `json:"customer_phone,omitempty"`
	SoldAt           int64            `json:"sold_at,omitempty"`
	CreatedAt        int64            `json:"created_at"`
}

type ListCardsResponse struct {
	Cards    []SimCard `json:"cards"`
	page     int
	pageSize int
	total    int
}

func (r ListCardsResponse) Meta() map[string]any {
	return map[string]any{
		"page":      r.page,
		"page_size": r.pageSize,
		"total":     r.total,
	}
}

type AssignRequest struct {
	UserID string `json:"user_id"`
}

type SellRequest struct {
	SoldByUserID  string `json:"sold_by_user_id"`
	CustomerName  string `json:"customer_name"`
	CustomerPhone string `json:"customer_phone"`
}

type PicklistRequest struct {
	Text string `json:"text"`
}

type PicklistLot struct {
	Lot     string   `json:"lot"`
	Serials []string `json:"serials"`
}

type PicklistResponse struct {
	Lots    []PicklistLot `json:"lots"`
	Serials []string      `json:"serials"`
}

type Activity struct {
	ID        int64            `json:"id,string"`
	Kind      entity.EventType `json:"kind"`
	Detail    string           `json:"detail"`
	CreatedAt int64            `json:"created_at"`
}

type ActivitiesResponse struct {
	BatchID    string     `json:"batch_id"`
	Activities []Activity `json:"activities"`
}
