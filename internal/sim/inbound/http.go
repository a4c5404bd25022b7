package inbound

import (
	"context"
	"io"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

type uc interface {
	BulkInsert(ctx context.Context, in usecase.BulkInsertInput) (usecase.BulkInsertResult, error)
	Upload(ctx context.Context, r io.Reader) (usecase.UploadResult, error)
	Batch(ctx context.Context, batchID string) (usecase.BatchResult, error)
	Activities(ctx context.Context, batchID string) ([]entity.Activity, error)
	ListCards(ctx context.Context, filter usecase.CardFilter, page, pageSize int) (usecase.CardsResult, error)
	AssignCard(ctx context.Context, serial, userID string) (entity.SimCard, error)
	UnassignCard(ctx context.Context, serial string) (entity.SimCard, error)
	SellCard(ctx context.Context, serial string, in usecase.SaleInput) (entity.SimCard, error)
	ParsePicklist(ctx context.Context, text string) (usecase.PicklistResult, error)
}

// RegisterHTTPEndpoint mounts the sim card routes. maxBodyBytes caps every
// request body; zero or less means no cap.
func RegisterHTTPEndpoint(r *pkgrouter.Router, uc uc, maxBodyBytes int64) {
	end := &HTTPEndpoint{uc: uc}
	limit := pkgrouter.LimitBody(maxBodyBytes)

	r.POST("/sim-cards/bulk", end.BulkInsert, limit)
	r.POST("/sim-cards/uploads", end.Upload, limit)
	r.GET("/sim-cards/uploads/:batch_id", end.Batch)
	r.GET("/sim-cards/uploads/:batch_id/activities", end.Activities)

	r.GET("/sim-cards", end.ListCards) // ?batch_id=&status=&page=&page_size=
	r.PATCH("/sim-cards/:serial/assign", end.AssignCard, limit)
	r.PATCH("/sim-cards/:serial/unassign", end.UnassignCard)
	r.PATCH("/sim-cards/:serial/sell", end.SellCard, limit)

	r.POST("/picklists/parse", end.ParsePicklist, limit)
}
