package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkguid"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

type ActivityWriter interface {
	AppendActivity(ctx context.Context, act entity.Activity) error
}

// AuditHandler records every batch event as an activity line.
type AuditHandler struct {
	writer ActivityWriter
	id     pkguid.NumberID
	now    func() time.Time
}

func NewAuditHandler(writer ActivityWriter, id pkguid.NumberID) *AuditHandler {
	return &AuditHandler{writer: writer, id: id, now: time.Now}
}

func (h *AuditHandler) Handle(ctx context.Context, event entity.BatchEvent) error {
	if event.EventID == "" {
		return errors.New("missing event id")
	}

	act := entity.Activity{
		ID:        h.id.Generate(),
		BatchID:   event.BatchID,
		Kind:      event.Type,
		Detail:    describe(event),
		CreatedAt: h.now().Unix(),
	}
	if err := h.writer.AppendActivity(ctx, act); err != nil {
		return err
	}

	level := slog.LevelInfo
	if event.Type == entity.EventBatchRollbackFailed {
		level = slog.LevelError
	}
	slog.Log(ctx, level, "batch event recorded", "event_id", event.EventID, "batch_id", event.BatchID, "type", event.Type)

	return nil
}

func describe(event entity.BatchEvent) string {
	detail := fmt.Sprintf("success=%d failed=%d", event.Success, event.Failed)
	if len(event.Errors) > 0 {
		detail += " errors=" + strings.Join(event.Errors, "; ")
	}
	return detail
}
