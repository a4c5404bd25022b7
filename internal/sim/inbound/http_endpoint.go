package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/pkg/pkgrouter"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
	"github.com/shandysiswandi/simtrack/internal/sim/usecase"
)

// HTTPEndpoint adapts the usecase to pkgrouter handlers. Body size caps are
// applied by pkgrouter.LimitBody at registration; handlers only translate
// the resulting *http.MaxBytesError.
type HTTPEndpoint struct {
	uc uc
}

func (h *HTTPEndpoint) BulkInsert(ctx context.Context, r *http.Request) (any, error) {
	var req BulkInsertRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return nil, err
	}

	records := make([]entity.SimCard, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, entity.SimCard{
			SerialNumber:     rec.SerialNumber,
			BatchID:          strings.TrimSpace(rec.BatchID),
			LotNumber:        strings.TrimSpace(rec.LotNumber),
			Status:           entity.SimStatus(strings.ToUpper(strings.TrimSpace(string(rec.Status)))),
			TeamID:           rec.TeamID,
			AssignedToUserID: rec.AssignedToUserID,
			SoldByUserID:     rec.SoldByUserID,
			CustomerName:     strings.TrimSpace(rec.CustomerName),
			CustomerPhone:    strings.TrimSpace(rec.CustomerPhone),
		})
	}

	result, err := h.uc.BulkInsert(ctx, usecase.BulkInsertInput{
		BatchID:   strings.TrimSpace(req.BatchID),
		ChunkSize: req.ChunkSize,
		Records:   records,
	})
	if err != nil {
		return nil, err
	}

	resp := BulkInsertResponse{
		OK:      result.OK,
		BatchID: result.BatchID,
		State:   string(result.State),
		Success: result.Success,
		Failed:  result.Failed,
		Errors:  result.Errors,
		message: result.Message,
	}
	if !result.OK {
		resp.Error = result.Message
	}

	return resp, nil
}

func (h *HTTPEndpoint) Upload(ctx context.Context, r *http.Request) (any, error) {
	reader, cleanup, err := extractCSVReader(r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pr, pw := io.Pipe()
	result, err := h.uc.Upload(ctx, pr)
	if err != nil {
		_ = pr.Close()
		_ = pw.Close()
		return nil, err
	}

	if err := streamToPipe(reader, pw); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, pkgerror.NewTooLarge(tooLarge.Limit)
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// the background task gave up on the batch, usually at shutdown
			return nil, pkgerror.NewUnavailable(err)
		}
		return nil, pkgerror.NewServer(err)
	}

	return UploadResponse{BatchID: result.BatchID}, nil
}

func (h *HTTPEndpoint) Batch(ctx context.Context, r *http.Request) (any, error) {
	batchID, err := pkgrouter.RequiredParam(ctx, "batch_id")
	if err != nil {
		return nil, err
	}

	result, err := h.uc.Batch(ctx, batchID)
	if err != nil {
		return nil, err
	}

	meta := result.Batch
	return BatchResponse{
		BatchID:       meta.ID,
		Status:        meta.Status,
		Error:         meta.Err,
		Total:         meta.Total,
		Inserted:      meta.Inserted,
		Failed:        meta.Failed,
		Percent:       meta.Percent,
		RollbackState: meta.RollbackState,
		StartedAt:     meta.StartedAt,
		EndedAt:       meta.EndedAt,
	}, nil
}

func (h *HTTPEndpoint) Activities(ctx context.Context, r *http.Request) (any, error) {
	batchID, err := pkgrouter.RequiredParam(ctx, "batch_id")
	if err != nil {
		return nil, err
	}

	acts, err := h.uc.Activities(ctx, batchID)
	if err != nil {
		return nil, err
	}

	out := make([]Activity, 0, len(acts))
	for _, act := range acts {
		out = append(out, Activity{ID: act.ID, Kind: act.Kind, Detail: act.Detail, CreatedAt: act.CreatedAt})
	}

	return ActivitiesResponse{BatchID: batchID, Activities: out}, nil
}

func (h *HTTPEndpoint) ListCards(ctx context.Context, r *http.Request) (any, error) {
	query := r.URL.Query()

	page, pageSize, err := parsePagination(query.Get("page"), query.Get("page_size"))
	if err != nil {
		return nil, err
	}

	filter := usecase.CardFilter{
		BatchID:  strings.TrimSpace(query.Get("batch_id")),
		Statuses: parseStatuses(query.Get("status")),
	}

	result, err := h.uc.ListCards(ctx, filter, page, pageSize)
	if err != nil {
		return nil, err
	}

	cards := make([]SimCard, 0, len(result.Cards))
	for _, card := range result.Cards {
		cards = append(cards, toHTTPSimCard(card))
	}

	return ListCardsResponse{
		Cards:    cards,
		page:     result.Page,
		pageSize: result.PageSize,
		total:    result.Total,
	}, nil
}

func (h *HTTPEndpoint) AssignCard(ctx context.Context, r *http.Request) (any, error) {
	serial, err := pkgrouter.RequiredParam(ctx, "serial")
	if err != nil {
		return nil, err
	}

	var req AssignRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return nil, err
	}

	card, err := h.uc.AssignCard(ctx, serial, req.UserID)
	if err != nil {
		return nil, err
	}

	return toHTTPSimCard(card), nil
}

func (h *HTTPEndpoint) UnassignCard(ctx context.Context, r *http.Request) (any, error) {
	serial, err := pkgrouter.RequiredParam(ctx, "serial")
	if err != nil {
		return nil, err
	}

	card, err := h.uc.UnassignCard(ctx, serial)
	if err != nil {
		return nil, err
	}

	return toHTTPSimCard(card), nil
}

func (h *HTTPEndpoint) SellCard(ctx context.Context, r *http.Request) (any, error) {
	serial, err := pkgrouter.RequiredParam(ctx, "serial")
	if err != nil {
		return nil, err
	}

	var req SellRequest
	if err := h.decodeJSON(r, &req); err != nil {
		return nil, err
	}

	card, err := h.uc.SellCard(ctx, serial, usecase.SaleInput{
		SoldByUserID:  req.SoldByUserID,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
	})
	if err != nil {
		return nil, err
	}

	return toHTTPSimCard(card), nil
}

// ParsePicklist accepts either a JSON body {"text": ...} or the raw text.
func (h *HTTPEndpoint) ParsePicklist(ctx context.Context, r *http.Request) (any, error) {
	var text string
	if isJSON(r) {
		var req PicklistRequest
		if err := h.decodeJSON(r, &req); err != nil {
			return nil, err
		}
		text = req.Text
	} else {
		body, err := h.readBody(r)
		if err != nil {
			return nil, err
		}
		text = string(body)
	}

	result, err := h.uc.ParsePicklist(ctx, text)
	if err != nil {
		return nil, err
	}

	lots := make([]PicklistLot, 0, len(result.Lots))
	for _, lot := range result.Lots {
		lots = append(lots, PicklistLot{Lot: lot.Lot, Serials: lot.Serials})
	}

	return PicklistResponse{Lots: lots, Serials: result.Serials}, nil
}

func (h *HTTPEndpoint) decodeJSON(r *http.Request, dst any) error {
	body, err := h.readBody(r)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return pkgerror.NewInvalidFormat()
	}

	return nil
}

func (h *HTTPEndpoint) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, pkgerror.NewTooLarge(tooLarge.Limit)
		}
		return nil, pkgerror.NewInvalidFormat()
	}
	if len(body) == 0 {
		return nil, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	return body, nil
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.EqualFold(mediaType, "application/json")
}

func parsePagination(pageRaw, sizeRaw string) (int, int, error) {
	page := 1
	pageSize := 20

	if pageRaw != "" {
		value, err := strconv.Atoi(pageRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page"))
		}
		page = value
	}

	if sizeRaw != "" {
		value, err := strconv.Atoi(sizeRaw)
		if err != nil || value < 1 {
			return 0, 0, pkgerror.NewInvalidInput(errors.New("invalid page_size"))
		}
		pageSize = value
	}

	return page, pageSize, nil
}

// parseStatuses splits a comma separated list; validation is left to the
// usecase.
func parseStatuses(raw string) []entity.SimStatus {
	var out []entity.SimStatus
	for _, value := range strings.Split(raw, ",") {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		out = append(out, entity.SimStatus(strings.ToUpper(value)))
	}
	return out
}

func toHTTPSimCard(card entity.SimCard) SimCard {
	return SimCard{
		ID:               card.ID,
		SerialNumber:     card.SerialNumber,
		BatchID:          card.BatchID,
		LotNumber:        card.LotNumber,
		Status:           card.Status,
		TeamID:           card.TeamID,
		AssignedToUserID: card.AssignedToUserID,
		SoldByUserID:     card.SoldByUserID,
		CustomerName:     card.CustomerName,
		CustomerPhone:    card.CustomerPhone,
		SoldAt:           card.SoldAt,
		CreatedAt:        card.CreatedAt,
	}
}

func extractCSVReader(r *http.Request) (io.ReadCloser, func(), error) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err == nil && strings.EqualFold(mediaType, "multipart/form-data") {
			return extractMultipartFile(r)
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return nil, func() {}, pkgerror.NewInvalidInput(errors.New("empty request body"))
	}

	return r.Body, func() {}, nil
}

func extractMultipartFile(r *http.Request) (io.ReadCloser, func(), error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, func() {}, pkgerror.NewInvalidFormat()
	}

	for {
		part, err := reader.NextPart()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, func() {}, pkgerror.NewInvalidInput(errors.New("file part is required"))
			}
			return nil, func() {}, pkgerror.NewInvalidFormat()
		}

		if part.FormName() == "file" {
			return part, func() { _ = part.Close() }, nil
		}
		_ = part.Close()
	}
}

func streamToPipe(src io.Reader, dst *io.PipeWriter) error {
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.CloseWithError(err)
		return err
	}

	return dst.Close()
}
