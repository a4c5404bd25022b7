package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

const maxSerialLen = 32

// csv columns, matched case-insensitively against the header row.
const (
	colSerial     = "serial_number"
	colLot        = "lot_number"
	colStatus     = "status"
	colTeam       = "team_id"
	colAssignedTo = "assigned_to_user_id"
	colSoldBy     = "sold_by_user_id"
	colCustomer   = "customer_name"
	colPhone      = "customer_phone"
)

var errMissingSerialColumn = errors.New("csv header must contain " + colSerial)

// lineErrors maps a location ("line_3", "records[2].status") to a message.
type lineErrors map[string]string

func (e lineErrors) Error() string {
	keys := slices.Sorted(maps.Keys(e))

	parts := make([]string, 0, 5)
	for i, k := range keys {
		if i == 5 {
			parts = append(parts, fmt.Sprintf("and %d more", len(keys)-i))
			break
		}
		parts = append(parts, k+": "+e[k])
	}

	return "invalid records: " + strings.Join(parts, "; ")
}

// parseCSV reads every row before returning so that a bad row rejects the
// whole upload. Row problems are collected in lineErrors; a malformed
// stream returns err, after draining r.
func parseCSV(ctx context.Context, r io.Reader) ([]entity.SimCard, lineErrors, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, nil
	}
	if err != nil {
		drain(r)
		return nil, nil, fmt.Errorf("read csv header: %w", err)
	}

	cols := indexHeader(header)
	if _, ok := cols[colSerial]; !ok {
		drain(r)
		return nil, nil, errMissingSerialColumn
	}

	var cards []entity.SimCard
	errs := lineErrors{}

	for {
		if err := ctx.Err(); err != nil {
			drain(r)
			return cards, errs, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			drain(r)
			return cards, errs, fmt.Errorf("read csv: %w", err)
		}

		line, _ := reader.FieldPos(0)
		card, err := parseRecord(record, cols)
		if err != nil {
			errs[fmt.Sprintf("line_%d", line)] = err.Error()
			continue
		}

		cards = append(cards, card)
	}

	if len(errs) == 0 {
		errs = nil
	}

	return cards, errs, nil
}

func indexHeader(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	return cols
}

func parseRecord(record []string, cols map[string]int) (entity.SimCard, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	optional := func(name string) *string {
		v := field(name)
		return &v
	}

	serial := field(colSerial)
	if err := checkSerial(serial); err != nil {
		return entity.SimCard{}, err
	}

	status, err := parseStatus(field(colStatus))
	if err != nil {
		return entity.SimCard{}, err
	}

	// Empty optional ids stay as empty strings here; the bulk inserter turns
	// them into NULLs.
	return entity.SimCard{
		SerialNumber:     serial,
		LotNumber:        field(colLot),
		Status:           status,
		TeamID:           optional(colTeam),
		AssignedToUserID: optional(colAssignedTo),
		SoldByUserID:     optional(colSoldBy),
		CustomerName:     field(colCustomer),
		CustomerPhone:    field(colPhone),
	}, nil
}

func parseStatus(value string) (entity.SimStatus, error) {
	if value == "" {
		return "", nil
	}

	status := entity.SimStatus(strings.ToUpper(value))
	if !status.Valid() {
		return "", fmt.Errorf("invalid status: %s", value)
	}

	return status, nil
}

func checkSerial(serial string) error {
	serial = strings.TrimSpace(serial)
	switch {
	case serial == "":
		return errors.New("serial number is required")
	case len(serial) > maxSerialLen:
		return fmt.Errorf("serial number longer than %d characters", maxSerialLen)
	}
	return nil
}

// validateRecords checks records coming from JSON callers. Duplicate serials
// are left to the store so they fail the chunk that carries them.
func validateRecords(records []entity.SimCard) map[string]string {
	fields := map[string]string{}
	for i, rec := range records {
		if err := checkSerial(rec.SerialNumber); err != nil {
			fields[fmt.Sprintf("records[%d].serial_number", i)] = err.Error()
		}
		if rec.Status != "" && !rec.Status.Valid() {
			fields[fmt.Sprintf("records[%d].status", i)] = "invalid status: " + string(rec.Status)
		}
	}
	return fields
}

func drain(r io.Reader) {
	_, _ = io.Copy(io.Discard, r)
}

// abandon stops whoever writes into r when r can carry an error back to
// them, and drains r otherwise.
func abandon(r io.Reader, cause error) {
	if c, ok := r.(interface{ CloseWithError(err error) error }); ok {
		_ = c.CloseWithError(cause)
		return
	}
	drain(r)
}
