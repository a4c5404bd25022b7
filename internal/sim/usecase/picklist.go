package usecase

import (
	"bufio"
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
)

const maxPicklistBytes = 1 << 20

var (
	// "Lot: L-2024-01", "LOT NO. 77A1", "lot number #ABC123".
	lotPattern = regexp.MustCompile(`(?i)\blot\s*(?:no\.?|number|#)?\s*[:#-]?\s*([A-Z0-9][A-Z0-9-]{2,})`)
	// ICCIDs carry the telecom industry prefix 89 and are 19 or 20 digits long.
	serialPattern = regexp.MustCompile(`\b89\d{17,18}\b`)
)

// ParsePicklist extracts lot numbers and ICCID serials from pasted picklist
// text. A serial belongs to the last lot header seen above it; serials that
// appear before any header are only listed in Serials.
func (u *Usecase) ParsePicklist(ctx context.Context, text string) (PicklistResult, error) {
	if strings.TrimSpace(text) == "" {
		return PicklistResult{}, pkgerror.NewInvalidInput(errors.New("picklist text is required"))
	}
	if len(text) > maxPicklistBytes {
		return PicklistResult{}, pkgerror.NewTooLarge(maxPicklistBytes)
	}

	res := PicklistResult{Lots: []PicklistLot{}, Serials: []string{}}
	seenSerial := map[string]struct{}{}
	lotIndex := map[string]int{}
	current := -1

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), maxPicklistBytes)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return PicklistResult{}, err
		}

		line := scanner.Text()
		if lot, ok := lastLot(line); ok {
			idx, seen := lotIndex[lot]
			if !seen {
				idx = len(res.Lots)
				lotIndex[lot] = idx
				res.Lots = append(res.Lots, PicklistLot{Lot: lot, Serials: []string{}})
			}
			current = idx
		}

		for _, serial := range serialPattern.FindAllString(line, -1) {
			if _, dup := seenSerial[serial]; dup {
				continue
			}
			seenSerial[serial] = struct{}{}
			res.Serials = append(res.Serials, serial)
			if current >= 0 {
				res.Lots[current].Serials = append(res.Lots[current].Serials, serial)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return PicklistResult{}, pkgerror.NewInvalidInput(err)
	}

	return res, nil
}

// lastLot returns the last lot code on the line. Codes without a digit are
// ordinary words ("lot received") and are ignored.
func lastLot(line string) (string, bool) {
	matches := lotPattern.FindAllStringSubmatch(line, -1)
	for i := len(matches) - 1; i >= 0; i-- {
		code := strings.ToUpper(strings.Trim(matches[i][1], "-"))
		if strings.ContainsAny(code, "0123456789") {
			return code, true
		}
	}
	return "", false
}
