package bulk

import (
	"strings"

	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

// Sanitize normalizes a record before it is stored: optional foreign keys
// that are empty (or blank) become nil so the store writes NULL.
func Sanitize(card entity.SimCard) entity.SimCard {
	card.SerialNumber = strings.TrimSpace(card.SerialNumber)
	card.TeamID = nullIfEmpty(card.TeamID)
	card.AssignedToUserID = nullIfEmpty(card.AssignedToUserID)
	card.SoldByUserID = nullIfEmpty(card.SoldByUserID)
	if card.Status == "" {
		card.Status = entity.SimStatusInStock
	}
	return card
}

func sanitizeAll(cards []entity.SimCard) []entity.SimCard {
	out := make([]entity.SimCard, len(cards))
	for i, c := range cards {
		out[i] = Sanitize(c)
	}
	return out
}

func nullIfEmpty(v *string) *string {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil
	}
	s := strings.TrimSpace(*v)
	return &s
}
