package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/shandysiswandi/simtrack/internal/pkg/pkgerror"
	"github.com/shandysiswandi/simtrack/internal/sim/entity"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

var (
	errCardSold        = pkgerror.NewBusiness("sim card is already sold", pkgerror.CodeConflict)
	errCardAssigned    = pkgerror.NewBusiness("sim card is assigned to another user", pkgerror.CodeConflict)
	errCardNotAssigned = pkgerror.NewBusiness("sim card is not assigned", pkgerror.CodeConflict)
)

func (u *Usecase) ListCards(ctx context.Context, filter CardFilter, page, pageSize int) (CardsResult, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return CardsResult{}, pkgerror.NewInvalidFields(errors.New("invalid filter"), map[string]string{
				"status": "invalid status: " + string(st),
			})
		}
	}

	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	cards, total, err := u.store.ListCards(ctx, filter, page, pageSize)
	if err != nil {
		return CardsResult{}, normalizeErr(err)
	}

	return CardsResult{Cards: cards, Page: page, PageSize: pageSize, Total: total}, nil
}

// AssignCard hands an in-stock card to a user. Assigning a card to the user
// who already holds it is a no-op.
func (u *Usecase) AssignCard(ctx context.Context, serial, userID string) (entity.SimCard, error) {
	serial, userID = strings.TrimSpace(serial), strings.TrimSpace(userID)
	if userID == "" {
		return entity.SimCard{}, pkgerror.NewInvalidFields(errors.New("invalid input"), map[string]string{
			"user_id": "user_id is required",
		})
	}

	return u.updateCard(ctx, serial, func(card *entity.SimCard) error {
		switch card.Status {
		case entity.SimStatusSold:
			return errCardSold
		case entity.SimStatusAssigned:
			if card.AssignedToUserID != nil && *card.AssignedToUserID == userID {
				return nil
			}
			return errCardAssigned
		}

		card.Status = entity.SimStatusAssigned
		card.AssignedToUserID = &userID
		return nil
	})
}

func (u *Usecase) UnassignCard(ctx context.Context, serial string) (entity.SimCard, error) {
	return u.updateCard(ctx, strings.TrimSpace(serial), func(card *entity.SimCard) error {
		switch card.Status {
		case entity.SimStatusSold:
			return errCardSold
		case entity.SimStatusInStock:
			return errCardNotAssigned
		}

		card.Status = entity.SimStatusInStock
		card.AssignedToUserID = nil
		return nil
	})
}

// SellCard records the sale of a card. The seller defaults to the user the
// card is assigned to.
func (u *Usecase) SellCard(ctx context.Context, serial string, in SaleInput) (entity.SimCard, error) {
	in.SoldByUserID = strings.TrimSpace(in.SoldByUserID)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if in.CustomerName == "" {
		return entity.SimCard{}, pkgerror.NewInvalidFields(errors.New("invalid input"), map[string]string{
			"customer_name": "customer_name is required",
		})
	}

	soldAt := u.clock.Now().Unix()
	return u.updateCard(ctx, strings.TrimSpace(serial), func(card *entity.SimCard) error {
		if card.Status == entity.SimStatusSold {
			return errCardSold
		}

		seller := in.SoldByUserID
		if seller == "" && card.AssignedToUserID != nil {
			seller = *card.AssignedToUserID
		}
		if seller == "" {
			return pkgerror.NewInvalidFields(errors.New("invalid input"), map[string]string{
				"sold_by_user_id": "sold_by_user_id is required for unassigned cards",
			})
		}

		card.Status = entity.SimStatusSold
		card.SoldByUserID = &seller
		card.CustomerName = in.CustomerName
		card.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
		card.SoldAt = soldAt
		return nil
	})
}

func (u *Usecase) updateCard(ctx context.Context, serial string, fn func(card *entity.SimCard) error) (entity.SimCard, error) {
	if serial == "" {
		return entity.SimCard{}, pkgerror.NewInvalidInput(errors.New("serial number is required"))
	}

	if err := u.store.UpdateCard(ctx, serial, fn); err != nil {
		return entity.SimCard{}, mapStoreErr(err, "sim card")
	}

	card, err := u.store.GetCard(ctx, serial)
	if err != nil {
		return entity.SimCard{}, mapStoreErr(err, "sim card")
	}

	return card, nil
}
