package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mybizz/mybizz/app/models"
)

// ProcessDiscount upserts a Paddle discount. Percentage discounts store a
// rate, flat discounts store amount and currency; the other side is nulled.
func (s *Service) ProcessDiscount(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[DiscountPayload](data)
	if err != nil {
		return failure("Invalid discount payload: %v", err), nil
	}
	discountType := strings.ToLower(strings.TrimSpace(p.Type))
	switch discountType {
	case models.DiscountTypePercentage, models.DiscountTypeFlat, models.DiscountTypeFlatPerSeat:
	default:
		return failure("Discount %s has unsupported type %q", p.ID, p.Type), nil
	}

	row, err := s.repo.FindDiscount(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		id, err := s.newSyntheticID(ctx, s.repo, IDKindDiscount)
		if err != nil {
			return Result{}, err
		}
		row = &models.Discount{DiscountID: id, PaddleID: p.ID, Status: "active"}
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("find discount %s: %w", p.ID, err)
	}

	row.DiscountType = discountType
	if discountType == models.DiscountTypePercentage {
		// Paddle sends the percentage in amount; rate is accepted as well.
		row.Rate = nullableString(p.Rate)
		if row.Rate == nil {
			row.Rate = nullableString(p.Amount)
		}
		row.Amount = nil
		row.CurrencyCode = nil
	} else {
		row.Rate = nil
		row.Amount = nullableString(p.Amount)
		row.CurrencyCode = nullableString(p.CurrencyCode)
	}

	setString(&row.Description, p.Description)
	row.Code = nullableString(p.Code)
	setBool(&row.EnabledForCheckout, p.EnabledForCheckout)
	setBool(&row.Recur, p.Recur)
	row.MaximumRecurringIntervals = nullableInt(p.MaximumRecurringIntervals)
	row.UsageLimit = nullableInt(p.UsageLimit)
	setInt(&row.TimesUsed, p.TimesUsed)
	row.ExpiresAt = nullableTime(p.ExpiresAt)
	setString(&row.Status, p.Status)
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)

	if err := s.repo.SaveDiscount(ctx, row); err != nil {
		return Result{}, fmt.Errorf("save discount %s: %w", p.ID, err)
	}
	return success("Discount %s %s (%s, %s)", p.ID, createdOrUpdated(created), row.DiscountID, discountType), nil
}
