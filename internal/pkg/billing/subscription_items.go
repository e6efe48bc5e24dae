package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
)

// ItemReconcileSummary counts what a reconciliation pass did.
type ItemReconcileSummary struct {
	Upserted    int
	Skipped     int
	Deactivated int
}

func (s ItemReconcileSummary) String() string {
	return fmt.Sprintf("items: %d upserted, %d skipped, %d deactivated", s.Upserted, s.Skipped, s.Deactivated)
}

// reconcileSubscriptionItems upserts the payload items by line item id and
// marks active local items missing from the payload as inactive.
func reconcileSubscriptionItems(ctx context.Context, repo Repository, sub *models.Subscription, items []SubscriptionItemPayload) (ItemReconcileSummary, error) {
	var summary ItemReconcileSummary

	existing, err := repo.ListSubscriptionItems(ctx, sub.ID)
	if err != nil {
		return summary, fmt.Errorf("list items of subscription %s: %w", sub.PaddleID, err)
	}
	byLineID := make(map[string]*models.SubscriptionItem, len(existing))
	for i := range existing {
		byLineID[existing[i].LineItemID] = &existing[i]
	}

	seen := make(map[string]bool, len(items))
	for _, it := range items {
		lineID := strings.TrimSpace(it.ID)
		if lineID != "" {
			seen[lineID] = true
		}
		priceID := it.PricePaddleID()
		if lineID == "" || priceID == "" {
			log.Warnf("[Billing] Subscription %s: skipping item without id or price id (id=%q, price=%q)", sub.PaddleID, lineID, priceID)
			summary.Skipped++
			continue
		}

		price, err := repo.FindPrice(ctx, priceID)
		if isNotFound(err) {
			log.Warnf("[Billing] Subscription %s: skipping item %s, price %s not mirrored locally", sub.PaddleID, lineID, priceID)
			summary.Skipped++
			continue
		}
		if err != nil {
			return summary, fmt.Errorf("find price %s: %w", priceID, err)
		}

		row, ok := byLineID[lineID]
		if !ok {
			row = &models.SubscriptionItem{SubscriptionRefID: sub.ID, LineItemID: lineID}
		}
		row.PriceRefID = price.ID
		row.PricePaddleID = price.PaddleID
		if it.Quantity > 0 {
			row.Quantity = it.Quantity
		} else if row.Quantity == 0 {
			row.Quantity = 1
		}
		if it.Recurring != nil {
			row.Recurring = *it.Recurring
		} else if !ok {
			row.Recurring = true
		}
		row.PaddleStatus = firstNonEmpty(it.Status, row.PaddleStatus)
		row.Status = models.SubscriptionItemActive
		row.NextBilledAt = nullableTime(it.NextBilledAt)
		setTime(&row.PreviouslyBilledAt, it.PreviouslyBilledAt)

		if err := repo.SaveSubscriptionItem(ctx, row); err != nil {
			return summary, fmt.Errorf("save subscription item %s: %w", lineID, err)
		}
		summary.Upserted++
	}

	for i := range existing {
		row := &existing[i]
		if row.Status != models.SubscriptionItemActive || seen[row.LineItemID] {
			continue
		}
		row.Status = models.SubscriptionItemInactive
		if err := repo.SaveSubscriptionItem(ctx, row); err != nil {
			return summary, fmt.Errorf("deactivate subscription item %s: %w", row.LineItemID, err)
		}
		summary.Deactivated++
	}
	return summary, nil
}
