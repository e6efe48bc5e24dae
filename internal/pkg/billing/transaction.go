package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
)

var failedTransactionStatuses = map[string]bool{
	"failed":         true,
	"payment_failed": true,
	"declined":       true,
}

// IsFailedTransactionStatus reports whether a Paddle transaction status
// means the payment failed.
func IsFailedTransactionStatus(status string) bool {
	return failedTransactionStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// ProcessTransaction upserts a transaction with its line items and records
// a FailedTransaction when the payment failed.
func (s *Service) ProcessTransaction(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[TransactionPayload](data)
	if err != nil {
		return failure("Invalid transaction payload: %v", err), nil
	}

	var row *models.Transaction
	res, err := s.inTx(ctx, func(repo Repository) (Result, error) {
		var res Result
		var err error
		row, res, err = s.upsertTransaction(ctx, repo, p)
		return res, err
	})
	if err != nil || !res.OK {
		return res, err
	}

	if IsFailedTransactionStatus(p.Status) {
		ftID, err := s.recordFailedTransaction(ctx, row, p)
		if err != nil {
			return Result{}, err
		}
		res.Detail += fmt.Sprintf("; failed payment logged (%s)", ftID)
	}
	return res, nil
}

func (s *Service) upsertTransaction(ctx context.Context, repo Repository, p *TransactionPayload) (*models.Transaction, Result, error) {
	row, err := repo.FindTransaction(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		id, err := s.newSyntheticID(ctx, repo, IDKindTransaction)
		if err != nil {
			return nil, Result{}, err
		}
		row = &models.Transaction{TransactionID: id, PaddleID: p.ID}
		created = true
	case err != nil:
		return nil, Result{}, fmt.Errorf("find transaction %s: %w", p.ID, err)
	}

	row.Status = strings.TrimSpace(p.Status)
	if cid := nullableString(p.CustomerID); cid != nil {
		row.CustomerPaddleID = cid
		if customer, err := repo.FindCustomer(ctx, *cid); err == nil {
			row.CustomerRefID = &customer.ID
		} else if !isNotFound(err) {
			return nil, Result{}, fmt.Errorf("find customer %s: %w", *cid, err)
		}
	}
	row.SubscriptionPaddleID = nullableString(p.SubscriptionID)
	row.InvoiceID = nullableString(p.InvoiceID)
	row.InvoiceNumber = nullableString(p.InvoiceNumber)
	row.DiscountPaddleID = nullableString(p.DiscountID)
	row.BilledAt = nullableTime(p.BilledAt)
	setString(&row.Origin, p.Origin)
	setString(&row.CollectionMode, p.CollectionMode)
	setString(&row.CurrencyCode, p.CurrencyCode)
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)

	var lineItems []TransactionLineItem
	if p.Details != nil {
		if t := p.Details.Totals; t != nil {
			setString(&row.Subtotal, t.Subtotal)
			setString(&row.DiscountTotal, t.Discount)
			setString(&row.TaxTotal, t.Tax)
			setString(&row.Total, t.Total)
			setString(&row.GrandTotal, t.GrandTotal)
			setString(&row.CurrencyCode, t.CurrencyCode)
			row.Fee = nullableString(t.Fee)
			row.Earnings = nullableString(t.Earnings)
		}
		lineItems = p.Details.LineItems
	}

	if err := repo.SaveTransaction(ctx, row); err != nil {
		return nil, Result{}, fmt.Errorf("save transaction %s: %w", p.ID, err)
	}

	saved, skipped, err := upsertTransactionItems(ctx, repo, row, lineItems)
	if err != nil {
		return nil, Result{}, err
	}
	detail := fmt.Sprintf("Transaction %s %s (%s, status %s, %d items", p.ID, createdOrUpdated(created), row.TransactionID, row.Status, saved)
	if skipped > 0 {
		detail += fmt.Sprintf(", %d skipped", skipped)
	}
	return row, success("%s)", detail), nil
}

// upsertTransactionItems saves each line item keyed by (transaction, line
// item id). Items without an id are skipped.
func upsertTransactionItems(ctx context.Context, repo Repository, parent *models.Transaction, items []TransactionLineItem) (int, int, error) {
	saved, skipped := 0, 0
	for _, li := range items {
		lineID := strings.TrimSpace(li.ID)
		if lineID == "" {
			log.Warnf("[Billing] Transaction %s: skipping line item without id (price %s)", parent.PaddleID, li.PriceID)
			skipped++
			continue
		}

		item, err := repo.FindTransactionItem(ctx, parent.ID, lineID)
		if isNotFound(err) {
			item = &models.TransactionItem{TransactionRefID: parent.ID, LineItemID: lineID}
		} else if err != nil {
			return saved, skipped, fmt.Errorf("find transaction item %s: %w", lineID, err)
		}

		item.PricePaddleID = firstNonEmpty(li.PriceID, item.PricePaddleID)
		item.PriceRefID = nil
		if item.PricePaddleID != "" {
			price, err := repo.FindPrice(ctx, item.PricePaddleID)
			switch {
			case err == nil:
				item.PriceRefID = &price.ID
			case isNotFound(err):
				log.Warnf("[Billing] Transaction %s: price %s of line item %s not mirrored locally", parent.PaddleID, item.PricePaddleID, lineID)
			default:
				return saved, skipped, fmt.Errorf("find price %s: %w", item.PricePaddleID, err)
			}
		}
		if li.Quantity > 0 {
			item.Quantity = li.Quantity
		} else if item.Quantity == 0 {
			item.Quantity = 1
		}
		if li.Product != nil {
			item.ProductPaddleID = firstNonEmpty(li.Product.ID, item.ProductPaddleID)
			item.ProductName = firstNonEmpty(li.Product.Name, item.ProductName)
		}
		if li.Totals != nil {
			item.Subtotal = firstNonEmpty(li.Totals.Subtotal, item.Subtotal)
			item.TaxTotal = firstNonEmpty(li.Totals.Tax, item.TaxTotal)
			item.Total = firstNonEmpty(li.Totals.Total, item.Total)
		}

		if err := repo.SaveTransactionItem(ctx, item); err != nil {
			return saved, skipped, fmt.Errorf("save transaction item %s: %w", lineID, err)
		}
		saved++
	}
	return saved, skipped, nil
}

// recordFailedTransaction upserts the review record for a failed payment.
func (s *Service) recordFailedTransaction(ctx context.Context, tx *models.Transaction, p *TransactionPayload) (string, error) {
	ft, err := s.repo.FindFailedTransaction(ctx, tx.ID)
	if isNotFound(err) {
		id, err := s.newSyntheticID(ctx, s.repo, IDKindFailedTransaction)
		if err != nil {
			return "", err
		}
		ft = &models.FailedTransaction{FailedTransactionID: id, TransactionRefID: tx.ID}
	} else if err != nil {
		return "", fmt.Errorf("find failed transaction for %s: %w", tx.PaddleID, err)
	}

	ft.TransactionPaddleID = tx.PaddleID
	ft.TransactionStatus = tx.Status
	ft.Status = models.FailedTransactionStatusLogged
	ft.FailureReason = failureReason(p)
	ft.ItemsSummary = itemsSummary(p)
	ft.Amount = firstNonEmpty(tx.GrandTotal, tx.Total)
	ft.CurrencyCode = tx.CurrencyCode
	if tx.CustomerPaddleID != nil {
		ft.CustomerPaddleID = *tx.CustomerPaddleID
		customer, err := s.repo.FindCustomer(ctx, *tx.CustomerPaddleID)
		switch {
		case err == nil:
			ft.CustomerEmail = customer.Email
			ft.CustomerName = strings.TrimSpace(customer.FirstName + " " + customer.LastName)
			if ft.CustomerName == "" && customer.FullName != nil {
				ft.CustomerName = *customer.FullName
			}
		case !isNotFound(err):
			return "", fmt.Errorf("find customer %s: %w", *tx.CustomerPaddleID, err)
		}
	}
	now := s.now().UTC()
	if tx.PaddleUpdatedAt != nil {
		now = *tx.PaddleUpdatedAt
	}
	ft.FailedAt = &now

	if err := s.repo.SaveFailedTransaction(ctx, ft); err != nil {
		return "", fmt.Errorf("save failed transaction for %s: %w", tx.PaddleID, err)
	}
	log.Warnf("[Billing] Payment failed for transaction %s: %s", tx.PaddleID, ft.FailureReason)
	return ft.FailedTransactionID, nil
}

// failureReason looks in payment attempts first, then custom data, then
// falls back to the transaction status.
func failureReason(p *TransactionPayload) string {
	for _, pay := range p.Payments {
		if pay.ErrorCode != nil && strings.TrimSpace(*pay.ErrorCode) != "" {
			return "Payment error: " + strings.TrimSpace(*pay.ErrorCode)
		}
	}
	if len(p.CustomData) > 0 {
		var cd map[string]interface{}
		if json.Unmarshal(p.CustomData, &cd) == nil {
			if v, ok := cd["failure_reason"].(string); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
	}
	for _, pay := range p.Payments {
		switch strings.ToLower(pay.Status) {
		case "error", "failed", "canceled", "action_required":
			return "Payment attempt status: " + pay.Status
		}
	}
	return "Transaction status: " + p.Status
}

// itemsSummary renders the attempted line items for reviewers.
func itemsSummary(p *TransactionPayload) string {
	if p.Details == nil || len(p.Details.LineItems) == 0 {
		return "No line items"
	}
	currency := ""
	if p.CurrencyCode != nil {
		currency = *p.CurrencyCode
	}
	parts := make([]string, 0, len(p.Details.LineItems))
	for _, li := range p.Details.LineItems {
		name := li.PriceID
		if li.Product != nil && li.Product.Name != "" {
			name = li.Product.Name
		}
		qty := li.Quantity
		if qty <= 0 {
			qty = 1
		}
		entry := fmt.Sprintf("%d x %s", qty, name)
		if li.Totals != nil && li.Totals.Total != "" {
			entry += " (" + strings.TrimSpace(li.Totals.Total+" "+currency) + ")"
		}
		parts = append(parts, entry)
	}
	return strings.Join(parts, "; ")
}
