package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
)

// ProcessProduct upserts a Paddle product by its Paddle id.
func (s *Service) ProcessProduct(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[ProductPayload](data)
	if err != nil {
		return failure("Invalid product payload: %v", err), nil
	}

	row, err := s.repo.FindProduct(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		id, err := s.newSyntheticID(ctx, s.repo, IDKindProduct)
		if err != nil {
			return Result{}, err
		}
		row = &models.Product{ProductID: id, PaddleID: p.ID, Status: "active", Type: "standard"}
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("find product %s: %w", p.ID, err)
	}

	setString(&row.Name, p.Name)
	setString(&row.Type, p.Type)
	setString(&row.TaxCategory, p.TaxCategory)
	setString(&row.Status, p.Status)
	row.Description = nullableString(p.Description)
	row.ImageURL = nullableString(p.ImageURL)
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)

	if err := s.repo.SaveProduct(ctx, row); err != nil {
		return Result{}, fmt.Errorf("save product %s: %w", p.ID, err)
	}
	return success("Product %s %s (%s)", p.ID, createdOrUpdated(created), row.ProductID), nil
}

// ProcessPrice upserts a Paddle price. The parent product must already be
// mirrored locally.
func (s *Service) ProcessPrice(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[PricePayload](data)
	if err != nil {
		return failure("Invalid price payload: %v", err), nil
	}
	productID := strings.TrimSpace(p.ProductID)
	if productID == "" {
		return failure("Price %s has no product_id", p.ID), nil
	}

	product, err := s.repo.FindProduct(ctx, productID)
	if isNotFound(err) {
		log.Warnf("[Billing] Price %s references unknown product %s", p.ID, productID)
		return missingLink("Price %s: parent product %s not found locally", p.ID, productID), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find product %s: %w", productID, err)
	}

	row, err := s.repo.FindPrice(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		id, err := s.newSyntheticID(ctx, s.repo, IDKindPrice)
		if err != nil {
			return Result{}, err
		}
		row = &models.Price{PriceID: id, PaddleID: p.ID, Status: "active", TaxMode: "account_setting", QuantityMinimum: 1, QuantityMaximum: 100}
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("find price %s: %w", p.ID, err)
	}

	row.ProductRefID = product.ID
	row.ProductPaddleID = product.PaddleID
	applyPrice(row, p)

	if err := s.repo.SavePrice(ctx, row); err != nil {
		return Result{}, fmt.Errorf("save price %s: %w", p.ID, err)
	}
	return success("Price %s %s (%s, %s)", p.ID, createdOrUpdated(created), row.PriceID, row.PriceType), nil
}

func applyPrice(row *models.Price, p *PricePayload) {
	// Paddle has no flat price type field; a billing cycle means recurring.
	if p.BillingCycle != nil {
		row.PriceType = models.PriceTypeRecurring
		interval, freq := p.BillingCycle.Interval, p.BillingCycle.Frequency
		row.BillingCycleInterval = &interval
		row.BillingCycleFrequency = &freq
	} else {
		row.PriceType = models.PriceTypeOneTime
		row.BillingCycleInterval = nil
		row.BillingCycleFrequency = nil
	}
	if p.TrialPeriod != nil {
		interval, freq := p.TrialPeriod.Interval, p.TrialPeriod.Frequency
		row.TrialPeriodInterval = &interval
		row.TrialPeriodFrequency = &freq
	} else {
		row.TrialPeriodInterval = nil
		row.TrialPeriodFrequency = nil
	}

	row.Name = nullableString(p.Name)
	setString(&row.Description, p.Description)
	setString(&row.TaxMode, p.TaxMode)
	setString(&row.Status, p.Status)
	if p.UnitPrice != nil {
		row.UnitPriceAmount = firstNonEmpty(p.UnitPrice.Amount, row.UnitPriceAmount)
		row.UnitPriceCurrency = firstNonEmpty(p.UnitPrice.CurrencyCode, row.UnitPriceCurrency)
	}
	if p.Quantity != nil {
		if p.Quantity.Minimum > 0 {
			row.QuantityMinimum = p.Quantity.Minimum
		}
		if p.Quantity.Maximum > 0 {
			row.QuantityMaximum = p.Quantity.Maximum
		}
	}
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)
}

func createdOrUpdated(created bool) string {
	if created {
		return "created"
	}
	return "updated"
}
