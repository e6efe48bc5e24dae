package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
)

// ProcessSubscription upserts a subscription and reconciles its items. New
// subscriptions require a plan resolved from items[0].price.custom_data.glt.
func (s *Service) ProcessSubscription(ctx context.Context, data json.RawMessage) (Result, error) {
	p, err := decodeData[SubscriptionPayload](data)
	if err != nil {
		return failure("Invalid subscription payload: %v", err), nil
	}
	return s.inTx(ctx, func(repo Repository) (Result, error) {
		return s.upsertSubscription(ctx, repo, p)
	})
}

func (s *Service) upsertSubscription(ctx context.Context, repo Repository, p *SubscriptionPayload) (Result, error) {
	plan, gltCode, linkProblem, err := resolvePlan(ctx, repo, p)
	if err != nil {
		return Result{}, err
	}

	row, err := repo.FindSubscription(ctx, p.ID)
	created := false
	switch {
	case isNotFound(err):
		if plan == nil {
			log.Warnf("[Billing] Subscription %s not created: %s", p.ID, linkProblem)
			return missingLink("Subscription %s cannot be created: %s", p.ID, linkProblem), nil
		}
		id, err := s.newSyntheticID(ctx, repo, IDKindSubscription)
		if err != nil {
			return Result{}, err
		}
		row = &models.Subscription{SubscriptionID: id, PaddleID: p.ID}
		created = true
	case err != nil:
		return Result{}, fmt.Errorf("find subscription %s: %w", p.ID, err)
	}

	notes := []string{}
	if plan != nil {
		row.PlanItemID = &plan.ID
		row.GLT = &gltCode
	} else {
		notes = append(notes, "plan link unresolved ("+linkProblem+"), existing link kept")
	}

	row.Status = strings.TrimSpace(p.Status)
	if cid := nullableString(p.CustomerID); cid != nil {
		row.CustomerPaddleID = *cid
		if customer, err := repo.FindCustomer(ctx, *cid); err == nil {
			row.CustomerRefID = &customer.ID
		} else if !isNotFound(err) {
			return Result{}, fmt.Errorf("find customer %s: %w", *cid, err)
		}
	}
	setString(&row.CurrencyCode, p.CurrencyCode)
	setString(&row.CollectionMode, p.CollectionMode)
	if p.BillingCycle != nil {
		row.BillingCycleInterval = p.BillingCycle.Interval
		row.BillingCycleFrequency = p.BillingCycle.Frequency
	}
	setTime(&row.StartedAt, p.StartedAt)
	setTime(&row.FirstBilledAt, p.FirstBilledAt)
	row.NextBilledAt = nullableTime(p.NextBilledAt)
	row.PausedAt = nullableTime(p.PausedAt)
	row.CanceledAt = nullableTime(p.CanceledAt)
	if p.CurrentBillingPeriod != nil {
		row.CurrentPeriodStartsAt = nullableTime(p.CurrentBillingPeriod.StartsAt)
		row.CurrentPeriodEndsAt = nullableTime(p.CurrentBillingPeriod.EndsAt)
	} else {
		row.CurrentPeriodStartsAt = nil
		row.CurrentPeriodEndsAt = nil
	}
	if p.ScheduledChange != nil {
		row.ScheduledChangeAction = nullableString(&p.ScheduledChange.Action)
		row.ScheduledChangeEffectiveAt = nullableTime(p.ScheduledChange.EffectiveAt)
	} else {
		row.ScheduledChangeAction = nil
		row.ScheduledChangeEffectiveAt = nil
	}
	row.CustomData = nullableJSON(p.CustomData)
	setTime(&row.PaddleCreatedAt, p.CreatedAt)
	setTime(&row.PaddleUpdatedAt, p.UpdatedAt)

	if err := repo.SaveSubscription(ctx, row); err != nil {
		return Result{}, fmt.Errorf("save subscription %s: %w", p.ID, err)
	}

	summary, err := reconcileSubscriptionItems(ctx, repo, row, p.Items)
	if err != nil {
		return Result{}, err
	}
	notes = append(notes, summary.String())

	return success("Subscription %s %s (%s); %s", p.ID, createdOrUpdated(created), row.SubscriptionID, strings.Join(notes, "; ")), nil
}

// resolvePlan finds the plan Item named by the primary item's price GLT.
// When no plan can be resolved it returns a nil plan and the reason.
func resolvePlan(ctx context.Context, repo Repository, p *SubscriptionPayload) (*models.Item, string, string, error) {
	if len(p.Items) == 0 {
		return nil, "", "subscription has no items", nil
	}
	primary := p.Items[0]
	if primary.Price == nil {
		return nil, "", "primary item has no price", nil
	}
	raw, ok := gltFromCustomData(primary.Price.CustomData)
	if !ok {
		return nil, "", fmt.Sprintf("price %s has no glt in custom_data", primary.Price.ID), nil
	}
	code, err := ParseGLT(raw)
	if err != nil {
		return nil, "", err.Error(), nil
	}
	plan, err := repo.FindPlanByGLT(ctx, code.String())
	if isNotFound(err) {
		return nil, "", fmt.Sprintf("no active plan with glt %s", code), nil
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("find plan %s: %w", code, err)
	}
	return plan, code.String(), "", nil
}
