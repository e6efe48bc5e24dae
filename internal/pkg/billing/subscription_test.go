package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mybizz/mybizz/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscriptionPayload(id, glt string, itemIDs ...string) json.RawMessage {
	items := ""
	for i, itemID := range itemIDs {
		if i > 0 {
			items += ","
		}
		custom := "null"
		if i == 0 && glt != "" {
			custom = fmt.Sprintf(`{"glt":%q}`, glt)
		}
		items += fmt.Sprintf(`{"id":%q,"status":"active","quantity":1,"price":{"id":"pri_%s","custom_data":%s}}`, itemID, itemID, custom)
	}
	return json.RawMessage(fmt.Sprintf(`{
		"id":%q,"status":"active","customer_id":"ctm_1","currency_code":"USD",
		"billing_cycle":{"interval":"month","frequency":1},
		"next_billed_at":"2024-06-01T00:00:00Z",
		"current_billing_period":{"starts_at":"2024-05-01T00:00:00Z","ends_at":"2024-06-01T00:00:00Z"},
		"items":[%s]}`, id, items))
}

func seedSubscriptionRepo(itemIDs ...string) *memoryRepository {
	repo := newMemoryRepository()
	repo.addPlan("G1L2T3")
	for _, id := range itemIDs {
		repo.addPrice("pri_"+id, "pro_1")
	}
	return repo
}

func TestSubscriptionCreatedLinksPlan(t *testing.T) {
	repo := seedSubscriptionRepo("a", "b")
	s := newTestService(repo)

	res, err := s.ProcessSubscription(context.Background(), subscriptionPayload("sub_1", "g1-l2-t3", "a", "b"))
	require.NoError(t, err)
	require.True(t, res.OK, res.Detail)

	sub := repo.subs["sub_1"]
	require.NotNil(t, sub)
	require.NotNil(t, sub.GLT)
	assert.Equal(t, "G1L2T3", *sub.GLT)
	assert.Equal(t, repo.plans["G1L2T3"].ID, *sub.PlanItemID)
	assert.Equal(t, "month", sub.BillingCycleInterval)
	require.NotNil(t, sub.NextBilledAt)
	require.NotNil(t, sub.CurrentPeriodEndsAt)
	assert.Len(t, repo.subItems[sub.ID], 2)
}

func TestSubscriptionCreatedWithoutGLTIsMissingLink(t *testing.T) {
	repo := seedSubscriptionRepo("a")
	s := newTestService(repo)

	res, err := s.ProcessSubscription(context.Background(), subscriptionPayload("sub_2", "", "a"))
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.True(t, res.MissingLink)
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.subItems)
}

func TestSubscriptionCreatedWithUnknownPlan(t *testing.T) {
	repo := seedSubscriptionRepo("a")
	s := newTestService(repo)

	res, err := s.ProcessSubscription(context.Background(), subscriptionPayload("sub_3", "G9L9T9", "a"))
	require.NoError(t, err)
	assert.True(t, res.MissingLink)
	assert.Contains(t, res.Detail, "G9L9T9")
}

func TestSubscriptionUpdateWithoutPlanKeepsLink(t *testing.T) {
	repo := seedSubscriptionRepo("a")
	s := newTestService(repo)
	ctx := context.Background()

	_, err := s.ProcessSubscription(ctx, subscriptionPayload("sub_4", "G1L2T3", "a"))
	require.NoError(t, err)
	planID := *repo.subs["sub_4"].PlanItemID

	res, err := s.ProcessSubscription(ctx, json.RawMessage(`{"id":"sub_4","status":"paused","items":[{"id":"a","price":{"id":"pri_a"}}]}`))
	require.NoError(t, err)
	require.True(t, res.OK, res.Detail)
	assert.Contains(t, res.Detail, "existing link kept")

	sub := repo.subs["sub_4"]
	assert.Equal(t, "paused", sub.Status)
	assert.Equal(t, planID, *sub.PlanItemID)
	assert.Equal(t, "USD", sub.CurrencyCode, "non-nullable field kept")
	assert.Nil(t, sub.NextBilledAt, "nullable field cleared")
	assert.Nil(t, sub.CurrentPeriodStartsAt)
}

func TestSubscriptionItemsReconciled(t *testing.T) {
	repo := seedSubscriptionRepo("a", "b", "c")
	s := newTestService(repo)
	ctx := context.Background()

	_, err := s.ProcessSubscription(ctx, subscriptionPayload("sub_5", "G1L2T3", "a", "b", "c"))
	require.NoError(t, err)
	sub := repo.subs["sub_5"]
	require.Len(t, repo.subItems[sub.ID], 3)

	res, err := s.ProcessSubscription(ctx, subscriptionPayload("sub_5", "G1L2T3", "a", "b"))
	require.NoError(t, err)
	assert.Contains(t, res.Detail, "2 upserted, 0 skipped, 1 deactivated")

	statuses := map[string]string{}
	for _, it := range repo.subItems[sub.ID] {
		statuses[it.LineItemID] = it.Status
	}
	assert.Equal(t, map[string]string{
		"a": models.SubscriptionItemActive,
		"b": models.SubscriptionItemActive,
		"c": models.SubscriptionItemInactive,
	}, statuses)

	// Same payload again changes nothing.
	res, err = s.ProcessSubscription(ctx, subscriptionPayload("sub_5", "G1L2T3", "a", "b"))
	require.NoError(t, err)
	assert.Contains(t, res.Detail, "0 deactivated")
	assert.Len(t, repo.subItems[sub.ID], 3)
	assert.Len(t, repo.subs, 1)
}

func TestSubscriptionItemsSkipUnknownPrice(t *testing.T) {
	repo := seedSubscriptionRepo("a")
	s := newTestService(repo)

	res, err := s.ProcessSubscription(context.Background(), subscriptionPayload("sub_6", "G1L2T3", "a", "zz"))
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Contains(t, res.Detail, "1 upserted, 1 skipped")
	assert.Len(t, repo.subItems[repo.subs["sub_6"].ID], 1)
}
