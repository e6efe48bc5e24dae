package billing

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mybizz/mybizz/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const paidTransaction = `{
	"id": "txn_01",
	"status": "paid",
	"customer_id": "ctm_1",
	"currency_code": "USD",
	"origin": "web",
	"billed_at": "2024-05-01T10:00:00Z",
	"details": {
		"totals": {"subtotal": "2000", "tax": "200", "total": "2200", "grand_total": "2200", "currency_code": "USD"},
		"line_items": [
			{"id": "txnitm_a", "price_id": "pri_a", "quantity": 1, "totals": {"total": "1100"}, "product": {"id": "pro_1", "name": "Starter"}},
			{"id": "txnitm_b", "price_id": "pri_b", "quantity": 2, "totals": {"total": "1100"}, "product": {"id": "pro_1", "name": "Seat"}}
		]
	}
}`

func TestTransactionPaidWithLineItems(t *testing.T) {
	repo := newMemoryRepository()
	priceA := repo.addPrice("pri_a", "pro_1")
	priceB := repo.addPrice("pri_b", "pro_1")
	s := newTestService(repo)

	res, err := s.ProcessTransaction(context.Background(), json.RawMessage(paidTransaction))
	require.NoError(t, err)
	require.True(t, res.OK, res.Detail)
	assert.True(t, res.Handled)

	tx := repo.transactions["txn_01"]
	require.NotNil(t, tx)
	assert.Equal(t, "paid", tx.Status)
	assert.Equal(t, "2200", tx.GrandTotal)
	assert.Equal(t, "USD", tx.CurrencyCode)
	assert.Nil(t, tx.CustomerRefID, "customer not mirrored yet")
	require.NotNil(t, tx.CustomerPaddleID)
	assert.Equal(t, "ctm_1", *tx.CustomerPaddleID)

	items := repo.txItems[tx.ID]
	require.Len(t, items, 2)
	assert.Equal(t, priceA.ID, *items["txnitm_a"].PriceRefID)
	assert.Equal(t, priceB.ID, *items["txnitm_b"].PriceRefID)
	assert.Equal(t, 2, items["txnitm_b"].Quantity)
	assert.Empty(t, repo.failed)
}

func TestTransactionIsIdempotent(t *testing.T) {
	repo := newMemoryRepository()
	repo.addPrice("pri_a", "pro_1")
	repo.addPrice("pri_b", "pro_1")
	s := newTestService(repo)
	ctx := context.Background()

	_, err := s.ProcessTransaction(ctx, json.RawMessage(paidTransaction))
	require.NoError(t, err)
	first := *repo.transactions["txn_01"]

	res, err := s.ProcessTransaction(ctx, json.RawMessage(paidTransaction))
	require.NoError(t, err)
	assert.Contains(t, res.Detail, "updated")

	assert.Len(t, repo.transactions, 1)
	second := repo.transactions["txn_01"]
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.TransactionID, second.TransactionID)
	assert.Len(t, repo.txItems[first.ID], 2)
}

func TestTransactionLineItemWithUnknownPrice(t *testing.T) {
	repo := newMemoryRepository()
	s := newTestService(repo)

	res, err := s.ProcessTransaction(context.Background(), json.RawMessage(`{
		"id":"txn_02","status":"completed",
		"details":{"line_items":[{"id":"li_1","price_id":"pri_unknown"},{"price_id":"pri_noid"}]}}`))
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Contains(t, res.Detail, "1 skipped")

	tx := repo.transactions["txn_02"]
	items := repo.txItems[tx.ID]
	require.Len(t, items, 1)
	assert.Nil(t, items["li_1"].PriceRefID)
	assert.Equal(t, "pri_unknown", items["li_1"].PricePaddleID)
	assert.Equal(t, 1, items["li_1"].Quantity)
}

func TestTransactionPaymentFailedLogsFailure(t *testing.T) {
	repo := newMemoryRepository()
	repo.addPrice("pri_a", "pro_1")
	s := newTestService(repo)
	ctx := context.Background()
	_, err := s.ProcessCustomer(ctx, json.RawMessage(`{"id":"ctm_9","email":"payer@example.com","name":"Pat Payer"}`))
	require.NoError(t, err)

	payload := json.RawMessage(`{
		"id":"txn_fail","status":"payment_failed","customer_id":"ctm_9","currency_code":"EUR",
		"payments":[{"payment_attempt_id":"pa_1","status":"error","error_code":"declined"}],
		"details":{"totals":{"grand_total":"990"},"line_items":[
			{"id":"li_1","price_id":"pri_a","quantity":1,"totals":{"total":"990"},"product":{"name":"Pro Plan"}}]}}`)

	res, err := s.ProcessTransaction(ctx, payload)
	require.NoError(t, err)
	require.True(t, res.OK)
	assert.Contains(t, res.Detail, "failed payment logged")

	tx := repo.transactions["txn_fail"]
	require.NotNil(t, tx.CustomerRefID)
	ft := repo.failed[tx.ID]
	require.NotNil(t, ft)
	assert.Equal(t, models.FailedTransactionStatusLogged, ft.Status)
	assert.Equal(t, "Payment error: declined", ft.FailureReason)
	assert.Equal(t, "1 x Pro Plan (990 EUR)", ft.ItemsSummary)
	assert.Equal(t, "payer@example.com", ft.CustomerEmail)
	assert.Equal(t, "Pat Payer", ft.CustomerName)
	assert.Equal(t, "990", ft.Amount)
	require.NotNil(t, ft.FailedAt)

	// A redelivery updates the same record.
	_, err = s.ProcessTransaction(ctx, payload)
	require.NoError(t, err)
	assert.Len(t, repo.failed, 1)
	assert.Equal(t, ft.FailedTransactionID, repo.failed[tx.ID].FailedTransactionID)
}

func TestIsFailedTransactionStatus(t *testing.T) {
	assert.True(t, IsFailedTransactionStatus("payment_failed"))
	assert.True(t, IsFailedTransactionStatus(" Failed "))
	assert.True(t, IsFailedTransactionStatus("declined"))
	assert.False(t, IsFailedTransactionStatus("paid"))
	assert.False(t, IsFailedTransactionStatus("past_due"))
}

func TestFailureReasonPriority(t *testing.T) {
	code := "insufficient_funds"
	tests := []struct {
		name string
		p    TransactionPayload
		want string
	}{
		{"error code", TransactionPayload{Status: "failed", Payments: []TransactionPayment{{Status: "error", ErrorCode: &code}}}, "Payment error: insufficient_funds"},
		{"custom data", TransactionPayload{Status: "failed", CustomData: json.RawMessage(`{"failure_reason":"card expired"}`)}, "card expired"},
		{"payment status", TransactionPayload{Status: "failed", Payments: []TransactionPayment{{Status: "canceled"}}}, "Payment attempt status: canceled"},
		{"transaction status", TransactionPayload{Status: "declined"}, "Transaction status: declined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, failureReason(&tt.p))
		})
	}
}

func TestItemsSummaryWithoutItems(t *testing.T) {
	assert.Equal(t, "No line items", itemsSummary(&TransactionPayload{}))
	assert.Equal(t, "3 x pri_x", itemsSummary(&TransactionPayload{
		Details: &TransactionDetails{LineItems: []TransactionLineItem{{PriceID: "pri_x", Quantity: 3}}},
	}))
}
