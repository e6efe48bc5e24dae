package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	evt, err := ParseEvent([]byte(`{"event_id":" evt_1 ","event_type":"transaction.paid","occurred_at":"2024-05-01T10:00:00Z","data":{"id":"txn_1","status":"paid"}}`))
	require.NoError(t, err)
	assert.Equal(t, "evt_1", evt.EventID)
	assert.Equal(t, "transaction.paid", evt.EventType)
	assert.Equal(t, "txn_1", evt.ResourceID())
}

func TestParseEventMissingEnvelopeFields(t *testing.T) {
	_, err := ParseEvent([]byte(`{"data":{"id":"x"}}`))
	var envErr *EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.ElementsMatch(t, []string{"event_id", "event_type"}, envErr.Missing)

	_, err = ParseEvent([]byte(`{"event_id":"evt_1","event_type":"  "}`))
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, []string{"event_type"}, envErr.Missing)
}

func TestParseEventInvalidJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{not json`))
	require.Error(t, err)
	var envErr *EnvelopeError
	assert.False(t, errors.As(err, &envErr))
}

func TestEventResourceIDWithoutData(t *testing.T) {
	evt := &Event{EventID: "evt_1", EventType: "payout.paid"}
	assert.Equal(t, "", evt.ResourceID())
}
