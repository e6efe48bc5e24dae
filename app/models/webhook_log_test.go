package models

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookLogIngestionPath(t *testing.T) {
	l := NewWebhookLog("evt_1", "transaction.paid", "txn_1", time.Now())
	assert.Equal(t, WebhookStatusReceived, l.Status)

	require.NoError(t, l.TransitionTo(WebhookStatusProcessed, "ok"))
	require.NoError(t, l.TransitionTo(WebhookStatusForwardingInitiated, "queued"))
	require.NoError(t, l.TransitionTo(WebhookStatusForwarded, "hub 200"))

	assert.Equal(t, "ok | queued | hub 200", l.ProcessingDetails)
}

func TestWebhookLogIllegalTransition(t *testing.T) {
	tests := []struct {
		from WebhookLogStatus
		to   WebhookLogStatus
	}{
		{WebhookStatusReceived, WebhookStatusForwarded},
		{WebhookStatusProcessingError, WebhookStatusForwardingInitiated},
		{WebhookStatusForwarded, WebhookStatusForwardingError},
		{WebhookStatusResolvedByAdmin, WebhookStatusReprocessed},
		{WebhookStatusReprocessed, WebhookStatusPendingMissingLink},
	}

	for _, tt := range tests {
		l := &WebhookLog{Status: tt.from, ProcessingDetails: "before"}
		err := l.TransitionTo(tt.to, "after")
		require.ErrorIs(t, err, ErrIllegalTransition, "%s -> %s", tt.from, tt.to)
		assert.Equal(t, tt.from, l.Status)
		assert.Equal(t, "before", l.ProcessingDetails)
	}
}

func TestWebhookLogActionableStatusesAcceptReprocessOutcomes(t *testing.T) {
	for _, s := range ActionableWebhookStatuses {
		assert.True(t, s.IsActionable(), s)
		assert.True(t, s.CanTransitionTo(WebhookStatusReprocessed), s)
		assert.True(t, s.CanTransitionTo(WebhookStatusMaxRetries), s)
	}
	assert.False(t, WebhookStatusForwarded.IsActionable())
	assert.False(t, WebhookStatusMaxRetries.IsActionable())
	assert.False(t, WebhookStatusResolvedByAdmin.IsActionable())
}

func TestWebhookLogSameStateAndResolve(t *testing.T) {
	for _, s := range allWebhookStatuses {
		assert.True(t, s.CanTransitionTo(s), s)
		if s != WebhookStatusResolvedByAdmin {
			assert.True(t, s.CanTransitionTo(WebhookStatusResolvedByAdmin), s)
		}
	}
}

func TestWebhookLogMarkResolved(t *testing.T) {
	l := &WebhookLog{Status: WebhookStatusMaxRetries}
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, l.MarkResolved("ops@example.com", at))

	assert.Equal(t, WebhookStatusResolvedByAdmin, l.Status)
	assert.Equal(t, "ops@example.com", l.ResolvedBy)
	require.NotNil(t, l.ResolvedAt)
	assert.True(t, at.Equal(*l.ResolvedAt))
	assert.Contains(t, l.ProcessingDetails, "2024-03-01T10:00:00Z")
	assert.ErrorIs(t, l.MarkResolved("other", at), ErrIllegalTransition)
}

func TestWebhookLogAppendDetailCaps(t *testing.T) {
	l := &WebhookLog{}
	l.AppendDetail("   ")
	assert.Empty(t, l.ProcessingDetails)

	l.AppendDetail(strings.Repeat("x", 5000))
	assert.Len(t, l.ProcessingDetails, maxDetailEntryLen)

	for i := 0; i < 100; i++ {
		l.AppendDetail(strings.Repeat("y", 900))
	}
	l.AppendDetail("newest")
	assert.Len(t, l.ProcessingDetails, maxDetailsLen)
	assert.True(t, strings.HasSuffix(l.ProcessingDetails, " | newest"))
	assert.True(t, strings.HasPrefix(l.ProcessingDetails, "..."))
}

func TestWebhookLogAppendDetailKeepsUTF8(t *testing.T) {
	l := &WebhookLog{}
	l.AppendDetail(strings.Repeat("a", 996) + strings.Repeat("é", 10))
	assert.True(t, utf8.ValidString(l.ProcessingDetails))
	assert.LessOrEqual(t, len(l.ProcessingDetails), maxDetailEntryLen)
	assert.True(t, strings.HasSuffix(l.ProcessingDetails, "a..."))

	l = &WebhookLog{ProcessingDetails: strings.Repeat("ü", 30001)}
	l.AppendDetail("x")
	assert.True(t, utf8.ValidString(l.ProcessingDetails))
	assert.LessOrEqual(t, len(l.ProcessingDetails), maxDetailsLen)
	assert.True(t, strings.HasPrefix(l.ProcessingDetails, "...ü"))
	assert.True(t, strings.HasSuffix(l.ProcessingDetails, " | x"))

	l = &WebhookLog{}
	l.AppendDetail("hub said \xff\xfe")
	assert.True(t, utf8.ValidString(l.ProcessingDetails))
}

func TestWebhookLogRecordRetryAttempt(t *testing.T) {
	l := &WebhookLog{}
	now := time.Now()
	l.RecordRetryAttempt(now)
	l.RecordRetryAttempt(now)
	assert.Equal(t, 2, l.RetryCount)
	require.NotNil(t, l.LastRetryTimestamp)
}

func TestParseWebhookLogStatus(t *testing.T) {
	s, err := ParseWebhookLogStatus(" Pending Retry - Missing Link ")
	require.NoError(t, err)
	assert.Equal(t, WebhookStatusPendingMissingLink, s)

	_, err = ParseWebhookLogStatus("Exploded")
	assert.Error(t, err)
}
