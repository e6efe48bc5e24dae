package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// WebhookLogStatus is the lifecycle state of a received Paddle webhook.
// The values are shown verbatim in the admin retry UI.
type WebhookLogStatus string

const (
	WebhookStatusReceived            WebhookLogStatus = "Received"
	WebhookStatusProcessed           WebhookLogStatus = "Processed by MyBizz"
	WebhookStatusProcessingError     WebhookLogStatus = "MyBizz Processing Error"
	WebhookStatusForwardingInitiated WebhookLogStatus = "Forwarding Initiated"
	WebhookStatusForwarded           WebhookLogStatus = "Forwarded to Hub"
	WebhookStatusForwardingError     WebhookLogStatus = "Forwarding Error"
	WebhookStatusHubForwardingError  WebhookLogStatus = "R2Hub Forwarding Error"
	WebhookStatusForwardingTaskError WebhookLogStatus = "Forwarding Task Error"
	WebhookStatusPendingMissingLink  WebhookLogStatus = "Pending Retry - Missing Link"
	WebhookStatusReprocessFailed     WebhookLogStatus = "Reprocess Failed - MyBizz Logic"
	WebhookStatusReprocessHubFetch   WebhookLogStatus = "Reprocess Error - R2Hub Fetch Failed"
	WebhookStatusReprocessJSON       WebhookLogStatus = "Reprocess Error - JSON"
	WebhookStatusReprocessUnexpected WebhookLogStatus = "Reprocess Error - Unexpected"
	WebhookStatusReprocessTrigger    WebhookLogStatus = "Reprocess Error - Trigger Failed"
	WebhookStatusReprocessed         WebhookLogStatus = "Reprocessed Successfully"
	WebhookStatusMaxRetries          WebhookLogStatus = "Max Retries Reached - Manual Review"
	WebhookStatusResolvedByAdmin     WebhookLogStatus = "Resolved by Admin"
)

const (
	// Sentinel event ids for deliveries that could not be parsed far enough
	// to learn the real event id.
	WebhookEventIDDecodeError  = "decode_error"
	WebhookEventIDJSONError    = "json_error"
	WebhookEventIDMissingField = "missing_envelope_field"

	maxDetailEntryLen = 1000
	maxDetailsLen     = 60000
	detailSeparator   = " | "
)

// ErrIllegalTransition is returned when a status change is not allowed by
// the webhook log state machine.
var ErrIllegalTransition = errors.New("illegal webhook log status transition")

var allWebhookStatuses = []WebhookLogStatus{
	WebhookStatusReceived,
	WebhookStatusProcessed,
	WebhookStatusProcessingError,
	WebhookStatusForwardingInitiated,
	WebhookStatusForwarded,
	WebhookStatusForwardingError,
	WebhookStatusHubForwardingError,
	WebhookStatusForwardingTaskError,
	WebhookStatusPendingMissingLink,
	WebhookStatusReprocessFailed,
	WebhookStatusReprocessHubFetch,
	WebhookStatusReprocessJSON,
	WebhookStatusReprocessUnexpected,
	WebhookStatusReprocessTrigger,
	WebhookStatusReprocessed,
	WebhookStatusMaxRetries,
	WebhookStatusResolvedByAdmin,
}

// ActionableWebhookStatuses are the failure and deferred states that the
// retry coordinator picks up.
var ActionableWebhookStatuses = []WebhookLogStatus{
	WebhookStatusPendingMissingLink,
	WebhookStatusReprocessFailed,
	WebhookStatusReprocessHubFetch,
	WebhookStatusReprocessJSON,
	WebhookStatusReprocessUnexpected,
	WebhookStatusReprocessTrigger,
	WebhookStatusForwardingTaskError,
	WebhookStatusProcessingError,
	WebhookStatusHubForwardingError,
	WebhookStatusForwardingError,
}

// reprocessOutcomes are the states a reprocess attempt can end in.
var reprocessOutcomes = []WebhookLogStatus{
	WebhookStatusReprocessed,
	WebhookStatusPendingMissingLink,
	WebhookStatusReprocessFailed,
	WebhookStatusReprocessHubFetch,
	WebhookStatusReprocessJSON,
	WebhookStatusReprocessUnexpected,
	WebhookStatusReprocessTrigger,
	WebhookStatusMaxRetries,
}

var webhookTransitions = buildWebhookTransitions()

func buildWebhookTransitions() map[WebhookLogStatus]map[WebhookLogStatus]bool {
	t := make(map[WebhookLogStatus]map[WebhookLogStatus]bool, len(allWebhookStatuses))
	allow := func(from WebhookLogStatus, to ...WebhookLogStatus) {
		if t[from] == nil {
			t[from] = make(map[WebhookLogStatus]bool)
		}
		for _, s := range to {
			t[from][s] = true
		}
	}

	allow(WebhookStatusReceived, WebhookStatusProcessed, WebhookStatusProcessingError)
	allow(WebhookStatusProcessed, WebhookStatusForwardingInitiated)
	allow(WebhookStatusForwardingInitiated,
		WebhookStatusForwarded,
		WebhookStatusForwardingError,
		WebhookStatusHubForwardingError,
		WebhookStatusForwardingTaskError,
	)
	allow(WebhookStatusForwardingError, WebhookStatusForwarded)
	allow(WebhookStatusHubForwardingError, WebhookStatusForwarded)

	for _, s := range ActionableWebhookStatuses {
		allow(s, reprocessOutcomes...)
	}
	allow(WebhookStatusMaxRetries, reprocessOutcomes...)

	for _, s := range allWebhookStatuses {
		allow(s, s)
		if s != WebhookStatusResolvedByAdmin {
			allow(s, WebhookStatusResolvedByAdmin)
		}
	}
	return t
}

// Valid reports whether s is one of the known statuses.
func (s WebhookLogStatus) Valid() bool {
	_, ok := webhookTransitions[s]
	return ok
}

// IsActionable reports whether the status is eligible for reprocessing.
func (s WebhookLogStatus) IsActionable() bool {
	for _, a := range ActionableWebhookStatuses {
		if a == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the state machine allows s -> next.
func (s WebhookLogStatus) CanTransitionTo(next WebhookLogStatus) bool {
	return webhookTransitions[s][next]
}

// ParseWebhookLogStatus converts a UI/query string into a known status.
func ParseWebhookLogStatus(raw string) (WebhookLogStatus, error) {
	s := WebhookLogStatus(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown webhook log status %q", raw)
	}
	return s, nil
}

// WebhookLog records one inbound Paddle webhook delivery and its progress
// through processing, forwarding and retries. Rows are never deleted.
type WebhookLog struct {
	ID                 uint             `gorm:"primaryKey" json:"id"`
	EventID            string           `gorm:"type:varchar(191);not null;index" json:"event_id"`
	EventType          string           `gorm:"type:varchar(100);not null;default:'';index" json:"event_type"`
	ResourceID         string           `gorm:"type:varchar(191);not null;default:''" json:"resource_id"`
	ReceivedAt         time.Time        `gorm:"type:timestamp;not null;index" json:"received_at"`
	Status             WebhookLogStatus `gorm:"type:varchar(64);not null;index" json:"status"`
	ForwardedToHub     bool             `gorm:"default:false" json:"forwarded_to_hub"`
	ProcessingDetails  string           `gorm:"type:longtext" json:"processing_details"`
	RetryCount         int              `gorm:"not null;default:0" json:"retry_count"`
	LastRetryTimestamp *time.Time       `gorm:"type:timestamp;default:null" json:"last_retry_timestamp,omitempty"`
	ArchivedKey        string           `gorm:"type:varchar(255);default:''" json:"archived_key,omitempty"`
	ResolvedBy         string           `gorm:"type:varchar(200);default:''" json:"resolved_by,omitempty"`
	ResolvedAt         *time.Time       `gorm:"type:timestamp;default:null" json:"resolved_at,omitempty"`
	CreatedAt          time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

// NewWebhookLog creates the initial row for an inbound delivery.
func NewWebhookLog(eventID, eventType, resourceID string, receivedAt time.Time) *WebhookLog {
	return &WebhookLog{
		EventID:    eventID,
		EventType:  eventType,
		ResourceID: resourceID,
		ReceivedAt: receivedAt.UTC(),
		Status:     WebhookStatusReceived,
	}
}

// TransitionTo moves the row to next, appending detail to the trail.
// The row is left untouched if the transition is not allowed.
func (l *WebhookLog) TransitionTo(next WebhookLogStatus, detail string) error {
	if !l.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %q -> %q", ErrIllegalTransition, l.Status, next)
	}
	l.Status = next
	l.AppendDetail(detail)
	return nil
}

// AppendDetail adds an entry to the pipe-delimited processing trail.
// The oldest text is dropped once the trail exceeds its cap.
func (l *WebhookLog) AppendDetail(detail string) {
	detail = strings.TrimSpace(strings.ToValidUTF8(detail, "\uFFFD"))
	if detail == "" {
		return
	}
	if len(detail) > maxDetailEntryLen {
		detail = headBytes(detail, maxDetailEntryLen-3) + "..."
	}
	if l.ProcessingDetails == "" {
		l.ProcessingDetails = detail
	} else {
		l.ProcessingDetails += detailSeparator + detail
	}
	if len(l.ProcessingDetails) > maxDetailsLen {
		l.ProcessingDetails = "..." + tailBytes(l.ProcessingDetails, maxDetailsLen-3)
	}
}

// headBytes returns at most n leading bytes of s without splitting a rune.
func headBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// tailBytes returns at most n trailing bytes of s without splitting a rune.
func tailBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	i := len(s) - n
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return s[i:]
}

// RecordRetryAttempt bumps the retry counter and stamps the attempt time.
func (l *WebhookLog) RecordRetryAttempt(at time.Time) {
	l.RetryCount++
	ts := at.UTC()
	l.LastRetryTimestamp = &ts
}

// MarkResolved closes the row by manual override.
func (l *WebhookLog) MarkResolved(by string, at time.Time) error {
	if l.Status == WebhookStatusResolvedByAdmin {
		return fmt.Errorf("%w: log is already resolved", ErrIllegalTransition)
	}
	ts := at.UTC()
	note := fmt.Sprintf("[%s] Resolved by admin %s", ts.Format(time.RFC3339), by)
	if err := l.TransitionTo(WebhookStatusResolvedByAdmin, note); err != nil {
		return err
	}
	l.ResolvedBy = by
	l.ResolvedAt = &ts
	return nil
}
