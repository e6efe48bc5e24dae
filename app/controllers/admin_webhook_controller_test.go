package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/internal/pkg/hub"
	"github.com/mybizz/mybizz/internal/pkg/retry"
	"github.com/mybizz/mybizz/internal/pkg/usercontext"
)

type fakeRetryService struct {
	rows       []models.WebhookLog
	listErr    error
	lastFilter string

	outcome    *retry.Outcome
	triggerErr error
	triggered  []uint

	resolveErr error
	resolvedBy string

	payload    []byte
	payloadErr error

	swept    int
	sweepErr error
}

func (s *fakeRetryService) ListActionable(_ context.Context, filter string) ([]models.WebhookLog, error) {
	s.lastFilter = filter
	return s.rows, s.listErr
}

func (s *fakeRetryService) TriggerManual(_ context.Context, id uint) (*retry.Outcome, error) {
	s.triggered = append(s.triggered, id)
	return s.outcome, s.triggerErr
}

func (s *fakeRetryService) MarkResolved(_ context.Context, id uint, by string) (*models.WebhookLog, error) {
	s.resolvedBy = by
	if s.resolveErr != nil {
		return nil, s.resolveErr
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.WebhookLog{ID: id, Status: models.WebhookStatusResolvedByAdmin, ResolvedBy: by, ResolvedAt: &now}, nil
}

func (s *fakeRetryService) FetchPayload(_ context.Context, _ string) ([]byte, error) {
	return s.payload, s.payloadErr
}

func (s *fakeRetryService) ScheduledSweep(_ context.Context) (int, error) {
	return s.swept, s.sweepErr
}

// newAdminApp mounts the admin handlers behind a stub that logs in as the
// given user.
func newAdminApp(svc RetryService, user usercontext.UserContext) *fiber.App {
	ctrl := NewAdminWebhookController(svc)
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(usercontext.KeyUserContext, user)
		return c.Next()
	})
	app.Get("/webhook-logs", ctrl.HandleListWebhookLogs)
	app.Post("/webhook-logs/sweep", ctrl.HandleSweep)
	app.Post("/webhook-logs/:id/reprocess", ctrl.HandleReprocess)
	app.Post("/webhook-logs/:id/resolve", ctrl.HandleResolve)
	app.Get("/hub/payload/:event_id", ctrl.HandleHubPayload)
	return app
}

var adminUser = usercontext.UserContext{UserID: 7, Username: "ops@mybizz.test", IsLoggedIn: true, IsAdmin: true}

func doRequest(t *testing.T, app *fiber.App, method, target string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(method, target, nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, body
}

func TestHandleListWebhookLogs(t *testing.T) {
	svc := &fakeRetryService{rows: []models.WebhookLog{
		{ID: 2, EventID: "evt_2", Status: models.WebhookStatusPendingMissingLink},
		{ID: 1, EventID: "evt_1", Status: models.WebhookStatusProcessingError},
	}}
	app := newAdminApp(svc, adminUser)

	status, body := doRequest(t, app, http.MethodGet, "/webhook-logs")
	require.Equal(t, fiber.StatusOK, status)
	var out struct {
		Logs  []models.WebhookLog `json:"logs"`
		Count int                 `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, 2, out.Count)
	assert.Equal(t, "evt_2", out.Logs[0].EventID)
	assert.Equal(t, "", svc.lastFilter)

	target := "/webhook-logs?status=" + url.QueryEscape(string(models.WebhookStatusMaxRetries))
	status, _ = doRequest(t, app, http.MethodGet, target)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, string(models.WebhookStatusMaxRetries), svc.lastFilter)
}

func TestHandleListWebhookLogs_Errors(t *testing.T) {
	svc := &fakeRetryService{}
	app := newAdminApp(svc, adminUser)

	status, _ := doRequest(t, app, http.MethodGet, "/webhook-logs?status=Exploded")
	assert.Equal(t, fiber.StatusBadRequest, status)

	svc.listErr = errors.New("db down")
	status, _ = doRequest(t, app, http.MethodGet, "/webhook-logs")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}

func TestHandleReprocess(t *testing.T) {
	svc := &fakeRetryService{outcome: &retry.Outcome{LogID: 5, EventID: "evt_5", Status: models.WebhookStatusReprocessed, Detail: "Subscription sub_1 created"}}
	app := newAdminApp(svc, adminUser)

	status, body := doRequest(t, app, http.MethodPost, "/webhook-logs/5/reprocess")
	require.Equal(t, fiber.StatusOK, status)
	var out retry.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, models.WebhookStatusReprocessed, out.Status)
	assert.Equal(t, []uint{5}, svc.triggered)
}

func TestHandleReprocess_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"bad id", "/webhook-logs/abc/reprocess", nil, fiber.StatusBadRequest},
		{"zero id", "/webhook-logs/0/reprocess", nil, fiber.StatusBadRequest},
		{"not found", "/webhook-logs/9/reprocess", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), fiber.StatusNotFound},
		{"not actionable", "/webhook-logs/9/reprocess", fmt.Errorf("%w: Forwarded to Hub", retry.ErrNotActionable), fiber.StatusConflict},
		{"internal", "/webhook-logs/9/reprocess", errors.New("db down"), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAdminApp(&fakeRetryService{triggerErr: tt.err}, adminUser)
			status, _ := doRequest(t, app, http.MethodPost, tt.target)
			assert.Equal(t, tt.status, status)
		})
	}
}

func TestHandleResolve(t *testing.T) {
	svc := &fakeRetryService{}
	app := newAdminApp(svc, adminUser)

	status, body := doRequest(t, app, http.MethodPost, "/webhook-logs/3/resolve")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ops@mybizz.test", svc.resolvedBy)

	var row models.WebhookLog
	require.NoError(t, json.Unmarshal(body, &row))
	assert.Equal(t, models.WebhookStatusResolvedByAdmin, row.Status)
	assert.Equal(t, "ops@mybizz.test", row.ResolvedBy)
}

func TestHandleResolve_FallsBackToUserID(t *testing.T) {
	svc := &fakeRetryService{}
	app := newAdminApp(svc, usercontext.UserContext{UserID: 42, IsLoggedIn: true, IsAdmin: true})

	status, _ := doRequest(t, app, http.MethodPost, "/webhook-logs/3/resolve")
	require.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin #42", svc.resolvedBy)
}

func TestHandleResolve_AlreadyResolved(t *testing.T) {
	svc := &fakeRetryService{resolveErr: fmt.Errorf("%w: log is already resolved", models.ErrIllegalTransition)}
	app := newAdminApp(svc, adminUser)

	status, _ := doRequest(t, app, http.MethodPost, "/webhook-logs/3/resolve")
	assert.Equal(t, fiber.StatusConflict, status)
}

func TestHandleHubPayload(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"not configured", hub.ErrNotConfigured, fiber.StatusServiceUnavailable},
		{"not found", &hub.StatusError{StatusCode: 404}, fiber.StatusNotFound},
		{"hub failure", &hub.StatusError{StatusCode: 500, Body: "oops"}, fiber.StatusBadGateway},
		{"transport", errors.New("connection refused"), fiber.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newAdminApp(&fakeRetryService{payloadErr: tt.err}, adminUser)
			status, _ := doRequest(t, app, http.MethodGet, "/hub/payload/evt_1")
			assert.Equal(t, tt.status, status)
		})
	}

	raw := []byte(`{"event_id":"evt_1","event_type":"customer.created","data":{"id":"ctm_1"}}`)
	app := newAdminApp(&fakeRetryService{payload: raw}, adminUser)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/hub/payload/evt_1", nil), -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, fiber.MIMEApplicationJSON, resp.Header.Get(fiber.HeaderContentType))
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, string(raw), string(body))
}

func TestHandleSweep(t *testing.T) {
	svc := &fakeRetryService{swept: 4}
	app := newAdminApp(svc, adminUser)

	status, body := doRequest(t, app, http.MethodPost, "/webhook-logs/sweep")
	require.Equal(t, fiber.StatusOK, status)
	assert.JSONEq(t, `{"processed":4}`, string(body))

	svc.sweepErr = errors.New("redis down")
	status, _ = doRequest(t, app, http.MethodPost, "/webhook-logs/sweep")
	assert.Equal(t, fiber.StatusInternalServerError, status)
}
