package hub

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/h2non/gock"
	"github.com/mybizz/mybizz/internal/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecrets() vault.Static {
	return vault.Static{
		vault.KeyHubAPIEndpoint: "https://hub.example.com/_/api/log_payload",
		vault.KeyHubTenantID:    "tenant-42",
		vault.KeyHubAPIKey:      "secret-key",
	}
}

func TestForward(t *testing.T) {
	tests := []struct {
		name       string
		reply      int
		wantErr    bool
		wantStatus int
	}{
		{"accepted", 200, false, 0},
		{"created", 201, false, 0},
		{"server error", 502, true, 502},
		{"unauthorized", 401, true, 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer gock.Off()
			gock.New("https://hub.example.com").
				Post("/_/api/log_payload").
				MatchHeader("Authorization", "^Bearer secret-key$").
				MatchHeader("X-Tenant-ID", "^tenant-42$").
				MatchHeader("Content-Type", "application/json").
				Reply(tt.reply).
				BodyString("nope")

			c := NewClient(testSecrets(), time.Second)
			msg, err := c.Forward(context.Background(), "evt_1", []byte(`{"event_id":"evt_1"}`))
			if tt.wantErr {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, tt.wantStatus, statusErr.StatusCode)
				assert.Equal(t, "nope", statusErr.Body)
			} else {
				require.NoError(t, err)
				assert.Contains(t, msg, "evt_1")
			}
			assert.True(t, gock.IsDone())
		})
	}
}

func TestForwardNotConfigured(t *testing.T) {
	defer gock.Off()
	secrets := testSecrets()
	delete(secrets, vault.KeyHubAPIKey)

	c := NewClient(secrets, time.Second)
	_, err := c.Forward(context.Background(), "evt_1", []byte(`{}`))
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Contains(t, err.Error(), vault.KeyHubAPIKey)
	assert.False(t, gock.HasUnmatchedRequest())
}

func TestForwardInvalidEndpoint(t *testing.T) {
	secrets := testSecrets()
	secrets[vault.KeyHubAPIEndpoint] = "not a url"

	_, err := NewClient(secrets, time.Second).Forward(context.Background(), "evt_1", []byte(`{}`))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestForwardTransportError(t *testing.T) {
	defer gock.Off()
	gock.New("https://hub.example.com").
		Post("/_/api/log_payload").
		ReplyError(errors.New("connection refused"))

	_, err := NewClient(testSecrets(), time.Second).Forward(context.Background(), "evt_1", []byte(`{}`))
	require.Error(t, err)
	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}

func TestRetrieve(t *testing.T) {
	defer gock.Off()
	gock.New("https://hub.example.com").
		Get("/_/api/get_payload/evt_9").
		MatchHeader("Authorization", "^Bearer secret-key$").
		MatchHeader("X-Tenant-ID", "^tenant-42$").
		Reply(200).
		BodyString(`{"event_id":"evt_9","event_type":"product.created","data":{"id":"pro_1"}}`)

	body, err := NewClient(testSecrets(), time.Second).Retrieve(context.Background(), "evt_9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_id":"evt_9","event_type":"product.created","data":{"id":"pro_1"}}`, string(body))
	assert.True(t, gock.IsDone())
}

func TestRetrieveErrors(t *testing.T) {
	defer gock.Off()
	gock.New("https://hub.example.com").
		Get("/_/api/get_payload/evt_404").
		Reply(404)
	gock.New("https://hub.example.com").
		Get("/_/api/get_payload/evt_empty").
		Reply(200)

	c := NewClient(testSecrets(), time.Second)

	_, err := c.Retrieve(context.Background(), "evt_404")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.StatusCode)
	assert.False(t, statusErr.Retryable())

	_, err = c.Retrieve(context.Background(), "evt_empty")
	assert.Error(t, err)

	_, err = c.Retrieve(context.Background(), " ")
	assert.Error(t, err)
}

func TestPayloadURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"https://hub.example.com", "https://hub.example.com/_/api/get_payload/evt%201%2F2"},
		{"https://hub.example.com/_/api/log_payload", "https://hub.example.com/_/api/get_payload/evt%201%2F2"},
		{"https://hub.example.com:8443/tenants/r2/?x=1", "https://hub.example.com:8443/tenants/r2/_/api/get_payload/evt%201%2F2"},
		{"https://hub.example.com/tenants/r2/_/api/log_payload", "https://hub.example.com/tenants/r2/_/api/get_payload/evt%201%2F2"},
		{"https://hub.example.com/_/api/v2/log", "https://hub.example.com/_/api/v2/log/_/api/get_payload/evt%201%2F2"},
	}
	for _, tt := range tests {
		u, err := payloadURL(tt.endpoint, "evt 1/2")
		require.NoError(t, err, tt.endpoint)
		assert.Equal(t, tt.want, u, tt.endpoint)
	}

	_, err := payloadURL("/relative", "evt")
	assert.Error(t, err)
}

func TestRetrieveUnderPathPrefix(t *testing.T) {
	defer gock.Off()
	gock.New("https://hub.example.com").
		Get("/tenants/r2/_/api/get_payload/evt_1").
		MatchHeader("X-Tenant-ID", "tenant-42").
		Reply(200).
		BodyString(`{"event_id":"evt_1"}`)

	secrets := testSecrets()
	secrets[vault.KeyHubAPIEndpoint] = "https://hub.example.com/tenants/r2/_/api/log_payload"
	c := NewClient(secrets, time.Second)

	raw, err := c.Retrieve(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_id":"evt_1"}`, string(raw))
	assert.True(t, gock.IsDone())
}

func TestErrorBodyKeepsUTF8(t *testing.T) {
	defer gock.Off()
	gock.New("https://hub.example.com").
		Post("/_/api/log_payload").
		Reply(500).
		BodyString(strings.Repeat("a", maxErrorBody-1) + "ü and more")

	c := NewClient(testSecrets(), time.Second)
	_, err := c.Forward(context.Background(), "evt_1", []byte(`{}`))
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.True(t, utf8.ValidString(statusErr.Body))
	assert.Equal(t, strings.Repeat("a", maxErrorBody-1), statusErr.Body)
	assert.True(t, utf8.ValidString(readErrorBody(strings.NewReader("bad \xff\xfe bytes"))))
}

func TestNewClientDefaultTimeout(t *testing.T) {
	c := NewClient(testSecrets(), 0)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
}
