package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/mybizz/mybizz/internal/pkg/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "pdl_ntfset_test_secret"

func newTestVerifier(now time.Time) *Verifier {
	v := NewVerifier(vault.Static{vault.KeyPaddleWebhookSecret: testSecret})
	v.now = func() time.Time { return now }
	return v
}

func signatureStatus(t *testing.T, err error) int {
	t.Helper()
	var sigErr *SignatureError
	require.True(t, errors.As(err, &sigErr), "expected *SignatureError, got %v", err)
	return sigErr.Status
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"event_id":"evt_1","event_type":"transaction.paid","data":{"id":"txn_1"}}`)
	v := newTestVerifier(now)

	require.NoError(t, v.Verify(context.Background(), Sign(testSecret, now, body), body))

	// comma separated form
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte("1700000000:"))
	mac.Write(body)
	header := "ts=1700000000,h1=" + hex.EncodeToString(mac.Sum(nil))
	require.NoError(t, v.Verify(context.Background(), header, body))
}

func TestVerifyRejections(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"event_id":"evt_1"}`)
	valid := Sign(testSecret, now, body)

	flipped := append([]byte(nil), body...)
	flipped[3] ^= 0x01

	tests := []struct {
		name   string
		header string
		body   []byte
		now    time.Time
		want   int
	}{
		{name: "missing header", header: "", body: body, now: now, want: http.StatusBadRequest},
		{name: "no h1", header: "ts=1700000000", body: body, now: now, want: http.StatusBadRequest},
		{name: "no ts", header: "h1=abcd", body: body, now: now, want: http.StatusBadRequest},
		{name: "garbage", header: "nonsense", body: body, now: now, want: http.StatusBadRequest},
		{name: "non numeric ts", header: "ts=yesterday;h1=abcd", body: body, now: now, want: http.StatusBadRequest},
		{name: "flipped body byte", header: valid, body: flipped, now: now, want: http.StatusForbidden},
		{name: "wrong secret", header: Sign("other-secret", now, body), body: body, now: now, want: http.StatusForbidden},
		{name: "non hex h1", header: "ts=1700000000;h1=zzzz", body: body, now: now, want: http.StatusForbidden},
		{name: "stale", header: valid, body: body, now: now.Add(5*time.Minute + time.Second), want: http.StatusForbidden},
		{name: "future", header: valid, body: body, now: now.Add(-6 * time.Minute), want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTestVerifier(tt.now).Verify(context.Background(), tt.header, tt.body)
			require.Error(t, err)
			assert.Equal(t, tt.want, signatureStatus(t, err))
		})
	}
}

func TestVerifyWithinWindow(t *testing.T) {
	signedAt := time.Unix(1700000000, 0)
	body := []byte(`{}`)
	header := Sign(testSecret, signedAt, body)

	assert.NoError(t, newTestVerifier(signedAt.Add(5*time.Minute)).Verify(context.Background(), header, body))
	assert.NoError(t, newTestVerifier(signedAt.Add(-5*time.Minute)).Verify(context.Background(), header, body))
}

func TestVerifyMissingSecret(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{}`)
	v := NewVerifier(vault.Static{})
	v.now = func() time.Time { return now }

	err := v.Verify(context.Background(), Sign(testSecret, now, body), body)
	assert.Equal(t, http.StatusInternalServerError, signatureStatus(t, err))
}

func TestVerifyAcceptsRotatedSecretCandidate(t *testing.T) {
	now := time.Unix(1700000000, 0)
	body := []byte(`{"a":1}`)
	good := Sign(testSecret, now, body)
	header := "ts=" + strconv.FormatInt(now.Unix(), 10) + ";h1=" + hex.EncodeToString([]byte("stale-secret-signature")) + ";" + good[len("ts=1700000000;"):]

	assert.NoError(t, newTestVerifier(now).Verify(context.Background(), header, body))
}
