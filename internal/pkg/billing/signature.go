package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/internal/pkg/vault"
)

const (
	SignatureHeader         = "Paddle-Signature"
	DefaultSignatureWindow  = 5 * time.Minute
	ReasonMissingHeader     = "missing_header"
	ReasonMalformedHeader   = "malformed_header"
	ReasonSecretUnavailable = "secret_unavailable"
	ReasonMismatch          = "signature_mismatch"
	ReasonStaleTimestamp    = "timestamp_out_of_range"
)

// SignatureError carries the HTTP status the endpoint answers with.
type SignatureError struct {
	Status int
	Reason string
	Err    error
}

func (e *SignatureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("paddle signature: %s: %v", e.Reason, e.Err)
	}
	return "paddle signature: " + e.Reason
}

func (e *SignatureError) Unwrap() error { return e.Err }

// Verifier checks Paddle-Signature headers against the tenant webhook secret.
type Verifier struct {
	secrets vault.Provider
	window  time.Duration
	now     func() time.Time
}

func NewVerifier(secrets vault.Provider) *Verifier {
	return &Verifier{secrets: secrets, window: DefaultSignatureWindow, now: time.Now}
}

// Verify returns nil when the header is a valid, fresh signature of body.
// Every failure is a *SignatureError.
func (v *Verifier) Verify(ctx context.Context, header string, body []byte) error {
	header = strings.TrimSpace(header)
	if header == "" {
		log.Warnf("[Signature] Missing %s header", SignatureHeader)
		return &SignatureError{Status: http.StatusBadRequest, Reason: ReasonMissingHeader}
	}

	ts, signatures, err := parseSignatureHeader(header)
	if err != nil {
		log.Warnf("[Signature] Malformed %s header: %v", SignatureHeader, err)
		return &SignatureError{Status: http.StatusBadRequest, Reason: ReasonMalformedHeader, Err: err}
	}

	secret, err := v.secrets.GetSecret(ctx, vault.KeyPaddleWebhookSecret)
	if err != nil || strings.TrimSpace(secret) == "" {
		log.Errorf("[Signature] CRITICAL: webhook secret %s unavailable: %v", vault.KeyPaddleWebhookSecret, err)
		return &SignatureError{Status: http.StatusInternalServerError, Reason: ReasonSecretUnavailable, Err: err}
	}

	expected := computeSignature([]byte(secret), ts, body)
	matched := false
	for _, sig := range signatures {
		got, err := hex.DecodeString(strings.ToLower(sig))
		if err != nil {
			continue
		}
		if hmac.Equal(expected, got) {
			matched = true
		}
	}
	if !matched {
		log.Warnf("[Signature] Signature mismatch (ts=%s, candidates=%d, body_bytes=%d)", ts, len(signatures), len(body))
		return &SignatureError{Status: http.StatusForbidden, Reason: ReasonMismatch}
	}

	unix, _ := strconv.ParseInt(ts, 10, 64)
	skew := v.now().UTC().Sub(time.Unix(unix, 0).UTC())
	if skew < 0 {
		skew = -skew
	}
	if skew > v.window {
		log.Warnf("[Signature] Timestamp %s outside tolerance (skew=%s)", ts, skew.Round(time.Second))
		return &SignatureError{Status: http.StatusForbidden, Reason: ReasonStaleTimestamp}
	}

	log.Debugf("[Signature] Verified signature (ts=%s)", ts)
	return nil
}

// Sign builds a Paddle-Signature header value for body at ts.
func Sign(secret string, ts time.Time, body []byte) string {
	unix := strconv.FormatInt(ts.Unix(), 10)
	return "ts=" + unix + ";h1=" + hex.EncodeToString(computeSignature([]byte(secret), unix, body))
}

func computeSignature(secret []byte, ts string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte(":"))
	mac.Write(body)
	return mac.Sum(nil)
}

// parseSignatureHeader accepts "ts=<unix>;h1=<hex>" and the comma separated
// form. Several h1 values may be present during secret rotation.
func parseSignatureHeader(header string) (string, []string, error) {
	var ts string
	var h1 []string
	parts := strings.FieldsFunc(header, func(r rune) bool { return r == ';' || r == ',' })
	for _, part := range parts {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			return "", nil, fmt.Errorf("segment %q is not key=value", part)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])
		switch key {
		case "ts":
			ts = val
		case "h1":
			if val != "" {
				h1 = append(h1, val)
			}
		}
	}
	if ts == "" {
		return "", nil, fmt.Errorf("ts is missing")
	}
	if len(h1) == 0 {
		return "", nil, fmt.Errorf("h1 is missing")
	}
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return "", nil, fmt.Errorf("ts %q is not a unix timestamp", ts)
	}
	return ts, h1, nil
}
