package vault

import (
	"context"
	"errors"
	"strings"
)

// Secret names used by the webhook pipeline.
const (
	KeyPaddleWebhookSecret = "paddle_webhook_secret"
	KeyHubAPIEndpoint      = "r2hub_api_endpoint"
	KeyHubTenantID         = "r2hub_tenant_id"
	KeyHubAPIKey           = "r2hub_api_key"
)

// ErrSecretNotFound is returned when no provider holds the requested secret.
var ErrSecretNotFound = errors.New("vault: secret not found")

// Provider resolves tenant secrets for server-side use.
type Provider interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// Chain asks each provider in order and returns the first value found.
type Chain []Provider

func (c Chain) GetSecret(ctx context.Context, key string) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		v, err := p.GetSecret(ctx, key)
		if err == nil && strings.TrimSpace(v) != "" {
			return v, nil
		}
		if err != nil && !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
	}
	return "", ErrSecretNotFound
}

// Static is an in-memory provider, used by the CLI and in tests.
type Static map[string]string

func (s Static) GetSecret(_ context.Context, key string) (string, error) {
	v, ok := s[key]
	if !ok || strings.TrimSpace(v) == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}
