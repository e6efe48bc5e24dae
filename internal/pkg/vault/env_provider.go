package vault

import (
	"context"
	"strings"

	"github.com/mybizz/mybizz/internal/pkg/env"
)

// EnvProvider reads secrets from the environment. The variable name is the
// upper-cased key, e.g. paddle_webhook_secret -> PADDLE_WEBHOOK_SECRET.
type EnvProvider struct{}

func NewEnvProvider() *EnvProvider {
	return &EnvProvider{}
}

func (p *EnvProvider) GetSecret(_ context.Context, key string) (string, error) {
	v := strings.TrimSpace(env.GetEnv(strings.ToUpper(key), ""))
	if v == "" {
		return "", ErrSecretNotFound
	}
	return v, nil
}
