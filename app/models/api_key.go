package models

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// UserAPIKey holds the hashed API key an operator uses for the admin API.
type UserAPIKey struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"uniqueIndex" json:"user_id"`
	KeyHash    string     `gorm:"type:char(64);default:'';index" json:"-"`
	KeyPrefix  string     `gorm:"type:varchar(20);default:''" json:"key_prefix"`
	IssuedAt   *time.Time `json:"issued_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
	RevokedAt  *time.Time `json:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

var apiKeyEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

const apiKeyPrefix = "mbz_"

// IsActive reports whether the key can still authenticate.
func (k *UserAPIKey) IsActive() bool {
	return k != nil && k.KeyHash != "" && k.RevokedAt == nil
}

// Issue generates a new key, stores its hash on the struct and returns the
// raw secret. Callers persist the struct afterwards.
func (k *UserAPIKey) Issue() (string, error) {
	rawKey, prefix, hash, err := generateAPIKeyMaterial()
	if err != nil {
		return "", err
	}
	now := time.Now()
	k.KeyHash = hash
	k.KeyPrefix = prefix
	k.IssuedAt = &now
	k.RevokedAt = nil
	k.LastUsedAt = nil
	return rawKey, nil
}

// Revoke clears the key material without deleting the record.
func (k *UserAPIKey) Revoke() {
	k.KeyHash = ""
	k.KeyPrefix = ""
	now := time.Now()
	k.RevokedAt = &now
	k.LastUsedAt = nil
}

func (k *UserAPIKey) Touch() {
	now := time.Now()
	k.LastUsedAt = &now
}

// HashAPIKey returns the SHA-256 hash for the provided API key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}

func generateAPIKeyMaterial() (string, string, string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", "", err
	}
	rawKey := apiKeyPrefix + strings.ToLower(apiKeyEncoding.EncodeToString(b))
	if len(rawKey) < 12 {
		return "", "", "", fmt.Errorf("api key generation failed: key too short")
	}
	return rawKey, rawKey[:16], HashAPIKey(rawKey), nil
}
