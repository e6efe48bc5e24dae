package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/mybizz/mybizz/app/models"
	"github.com/mybizz/mybizz/app/repository"
	"golang.org/x/crypto/nacl/secretbox"
	"gorm.io/gorm"
)

const nonceSize = 24

// Store keeps secrets in the database sealed with NaCl secretbox.
type Store struct {
	repo repository.VaultRepository
	key  [32]byte
}

// NewStore creates a store from a hex encoded 32 byte master key.
func NewStore(repo repository.VaultRepository, masterKeyHex string) (*Store, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(masterKeyHex))
	if err != nil {
		return nil, fmt.Errorf("vault: decode master key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vault: master key must be 32 bytes, got %d", len(raw))
	}
	s := &Store{repo: repo}
	copy(s.key[:], raw)
	return s, nil
}

func (s *Store) GetSecret(ctx context.Context, key string) (string, error) {
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrSecretNotFound
		}
		return "", err
	}
	plain, err := s.open(rec.Ciphertext)
	if err != nil {
		log.Errorf("[Vault] Failed to open secret %s: %v", key, err)
		return "", err
	}
	return plain, nil
}

// SetSecret seals and stores value under key, replacing any previous value.
func (s *Store) SetSecret(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("vault: secret name is required")
	}
	sealed, err := s.seal(value)
	if err != nil {
		return err
	}
	return s.repo.Upsert(ctx, &models.VaultSecret{Name: key, Ciphertext: sealed})
}

func (s *Store) DeleteSecret(ctx context.Context, key string) error {
	return s.repo.Delete(ctx, key)
}

// Names lists stored secret names without decrypting them.
func (s *Store) Names(ctx context.Context) ([]string, error) {
	recs, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.Name)
	}
	return names, nil
}

func (s *Store) seal(plain string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", err
	}
	out := secretbox.Seal(nonce[:], []byte(plain), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

func (s *Store) open(sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("vault: decode ciphertext: %w", err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return "", errors.New("vault: ciphertext too short")
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", errors.New("vault: ciphertext authentication failed")
	}
	return string(plain), nil
}
