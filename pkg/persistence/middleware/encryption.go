package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/callflow/pkg/domain"
	"github.com/aretw0/callflow/pkg/ports"
)

// envelopePrefix marks an encrypted field value.
const envelopePrefix = "enc:v1:"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	ports.SessionStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that encrypts the caller address
// with AES-GCM at rest. Sessions and history entries read back through it are
// decrypted; values written without encryption are passed through.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.SessionStore) ports.SessionStore {
		return &encryptionMiddleware{
			SessionStore: next,
			config:       config,
		}
	}, nil
}

// ParseKey decodes a base64 AES-256 key.
func ParseKey(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("failed to decode key base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}

func (m *encryptionMiddleware) Create(ctx context.Context, s *domain.Session) error {
	sealed, err := m.seal(s)
	if err != nil {
		return err
	}
	return m.SessionStore.Create(ctx, sealed)
}

func (m *encryptionMiddleware) Save(ctx context.Context, s *domain.Session) error {
	sealed, err := m.seal(s)
	if err != nil {
		return err
	}
	return m.SessionStore.Save(ctx, sealed)
}

func (m *encryptionMiddleware) Load(ctx context.Context, callID string) (*domain.Session, error) {
	s, err := m.SessionStore.Load(ctx, callID)
	if err != nil {
		return nil, err
	}
	if err := m.open(s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *encryptionMiddleware) Terminate(ctx context.Context, callID string, reason domain.TerminationReason, at time.Time) (*domain.HistoryEntry, error) {
	entry, err := m.SessionStore.Terminate(ctx, callID, reason, at)
	if err != nil {
		return nil, err
	}
	if err := m.open(&entry.Session); err != nil {
		return nil, err
	}
	return entry, nil
}

func (m *encryptionMiddleware) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	entries, err := m.SessionStore.History(ctx, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		if err := m.open(&entries[i].Session); err != nil {
			return nil, fmt.Errorf("history entry %s: %w", entries[i].Session.CallID, err)
		}
	}
	return entries, nil
}

func (m *encryptionMiddleware) seal(s *domain.Session) (*domain.Session, error) {
	cloned := s.Clone()
	if cloned.Caller == "" || strings.HasPrefix(cloned.Caller, envelopePrefix) {
		return cloned, nil
	}
	ciphertext, err := encrypt([]byte(cloned.Caller), m.config.ActiveKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt caller: %w", err)
	}
	cloned.Caller = envelopePrefix + base64.StdEncoding.EncodeToString(ciphertext)
	return cloned, nil
}

func (m *encryptionMiddleware) open(s *domain.Session) error {
	encoded, ok := strings.CutPrefix(s.Caller, envelopePrefix)
	if !ok {
		return nil
	}
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	// Try Active, then Fallback
	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return fmt.Errorf("failed to decrypt caller: %w", err)
	}
	s.Caller = string(plainText)
	return nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
