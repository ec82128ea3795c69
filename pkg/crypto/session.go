package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"

	"github.com/routewise/fieldsync/pkg/config"
	pkgerrors "github.com/routewise/fieldsync/pkg/errors"
)

// Session performs authenticated encryption for the device store. It must
// be initialized with the user secret exactly once before use; the derived
// key lives only in memory and is never persisted or logged.
type Session struct {
	mu   sync.RWMutex
	cfg  config.CryptoConfig
	aead interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
	}
}

// NewSession returns an uninitialized cipher session.
func NewSession(cfg config.CryptoConfig) *Session {
	return &Session{cfg: cfg}
}

// Initialize derives the symmetric key from the user secret via PBKDF2 and
// builds the AEAD. Calling it twice is an error; a new login gets a new
// session object.
func (s *Session) Initialize(secret string) error {
	if secret == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "secret is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.aead != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cipher session already initialized")
	}

	key := pbkdf2.Key([]byte(secret), []byte(s.cfg.KDFSalt), s.cfg.KDFIterations, s.cfg.KeyLen, sha256.New)
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building aead")
	}
	s.aead = aead
	return nil
}

// Initialized reports whether the key has been derived.
func (s *Session) Initialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aead != nil
}

// EncryptJSON serializes v and seals it with a fresh random nonce. Nonces
// are never cached or reused; reuse under one key breaks the AEAD.
func (s *Session) EncryptJSON(v any) (ciphertext, nonce []byte, err error) {
	s.mu.RLock()
	aead := s.aead
	s.mu.RUnlock()

	if aead == nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeNotInitialized, "encrypt called before initialize")
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "serializing payload")
	}

	nonce = make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating nonce")
	}

	return aead.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// DecryptJSON opens the ciphertext and deserializes it into out. Tampered
// data or a wrong key fails with a decryption error, never garbage output.
func (s *Session) DecryptJSON(ciphertext, nonce []byte, out any) error {
	s.mu.RLock()
	aead := s.aead
	s.mu.RUnlock()

	if aead == nil {
		return pkgerrors.New(pkgerrors.CodeNotInitialized, "decrypt called before initialize")
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return pkgerrors.New(pkgerrors.CodeDecryptionFailed, fmt.Sprintf("nonce must be %d bytes", chacha20poly1305.NonceSize))
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDecryptionFailed, err, "opening ciphertext")
	}

	if err := json.Unmarshal(plaintext, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDecryptionFailed, err, "deserializing payload")
	}
	return nil
}
