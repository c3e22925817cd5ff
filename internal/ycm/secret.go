package ycm

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
)

// secretLen is the length of the session secret in bytes.
const secretLen = sha256.Size

// SecretStore generates and holds the session's shared secret.
//
// The secret lives for exactly one daemon session: Generate creates it,
// Clear zeroes and drops it. The secret is never logged and never leaves
// the process except inside the daemon's options file.
type SecretStore struct {
	mu     sync.Mutex
	secret []byte
}

// NewSecretStore creates an empty secret store.
func NewSecretStore() *SecretStore {
	return &SecretStore{}
}

// Generate produces 32 bytes of key material by hashing a random seed with
// SHA-256 and installs it as the current secret, replacing any previous
// one. Secrets differ per session.
func (s *SecretStore) Generate() ([]byte, error) {
	seed := make([]byte, secretLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate secret seed: %w", err)
	}
	sum := sha256.Sum256(seed)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.zeroLocked()
	s.secret = sum[:]

	out := make([]byte, secretLen)
	copy(out, s.secret)
	return out, nil
}

// Current returns a copy of the held secret, or ErrNoActiveSecret if the
// store has been cleared or never generated.
func (s *SecretStore) Current() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.secret == nil {
		return nil, ErrNoActiveSecret
	}
	out := make([]byte, len(s.secret))
	copy(out, s.secret)
	return out, nil
}

// Base64 returns the base64 form of the secret for the options file.
func (s *SecretStore) Base64() (string, error) {
	secret, err := s.Current()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(secret), nil
}

// Sign computes the HMAC-SHA256 of message under the current secret.
// Fails with ErrNoActiveSecret after Clear.
func (s *SecretStore) Sign(message []byte) ([]byte, error) {
	secret, err := s.Current()
	if err != nil {
		return nil, err
	}
	return SignHMACSHA256(secret, message), nil
}

// Clear overwrites and drops the held secret. Idempotent; subsequent
// signing attempts fail with ErrNoActiveSecret.
func (s *SecretStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zeroLocked()
}

// zeroLocked zeroes the backing array before dropping the reference.
// Must hold mu.
func (s *SecretStore) zeroLocked() {
	for i := range s.secret {
		s.secret[i] = 0
	}
	s.secret = nil
}
