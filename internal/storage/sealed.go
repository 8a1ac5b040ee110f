package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"

	"github.com/yndnr/mbaas-go/pkg/crypto/adaptive"
)

// Sealing errors.
var (
	ErrPassphraseTooWeak = errors.New("storage: passphrase too weak (minimum 8 characters)")
	ErrWrongPassphrase   = errors.New("storage: wrong passphrase or corrupted store")
	ErrUnsealFailed      = errors.New("storage: unseal failed - value corrupted or sealed with another key")
	ErrCipherMismatch    = errors.New("storage: store was sealed with a different cipher")
)

// Cipher names accepted by SealConfig.Cipher.
const (
	CipherAuto     = string(adaptive.CipherAuto)
	CipherAESGCM   = string(adaptive.CipherAESGCM)
	CipherChaCha20 = string(adaptive.CipherChaCha20)
)

const (
	// MinPassphraseLength is the minimum passphrase length.
	MinPassphraseLength = 8

	// SaltLength is the salt length used in key derivation.
	SaltLength = 16

	// Argon2id parameters for key derivation from the passphrase.
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32

	// Reserved keys; sealed values are never stored under these.
	reservedPrefix = "__seal/"
	saltKey        = reservedPrefix + "salt"
	cipherKey      = reservedPrefix + "cipher"
	verifierKey    = reservedPrefix + "verifier"

	subkeyInfo    = "mbaas store value key v1"
	verifierPlain = "mbaas-seal-ok"
)

// SealConfig configures at-rest sealing.
type SealConfig struct {
	// Passphrase is the secret the sealing key is derived from.
	Passphrase []byte

	// Cipher is "auto" (default), "aes-gcm" or "chacha20-poly1305". Auto
	// picks by CPU support when the store is created; the choice is
	// recorded in the store and reused afterwards.
	Cipher string
}

// Validate checks the configuration.
func (c SealConfig) Validate() error {
	if len(c.Passphrase) < MinPassphraseLength {
		return ErrPassphraseTooWeak
	}
	if _, err := adaptive.ParseType(c.Cipher); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// SealedStore encrypts values before handing them to the wrapped Store.
//
// Keys are stored in the clear; each value is sealed with its key as
// additional data, so a sealed value cannot be moved to another key.
// The derivation salt, the cipher name and a passphrase verifier live next
// to the data, which lets a later process with the same passphrase reopen
// the store.
type SealedStore struct {
	inner  Store
	cipher adaptive.Cipher
}

// NewSealedStore wraps inner with passphrase-based sealing. On first use it
// generates and persists a salt; afterwards it checks the passphrase against
// the stored verifier and fails with ErrWrongPassphrase on mismatch.
//
// The verifier is written last and marks setup as complete. A store without
// one, such as after an interrupted first open, is set up again.
func NewSealedStore(ctx context.Context, inner Store, cfg SealConfig) (*SealedStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	want, _ := adaptive.ParseType(cfg.Cipher)

	stored, err := inner.Get(ctx, []byte(verifierKey))
	fresh := errors.Is(err, ErrKeyNotFound)
	if err != nil && !fresh {
		return nil, fmt.Errorf("storage: read verifier: %w", err)
	}

	salt, err := loadOrCreateSalt(ctx, inner)
	if err != nil {
		return nil, err
	}

	typ, err := loadOrStoreCipher(ctx, inner, want, fresh)
	if err != nil {
		return nil, err
	}

	master := DeriveKeyFromPassphrase(cfg.Passphrase, salt)
	defer ZeroKey(master)

	key, err := DeriveSubkey(master, subkeyInfo, adaptive.KeySize)
	if err != nil {
		return nil, err
	}
	defer ZeroKey(key)

	c, err := adaptive.NewWithType(key, typ)
	if err != nil {
		return nil, err
	}

	s := &SealedStore{inner: inner, cipher: c}

	if fresh {
		sealed, err := s.cipher.Encrypt([]byte(verifierPlain), []byte(verifierKey))
		if err != nil {
			return nil, fmt.Errorf("storage: seal verifier: %w", err)
		}
		if err := inner.Set(ctx, []byte(verifierKey), sealed); err != nil {
			return nil, fmt.Errorf("storage: write verifier: %w", err)
		}
		return s, nil
	}

	plain, err := s.cipher.Decrypt(stored, []byte(verifierKey))
	if err != nil || !bytes.Equal(plain, []byte(verifierPlain)) {
		return nil, ErrWrongPassphrase
	}

	return s, nil
}

// Cipher returns the cipher in use, never "auto".
func (s *SealedStore) Cipher() string {
	return string(s.cipher.Type())
}

// Get returns the unsealed value for key.
func (s *SealedStore) Get(ctx context.Context, key []byte) ([]byte, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	plain, err := s.cipher.Decrypt(sealed, key)
	if err != nil {
		return nil, ErrUnsealFailed
	}
	return plain, nil
}

// Set seals value and stores it under key.
func (s *SealedStore) Set(ctx context.Context, key, value []byte) error {
	if isReservedKey(key) {
		return fmt.Errorf("storage: key %q is reserved", key)
	}
	sealed, err := s.cipher.Encrypt(value, key)
	if err != nil {
		return fmt.Errorf("storage: seal: %w", err)
	}
	return s.inner.Set(ctx, key, sealed)
}

// Delete removes key.
func (s *SealedStore) Delete(ctx context.Context, key []byte) error {
	if isReservedKey(key) {
		return fmt.Errorf("storage: key %q is reserved", key)
	}
	return s.inner.Delete(ctx, key)
}

func loadOrCreateSalt(ctx context.Context, inner Store) ([]byte, error) {
	salt, err := inner.Get(ctx, []byte(saltKey))
	if err == nil {
		if len(salt) != SaltLength {
			return nil, fmt.Errorf("storage: stored salt has invalid length %d", len(salt))
		}
		return salt, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, fmt.Errorf("storage: read salt: %w", err)
	}

	salt = make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("storage: generate salt: %w", err)
	}
	if err := inner.Set(ctx, []byte(saltKey), salt); err != nil {
		return nil, fmt.Errorf("storage: write salt: %w", err)
	}
	return salt, nil
}

// loadOrStoreCipher returns the cipher recorded in the store, recording the
// resolved want on first use. An explicit want must match the record. During
// setup (fresh) any earlier record is replaced.
func loadOrStoreCipher(ctx context.Context, inner Store, want adaptive.CipherType, fresh bool) (adaptive.CipherType, error) {
	if fresh {
		typ := want.Resolve()
		if err := inner.Set(ctx, []byte(cipherKey), []byte(typ)); err != nil {
			return "", fmt.Errorf("storage: write cipher: %w", err)
		}
		return typ, nil
	}

	stored, err := inner.Get(ctx, []byte(cipherKey))
	switch {
	case err == nil:
		typ, err := adaptive.ParseType(string(stored))
		if err != nil || typ == adaptive.CipherAuto {
			return "", fmt.Errorf("storage: stored cipher %q is invalid", stored)
		}
		if want != adaptive.CipherAuto && want != typ {
			return "", fmt.Errorf("%w: %s, configured %s", ErrCipherMismatch, typ, want)
		}
		return typ, nil
	case errors.Is(err, ErrKeyNotFound):
		typ := want.Resolve()
		if err := inner.Set(ctx, []byte(cipherKey), []byte(typ)); err != nil {
			return "", fmt.Errorf("storage: write cipher: %w", err)
		}
		return typ, nil
	default:
		return "", fmt.Errorf("storage: read cipher: %w", err)
	}
}

func isReservedKey(key []byte) bool {
	return bytes.HasPrefix(key, []byte(reservedPrefix))
}

// DeriveKeyFromPassphrase derives a 32-byte key from a passphrase using Argon2id.
func DeriveKeyFromPassphrase(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)
}

// DeriveSubkey derives a purpose-bound subkey from a master key using HKDF.
func DeriveSubkey(masterKey []byte, info string, length int) ([]byte, error) {
	reader := hkdf.New(sha256.New, masterKey, nil, []byte(info))
	key := make([]byte, length)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("storage: derive subkey: %w", err)
	}
	return key, nil
}

// ZeroKey overwrites key material in memory.
func ZeroKey(key []byte) {
	for i := range key {
		key[i] = 0
	}
}
