package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/yndnr/mbaas-go/internal/telemetry/logger"
)

func TestSealConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SealConfig
		wantErr bool
	}{
		{"valid default cipher", SealConfig{Passphrase: []byte("mypassword123")}, false},
		{"valid chacha", SealConfig{Passphrase: []byte("mypassword123"), Cipher: CipherChaCha20}, false},
		{"valid auto", SealConfig{Passphrase: []byte("mypassword123"), Cipher: CipherAuto}, false},
		{"passphrase too weak", SealConfig{Passphrase: []byte("short")}, true},
		{"unknown cipher", SealConfig{Passphrase: []byte("mypassword123"), Cipher: "rot13"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSealedStore_RoundTrip(t *testing.T) {
	for _, cipherName := range []string{CipherAESGCM, CipherChaCha20} {
		t.Run(cipherName, func(t *testing.T) {
			inner := newTestEngine(t, InMemoryKVConfig())
			ctx := context.Background()

			sealed, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse"), Cipher: cipherName})
			if err != nil {
				t.Fatal(err)
			}

			if err := sealed.Set(ctx, []byte("sessionToken"), []byte("testSessionToken")); err != nil {
				t.Fatal(err)
			}

			raw, err := inner.Get(ctx, []byte("sessionToken"))
			if err != nil {
				t.Fatal(err)
			}
			if bytes.Contains(raw, []byte("testSessionToken")) {
				t.Error("value should not be stored in plaintext")
			}

			got, err := sealed.Get(ctx, []byte("sessionToken"))
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "testSessionToken" {
				t.Errorf("Get() = %q, want testSessionToken", got)
			}

			if err := sealed.Delete(ctx, []byte("sessionToken")); err != nil {
				t.Fatal(err)
			}
			if _, err := sealed.Get(ctx, []byte("sessionToken")); !errors.Is(err, ErrKeyNotFound) {
				t.Errorf("Get after Delete = %v, want ErrKeyNotFound", err)
			}
		})
	}
}

func TestSealedStore_Reopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	engine, err := NewBadgerEngine(DefaultKVConfig(dir), logger.Discard())
	if err != nil {
		t.Fatal(err)
	}
	sealed, err := NewSealedStore(ctx, engine, SealConfig{Passphrase: []byte("correct horse")})
	if err != nil {
		t.Fatal(err)
	}
	if err := sealed.Set(ctx, []byte("sessionToken"), []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	if err := engine.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := newTestEngine(t, DefaultKVConfig(dir))

	t.Run("wrong passphrase", func(t *testing.T) {
		_, err := NewSealedStore(ctx, reopened, SealConfig{Passphrase: []byte("battery staple")})
		if !errors.Is(err, ErrWrongPassphrase) {
			t.Errorf("expected ErrWrongPassphrase, got %v", err)
		}
	})

	t.Run("same passphrase", func(t *testing.T) {
		again, err := NewSealedStore(ctx, reopened, SealConfig{Passphrase: []byte("correct horse")})
		if err != nil {
			t.Fatal(err)
		}
		got, err := again.Get(ctx, []byte("sessionToken"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "persisted" {
			t.Errorf("Get() = %q, want persisted", got)
		}
	})
}

func TestSealedStore_CipherRecorded(t *testing.T) {
	inner := newTestEngine(t, InMemoryKVConfig())
	ctx := context.Background()

	first, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse"), Cipher: CipherChaCha20})
	if err != nil {
		t.Fatal(err)
	}
	if first.Cipher() != CipherChaCha20 {
		t.Errorf("Cipher() = %q, want %q", first.Cipher(), CipherChaCha20)
	}
	if err := first.Set(ctx, []byte("sessionToken"), []byte("value")); err != nil {
		t.Fatal(err)
	}

	t.Run("auto reuses the record", func(t *testing.T) {
		again, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse"), Cipher: CipherAuto})
		if err != nil {
			t.Fatal(err)
		}
		if again.Cipher() != CipherChaCha20 {
			t.Errorf("Cipher() = %q, want %q", again.Cipher(), CipherChaCha20)
		}
		got, err := again.Get(ctx, []byte("sessionToken"))
		if err != nil || string(got) != "value" {
			t.Errorf("Get() = %q, %v", got, err)
		}
	})

	t.Run("explicit mismatch", func(t *testing.T) {
		_, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse"), Cipher: CipherAESGCM})
		if !errors.Is(err, ErrCipherMismatch) {
			t.Errorf("err = %v, want ErrCipherMismatch", err)
		}
	})
}

// failingStore fails Set for one key, as a full disk or a crash would.
type failingStore struct {
	Store
	failKey string
}

var errDiskFull = errors.New("disk full")

func (s *failingStore) Set(ctx context.Context, key, value []byte) error {
	if string(key) == s.failKey {
		return errDiskFull
	}
	return s.Store.Set(ctx, key, value)
}

func TestSealedStore_InterruptedSetup(t *testing.T) {
	tests := []struct {
		name    string
		failKey string
	}{
		{"after salt", cipherKey},
		{"after salt and cipher", verifierKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := newTestEngine(t, InMemoryKVConfig())
			ctx := context.Background()
			cfg := SealConfig{Passphrase: []byte("correct horse"), Cipher: CipherChaCha20}

			_, err := NewSealedStore(ctx, &failingStore{Store: inner, failKey: tt.failKey}, cfg)
			if !errors.Is(err, errDiskFull) {
				t.Fatalf("first open err = %v, want disk full", err)
			}
			if _, err := inner.Get(ctx, []byte(saltKey)); err != nil {
				t.Fatalf("salt should have been written: %v", err)
			}

			// A later open with a different cipher completes the setup.
			cfg.Cipher = CipherAESGCM
			s, err := NewSealedStore(ctx, inner, cfg)
			if err != nil {
				t.Fatalf("reopen: %v", err)
			}
			if s.Cipher() != CipherAESGCM {
				t.Errorf("Cipher() = %q, want %q", s.Cipher(), CipherAESGCM)
			}
			if err := s.Set(ctx, []byte("sessionToken"), []byte("value")); err != nil {
				t.Fatal(err)
			}

			again, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse")})
			if err != nil {
				t.Fatalf("open after setup: %v", err)
			}
			if got, err := again.Get(ctx, []byte("sessionToken")); err != nil || string(got) != "value" {
				t.Errorf("Get() = %q, %v", got, err)
			}

			if _, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("battery staple")}); !errors.Is(err, ErrWrongPassphrase) {
				t.Errorf("wrong passphrase err = %v, want ErrWrongPassphrase", err)
			}
		})
	}
}

func TestSealedStore_ValueBoundToKey(t *testing.T) {
	inner := newTestEngine(t, InMemoryKVConfig())
	ctx := context.Background()

	sealed, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse")})
	if err != nil {
		t.Fatal(err)
	}
	if err := sealed.Set(ctx, []byte("a"), []byte("value")); err != nil {
		t.Fatal(err)
	}

	// Move the sealed bytes to a different key behind the store's back.
	raw, err := inner.Get(ctx, []byte("a"))
	if err != nil {
		t.Fatal(err)
	}
	if err := inner.Set(ctx, []byte("b"), raw); err != nil {
		t.Fatal(err)
	}

	if _, err := sealed.Get(ctx, []byte("b")); !errors.Is(err, ErrUnsealFailed) {
		t.Errorf("expected ErrUnsealFailed for moved value, got %v", err)
	}
}

func TestSealedStore_ReservedKeys(t *testing.T) {
	inner := newTestEngine(t, InMemoryKVConfig())
	ctx := context.Background()

	sealed, err := NewSealedStore(ctx, inner, SealConfig{Passphrase: []byte("correct horse")})
	if err != nil {
		t.Fatal(err)
	}

	if err := sealed.Set(ctx, []byte("__seal/salt"), []byte("x")); err == nil {
		t.Error("Set on reserved key should fail")
	}
	if err := sealed.Delete(ctx, []byte("__seal/verifier")); err == nil {
		t.Error("Delete on reserved key should fail")
	}
	if err := sealed.Set(ctx, []byte("__seal/cipher"), []byte("aes-gcm")); err == nil {
		t.Error("Set on the cipher record should fail")
	}
}

func TestDeriveSubkey_Deterministic(t *testing.T) {
	master := DeriveKeyFromPassphrase([]byte("correct horse"), make([]byte, SaltLength))

	k1, err := DeriveSubkey(master, "purpose-a", 32)
	if err != nil {
		t.Fatal(err)
	}
	k2, err := DeriveSubkey(master, "purpose-a", 32)
	if err != nil {
		t.Fatal(err)
	}
	k3, err := DeriveSubkey(master, "purpose-b", 32)
	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(k1, k2) {
		t.Error("same info should derive the same subkey")
	}
	if bytes.Equal(k1, k3) {
		t.Error("different info should derive different subkeys")
	}

	ZeroKey(k1)
	if !bytes.Equal(k1, make([]byte, 32)) {
		t.Error("ZeroKey should clear the key")
	}
}
