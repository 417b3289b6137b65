package application

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordHashing(t *testing.T) {
	t.Parallel()

	t.Run("verifies a freshly created hash", func(t *testing.T) {
		t.Parallel()

		hash, err := CreatePasswordHash("tres-secret", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("CreatePasswordHash failed: %v", err)
		}
		if !strings.HasPrefix(hash, "$argon2id$") {
			t.Fatalf("unexpected hash encoding: %q", hash)
		}
		if err := VerifyPassword(hash, "tres-secret"); err != nil {
			t.Fatalf("VerifyPassword failed: %v", err)
		}
	})

	t.Run("rejects a wrong password", func(t *testing.T) {
		t.Parallel()

		hash, err := CreatePasswordHash("tres-secret", DefaultArgon2idParams)
		if err != nil {
			t.Fatalf("CreatePasswordHash failed: %v", err)
		}
		if err := VerifyPassword(hash, "pas-le-bon"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects malformed stored hashes", func(t *testing.T) {
		t.Parallel()

		for _, stored := range []string{
			"",
			"plaintext",
			"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			"$argon2id$v=12$m=65536,t=3,p=2$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=3,p=2$not!base64$aGFzaA",
		} {
			if err := VerifyPassword(stored, "whatever"); !errors.Is(err, ErrInvalidPasswordHash) {
				t.Fatalf("expected ErrInvalidPasswordHash for %q, got %v", stored, err)
			}
		}
	})
}
