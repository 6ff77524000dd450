package vault

import (
	"strings"
	"testing"

	"vibedb/internal/domain"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-encryption-key-material", "test-salt")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return v
}

func TestNew_RejectsShortKey(t *testing.T) {
	if _, err := New("short", "salt"); err == nil {
		t.Error("expected error for short encryption key")
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	v := newTestVault(t)

	tests := []string{
		"postgres://vibe_user_abc123def456:pw@db.example.com:5432/sales",
		"",
		"plain secret with spaces and ünïcode",
	}
	for _, plaintext := range tests {
		ciphertext, err := v.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q) failed: %v", plaintext, err)
		}
		if ciphertext == plaintext && plaintext != "" {
			t.Errorf("ciphertext equals plaintext for %q", plaintext)
		}

		got, err := v.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt failed: %v", err)
		}
		if got != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncrypt_NonDeterministic(t *testing.T) {
	v := newTestVault(t)

	a, err := v.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	b, err := v.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected distinct ciphertexts for repeated encryption")
	}
}

func TestDecrypt_UnreadableCiphertext(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"too short", "YWJj"},
		{"tampered", func() string {
			c, _ := v.Encrypt("secret")
			return c[:len(c)-2] + "xx"
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := v.Decrypt(tt.ciphertext); err != domain.ErrCredentialUnreadable {
				t.Errorf("expected ErrCredentialUnreadable, got %v", err)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	v := newTestVault(t)
	other, err := New("a-different-key-entirely-here", "test-salt")
	if err != nil {
		t.Fatal(err)
	}

	ciphertext, err := v.Encrypt("secret")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Decrypt(ciphertext); err != domain.ErrCredentialUnreadable {
		t.Errorf("expected ErrCredentialUnreadable with wrong key, got %v", err)
	}
}

func TestNewAPIKey_Format(t *testing.T) {
	v := newTestVault(t)

	plaintext, digest, prefix, err := v.NewAPIKey("prod")
	if err != nil {
		t.Fatalf("NewAPIKey failed: %v", err)
	}

	if !strings.HasPrefix(plaintext, "vibe_prod_") {
		t.Errorf("plaintext %q should start with vibe_prod_", plaintext)
	}
	if got := len(plaintext) - len("vibe_prod_"); got != APIKeyRandomLen {
		t.Errorf("random part length = %d, want %d", got, APIKeyRandomLen)
	}
	if len(prefix) != KeyPrefixLen {
		t.Errorf("prefix length = %d, want %d", len(prefix), KeyPrefixLen)
	}
	if !strings.HasPrefix(plaintext, prefix) {
		t.Errorf("plaintext %q should start with prefix %q", plaintext, prefix)
	}
	if digest != v.HashAPIKey(plaintext) {
		t.Error("digest does not match HashAPIKey of plaintext")
	}
	if len(digest) != 64 {
		t.Errorf("digest length = %d, want 64 hex chars", len(digest))
	}
}

func TestHashAPIKey_SaltDependent(t *testing.T) {
	a, err := New("test-encryption-key-material", "salt-one")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("test-encryption-key-material", "salt-two")
	if err != nil {
		t.Fatal(err)
	}
	if a.HashAPIKey("vibe_prod_abc") == b.HashAPIKey("vibe_prod_abc") {
		t.Error("digests with different salts should differ")
	}
}

func TestVerifyPassword(t *testing.T) {
	v := newTestVault(t)

	hash := v.HashPassword("Secret123")
	if !v.VerifyPassword("Secret123", hash) {
		t.Error("correct password should verify")
	}
	if v.VerifyPassword("secret123", hash) {
		t.Error("wrong password should not verify")
	}
}

func TestNewPGCredentials_Format(t *testing.T) {
	username, password, err := NewPGCredentials()
	if err != nil {
		t.Fatalf("NewPGCredentials failed: %v", err)
	}

	if !domain.ValidPGUsername(username) {
		t.Errorf("username %q does not match the minted-role form", username)
	}
	if len(password) != PGPasswordLen {
		t.Errorf("password length = %d, want %d", len(password), PGPasswordLen)
	}
}

func TestNewPGCredentials_Unique(t *testing.T) {
	a, _, err := NewPGCredentials()
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := NewPGCredentials()
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected distinct usernames")
	}
}

func TestResetToken_DigestMatches(t *testing.T) {
	plaintext, digest, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken failed: %v", err)
	}
	if HashResetToken(plaintext) != digest {
		t.Error("HashResetToken of plaintext should equal the minted digest")
	}
	if HashResetToken("other") == digest {
		t.Error("different plaintexts should not collide")
	}
}
