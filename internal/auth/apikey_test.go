package auth

import (
	"strings"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	seen := make(map[string]bool)
	for _, env := range []string{"prod", "dev", "prod", "staging"} {
		key, err := GenerateKey(env)
		if err != nil {
			t.Fatalf("GenerateKey(%q): %v", env, err)
		}
		gotEnv, secret, ok := splitKey(key)
		if !ok || gotEnv != env {
			t.Fatalf("GenerateKey(%q) = %q does not split back to its env", env, key)
		}
		if len(secret) != keySecretLen {
			t.Errorf("secret length %d, want %d", len(secret), keySecretLen)
		}
		if strings.Trim(secret, keyAlphabet) != "" {
			t.Errorf("secret %q has characters outside the alphabet", secret)
		}
		if seen[key] {
			t.Errorf("duplicate key %s", key)
		}
		seen[key] = true
	}
}

func TestHashKey(t *testing.T) {
	// SHA-256 of "abc".
	if got := HashKey("abc"); got != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Errorf("HashKey(abc) = %s", got)
	}
	if HashKey("chatgw-prod-a") == HashKey("chatgw-prod-b") {
		t.Error("different keys should produce different hashes")
	}
}

func TestKeyPrefix(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"chatgw-prod-abcdefghijklmnopqrstuvwxyz012345", "chatgw-prod-abcdefgh"},
		{"chatgw-dev-12345678901234567890123456789012", "chatgw-dev-12345678"},
		{"short", "short"},
		{"sk-not-a-gateway-key-at-all", "sk-not-a-gateway"},
	}

	for _, tt := range tests {
		got := KeyPrefix(tt.key)
		if got != tt.expected {
			t.Errorf("KeyPrefix(%q) = %q, want %q", tt.key, got, tt.expected)
		}
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
		hours   float64
	}{
		{"365d", false, 365 * 24},
		{"30d", false, 30 * 24},
		{"24h", false, 24},
		{"1h", false, 1},
		{"0d", false, 0},
		{"", true, 0},
		{"xd", true, 0},
		{"-3d", true, 0},
	}

	for _, tt := range tests {
		dur, err := ParseDuration(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseDuration(%q) should have errored", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseDuration(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if dur.Hours() != tt.hours {
			t.Errorf("ParseDuration(%q) = %v hours, want %v", tt.input, dur.Hours(), tt.hours)
		}
	}
}

func TestSplitKey(t *testing.T) {
	tests := []struct {
		key    string
		env    string
		secret string
		ok     bool
	}{
		{"chatgw-prod-abc123", "prod", "abc123", true},
		{"chatgw-dev-abc-def", "dev", "abc-def", true},
		{"chatgw-prod-", "", "", false},
		{"chatgw--abc", "", "", false},
		{"sk-proj-abc", "", "", false},
		{"chatgw", "", "", false},
	}
	for _, tt := range tests {
		env, secret, ok := splitKey(tt.key)
		if ok != tt.ok || env != tt.env || secret != tt.secret {
			t.Errorf("splitKey(%q) = %q, %q, %v; want %q, %q, %v", tt.key, env, secret, ok, tt.env, tt.secret, tt.ok)
		}
	}
}
