package user

import (
	"strings"
	"testing"
)

func Test_generateCode(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		code, err := generateCode()
		if err != nil {
			t.Fatalf("generateCode(): %v", err)
		}
		if len(code) != codeLength {
			t.Fatalf("generateCode() len = %d, want %d", len(code), codeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(codeAlphabet, c) {
				t.Fatalf("generateCode() produced %q: %q not in alphabet", code, c)
			}
		}
		seen[code] = struct{}{}
	}
	// uniform 36^8 draws virtually never collide within 100 codes
	if len(seen) < 99 {
		t.Errorf("generateCode() produced %d distinct codes out of 100", len(seen))
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abcd1234", "ABCD1234"},
		{"  ABCD1234  ", "ABCD1234"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeCode(tt.in); got != tt.want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
