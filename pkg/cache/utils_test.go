package cache

import "testing"

func TestGenerateKey(t *testing.T) {
	tests := []struct {
		prefix string
		id     string
		want   string
	}{
		{"commitment", "active", "commitment:active"},
		{"wallet", "snapshot", "wallet:snapshot"},
		{"", "x", ":x"},
	}
	for _, tt := range tests {
		if got := GenerateKey(tt.prefix, tt.id); got != tt.want {
			t.Fatalf("GenerateKey(%q, %q) = %q, want %q", tt.prefix, tt.id, got, tt.want)
		}
	}
}
