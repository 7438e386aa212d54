package database

import "testing"

func TestOperation(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{"UPDATE 1", "update"},
		{"INSERT 0 1", "insert"},
		{"SELECT 12", "select"},
		{"BEGIN", "begin"},
		{"", "other"},
	}

	for _, tt := range tests {
		if got := operation(tt.tag); got != tt.want {
			t.Errorf("operation(%q) = %q, want %q", tt.tag, got, tt.want)
		}
	}
}
