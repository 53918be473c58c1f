package ui

import "testing"

func TestStatusWithoutColor(t *testing.T) {
	DisableColors()
	defer EnableColors()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"success", StatusSuccess("price"), "✓ price"},
		{"error", StatusError("boom"), "✗ boom"},
		{"pending", StatusPending("status"), "○ status"},
		{"bare symbol", StatusSuccess(""), "✓"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Fatalf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestToggleColors(t *testing.T) {
	DisableColors()
	if IsColorEnabled() {
		t.Fatal("colors still enabled")
	}
	EnableColors()
	if !IsColorEnabled() {
		t.Fatal("colors still disabled")
	}
	DisableColors()
}
