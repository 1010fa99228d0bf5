package helpers

import "testing"

func TestBytesToSize(t *testing.T) {
	tests := []struct {
		name  string
		bytes uint64
		want  string
	}{
		{"zero bytes", 0, "0B"},
		{"bytes", 500, "500.00B"},
		{"kilobytes", 1024, "1.00KB"},
		{"kilobytes fractional", 1536, "1.50KB"},
		{"megabytes", 1024 * 1024, "1.00MB"},
		{"megabytes fractional", 1024*1024 + 512*1024, "1.50MB"},
		{"gigabytes", 1024 * 1024 * 1024, "1.00GB"},
		{"terabytes", 1024 * 1024 * 1024 * 1024, "1.00TB"},
		{"large terabytes", 1536 * 1024 * 1024 * 1024, "1.50TB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BytesToSize(tt.bytes)
			if got != tt.want {
				t.Errorf("BytesToSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}
