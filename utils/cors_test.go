package utils

import "testing"

func TestIsAllowedOrigin(t *testing.T) {
	cases := []struct {
		origin string
		want   bool
	}{
		{"http://localhost:3000", true},
		{"http://mybox.local", true},
		{"http://mediaserver", true},
		{"http://192.168.1.50:8475", true},
		{"http://10.1.2.3", true},
		{"http://172.20.0.1", true},
		{"http://[::1]:8475", true},
		{"http://[fe80::1]", true},
		{"https://example.com", false},
		{"http://8.8.8.8", false},
		{"", false},
		{"not a url", false},
	}
	for _, tc := range cases {
		if got := IsAllowedOrigin(tc.origin); got != tc.want {
			t.Errorf("IsAllowedOrigin(%q) = %v, want %v", tc.origin, got, tc.want)
		}
	}
}
