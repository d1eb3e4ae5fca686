package envutil

import "testing"

func TestGetEnvOrFallback(t *testing.T) {
	t.Setenv("OPSTRACTOR_TEST_SET", "debug")
	t.Setenv("OPSTRACTOR_TEST_EMPTY", "")

	tests := []struct {
		key  string
		want string
	}{
		{key: "OPSTRACTOR_TEST_SET", want: "debug"},
		{key: "OPSTRACTOR_TEST_EMPTY", want: "info"},
		{key: "OPSTRACTOR_TEST_UNSET", want: "info"},
	}
	for _, tt := range tests {
		if got := GetEnvOrFallback(tt.key, "info"); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.key, tt.want, got)
		}
	}
}
