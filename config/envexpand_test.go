package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("HERALD_TEST_TOKEN", "123:abc")
	t.Setenv("HERALD_TEST_EMPTY", "")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "set variable",
			input: "token: ${HERALD_TEST_TOKEN}",
			want:  "token: 123:abc",
		},
		{
			name:  "unset variable expands to empty",
			input: "token: ${HERALD_TEST_UNSET}",
			want:  "token: ",
		},
		{
			name:  "unset variable with default",
			input: "interval: ${HERALD_TEST_UNSET:-15s}",
			want:  "interval: 15s",
		},
		{
			name:  "empty variable falls back to default",
			input: "interval: ${HERALD_TEST_EMPTY:-30s}",
			want:  "interval: 30s",
		},
		{
			name:  "set variable ignores default",
			input: "token: ${HERALD_TEST_TOKEN:-fallback}",
			want:  "token: 123:abc",
		},
		{
			name:  "no pattern passes through",
			input: "plain text $HOME {not a var}",
			want:  "plain text $HOME {not a var}",
		},
		{
			name:  "multiple patterns in one line",
			input: "${HERALD_TEST_TOKEN}/${HERALD_TEST_UNSET:-x}",
			want:  "123:abc/x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpandEnv(tt.input)
			if got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
