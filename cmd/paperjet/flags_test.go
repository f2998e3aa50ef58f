package main

import (
	"io"
	"testing"
)

func TestParseFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want serverFlags
	}{
		{
			name: "no flags",
			args: nil,
			want: serverFlags{},
		},
		{
			name: "long flags",
			args: []string{"--engine-url", "ws://x:9222", "--port", "9000", "--pool-size", "6", "--verbose"},
			want: serverFlags{engineURL: "ws://x:9222", port: 9000, poolSize: 6, verbose: true},
		},
		{
			name: "short flags",
			args: []string{"-c", "cfg.yaml", "-p", "8081", "-n", "2", "-v"},
			want: serverFlags{config: "cfg.yaml", port: 8081, poolSize: 2, verbose: true},
		},
		{
			name: "launch browser",
			args: []string{"--launch-browser"},
			want: serverFlags{launchBrowser: true},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseFlags(tt.args, io.Discard)
			if err != nil {
				t.Fatalf("parseFlags() unexpected error: %v", err)
			}
			if *got != tt.want {
				t.Errorf("parseFlags() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseFlags_Unknown(t *testing.T) {
	t.Parallel()

	if _, err := parseFlags([]string{"--no-such-flag"}, io.Discard); err == nil {
		t.Fatal("parseFlags() expected error for unknown flag")
	}
}
