package logutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestConfigureLevel(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{level: "", wantDebug: false, wantInfo: true},
		{level: "debug", wantDebug: true, wantInfo: true},
		{level: "warn", wantDebug: false, wantInfo: false},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var b bytes.Buffer
			if err := configure(tt.level, true, &b); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			log.Debug().Msg("debug message")
			log.Info().Msg("info message")
			if got := strings.Contains(b.String(), "debug message"); got != tt.wantDebug {
				t.Errorf("debug logged: expected %v, got %v", tt.wantDebug, got)
			}
			if got := strings.Contains(b.String(), "info message"); got != tt.wantInfo {
				t.Errorf("info logged: expected %v, got %v", tt.wantInfo, got)
			}
		})
	}
}

func TestConfigureSeverity(t *testing.T) {
	defer func(l zerolog.Logger) { log.Logger = l }(log.Logger)

	var b bytes.Buffer
	if err := configure("", true, &b); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	log.Error().Msg("failed")
	if !strings.Contains(b.String(), `"severity":"error"`) {
		t.Fatalf("expected a severity field, got %s", b.String())
	}
}

func TestConfigureInvalidLevel(t *testing.T) {
	if err := configure("loud", false, &bytes.Buffer{}); err == nil {
		t.Fatal("expected an error")
	}
}
