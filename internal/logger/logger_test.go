package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARN":    zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"info":    zapcore.InfoLevel,
		"verbose": zapcore.InfoLevel,
	}

	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetLevel_AppliesToChildren(t *testing.T) {
	l := NewLogger("info")
	child := l.With("component", "test")

	if child.level.Enabled(zapcore.DebugLevel) {
		t.Fatal("debug should be disabled at info level")
	}

	l.SetLevel("debug")

	if !child.level.Enabled(zapcore.DebugLevel) {
		t.Error("child logger did not follow the parent level")
	}
}
