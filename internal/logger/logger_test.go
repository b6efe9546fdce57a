package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		l, err := NewLogger(env, Options{})
		if err != nil {
			t.Fatalf("%s: %v", env, err)
		}
		if l == nil {
			t.Fatalf("%s: nil logger", env)
		}
	}
	if _, err := NewLogger("staging", Options{}); err == nil {
		t.Fatal("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", Options{Level: "debug"})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatal("expected debug enabled")
	}
	if _, err := NewLogger("prod", Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for invalid level")
	}
}

func TestNewLogger_Encoding(t *testing.T) {
	if _, err := NewLogger("local", Options{Encoding: "json"}); err != nil {
		t.Fatal(err)
	}
	if _, err := NewLogger("local", Options{Encoding: "xml"}); err == nil {
		t.Fatal("expected error for invalid encoding")
	}
}

func TestContextLogger(t *testing.T) {
	fallback := zap.NewExample()
	if FromContextOr(context.Background(), fallback) != fallback {
		t.Fatal("expected fallback without logger in context")
	}

	l := zap.NewNop().Named("req")
	ctx := ContextWithLogger(context.Background(), l)
	if FromContextOr(ctx, fallback) != l {
		t.Fatal("expected logger from context")
	}
}
