package expansion

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

type mockGenerator struct {
	content     string
	err         error
	unavailable bool
	calls       int
	prompt      string
	temperature float64
}

func (m *mockGenerator) Available() bool { return !m.unavailable }

func (m *mockGenerator) Generate(_ context.Context, prompt string, temperature float64) (string, error) {
	m.calls++
	m.prompt = prompt
	m.temperature = temperature
	return m.content, m.err
}

func newTestService(t *testing.T, gen *mockGenerator) *Service {
	t.Helper()
	return New(gen, zap.NewNop())
}
