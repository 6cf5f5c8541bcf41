package extract

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockProvider implements Provider for testing.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Completion), args.Error(1)
}

func completion(text string) *Completion {
	return &Completion{Text: text, Model: "mock-model"}
}
