package mock

import (
	"context"

	"github.com/rowforge/rowforge/internal/ai"
	"github.com/rowforge/rowforge/pkg/models"
)

// MockInterpreter satisfies models.Interpreter for testing.
type MockInterpreter struct {
	Name_         string
	InterpretFunc func(ctx context.Context, req models.InterpretRequest) (string, error)
}

func (m *MockInterpreter) Name() string { return m.Name_ }

func (m *MockInterpreter) Interpret(ctx context.Context, req models.InterpretRequest) (string, error) {
	if m.InterpretFunc != nil {
		return m.InterpretFunc(ctx, req)
	}
	return "", nil
}

// NewMockInterpreter returns a MockInterpreter with a sensible default response.
func NewMockInterpreter() *MockInterpreter {
	return &MockInterpreter{
		Name_: "mock",
		InterpretFunc: func(_ context.Context, req models.InterpretRequest) (string, error) {
			return "Mock interpretation: no transformation beyond the status column is required", nil
		},
	}
}

// NewFailingInterpreter returns a MockInterpreter that always returns the given error.
func NewFailingInterpreter(err error) *MockInterpreter {
	return &MockInterpreter{
		Name_: "mock-failing",
		InterpretFunc: func(_ context.Context, _ models.InterpretRequest) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutInterpreter returns a MockInterpreter that blocks until context is cancelled.
func NewTimeoutInterpreter() *MockInterpreter {
	return &MockInterpreter{
		Name_: "mock-timeout",
		InterpretFunc: func(ctx context.Context, _ models.InterpretRequest) (string, error) {
			<-ctx.Done()
			return "", ai.Classify(ctx.Err())
		},
	}
}

// Compile-time check that MockInterpreter implements Interpreter.
var _ models.Interpreter = (*MockInterpreter)(nil)
