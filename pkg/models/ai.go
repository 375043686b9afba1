package models

import "context"

// Interpreter is the core interface all AI integrations must implement.
// Never call specific AI providers directly — always inject this interface.
type Interpreter interface {
	// Interpret sends a schema summary and a natural-language instruction
	// to the model and returns its free-text response.
	Interpret(ctx context.Context, req InterpretRequest) (string, error)
	// Name returns the provider identifier (e.g., "ollama", "openai").
	Name() string
}

// InterpretRequest is the input to an interpretation call.
type InterpretRequest struct {
	Columns     []string // Column names of the uploaded table, in order
	Instruction string   // User-supplied natural-language instruction
}
