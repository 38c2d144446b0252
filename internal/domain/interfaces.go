package domain

import "context"

// ModelClient is the remote chat-completion capability. Implementations
// must return an APIError for every failure mode (transport, HTTP
// status, empty completion, open circuit) so callers can fall back.
type ModelClient interface {
	// Model returns the model identifier the client targets.
	Model() string
	// Complete sends one system/user prompt pair and returns the
	// trimmed completion text.
	Complete(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error)
}

// AnswerProvider produces one answer for a question, shaped according
// to the question type: string for text and multiple_choice, []string
// for checkbox, map[string]string for multiple_choice_grid.
type AnswerProvider interface {
	// Name identifies the provider in logs ("model", "rules").
	Name() string
	GenerateAnswer(ctx context.Context, form Form, q Question, status HealthStatus) (any, error)
}
