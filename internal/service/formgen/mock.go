package formgen

import (
	"context"
	"sync"

	"call-review-service/internal/schema"
	"call-review-service/internal/service/transcript"
)

// DefaultMockOutput fills the phone field of the scripted mock call.
const DefaultMockOutput = "Voici le formulaire:\n```json\n{\n" +
	`  "Telephone_client_1": {"answer": "514 555 0199", "confidence_scores": [0.62, 0.41, 0.58]}` +
	"\n}\n```"

// Mock returns fixed text and records the prompts it was given.
type Mock struct {
	Output string
	Err    error

	mu      sync.Mutex
	prompts []string
}

// NewMock creates a mock returning output, or DefaultMockOutput when empty.
func NewMock(output string) *Mock {
	if output == "" {
		output = DefaultMockOutput
	}
	return &Mock{Output: output}
}

// Name identifies the provider.
func (m *Mock) Name() string { return "mock" }

// Generate returns the fixed output.
func (m *Mock) Generate(ctx context.Context, conv transcript.Conversation, s *schema.Schema) (string, error) {
	_, user := BuildPrompt(conv, s)
	m.mu.Lock()
	m.prompts = append(m.prompts, user)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Output, nil
}

// Prompts returns the user prompts received so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}
