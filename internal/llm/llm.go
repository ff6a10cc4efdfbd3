package llm

import "context"

// CompletionRequest is a single-turn text completion: one system instruction
// and one rendered user message.
type CompletionRequest struct {
	System    string
	User      string
	MaxTokens int
}

// Completer is the text-completion collaborator. It is constructed and
// injected explicitly; there is no package-level client.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
