package analyzer

import "context"

// Backend is a vision-language model able to judge a prompt against a set of
// images. Implementations must be safe for concurrent use.
type Backend interface {
	// Complete sends one request and returns the model's text. It does not retry.
	Complete(ctx context.Context, prompt string, images []string) (string, error)
	// Name identifies the backend in logs and traces.
	Name() string
}
