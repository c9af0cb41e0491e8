package ai

import "context"

// Provider sends a prompt to a generative-text service and returns the raw
// text response. Used only inside this package's classifiers.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
