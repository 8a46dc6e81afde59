// Package upstream adapts remote model streams into plain text fragment
// iterators. Fragments arrive with arbitrary, non-aligned boundaries;
// callers that need structure (for example reasoning-tag separation)
// layer a parser on top.
package upstream

import "context"

// Producer opens token streams against a remote model.
type Producer interface {
	// Name returns the producer identifier.
	Name() string

	// Stream starts a generation for prompt and returns the fragment
	// iterator. The stream must be closed by the caller.
	Stream(ctx context.Context, prompt string) (TokenStream, error)
}

// TokenStream yields raw text fragments. Next returns io.EOF when the
// stream is exhausted; any other error is terminal.
type TokenStream interface {
	Next() (string, error)
	Close()
}
