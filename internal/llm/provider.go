// Package llm implements the provider interface, the no-SDK raw-HTTP
// provider implementations, and the ordered fallback chain the LLM client
// and the text encoder both sit on top of.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/obernety/mindweave/internal/apperr"
)

// Provider is the interface every LLM backend implements. Implementations
// must be stateless from the caller's view: a Provider may be shared and
// called concurrently.
type Provider interface {
	// Name identifies the provider in error messages and reasoning details.
	Name() string
	// Generate produces a completion for prompt, bounded by maxTokens and
	// sampled at temperature.
	Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
	// Embed returns one vector per input text, in a provider-native
	// dimension (the embedding manager is responsible for any projection).
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chain calls each Provider in order until one succeeds, bounded by an
// overall deadline. It is the generalization of this codebase's single
// hard-coded OpenAI client into the provider-fallback design §4.10 requires.
type Chain struct {
	providers []Provider
	deadline  time.Duration
}

// NewChain builds a fallback chain. providers is tried in the given order.
func NewChain(deadline time.Duration, providers ...Provider) *Chain {
	return &Chain{providers: providers, deadline: deadline}
}

// Generate tries each provider in order, returning the first non-empty
// result. If every provider fails it returns a *apperr.GenerationError
// aggregating each provider's error.
func (c *Chain) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	errs := make(map[string]error)
	for _, p := range c.providers {
		text, err := p.Generate(ctx, prompt, maxTokens, temperature)
		if err != nil {
			errs[p.Name()] = err
			continue
		}
		if text == "" {
			errs[p.Name()] = fmt.Errorf("empty completion")
			continue
		}
		return text, nil
	}
	return "", &apperr.GenerationError{ProviderErrors: errs}
}

// Embed tries each provider in order and returns the first success. Unlike
// Generate, a partial batch failure from one provider is not retried
// against a different provider mid-batch — the whole batch moves to the
// next provider, since a provider's embeddings are not directly comparable
// to another provider's.
func (c *Chain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.deadline)
	defer cancel()

	errs := make(map[string]error)
	for _, p := range c.providers {
		vecs, err := p.Embed(ctx, texts)
		if err != nil {
			errs[p.Name()] = err
			continue
		}
		return vecs, nil
	}
	return nil, &apperr.GenerationError{ProviderErrors: errs}
}
