// Package provider constructs the Anthropic client and model defaults.
package provider

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// NewAnthropicClient returns a client using the API key from the env.
// Credentials are never sourced from anywhere else.
func NewAnthropicClient() *anthropic.Client {
	c := anthropic.NewClient()
	return &c
}

const DefaultModel = anthropic.ModelClaude3_5HaikuLatest

// DefaultMaxTokens bounds a single model response.
const DefaultMaxTokens = 4000
