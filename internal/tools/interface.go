// Package tools exposes the retrieval pipeline to the host protocol layer
// as named, JSON-in/JSON-out tool handlers. The package enforces the
// pipeline's failure contract at its boundary: a tool invocation never
// propagates an internal error, it returns an explicit empty result set
// with an error description and a retryable flag. A failed search and a
// legitimately empty search share the same payload shape, distinguished
// only by the presence of the error field.
package tools

import (
	"context"
)

// Tool is the contract every knowledge tool satisfies so the host can
// register, route, and log tool calls by name without type assertions.
type Tool interface {
	// Name returns the unique tool name registered with the host.
	Name() string

	// Description returns a human-readable description of what the tool
	// does, sent to the host as part of the tool schema.
	Description() string

	// Invoke executes the tool with a JSON-encoded input string and
	// returns a JSON-encoded response. Pipeline failures are encoded in
	// the response payload, never returned as an error; the error return
	// is reserved for response serialization itself failing.
	Invoke(ctx context.Context, argumentsInJSON string) (string, error)
}
