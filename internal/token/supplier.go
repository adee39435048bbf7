// Package token supplies provider API credentials. Some airlines issue no
// public API keys; their web frontends fetch a short-lived bearer token
// that can be captured from the browser's own network traffic.
package token

import (
	"context"
)

// Supplier produces a usable bearer token, called once per provider per
// polling cycle. An error means the provider's entire cycle is skipped.
type Supplier interface {
	Token(ctx context.Context) (string, error)
}

// Static is a fixed token, for providers with long-lived credentials and
// for tests.
type Static string

// Token returns the fixed token.
func (s Static) Token(_ context.Context) (string, error) {
	return string(s), nil
}

var _ Supplier = Static("")
