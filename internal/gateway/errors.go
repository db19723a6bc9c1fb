package gateway

import "errors"

// ErrExhausted reports that a resource was unreachable on every mirror. The
// flow degrades to the placeholder asset rather than failing.
var ErrExhausted = errors.New("all content gateways exhausted")
