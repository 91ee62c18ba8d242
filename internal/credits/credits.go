// Package credits is the narrow interface the dispatch layer (C7) uses to
// gate generation requests against the credit/subscription subsystem
// (spec.md §1, §4.7 step 3). That subsystem is out of scope for this core;
// it is treated purely as an injected pre-check function value, the way the
// teacher injects services.EmbeddingService (internal/services/embeddings.go)
// rather than reaching for a concrete client directly from handlers.
package credits

import "context"

// Gate reserves credit for one operation on behalf of a user, returning
// false (not an error) when the reservation is denied for insufficient
// credits (spec.md §4.7: "deny with 402-like error if insufficient").
type Gate interface {
	Reserve(ctx context.Context, userID string, operation string) (ok bool, err error)
}

// AlwaysAllow is the no-op Gate used when no external credit subsystem is
// configured; cmd/api/main.go wires it (the handler tests use their own
// fake Gate instead). It never denies a reservation.
type AlwaysAllow struct{}

// Reserve always succeeds.
func (AlwaysAllow) Reserve(context.Context, string, string) (bool, error) {
	return true, nil
}
