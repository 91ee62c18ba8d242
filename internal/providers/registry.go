package providers

import "fmt"

// Registry holds the closed set of registered adapters and the
// per-operation allowed-provider tables (spec.md §4.5: "each operation has
// a fixed list of providers it may be routed to; the dispatch layer
// rejects any other provider id").
type Registry struct {
	adapters map[string]*Adapter
	allowed  map[Operation]map[string]bool
}

// NewRegistry builds a Registry from the given adapters and allowed-provider
// table. allowed maps an operation to the set of provider ids permitted to
// serve it.
func NewRegistry(adapters []*Adapter, allowed map[Operation][]string) *Registry {
	r := &Registry{
		adapters: make(map[string]*Adapter, len(adapters)),
		allowed:  make(map[Operation]map[string]bool, len(allowed)),
	}
	for _, a := range adapters {
		r.adapters[a.ID] = a
	}
	for op, ids := range allowed {
		set := make(map[string]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		r.allowed[op] = set
	}
	return r
}

// ErrUnknownProvider is returned when a provider id is not registered at all.
var ErrUnknownProvider = fmt.Errorf("unknown provider")

// ErrProviderNotAllowed is returned when a provider id is registered but not
// in the allowed set for the requested operation.
var ErrProviderNotAllowed = fmt.Errorf("provider not allowed for operation")

// Resolve looks up the adapter for (op, providerID), enforcing the
// per-operation allowlist.
func (r *Registry) Resolve(op Operation, providerID string) (*Adapter, error) {
	a, ok := r.adapters[providerID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, providerID)
	}
	if allowedSet, ok := r.allowed[op]; !ok || !allowedSet[providerID] {
		return nil, fmt.Errorf("%w: %q for %q", ErrProviderNotAllowed, providerID, op)
	}
	return a, nil
}

// AdapterByID looks up an adapter by id alone, bypassing the per-operation
// allowlist. The status finalizer (C8) needs this: by the time it is polling
// a row for completion it already knows which provider produced it (stored
// on the row at submission time) and only needs that adapter's Poll func,
// not a fresh operation/provider allowlist check.
func (r *Registry) AdapterByID(providerID string) (*Adapter, bool) {
	a, ok := r.adapters[providerID]
	return a, ok
}

// DefaultProvider returns the first id in the caller-supplied
// preferenceOrder that is allowed for op, used when a request does not pin a specific
// provider (spec.md §4.5: provider selection is otherwise dispatch's
// concern, not the client's).
func (r *Registry) DefaultProvider(op Operation, preferenceOrder []string) (string, error) {
	allowedSet, ok := r.allowed[op]
	if !ok || len(allowedSet) == 0 {
		return "", fmt.Errorf("%w: no providers configured for %q", ErrProviderNotAllowed, op)
	}
	for _, id := range preferenceOrder {
		if allowedSet[id] {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: no configured provider available for %q", ErrProviderNotAllowed, op)
}

// AllowedProviders defines the closed per-operation provider sets
// (spec.md §4.5, §9 obfuscation requirement — ids are generic, never real
// vendor names). Image operations are served by the three general-purpose
// image providers; 3D operations are served by the two model providers;
// background removal is a specialist task handled by its own provider.
var AllowedProviders = map[Operation][]string{
	OpTextToImage:      {"provider_a", "provider_b", "provider_c"},
	OpImageToImage:     {"provider_a", "provider_b", "provider_c"},
	OpSketchToImage:    {"provider_a", "provider_b"},
	OpRemoveBackground: {"provider_d"},
	OpImageInpaint:     {"provider_a", "provider_b"},
	OpSearchRecolor:    {"provider_b"},
	OpUpscale:          {"provider_a", "provider_c"},
	OpDownscale:        {"provider_a", "provider_c"}, // local processing, spec.md §4.5; no request-level provider choice
	OpTextToModel:      {"provider_e", "provider_f"},
	OpImageToModel:     {"provider_e", "provider_f"},
	OpRefineModel:      {"provider_e"},
}
