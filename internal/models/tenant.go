// Package models holds the data-model types shared by the BFF's storage
// adapters and dispatch layer (spec.md §3).
package models

import "time"

// TenantType is the closed set of tenant kinds (spec.md §3).
type TenantType string

const (
	TenantStorefront TenantType = "storefront"
	TenantApp        TenantType = "app"
	TenantCustom     TenantType = "custom"
	TenantDev        TenantType = "dev"
)

// Valid reports whether t is one of the closed set of tenant types.
func (t TenantType) Valid() bool {
	switch t {
	case TenantStorefront, TenantApp, TenantCustom, TenantDev:
		return true
	}
	return false
}

// Tenant is an application or storefront authorized to call the API.
type Tenant struct {
	ID         string
	Type       TenantType
	Identifier string
	DisplayName string
	Active     bool
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// ApiKey is the opaque credential bound to exactly one Tenant.
type ApiKey struct {
	ID        string
	KeyHash   string
	TenantID  string
	Active    bool
	CreatedAt time.Time
}
