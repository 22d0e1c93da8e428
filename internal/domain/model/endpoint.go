package model

import "strings"

// DefaultSchema is used when an endpoint does not name a schema.
const DefaultSchema = "dbo"

// EndpointConfig maps a logical endpoint name to a physical object and an
// optional allow-list of webhook identifiers.
type EndpointConfig struct {
	Name       string
	Schema     string
	Object     string
	AllowedIDs []string
}

// HasAllowList reports whether the endpoint restricts webhook identifiers.
func (e EndpointConfig) HasAllowList() bool {
	return len(e.AllowedIDs) > 0
}

// Allows reports whether id matches an allow-list entry, ignoring case.
func (e EndpointConfig) Allows(id string) bool {
	for _, allowed := range e.AllowedIDs {
		if strings.EqualFold(allowed, id) {
			return true
		}
	}
	return false
}
