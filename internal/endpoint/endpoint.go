// Package endpoint resolves which compute backend a request should target.
//
// Precedence has exactly two levels: a non-empty per-request override wins,
// otherwise the process-wide default injected at construction is used.
// Nothing is cached between requests, so concurrent requests carrying
// different overrides reach different backends.
package endpoint

import (
	"net/url"
	"strings"
)

// DefaultBackendURL is used when neither config nor environment supply one.
const DefaultBackendURL = "http://127.0.0.1:8001"

// Resolver picks the backend base address for a single request.
type Resolver struct {
	Default string
}

// New returns a Resolver with the given process default.
func New(defaultURL string) Resolver {
	defaultURL = strings.TrimSpace(defaultURL)
	if defaultURL == "" {
		defaultURL = DefaultBackendURL
	}
	return Resolver{Default: defaultURL}
}

// Resolve returns override when it is non-blank, else the default.
func (r Resolver) Resolve(override string) string {
	if trimmed := strings.TrimSpace(override); trimmed != "" {
		return trimmed
	}
	return r.Default
}

// Join appends path and an optional query to base. Trailing slashes on base
// are dropped so "http://host:8001/" and "http://host:8001" behave the same.
func Join(base, path string, query url.Values) string {
	joined := strings.TrimRight(base, "/") + path
	if len(query) > 0 {
		joined += "?" + query.Encode()
	}
	return joined
}

// JobPath builds "/jobs/{id}" plus an optional suffix such as "/tree".
func JobPath(id, suffix string) string {
	return "/jobs/" + url.PathEscape(id) + suffix
}
