package ratelimit

import "strings"

// MatchEndpoint returns the configuration for a request, or nil to use the default
// budget. Exact paths win over prefixes. Health checks are never limited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" {
		return &EndpointConfig{Group: "health"}
	}

	for i := range configs {
		if configs[i].Path == path && methodMatches(configs[i].Method, method) {
			return &configs[i]
		}
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if !strings.HasSuffix(c.Path, "/") || !strings.HasPrefix(path, c.Path) || !methodMatches(c.Method, method) {
			continue
		}
		if best == nil || len(c.Path) > len(best.Path) {
			best = c
		}
	}
	return best
}

func methodMatches(want, got string) bool {
	return want == "" || strings.EqualFold(want, got)
}
