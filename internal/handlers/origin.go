package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
)

// newOriginChecker builds the CheckOrigin function for the WebSocket
// upgrader from the configured allowlist. Origins are compared on
// normalized scheme://host; "*" allows everything.
func newOriginChecker(origins []string, log zerolog.Logger) func(*http.Request) bool {
	allowAll := false
	allowed := make(map[string]struct{}, len(origins))

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAll = true
			continue
		}
		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Warn().Str("origin", origin).Msg("ignoring invalid origin in configuration")
			continue
		}
		allowed[normalized] = struct{}{}
	}

	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		header := r.Header.Get("Origin")
		if header == "" {
			// Non-browser clients send no Origin header.
			return true
		}
		normalized, ok := normalizeOrigin(header)
		if !ok {
			return false
		}
		if _, exists := allowed[normalized]; exists {
			return true
		}
		log.Warn().Str("origin", header).Msg("blocked connection from disallowed origin")
		return false
	}
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}
