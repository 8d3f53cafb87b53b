package schema

import (
	"strings"
	"unicode"
)

// ValidateTabID ensures a tab id is non-empty, untrimmed and printable.
func ValidateTabID(id TabID) error {
	raw := string(id)
	if raw == "" || strings.TrimSpace(raw) != raw {
		return ErrInvalidTabID
	}
	for _, r := range raw {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return ErrInvalidTabID
		}
	}
	return nil
}

// NormalizeProvider lowercases and trims a provider name.
func NormalizeProvider(name string) (ProviderName, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "", false
	}
	for _, known := range KnownProviders {
		if string(known) == trimmed {
			return known, true
		}
	}
	return ProviderName(trimmed), false
}

// KnownProviders lists the providers the application ships integrations for.
var KnownProviders = []ProviderName{
	"openai",
	"openrouter",
	"lmstudio",
	"ollama",
	"xai",
	"google_gemini",
	"anthropic",
	"groq",
	"together",
}
