package schema

import "strings"

// DefaultTheme is the default UI theme name.
const DefaultTheme ThemeName = "light"

var themeNames = []ThemeName{
	"light",
	"dark",
}

// AvailableThemes returns the supported theme names.
func AvailableThemes() []ThemeName {
	out := make([]ThemeName, len(themeNames))
	copy(out, themeNames)
	return out
}

// NormalizeThemeName returns a canonical theme name if supported.
func NormalizeThemeName(name string) (ThemeName, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "light", "day":
		return "light", true
	case "dark", "night":
		return "dark", true
	default:
		return "", false
	}
}
