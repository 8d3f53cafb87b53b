package endpoint

import (
	"fmt"
	"net/url"
	"strings"
)

// Mode selects how the client finds its server.
type Mode string

const (
	// ModeDevelopment talks to the local sidecar on DevPort.
	ModeDevelopment Mode = "development"
	// ModeProduction talks to the origin the client was served from.
	ModeProduction Mode = "production"
)

// DevHost and DevPort locate the development server.
const (
	DevHost = "localhost"
	DevPort = 3147
)

// buildMode is set via -ldflags "-X pkt.systems/statesync/internal/endpoint.buildMode=production".
var buildMode = ""

// BuildMode returns the mode the binary was built for.
func BuildMode() Mode {
	if m, ok := ParseMode(buildMode); ok {
		return m
	}
	return ModeDevelopment
}

// ParseMode accepts development/dev and production/prod.
func ParseMode(value string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "development", "dev":
		return ModeDevelopment, true
	case "production", "prod":
		return ModeProduction, true
	default:
		return "", false
	}
}

// Options refines endpoint selection.
type Options struct {
	// DevHost and DevPort override the development server location.
	DevHost string
	DevPort int
	// Origin is the same-origin base in production, e.g. https://app.example.com.
	Origin string
	// BasePath prefixes every route when the server is mounted below the root.
	BasePath string
	// WSPath is the websocket route, /ws by default.
	WSPath string
}

// Endpoints is the resolved pair of HTTP base and websocket url.
type Endpoints struct {
	Mode     Mode
	HTTPBase string
	WSURL    string
}

// Resolve computes endpoints from mode and options. With an empty
// production origin both endpoints are relative paths.
func Resolve(mode Mode, opts Options) (Endpoints, error) {
	basePath := NormalizeBasePath(opts.BasePath)
	wsPath := NormalizeBasePath(opts.WSPath)
	if wsPath == "" {
		wsPath = "/ws"
	}
	switch mode {
	case ModeDevelopment, "":
		host := strings.TrimSpace(opts.DevHost)
		if host == "" {
			host = DevHost
		}
		port := opts.DevPort
		if port <= 0 {
			port = DevPort
		}
		origin := fmt.Sprintf("http://%s:%d", host, port)
		return Endpoints{
			Mode:     ModeDevelopment,
			HTTPBase: origin + basePath,
			WSURL:    fmt.Sprintf("ws://%s:%d%s%s", host, port, basePath, wsPath),
		}, nil
	case ModeProduction:
		origin := strings.TrimRight(strings.TrimSpace(opts.Origin), "/")
		if origin == "" {
			return Endpoints{Mode: ModeProduction, HTTPBase: basePath, WSURL: basePath + wsPath}, nil
		}
		u, err := url.Parse(origin)
		if err != nil {
			return Endpoints{}, fmt.Errorf("parse origin: %w", err)
		}
		var wsScheme string
		switch u.Scheme {
		case "https":
			wsScheme = "wss"
		case "http":
			wsScheme = "ws"
		default:
			return Endpoints{}, fmt.Errorf("origin must be http or https, got %q", origin)
		}
		if u.Host == "" {
			return Endpoints{}, fmt.Errorf("origin host is required, got %q", origin)
		}
		return Endpoints{
			Mode:     ModeProduction,
			HTTPBase: u.Scheme + "://" + u.Host + basePath,
			WSURL:    wsScheme + "://" + u.Host + basePath + wsPath,
		}, nil
	default:
		return Endpoints{}, fmt.Errorf("unknown mode %q", mode)
	}
}

// FromServerURL derives endpoints for a saved server entry.
func FromServerURL(serverURL string, opts Options) (Endpoints, error) {
	opts.Origin = serverURL
	return Resolve(ModeProduction, opts)
}

// NormalizeBasePath returns value with one leading slash and no trailing
// slash, or "" for the root.
func NormalizeBasePath(value string) string {
	path := strings.TrimSpace(value)
	if path == "" || path == "/" {
		return ""
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	path = strings.TrimRight(path, "/")
	if path == "/" {
		return ""
	}
	return path
}
