package schema

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultHealthIntervalSeconds is the health poll interval used when none is saved.
const DefaultHealthIntervalSeconds = 30

// LocalSettings is client-only state persisted between runs.
type LocalSettings struct {
	ActiveServerID        ServerID  `json:"activeServerId,omitempty"`
	Theme                 ThemeName `json:"theme"`
	DevMode               bool      `json:"devMode"`
	HealthIntervalSeconds int       `json:"healthIntervalSeconds"`
}

// DefaultLocalSettings returns the settings a fresh client starts with.
func DefaultLocalSettings() LocalSettings {
	return LocalSettings{
		Theme:                 DefaultTheme,
		HealthIntervalSeconds: DefaultHealthIntervalSeconds,
	}
}

// Validate checks persisted local settings.
func (s LocalSettings) Validate() error {
	if _, ok := NormalizeThemeName(string(s.Theme)); !ok {
		return fmt.Errorf("%w: %w %q", ErrInvalidLocalState, ErrInvalidTheme, s.Theme)
	}
	if s.HealthIntervalSeconds <= 0 {
		return fmt.Errorf("%w: healthIntervalSeconds must be positive", ErrInvalidLocalState)
	}
	return nil
}

// SavedServer is a server the user can switch the client to.
type SavedServer struct {
	ID      ServerID  `json:"id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	AddedAt time.Time `json:"addedAt"`
}

// Validate checks a saved server entry.
func (s SavedServer) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidServer)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidServer)
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidServer, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url must be http or https", ErrInvalidServer)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url host is required", ErrInvalidServer)
	}
	return nil
}
