package persist

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/statesync/schema"
)

const (
	settingsDoc = "local-settings"
	serversDoc  = "saved-servers"
)

// LocalState rehydrates and saves client-local settings and the saved
// server list. Corrupt or invalid documents are discarded in favour of
// defaults.
type LocalState struct {
	mu      sync.Mutex
	store   Store
	log     pslog.Logger
	now     func() time.Time
	newID   func() string
	local   schema.LocalSettings
	servers []schema.SavedServer
}

// NewLocalState wraps store.
func NewLocalState(store Store, logger pslog.Logger) *LocalState {
	return &LocalState{
		store: store,
		log:   logger,
		now:   time.Now,
		newID: uuid.NewString,
		local: schema.DefaultLocalSettings(),
	}
}

// Load rehydrates both documents. It only fails when the store itself fails.
func (l *LocalState) Load() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked()
}

func (l *LocalState) loadLocked() error {
	local := schema.DefaultLocalSettings()
	data, ok, err := l.store.Load(settingsDoc)
	if err != nil {
		return err
	}
	if ok {
		var decoded schema.LocalSettings
		if err := decodeStrict(data, &decoded); err != nil {
			l.discard(settingsDoc, err)
		} else if err := decoded.Validate(); err != nil {
			l.discard(settingsDoc, err)
		} else {
			local = decoded
		}
	}

	var servers []schema.SavedServer
	data, ok, err = l.store.Load(serversDoc)
	if err != nil {
		return err
	}
	if ok {
		var decoded []schema.SavedServer
		if err := decodeStrict(data, &decoded); err != nil {
			l.discard(serversDoc, err)
		} else if err := validateServers(decoded); err != nil {
			l.discard(serversDoc, err)
		} else {
			servers = decoded
		}
	}
	if local.ActiveServerID != "" && findServer(servers, local.ActiveServerID) < 0 {
		if l.log != nil {
			l.log.Warn("local state active server missing", "server_id", local.ActiveServerID)
		}
		local.ActiveServerID = ""
	}
	l.local = local
	l.servers = servers
	return nil
}

// Settings returns the current local settings.
func (l *LocalState) Settings() schema.LocalSettings {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.local
}

// Servers returns the saved servers sorted by name.
func (l *LocalState) Servers() []schema.SavedServer {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := append([]schema.SavedServer(nil), l.servers...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveServer returns the active saved server, if any.
func (l *LocalState) ActiveServer() (schema.SavedServer, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := findServer(l.servers, l.local.ActiveServerID)
	if idx < 0 {
		return schema.SavedServer{}, false
	}
	return l.servers[idx], true
}

// SaveSettings validates and persists local settings.
func (l *LocalState) SaveSettings(settings schema.LocalSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if settings.ActiveServerID != "" && findServer(l.servers, settings.ActiveServerID) < 0 {
		return fmt.Errorf("%w: unknown server %q", schema.ErrInvalidLocalState, settings.ActiveServerID)
	}
	if err := l.saveJSON(settingsDoc, settings); err != nil {
		return err
	}
	l.local = settings
	return nil
}

// SaveServers validates and persists the full server list.
func (l *LocalState) SaveServers(servers []schema.SavedServer) error {
	if err := validateServers(servers); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveServersLocked(servers)
}

// AddServer saves a new server entry and returns it.
func (l *LocalState) AddServer(name, url string) (schema.SavedServer, error) {
	server := schema.SavedServer{
		ID:      schema.ServerID(l.newID()),
		Name:    strings.TrimSpace(name),
		URL:     strings.TrimRight(strings.TrimSpace(url), "/"),
		AddedAt: l.now().UTC(),
	}
	if err := server.Validate(); err != nil {
		return schema.SavedServer{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	servers := append(append([]schema.SavedServer(nil), l.servers...), server)
	if err := l.saveServersLocked(servers); err != nil {
		return schema.SavedServer{}, err
	}
	return server, nil
}

// RemoveServer deletes a server entry, clearing the active pointer when it
// referenced the removed entry.
func (l *LocalState) RemoveServer(id schema.ServerID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	idx := findServer(l.servers, id)
	if idx < 0 {
		return fmt.Errorf("%w: unknown server %q", schema.ErrInvalidServer, id)
	}
	servers := append(append([]schema.SavedServer(nil), l.servers[:idx]...), l.servers[idx+1:]...)
	if err := l.saveServersLocked(servers); err != nil {
		return err
	}
	if l.local.ActiveServerID == id {
		local := l.local
		local.ActiveServerID = ""
		if err := l.saveJSON(settingsDoc, local); err != nil {
			return err
		}
		l.local = local
	}
	return nil
}

// SetActiveServer selects a saved server; an empty id selects the default endpoint.
func (l *LocalState) SetActiveServer(id schema.ServerID) error {
	settings := l.Settings()
	settings.ActiveServerID = id
	return l.SaveSettings(settings)
}

func (l *LocalState) saveServersLocked(servers []schema.SavedServer) error {
	if servers == nil {
		servers = []schema.SavedServer{}
	}
	if err := l.saveJSON(serversDoc, servers); err != nil {
		return err
	}
	l.servers = servers
	return nil
}

func (l *LocalState) saveJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return l.store.Save(name, data)
}

func (l *LocalState) discard(name string, err error) {
	if l.log != nil {
		l.log.Warn("local state discarded", "name", name, "err", err)
	}
}

func decodeStrict(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", schema.ErrInvalidLocalState, err)
	}
	return nil
}

func validateServers(servers []schema.SavedServer) error {
	seen := make(map[schema.ServerID]bool, len(servers))
	for _, server := range servers {
		if err := server.Validate(); err != nil {
			return err
		}
		if seen[server.ID] {
			return fmt.Errorf("%w: duplicate id %q", schema.ErrInvalidServer, server.ID)
		}
		seen[server.ID] = true
	}
	return nil
}

func findServer(servers []schema.SavedServer, id schema.ServerID) int {
	if id == "" {
		return -1
	}
	for i, server := range servers {
		if server.ID == id {
			return i
		}
	}
	return -1
}
