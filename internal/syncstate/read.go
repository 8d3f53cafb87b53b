package syncstate

import (
	"sort"

	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/schema"
)

// Settings returns the settings record held in cache.
func Settings(cache *querycache.Cache) (schema.Record, bool) {
	return recordAt(cache, SettingsKey)
}

// Tab returns one tab record.
func Tab(cache *querycache.Cache, kind schema.TabKind, id schema.TabID) (schema.Record, bool) {
	return recordAt(cache, TabKey(kind, id))
}

// Tabs returns every tab record of kind keyed by id.
func Tabs(cache *querycache.Cache, kind schema.TabKind) map[schema.TabID]schema.Record {
	out := map[schema.TabID]schema.Record{}
	for _, entry := range cache.Find(TabPrefix(kind)) {
		if rec, ok := entry.Value.(schema.Record); ok {
			out[schema.TabID(entry.Key.ID)] = rec
		}
	}
	return out
}

// TabIDs returns the tab ids of kind sorted lexically.
func TabIDs(cache *querycache.Cache, kind schema.TabKind) []schema.TabID {
	entries := cache.Find(TabPrefix(kind))
	out := make([]schema.TabID, 0, len(entries))
	for _, entry := range entries {
		out = append(out, schema.TabID(entry.Key.ID))
	}
	return out
}

// ActiveTabID returns the active pointer of kind; "" means null.
func ActiveTabID(cache *querycache.Cache, kind schema.TabKind) schema.TabID {
	value, ok := cache.Get(ActiveKey(kind))
	if !ok {
		return ""
	}
	id, _ := value.(schema.TabID)
	return id
}

// Initialized reports whether an initial_state has been applied.
func Initialized(cache *querycache.Cache) bool {
	value, ok := cache.Get(InitializedKey)
	if !ok {
		return false
	}
	done, _ := value.(bool)
	return done
}

// TabOrder returns the ids recorded in the settings order array for kind.
func TabOrder(settings schema.Record, kind schema.TabKind) []schema.TabID {
	raw, ok := settings[schema.OrderField(kind)]
	if !ok {
		return nil
	}
	var out []schema.TabID
	switch values := raw.(type) {
	case []any:
		for _, v := range values {
			if s, ok := v.(string); ok {
				out = append(out, schema.TabID(s))
			}
		}
	case []string:
		for _, v := range values {
			out = append(out, schema.TabID(v))
		}
	case []schema.TabID:
		out = append(out, values...)
	}
	return out
}

// OrderedTabIDs lists existing tabs of kind in settings order, followed by
// any tabs missing from the order array sorted by id.
func OrderedTabIDs(cache *querycache.Cache, kind schema.TabKind) []schema.TabID {
	existing := TabIDs(cache, kind)
	present := make(map[schema.TabID]bool, len(existing))
	for _, id := range existing {
		present[id] = true
	}
	var out []schema.TabID
	if settings, ok := Settings(cache); ok {
		for _, id := range TabOrder(settings, kind) {
			if present[id] {
				out = append(out, id)
				delete(present, id)
			}
		}
	}
	rest := make([]schema.TabID, 0, len(present))
	for id := range present {
		rest = append(rest, id)
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// Snapshot rebuilds the bulk payload from cache.
func Snapshot(cache *querycache.Cache) schema.GlobalState {
	settings, _ := Settings(cache)
	state := schema.GlobalState{
		Settings:    settings.Clone(),
		ProjectTabs: Tabs(cache, schema.TabKindProject),
		ChatTabs:    Tabs(cache, schema.TabKindChat),
	}
	if id := ActiveTabID(cache, schema.TabKindProject); id != "" {
		state.ProjectActiveTabID = &id
	}
	if id := ActiveTabID(cache, schema.TabKindChat); id != "" {
		state.ChatActiveTabID = &id
	}
	return state
}

func recordAt(cache *querycache.Cache, key querycache.Key) (schema.Record, bool) {
	value, ok := cache.Get(key)
	if !ok {
		return nil, false
	}
	rec, ok := value.(schema.Record)
	return rec, ok
}
