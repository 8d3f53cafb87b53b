package selectors

import (
	"bytes"
	"encoding/json"
	"sync"

	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

// Tab pairs a tab id with its typed state.
type Tab[T any] struct {
	ID     schema.TabID
	Active bool
	State  T
}

// Settings decodes the settings record.
func Settings(cache *querycache.Cache) (schema.AppSettings, error) {
	rec, ok := syncstate.Settings(cache)
	if !ok {
		return schema.AppSettings{}, schema.ErrNoSettings
	}
	var out schema.AppSettings
	if err := rec.Decode(&out); err != nil {
		return schema.AppSettings{}, err
	}
	return out, nil
}

// ProjectTab decodes one project tab.
func ProjectTab(cache *querycache.Cache, id schema.TabID) (schema.ProjectTabState, error) {
	return decodeTab[schema.ProjectTabState](cache, schema.TabKindProject, id)
}

// ChatTab decodes one chat tab.
func ChatTab(cache *querycache.Cache, id schema.TabID) (schema.ChatTabState, error) {
	return decodeTab[schema.ChatTabState](cache, schema.TabKindChat, id)
}

// ActiveProjectTab returns the active project tab.
func ActiveProjectTab(cache *querycache.Cache) (Tab[schema.ProjectTabState], error) {
	return activeTab[schema.ProjectTabState](cache, schema.TabKindProject)
}

// ActiveChatTab returns the active chat tab.
func ActiveChatTab(cache *querycache.Cache) (Tab[schema.ChatTabState], error) {
	return activeTab[schema.ChatTabState](cache, schema.TabKindChat)
}

// ProjectTabs lists project tabs in settings order.
func ProjectTabs(cache *querycache.Cache) ([]Tab[schema.ProjectTabState], error) {
	return orderedTabs[schema.ProjectTabState](cache, schema.TabKindProject)
}

// ChatTabs lists chat tabs in settings order.
func ChatTabs(cache *querycache.Cache) ([]Tab[schema.ChatTabState], error) {
	return orderedTabs[schema.ChatTabState](cache, schema.TabKindChat)
}

// Initialized reports whether the first snapshot has been applied.
func Initialized(cache *querycache.Cache) bool {
	return syncstate.Initialized(cache)
}

// Field narrows the record at key to one field decoded as T.
func Field[T any](cache *querycache.Cache, key querycache.Key, field string) (T, bool) {
	var zero T
	value, ok := cache.Get(key)
	if !ok {
		return zero, false
	}
	return fieldOf[T](value, field)
}

// WatchField calls fn whenever the JSON value of field at key changes. The
// current value, if any, is delivered first. It returns an unsubscribe func.
func WatchField[T any](cache *querycache.Cache, key querycache.Key, field string, fn func(T, bool)) func() {
	var mu sync.Mutex
	var last []byte
	var seen bool
	check := func(value any, ok bool) {
		var raw []byte
		if ok {
			if rec, isRecord := value.(schema.Record); isRecord {
				if v, present := rec[field]; present {
					raw, _ = json.Marshal(v)
				}
			}
		}
		mu.Lock()
		if seen && bytes.Equal(raw, last) {
			mu.Unlock()
			return
		}
		seen = true
		last = raw
		mu.Unlock()
		if raw == nil {
			var zero T
			fn(zero, false)
			return
		}
		typed, good := fieldOf[T](value, field)
		fn(typed, good)
	}
	unsubscribe := cache.Subscribe(key, check)
	if value, ok := cache.Get(key); ok {
		check(value, ok)
	}
	return unsubscribe
}

func fieldOf[T any](value any, field string) (T, bool) {
	var zero T
	rec, ok := value.(schema.Record)
	if !ok {
		return zero, false
	}
	v, ok := rec[field]
	if !ok {
		return zero, false
	}
	if typed, ok := v.(T); ok {
		return typed, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return zero, false
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return zero, false
	}
	return out, true
}

func decodeTab[T any](cache *querycache.Cache, kind schema.TabKind, id schema.TabID) (T, error) {
	var out T
	rec, ok := syncstate.Tab(cache, kind, id)
	if !ok {
		return out, schema.ErrTabNotFound
	}
	if err := rec.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

func activeTab[T any](cache *querycache.Cache, kind schema.TabKind) (Tab[T], error) {
	id := syncstate.ActiveTabID(cache, kind)
	if id == "" {
		return Tab[T]{}, schema.ErrTabNotFound
	}
	state, err := decodeTab[T](cache, kind, id)
	if err != nil {
		return Tab[T]{}, err
	}
	return Tab[T]{ID: id, Active: true, State: state}, nil
}

func orderedTabs[T any](cache *querycache.Cache, kind schema.TabKind) ([]Tab[T], error) {
	active := syncstate.ActiveTabID(cache, kind)
	ids := syncstate.OrderedTabIDs(cache, kind)
	out := make([]Tab[T], 0, len(ids))
	for _, id := range ids {
		state, err := decodeTab[T](cache, kind, id)
		if err != nil {
			return nil, err
		}
		out = append(out, Tab[T]{ID: id, Active: id == active, State: state})
	}
	return out, nil
}
