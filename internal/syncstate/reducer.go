package syncstate

import (
	"fmt"

	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/schema"
)

// Apply folds one sync message into cache. Merges are shallow and a merge
// addressed to a missing record leaves the cache untouched.
func Apply(cache *querycache.Cache, msg schema.Message) error {
	switch m := msg.(type) {
	case schema.InitialState:
		writeSnapshot(cache, m.Data)
		cache.Update(InitializedKey, func(prev any, ok bool) (any, bool) {
			if done, _ := prev.(bool); ok && done {
				return prev, false
			}
			return true, true
		})
	case schema.StateUpdate:
		writeSnapshot(cache, m.Data)
	case schema.CreateTab:
		cache.Set(TabKey(m.Kind, m.TabID), m.Data.Clone())
		cache.Set(ActiveKey(m.Kind), m.TabID)
		appendOrder(cache, m.Kind, m.TabID)
	case schema.ReplaceTab:
		cache.Set(TabKey(m.Kind, m.TabID), m.Data.Clone())
	case schema.PatchTab:
		MergeShallow(cache, TabKey(m.Kind, m.TabID), m.Partial)
	case schema.DeleteTab:
		deleteTab(cache, m.Kind, m.TabID)
	case schema.SetActiveTab:
		cache.Set(ActiveKey(m.Kind), m.TabID)
	case schema.ReplaceSettings:
		cache.Set(SettingsKey, m.Data.Clone())
	case schema.PatchSettings:
		MergeShallow(cache, SettingsKey, m.Partial)
	case schema.UpdateTheme:
		theme, _ := schema.NormalizeThemeName(string(m.Theme))
		MergeShallow(cache, SettingsKey, schema.Record{"theme": string(theme)})
	case schema.UpdateProvider:
		patch := schema.Record{"provider": string(m.Provider)}
		if m.Model != "" {
			patch["model"] = m.Model
		}
		if m.TabID != "" {
			MergeShallow(cache, TabKey(schema.TabKindChat, m.TabID), patch)
		} else {
			MergeShallow(cache, SettingsKey, patch)
		}
	case schema.UpdateLinkSettings:
		link, err := schema.ToRecord(m.Settings)
		if err != nil {
			return err
		}
		MergeShallow(cache, TabKey(schema.TabKindChat, m.TabID), schema.Record{"linkSettings": map[string]any(link)})
	case schema.SetProjectTabTicket:
		var ticket any
		if m.TicketID != nil {
			ticket = *m.TicketID
		}
		MergeShallow(cache, TabKey(schema.TabKindProject, m.TabID), schema.Record{"ticketId": ticket})
	case schema.UpdateGlobalStateKey:
		return applyGlobalStateKey(cache, m)
	default:
		return fmt.Errorf("%w: unhandled message %T", schema.ErrInvalidMessage, msg)
	}
	return nil
}

// MergeShallow spreads patch over the record at key. It reports whether a
// record existed to merge into.
func MergeShallow(cache *querycache.Cache, key querycache.Key, patch schema.Record) bool {
	return cache.Update(key, func(prev any, ok bool) (any, bool) {
		rec, isRecord := prev.(schema.Record)
		if !ok || !isRecord {
			return nil, false
		}
		return rec.Merge(patch), true
	})
}

func applyGlobalStateKey(cache *querycache.Cache, m schema.UpdateGlobalStateKey) error {
	switch m.Key {
	case schema.KeySettings:
		patch, err := m.SettingsPatch()
		if err != nil {
			return err
		}
		MergeShallow(cache, SettingsKey, patch)
	case schema.KeyProjectTabs, schema.KeyChatTabs:
		patches, err := m.TabPatches()
		if err != nil {
			return err
		}
		kind := schema.TabKindProject
		if m.Key == schema.KeyChatTabs {
			kind = schema.TabKindChat
		}
		for id, patch := range patches {
			MergeShallow(cache, TabKey(kind, id), patch)
		}
	case schema.KeyProjectActiveTabID, schema.KeyChatActiveTabID:
		id, err := m.ActiveTabID()
		if err != nil {
			return err
		}
		kind := schema.TabKindProject
		if m.Key == schema.KeyChatActiveTabID {
			kind = schema.TabKindChat
		}
		cache.Set(ActiveKey(kind), id)
	default:
		return fmt.Errorf("%w: %w %q", schema.ErrInvalidMessage, schema.ErrInvalidKey, m.Key)
	}
	return nil
}

// writeSnapshot replaces mirrored state with a bulk payload. Tab records
// absent from the payload are removed.
func writeSnapshot(cache *querycache.Cache, state schema.GlobalState) {
	if state.Settings != nil {
		cache.Set(SettingsKey, state.Settings.Clone())
	}
	for _, kind := range []schema.TabKind{schema.TabKindProject, schema.TabKindChat} {
		tabs := state.Tabs(kind)
		for _, id := range TabIDs(cache, kind) {
			if _, ok := tabs[id]; !ok {
				cache.Remove(TabKey(kind, id))
			}
		}
		for id, rec := range tabs {
			cache.Set(TabKey(kind, id), rec.Clone())
		}
		var active schema.TabID
		if ptr := state.ActiveTabID(kind); ptr != nil {
			active = *ptr
		}
		cache.Set(ActiveKey(kind), active)
	}
}

func appendOrder(cache *querycache.Cache, kind schema.TabKind, id schema.TabID) {
	cache.Update(SettingsKey, func(prev any, ok bool) (any, bool) {
		settings, isRecord := prev.(schema.Record)
		if !ok || !isRecord {
			return nil, false
		}
		order := TabOrder(settings, kind)
		for _, existing := range order {
			if existing == id {
				return nil, false
			}
		}
		return settings.Merge(schema.Record{schema.OrderField(kind): orderValue(append(order, id))}), true
	})
}

func deleteTab(cache *querycache.Cache, kind schema.TabKind, id schema.TabID) {
	cache.Remove(TabKey(kind, id))
	cache.Update(SettingsKey, func(prev any, ok bool) (any, bool) {
		settings, isRecord := prev.(schema.Record)
		if !ok || !isRecord {
			return nil, false
		}
		order := TabOrder(settings, kind)
		kept := make([]schema.TabID, 0, len(order))
		for _, existing := range order {
			if existing != id {
				kept = append(kept, existing)
			}
		}
		if len(kept) == len(order) {
			return nil, false
		}
		return settings.Merge(schema.Record{schema.OrderField(kind): orderValue(kept)}), true
	})
	if ActiveTabID(cache, kind) == id {
		cache.Set(ActiveKey(kind), fallbackActive(cache, kind))
	}
}

// fallbackActive picks the first remaining tab in settings order, then the
// first by id, then null.
func fallbackActive(cache *querycache.Cache, kind schema.TabKind) schema.TabID {
	ids := OrderedTabIDs(cache, kind)
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}

func orderValue(ids []schema.TabID) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}
