package selectors

import (
	"errors"
	"testing"

	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

func seeded(t *testing.T) *querycache.Cache {
	t.Helper()
	cache := querycache.New()
	if err := syncstate.Apply(cache, schema.InitialState{Data: schema.InitialGlobalState()}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return cache
}

func apply(t *testing.T, cache *querycache.Cache, msg schema.Message) {
	t.Helper()
	if err := syncstate.Apply(cache, msg); err != nil {
		t.Fatalf("apply: %v", err)
	}
}

func TestTypedSelectors(t *testing.T) {
	cache := seeded(t)
	settings, err := Settings(cache)
	if err != nil {
		t.Fatalf("settings: %v", err)
	}
	if settings.Theme != schema.DefaultTheme {
		t.Fatalf("unexpected theme %q", settings.Theme)
	}
	active, err := ActiveProjectTab(cache)
	if err != nil {
		t.Fatalf("active project: %v", err)
	}
	if active.ID != "defaultTab" || active.State.DisplayName != "Default Project Tab" {
		t.Fatalf("unexpected active tab %+v", active)
	}
	chat, err := ChatTab(cache, "defaultChatTab")
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if chat.Provider != settings.Provider {
		t.Fatalf("expected chat provider to default to settings provider")
	}
	if _, err := ProjectTab(cache, "ghost"); !errors.Is(err, schema.ErrTabNotFound) {
		t.Fatalf("expected ErrTabNotFound, got %v", err)
	}
	if !Initialized(cache) {
		t.Fatalf("expected initialized")
	}
	if _, err := Settings(querycache.New()); !errors.Is(err, schema.ErrNoSettings) {
		t.Fatalf("expected ErrNoSettings, got %v", err)
	}
}

func TestTabsFollowSettingsOrder(t *testing.T) {
	cache := seeded(t)
	apply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "b", Data: schema.Record{"displayName": "B"}})
	apply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "a", Data: schema.Record{"displayName": "A"}})
	tabs, err := ProjectTabs(cache)
	if err != nil {
		t.Fatalf("tabs: %v", err)
	}
	var ids []schema.TabID
	for _, tab := range tabs {
		ids = append(ids, tab.ID)
	}
	if len(ids) != 3 || ids[0] != "defaultTab" || ids[1] != "b" || ids[2] != "a" {
		t.Fatalf("unexpected order %v", ids)
	}
	if !tabs[2].Active || tabs[0].Active {
		t.Fatalf("expected only the last created tab to be active")
	}
}

func TestFieldNarrowsRecord(t *testing.T) {
	cache := seeded(t)
	theme, ok := Field[string](cache, syncstate.SettingsKey, "theme")
	if !ok || theme != "light" {
		t.Fatalf("unexpected theme %q ok=%v", theme, ok)
	}
	maxTokens, ok := Field[int](cache, syncstate.SettingsKey, "maxTokens")
	if !ok || maxTokens != 4096 {
		t.Fatalf("unexpected maxTokens %d ok=%v", maxTokens, ok)
	}
	if _, ok := Field[string](cache, syncstate.SettingsKey, "missing"); ok {
		t.Fatalf("expected missing field to report !ok")
	}
}

func TestWatchFieldFiresOnlyOnChange(t *testing.T) {
	cache := seeded(t)
	var seen []string
	unsubscribe := WatchField(cache, syncstate.SettingsKey, "theme", func(theme string, ok bool) {
		seen = append(seen, theme)
	})
	defer unsubscribe()

	apply(t, cache, schema.PatchSettings{Partial: schema.Record{"language": "de"}})
	apply(t, cache, schema.PatchSettings{Partial: schema.Record{"theme": "dark"}})
	apply(t, cache, schema.PatchSettings{Partial: schema.Record{"theme": "dark"}})
	apply(t, cache, schema.UpdateTheme{Theme: "light"})

	if len(seen) != 3 || seen[0] != "light" || seen[1] != "dark" || seen[2] != "light" {
		t.Fatalf("unexpected notifications %v", seen)
	}
}
