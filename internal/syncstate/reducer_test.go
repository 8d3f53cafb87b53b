package syncstate

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/schema"
)

func mustApply(t *testing.T, cache *querycache.Cache, msg schema.Message) {
	t.Helper()
	if err := Apply(cache, msg); err != nil {
		t.Fatalf("apply %s: %v", msg.Type(), err)
	}
}

func seeded(t *testing.T) *querycache.Cache {
	t.Helper()
	cache := querycache.New()
	mustApply(t, cache, schema.InitialState{Data: schema.InitialGlobalState()})
	return cache
}

func TestCreateProjectTabSetsRecordAndActive(t *testing.T) {
	cache := seeded(t)
	data := schema.Record{"displayName": "One", "userPrompt": ""}
	mustApply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "t1", Data: data})

	got, ok := Tab(cache, schema.TabKindProject, "t1")
	if !ok || !got.Equal(data) {
		t.Fatalf("expected tab record %v, got %v (ok=%v)", data, got, ok)
	}
	if active := ActiveTabID(cache, schema.TabKindProject); active != "t1" {
		t.Fatalf("expected active t1, got %q", active)
	}
	settings, _ := Settings(cache)
	order := TabOrder(settings, schema.TabKindProject)
	if len(order) != 2 || order[1] != "t1" {
		t.Fatalf("expected t1 appended to order, got %v", order)
	}
}

func TestDeleteActiveTabRepairsPointer(t *testing.T) {
	cache := querycache.New()
	cache.Set(SettingsKey, schema.Record{"projectTabIdOrder": []any{"t1", "t2"}})
	mustApply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "t2", Data: schema.Record{}})
	mustApply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "t1", Data: schema.Record{}})

	mustApply(t, cache, schema.DeleteTab{Kind: schema.TabKindProject, TabID: "t1"})
	if _, ok := Tab(cache, schema.TabKindProject, "t1"); ok {
		t.Fatalf("expected t1 to be removed")
	}
	if active := ActiveTabID(cache, schema.TabKindProject); active != "t2" {
		t.Fatalf("expected active t2, got %q", active)
	}
	settings, _ := Settings(cache)
	if order := TabOrder(settings, schema.TabKindProject); len(order) != 1 || order[0] != "t2" {
		t.Fatalf("expected order [t2], got %v", order)
	}

	mustApply(t, cache, schema.DeleteTab{Kind: schema.TabKindProject, TabID: "t2"})
	if active := ActiveTabID(cache, schema.TabKindProject); active != "" {
		t.Fatalf("expected null active, got %q", active)
	}
}

func TestDeleteInactiveTabKeepsPointer(t *testing.T) {
	cache := seeded(t)
	mustApply(t, cache, schema.CreateTab{Kind: schema.TabKindChat, TabID: "c2", Data: schema.Record{}})
	mustApply(t, cache, schema.DeleteTab{Kind: schema.TabKindChat, TabID: "defaultChatTab"})
	if active := ActiveTabID(cache, schema.TabKindChat); active != "c2" {
		t.Fatalf("expected active c2, got %q", active)
	}
}

func TestPatchSettingsIsShallow(t *testing.T) {
	cache := querycache.New()
	cache.Set(SettingsKey, schema.Record{"theme": "light", "other": 1})
	mustApply(t, cache, schema.PatchSettings{Partial: schema.Record{"theme": "dark"}})
	settings, _ := Settings(cache)
	if !settings.Equal(schema.Record{"theme": "dark", "other": 1}) {
		t.Fatalf("unexpected settings %v", settings)
	}
}

func TestPatchMissingTabIsNoop(t *testing.T) {
	cache := querycache.New()
	hits := 0
	cache.Subscribe(TabKey(schema.TabKindChat, "ghost"), func(any, bool) { hits++ })
	mustApply(t, cache, schema.PatchTab{Kind: schema.TabKindChat, TabID: "ghost", Partial: schema.Record{"input": "x"}})
	if _, ok := Tab(cache, schema.TabKindChat, "ghost"); ok || hits != 0 {
		t.Fatalf("expected patch on missing tab to be a no-op")
	}
}

func TestPartialMergeIsIdempotent(t *testing.T) {
	cache := seeded(t)
	patch := schema.PatchTab{Kind: schema.TabKindProject, TabID: "defaultTab", Partial: schema.Record{"userPrompt": "hello", "contextLimit": 42}}
	mustApply(t, cache, patch)
	once := Snapshot(cache)
	mustApply(t, cache, patch)
	twice := Snapshot(cache)
	a, _ := json.Marshal(once)
	b, _ := json.Marshal(twice)
	if string(a) != string(b) {
		t.Fatalf("expected idempotent merge\nonce:  %s\ntwice: %s", a, b)
	}
}

func TestActivePointerInvariantUnderRandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, kind := range []schema.TabKind{schema.TabKindProject, schema.TabKindChat} {
		cache := seeded(t)
		next := 0
		for step := 0; step < 300; step++ {
			ids := TabIDs(cache, kind)
			if len(ids) == 0 || rng.Intn(2) == 0 {
				next++
				id := schema.TabID(fmt.Sprintf("tab-%d", next))
				mustApply(t, cache, schema.CreateTab{Kind: kind, TabID: id, Data: schema.Record{}})
			} else {
				victim := ids[rng.Intn(len(ids))]
				before := ActiveTabID(cache, kind)
				mustApply(t, cache, schema.DeleteTab{Kind: kind, TabID: victim})
				after := ActiveTabID(cache, kind)
				if before == victim && after == victim {
					t.Fatalf("step %d: active pointer still references deleted %q", step, victim)
				}
			}
			active := ActiveTabID(cache, kind)
			if active == "" {
				if len(TabIDs(cache, kind)) != 0 {
					t.Fatalf("step %d: null active with tabs remaining", step)
				}
				continue
			}
			if _, ok := Tab(cache, kind, active); !ok {
				t.Fatalf("step %d: active %q does not exist", step, active)
			}
		}
	}
}

func TestInitialStateFlipsInitializedOnce(t *testing.T) {
	cache := querycache.New()
	hits := 0
	cache.Subscribe(InitializedKey, func(any, bool) { hits++ })
	mustApply(t, cache, schema.StateUpdate{Data: schema.InitialGlobalState()})
	if Initialized(cache) {
		t.Fatalf("state_update must not mark initialized")
	}
	mustApply(t, cache, schema.InitialState{Data: schema.InitialGlobalState()})
	mustApply(t, cache, schema.InitialState{Data: schema.InitialGlobalState()})
	if !Initialized(cache) || hits != 1 {
		t.Fatalf("expected initialized once, got initialized=%v hits=%d", Initialized(cache), hits)
	}
}

func TestSnapshotRemovesAbsentTabs(t *testing.T) {
	cache := seeded(t)
	mustApply(t, cache, schema.CreateTab{Kind: schema.TabKindProject, TabID: "optimistic", Data: schema.Record{}})
	mustApply(t, cache, schema.StateUpdate{Data: schema.InitialGlobalState()})
	if _, ok := Tab(cache, schema.TabKindProject, "optimistic"); ok {
		t.Fatalf("expected snapshot to drop optimistic tab")
	}
	if active := ActiveTabID(cache, schema.TabKindProject); active != "defaultTab" {
		t.Fatalf("expected snapshot active pointer, got %q", active)
	}
}

func TestTargetedMerges(t *testing.T) {
	cache := seeded(t)
	mustApply(t, cache, schema.UpdateTheme{Theme: "night"})
	mustApply(t, cache, schema.UpdateProvider{Provider: "anthropic", Model: "claude"})
	mustApply(t, cache, schema.UpdateProvider{TabID: "defaultChatTab", Provider: "ollama"})
	linked := schema.TabID("defaultTab")
	mustApply(t, cache, schema.UpdateLinkSettings{TabID: "defaultChatTab", Settings: schema.ChatLinkSetting{IncludePrompts: true, LinkedProjectTabID: &linked}})
	ticket := "T-1"
	mustApply(t, cache, schema.SetProjectTabTicket{TabID: "defaultTab", TicketID: &ticket})

	var settings schema.AppSettings
	rec, _ := Settings(cache)
	if err := rec.Decode(&settings); err != nil {
		t.Fatalf("decode settings: %v", err)
	}
	if settings.Theme != "dark" || settings.Provider != "anthropic" || settings.Model != "claude" {
		t.Fatalf("unexpected settings %+v", settings)
	}

	var chat schema.ChatTabState
	rec, _ = Tab(cache, schema.TabKindChat, "defaultChatTab")
	if err := rec.Decode(&chat); err != nil {
		t.Fatalf("decode chat: %v", err)
	}
	if chat.Provider != "ollama" || chat.Model != schema.DefaultAppSettings().Model {
		t.Fatalf("unexpected chat provider/model %q/%q", chat.Provider, chat.Model)
	}
	if !chat.LinkSettings.IncludePrompts || chat.LinkSettings.LinkedProjectTabID == nil || *chat.LinkSettings.LinkedProjectTabID != linked {
		t.Fatalf("unexpected link settings %+v", chat.LinkSettings)
	}

	var project schema.ProjectTabState
	rec, _ = Tab(cache, schema.TabKindProject, "defaultTab")
	if err := rec.Decode(&project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if project.TicketID == nil || *project.TicketID != ticket {
		t.Fatalf("unexpected ticket %v", project.TicketID)
	}
}

func TestGlobalStateKeyDispatch(t *testing.T) {
	cache := seeded(t)
	msg, err := schema.NewUpdateGlobalStateKey(schema.KeyChatTabs, map[string]any{
		"defaultChatTab": map[string]any{"input": "draft"},
		"missing":        map[string]any{"input": "lost"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	mustApply(t, cache, msg)
	rec, _ := Tab(cache, schema.TabKindChat, "defaultChatTab")
	if rec["input"] != "draft" {
		t.Fatalf("expected merged input, got %v", rec["input"])
	}
	if _, ok := Tab(cache, schema.TabKindChat, "missing"); ok {
		t.Fatalf("expected patch for missing tab to be dropped")
	}

	msg, _ = schema.NewUpdateGlobalStateKey(schema.KeyProjectActiveTabID, nil)
	mustApply(t, cache, msg)
	if active := ActiveTabID(cache, schema.TabKindProject); active != "" {
		t.Fatalf("expected null project active, got %q", active)
	}
}

func TestMutationReconcileOverwritesOptimisticWrite(t *testing.T) {
	cache := seeded(t)
	mutation, err := NewMutation(schema.PatchTab{Kind: schema.TabKindProject, TabID: "defaultTab", Partial: schema.Record{"userPrompt": "local"}})
	if err != nil {
		t.Fatalf("new mutation: %v", err)
	}
	if err := mutation.Apply(cache); err != nil {
		t.Fatalf("apply: %v", err)
	}
	rec, _ := Tab(cache, schema.TabKindProject, "defaultTab")
	if rec["userPrompt"] != "local" {
		t.Fatalf("expected optimistic write, got %v", rec["userPrompt"])
	}
	server := schema.InitialGlobalState()
	server.ProjectTabs["defaultTab"]["userPrompt"] = "server"
	if err := mutation.Reconcile(server, cache); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	rec, _ = Tab(cache, schema.TabKindProject, "defaultTab")
	if rec["userPrompt"] != "server" {
		t.Fatalf("expected server value, got %v", rec["userPrompt"])
	}
	if _, err := NewMutation(schema.DeleteTab{Kind: schema.TabKindChat}); err == nil {
		t.Fatalf("expected invalid mutation to be rejected")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	cache := seeded(t)
	snap := Snapshot(cache)
	again := querycache.New()
	mustApply(t, again, schema.InitialState{Data: snap})
	a, _ := json.Marshal(snap)
	b, _ := json.Marshal(Snapshot(again))
	if string(a) != string(b) {
		t.Fatalf("snapshot mismatch\n%s\n%s", a, b)
	}
}
