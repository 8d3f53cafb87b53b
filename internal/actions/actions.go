package actions

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"pkt.systems/pslog"
	"pkt.systems/statesync/internal/logx"
	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/internal/syncstate"
	"pkt.systems/statesync/schema"
)

// Sender delivers outbound sync frames. *wsconn.Client satisfies it.
type Sender interface {
	Send(schema.Message) error
	IsOpen() bool
}

// Actions performs local mutations: guard, optimistic write, send. A send
// failure after the optimistic write is not rolled back; the next snapshot
// from the server reconciles it.
type Actions struct {
	mu     sync.Mutex
	cache  *querycache.Cache
	sender Sender
	newID  func() string
}

// New constructs Actions over cache and sender.
func New(cache *querycache.Cache, sender Sender) *Actions {
	return &Actions{cache: cache, sender: sender, newID: uuid.NewString}
}

// CreateTab creates a tab of kind from defaults overlaid with overrides and
// activates it. An empty displayName is replaced by a numbered default.
func (a *Actions) CreateTab(ctx context.Context, kind schema.TabKind, displayName string, overrides schema.Record) (schema.TabID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab create"); err != nil {
		return "", err
	}
	existing := syncstate.TabIDs(a.cache, kind)
	if strings.TrimSpace(displayName) == "" {
		displayName = defaultDisplayName(kind, len(existing)+1)
	}
	var base schema.Record
	if kind == schema.TabKindChat {
		base = schema.MustRecord(schema.DefaultChatTabState(displayName))
	} else {
		base = schema.MustRecord(schema.DefaultProjectTabState(displayName))
	}
	base["sortOrder"] = len(existing)
	id := schema.TabID(a.newID())
	if err := a.commit(ctx, schema.CreateTab{Kind: kind, TabID: id, Data: base.Merge(overrides)}); err != nil {
		return "", err
	}
	logx.WithTab(ctx, kind, id).Debug("tab create ok", "name", displayName)
	return id, nil
}

// CreateTabFromTemplate copies the record of source into a fresh tab. An
// empty displayName keeps the copied name with a " (copy)" suffix.
func (a *Actions) CreateTabFromTemplate(ctx context.Context, kind schema.TabKind, source schema.TabID, displayName string) (schema.TabID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab template"); err != nil {
		return "", err
	}
	template, err := a.guardTab(ctx, kind, source, "tab template")
	if err != nil {
		return "", err
	}
	data := template.Clone()
	if strings.TrimSpace(displayName) == "" {
		name, _ := data["displayName"].(string)
		if name == "" {
			name = string(source)
		}
		displayName = name + " (copy)"
	}
	data["displayName"] = displayName
	data["sortOrder"] = len(syncstate.TabIDs(a.cache, kind))
	id := schema.TabID(a.newID())
	if err := a.commit(ctx, schema.CreateTab{Kind: kind, TabID: id, Data: data}); err != nil {
		return "", err
	}
	logx.WithTab(ctx, kind, id).Debug("tab template ok", "source", source)
	return id, nil
}

// UpdateTab shallow-merges partial into an existing tab.
func (a *Actions) UpdateTab(ctx context.Context, kind schema.TabKind, id schema.TabID, partial schema.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab update"); err != nil {
		return err
	}
	if _, err := a.guardTab(ctx, kind, id, "tab update"); err != nil {
		return err
	}
	return a.commit(ctx, schema.PatchTab{Kind: kind, TabID: id, Partial: partial})
}

// ReplaceTab replaces an existing tab record.
func (a *Actions) ReplaceTab(ctx context.Context, kind schema.TabKind, id schema.TabID, data schema.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab replace"); err != nil {
		return err
	}
	if _, err := a.guardTab(ctx, kind, id, "tab replace"); err != nil {
		return err
	}
	return a.commit(ctx, schema.ReplaceTab{Kind: kind, TabID: id, Data: data})
}

// DeleteTab removes a tab. The last remaining tab of a kind cannot be deleted.
func (a *Actions) DeleteTab(ctx context.Context, kind schema.TabKind, id schema.TabID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab delete"); err != nil {
		return err
	}
	if _, err := a.guardTab(ctx, kind, id, "tab delete"); err != nil {
		return err
	}
	if len(syncstate.TabIDs(a.cache, kind)) <= 1 {
		logx.WithTab(ctx, kind, id).Warn("tab delete rejected", "err", schema.ErrLastTab)
		return schema.ErrLastTab
	}
	return a.commit(ctx, schema.DeleteTab{Kind: kind, TabID: id})
}

// SetActiveTab points the active pointer of kind at id. An empty id clears it.
func (a *Actions) SetActiveTab(ctx context.Context, kind schema.TabKind, id schema.TabID) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "tab activate"); err != nil {
		return err
	}
	if id != "" {
		if _, err := a.guardTab(ctx, kind, id, "tab activate"); err != nil {
			return err
		}
	}
	return a.commit(ctx, schema.SetActiveTab{Kind: kind, TabID: id})
}

// SetProjectTabTicket sets or clears the selected ticket of a project tab.
func (a *Actions) SetProjectTabTicket(ctx context.Context, id schema.TabID, ticketID *string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "ticket select"); err != nil {
		return err
	}
	if _, err := a.guardTab(ctx, schema.TabKindProject, id, "ticket select"); err != nil {
		return err
	}
	return a.commit(ctx, schema.SetProjectTabTicket{TabID: id, TicketID: ticketID})
}

// UpdateSettings shallow-merges partial into settings.
func (a *Actions) UpdateSettings(ctx context.Context, partial schema.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "settings update"); err != nil {
		return err
	}
	if err := a.guardSettings(ctx, "settings update"); err != nil {
		return err
	}
	return a.commit(ctx, schema.PatchSettings{Partial: partial})
}

// UpdateTheme sets the theme after normalizing its name.
func (a *Actions) UpdateTheme(ctx context.Context, theme string) error {
	name, ok := schema.NormalizeThemeName(theme)
	if !ok {
		pslog.Ctx(ctx).Warn("theme update rejected", "theme", theme, "err", schema.ErrInvalidTheme)
		return fmt.Errorf("%w: %q", schema.ErrInvalidTheme, theme)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "theme update"); err != nil {
		return err
	}
	if err := a.guardSettings(ctx, "theme update"); err != nil {
		return err
	}
	return a.commit(ctx, schema.UpdateTheme{Theme: name})
}

// UpdateProvider sets the provider and optional model on a chat tab, or on
// settings when tabID is empty.
func (a *Actions) UpdateProvider(ctx context.Context, tabID schema.TabID, provider string, model string) error {
	name, known := schema.NormalizeProvider(provider)
	if name == "" {
		return fmt.Errorf("%w: provider is required", schema.ErrInvalidMessage)
	}
	if !known {
		pslog.Ctx(ctx).Debug("provider not in known list", "provider", name)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "provider update"); err != nil {
		return err
	}
	if tabID != "" {
		if _, err := a.guardTab(ctx, schema.TabKindChat, tabID, "provider update"); err != nil {
			return err
		}
	} else if err := a.guardSettings(ctx, "provider update"); err != nil {
		return err
	}
	return a.commit(ctx, schema.UpdateProvider{TabID: tabID, Provider: name, Model: strings.TrimSpace(model)})
}

// UpdateLinkSettings replaces the link settings of a chat tab.
func (a *Actions) UpdateLinkSettings(ctx context.Context, tabID schema.TabID, settings schema.ChatLinkSetting) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "link update"); err != nil {
		return err
	}
	if _, err := a.guardTab(ctx, schema.TabKindChat, tabID, "link update"); err != nil {
		return err
	}
	if linked := settings.LinkedProjectTabID; linked != nil && *linked != "" {
		if _, err := a.guardTab(ctx, schema.TabKindProject, *linked, "link update"); err != nil {
			return err
		}
	}
	return a.commit(ctx, schema.UpdateLinkSettings{TabID: tabID, Settings: settings})
}

// UpdateGlobalStateKey sends a keyed partial update for administrative changes.
func (a *Actions) UpdateGlobalStateKey(ctx context.Context, key schema.GlobalStateKey, partial any) error {
	msg, err := schema.NewUpdateGlobalStateKey(key, partial)
	if err != nil {
		pslog.Ctx(ctx).Warn("global state update rejected", "key", key, "err", err)
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.guardOpen(ctx, "global state update"); err != nil {
		return err
	}
	return a.commit(ctx, msg)
}

func (a *Actions) commit(ctx context.Context, msg schema.Message) error {
	mutation, err := syncstate.NewMutation(msg)
	if err != nil {
		logx.WithMessage(pslog.Ctx(ctx), msg.Type()).Warn("action rejected", "err", err)
		return err
	}
	if err := mutation.Apply(a.cache); err != nil {
		return err
	}
	if err := a.sender.Send(mutation.Message()); err != nil {
		logx.WithMessage(pslog.Ctx(ctx), msg.Type()).Warn("action send failed", "err", err)
		return err
	}
	return nil
}

func (a *Actions) guardOpen(ctx context.Context, op string) error {
	if a.sender == nil || !a.sender.IsOpen() {
		pslog.Ctx(ctx).Warn(op+" skipped", "err", schema.ErrNotConnected)
		return schema.ErrNotConnected
	}
	return nil
}

func (a *Actions) guardTab(ctx context.Context, kind schema.TabKind, id schema.TabID, op string) (schema.Record, error) {
	if err := schema.ValidateTabID(id); err != nil {
		logx.WithTab(ctx, kind, id).Warn(op+" rejected", "err", err)
		return nil, err
	}
	rec, ok := syncstate.Tab(a.cache, kind, id)
	if !ok {
		logx.WithTab(ctx, kind, id).Warn(op+" rejected", "err", schema.ErrTabNotFound)
		return nil, fmt.Errorf("%w: %s tab %q", schema.ErrTabNotFound, kind, id)
	}
	return rec, nil
}

func (a *Actions) guardSettings(ctx context.Context, op string) error {
	if _, ok := syncstate.Settings(a.cache); !ok {
		pslog.Ctx(ctx).Warn(op+" rejected", "err", schema.ErrNoSettings)
		return schema.ErrNoSettings
	}
	return nil
}

func defaultDisplayName(kind schema.TabKind, n int) string {
	if kind == schema.TabKindChat {
		return fmt.Sprintf("Chat %d", n)
	}
	return fmt.Sprintf("Project Tab %d", n)
}
