package actions

import (
	"context"

	"pkt.systems/statesync/schema"
)

// CreateProjectTab creates and activates a project tab.
func (a *Actions) CreateProjectTab(ctx context.Context, displayName string, overrides schema.Record) (schema.TabID, error) {
	return a.CreateTab(ctx, schema.TabKindProject, displayName, overrides)
}

// CreateProjectTabFromTemplate copies an existing project tab.
func (a *Actions) CreateProjectTabFromTemplate(ctx context.Context, source schema.TabID, displayName string) (schema.TabID, error) {
	return a.CreateTabFromTemplate(ctx, schema.TabKindProject, source, displayName)
}

// UpdateProjectTab merges partial into a project tab.
func (a *Actions) UpdateProjectTab(ctx context.Context, id schema.TabID, partial schema.Record) error {
	return a.UpdateTab(ctx, schema.TabKindProject, id, partial)
}

// ReplaceProjectTab replaces a project tab record.
func (a *Actions) ReplaceProjectTab(ctx context.Context, id schema.TabID, data schema.Record) error {
	return a.ReplaceTab(ctx, schema.TabKindProject, id, data)
}

// DeleteProjectTab deletes a project tab.
func (a *Actions) DeleteProjectTab(ctx context.Context, id schema.TabID) error {
	return a.DeleteTab(ctx, schema.TabKindProject, id)
}

// SetActiveProjectTab activates a project tab.
func (a *Actions) SetActiveProjectTab(ctx context.Context, id schema.TabID) error {
	return a.SetActiveTab(ctx, schema.TabKindProject, id)
}

// CreateChatTab creates and activates a chat tab.
func (a *Actions) CreateChatTab(ctx context.Context, displayName string, overrides schema.Record) (schema.TabID, error) {
	return a.CreateTab(ctx, schema.TabKindChat, displayName, overrides)
}

// CreateChatTabFromTemplate copies an existing chat tab.
func (a *Actions) CreateChatTabFromTemplate(ctx context.Context, source schema.TabID, displayName string) (schema.TabID, error) {
	return a.CreateTabFromTemplate(ctx, schema.TabKindChat, source, displayName)
}

// UpdateChatTab merges partial into a chat tab.
func (a *Actions) UpdateChatTab(ctx context.Context, id schema.TabID, partial schema.Record) error {
	return a.UpdateTab(ctx, schema.TabKindChat, id, partial)
}

// ReplaceChatTab replaces a chat tab record.
func (a *Actions) ReplaceChatTab(ctx context.Context, id schema.TabID, data schema.Record) error {
	return a.ReplaceTab(ctx, schema.TabKindChat, id, data)
}

// DeleteChatTab deletes a chat tab.
func (a *Actions) DeleteChatTab(ctx context.Context, id schema.TabID) error {
	return a.DeleteTab(ctx, schema.TabKindChat, id)
}

// SetActiveChatTab activates a chat tab.
func (a *Actions) SetActiveChatTab(ctx context.Context, id schema.TabID) error {
	return a.SetActiveTab(ctx, schema.TabKindChat, id)
}
