package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// Prompt is a reusable prompt template.
type Prompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	ProjectID string    `json:"projectId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreatePromptInput is the body of a create request.
type CreatePromptInput struct {
	ProjectID string `json:"projectId,omitempty"`
	Name      string `json:"name"`
	Content   string `json:"content"`
}

// UpdatePromptInput carries the fields to change; at least one is required.
type UpdatePromptInput struct {
	Name    *string `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
}

const (
	kindPrompts        = "prompts"
	kindProjectPrompts = "projectPrompts"
	kindPrompt         = "prompt"
)

// ListPrompts returns every prompt.
func (c *Client) ListPrompts(ctx context.Context) ([]Prompt, error) {
	return query[[]Prompt](ctx, c, key(kindPrompts), "/api/prompts")
}

// ListProjectPrompts returns the prompts linked to a project.
func (c *Client) ListProjectPrompts(ctx context.Context, projectID string) ([]Prompt, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, err
	}
	return query[[]Prompt](ctx, c, key(kindProjectPrompts, projectID), "/api/projects/"+escape(projectID)+"/prompts")
}

// GetPrompt returns one prompt.
func (c *Client) GetPrompt(ctx context.Context, id string) (Prompt, error) {
	if err := requireID("prompt", id); err != nil {
		return Prompt{}, err
	}
	return query[Prompt](ctx, c, key(kindPrompt, id), "/api/prompts/"+escape(id))
}

// CreatePrompt creates a prompt, optionally linked to a project.
func (c *Client) CreatePrompt(ctx context.Context, in CreatePromptInput) (Prompt, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Content) == "" {
		return Prompt{}, errors.New("prompt name and content are required")
	}
	var out Prompt
	err := c.doJSON(ctx, http.MethodPost, "/api/prompts", in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindPrompts))
		c.cache.Invalidate(key(kindProjectPrompts))
		c.cache.Set(key(kindPrompt, out.ID), out)
	}
	return out, c.report(mutation{success: "Prompt created successfully", fallback: "Failed to create prompt"}, err)
}

// UpdatePrompt patches a prompt.
func (c *Client) UpdatePrompt(ctx context.Context, id string, in UpdatePromptInput) (Prompt, error) {
	if err := requireID("prompt", id); err != nil {
		return Prompt{}, err
	}
	if in.Name == nil && in.Content == nil {
		return Prompt{}, errors.New("at least one of name or content must be provided")
	}
	var out Prompt
	err := c.doJSON(ctx, http.MethodPatch, "/api/prompts/"+escape(id), in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindPrompts))
		c.cache.Invalidate(key(kindProjectPrompts))
		c.cache.Set(key(kindPrompt, id), out)
	}
	return out, c.report(mutation{success: "Prompt updated successfully", fallback: "Failed to update prompt"}, err)
}

// DeletePrompt removes a prompt. The cached list drops the prompt
// immediately and is restored if the server rejects the delete.
func (c *Client) DeletePrompt(ctx context.Context, id string) error {
	if err := requireID("prompt", id); err != nil {
		return err
	}
	listKey := key(kindPrompts)
	var previous []Prompt
	hadList := false
	c.cache.Update(listKey, func(prev any, ok bool) (any, bool) {
		list, isList := prev.([]Prompt)
		if !ok || !isList {
			return nil, false
		}
		previous, hadList = list, true
		next := make([]Prompt, 0, len(list))
		for _, prompt := range list {
			if prompt.ID != id {
				next = append(next, prompt)
			}
		}
		return next, true
	})

	err := c.doJSON(ctx, http.MethodDelete, "/api/prompts/"+escape(id), nil, nil)
	if err != nil {
		if hadList {
			c.cache.Set(listKey, previous)
		}
	} else {
		c.cache.Remove(key(kindPrompt, id))
		c.cache.Invalidate(listKey)
		c.cache.Invalidate(key(kindProjectPrompts))
	}
	return c.report(mutation{success: "Prompt deleted successfully", fallback: "Failed to delete prompt"}, err)
}

// AddPromptToProject links an existing prompt to a project.
func (c *Client) AddPromptToProject(ctx context.Context, projectID, promptID string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if err := requireID("prompt", promptID); err != nil {
		return err
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/projects/"+escape(projectID)+"/prompts/"+escape(promptID), nil, nil)
	if err == nil {
		c.cache.Invalidate(key(kindProjectPrompts, projectID))
	}
	return c.report(mutation{success: "Prompt added to project", fallback: "Failed to add prompt to project"}, err)
}

// RemovePromptFromProject unlinks a prompt from a project.
func (c *Client) RemovePromptFromProject(ctx context.Context, projectID, promptID string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if err := requireID("prompt", promptID); err != nil {
		return err
	}
	err := c.doJSON(ctx, http.MethodDelete, "/api/projects/"+escape(projectID)+"/prompts/"+escape(promptID), nil, nil)
	if err == nil {
		c.cache.Invalidate(key(kindProjectPrompts, projectID))
	}
	return c.report(mutation{success: "Prompt removed from project", fallback: "Failed to remove prompt from project"}, err)
}
