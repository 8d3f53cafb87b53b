package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// ProviderKey is a stored API key for one AI provider.
type ProviderKey struct {
	ID        string    `json:"id"`
	Provider  string    `json:"provider"`
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Masked returns the key with all but the last four characters hidden.
func (k ProviderKey) Masked() string {
	if len(k.Key) <= 4 {
		return strings.Repeat("*", len(k.Key))
	}
	return strings.Repeat("*", len(k.Key)-4) + k.Key[len(k.Key)-4:]
}

// CreateKeyInput is the body of a create request.
type CreateKeyInput struct {
	Provider string `json:"provider"`
	Key      string `json:"key"`
}

// UpdateKeyInput carries the fields to change.
type UpdateKeyInput struct {
	Provider *string `json:"provider,omitempty"`
	Key      *string `json:"key,omitempty"`
}

const (
	kindKeys = "providerKeys"
	kindKey  = "providerKey"
)

// ListKeys returns every provider key.
func (c *Client) ListKeys(ctx context.Context) ([]ProviderKey, error) {
	return query[[]ProviderKey](ctx, c, key(kindKeys), "/api/keys")
}

// GetKey returns one provider key.
func (c *Client) GetKey(ctx context.Context, id string) (ProviderKey, error) {
	if err := requireID("key", id); err != nil {
		return ProviderKey{}, err
	}
	return query[ProviderKey](ctx, c, key(kindKey, id), "/api/keys/"+escape(id))
}

// CreateKey stores a new provider key.
func (c *Client) CreateKey(ctx context.Context, in CreateKeyInput) (ProviderKey, error) {
	if strings.TrimSpace(in.Provider) == "" || strings.TrimSpace(in.Key) == "" {
		return ProviderKey{}, errors.New("provider and key are required")
	}
	var out ProviderKey
	err := c.doJSON(ctx, http.MethodPost, "/api/keys", in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindKeys))
		c.cache.Set(key(kindKey, out.ID), out)
	}
	return out, c.report(mutation{success: "API key saved successfully", fallback: "Failed to save API key"}, err)
}

// UpdateKey patches a provider key.
func (c *Client) UpdateKey(ctx context.Context, id string, in UpdateKeyInput) (ProviderKey, error) {
	if err := requireID("key", id); err != nil {
		return ProviderKey{}, err
	}
	if in.Provider == nil && in.Key == nil {
		return ProviderKey{}, errors.New("at least one of provider or key must be provided")
	}
	var out ProviderKey
	err := c.doJSON(ctx, http.MethodPatch, "/api/keys/"+escape(id), in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindKeys))
		c.cache.Set(key(kindKey, id), out)
	}
	return out, c.report(mutation{success: "API key updated successfully", fallback: "Failed to update API key"}, err)
}

// DeleteKey removes a provider key.
func (c *Client) DeleteKey(ctx context.Context, id string) error {
	if err := requireID("key", id); err != nil {
		return err
	}
	err := c.doJSON(ctx, http.MethodDelete, "/api/keys/"+escape(id), nil, nil)
	if err == nil {
		c.cache.Remove(key(kindKey, id))
		c.cache.Invalidate(key(kindKeys))
	}
	return c.report(mutation{success: "API key deleted successfully", fallback: "Failed to delete API key"}, err)
}
