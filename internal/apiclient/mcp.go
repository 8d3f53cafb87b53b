package apiclient

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// MCPServerConfig is a project-scoped MCP server integration. Either Command
// (stdio transport) or URL (streamable HTTP) is set.
type MCPServerConfig struct {
	ID        string            `json:"id"`
	ProjectID string            `json:"projectId"`
	Name      string            `json:"name"`
	Command   string            `json:"command,omitempty"`
	Args      []string          `json:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	URL       string            `json:"url,omitempty"`
	Enabled   bool              `json:"enabled"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// MCPServerInput is the body of create and update requests.
type MCPServerInput struct {
	Name    string            `json:"name"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
	Enabled bool              `json:"enabled"`
}

func (in MCPServerInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return errors.New("mcp server name is required")
	}
	hasCommand := strings.TrimSpace(in.Command) != ""
	hasURL := strings.TrimSpace(in.URL) != ""
	if hasCommand == hasURL {
		return errors.New("exactly one of mcp server command or url is required")
	}
	return nil
}

const (
	kindMCPServers = "mcpServers"
	kindMCPServer  = "mcpServer"
)

func mcpPath(projectID string) string {
	return "/api/projects/" + escape(projectID) + "/mcp-servers"
}

// ListMCPServers returns the MCP server configs of a project.
func (c *Client) ListMCPServers(ctx context.Context, projectID string) ([]MCPServerConfig, error) {
	if err := requireID("project", projectID); err != nil {
		return nil, err
	}
	return query[[]MCPServerConfig](ctx, c, key(kindMCPServers, projectID), mcpPath(projectID))
}

// GetMCPServer returns one MCP server config.
func (c *Client) GetMCPServer(ctx context.Context, projectID, id string) (MCPServerConfig, error) {
	if err := requireID("project", projectID); err != nil {
		return MCPServerConfig{}, err
	}
	if err := requireID("mcp server", id); err != nil {
		return MCPServerConfig{}, err
	}
	return query[MCPServerConfig](ctx, c, key(kindMCPServer, projectID, id), mcpPath(projectID)+"/"+escape(id))
}

// CreateMCPServer adds an MCP server config to a project.
func (c *Client) CreateMCPServer(ctx context.Context, projectID string, in MCPServerInput) (MCPServerConfig, error) {
	if err := requireID("project", projectID); err != nil {
		return MCPServerConfig{}, err
	}
	if err := in.validate(); err != nil {
		return MCPServerConfig{}, err
	}
	var out MCPServerConfig
	err := c.doJSON(ctx, http.MethodPost, mcpPath(projectID), in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindMCPServers, projectID))
		c.cache.Set(key(kindMCPServer, projectID, out.ID), out)
	}
	return out, c.report(mutation{success: "MCP server created", fallback: "Failed to create MCP server"}, err)
}

// UpdateMCPServer replaces an MCP server config.
func (c *Client) UpdateMCPServer(ctx context.Context, projectID, id string, in MCPServerInput) (MCPServerConfig, error) {
	if err := requireID("project", projectID); err != nil {
		return MCPServerConfig{}, err
	}
	if err := requireID("mcp server", id); err != nil {
		return MCPServerConfig{}, err
	}
	if err := in.validate(); err != nil {
		return MCPServerConfig{}, err
	}
	var out MCPServerConfig
	err := c.doJSON(ctx, http.MethodPatch, mcpPath(projectID)+"/"+escape(id), in, &out)
	if err == nil {
		c.cache.Invalidate(key(kindMCPServers, projectID))
		c.cache.Set(key(kindMCPServer, projectID, id), out)
	}
	return out, c.report(mutation{success: "MCP server updated", fallback: "Failed to update MCP server"}, err)
}

// DeleteMCPServer removes an MCP server config.
func (c *Client) DeleteMCPServer(ctx context.Context, projectID, id string) error {
	if err := requireID("project", projectID); err != nil {
		return err
	}
	if err := requireID("mcp server", id); err != nil {
		return err
	}
	err := c.doJSON(ctx, http.MethodDelete, mcpPath(projectID)+"/"+escape(id), nil, nil)
	if err == nil {
		c.cache.Remove(key(kindMCPServer, projectID, id))
		c.cache.Invalidate(key(kindMCPServers, projectID))
	}
	return c.report(mutation{success: "MCP server deleted", fallback: "Failed to delete MCP server"}, err)
}
