package schema

// TabID identifies a project or chat tab.
type TabID string

// ProjectID identifies a project on the server.
type ProjectID string

// PromptID identifies a stored prompt.
type PromptID string

// ProviderKeyID identifies a stored provider API key.
type ProviderKeyID string

// MCPServerID identifies a project-scoped MCP server config.
type MCPServerID string

// ServerID identifies a saved server entry in local state.
type ServerID string

// ThemeName identifies a UI theme.
type ThemeName string

// ProviderName identifies an AI provider (openai, anthropic, ...).
type ProviderName string

// TabKind distinguishes the two tab collections held in global state.
type TabKind string

const (
	// TabKindProject is the project tab collection.
	TabKindProject TabKind = "project"
	// TabKindChat is the chat tab collection.
	TabKindChat TabKind = "chat"
)

// Valid reports whether k is a known tab kind.
func (k TabKind) Valid() bool {
	return k == TabKindProject || k == TabKindChat
}
