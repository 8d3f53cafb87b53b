package schema

// AppSettings is the typed view of the global settings record.
type AppSettings struct {
	Language                        string       `json:"language"`
	Theme                           ThemeName    `json:"theme"`
	CodeThemeLight                  string       `json:"codeThemeLight"`
	CodeThemeDark                   string       `json:"codeThemeDark"`
	OllamaGlobalURL                 string       `json:"ollamaGlobalUrl"`
	LMStudioGlobalURL               string       `json:"lmStudioGlobalUrl"`
	SummarizationIgnorePatterns     []string     `json:"summarizationIgnorePatterns"`
	SummarizationAllowPatterns      []string     `json:"summarizationAllowPatterns"`
	SummarizationEnabledProjectIDs  []ProjectID  `json:"summarizationEnabledProjectIds"`
	UseSpacebarToSelectAutocomplete bool         `json:"useSpacebarToSelectAutocomplete"`
	HideInformationalTooltips       bool         `json:"hideInformationalTooltips"`
	AutoScrollEnabled               bool         `json:"autoScrollEnabled"`
	Provider                        ProviderName `json:"provider"`
	Model                           string       `json:"model"`
	Temperature                     float64      `json:"temperature"`
	MaxTokens                       int          `json:"maxTokens"`
	TopP                            float64      `json:"topP"`
	FrequencyPenalty                float64      `json:"frequencyPenalty"`
	PresencePenalty                 float64      `json:"presencePenalty"`
	ProjectTabIDOrder               []TabID      `json:"projectTabIdOrder"`
	ChatTabIDOrder                  []TabID      `json:"chatTabIdOrder"`
}

// ProjectTabState is the typed view of a project tab record.
type ProjectTabState struct {
	SelectedProjectID    *ProjectID          `json:"selectedProjectId"`
	EditProjectID        *ProjectID          `json:"editProjectId"`
	PromptDialogOpen     bool                `json:"promptDialogOpen"`
	EditPromptID         *PromptID           `json:"editPromptId"`
	FileSearch           string              `json:"fileSearch"`
	SelectedFiles        []string            `json:"selectedFiles"`
	SelectedPrompts      []PromptID          `json:"selectedPrompts"`
	UserPrompt           string              `json:"userPrompt"`
	SearchByContent      bool                `json:"searchByContent"`
	DisplayName          string              `json:"displayName,omitempty"`
	ContextLimit         int                 `json:"contextLimit"`
	ResolveImports       bool                `json:"resolveImports"`
	PreferredEditor      string              `json:"preferredEditor"`
	SuggestedFileIDs     []string            `json:"suggestedFileIds"`
	BookmarkedFileGroups map[string][]string `json:"bookmarkedFileGroups"`
	TicketSearch         string              `json:"ticketSearch"`
	TicketSort           string              `json:"ticketSort"`
	TicketStatusFilter   string              `json:"ticketStatusFilter"`
	TicketID             *string             `json:"ticketId"`
	SortOrder            int                 `json:"sortOrder"`
}

// ChatLinkSetting controls which project tab context a chat tab pulls in.
type ChatLinkSetting struct {
	IncludeSelectedFiles bool   `json:"includeSelectedFiles"`
	IncludePrompts       bool   `json:"includePrompts"`
	IncludeUserPrompt    bool   `json:"includeUserPrompt"`
	LinkedProjectTabID   *TabID `json:"linkedProjectTabId"`
}

// ChatTabState is the typed view of a chat tab record.
type ChatTabState struct {
	DisplayName  string          `json:"displayName,omitempty"`
	ActiveChatID *string         `json:"activeChatId"`
	Provider     ProviderName    `json:"provider"`
	Model        string          `json:"model"`
	Input        string          `json:"input"`
	LinkSettings ChatLinkSetting `json:"linkSettings"`
	SortOrder    int             `json:"sortOrder"`
}

// GlobalState is the bulk payload carried by initial_state and state_update.
// A nil active pointer encodes as JSON null.
type GlobalState struct {
	Settings           Record           `json:"settings"`
	ProjectTabs        map[TabID]Record `json:"projectTabs"`
	ProjectActiveTabID *TabID           `json:"projectActiveTabId"`
	ChatTabs           map[TabID]Record `json:"chatTabs"`
	ChatActiveTabID    *TabID           `json:"chatActiveTabId"`
}

// Tabs returns the tab map for kind.
func (g GlobalState) Tabs(kind TabKind) map[TabID]Record {
	if kind == TabKindChat {
		return g.ChatTabs
	}
	return g.ProjectTabs
}

// ActiveTabID returns the active pointer for kind.
func (g GlobalState) ActiveTabID(kind TabKind) *TabID {
	if kind == TabKindChat {
		return g.ChatActiveTabID
	}
	return g.ProjectActiveTabID
}

// DefaultAppSettings returns settings populated with application defaults.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Language:                        "en",
		Theme:                           DefaultTheme,
		CodeThemeLight:                  "atomOneLight",
		CodeThemeDark:                   "atomOneDark",
		OllamaGlobalURL:                 "http://localhost:11434",
		LMStudioGlobalURL:               "http://localhost:1234",
		SummarizationIgnorePatterns:     []string{},
		SummarizationAllowPatterns:      []string{},
		SummarizationEnabledProjectIDs:  []ProjectID{},
		UseSpacebarToSelectAutocomplete: true,
		HideInformationalTooltips:       false,
		AutoScrollEnabled:               true,
		Provider:                        "openrouter",
		Model:                           "gpt-4o",
		Temperature:                     0.7,
		MaxTokens:                       4096,
		TopP:                            1.0,
		FrequencyPenalty:                0,
		PresencePenalty:                 0,
		ProjectTabIDOrder:               []TabID{},
		ChatTabIDOrder:                  []TabID{},
	}
}

// DefaultProjectTabState returns a project tab with the given display name.
func DefaultProjectTabState(displayName string) ProjectTabState {
	return ProjectTabState{
		SelectedFiles:        []string{},
		SelectedPrompts:      []PromptID{},
		DisplayName:          displayName,
		ContextLimit:         128000,
		PreferredEditor:      "vscode",
		SuggestedFileIDs:     []string{},
		BookmarkedFileGroups: map[string][]string{},
		TicketSort:           "created_desc",
		TicketStatusFilter:   "all",
	}
}

// DefaultChatTabState returns a chat tab with the given display name.
func DefaultChatTabState(displayName string) ChatTabState {
	defaults := DefaultAppSettings()
	return ChatTabState{
		DisplayName: displayName,
		Provider:    defaults.Provider,
		Model:       defaults.Model,
	}
}

// InitialGlobalState returns the state a fresh installation starts with:
// default settings and one default tab of each kind.
func InitialGlobalState() GlobalState {
	projectTab := TabID("defaultTab")
	chatTab := TabID("defaultChatTab")
	settings := DefaultAppSettings()
	settings.ProjectTabIDOrder = []TabID{projectTab}
	settings.ChatTabIDOrder = []TabID{chatTab}
	return GlobalState{
		Settings: MustRecord(settings),
		ProjectTabs: map[TabID]Record{
			projectTab: MustRecord(DefaultProjectTabState("Default Project Tab")),
		},
		ProjectActiveTabID: &projectTab,
		ChatTabs: map[TabID]Record{
			chatTab: MustRecord(DefaultChatTabState("Default Chat")),
		},
		ChatActiveTabID: &chatTab,
	}
}

// OrderField returns the settings field holding the tab id order for kind.
func OrderField(kind TabKind) string {
	if kind == TabKindChat {
		return "chatTabIdOrder"
	}
	return "projectTabIdOrder"
}
