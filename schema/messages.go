package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MessageType is the `type` discriminant carried by every sync frame.
type MessageType string

const (
	// MsgInitialState carries the full state on (re)connect.
	MsgInitialState MessageType = "initial_state"
	// MsgStateUpdate carries a full state refresh.
	MsgStateUpdate MessageType = "state_update"
	// MsgUpdateSettings replaces the settings record.
	MsgUpdateSettings MessageType = "update_settings"
	// MsgUpdateSettingsPartial merges a patch into settings.
	MsgUpdateSettingsPartial MessageType = "update_settings_partial"
	// MsgUpdateTheme sets settings.theme.
	MsgUpdateTheme MessageType = "update_theme"
	// MsgUpdateProvider sets the provider (and optionally model) on settings or a chat tab.
	MsgUpdateProvider MessageType = "update_provider"
	// MsgUpdateLinkSettings replaces a chat tab's linkSettings.
	MsgUpdateLinkSettings MessageType = "update_link_settings"
	// MsgSetProjectTabTicket sets a project tab's selected ticket.
	MsgSetProjectTabTicket MessageType = "set_project_tab_ticket"
	// MsgUpdateGlobalStateKey is the generic keyed update.
	MsgUpdateGlobalStateKey MessageType = "update_global_state_key"
)

// Tab lifecycle operations share a tag template per kind.
const (
	tabOpCreate  = "create_%s_tab"
	tabOpUpdate  = "update_%s_tab"
	tabOpPartial = "update_%s_tab_partial"
	tabOpDelete  = "delete_%s_tab"
	tabOpActive  = "set_active_%s_tab"
)

// TabMessageType returns the tag for a tab operation template and kind.
func tabMessageType(op string, kind TabKind) MessageType {
	return MessageType(fmt.Sprintf(op, kind))
}

// CreateTabType returns create_project_tab or create_chat_tab.
func CreateTabType(kind TabKind) MessageType { return tabMessageType(tabOpCreate, kind) }

// ReplaceTabType returns update_project_tab or update_chat_tab.
func ReplaceTabType(kind TabKind) MessageType { return tabMessageType(tabOpUpdate, kind) }

// PatchTabType returns update_project_tab_partial or update_chat_tab_partial.
func PatchTabType(kind TabKind) MessageType { return tabMessageType(tabOpPartial, kind) }

// DeleteTabType returns delete_project_tab or delete_chat_tab.
func DeleteTabType(kind TabKind) MessageType { return tabMessageType(tabOpDelete, kind) }

// SetActiveTabType returns set_active_project_tab or set_active_chat_tab.
func SetActiveTabType(kind TabKind) MessageType { return tabMessageType(tabOpActive, kind) }

// GlobalStateKey names a slice of global state for update_global_state_key.
type GlobalStateKey string

const (
	// KeySettings addresses the settings record.
	KeySettings GlobalStateKey = "settings"
	// KeyProjectTabs addresses the project tab records.
	KeyProjectTabs GlobalStateKey = "projectTabs"
	// KeyChatTabs addresses the chat tab records.
	KeyChatTabs GlobalStateKey = "chatTabs"
	// KeyProjectActiveTabID addresses the project active pointer.
	KeyProjectActiveTabID GlobalStateKey = "projectActiveTabId"
	// KeyChatActiveTabID addresses the chat active pointer.
	KeyChatActiveTabID GlobalStateKey = "chatActiveTabId"
)

// Valid reports whether k is one of the addressable slices.
func (k GlobalStateKey) Valid() bool {
	switch k {
	case KeySettings, KeyProjectTabs, KeyChatTabs, KeyProjectActiveTabID, KeyChatActiveTabID:
		return true
	default:
		return false
	}
}

// Message is a sync frame. The set of implementations is closed: every
// concrete type lives in this file.
type Message interface {
	Type() MessageType
	validate() error
}

// InitialState is the snapshot sent when a connection opens.
type InitialState struct {
	Data GlobalState `json:"data"`
}

// StateUpdate is a full snapshot refresh.
type StateUpdate struct {
	Data GlobalState `json:"data"`
}

// CreateTab creates a tab record and activates it.
type CreateTab struct {
	Kind  TabKind `json:"-"`
	TabID TabID   `json:"tabId"`
	Data  Record  `json:"data"`
}

// ReplaceTab replaces a tab record.
type ReplaceTab struct {
	Kind  TabKind `json:"-"`
	TabID TabID   `json:"tabId"`
	Data  Record  `json:"data"`
}

// PatchTab shallow-merges a patch into an existing tab record.
type PatchTab struct {
	Kind    TabKind `json:"-"`
	TabID   TabID   `json:"tabId"`
	Partial Record  `json:"partial"`
}

// DeleteTab removes a tab record.
type DeleteTab struct {
	Kind  TabKind `json:"-"`
	TabID TabID   `json:"tabId"`
}

// SetActiveTab overwrites the active pointer. An empty TabID encodes null.
type SetActiveTab struct {
	Kind  TabKind `json:"-"`
	TabID TabID   `json:"tabId"`
}

// ReplaceSettings replaces the settings record.
type ReplaceSettings struct {
	Data Record `json:"data"`
}

// PatchSettings shallow-merges a patch into settings.
type PatchSettings struct {
	Partial Record `json:"partial"`
}

// UpdateTheme sets settings.theme.
type UpdateTheme struct {
	Theme ThemeName `json:"theme"`
}

// UpdateProvider sets provider and model. With TabID set it targets that
// chat tab, otherwise settings.
type UpdateProvider struct {
	TabID    TabID        `json:"tabId,omitempty"`
	Provider ProviderName `json:"provider"`
	Model    string       `json:"model,omitempty"`
}

// UpdateLinkSettings replaces the linkSettings object of a chat tab.
type UpdateLinkSettings struct {
	TabID    TabID           `json:"tabId"`
	Settings ChatLinkSetting `json:"settings"`
}

// SetProjectTabTicket sets or clears the selected ticket of a project tab.
type SetProjectTabTicket struct {
	TabID    TabID   `json:"tabId"`
	TicketID *string `json:"ticketId"`
}

// UpdateGlobalStateKey applies a partial update to a named slice of state.
type UpdateGlobalStateKey struct {
	Key     GlobalStateKey
	Partial json.RawMessage
}

// Type implements Message.
func (InitialState) Type() MessageType { return MsgInitialState }

// Type implements Message.
func (StateUpdate) Type() MessageType { return MsgStateUpdate }

// Type implements Message.
func (m CreateTab) Type() MessageType { return CreateTabType(m.Kind) }

// Type implements Message.
func (m ReplaceTab) Type() MessageType { return ReplaceTabType(m.Kind) }

// Type implements Message.
func (m PatchTab) Type() MessageType { return PatchTabType(m.Kind) }

// Type implements Message.
func (m DeleteTab) Type() MessageType { return DeleteTabType(m.Kind) }

// Type implements Message.
func (m SetActiveTab) Type() MessageType { return SetActiveTabType(m.Kind) }

// Type implements Message.
func (ReplaceSettings) Type() MessageType { return MsgUpdateSettings }

// Type implements Message.
func (PatchSettings) Type() MessageType { return MsgUpdateSettingsPartial }

// Type implements Message.
func (UpdateTheme) Type() MessageType { return MsgUpdateTheme }

// Type implements Message.
func (UpdateProvider) Type() MessageType { return MsgUpdateProvider }

// Type implements Message.
func (UpdateLinkSettings) Type() MessageType { return MsgUpdateLinkSettings }

// Type implements Message.
func (SetProjectTabTicket) Type() MessageType { return MsgSetProjectTabTicket }

// Type implements Message.
func (UpdateGlobalStateKey) Type() MessageType { return MsgUpdateGlobalStateKey }

func (m InitialState) validate() error { return validateSnapshot(m.Data) }
func (m StateUpdate) validate() error { return validateSnapshot(m.Data) }

func (m CreateTab) validate() error {
	if err := validateTab(m.Kind, m.TabID); err != nil {
		return err
	}
	if m.Data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidMessage)
	}
	return nil
}

func (m ReplaceTab) validate() error {
	if err := validateTab(m.Kind, m.TabID); err != nil {
		return err
	}
	if m.Data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidMessage)
	}
	return nil
}

func (m PatchTab) validate() error {
	if err := validateTab(m.Kind, m.TabID); err != nil {
		return err
	}
	if m.Partial == nil {
		return fmt.Errorf("%w: partial is required", ErrInvalidMessage)
	}
	return nil
}

func (m DeleteTab) validate() error { return validateTab(m.Kind, m.TabID) }

func (m SetActiveTab) validate() error {
	if !m.Kind.Valid() {
		return fmt.Errorf("%w: unknown tab kind %q", ErrInvalidMessage, m.Kind)
	}
	if m.TabID == "" {
		return nil
	}
	return validateTab(m.Kind, m.TabID)
}

func (m ReplaceSettings) validate() error {
	if m.Data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidMessage)
	}
	return nil
}

func (m PatchSettings) validate() error {
	if m.Partial == nil {
		return fmt.Errorf("%w: partial is required", ErrInvalidMessage)
	}
	return nil
}

func (m UpdateTheme) validate() error {
	if _, ok := NormalizeThemeName(string(m.Theme)); !ok {
		return fmt.Errorf("%w: %w %q", ErrInvalidMessage, ErrInvalidTheme, m.Theme)
	}
	return nil
}

func (m UpdateProvider) validate() error {
	if strings.TrimSpace(string(m.Provider)) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidMessage)
	}
	if m.TabID != "" {
		return validateTab(TabKindChat, m.TabID)
	}
	return nil
}

func (m UpdateLinkSettings) validate() error { return validateTab(TabKindChat, m.TabID) }

func (m SetProjectTabTicket) validate() error { return validateTab(TabKindProject, m.TabID) }

func (m UpdateGlobalStateKey) validate() error {
	if !m.Key.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidMessage, ErrInvalidKey, m.Key)
	}
	if len(m.Partial) == 0 {
		return fmt.Errorf("%w: partial is required", ErrInvalidMessage)
	}
	switch m.Key {
	case KeyProjectActiveTabID, KeyChatActiveTabID:
		if _, err := m.ActiveTabID(); err != nil {
			return err
		}
	case KeySettings:
		if _, err := m.SettingsPatch(); err != nil {
			return err
		}
	default:
		if _, err := m.TabPatches(); err != nil {
			return err
		}
	}
	return nil
}

// SettingsPatch decodes the partial as a settings patch.
func (m UpdateGlobalStateKey) SettingsPatch() (Record, error) {
	var patch Record
	if err := json.Unmarshal(m.Partial, &patch); err != nil || patch == nil {
		return nil, fmt.Errorf("%w: settings partial must be an object", ErrInvalidMessage)
	}
	return patch, nil
}

// TabPatches decodes the partial as per-tab patches keyed by tab id.
func (m UpdateGlobalStateKey) TabPatches() (map[TabID]Record, error) {
	var patches map[TabID]Record
	if err := json.Unmarshal(m.Partial, &patches); err != nil || patches == nil {
		return nil, fmt.Errorf("%w: %s partial must be an object of tab records", ErrInvalidMessage, m.Key)
	}
	for id := range patches {
		if err := ValidateTabID(id); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	}
	return patches, nil
}

// ActiveTabID decodes the partial as a nullable tab id. Null yields "".
func (m UpdateGlobalStateKey) ActiveTabID() (TabID, error) {
	var id *TabID
	if err := json.Unmarshal(m.Partial, &id); err != nil {
		return "", fmt.Errorf("%w: %s partial must be a string or null", ErrInvalidMessage, m.Key)
	}
	if id == nil {
		return "", nil
	}
	if err := ValidateTabID(*id); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return *id, nil
}

// MarshalJSON nests key and partial under data.
func (m UpdateGlobalStateKey) MarshalJSON() ([]byte, error) {
	partial := m.Partial
	if len(partial) == 0 {
		partial = json.RawMessage("null")
	}
	return json.Marshal(struct {
		Data struct {
			Key     GlobalStateKey  `json:"key"`
			Partial json.RawMessage `json:"partial"`
		} `json:"data"`
	}{Data: struct {
		Key     GlobalStateKey  `json:"key"`
		Partial json.RawMessage `json:"partial"`
	}{Key: m.Key, Partial: partial}})
}

// UnmarshalJSON reads key and partial from data.
func (m *UpdateGlobalStateKey) UnmarshalJSON(data []byte) error {
	var wire struct {
		Data *struct {
			Key     GlobalStateKey  `json:"key"`
			Partial json.RawMessage `json:"partial"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	if wire.Data == nil {
		return fmt.Errorf("%w: data is required", ErrInvalidMessage)
	}
	m.Key = wire.Data.Key
	m.Partial = wire.Data.Partial
	return nil
}

// MarshalJSON encodes an empty TabID as null.
func (m SetActiveTab) MarshalJSON() ([]byte, error) {
	var id *TabID
	if m.TabID != "" {
		id = &m.TabID
	}
	return json.Marshal(struct {
		TabID *TabID `json:"tabId"`
	}{TabID: id})
}

// NewUpdateGlobalStateKey builds a keyed update from any JSON-encodable partial.
func NewUpdateGlobalStateKey(key GlobalStateKey, partial any) (UpdateGlobalStateKey, error) {
	data, err := json.Marshal(partial)
	if err != nil {
		return UpdateGlobalStateKey{}, err
	}
	msg := UpdateGlobalStateKey{Key: key, Partial: data}
	if err := msg.validate(); err != nil {
		return UpdateGlobalStateKey{}, err
	}
	return msg, nil
}

// Validate checks a message built in code before it is sent.
func Validate(msg Message) error {
	if msg == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidMessage)
	}
	return msg.validate()
}

func validateTab(kind TabKind, id TabID) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown tab kind %q", ErrInvalidMessage, kind)
	}
	if err := ValidateTabID(id); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return nil
}

func validateSnapshot(state GlobalState) error {
	if state.Settings == nil {
		return fmt.Errorf("%w: snapshot settings are required", ErrInvalidMessage)
	}
	for _, kind := range []TabKind{TabKindProject, TabKindChat} {
		for id, rec := range state.Tabs(kind) {
			if err := ValidateTabID(id); err != nil {
				return fmt.Errorf("%w: %s tab: %w", ErrInvalidMessage, kind, err)
			}
			if rec == nil {
				return fmt.Errorf("%w: %s tab %q has no record", ErrInvalidMessage, kind, id)
			}
		}
		if active := state.ActiveTabID(kind); active != nil && *active != "" {
			if err := ValidateTabID(*active); err != nil {
				return fmt.Errorf("%w: %s active tab: %w", ErrInvalidMessage, kind, err)
			}
		}
	}
	return nil
}
