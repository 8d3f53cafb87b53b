package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeMessage validates msg and renders it as a JSON frame with its type tag.
func EncodeMessage(msg Message) ([]byte, error) {
	if err := Validate(msg); err != nil {
		return nil, err
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	tag, err := json.Marshal(msg.Type())
	if err != nil {
		return nil, err
	}
	fields["type"] = tag
	return json.Marshal(fields)
}

// PeekType returns the type tag of a raw frame without decoding the payload.
func PeekType(data []byte) (MessageType, error) {
	var head struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if head.Type == "" {
		return "", fmt.Errorf("%w: missing type", ErrInvalidMessage)
	}
	return head.Type, nil
}

// DecodeMessage parses and validates a raw frame. Unknown tags and payloads
// that do not match the shape for their tag return ErrInvalidMessage.
func DecodeMessage(data []byte) (Message, error) {
	tag, err := PeekType(data)
	if err != nil {
		return nil, err
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	msg, err := decodeByType(tag, fields)
	if err != nil {
		return nil, err
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}

func decodeByType(tag MessageType, fields map[string]json.RawMessage) (Message, error) {
	switch tag {
	case MsgInitialState:
		return decodeAs(tag, fields, []string{"data"}, InitialState{})
	case MsgStateUpdate:
		return decodeAs(tag, fields, []string{"data"}, StateUpdate{})
	case MsgUpdateSettings:
		return decodeAs(tag, fields, []string{"data"}, ReplaceSettings{})
	case MsgUpdateSettingsPartial:
		return decodeAs(tag, fields, []string{"partial"}, PatchSettings{})
	case MsgUpdateTheme:
		return decodeAs(tag, fields, []string{"theme"}, UpdateTheme{})
	case MsgUpdateProvider:
		return decodeAs(tag, fields, []string{"provider"}, UpdateProvider{})
	case MsgUpdateLinkSettings:
		return decodeAs(tag, fields, []string{"tabId", "settings"}, UpdateLinkSettings{})
	case MsgSetProjectTabTicket:
		return decodeAs(tag, fields, []string{"tabId", "ticketId"}, SetProjectTabTicket{})
	case MsgUpdateGlobalStateKey:
		return decodeAs(tag, fields, []string{"data"}, UpdateGlobalStateKey{})
	}
	return decodeTabMessage(tag, fields)
}

func decodeTabMessage(tag MessageType, fields map[string]json.RawMessage) (Message, error) {
	op, kind, ok := splitTabType(tag)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidMessage, tag)
	}
	switch op {
	case tabOpCreate:
		return decodeAs(tag, fields, []string{"tabId", "data"}, CreateTab{Kind: kind})
	case tabOpUpdate:
		return decodeAs(tag, fields, []string{"tabId", "data"}, ReplaceTab{Kind: kind})
	case tabOpPartial:
		return decodeAs(tag, fields, []string{"tabId", "partial"}, PatchTab{Kind: kind})
	case tabOpDelete:
		return decodeAs(tag, fields, []string{"tabId"}, DeleteTab{Kind: kind})
	default:
		if err := requireFields(tag, fields, "tabId"); err != nil {
			return nil, err
		}
		var id *TabID
		if err := json.Unmarshal(fields["tabId"], &id); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, tag, err)
		}
		m := SetActiveTab{Kind: kind}
		if id != nil {
			if *id == "" {
				return nil, fmt.Errorf("%w: %s: %w", ErrInvalidMessage, tag, ErrInvalidTabID)
			}
			m.TabID = *id
		}
		return m, nil
	}
}

// decodeAs fills m from the frame fields after checking required keys.
func decodeAs[T Message](tag MessageType, fields map[string]json.RawMessage, required []string, m T) (Message, error) {
	if err := requireFields(tag, fields, required...); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, tag, err)
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMessage, tag, err)
	}
	return m, nil
}

// splitTabType maps a tab lifecycle tag back to its template and kind.
func splitTabType(tag MessageType) (string, TabKind, bool) {
	for _, kind := range []TabKind{TabKindProject, TabKindChat} {
		for _, op := range []string{tabOpCreate, tabOpUpdate, tabOpPartial, tabOpDelete, tabOpActive} {
			if tabMessageType(op, kind) == tag {
				return op, kind, true
			}
		}
	}
	return "", "", false
}

func requireFields(tag MessageType, fields map[string]json.RawMessage, names ...string) error {
	var missing []string
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s missing %s", ErrInvalidMessage, tag, strings.Join(missing, ", "))
	}
	return nil
}
