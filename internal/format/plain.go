package format

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"pkt.systems/statesync/internal/eventbus"
	"pkt.systems/statesync/schema"
)

// PlainRenderer formats bus events and sync messages as plain text lines.
type PlainRenderer struct {
	// TimeLayout prefixes each line; empty disables the timestamp.
	TimeLayout string
}

// NewPlainRenderer returns a default plain-text renderer.
func NewPlainRenderer() *PlainRenderer {
	return &PlainRenderer{TimeLayout: time.TimeOnly}
}

// FormatEvent converts a bus event into one line.
func (p *PlainRenderer) FormatEvent(event eventbus.Event) string {
	var body string
	switch event.Type {
	case eventbus.EventConnection:
		body = formatConnection(event.Connection)
	case eventbus.EventHealth:
		if event.Health.Healthy {
			body = "health ok"
		} else {
			body = "health down err=" + event.Health.Err
		}
	default:
		n := event.Notification
		body = fmt.Sprintf("%s %s", n.Level, n.Title)
		if n.Message != "" {
			body += ": " + n.Message
		}
	}
	return p.stamp(event.At, body)
}

// FormatMessage converts an inbound sync message into one line.
func (p *PlainRenderer) FormatMessage(at time.Time, msg schema.Message) string {
	return p.stamp(at, "message "+describe(msg))
}

func (p *PlainRenderer) stamp(at time.Time, body string) string {
	if p.TimeLayout == "" || at.IsZero() {
		return body
	}
	return at.Format(p.TimeLayout) + " " + body
}

func formatConnection(status eventbus.ConnectionStatus) string {
	line := "connection " + status.State
	if status.Attempt > 0 {
		line += fmt.Sprintf(" attempt=%d", status.Attempt)
	}
	if status.Err != "" {
		line += " err=" + status.Err
	}
	return line
}

func describe(msg schema.Message) string {
	tag := string(msg.Type())
	switch m := msg.(type) {
	case schema.InitialState:
		return fmt.Sprintf("%s project_tabs=%d chat_tabs=%d", tag, len(m.Data.ProjectTabs), len(m.Data.ChatTabs))
	case schema.StateUpdate:
		return fmt.Sprintf("%s project_tabs=%d chat_tabs=%d", tag, len(m.Data.ProjectTabs), len(m.Data.ChatTabs))
	case schema.CreateTab:
		return fmt.Sprintf("%s tab=%s", tag, m.TabID)
	case schema.ReplaceTab:
		return fmt.Sprintf("%s tab=%s", tag, m.TabID)
	case schema.PatchTab:
		return fmt.Sprintf("%s tab=%s fields=%s", tag, m.TabID, fieldList(m.Partial))
	case schema.DeleteTab:
		return fmt.Sprintf("%s tab=%s", tag, m.TabID)
	case schema.SetActiveTab:
		if m.TabID == "" {
			return tag + " tab=none"
		}
		return fmt.Sprintf("%s tab=%s", tag, m.TabID)
	case schema.PatchSettings:
		return fmt.Sprintf("%s fields=%s", tag, fieldList(m.Partial))
	case schema.UpdateTheme:
		return fmt.Sprintf("%s theme=%s", tag, m.Theme)
	case schema.UpdateProvider:
		line := fmt.Sprintf("%s provider=%s", tag, m.Provider)
		if m.TabID != "" {
			line += " tab=" + string(m.TabID)
		}
		if m.Model != "" {
			line += " model=" + m.Model
		}
		return line
	case schema.UpdateLinkSettings:
		return fmt.Sprintf("%s tab=%s", tag, m.TabID)
	case schema.SetProjectTabTicket:
		if m.TicketID == nil {
			return fmt.Sprintf("%s tab=%s ticket=none", tag, m.TabID)
		}
		return fmt.Sprintf("%s tab=%s ticket=%s", tag, m.TabID, *m.TicketID)
	case schema.UpdateGlobalStateKey:
		return fmt.Sprintf("%s key=%s", tag, m.Key)
	default:
		return tag
	}
}

func fieldList(r schema.Record) string {
	if len(r) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ",")
}
