package format

import (
	"testing"
	"time"

	"pkt.systems/statesync/internal/eventbus"
	"pkt.systems/statesync/schema"
)

func TestFormatEvent(t *testing.T) {
	at := time.Date(2025, time.March, 4, 5, 6, 7, 0, time.UTC)
	r := NewPlainRenderer()
	tests := []struct {
		name string
		ev   eventbus.Event
		want string
	}{
		{
			name: "notification",
			ev:   eventbus.Event{Type: eventbus.EventNotification, At: at, Notification: eventbus.Notification{Level: eventbus.LevelSuccess, Title: "Success", Message: "Prompt created successfully"}},
			want: "05:06:07 success Success: Prompt created successfully",
		},
		{
			name: "connection",
			ev:   eventbus.Event{Type: eventbus.EventConnection, At: at, Connection: eventbus.ConnectionStatus{State: "error", Attempt: 3, Err: "refused"}},
			want: "05:06:07 connection error attempt=3 err=refused",
		},
		{
			name: "health",
			ev:   eventbus.Event{Type: eventbus.EventHealth, At: at, Health: eventbus.HealthStatus{Healthy: true}},
			want: "05:06:07 health ok",
		},
	}
	for _, tc := range tests {
		if got := r.FormatEvent(tc.ev); got != tc.want {
			t.Fatalf("%s: FormatEvent = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFormatMessage(t *testing.T) {
	r := &PlainRenderer{}
	ticket := "T-42"
	tests := []struct {
		name string
		msg  schema.Message
		want string
	}{
		{
			name: "patch tab lists fields sorted",
			msg:  schema.PatchTab{Kind: schema.TabKindProject, TabID: "p1", Partial: schema.Record{"userPrompt": "x", "contextLimit": 10}},
			want: "message update_project_tab_partial tab=p1 fields=contextLimit,userPrompt",
		},
		{
			name: "null active pointer",
			msg:  schema.SetActiveTab{Kind: schema.TabKindChat},
			want: "message set_active_chat_tab tab=none",
		},
		{
			name: "ticket",
			msg:  schema.SetProjectTabTicket{TabID: "p1", TicketID: &ticket},
			want: "message set_project_tab_ticket tab=p1 ticket=T-42",
		},
		{
			name: "theme",
			msg:  schema.UpdateTheme{Theme: "dark"},
			want: "message update_theme theme=dark",
		},
	}
	for _, tc := range tests {
		if got := r.FormatMessage(time.Time{}, tc.msg); got != tc.want {
			t.Fatalf("%s: FormatMessage = %q, want %q", tc.name, got, tc.want)
		}
	}
}
