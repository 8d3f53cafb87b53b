package syncstate

import (
	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/schema"
)

// Scope is the cache scope holding mirrored global state.
const Scope = "state"

var (
	// SettingsKey holds the settings record.
	SettingsKey = querycache.NewKey(Scope, "settings")
	// InitializedKey flips to true once the first initial_state is applied.
	InitializedKey = querycache.NewKey(Scope, "initialized")
)

// TabKey addresses one tab record.
func TabKey(kind schema.TabKind, id schema.TabID) querycache.Key {
	return querycache.NewKey(Scope, tabScope(kind), string(id))
}

// TabPrefix matches every tab record of kind.
func TabPrefix(kind schema.TabKind) querycache.Key {
	return querycache.NewKey(Scope, tabScope(kind))
}

// ActiveKey addresses the active pointer of kind.
func ActiveKey(kind schema.TabKind) querycache.Key {
	if kind == schema.TabKindChat {
		return querycache.NewKey(Scope, "chatActiveTabId")
	}
	return querycache.NewKey(Scope, "projectActiveTabId")
}

func tabScope(kind schema.TabKind) string {
	if kind == schema.TabKindChat {
		return "chatTab"
	}
	return "projectTab"
}
