package syncstate

import (
	"pkt.systems/statesync/internal/querycache"
	"pkt.systems/statesync/schema"
)

// Mutation is a local change in two phases: Apply writes it optimistically,
// Reconcile overwrites whatever it wrote with server state once a snapshot
// arrives.
type Mutation struct {
	msg schema.Message
}

// NewMutation validates msg and wraps it.
func NewMutation(msg schema.Message) (Mutation, error) {
	if err := schema.Validate(msg); err != nil {
		return Mutation{}, err
	}
	return Mutation{msg: msg}, nil
}

// Message returns the outbound frame for the mutation.
func (m Mutation) Message() schema.Message { return m.msg }

// Apply performs the optimistic write.
func (m Mutation) Apply(cache *querycache.Cache) error {
	return Apply(cache, m.msg)
}

// Reconcile replaces mirrored state with the server snapshot, superseding
// the optimistic write.
func (m Mutation) Reconcile(snapshot schema.GlobalState, cache *querycache.Cache) error {
	return Apply(cache, schema.StateUpdate{Data: snapshot})
}
