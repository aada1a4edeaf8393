package events

import "lendcore/core/types"

const (
	// TypeAdminInitialized is emitted when the first admin is installed.
	TypeAdminInitialized = "admin.initialized"
	// TypeAdminAdded is emitted when an admin grants another account.
	TypeAdminAdded = "admin.added"
	// TypeAdminRemoved is emitted when an admin is revoked.
	TypeAdminRemoved = "admin.removed"
	// TypeAdminTransferred is emitted when an admin hands its seat over.
	TypeAdminTransferred = "admin.transferred"
)

// AdminChanged describes a mutation of the admin set.
type AdminChanged struct {
	Type   string
	Caller string
	Target string
}

// EventType satisfies the events.Event interface.
func (e AdminChanged) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e AdminChanged) Event() *types.Event {
	attrs := map[string]string{"target": e.Target}
	if e.Caller != "" {
		attrs["caller"] = e.Caller
	}
	return &types.Event{Type: e.Type, Attributes: attrs}
}
