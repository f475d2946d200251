package types

// MutationKind identifies the type of change a MutationEvent carries.
type MutationKind int32

// Mutation kinds applied by the batch processor.
const (
	// MutationAdd adds a player to a party. Value is the player ID.
	MutationAdd MutationKind = iota

	// MutationRemove removes a player from a party. Value is the player ID.
	MutationRemove

	// MutationSetCapacity changes a party's capacity. Value is the new capacity.
	MutationSetCapacity
)

// String returns a human-readable name for the mutation kind.
func (k MutationKind) String() string {
	switch k {
	case MutationAdd:
		return "add"
	case MutationRemove:
		return "remove"
	case MutationSetCapacity:
		return "set_capacity"
	default:
		return "unknown"
	}
}

// MutationEvent is an intended change to a single party, queued for
// serialized application by the batch processor.
//
// Events are immutable once created and consumed exactly once. Value holds a
// player ID for MutationAdd/MutationRemove and the new capacity for
// MutationSetCapacity.
type MutationEvent struct {
	// GroupKey is the ID of the party the event targets.
	GroupKey string

	// Timestamp is the enqueue time in Unix milliseconds.
	Timestamp int64

	// Kind is the type of mutation.
	Kind MutationKind

	// Value is the player ID or capacity, depending on Kind.
	Value int64
}
