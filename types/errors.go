package types

import "errors"

// Sentinel errors for the partysync library.
//
// All components use these sentinels for known error conditions and wrap
// external errors with context using fmt.Errorf("...: %w", err), so callers
// can branch with errors.Is().

// Validation errors - rejected synchronously at the party operation call,
// before any event reaches the queue.
var (
	// ErrAtCapacity is returned when adding a member to a full party.
	ErrAtCapacity = errors.New("party is at max size")

	// ErrAlreadyMember is returned when adding a player who is already a member.
	ErrAlreadyMember = errors.New("player is already a member")

	// ErrAlreadyInParty is returned when adding a player who belongs to another party.
	ErrAlreadyInParty = errors.New("player already belongs to a party")

	// ErrNotMember is returned when removing a player who is not a member.
	ErrNotMember = errors.New("player is not a member")

	// ErrSessionNotReady is returned when a player's session has not finished
	// initializing within the ready-wait timeout.
	ErrSessionNotReady = errors.New("player session is not ready")

	// ErrCapacityUnchanged is returned when setting capacity to its current value.
	ErrCapacityUnchanged = errors.New("capacity unchanged")

	// ErrCapacityTooSmall is returned when setting capacity at or below the
	// current membership count.
	ErrCapacityTooSmall = errors.New("capacity must exceed current membership")

	// ErrInvalidCapacity is returned for a negative capacity.
	ErrInvalidCapacity = errors.New("invalid capacity")
)

// Registry errors - Public API errors returned by Registry and Hub.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrPartyNotFound is returned when a party is not active in the registry.
	// The reducer also reports it for stale events whose party was destroyed
	// before the event drained.
	ErrPartyNotFound = errors.New("party not found")

	// ErrPartyDestroyed is returned when operating on a destroyed party.
	ErrPartyDestroyed = errors.New("party destroyed")

	// ErrRegistryNotFound is returned when a lookup record names a registry
	// unknown to the hub.
	ErrRegistryNotFound = errors.New("registry not found")

	// ErrRegistryExists is returned when registering a duplicate registry name.
	ErrRegistryExists = errors.New("registry already registered")

	// ErrRegistryClosed is returned when operating on a closed registry or hub.
	ErrRegistryClosed = errors.New("registry closed")

	// ErrNotDurable is returned when a durable-only operation targets an
	// ephemeral registry.
	ErrNotDurable = errors.New("registry is not durably backed")

	// ErrJetStreamRequired is returned when a durable registry is registered
	// without a NATS connection. Treated as fatal at startup.
	ErrJetStreamRequired = errors.New("durable registry requires a NATS connection")
)

// Persistence errors - reducer-path and recovery-path external failures.
var (
	// ErrRecordUpdateFailed is returned when the durable group record could
	// not be written for a queued mutation. Not retried; reported to the
	// original caller.
	ErrRecordUpdateFailed = errors.New("failed to update group record")

	// ErrLookupUpdateFailed is returned when the player-lookup record could
	// not be written for a queued mutation.
	ErrLookupUpdateFailed = errors.New("failed to update lookup record")

	// ErrMalformedLookupRef is returned when a lookup record value does not
	// parse as "<registry>::<partyId>".
	ErrMalformedLookupRef = errors.New("malformed lookup record")
)
