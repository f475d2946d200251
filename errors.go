package partysync

import "github.com/RemnantsOfSiren/partysync/types"

// Sentinel errors re-exported from the types package so callers can use
// errors.Is against partysync.ErrXxx directly.
var (
	// Validation errors, rejected synchronously before any event is queued.
	ErrAtCapacity        = types.ErrAtCapacity
	ErrAlreadyMember     = types.ErrAlreadyMember
	ErrAlreadyInParty    = types.ErrAlreadyInParty
	ErrNotMember         = types.ErrNotMember
	ErrSessionNotReady   = types.ErrSessionNotReady
	ErrCapacityUnchanged = types.ErrCapacityUnchanged
	ErrCapacityTooSmall  = types.ErrCapacityTooSmall
	ErrInvalidCapacity   = types.ErrInvalidCapacity

	// Registry and hub errors.
	ErrInvalidConfig     = types.ErrInvalidConfig
	ErrPartyNotFound     = types.ErrPartyNotFound
	ErrPartyDestroyed    = types.ErrPartyDestroyed
	ErrRegistryNotFound  = types.ErrRegistryNotFound
	ErrRegistryExists    = types.ErrRegistryExists
	ErrRegistryClosed    = types.ErrRegistryClosed
	ErrNotDurable        = types.ErrNotDurable
	ErrJetStreamRequired = types.ErrJetStreamRequired

	// Persistence errors reported through mutation futures.
	ErrRecordUpdateFailed = types.ErrRecordUpdateFailed
	ErrLookupUpdateFailed = types.ErrLookupUpdateFailed
	ErrMalformedLookupRef = types.ErrMalformedLookupRef
)
