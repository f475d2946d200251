package types

// SessionAttributes is the boundary to the session/attribute mechanism that
// owns per-player session flags.
//
// partysync reads and polls these flags but never owns them: the "ready"
// flag is set by whatever initializes player sessions (the session recovery
// flow sets it once recovery resolves), and the "current party" attribute
// marks a player as belonging to a party so duplicate joins fail fast.
//
// Implementations must be safe for concurrent use. The session package
// provides an in-process implementation.
type SessionAttributes interface {
	// Ready reports whether the player's session has finished initializing.
	Ready(playerID int64) bool

	// SetReady marks the player's session as fully initialized.
	SetReady(playerID int64)

	// PartyID returns the party the player currently belongs to.
	//
	// Returns:
	//   - string: Party ID
	//   - bool: false if the player has no current party
	PartyID(playerID int64) (string, bool)

	// SetPartyID records the player's current party.
	SetPartyID(playerID int64, partyID string)

	// ClearPartyID removes the player's current-party attribute.
	ClearPartyID(playerID int64)
}
