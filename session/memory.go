// Package session provides the default in-process implementation of the
// session-attribute boundary.
//
// Real deployments typically adapt their own session layer to
// types.SessionAttributes; this implementation backs stand-alone use and
// tests.
package session

import (
	"github.com/puzpuzpuz/xsync/v4"

	"github.com/RemnantsOfSiren/partysync/types"
)

// Memory is an in-process session-attribute store.
//
// Safe for concurrent use.
type Memory struct {
	ready   *xsync.Map[int64, struct{}]
	parties *xsync.Map[int64, string]
}

// Compile-time assertion that Memory implements SessionAttributes.
var _ types.SessionAttributes = (*Memory)(nil)

// NewMemory creates an empty session-attribute store.
func NewMemory() *Memory {
	return &Memory{
		ready:   xsync.NewMap[int64, struct{}](),
		parties: xsync.NewMap[int64, string](),
	}
}

// Ready reports whether the player's session has finished initializing.
func (m *Memory) Ready(playerID int64) bool {
	_, ok := m.ready.Load(playerID)
	return ok
}

// SetReady marks the player's session as fully initialized.
func (m *Memory) SetReady(playerID int64) {
	m.ready.Store(playerID, struct{}{})
}

// PartyID returns the party the player currently belongs to.
func (m *Memory) PartyID(playerID int64) (string, bool) {
	return m.parties.Load(playerID)
}

// SetPartyID records the player's current party.
func (m *Memory) SetPartyID(playerID int64, partyID string) {
	m.parties.Store(playerID, partyID)
}

// ClearPartyID removes the player's current-party attribute.
func (m *Memory) ClearPartyID(playerID int64) {
	m.parties.Delete(playerID)
}

// Reset clears all attributes. Intended for tests.
func (m *Memory) Reset() {
	m.ready.Clear()
	m.parties.Clear()
}
