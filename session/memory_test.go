package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryReadyFlag(t *testing.T) {
	m := NewMemory()

	require.False(t, m.Ready(1))

	m.SetReady(1)
	require.True(t, m.Ready(1))
	require.False(t, m.Ready(2))
}

func TestMemoryPartyAttribute(t *testing.T) {
	m := NewMemory()

	_, ok := m.PartyID(1)
	require.False(t, ok)

	m.SetPartyID(1, "party-a")

	id, ok := m.PartyID(1)
	require.True(t, ok)
	require.Equal(t, "party-a", id)

	m.ClearPartyID(1)
	_, ok = m.PartyID(1)
	require.False(t, ok)
}

func TestMemoryReset(t *testing.T) {
	m := NewMemory()
	m.SetReady(1)
	m.SetPartyID(1, "party-a")

	m.Reset()

	require.False(t, m.Ready(1))
	_, ok := m.PartyID(1)
	require.False(t, ok)
}
