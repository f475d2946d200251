package types

import (
	"fmt"
	"strings"
)

// Metadata describes a party's fixed and slowly-changing attributes.
//
// Metadata is persisted alongside the membership list in the durable group
// record and restored verbatim during session recovery.
type Metadata struct {
	// OwnerID is the player that created the party.
	OwnerID int64 `json:"ownerId"`

	// Capacity is the maximum number of members.
	Capacity int `json:"capacity"`

	// CreatedAt is the party creation time in Unix milliseconds.
	CreatedAt int64 `json:"createdAt"`

	// LastActiveAt is the last successful durable write in Unix milliseconds.
	LastActiveAt int64 `json:"lastActiveAt"`
}

// GroupRecord is the durable mirror of a party, stored in the membership
// bucket keyed by party ID.
//
// The record may transiently lag the in-memory party: it is only written
// inside the reducer, before the in-memory mutation it mirrors.
type GroupRecord struct {
	// Members is the ordered membership list.
	Members []int64 `json:"members"`

	// Metadata is the party metadata at the time of the last write.
	Metadata Metadata `json:"metadata"`
}

// HasMember reports whether playerID is present in the record.
func (r *GroupRecord) HasMember(playerID int64) bool {
	for _, id := range r.Members {
		if id == playerID {
			return true
		}
	}

	return false
}

// lookupSeparator joins the registry name and party ID in a lookup record.
const lookupSeparator = "::"

// FormatLookupRef encodes a registry name and party ID as a player-lookup
// record value.
func FormatLookupRef(registry, partyID string) string {
	return registry + lookupSeparator + partyID
}

// ParseLookupRef decodes a player-lookup record value into its registry name
// and party ID.
//
// Returns:
//   - string: Registry name
//   - string: Party ID
//   - error: ErrMalformedLookupRef if the value does not contain both parts
func ParseLookupRef(ref string) (string, string, error) {
	registry, partyID, ok := strings.Cut(ref, lookupSeparator)
	if !ok || registry == "" || partyID == "" {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedLookupRef, ref)
	}

	return registry, partyID, nil
}
