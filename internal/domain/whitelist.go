package domain

import (
	"encoding/json"
	"errors"
)

// MaxWhitelistSize is the maximum number of distinct buyers on one swap.
const MaxWhitelistSize = 10

// ErrWhitelistTooLarge is returned when more than MaxWhitelistSize distinct buyers are given.
var ErrWhitelistTooLarge = errors.New("whitelist exceeds maximum size")

// Whitelist is an immutable set of buyer identities.
// Members keep first-insertion order so event snapshots are stable.
type Whitelist struct {
	members []Identity
}

// NewWhitelist builds a set from ids. Duplicates and zero identities are dropped.
func NewWhitelist(ids ...Identity) (Whitelist, error) {
	seen := make(map[Identity]struct{}, len(ids))
	members := make([]Identity, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) > MaxWhitelistSize {
		return Whitelist{}, ErrWhitelistTooLarge
	}
	return Whitelist{members: members}, nil
}

// Contains reports whether id is a member.
func (w Whitelist) Contains(id Identity) bool {
	if id.IsZero() {
		return false
	}
	for _, m := range w.members {
		if m == id {
			return true
		}
	}
	return false
}

// Len returns the number of members.
func (w Whitelist) Len() int {
	return len(w.members)
}

// Members returns a copy of the members in insertion order.
func (w Whitelist) Members() []Identity {
	out := make([]Identity, len(w.members))
	copy(out, w.members)
	return out
}

// MarshalJSON encodes the set as an array of base58 strings.
func (w Whitelist) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Members())
}

// UnmarshalJSON decodes an array of base58 strings.
func (w *Whitelist) UnmarshalJSON(data []byte) error {
	var ids []Identity
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	parsed, err := NewWhitelist(ids...)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
