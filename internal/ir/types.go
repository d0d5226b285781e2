package ir

import "strings"

// EventID is an opaque, totally ordered event identifier.
// Ordering is by byte value, which is the final tie-break of every sort in
// state resolution.
type EventID string

// Event types that state resolution and the reference authorizer care about.
const (
	TypeCreate            = "m.room.create"
	TypePowerLevels       = "m.room.power_levels"
	TypeJoinRules         = "m.room.join_rules"
	TypeMember            = "m.room.member"
	TypeThirdPartyInvite  = "m.room.third_party_invite"
	TypeHistoryVisibility = "m.room.history_visibility"
	TypeName              = "m.room.name"
	TypeTopic             = "m.room.topic"
)

// Membership values carried in m.room.member content.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
	MembershipKnock  = "knock"
)

// Join rules carried in m.room.join_rules content.
const (
	JoinRulePublic          = "public"
	JoinRuleInvite          = "invite"
	JoinRuleKnock           = "knock"
	JoinRulePrivate         = "private"
	JoinRuleRestricted      = "restricted"
	JoinRuleKnockRestricted = "knock_restricted"
)

// StateKey identifies one slot of room state: an event type plus a state key.
// Two events with the same StateKey compete for the same slot.
type StateKey struct {
	Type     string `json:"type" yaml:"type"`
	StateKey string `json:"state_key" yaml:"state_key"`
}

// Compare orders slots by event type, then state key.
func (k StateKey) Compare(other StateKey) int {
	if c := strings.Compare(k.Type, other.Type); c != 0 {
		return c
	}
	return strings.Compare(k.StateKey, other.StateKey)
}

// String renders the slot as "type|state_key" for logs.
func (k StateKey) String() string {
	return k.Type + "|" + k.StateKey
}

// Slot is shorthand for constructing a StateKey.
func Slot(eventType, stateKey string) StateKey {
	return StateKey{Type: eventType, StateKey: stateKey}
}
