package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// CreateContent is the content of an m.room.create event.
type CreateContent struct {
	Creator     string `json:"creator,omitempty"`
	RoomVersion string `json:"room_version,omitempty"`
}

// MemberContent is the content of an m.room.member event.
type MemberContent struct {
	Membership                   string `json:"membership"`
	JoinAuthorisedViaUsersServer string `json:"join_authorised_via_users_server,omitempty"`
}

// JoinRulesContent is the content of an m.room.join_rules event.
type JoinRulesContent struct {
	JoinRule string `json:"join_rule"`
}

// Power level defaults applied when a field is absent from the content.
const (
	DefaultBanLevel     = 50
	DefaultKickLevel    = 50
	DefaultRedactLevel  = 50
	DefaultInviteLevel  = 0
	DefaultStateLevel   = 50
	DefaultEventsLevel  = 0
	DefaultUsersLevel   = 0
	DefaultCreatorLevel = 100
)

// PowerLevelsContent is the parsed content of an m.room.power_levels event.
type PowerLevelsContent struct {
	Ban           int64
	Invite        int64
	Kick          int64
	Redact        int64
	StateDefault  int64
	EventsDefault int64
	UsersDefault  int64
	Events        map[string]int64
	Users         map[string]int64
	Notifications map[string]int64
}

// UserLevel returns the power level of a user, falling back to users_default.
func (c *PowerLevelsContent) UserLevel(user string) int64 {
	if level, ok := c.Users[user]; ok {
		return level
	}
	return c.UsersDefault
}

// EventLevel returns the level required to send an event of the given type.
func (c *PowerLevelsContent) EventLevel(eventType string, isState bool) int64 {
	if level, ok := c.Events[eventType]; ok {
		return level
	}
	if isState {
		return c.StateDefault
	}
	return c.EventsDefault
}

// DecodeCreate parses m.room.create content.
func DecodeCreate(raw json.RawMessage) (*CreateContent, error) {
	var c CreateContent
	if err := decodeContent(raw, &c); err != nil {
		return nil, fmt.Errorf("decode create content: %w", err)
	}
	return &c, nil
}

// DecodeMember parses m.room.member content.
func DecodeMember(raw json.RawMessage) (*MemberContent, error) {
	var c MemberContent
	if err := decodeContent(raw, &c); err != nil {
		return nil, fmt.Errorf("decode member content: %w", err)
	}
	return &c, nil
}

// DecodeJoinRules parses m.room.join_rules content.
func DecodeJoinRules(raw json.RawMessage) (*JoinRulesContent, error) {
	var c JoinRulesContent
	if err := decodeContent(raw, &c); err != nil {
		return nil, fmt.Errorf("decode join rules content: %w", err)
	}
	return &c, nil
}

// DecodePowerLevels parses m.room.power_levels content.
//
// Older room versions accept levels written as decimal strings ("50"); when
// integerOnly is set, only JSON integers are accepted.
func DecodePowerLevels(raw json.RawMessage, integerOnly bool) (*PowerLevelsContent, error) {
	c := &PowerLevelsContent{
		Ban:           DefaultBanLevel,
		Invite:        DefaultInviteLevel,
		Kick:          DefaultKickLevel,
		Redact:        DefaultRedactLevel,
		StateDefault:  DefaultStateLevel,
		EventsDefault: DefaultEventsLevel,
		UsersDefault:  DefaultUsersLevel,
		Events:        map[string]int64{},
		Users:         map[string]int64{},
		Notifications: map[string]int64{},
	}

	var fields map[string]json.RawMessage
	if err := decodeContent(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode power levels content: %w", err)
	}

	scalars := map[string]*int64{
		"ban":            &c.Ban,
		"invite":         &c.Invite,
		"kick":           &c.Kick,
		"redact":         &c.Redact,
		"state_default":  &c.StateDefault,
		"events_default": &c.EventsDefault,
		"users_default":  &c.UsersDefault,
	}
	for name, dst := range scalars {
		v, ok := fields[name]
		if !ok {
			continue
		}
		level, err := parseLevel(v, integerOnly)
		if err != nil {
			return nil, fmt.Errorf("power levels %q: %w", name, err)
		}
		*dst = level
	}

	maps := map[string]map[string]int64{
		"events":        c.Events,
		"users":         c.Users,
		"notifications": c.Notifications,
	}
	for name, dst := range maps {
		v, ok := fields[name]
		if !ok {
			continue
		}
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(v, &entries); err != nil {
			return nil, fmt.Errorf("power levels %q: %w", name, err)
		}
		for k, entry := range entries {
			level, err := parseLevel(entry, integerOnly)
			if err != nil {
				return nil, fmt.Errorf("power levels %q[%q]: %w", name, k, err)
			}
			dst[k] = level
		}
	}

	return c, nil
}

// parseLevel reads a single power level value.
func parseLevel(raw json.RawMessage, integerOnly bool) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, err
	}

	switch val := v.(type) {
	case json.Number:
		n, err := strconv.ParseInt(val.String(), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %s", val)
		}
		return n, nil
	case string:
		if integerOnly {
			return 0, fmt.Errorf("string power level %q not allowed", val)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", val)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported power level value %T", v)
	}
}

func decodeContent(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	return json.Unmarshal(raw, dst)
}
