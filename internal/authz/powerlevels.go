package authz

import (
	"github.com/roach88/stateres/internal/ir"
)

// checkPowerLevels enforces that a sender can only grant or revoke power up
// to their own level, and cannot demote peers at or above it.
func checkPowerLevels(c *authContext) (string, error) {
	next, err := ir.DecodePowerLevels(c.candidate.Content(), integerOnly(c.rules))
	if err != nil {
		return "power levels content is malformed", nil
	}
	if c.powerLevels == nil {
		return "", nil
	}

	cur := c.levels
	sender := c.candidate.Sender()
	senderLevel := c.userLevel(sender)

	scalars := []struct {
		name     string
		old, new int64
	}{
		{"ban", cur.Ban, next.Ban},
		{"invite", cur.Invite, next.Invite},
		{"kick", cur.Kick, next.Kick},
		{"redact", cur.Redact, next.Redact},
		{"state_default", cur.StateDefault, next.StateDefault},
		{"events_default", cur.EventsDefault, next.EventsDefault},
		{"users_default", cur.UsersDefault, next.UsersDefault},
	}
	for _, f := range scalars {
		if f.old != f.new && (f.old > senderLevel || f.new > senderLevel) {
			return "cannot change " + f.name + " beyond own level", nil
		}
	}

	if reason := checkLevelMap("events", cur.Events, next.Events, senderLevel); reason != "" {
		return reason, nil
	}
	if reason := checkLevelMap("notifications", cur.Notifications, next.Notifications, senderLevel); reason != "" {
		return reason, nil
	}
	if reason := checkLevelMap("users", cur.Users, next.Users, senderLevel); reason != "" {
		return reason, nil
	}

	for user, old := range cur.Users {
		if user == sender {
			continue
		}
		if n, ok := next.Users[user]; ok && n == old {
			continue
		}
		if old >= senderLevel {
			return "cannot change the level of a user at or above own level", nil
		}
	}
	return "", nil
}

// checkLevelMap rejects added, removed or changed entries whose old or new
// value exceeds the sender's level.
func checkLevelMap(name string, cur, next map[string]int64, senderLevel int64) string {
	for k, old := range cur {
		n, ok := next[k]
		if ok && n == old {
			continue
		}
		if old > senderLevel || (ok && n > senderLevel) {
			return "cannot change " + name + " entry " + k + " beyond own level"
		}
	}
	for k, n := range next {
		if _, ok := cur[k]; ok {
			continue
		}
		if n > senderLevel {
			return "cannot add " + name + " entry " + k + " beyond own level"
		}
	}
	return ""
}
