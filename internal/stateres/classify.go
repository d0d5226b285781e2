package stateres

import (
	"github.com/roach88/stateres/internal/ir"
)

// IsPowerEvent reports whether an event belongs to the authority class:
// create, power levels and join rules with an empty state key, and
// memberships of leave or ban applied by someone other than the target.
// Authority events are resolved before all others.
func IsPowerEvent(ev Event) bool {
	sk := ev.StateKey()
	if sk == nil {
		return false
	}

	switch ev.Type() {
	case ir.TypeCreate, ir.TypePowerLevels, ir.TypeJoinRules:
		return *sk == ""
	case ir.TypeMember:
		if *sk == ev.Sender() {
			return false
		}
		m, err := ir.DecodeMember(ev.Content())
		if err != nil {
			return false
		}
		return m.Membership == ir.MembershipLeave || m.Membership == ir.MembershipBan
	}
	return false
}
