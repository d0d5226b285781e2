package authz

import (
	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/stateres"
)

// Powers implements stateres.PowerLevelLookup.
type Powers struct{}

var _ stateres.PowerLevelLookup = Powers{}

// UserPowerLevel returns the level of user under powerLevels. Without a
// usable power levels event the room creator has level 100 and everyone
// else 0.
func (Powers) UserPowerLevel(rs *rules.Rules, powerLevels, create stateres.Event, user string) int64 {
	if powerLevels != nil {
		if c, err := ir.DecodePowerLevels(powerLevels.Content(), integerOnly(rs)); err == nil {
			return c.UserLevel(user)
		}
	}
	if create != nil && creatorOf(rs, create) == user {
		return ir.DefaultCreatorLevel
	}
	return 0
}

// creatorOf returns the room creator. Newer room versions take it from the
// create event's sender; older ones from its content.
func creatorOf(rs *rules.Rules, create stateres.Event) string {
	if rs != nil && rs.CreatorFromSender {
		return create.Sender()
	}
	c, err := ir.DecodeCreate(create.Content())
	if err != nil || c.Creator == "" {
		return create.Sender()
	}
	return c.Creator
}

func integerOnly(rs *rules.Rules) bool {
	return rs != nil && rs.IntegerPowerLevels
}

// levels returns the effective power levels content. A room without a power
// levels event behaves as if every field had its default, state events need
// no power and only the creator holds any.
func levels(rs *rules.Rules, powerLevels, create stateres.Event) (*ir.PowerLevelsContent, error) {
	if powerLevels != nil {
		return ir.DecodePowerLevels(powerLevels.Content(), integerOnly(rs))
	}
	c, err := ir.DecodePowerLevels(nil, false)
	if err != nil {
		return nil, err
	}
	c.StateDefault = 0
	if create != nil {
		c.Users[creatorOf(rs, create)] = ir.DefaultCreatorLevel
	}
	return c, nil
}
