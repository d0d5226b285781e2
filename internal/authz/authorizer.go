package authz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/roach88/stateres/internal/ir"
	"github.com/roach88/stateres/internal/rules"
	"github.com/roach88/stateres/internal/stateres"
)

// Authorizer implements stateres.Authorizer with the room authorization
// rules.
type Authorizer struct {
	logger *slog.Logger
}

var _ stateres.Authorizer = (*Authorizer)(nil)

// Option configures an Authorizer.
type Option func(*Authorizer)

// WithLogger sets the logger that receives rejection reasons at debug level.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authorizer) {
		a.logger = l
	}
}

// New creates an Authorizer.
func New(opts ...Option) *Authorizer {
	a := &Authorizer{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check decides whether candidate is allowed given the state before it.
func (a *Authorizer) Check(ctx context.Context, rs *rules.Rules, candidate stateres.Event, state stateres.StateLookup) (stateres.Verdict, error) {
	reason, err := a.check(ctx, rs, candidate, state)
	if err != nil {
		return stateres.Reject, err
	}
	if reason != "" {
		a.logger.Debug("event not authorized",
			"event_id", candidate.EventID(),
			"type", candidate.Type(),
			"sender", candidate.Sender(),
			"reason", reason)
		return stateres.Reject, nil
	}
	return stateres.Accept, nil
}

// Explain returns why candidate would be rejected, or "" when it is allowed.
func (a *Authorizer) Explain(ctx context.Context, rs *rules.Rules, candidate stateres.Event, state stateres.StateLookup) (string, error) {
	return a.check(ctx, rs, candidate, state)
}

// authContext is the state an authorization decision reads.
type authContext struct {
	rules       *rules.Rules
	candidate   stateres.Event
	state       stateres.StateLookup
	create      stateres.Event
	powerLevels stateres.Event
	levels      *ir.PowerLevelsContent
}

func (c *authContext) userLevel(user string) int64 {
	return c.levels.UserLevel(user)
}

func (c *authContext) membership(ctx context.Context, user string) (string, error) {
	ev, err := c.state.StateEvent(ctx, ir.TypeMember, user)
	if err != nil || ev == nil {
		return "", err
	}
	m, err := ir.DecodeMember(ev.Content())
	if err != nil {
		return "", nil
	}
	return m.Membership, nil
}

func (c *authContext) joinRule(ctx context.Context) (string, error) {
	ev, err := c.state.StateEvent(ctx, ir.TypeJoinRules, "")
	if err != nil {
		return "", err
	}
	if ev == nil {
		return ir.JoinRuleInvite, nil
	}
	jr, err := ir.DecodeJoinRules(ev.Content())
	if err != nil {
		return ir.JoinRuleInvite, nil
	}
	return jr.JoinRule, nil
}

// check returns a rejection reason, "" when the event is allowed.
func (a *Authorizer) check(ctx context.Context, rs *rules.Rules, ev stateres.Event, state stateres.StateLookup) (string, error) {
	if ev.Type() == ir.TypeCreate {
		return checkCreate(ev), nil
	}

	create, err := state.StateEvent(ctx, ir.TypeCreate, "")
	if err != nil {
		return "", err
	}
	if create == nil {
		return "no create event in room state", nil
	}
	if create.RoomID() != "" && ev.RoomID() != "" && create.RoomID() != ev.RoomID() {
		return "create event belongs to another room", nil
	}

	powerLevels, err := state.StateEvent(ctx, ir.TypePowerLevels, "")
	if err != nil {
		return "", err
	}
	lv, err := levels(rs, powerLevels, create)
	if err != nil {
		return "current power levels are malformed", nil
	}

	c := &authContext{
		rules:       rs,
		candidate:   ev,
		state:       state,
		create:      create,
		powerLevels: powerLevels,
		levels:      lv,
	}

	if ev.Type() == ir.TypeMember {
		return checkMember(ctx, c)
	}

	senderMembership, err := c.membership(ctx, ev.Sender())
	if err != nil {
		return "", err
	}
	if senderMembership != ir.MembershipJoin {
		return "sender is not joined", nil
	}

	if ev.Type() == ir.TypeThirdPartyInvite {
		if c.userLevel(ev.Sender()) < c.levels.Invite {
			return "sender cannot invite", nil
		}
		return "", nil
	}

	isState := ev.StateKey() != nil
	if c.userLevel(ev.Sender()) < c.levels.EventLevel(ev.Type(), isState) {
		return "sender power level too low for event type", nil
	}

	if sk := ev.StateKey(); sk != nil && strings.HasPrefix(*sk, "@") && *sk != ev.Sender() {
		return "state key is owned by another user", nil
	}

	if ev.Type() == ir.TypePowerLevels {
		return checkPowerLevels(c)
	}
	return "", nil
}

func checkCreate(ev stateres.Event) string {
	if len(ev.PrevEvents()) > 0 {
		return "create event has previous events"
	}
	if len(ev.AuthEvents()) > 0 {
		return "create event has auth events"
	}
	if sk := ev.StateKey(); sk == nil || *sk != "" {
		return "create event must have an empty state key"
	}
	return ""
}
