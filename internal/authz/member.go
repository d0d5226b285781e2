package authz

import (
	"context"

	"github.com/roach88/stateres/internal/ir"
)

// checkMember applies the membership transition rules.
func checkMember(ctx context.Context, c *authContext) (string, error) {
	ev := c.candidate
	sk := ev.StateKey()
	if sk == nil {
		return "membership event without state key", nil
	}
	target := *sk

	content, err := ir.DecodeMember(ev.Content())
	if err != nil {
		return "membership content is malformed", nil
	}

	senderMembership, err := c.membership(ctx, ev.Sender())
	if err != nil {
		return "", err
	}
	targetMembership, err := c.membership(ctx, target)
	if err != nil {
		return "", err
	}

	switch content.Membership {
	case ir.MembershipJoin:
		return checkJoin(ctx, c, target, content, targetMembership)

	case ir.MembershipInvite:
		if senderMembership != ir.MembershipJoin {
			return "inviter is not joined", nil
		}
		if targetMembership == ir.MembershipJoin || targetMembership == ir.MembershipBan {
			return "invitee is joined or banned", nil
		}
		if c.userLevel(ev.Sender()) < c.levels.Invite {
			return "sender cannot invite", nil
		}
		return "", nil

	case ir.MembershipLeave:
		if ev.Sender() == target {
			switch targetMembership {
			case ir.MembershipJoin, ir.MembershipInvite:
				return "", nil
			case ir.MembershipKnock:
				if c.rules != nil && c.rules.Knocking {
					return "", nil
				}
			}
			return "user has nothing to leave", nil
		}
		if senderMembership != ir.MembershipJoin {
			return "kicker is not joined", nil
		}
		senderLevel := c.userLevel(ev.Sender())
		if targetMembership == ir.MembershipBan && senderLevel < c.levels.Ban {
			return "sender cannot unban", nil
		}
		if senderLevel < c.levels.Kick || c.userLevel(target) >= senderLevel {
			return "sender cannot kick target", nil
		}
		return "", nil

	case ir.MembershipBan:
		if senderMembership != ir.MembershipJoin {
			return "banner is not joined", nil
		}
		senderLevel := c.userLevel(ev.Sender())
		if senderLevel < c.levels.Ban || c.userLevel(target) >= senderLevel {
			return "sender cannot ban target", nil
		}
		return "", nil

	case ir.MembershipKnock:
		if c.rules == nil || !c.rules.Knocking {
			return "knocking is not supported in this room version", nil
		}
		rule, err := c.joinRule(ctx)
		if err != nil {
			return "", err
		}
		if rule != ir.JoinRuleKnock && !(rule == ir.JoinRuleKnockRestricted && c.rules.KnockRestrictedJoinRule) {
			return "join rule does not allow knocking", nil
		}
		if ev.Sender() != target {
			return "cannot knock on behalf of another user", nil
		}
		switch targetMembership {
		case ir.MembershipBan, ir.MembershipInvite, ir.MembershipJoin:
			return "user cannot knock from current membership", nil
		}
		return "", nil
	}

	return "unknown membership " + content.Membership, nil
}

func checkJoin(ctx context.Context, c *authContext, target string, content *ir.MemberContent, targetMembership string) (string, error) {
	ev := c.candidate

	// The creator's first join directly follows the create event.
	prev := ev.PrevEvents()
	if len(prev) == 1 && prev[0] == c.create.EventID() && target == creatorOf(c.rules, c.create) {
		return "", nil
	}

	if ev.Sender() != target {
		return "cannot join on behalf of another user", nil
	}
	if targetMembership == ir.MembershipBan {
		return "user is banned", nil
	}

	rule, err := c.joinRule(ctx)
	if err != nil {
		return "", err
	}

	switch rule {
	case ir.JoinRulePublic:
		return "", nil

	case ir.JoinRuleInvite, ir.JoinRuleKnock:
		if rule == ir.JoinRuleKnock && (c.rules == nil || !c.rules.Knocking) {
			return "join rule not supported in this room version", nil
		}
		if targetMembership == ir.MembershipJoin || targetMembership == ir.MembershipInvite {
			return "", nil
		}
		return "user is not invited", nil

	case ir.JoinRuleRestricted, ir.JoinRuleKnockRestricted:
		if rule == ir.JoinRuleRestricted && (c.rules == nil || !c.rules.RestrictedJoinRule) {
			return "join rule not supported in this room version", nil
		}
		if rule == ir.JoinRuleKnockRestricted && (c.rules == nil || !c.rules.KnockRestrictedJoinRule) {
			return "join rule not supported in this room version", nil
		}
		if targetMembership == ir.MembershipJoin || targetMembership == ir.MembershipInvite {
			return "", nil
		}
		via := content.JoinAuthorisedViaUsersServer
		if via == "" {
			return "restricted join without an authorising user", nil
		}
		viaMembership, err := c.membership(ctx, via)
		if err != nil {
			return "", err
		}
		if viaMembership != ir.MembershipJoin || c.userLevel(via) < c.levels.Invite {
			return "authorising user cannot invite", nil
		}
		return "", nil
	}

	return "join rule does not allow joining", nil
}
