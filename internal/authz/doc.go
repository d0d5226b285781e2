// Package authz is a reference implementation of the room authorization
// rules that state resolution consults.
//
// It covers the state-dependent rules: the create event, membership
// transitions under each join rule, power level requirements, changes to
// the power levels themselves and user-owned state keys. Signature, size and
// federation checks belong to event validation and are out of scope; events
// that failed them reach the resolver already marked rejected.
//
// Rule variations between room versions (knocking, restricted joins,
// integer-only power levels, creator derivation) come from rules.Rules.
package authz
