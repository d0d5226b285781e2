// Package stateres resolves divergent room states into one.
//
// Servers in a federation receive events in different orders and may hold
// different views of a room's state. Resolve takes those views (StateMaps)
// together with the auth chains they depend on and deterministically
// computes a single state that every server computing from the same events
// agrees on.
//
// ALGORITHM:
//
//  1. Conflict analysis: slots on which every input agrees are unconflicted.
//     All values of the remaining slots, plus every event found in some but
//     not all auth chains (the auth difference), form the full conflicted set.
//  2. Classification: authority events (create, power levels, join rules,
//     and memberships that remove another user) are separated from ordinary
//     events.
//  3. Authority ordering: a topological sort over auth-chain reachability,
//     ties broken by sender power (higher first), origin timestamp, then
//     event ID.
//  4. First merge: authority events are checked one by one against the
//     evolving state by the Authorizer, starting from the unconflicted state.
//  5. Mainline: the chain of power-levels events behind the winning one.
//     Ordinary events are ordered by the mainline position they descend
//     from, then timestamp, then event ID.
//  6. Second merge: ordinary events are checked the same way.
//  7. The unconflicted slots are reapplied so agreed values always win.
//
// DETERMINISM:
//
// Every step works on sets and sorts by total orders, so the result depends
// only on the events, the fetch results and the Authorizer, never on the
// order of the input snapshots.
//
// CAPABILITIES:
//
// The package never constructs events. Callers provide a Fetcher for event
// lookups, an Authorizer implementing the room version's authorization rules
// and a PowerLevelLookup. Failures of these capabilities are propagated,
// never retried.
package stateres
