// Package timeline drives state resolution over a room's event DAG.
//
// Three drivers compute the current state of a room from a set of PDUs:
//
//   - ResolveIteratively walks prev_events forward from the create event,
//     computing the state before and after every event the way a server that
//     took part in the room would, then resolves the states at the leaves.
//   - ResolveBatch resolves a batch of PDUs against the result of a previous
//     batch, as a server does when it receives events in bursts.
//   - ResolveAtomic resolves every PDU in one call.
//
// For a well-formed room all three must agree; the scenario harness checks
// exactly that.
package timeline
