package stateres

import (
	"github.com/roach88/stateres/internal/ir"
)

// SeparateConflicted splits the slots of several snapshots.
//
// A slot is unconflicted when every snapshot holds it with the same event.
// Any other slot (differing values, or present in only some snapshots) is
// conflicted and maps to the set of distinct events seen for it.
func SeparateConflicted(snapshots []StateMap) (StateMap, map[ir.StateKey]EventSet) {
	unconflicted := make(StateMap)
	conflicted := make(map[ir.StateKey]EventSet)

	seen := make(map[ir.StateKey]EventSet)
	present := make(map[ir.StateKey]int)
	for _, snap := range snapshots {
		for slot, id := range snap {
			ids, ok := seen[slot]
			if !ok {
				ids = make(EventSet)
				seen[slot] = ids
			}
			ids.Add(id)
			present[slot]++
		}
	}

	for slot, ids := range seen {
		if present[slot] == len(snapshots) && len(ids) == 1 {
			for id := range ids {
				unconflicted[slot] = id
			}
			continue
		}
		conflicted[slot] = ids
	}
	return unconflicted, conflicted
}

// AuthDifference returns the events present in some but not all chains.
func AuthDifference(chains []EventSet) EventSet {
	diff := make(EventSet)
	if len(chains) == 0 {
		return diff
	}

	counts := make(map[ir.EventID]int)
	for _, chain := range chains {
		for id := range chain {
			counts[id]++
		}
	}
	for id, n := range counts {
		if n < len(chains) {
			diff.Add(id)
		}
	}
	return diff
}
