package stateres

import (
	"cmp"
	"context"
	"slices"

	"github.com/roach88/stateres/internal/ir"
)

// buildMainline follows power-levels auth links back from the resolved
// power-levels event. The result is oldest first; an empty mainline means
// the state has no power-levels event.
func (r *run) buildMainline(ctx context.Context, state StateMap) ([]ir.EventID, error) {
	head, ok := state.Get(ir.TypePowerLevels, "")
	if !ok {
		return nil, nil
	}

	var mainline []ir.EventID
	visited := make(EventSet)
	for cur := head; cur != ""; {
		if visited.Has(cur) {
			return nil, NewCycleError(append(mainline, cur))
		}
		visited.Add(cur)
		mainline = append(mainline, cur)

		ev, err := r.fetch.Fetch(ctx, cur)
		if err != nil {
			return nil, err
		}
		cur, err = r.powerLevelsParent(ctx, ev)
		if err != nil {
			return nil, err
		}
	}

	slices.Reverse(mainline)
	return mainline, nil
}

// powerLevelsParent returns the first power-levels event among ev's auth
// events, or "" when there is none.
func (r *run) powerLevelsParent(ctx context.Context, ev Event) (ir.EventID, error) {
	for _, id := range ev.AuthEvents() {
		aev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return "", err
		}
		if isStateOfType(aev, ir.TypePowerLevels) {
			return id, nil
		}
	}
	return "", nil
}

// mainlinePositions assigns each event the 1-based index of the closest
// mainline member it descends from through power-levels links. Events that
// reach no mainline member get position 0 and sort first. Positions are
// memoised across events of the run.
type mainlinePositions struct {
	index map[ir.EventID]int
	memo  map[ir.EventID]int
}

func newMainlinePositions(mainline []ir.EventID) *mainlinePositions {
	index := make(map[ir.EventID]int, len(mainline))
	for i, id := range mainline {
		index[id] = i + 1
	}
	return &mainlinePositions{index: index, memo: make(map[ir.EventID]int)}
}

func (r *run) mainlinePosition(ctx context.Context, mp *mainlinePositions, ev Event) (int, error) {
	var path []ir.EventID
	visited := make(EventSet)
	pos := 0

	for cur := ev.EventID(); cur != ""; {
		if p, ok := mp.index[cur]; ok {
			pos = p
			break
		}
		if p, ok := mp.memo[cur]; ok {
			pos = p
			break
		}
		if visited.Has(cur) {
			return 0, NewCycleError(append(path, cur))
		}
		visited.Add(cur)
		path = append(path, cur)

		curEv, err := r.fetch.Fetch(ctx, cur)
		if err != nil {
			return 0, err
		}
		cur, err = r.powerLevelsParent(ctx, curEv)
		if err != nil {
			return 0, err
		}
	}

	for _, id := range path {
		mp.memo[id] = pos
	}
	return pos, nil
}

// sortOrdinary orders ordinary events by (mainline position, origin
// timestamp, event ID).
func (r *run) sortOrdinary(ctx context.Context, ids []ir.EventID, mainline []ir.EventID) ([]ir.EventID, error) {
	mp := newMainlinePositions(mainline)

	type sortKey struct {
		id  ir.EventID
		pos int
		ts  int64
	}
	keys := make([]sortKey, 0, len(ids))
	for _, id := range ids {
		ev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		pos, err := r.mainlinePosition(ctx, mp, ev)
		if err != nil {
			return nil, err
		}
		keys = append(keys, sortKey{id: id, pos: pos, ts: ev.OriginServerTS()})
	}

	slices.SortFunc(keys, func(a, b sortKey) int {
		if c := cmp.Compare(a.pos, b.pos); c != 0 {
			return c
		}
		if c := cmp.Compare(a.ts, b.ts); c != 0 {
			return c
		}
		return cmp.Compare(a.id, b.id)
	})

	order := make([]ir.EventID, len(keys))
	for i, k := range keys {
		order[i] = k.id
	}
	return order, nil
}
