package stateres

import (
	"cmp"
	"container/heap"
	"context"

	"github.com/roach88/stateres/internal/ir"
)

// orderKey is the tie-break tuple for events whose auth-graph order is
// undetermined: higher sender power first, then older, then smaller ID.
type orderKey struct {
	id    ir.EventID
	power int64
	ts    int64
}

func compareOrderKeys(a, b orderKey) int {
	if c := cmp.Compare(b.power, a.power); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ts, b.ts); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// readyQueue is a min-heap of events whose authorizers are all placed.
type readyQueue []orderKey

func (q readyQueue) Len() int           { return len(q) }
func (q readyQueue) Less(i, j int) bool { return compareOrderKeys(q[i], q[j]) < 0 }
func (q readyQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)        { *q = append(*q, x.(orderKey)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// sortAuthority orders authority events so every event comes after the
// events in its auth chain. Graph edges are transitive reachability through
// auth_events restricted to the given set, so the order is the same whether
// or not intermediate ordinary events are part of the run.
func (r *run) sortAuthority(ctx context.Context, ids []ir.EventID) ([]ir.EventID, error) {
	nodes := NewEventSet(ids...)
	keys := make(map[ir.EventID]orderKey, len(ids))
	indegree := make(map[ir.EventID]int, len(ids))
	dependents := make(map[ir.EventID][]ir.EventID, len(ids))

	for _, id := range ids {
		ev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return nil, err
		}
		chain, err := authChain(ctx, r.fetch, ev)
		if err != nil {
			return nil, err
		}
		for _, anc := range chain.Sorted() {
			if nodes.Has(anc) {
				indegree[id]++
				dependents[anc] = append(dependents[anc], id)
			}
		}

		power, err := r.senderPower(ctx, ev)
		if err != nil {
			return nil, err
		}
		keys[id] = orderKey{id: id, power: power, ts: ev.OriginServerTS()}
	}

	ready := make(readyQueue, 0, len(ids))
	for _, id := range ids {
		if indegree[id] == 0 {
			ready = append(ready, keys[id])
		}
	}
	heap.Init(&ready)

	order := make([]ir.EventID, 0, len(ids))
	for ready.Len() > 0 {
		next := heap.Pop(&ready).(orderKey)
		order = append(order, next.id)
		for _, dep := range dependents[next.id] {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(&ready, keys[dep])
			}
		}
	}

	if len(order) < len(ids) {
		placed := NewEventSet(order...)
		remaining := make(EventSet)
		for _, id := range ids {
			if !placed.Has(id) {
				remaining.Add(id)
			}
		}
		return nil, NewCycleError(remaining.Sorted())
	}
	return order, nil
}

// senderPower reads the sender's level from the power-levels and create
// events among ev's own auth events.
func (r *run) senderPower(ctx context.Context, ev Event) (int64, error) {
	var powerLevels, create Event
	for _, id := range ev.AuthEvents() {
		aev, err := r.fetch.Fetch(ctx, id)
		if err != nil {
			return 0, err
		}
		switch {
		case isStateOfType(aev, ir.TypePowerLevels):
			powerLevels = aev
		case isStateOfType(aev, ir.TypeCreate):
			create = aev
		}
	}
	return r.powers.UserPowerLevel(r.rules, powerLevels, create, ev.Sender()), nil
}
