package ecs

import "sort"

// sortedIDs snapshots a store's entity IDs in ascending index order. Map
// iteration order is randomized per run; queries visit entities in a stable
// order so repeated runs and different execution modes converge on the same
// store state.
func sortedIDs(s *store) []EntityID {
	ids := make([]EntityID, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Index() < ids[j].Index() })
	return ids
}

// Each visits every live entity carrying component T, in ascending index order.
func Each[T any](w *World, fn func(EntityID, *T)) {
	s, ok := w.stores[typeOf[T]()]
	if !ok {
		return
	}
	for _, id := range sortedIDs(s) {
		if w.pool.Alive(id) {
			fn(id, s.data[id].(*T))
		}
	}
}

// Each2 visits every live entity that has both component A and B, in
// ascending index order. It iterates over the smaller store and checks the
// larger one.
func Each2[A, B any](w *World, fn func(EntityID, *A, *B)) {
	sa, oka := w.stores[typeOf[A]()]
	sb, okb := w.stores[typeOf[B]()]
	if !oka || !okb {
		return
	}
	smallest := sa
	if sb.len() < sa.len() {
		smallest = sb
	}
	for _, id := range sortedIDs(smallest) {
		a, oka := sa.data[id]
		b, okb := sb.data[id]
		if oka && okb && w.pool.Alive(id) {
			fn(id, a.(*A), b.(*B))
		}
	}
}

// Each3 visits every live entity that has components A, B, and C, in
// ascending index order.
func Each3[A, B, C any](w *World, fn func(EntityID, *A, *B, *C)) {
	sa, oka := w.stores[typeOf[A]()]
	sb, okb := w.stores[typeOf[B]()]
	sc, okc := w.stores[typeOf[C]()]
	if !oka || !okb || !okc {
		return
	}

	smallest := sa
	if sb.len() < smallest.len() {
		smallest = sb
	}
	if sc.len() < smallest.len() {
		smallest = sc
	}

	for _, id := range sortedIDs(smallest) {
		a, oka := sa.data[id]
		b, okb := sb.data[id]
		c, okc := sc.data[id]
		if oka && okb && okc && w.pool.Alive(id) {
			fn(id, a.(*A), b.(*B), c.(*C))
		}
	}
}
