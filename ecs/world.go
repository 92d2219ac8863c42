package ecs

import "reflect"

// World is the entity/component store: an entity pool plus one store per
// component type. It is not internally synchronized; the schedule layer is
// responsible for ensuring that concurrent systems never write and touch the
// same component type (see package schedule).
type World struct {
	pool   *EntityPool
	stores map[reflect.Type]*store
}

func NewWorld() *World {
	return &World{
		pool:   NewEntityPool(),
		stores: make(map[reflect.Type]*store, 16),
	}
}

// Pool exposes the entity pool, mainly for tests.
func (w *World) Pool() *EntityPool { return w.pool }

// Spawn creates a live entity carrying the given component bundle.
// Components are passed by value; pass *T to share an existing allocation.
func (w *World) Spawn(comps ...any) EntityID {
	id := w.pool.Create()
	for _, c := range comps {
		w.setComponent(id, c)
	}
	return id
}

// ReserveEntity allocates an entity identifier without materializing the
// entity. The ID is a valid Insert/Remove target; the first structural touch
// makes it live.
func (w *World) ReserveEntity() EntityID {
	return w.pool.Reserve()
}

// ReserveEntities allocates count fresh identifiers.
func (w *World) ReserveEntities(count int) []EntityID {
	return w.pool.ReserveN(count)
}

// Alive reports whether the entity is live (reserved IDs are not).
func (w *World) Alive(id EntityID) bool {
	return w.pool.Alive(id)
}

// Len returns the number of live entities.
func (w *World) Len() int { return w.pool.Len() }

// Insert adds components to an entity. A reserved ID is materialized first.
func (w *World) Insert(id EntityID, comps ...any) error {
	if err := w.ensureLive(id); err != nil {
		return err
	}
	for _, c := range comps {
		w.setComponent(id, c)
	}
	return nil
}

// RemoveType removes the component of the given type from an entity. A
// reserved ID is materialized first, mirroring Insert, so command buffers may
// target reservations in any order.
func (w *World) RemoveType(id EntityID, typ reflect.Type) error {
	if err := w.ensureLive(id); err != nil {
		return err
	}
	s, ok := w.stores[typ]
	if !ok || !s.has(id) {
		return &MissingComponentError{Entity: id, Component: typ}
	}
	s.remove(id)
	return nil
}

// Has reports whether the entity is live and carries the component type.
func (w *World) Has(id EntityID, typ reflect.Type) bool {
	if !w.pool.Alive(id) {
		return false
	}
	s, ok := w.stores[typ]
	return ok && s.has(id)
}

// GetRaw returns the boxed *T component pointer for the given type.
func (w *World) GetRaw(id EntityID, typ reflect.Type) (any, error) {
	if !w.pool.Alive(id) {
		return nil, &NoSuchEntityError{Entity: id}
	}
	s, ok := w.stores[typ]
	if !ok {
		return nil, &MissingComponentError{Entity: id, Component: typ}
	}
	c, ok := s.get(id)
	if !ok {
		return nil, &MissingComponentError{Entity: id, Component: typ}
	}
	return c, nil
}

// Destroy removes an entity and all of its components. Destroying a stale or
// unknown ID is a no-op.
func (w *World) Destroy(id EntityID) {
	if !w.pool.Alive(id) && !w.pool.Reserved(id) {
		return
	}
	for _, s := range w.stores {
		s.remove(id)
	}
	w.pool.Destroy(id)
}

// EachEntity visits every live entity in ascending index order.
func (w *World) EachEntity(fn func(EntityID)) {
	w.pool.EachAlive(fn)
}

// EachMatching visits every live entity carrying all of the given component
// types, in ascending index order. It iterates the smallest store and checks
// the rest. An empty type list matches every live entity.
func (w *World) EachMatching(types []reflect.Type, fn func(EntityID)) {
	if len(types) == 0 {
		w.pool.EachAlive(fn)
		return
	}

	var smallest *store
	rest := make([]*store, 0, len(types)-1)
	for _, t := range types {
		s, ok := w.stores[t]
		if !ok {
			return // type never stored: nothing can match
		}
		if smallest == nil || s.len() < smallest.len() {
			if smallest != nil {
				rest = append(rest, smallest)
			}
			smallest = s
		} else {
			rest = append(rest, s)
		}
	}

outer:
	for _, id := range sortedIDs(smallest) {
		if !w.pool.Alive(id) {
			continue
		}
		for _, s := range rest {
			if !s.has(id) {
				continue outer
			}
		}
		fn(id)
	}
}

func (w *World) ensureLive(id EntityID) error {
	if w.pool.Alive(id) {
		return nil
	}
	if w.pool.Materialize(id) {
		return nil
	}
	return &NoSuchEntityError{Entity: id}
}

func (w *World) setComponent(id EntityID, comp any) {
	t := reflect.TypeOf(comp)
	if t.Kind() == reflect.Ptr {
		s := w.storeFor(t.Elem())
		s.setPtr(id, comp)
		return
	}
	w.storeFor(t).set(id, comp)
}

func (w *World) storeFor(typ reflect.Type) *store {
	s, ok := w.stores[typ]
	if !ok {
		s = newStore(typ)
		w.stores[typ] = s
	}
	return s
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Get returns a pointer to the T component of an entity, distinguishing
// "no such entity" from "entity lacks T".
func Get[T any](w *World, id EntityID) (*T, error) {
	c, err := w.GetRaw(id, typeOf[T]())
	if err != nil {
		return nil, err
	}
	return c.(*T), nil
}

// Set adds or replaces the T component on an entity.
func Set[T any](w *World, id EntityID, comp T) error {
	return w.Insert(id, comp)
}

// Remove removes the T component from an entity.
func Remove[T any](w *World, id EntityID) error {
	return w.RemoveType(id, typeOf[T]())
}
