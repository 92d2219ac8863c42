package schedule

import (
	"reflect"

	"github.com/l1jgo/sched/access"
	"github.com/l1jgo/sched/ecs"
)

// SubWorld is a view over the world narrowed to a fixed descriptor set. Every
// query and component access is checked against the set before the underlying
// store is touched. The set is fixed at construction; narrowing via Split can
// only shrink it.
//
// Go cannot carry the descriptor set in the type the way the scheduler's
// conflict model assumes, so the set is an immutable runtime value and each
// access pays a constant-time containment check.
type SubWorld struct {
	world *ecs.World
	set   access.Set
}

// NewSubWorld wraps a world handle with a descriptor set. The schedule
// executor builds one per system from the system's declared accesses; callers
// may also build them directly.
func NewSubWorld(w *ecs.World, set access.Set) *SubWorld {
	return &SubWorld{world: w, set: set}
}

// NewEmptyWorld wraps a world with an empty descriptor set. It cannot access
// any components but can still enumerate entities.
func NewEmptyWorld(w *ecs.World) *SubWorld {
	return &SubWorld{world: w, set: access.NewSet()}
}

// Set returns the subworld's descriptor set.
func (sw *SubWorld) Set() access.Set { return sw.set }

// Has reports whether the subworld covers the single descriptor.
func (sw *SubWorld) Has(a access.Access) bool { return sw.set.Has(a) }

// HasAll reports whether the subworld covers the whole descriptor set.
func (sw *SubWorld) HasAll(q access.Set) bool { return q.SubsetOf(sw.set) }

// Split narrows the subworld to a smaller descriptor set over the same world
// handle. Fails with IncompatibleSubworldError if sub is not a subset of the
// current set; widening is not possible.
func (sw *SubWorld) Split(sub access.Set) (*SubWorld, error) {
	if !sub.SubsetOf(sw.set) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: sub}
	}
	return &SubWorld{world: sw.world, set: sub}, nil
}

// ToEmpty returns an empty view over the same world handle.
func (sw *SubWorld) ToEmpty() *SubWorld {
	return NewEmptyWorld(sw.world)
}

// ReserveEntities allocates count fresh entity identifiers. The IDs are valid
// Insert/Remove targets for a command buffer before the entities exist.
// Identifier allocation is not a component access, so no descriptor is
// required.
func (sw *SubWorld) ReserveEntities(count int) []ecs.EntityID {
	return sw.world.ReserveEntities(count)
}

// Query returns a cursor over every entity carrying all component types in q.
// The query's descriptor set must be a subset of the subworld's. An empty q
// matches every live entity, which requires no permission.
func (sw *SubWorld) Query(q access.Set) (*Query, error) {
	if !q.SubsetOf(sw.set) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: q}
	}
	return &Query{world: sw.world, q: q}, nil
}

// MustQuery is the panicking variant of Query for call sites that treat a
// permission mismatch as a programming error.
func (sw *SubWorld) MustQuery(q access.Set) *Query {
	query, err := sw.Query(q)
	if err != nil {
		panic(err)
	}
	return query
}

// QueryOne narrows a query to a single entity. The permission check runs
// before the entity lookup, so an incompatible set fails without touching the
// store.
func (sw *SubWorld) QueryOne(q access.Set, id ecs.EntityID) (*One, error) {
	if !q.SubsetOf(sw.set) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: q}
	}
	if !sw.world.Alive(id) {
		return nil, &ecs.NoSuchEntityError{Entity: id}
	}
	for _, t := range q.ComponentTypes() {
		if !sw.world.Has(id, t) {
			return nil, &ecs.MissingComponentError{Entity: id, Component: t}
		}
	}
	return &One{sw: sw, id: id}, nil
}

// Query is a lazy cursor over matching entities. Each call to Each restarts
// the iteration against the store's current state.
type Query struct {
	world *ecs.World
	q     access.Set
}

// Each visits every matching live entity.
func (q *Query) Each(fn func(ecs.EntityID)) {
	q.world.EachMatching(q.q.ComponentTypes(), fn)
}

// Count returns the number of matching entities.
func (q *Query) Count() int {
	n := 0
	q.Each(func(ecs.EntityID) { n++ })
	return n
}

// Entities collects the matching entity IDs.
func (q *Query) Entities() []ecs.EntityID {
	ids := make([]ecs.EntityID, 0, 16)
	q.Each(func(id ecs.EntityID) { ids = append(ids, id) })
	return ids
}

// One is a single-entity accessor produced by QueryOne.
type One struct {
	sw *SubWorld
	id ecs.EntityID
}

// Entity returns the accessed entity.
func (o *One) Entity() ecs.EntityID { return o.id }

// GetType returns the boxed *T component pointer for a dynamically known
// component type. Requires a read descriptor; callers must not mutate through
// the returned pointer.
func (sw *SubWorld) GetType(id ecs.EntityID, typ reflect.Type) (any, error) {
	if !sw.set.Has(access.ReadOf(typ)) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.ReadOf(typ))}
	}
	return sw.world.GetRaw(id, typ)
}

// GetMutType is the write-permission counterpart of GetType.
func (sw *SubWorld) GetMutType(id ecs.EntityID, typ reflect.Type) (any, error) {
	if !sw.set.Has(access.WriteOf(typ)) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.WriteOf(typ))}
	}
	return sw.world.GetRaw(id, typ)
}

// Get returns a read-only copy of the T component of an entity. Requires a
// read or write descriptor for T.
func Get[T any](sw *SubWorld, id ecs.EntityID) (T, error) {
	var zero T
	if !sw.set.Has(access.Read[T]()) {
		return zero, &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.Read[T]())}
	}
	c, err := ecs.Get[T](sw.world, id)
	if err != nil {
		return zero, err
	}
	return *c, nil
}

// GetMut returns a pointer to the T component of an entity for in-place
// mutation. Requires a write descriptor for T.
func GetMut[T any](sw *SubWorld, id ecs.EntityID) (*T, error) {
	if !sw.set.Has(access.Write[T]()) {
		return nil, &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.Write[T]())}
	}
	return ecs.Get[T](sw.world, id)
}

// GetFrom reads the T component through a One accessor, subject to the
// owning subworld's permissions.
func GetFrom[T any](o *One) (T, error) {
	return Get[T](o.sw, o.id)
}

// Each visits every entity with a T component, read-only. Requires a read
// descriptor for T; the component is passed by value.
func Each[T any](sw *SubWorld, fn func(ecs.EntityID, T)) error {
	if !sw.set.Has(access.Read[T]()) {
		return &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.Read[T]())}
	}
	ecs.Each(sw.world, func(id ecs.EntityID, c *T) { fn(id, *c) })
	return nil
}

// EachMut visits every entity with a T component for in-place mutation.
// Requires a write descriptor for T.
func EachMut[T any](sw *SubWorld, fn func(ecs.EntityID, *T)) error {
	if !sw.set.Has(access.Write[T]()) {
		return &IncompatibleSubworldError{Held: sw.set, Requested: access.NewSet(access.Write[T]())}
	}
	ecs.Each(sw.world, fn)
	return nil
}

// Each2 visits every entity with both A and B, read-only.
func Each2[A, B any](sw *SubWorld, fn func(ecs.EntityID, A, B)) error {
	q := access.NewSet(access.Read[A](), access.Read[B]())
	if !q.SubsetOf(sw.set) {
		return &IncompatibleSubworldError{Held: sw.set, Requested: q}
	}
	ecs.Each2(sw.world, func(id ecs.EntityID, a *A, b *B) { fn(id, *a, *b) })
	return nil
}

// Each2Mut visits every entity with both A and B, reading A and mutating B.
func Each2Mut[A, B any](sw *SubWorld, fn func(ecs.EntityID, A, *B)) error {
	q := access.NewSet(access.Read[A](), access.Write[B]())
	if !q.SubsetOf(sw.set) {
		return &IncompatibleSubworldError{Held: sw.set, Requested: q}
	}
	ecs.Each2(sw.world, func(id ecs.EntityID, a *A, b *B) { fn(id, *a, b) })
	return nil
}

// EachMut2 visits every entity with both A and B, mutating both.
func EachMut2[A, B any](sw *SubWorld, fn func(ecs.EntityID, *A, *B)) error {
	q := access.NewSet(access.Write[A](), access.Write[B]())
	if !q.SubsetOf(sw.set) {
		return &IncompatibleSubworldError{Held: sw.set, Requested: q}
	}
	ecs.Each2(sw.world, fn)
	return nil
}
