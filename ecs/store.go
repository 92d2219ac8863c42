package ecs

import "reflect"

// store holds one component type for all entities. Values are always a
// pointer to the component type so in-place mutation through Get sticks.
type store struct {
	typ  reflect.Type
	data map[EntityID]any
}

func newStore(typ reflect.Type) *store {
	return &store{
		typ:  typ,
		data: make(map[EntityID]any, 256),
	}
}

// set boxes a component value into the store. comp must be assignable to the
// store's type; a fresh pointer is allocated so callers keep no alias.
func (s *store) set(id EntityID, comp any) {
	p := reflect.New(s.typ)
	p.Elem().Set(reflect.ValueOf(comp))
	s.data[id] = p.Interface()
}

// setPtr stores an existing *T directly.
func (s *store) setPtr(id EntityID, ptr any) {
	s.data[id] = ptr
}

func (s *store) get(id EntityID) (any, bool) {
	c, ok := s.data[id]
	return c, ok
}

func (s *store) has(id EntityID) bool {
	_, ok := s.data[id]
	return ok
}

func (s *store) remove(id EntityID) {
	delete(s.data, id)
}

func (s *store) len() int {
	return len(s.data)
}
