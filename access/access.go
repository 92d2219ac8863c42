// Package access describes what a piece of code may touch: component types it
// reads or writes, and external resources it reads or writes. Descriptor sets
// built here drive both subworld permission checks and batch conflict
// detection; they are purely structural and never touch live entity data.
package access

import (
	"reflect"
	"sort"
	"strings"
)

// target identifies a component or resource type. Components and resources
// live in separate namespaces even when they share a Go type.
type target struct {
	typ      reflect.Type
	resource bool
}

// Access is a single descriptor: one target, read or write.
type Access struct {
	tgt   target
	write bool
}

// Read declares read access to component type T.
func Read[T any]() Access {
	return Access{tgt: target{typ: typeOf[T]()}}
}

// Write declares write access to component type T.
func Write[T any]() Access {
	return Access{tgt: target{typ: typeOf[T]()}, write: true}
}

// ReadRes declares read access to an external resource of type T.
func ReadRes[T any]() Access {
	return Access{tgt: target{typ: typeOf[T](), resource: true}}
}

// WriteRes declares write access to an external resource of type T.
func WriteRes[T any]() Access {
	return Access{tgt: target{typ: typeOf[T](), resource: true}, write: true}
}

// ReadOf and WriteOf are the dynamic counterparts of Read/Write for callers
// that only hold a reflect.Type, such as scripted systems.
func ReadOf(t reflect.Type) Access {
	return Access{tgt: target{typ: t}}
}

func WriteOf(t reflect.Type) Access {
	return Access{tgt: target{typ: t}, write: true}
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// IsWrite reports whether the descriptor is a write.
func (a Access) IsWrite() bool { return a.write }

// IsResource reports whether the descriptor names an external resource
// rather than a component type.
func (a Access) IsResource() bool { return a.tgt.resource }

// Type returns the component or resource type the descriptor names.
func (a Access) Type() reflect.Type { return a.tgt.typ }

func (a Access) String() string {
	var sb strings.Builder
	if a.write {
		sb.WriteString("write ")
	} else {
		sb.WriteString("read ")
	}
	if a.tgt.resource {
		sb.WriteString("res:")
	}
	sb.WriteString(a.tgt.typ.String())
	return sb.String()
}

// Set is a collapsed descriptor set: per target, a write absorbs a read.
// Sets are built once and must not be mutated afterwards; Union returns a
// fresh set.
type Set struct {
	m map[target]bool // value: true if write
}

// NewSet builds a set from individual descriptors. Duplicates collapse and a
// write on a target absorbs a read on the same target.
func NewSet(accs ...Access) Set {
	s := Set{m: make(map[target]bool, len(accs))}
	for _, a := range accs {
		if a.tgt.typ == nil {
			continue
		}
		s.m[a.tgt] = s.m[a.tgt] || a.write
	}
	return s
}

// Len returns the number of distinct targets in the set.
func (s Set) Len() int { return len(s.m) }

// Has reports whether a is covered by the set. A write descriptor covers a
// read on the same target; a read never covers a write.
func (s Set) Has(a Access) bool {
	w, ok := s.m[a.tgt]
	if !ok {
		return false
	}
	return w || !a.write
}

// SubsetOf reports whether every descriptor in s is covered by other.
func (s Set) SubsetOf(other Set) bool {
	for tgt, write := range s.m {
		ow, ok := other.m[tgt]
		if !ok {
			return false
		}
		if write && !ow {
			return false
		}
	}
	return true
}

// ConflictsWith reports whether any target appears in both sets with at
// least one side writing. The relation is symmetric.
func (s Set) ConflictsWith(other Set) bool {
	// Scan the smaller map.
	a, b := s.m, other.m
	if len(b) < len(a) {
		a, b = b, a
	}
	for tgt, aw := range a {
		if bw, ok := b[tgt]; ok && (aw || bw) {
			return true
		}
	}
	return false
}

// Union returns a new set covering both s and other.
func (s Set) Union(other Set) Set {
	u := Set{m: make(map[target]bool, len(s.m)+len(other.m))}
	for tgt, w := range s.m {
		u.m[tgt] = w
	}
	for tgt, w := range other.m {
		u.m[tgt] = u.m[tgt] || w
	}
	return u
}

// ComponentTypes returns the component (non-resource) types in the set, in
// stable sorted order. Used to match entities for queries.
func (s Set) ComponentTypes() []reflect.Type {
	types := make([]reflect.Type, 0, len(s.m))
	for tgt := range s.m {
		if !tgt.resource {
			types = append(types, tgt.typ)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i].String() < types[j].String() })
	return types
}

// Resources returns the resource descriptors in the set.
func (s Set) Resources() []Access {
	accs := make([]Access, 0, len(s.m))
	for tgt, w := range s.m {
		if tgt.resource {
			accs = append(accs, Access{tgt: tgt, write: w})
		}
	}
	sort.Slice(accs, func(i, j int) bool { return accs[i].tgt.typ.String() < accs[j].tgt.typ.String() })
	return accs
}

// String renders the set in stable sorted order, e.g.
// "(read main.A, write main.B)". Stable output keeps error messages and
// batch plans diffable.
func (s Set) String() string {
	if len(s.m) == 0 {
		return "()"
	}
	parts := make([]string, 0, len(s.m))
	for tgt, w := range s.m {
		parts = append(parts, Access{tgt: tgt, write: w}.String())
	}
	sort.Strings(parts)
	return "(" + strings.Join(parts, ", ") + ")"
}
