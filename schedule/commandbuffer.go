package schedule

import (
	"reflect"

	"go.uber.org/multierr"

	"github.com/l1jgo/sched/ecs"
)

type commandOp uint8

const (
	opSpawn commandOp = iota
	opInsert
	opRemove
)

type command struct {
	op     commandOp
	entity ecs.EntityID
	comps  []any
	typ    reflect.Type
}

// CommandBuffer queues structural mutations (spawn, insert, remove) for
// deferred replay against the world. Structural changes are never applied
// while systems run; the executor drains buffers only after every batch has
// joined, so live queries are never invalidated mid-batch.
//
// A buffer is not internally synchronized. The executor gives every system
// run its own buffer; a standalone buffer must not be shared across
// goroutines.
type CommandBuffer struct {
	commands []command
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{commands: make([]command, 0, 16)}
}

// Spawn queues creation of a new entity with the given components. No
// identifier is returned; the entity exists only after the drain. Callers
// that need the ID up front should use SubWorld.ReserveEntities and Insert.
func (b *CommandBuffer) Spawn(comps ...any) {
	b.commands = append(b.commands, command{op: opSpawn, comps: comps})
}

// Insert queues adding components to an entity. The target may be a reserved
// ID that does not exist yet. Validity is checked only at drain time.
func (b *CommandBuffer) Insert(id ecs.EntityID, comps ...any) {
	b.commands = append(b.commands, command{op: opInsert, entity: id, comps: comps})
}

// RemoveType queues removal of a component type from an entity.
func (b *CommandBuffer) RemoveType(id ecs.EntityID, typ reflect.Type) {
	b.commands = append(b.commands, command{op: opRemove, entity: id, typ: typ})
}

// Len returns the number of queued commands.
func (b *CommandBuffer) Len() int { return len(b.commands) }

// Clear drops all queued commands, keeping capacity.
func (b *CommandBuffer) Clear() { b.commands = b.commands[:0] }

// append moves all commands from other onto b, preserving order.
func (b *CommandBuffer) append(other *CommandBuffer) {
	b.commands = append(b.commands, other.commands...)
}

// Execute drains all queued commands against the world in strict enqueue
// order. Each command sees the store as mutated by the commands before it.
// Replay continues past a failing command; all failures are aggregated into
// the returned error.
func (b *CommandBuffer) Execute(w *ecs.World) error {
	var err error
	for _, c := range b.commands {
		switch c.op {
		case opSpawn:
			w.Spawn(c.comps...)
		case opInsert:
			err = multierr.Append(err, w.Insert(c.entity, c.comps...))
		case opRemove:
			err = multierr.Append(err, w.RemoveType(c.entity, c.typ))
		}
	}
	b.Clear()
	return err
}

// RemoveComponent queues removal of the T component from an entity.
func RemoveComponent[T any](b *CommandBuffer, id ecs.EntityID) {
	b.RemoveType(id, reflect.TypeOf((*T)(nil)).Elem())
}
