package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l1jgo/sched/ecs"
)

// Reserve an ID, queue an insert and a remove against it, drain: the entity
// materializes with the inserted components minus the removed one.
func TestCommandBufferReserveInsertRemove(t *testing.T) {
	w := ecs.NewWorld()
	e := w.ReserveEntity()

	buf := NewCommandBuffer()
	buf.Spawn(int32(42), float32(7.0))
	buf.Insert(e, uint(89), int32(42), "foo")
	RemoveComponent[uint](buf, e)

	require.NoError(t, buf.Execute(w))
	assert.Equal(t, 0, buf.Len(), "drain clears the buffer")

	assert.True(t, w.Alive(e))
	v, err := ecs.Get[int32](w, e)
	require.NoError(t, err)
	assert.Equal(t, int32(42), *v)
	s, err := ecs.Get[string](w, e)
	require.NoError(t, err)
	assert.Equal(t, "foo", *s)
	_, err = ecs.Get[uint](w, e)
	assert.True(t, ecs.IsMissingComponent(err), "queued remove dropped the component")

	// The spawn command created a second entity.
	assert.Equal(t, 2, w.Len())
}

// Strict left-to-right replay: each command sees the store as mutated by the
// commands before it.
func TestCommandBufferReplayOrder(t *testing.T) {
	w := ecs.NewWorld()
	e := w.Spawn(int32(1))

	buf := NewCommandBuffer()
	buf.Insert(e, float32(2.0))
	RemoveComponent[int32](buf, e)
	buf.Insert(e, int32(3))

	require.NoError(t, buf.Execute(w))
	v, err := ecs.Get[int32](w, e)
	require.NoError(t, err)
	assert.Equal(t, int32(3), *v, "re-insert after remove wins")
}

func TestCommandBufferSpawnHasNoID(t *testing.T) {
	w := ecs.NewWorld()
	buf := NewCommandBuffer()
	buf.Spawn(int32(5))
	assert.Equal(t, 0, w.Len(), "spawn is deferred until drain")
	require.NoError(t, buf.Execute(w))
	assert.Equal(t, 1, w.Len())
}

// A failing command does not stop the replay; all failures are reported.
func TestCommandBufferDrainContinuesPastErrors(t *testing.T) {
	w := ecs.NewWorld()
	e := w.Spawn(int32(1))
	bogus := ecs.NewEntityID(1234, 0)

	buf := NewCommandBuffer()
	buf.Insert(bogus, float32(1.0))
	buf.Insert(e, float32(2.0))

	err := buf.Execute(w)
	require.Error(t, err)
	assert.True(t, ecs.IsNoSuchEntity(err))

	f, gerr := ecs.Get[float32](w, e)
	require.NoError(t, gerr)
	assert.Equal(t, float32(2.0), *f, "later commands still applied")
}
