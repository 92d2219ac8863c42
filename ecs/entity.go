package ecs

import "sync"

// EntityID encodes a 32-bit index in the lower bits and a 32-bit generation
// in the upper bits. Generation increments on destroy to invalidate stale refs.
type EntityID uint64

func NewEntityID(index uint32, generation uint32) EntityID {
	return EntityID(uint64(generation)<<32 | uint64(index))
}

func (id EntityID) Index() uint32      { return uint32(id) }
func (id EntityID) Generation() uint32 { return uint32(id >> 32) }
func (id EntityID) IsZero() bool       { return id == 0 }

const (
	stateFree uint8 = iota
	stateReserved
	stateAlive
)

// EntityPool manages entity allocation with generational indices and a free
// list. Besides alive entities it tracks reserved IDs: identifiers handed out
// ahead of time that become alive on their first structural touch, so a
// command buffer can target an entity before it is materialized.
//
// The pool is safe for concurrent use: reservations may be taken from any
// goroutine while others check liveness, so every method locks.
type EntityPool struct {
	mu          sync.Mutex
	generations []uint32
	states      []uint8
	freeList    []uint32
	nextIndex   uint32
	aliveCount  int
}

func NewEntityPool() *EntityPool {
	return &EntityPool{
		generations: make([]uint32, 0, 1024),
		states:      make([]uint8, 0, 1024),
		freeList:    make([]uint32, 0, 256),
	}
}

func (p *EntityPool) alloc() uint32 {
	if n := len(p.freeList); n > 0 {
		idx := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		return idx
	}
	idx := p.nextIndex
	p.nextIndex++
	if int(idx) >= len(p.generations) {
		p.generations = append(p.generations, 0)
		p.states = append(p.states, stateFree)
	}
	return idx
}

// Create allocates a live entity.
func (p *EntityPool) Create() EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := p.alloc()
	p.states[idx] = stateAlive
	p.aliveCount++
	return NewEntityID(idx, p.generations[idx])
}

// Reserve allocates an identifier without materializing the entity. The ID is
// not alive and is skipped by iteration until Materialize is called.
func (p *EntityPool) Reserve() EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reserveLocked()
}

func (p *EntityPool) reserveLocked() EntityID {
	idx := p.alloc()
	p.states[idx] = stateReserved
	return NewEntityID(idx, p.generations[idx])
}

// ReserveN reserves count identifiers.
func (p *EntityPool) ReserveN(count int) []EntityID {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]EntityID, count)
	for i := range ids {
		ids[i] = p.reserveLocked()
	}
	return ids
}

// Materialize turns a reserved ID into a live entity. Calling it on an
// already-live entity is a no-op.
func (p *EntityPool) Materialize(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex || p.generations[idx] != id.Generation() {
		return false
	}
	switch p.states[idx] {
	case stateAlive:
		return true
	case stateReserved:
		p.states[idx] = stateAlive
		p.aliveCount++
		return true
	}
	return false
}

func (p *EntityPool) Alive(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation() && p.states[idx] == stateAlive
}

// Reserved reports whether id is a valid reservation not yet materialized.
func (p *EntityPool) Reserved(id EntityID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex {
		return false
	}
	return p.generations[idx] == id.Generation() && p.states[idx] == stateReserved
}

func (p *EntityPool) Destroy(id EntityID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	idx := id.Index()
	if idx >= p.nextIndex {
		return
	}
	if p.generations[idx] != id.Generation() || p.states[idx] == stateFree {
		return // already destroyed (stale reference)
	}
	if p.states[idx] == stateAlive {
		p.aliveCount--
	}
	p.generations[idx]++
	p.states[idx] = stateFree
	p.freeList = append(p.freeList, idx)
}

// Len returns the number of live entities.
func (p *EntityPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aliveCount
}

// EachAlive visits every live entity in ascending index order. The set of
// live IDs is snapshotted first, so fn may call back into the pool.
func (p *EntityPool) EachAlive(fn func(EntityID)) {
	p.mu.Lock()
	ids := make([]EntityID, 0, p.aliveCount)
	for idx := uint32(0); idx < p.nextIndex; idx++ {
		if p.states[idx] == stateAlive {
			ids = append(ids, NewEntityID(idx, p.generations[idx]))
		}
	}
	p.mu.Unlock()
	for _, id := range ids {
		fn(id)
	}
}
