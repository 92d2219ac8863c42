// Package schedule runs registered systems against an ecs.World in parallel
// batches. Each system declares the component and resource accesses it needs;
// the builder partitions systems into conflict-free batches and the executor
// runs one batch at a time, systems within a batch concurrently. Structural
// mutations go through per-system command buffers drained after execution.
package schedule

import (
	"reflect"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/l1jgo/sched/access"
	"github.com/l1jgo/sched/ecs"
)

// SystemFunc is the body of a system. It receives a context scoped to the
// accesses the system declared at registration. Returning an error marks the
// whole schedule run as failed without stopping sibling systems in the same
// batch.
type SystemFunc func(*Ctx) error

// Builder registers systems in declaration order and computes the batch plan.
type Builder struct {
	systems []system
	log     *zap.Logger
	workers int
}

func NewBuilder() *Builder {
	return &Builder{log: zap.NewNop()}
}

// AddSystem registers a system with its declared descriptor set. Registration
// order is significant: conflicting systems always execute in registration
// order.
func (b *Builder) AddSystem(name string, set access.Set, fn SystemFunc) *Builder {
	b.systems = append(b.systems, system{name: name, set: set, fn: fn})
	return b
}

// Append moves all systems registered on other onto b, preserving their
// relative order. other is left empty.
func (b *Builder) Append(other *Builder) *Builder {
	b.systems = append(b.systems, other.systems...)
	other.systems = nil
	return b
}

// WithLogger sets the logger used by the executor. Defaults to a nop logger.
func (b *Builder) WithLogger(log *zap.Logger) *Builder {
	if log != nil {
		b.log = log
	}
	return b
}

// WithWorkers caps the number of systems of one batch running concurrently.
// Zero or negative means no cap.
func (b *Builder) WithWorkers(n int) *Builder {
	b.workers = n
	return b
}

// Build computes the batch plan. The plan is computed once and reused across
// Execute calls; register systems on a new builder to change it.
func (b *Builder) Build() *Schedule {
	s := &Schedule{
		systems: b.systems,
		batches: buildBatches(b.systems),
		log:     b.log,
		workers: b.workers,
	}
	s.log.Debug("schedule built",
		zap.Int("systems", len(s.systems)),
		zap.Int("batches", len(s.batches)))
	return s
}

// Schedule is an immutable batch plan over a fixed system list. A schedule
// may be executed repeatedly; one execution must finish before the next
// starts.
type Schedule struct {
	systems []system
	batches []batch
	log     *zap.Logger
	workers int
}

// BatchInfo renders the computed plan, one line per batch.
func (s *Schedule) BatchInfo() string {
	return batchInfo(s.systems, s.batches)
}

// Batches returns the computed batch assignment as system indices per batch.
func (s *Schedule) Batches() [][]int {
	out := make([][]int, len(s.batches))
	for i, b := range s.batches {
		out[i] = append([]int(nil), b.indices...)
	}
	return out
}

// Execute runs the schedule against a world. Systems within a batch run
// concurrently; a batch fully joins before the next starts. External
// resources are passed as pointers and matched to declared resource accesses
// by type.
//
// On system failure the current batch still runs to completion, no later
// batch starts, command buffers of everything that ran are drained, and the
// returned error carries every failure in batch-then-system order.
func (s *Schedule) Execute(w *ecs.World, resources ...any) error {
	return s.run(w, resources, true)
}

// ExecuteSeq runs the schedule without any concurrency. The final world state
// is identical to Execute for the same systems and inputs.
func (s *Schedule) ExecuteSeq(w *ecs.World, resources ...any) error {
	return s.run(w, resources, false)
}

func (s *Schedule) run(w *ecs.World, resources []any, parallel bool) error {
	res, err := buildResourceMap(resources)
	if err != nil {
		return err
	}
	for _, sys := range s.systems {
		for _, a := range sys.set.Resources() {
			if _, ok := res[a.Type()]; !ok {
				return &MissingResourceError{Access: a}
			}
		}
	}

	bufs := make([]*CommandBuffer, len(s.systems))
	errs := make([]error, len(s.systems))

	for bi := range s.batches {
		b := &s.batches[bi]
		s.log.Debug("dispatching batch",
			zap.Int("batch", bi),
			zap.Int("systems", len(b.indices)),
			zap.Bool("parallel", parallel))

		if parallel && len(b.indices) > 1 {
			var g errgroup.Group
			if s.workers > 0 {
				g.SetLimit(s.workers)
			}
			for _, si := range b.indices {
				si := si
				g.Go(func() error {
					errs[si] = s.runSystem(si, w, res, bufs)
					return nil
				})
			}
			// Join the whole batch; per-system errors are collected above so
			// a failing system never cancels its siblings.
			_ = g.Wait()
		} else {
			for _, si := range b.indices {
				errs[si] = s.runSystem(si, w, res, bufs)
			}
		}

		batchFailed := false
		for _, si := range b.indices {
			if errs[si] != nil {
				batchFailed = true
				s.log.Error("system failed",
					zap.Int("batch", bi),
					zap.Int("system", si),
					zap.String("name", s.systems[si].name),
					zap.Error(errs[si]))
			}
		}
		if batchFailed {
			// Run-to-completion of the current batch happened above; abort
			// before starting the next batch.
			break
		}
	}

	// Drain deferred structural mutations in batch order, then system order
	// within a batch, then enqueue order within a system.
	drain := NewCommandBuffer()
	for _, b := range s.batches {
		for _, si := range b.indices {
			if bufs[si] != nil {
				drain.append(bufs[si])
			}
		}
	}
	drainErr := drain.Execute(w)
	if drainErr != nil {
		s.log.Error("command buffer drain failed", zap.Error(drainErr))
	}

	var agg error
	for _, b := range s.batches {
		for _, si := range b.indices {
			if errs[si] != nil {
				agg = multierr.Append(agg, &SystemFailureError{
					Index: si,
					Name:  s.systems[si].name,
					Err:   errs[si],
				})
			}
		}
	}
	return multierr.Append(agg, drainErr)
}

func (s *Schedule) runSystem(si int, w *ecs.World, res map[reflect.Type]any, bufs []*CommandBuffer) error {
	sys := &s.systems[si]
	buf := NewCommandBuffer()
	bufs[si] = buf
	ctx := &Ctx{
		sub:       NewSubWorld(w, sys.set),
		buf:       buf,
		resources: res,
		set:       sys.set,
	}
	return sys.fn(ctx)
}

func buildResourceMap(resources []any) (map[reflect.Type]any, error) {
	res := make(map[reflect.Type]any, len(resources))
	for _, r := range resources {
		t := reflect.TypeOf(r)
		if t == nil || t.Kind() != reflect.Ptr {
			return nil, &InvalidResourceError{Value: r}
		}
		res[t.Elem()] = r
	}
	return res, nil
}

// Ctx is the view of the engine handed to a running system. All access goes
// through the system's declared descriptor set.
type Ctx struct {
	sub       *SubWorld
	buf       *CommandBuffer
	resources map[reflect.Type]any
	set       access.Set
}

// World returns the subworld scoped to the system's component accesses.
func (c *Ctx) World() *SubWorld { return c.sub }

// Commands returns the system's private command buffer. Queued commands are
// applied after the whole schedule finishes.
func (c *Ctx) Commands() *CommandBuffer { return c.buf }

// Res returns a copy of the external resource of type T. Requires a declared
// resource read (or write).
func Res[T any](c *Ctx) (T, error) {
	var zero T
	if !c.set.Has(access.ReadRes[T]()) {
		return zero, &IncompatibleSubworldError{
			Held:      c.set,
			Requested: access.NewSet(access.ReadRes[T]()),
		}
	}
	r, ok := c.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return zero, &MissingResourceError{Access: access.ReadRes[T]()}
	}
	return *r.(*T), nil
}

// ResMut returns a pointer to the external resource of type T for mutation.
// Requires a declared resource write.
func ResMut[T any](c *Ctx) (*T, error) {
	if !c.set.Has(access.WriteRes[T]()) {
		return nil, &IncompatibleSubworldError{
			Held:      c.set,
			Requested: access.NewSet(access.WriteRes[T]()),
		}
	}
	r, ok := c.resources[reflect.TypeOf((*T)(nil)).Elem()]
	if !ok {
		return nil, &MissingResourceError{Access: access.WriteRes[T]()}
	}
	return r.(*T), nil
}
