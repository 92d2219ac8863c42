package sim

import (
	"github.com/l1jgo/sched/access"
	"github.com/l1jgo/sched/ecs"
	"github.com/l1jgo/sched/schedule"
)

// MovementAccess and friends are the declared descriptor sets of the demo
// systems; they are exported so tests can assert the batch plan.
var (
	MovementAccess = access.NewSet(access.Read[Velocity](), access.Write[Position]())
	ExpiryAccess   = access.NewSet(access.Read[Poison]())
	SpawnerAccess  = access.NewSet(access.WriteRes[TickStats]())
	StatsAccess    = access.NewSet(access.Read[Health](), access.WriteRes[TickStats]())
)

// Movement advances every positioned entity by its velocity.
func Movement(ctx *schedule.Ctx) error {
	return schedule.Each2Mut(ctx.World(), func(_ ecs.EntityID, v Velocity, p *Position) {
		p.X += v.X
		p.Y += v.Y
	})
}

// Expiry queues removal of worn-off poisons. The removal itself is deferred
// to the command buffer so it never races with the poison system's writes.
func Expiry(ctx *schedule.Ctx) error {
	return schedule.Each(ctx.World(), func(id ecs.EntityID, p Poison) {
		if p.Ticks <= 0 {
			schedule.RemoveComponent[Poison](ctx.Commands(), id)
		}
	})
}

// Spawner reserves fresh entity IDs and queues their materialization, one
// plain spawn and one reserved-ID insert per tick.
func Spawner(ctx *schedule.Ctx) error {
	ctx.Commands().Spawn(Position{}, Health{HP: 50, Max: 50})

	ids := ctx.World().ReserveEntities(1)
	ctx.Commands().Insert(ids[0], Position{}, Velocity{X: 1}, Health{HP: 25, Max: 25})

	stats, err := schedule.ResMut[TickStats](ctx)
	if err != nil {
		return err
	}
	stats.Spawned += 2
	return nil
}

// Stats aggregates entity and HP counts into the TickStats resource.
func Stats(ctx *schedule.Ctx) error {
	stats, err := schedule.ResMut[TickStats](ctx)
	if err != nil {
		return err
	}
	stats.Entities = 0
	stats.TotalHP = 0
	err = schedule.Each(ctx.World(), func(_ ecs.EntityID, h Health) {
		stats.Entities++
		stats.TotalHP += h.HP
	})
	return err
}
