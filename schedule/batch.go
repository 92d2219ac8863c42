package schedule

import (
	"fmt"
	"strings"

	"github.com/l1jgo/sched/access"
)

// system is a registered unit of logic plus its declared descriptor set.
// Registration order is significant: it fixes batching and the deterministic
// ordering of conflicting systems.
type system struct {
	name string
	set  access.Set
	fn   SystemFunc
}

// batch is an ordered group of system indices guaranteed pairwise
// conflict-free, plus the union of their descriptor sets.
type batch struct {
	indices []int
	set     access.Set
}

// buildBatches partitions systems into batches by greedy assignment in
// registration order: each system lands in the batch right after the last
// batch it conflicts with (the earliest placement that cannot reorder it past
// a conflicting predecessor), or opens a new batch at the end.
//
// Guarantees: no batch holds two conflicting systems; for conflicting systems
// i < j, batch(i) <= batch(j); the plan is deterministic for a fixed
// registration order. The plan is not necessarily minimal in batch count.
func buildBatches(systems []system) []batch {
	batches := make([]batch, 0, len(systems))
	for i, s := range systems {
		last := -1
		for bi := range batches {
			if batches[bi].set.ConflictsWith(s.set) {
				last = bi
			}
		}
		if bi := last + 1; bi < len(batches) {
			batches[bi].indices = append(batches[bi].indices, i)
			batches[bi].set = batches[bi].set.Union(s.set)
		} else {
			batches = append(batches, batch{
				indices: []int{i},
				set:     s.set,
			})
		}
	}
	return batches
}

// batchInfo renders the plan, one line per batch.
func batchInfo(systems []system, batches []batch) string {
	var sb strings.Builder
	for bi, b := range batches {
		names := make([]string, len(b.indices))
		for i, si := range b.indices {
			names[i] = systems[si].name
		}
		fmt.Fprintf(&sb, "batch %d: [%s]\n", bi, strings.Join(names, ", "))
	}
	return sb.String()
}
