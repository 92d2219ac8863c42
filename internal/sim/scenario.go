package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/l1jgo/sched/ecs"
)

// Scenario describes an initial entity population.
type Scenario struct {
	Entities []EntitySpec `yaml:"entities"`
}

// EntitySpec spawns Count copies of one component bundle. Nil component
// blocks are omitted from the bundle.
type EntitySpec struct {
	Count    int       `yaml:"count"`
	Position *Position `yaml:"position"`
	Velocity *Velocity `yaml:"velocity"`
	Health   *Health   `yaml:"health"`
	Poison   *Poison   `yaml:"poison"`
}

// LoadScenario parses a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Spawn populates the world and returns the number of entities created.
func (sc *Scenario) Spawn(w *ecs.World) int {
	n := 0
	for _, es := range sc.Entities {
		count := es.Count
		if count <= 0 {
			count = 1
		}
		for i := 0; i < count; i++ {
			comps := make([]any, 0, 4)
			if es.Position != nil {
				comps = append(comps, *es.Position)
			}
			if es.Velocity != nil {
				comps = append(comps, *es.Velocity)
			}
			if es.Health != nil {
				comps = append(comps, *es.Health)
			}
			if es.Poison != nil {
				comps = append(comps, *es.Poison)
			}
			w.Spawn(comps...)
			n++
		}
	}
	return n
}
