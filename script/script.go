// Package script lets systems be written in Lua. A scripted system declares
// the component names it reads and writes; the declaration becomes the
// system's descriptor set so scripted and native systems batch together under
// the same conflict rules.
package script

import (
	"fmt"
	"reflect"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/l1jgo/sched/access"
	"github.com/l1jgo/sched/ecs"
	"github.com/l1jgo/sched/schedule"
)

// Registry maps component names visible to Lua onto Go component types.
type Registry struct {
	types map[string]reflect.Type
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]reflect.Type, 16)}
}

// RegisterComponent exposes component type T to Lua under the given name.
// Only exported fields of int, uint, float, bool and string kinds cross the
// boundary.
func RegisterComponent[T any](r *Registry, name string) {
	r.types[name] = reflect.TypeOf((*T)(nil)).Elem()
}

func (r *Registry) lookup(name string) (reflect.Type, error) {
	t, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("script: component %q not registered", name)
	}
	return t, nil
}

// Config describes one scripted system.
type Config struct {
	Name   string   // Lua function to call, also the system name
	Path   string   // Lua file to load (used when Source is empty)
	Source string   // inline Lua source
	Reads  []string // component names the function reads
	Writes []string // component names the function writes
}

// System is a Lua-backed system. Each System owns a private Lua VM: LStates
// are not goroutine-safe, and separate VMs keep batch parallelism sound when
// two scripted systems land in the same batch.
type System struct {
	name   string
	set    access.Set
	vm     *lua.LState
	reads  []reflect.Type
	writes []reflect.Type
	names  map[reflect.Type]string
	log    *zap.Logger
}

// NewSystem compiles cfg into a runnable system. The Lua source must define a
// global function named cfg.Name taking (entity, components) where components
// is a table keyed by component name.
func NewSystem(reg *Registry, cfg Config, log *zap.Logger) (*System, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{SkipOpenLibs: false})

	if cfg.Source != "" {
		if err := vm.DoString(cfg.Source); err != nil {
			vm.Close()
			return nil, fmt.Errorf("script: load %s: %w", cfg.Name, err)
		}
	} else {
		if err := vm.DoFile(cfg.Path); err != nil {
			vm.Close()
			return nil, fmt.Errorf("script: load %s: %w", cfg.Path, err)
		}
	}
	if vm.GetGlobal(cfg.Name) == lua.LNil {
		vm.Close()
		return nil, fmt.Errorf("script: lua function %q not found", cfg.Name)
	}

	s := &System{
		name:  cfg.Name,
		vm:    vm,
		names: make(map[reflect.Type]string, len(cfg.Reads)+len(cfg.Writes)),
		log:   log,
	}
	var accs []access.Access
	for _, n := range cfg.Reads {
		t, err := reg.lookup(n)
		if err != nil {
			vm.Close()
			return nil, err
		}
		s.reads = append(s.reads, t)
		s.names[t] = n
		accs = append(accs, access.ReadOf(t))
	}
	for _, n := range cfg.Writes {
		t, err := reg.lookup(n)
		if err != nil {
			vm.Close()
			return nil, err
		}
		s.writes = append(s.writes, t)
		s.names[t] = n
		accs = append(accs, access.WriteOf(t))
	}
	s.set = access.NewSet(accs...)
	return s, nil
}

// Close releases the Lua VM.
func (s *System) Close() { s.vm.Close() }

// Name returns the system name.
func (s *System) Name() string { return s.name }

// Access returns the descriptor set derived from the declared reads/writes.
func (s *System) Access() access.Set { return s.set }

// Register adds the scripted system to a schedule builder.
func (s *System) Register(b *schedule.Builder) *schedule.Builder {
	return b.AddSystem(s.name, s.set, s.Run)
}

// Run executes the Lua function once per entity carrying all declared
// components.
func (s *System) Run(ctx *schedule.Ctx) error {
	sw := ctx.World()
	q, err := sw.Query(s.set)
	if err != nil {
		return err
	}

	fn := s.vm.GetGlobal(s.name)
	var callErr error
	q.Each(func(id ecs.EntityID) {
		if callErr != nil {
			return
		}
		callErr = s.callEntity(sw, fn, id)
	})
	return callErr
}

func (s *System) callEntity(sw *schedule.SubWorld, fn lua.LValue, id ecs.EntityID) error {
	comps := s.vm.NewTable()
	writePtrs := make(map[string]reflect.Value, len(s.writes))

	for _, t := range s.reads {
		ptr, err := sw.GetType(id, t)
		if err != nil {
			return err
		}
		comps.RawSetString(s.names[t], structToTable(s.vm, reflect.ValueOf(ptr).Elem()))
	}
	for _, t := range s.writes {
		ptr, err := sw.GetMutType(id, t)
		if err != nil {
			return err
		}
		v := reflect.ValueOf(ptr).Elem()
		comps.RawSetString(s.names[t], structToTable(s.vm, v))
		writePtrs[s.names[t]] = v
	}

	if err := s.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(id), comps); err != nil {
		s.log.Error("lua system error", zap.String("system", s.name), zap.Error(err))
		return fmt.Errorf("script: %s: %w", s.name, err)
	}

	for name, v := range writePtrs {
		if t, ok := comps.RawGetString(name).(*lua.LTable); ok {
			tableToStruct(t, v)
		}
	}
	return nil
}

func structToTable(vm *lua.LState, v reflect.Value) *lua.LTable {
	t := vm.NewTable()
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			t.RawSetString(f.Name, lua.LNumber(fv.Int()))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			t.RawSetString(f.Name, lua.LNumber(fv.Uint()))
		case reflect.Float32, reflect.Float64:
			t.RawSetString(f.Name, lua.LNumber(fv.Float()))
		case reflect.Bool:
			t.RawSetString(f.Name, lua.LBool(fv.Bool()))
		case reflect.String:
			t.RawSetString(f.Name, lua.LString(fv.String()))
		}
	}
	return t
}

func tableToStruct(t *lua.LTable, v reflect.Value) {
	typ := v.Type()
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		lv := t.RawGetString(f.Name)
		if lv == lua.LNil {
			continue
		}
		fv := v.Field(i)
		switch fv.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			fv.SetInt(int64(lua.LVAsNumber(lv)))
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			fv.SetUint(uint64(lua.LVAsNumber(lv)))
		case reflect.Float32, reflect.Float64:
			fv.SetFloat(float64(lua.LVAsNumber(lv)))
		case reflect.Bool:
			fv.SetBool(lua.LVAsBool(lv))
		case reflect.String:
			fv.SetString(lua.LVAsString(lv))
		}
	}
}
