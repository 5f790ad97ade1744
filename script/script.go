// Package script runs catalog effects written in Lua. Each execution gets a fresh
// interpreter with only the base, string, table and math libraries; resource changes
// are staged and applied only when the script returns true.
package script

import (
	"fmt"
	"strconv"

	lua "github.com/Shopify/go-lua"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/logger"
)

// InstructionBudget bounds how many VM instructions one execution may run.
const InstructionBudget = 100000

// Env is the set of globals a script sees besides the bound functions.
type Env map[string]any

// Script is one validated effect body.
type Script struct {
	Name   string
	Source string
}

// Compile checks that src parses.
func Compile(name, src string) (*Script, error) {
	l := lua.NewState()
	if err := lua.LoadString(l, src); err != nil {
		return nil, fmt.Errorf("script %s: %w", name, err)
	}
	return &Script{Name: name, Source: src}, nil
}

// Install compiles every scripted definition of cat and registers it in b under the
// definition's behavior key, replacing any built-in with the same key.
func Install(b *game.Behaviors, cat *catalog.Catalog) error {
	for _, def := range cat.Scripted() {
		s, err := Compile(def.Key(), def.Script)
		if err != nil {
			return err
		}
		switch def.Kind {
		case catalog.KindStructure:
			b.Structures.Register(def.Key(), s.structureEffect())
		case catalog.KindStatue:
			b.Statues.Register(def.Key(), game.StatueBehavior{Effect: s.statueEffect()})
		case catalog.KindArtifact:
			switch def.UseType {
			case catalog.UsePlayer:
				b.Artifacts.RegisterPlayer(def.Key(), s.playerEffect())
			case catalog.UseField:
				b.Artifacts.RegisterField(def.Key(), s.fieldEffect())
			case catalog.UseTrap:
				b.Artifacts.RegisterTrap(def.Key(), s.trapEffect())
			}
		}
		logger.Log.Debugw("Installed scripted behavior", "key", def.Key(), "kind", def.Kind)
	}
	return nil
}

func (s *Script) structureEffect() game.StructureEffect {
	return func(w *game.World, actor *game.Player, st *game.Structure) bool {
		return s.Run(w, Env{
			"actor":     actor.Name,
			"x":         st.X,
			"y":         st.Y,
			"yield":     st.Def.Yield,
			"magnitude": st.Def.Magnitude,
		})
	}
}

func (s *Script) statueEffect() game.StatueEffect {
	return func(w *game.World, actor *game.Player, st *game.Statue, p game.StatueParams) bool {
		env := Env{"actor": actor.Name, "level": st.Level(), "magnitude": st.Def.Magnitude}
		if p.Player != nil {
			env["target"] = p.Player.Name
		}
		if p.Tile != nil {
			env["x"], env["y"] = p.Tile.X, p.Tile.Y
		}
		return s.Run(w, env)
	}
}

func (s *Script) playerEffect() game.PlayerEffect {
	return func(w *game.World, actor *game.Player, a *game.Artifact, target *game.Player) bool {
		return s.Run(w, Env{"actor": actor.Name, "target": target.Name, "magnitude": a.Def.Magnitude})
	}
}

func (s *Script) fieldEffect() game.FieldEffect {
	return func(w *game.World, actor *game.Player, a *game.Artifact, t *game.Tile) bool {
		return s.Run(w, Env{
			"actor":     actor.Name,
			"x":         t.X,
			"y":         t.Y,
			"owner":     t.Owner(),
			"magnitude": a.Def.Magnitude,
		})
	}
}

func (s *Script) trapEffect() game.TrapEffect {
	return func(w *game.World, trap *game.Trap, victim *game.Player, t *game.Tile) bool {
		return s.Run(w, Env{
			"actor":     victim.Name,
			"setter":    trap.Setter,
			"x":         t.X,
			"y":         t.Y,
			"magnitude": trap.Def.Magnitude,
		})
	}
}

// Run executes the script against w. It reports the script's boolean result; errors
// count as false and leave w untouched.
func (s *Script) Run(w *game.World, env Env) bool {
	tx := &transaction{world: w}
	l := newState(tx, env)
	if err := lua.LoadString(l, s.Source); err != nil {
		logger.Log.Errorw("Script load failed", "script", s.Name, "error", err)
		return false
	}
	if err := l.ProtectedCall(0, 1, 0); err != nil {
		logger.Log.Warnw("Script failed", "script", s.Name, "error", err)
		return false
	}
	if !l.ToBoolean(-1) {
		return false
	}
	tx.commit()
	return true
}

func newState(tx *transaction, env Env) *lua.State {
	l := lua.NewState()
	lua.Require(l, "_G", lua.BaseOpen, true)
	lua.Require(l, "string", lua.StringOpen, true)
	lua.Require(l, "table", lua.TableOpen, true)
	lua.Require(l, "math", lua.MathOpen, true)
	l.SetTop(0)

	// Loading files from a catalog script is not allowed.
	for _, name := range []string{"dofile", "loadfile", "load", "require"} {
		l.PushNil()
		l.SetGlobal(name)
	}

	for name, v := range env {
		switch v := v.(type) {
		case string:
			l.PushString(v)
		case int:
			l.PushInteger(v)
		case bool:
			l.PushBoolean(v)
		default:
			l.PushString(fmt.Sprint(v))
		}
		l.SetGlobal(name)
	}

	l.Register("runes", tx.runes)
	l.Register("energy", tx.energy)
	l.Register("add_runes", tx.addRunes)
	l.Register("add_energy", tx.addEnergy)

	lua.SetDebugHook(l, func(l *lua.State, _ lua.Debug) {
		lua.Errorf(l, "instruction budget of %d exceeded", InstructionBudget)
	}, lua.MaskCount, InstructionBudget)
	return l
}

type delta struct {
	player string
	runes  int
	energy int
}

// transaction stages resource changes until the script succeeds.
type transaction struct {
	world   *game.World
	pending []delta
}

func (tx *transaction) player(l *lua.State) *game.Player {
	name := lua.CheckString(l, 1)
	p, ok := tx.world.Player(name)
	if !ok {
		lua.Errorf(l, "unknown player %s", strconv.Quote(name))
	}
	return p
}

func (tx *transaction) staged(name string) (runes, energy int) {
	for _, d := range tx.pending {
		if d.player == name {
			runes += d.runes
			energy += d.energy
		}
	}
	return runes, energy
}

func (tx *transaction) runes(l *lua.State) int {
	p := tx.player(l)
	r, _ := tx.staged(p.Name)
	l.PushInteger(max(p.Runes()+r, 0))
	return 1
}

func (tx *transaction) energy(l *lua.State) int {
	p := tx.player(l)
	_, e := tx.staged(p.Name)
	l.PushInteger(min(max(p.Energy()+e, 0), p.MaxEnergy()))
	return 1
}

func (tx *transaction) addRunes(l *lua.State) int {
	p := tx.player(l)
	tx.pending = append(tx.pending, delta{player: p.Name, runes: lua.CheckInteger(l, 2)})
	return 0
}

func (tx *transaction) addEnergy(l *lua.State) int {
	p := tx.player(l)
	tx.pending = append(tx.pending, delta{player: p.Name, energy: lua.CheckInteger(l, 2)})
	return 0
}

func (tx *transaction) commit() {
	for _, d := range tx.pending {
		p, ok := tx.world.Player(d.player)
		if !ok {
			continue
		}
		if d.runes != 0 {
			p.AddRunes(d.runes)
		}
		if d.energy != 0 {
			p.AddEnergy(d.energy)
		}
	}
	tx.pending = nil
}
