package game

import "sync"

// Effect signatures. Each returns false when it could not apply; it must not mutate
// state in that case.
type (
	FieldEffect     func(w *World, actor *Player, a *Artifact, t *Tile) bool
	PlayerEffect    func(w *World, actor *Player, a *Artifact, target *Player) bool
	TrapEffect      func(w *World, trap *Trap, victim *Player, t *Tile) bool
	StatueEffect    func(w *World, actor *Player, s *Statue, p StatueParams) bool
	StructureEffect func(w *World, actor *Player, s *Structure) bool
)

// StatueBehavior pairs a statue effect with the parameter keys it cannot run without.
type StatueBehavior struct {
	Requires []string
	Effect   StatueEffect
}

// Behaviors bundles the three registries. One instance is built at startup and shared
// read-only by every game.
type Behaviors struct {
	Artifacts  *ArtifactRegistry
	Statues    *StatueRegistry
	Structures *StructureRegistry
}

// NewBehaviors returns registries populated with the built-in effects.
func NewBehaviors() *Behaviors {
	b := &Behaviors{
		Artifacts:  newArtifactRegistry(),
		Statues:    newStatueRegistry(),
		Structures: newStructureRegistry(),
	}
	registerBuiltins(b)
	return b
}

func newArtifactRegistry() *ArtifactRegistry {
	return &ArtifactRegistry{
		field:  map[string]FieldEffect{},
		player: map[string]PlayerEffect{},
		trap:   map[string]TrapEffect{},
	}
}

func newStatueRegistry() *StatueRegistry {
	return &StatueRegistry{effects: map[string]StatueBehavior{}}
}

func newStructureRegistry() *StructureRegistry {
	return &StructureRegistry{effects: map[string]StructureEffect{}}
}

type ArtifactRegistry struct {
	mu     sync.RWMutex
	field  map[string]FieldEffect
	player map[string]PlayerEffect
	trap   map[string]TrapEffect
}

func (r *ArtifactRegistry) RegisterField(key string, fn FieldEffect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.field[key] = fn
}

func (r *ArtifactRegistry) RegisterPlayer(key string, fn PlayerEffect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.player[key] = fn
}

func (r *ArtifactRegistry) RegisterTrap(key string, fn TrapEffect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trap[key] = fn
}

// ExecuteField runs the field effect registered for a. Unregistered artifacts are inert.
func (r *ArtifactRegistry) ExecuteField(w *World, actor *Player, a *Artifact, t *Tile) bool {
	r.mu.RLock()
	fn, ok := r.field[a.Def.Key()]
	r.mu.RUnlock()
	return ok && fn(w, actor, a, t)
}

func (r *ArtifactRegistry) ExecutePlayer(w *World, actor *Player, a *Artifact, target *Player) bool {
	r.mu.RLock()
	fn, ok := r.player[a.Def.Key()]
	r.mu.RUnlock()
	return ok && fn(w, actor, a, target)
}

func (r *ArtifactRegistry) ExecuteTrap(w *World, trap *Trap, victim *Player, t *Tile) bool {
	r.mu.RLock()
	fn, ok := r.trap[trap.Def.Key()]
	r.mu.RUnlock()
	return ok && fn(w, trap, victim, t)
}

type StatueRegistry struct {
	mu      sync.RWMutex
	effects map[string]StatueBehavior
}

func (r *StatueRegistry) Register(key string, b StatueBehavior) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[key] = b
}

func (r *StatueRegistry) Lookup(key string) (StatueBehavior, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.effects[key]
	return b, ok
}

// Execute runs the statue's effect without checking required parameters.
func (r *StatueRegistry) Execute(w *World, actor *Player, s *Statue, p StatueParams) bool {
	b, ok := r.Lookup(s.Def.Key())
	return ok && b.Effect(w, actor, s, p)
}

type StructureRegistry struct {
	mu      sync.RWMutex
	effects map[string]StructureEffect
}

func (r *StructureRegistry) Register(key string, fn StructureEffect) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.effects[key] = fn
}

func (r *StructureRegistry) Execute(w *World, actor *Player, s *Structure) bool {
	r.mu.RLock()
	fn, ok := r.effects[s.Def.Key()]
	r.mu.RUnlock()
	return ok && fn(w, actor, s)
}
