package game

// Category selects which status multiplier applies.
type Category string

const (
	CategoryRunes  Category = "RUNES"
	CategoryEnergy Category = "ENERGY"
)

// Player is one seat in a game. Only the World mutates it, under the game lock.
type Player struct {
	Name string

	runes       int
	energy      int
	maxEnergy   int
	tiles       []*Tile
	structures  []*Structure
	statue      *Statue
	artifacts   []*Artifact
	multipliers map[Category]float64
}

func newPlayer(name string, runes, energy, maxEnergy int) *Player {
	p := &Player{
		Name:        name,
		maxEnergy:   maxEnergy,
		multipliers: map[Category]float64{CategoryRunes: 1, CategoryEnergy: 1},
	}
	p.AddRunes(runes)
	p.AddEnergy(energy)
	return p
}

func (p *Player) Runes() int               { return p.runes }
func (p *Player) Energy() int              { return p.energy }
func (p *Player) MaxEnergy() int           { return p.maxEnergy }
func (p *Player) Statue() *Statue          { return p.statue }
func (p *Player) Tiles() []*Tile           { return p.tiles }
func (p *Player) Structures() []*Structure { return p.structures }
func (p *Player) Artifacts() []*Artifact   { return p.artifacts }
func (p *Player) Multiplier(c Category) float64 {
	if m, ok := p.multipliers[c]; ok {
		return m
	}
	return 1
}

// AddRunes applies delta and clamps at zero. It returns the applied change.
func (p *Player) AddRunes(delta int) int {
	before := p.runes
	p.runes += delta
	if p.runes < 0 {
		p.runes = 0
	}
	return p.runes - before
}

// AddEnergy applies delta clamped to [0, max]. It returns the applied change.
func (p *Player) AddEnergy(delta int) int {
	before := p.energy
	p.energy += delta
	if p.energy < 0 {
		p.energy = 0
	}
	if p.energy > p.maxEnergy {
		p.energy = p.maxEnergy
	}
	return p.energy - before
}

func (p *Player) SetMultiplier(c Category, m float64) {
	if m < 0 {
		m = 0
	}
	p.multipliers[c] = m
}

// Artifact returns the first held artifact with the given catalog id.
func (p *Player) Artifact(id int) (*Artifact, bool) {
	for _, a := range p.artifacts {
		if a.Def.ID == id {
			return a, true
		}
	}
	return nil, false
}

func (p *Player) addArtifact(a *Artifact) {
	p.artifacts = append(p.artifacts, a)
}

// consume spends one use of a and drops it when exhausted.
func (p *Player) consume(a *Artifact) {
	a.usesLeft--
	if a.usesLeft > 0 {
		return
	}
	for i, held := range p.artifacts {
		if held == a {
			p.artifacts = append(p.artifacts[:i], p.artifacts[i+1:]...)
			return
		}
	}
}

func (p *Player) addTile(t *Tile) {
	p.tiles = append(p.tiles, t)
}

func (p *Player) addStructure(s *Structure) {
	p.structures = append(p.structures, s)
}

func (p *Player) removeStructure(s *Structure) {
	for i, held := range p.structures {
		if held == s {
			p.structures = append(p.structures[:i], p.structures[i+1:]...)
			return
		}
	}
}
