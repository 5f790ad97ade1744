package game

import "github.com/wfunc/runeserver/catalog"

// MaxStatueLevel is the highest level a statue can be upgraded to.
const MaxStatueLevel = 3

// Occupant is whatever stands on a tile: a structure or a statue.
type Occupant interface {
	Definition() catalog.Definition
	Owner() string
}

// Structure is a placed instance of a structure definition.
type Structure struct {
	Def      catalog.Definition
	X, Y     int
	owner    string
	lastUsed int
}

func (s *Structure) Definition() catalog.Definition { return s.Def }
func (s *Structure) Owner() string                  { return s.owner }

// Statue is a placed statue. A player owns at most one.
type Statue struct {
	Def      catalog.Definition
	X, Y     int
	owner    string
	level    int
	lastUsed int
}

func (s *Statue) Definition() catalog.Definition { return s.Def }
func (s *Statue) Owner() string                  { return s.owner }
func (s *Statue) Level() int                     { return s.level }

// Artifact is a findable item held in a player's inventory.
type Artifact struct {
	Def      catalog.Definition
	usesLeft int
}

func newArtifact(def catalog.Definition) *Artifact {
	uses := def.Uses
	if uses < 1 {
		uses = 1
	}
	return &Artifact{Def: def, usesLeft: uses}
}

func (a *Artifact) UsesLeft() int { return a.usesLeft }

// Trap is an armed trap artifact waiting on an unpurchased tile.
type Trap struct {
	Def    catalog.Definition
	Setter string
}
