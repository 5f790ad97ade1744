package game

import "strconv"

type Region string

const (
	RegionNorthWest Region = "NORTHWEST"
	RegionNorthEast Region = "NORTHEAST"
	RegionSouthWest Region = "SOUTHWEST"
	RegionSouthEast Region = "SOUTHEAST"
)

// Tile is one board cell. Position, price, river and region never change after the
// board is built; the remaining fields go through the setters.
type Tile struct {
	X, Y   int
	Price  int
	Yield  int
	River  bool
	Region Region

	owner     string
	purchased bool
	occupant  Occupant
	hidden    int
	trap      *Trap
}

func (t *Tile) Owner() string      { return t.owner }
func (t *Tile) Purchased() bool    { return t.purchased }
func (t *Tile) Occupant() Occupant { return t.occupant }
func (t *Tile) Trap() *Trap        { return t.trap }

// HiddenArtifact is the catalog id of the artifact buried here, 0 when none.
func (t *Tile) HiddenArtifact() int { return t.hidden }

func (t *Tile) SetOwner(name string)     { t.owner = name }
func (t *Tile) SetPurchased(b bool)      { t.purchased = b }
func (t *Tile) SetOccupant(o Occupant)   { t.occupant = o }
func (t *Tile) SetHiddenArtifact(id int) { t.hidden = id }
func (t *Tile) setTrap(trap *Trap)       { t.trap = trap }
func (t *Tile) OwnedBy(name string) bool { return t.purchased && t.owner == name }
func (t *Tile) Coordinates() (int, int)  { return t.X, t.Y }
func (t *Tile) String() string           { return strconv.Itoa(t.X) + "," + strconv.Itoa(t.Y) }

// Structure returns the occupant when it is a structure.
func (t *Tile) Structure() (*Structure, bool) {
	s, ok := t.occupant.(*Structure)
	return s, ok
}

// Statue returns the occupant when it is a statue.
func (t *Tile) Statue() (*Statue, bool) {
	s, ok := t.occupant.(*Statue)
	return s, ok
}

// release returns the tile to the bank without touching its static attributes.
func (t *Tile) release() {
	t.owner = ""
	t.purchased = false
	t.occupant = nil
	t.trap = nil
}
