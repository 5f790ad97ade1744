package game

// Board is a fixed width x height grid of tiles, indexed [y][x].
type Board struct {
	width, height int
	tiles         [][]*Tile
}

// NewBoard allocates every tile through build, which receives the coordinates.
func NewBoard(width, height int, build func(x, y int) *Tile) *Board {
	b := &Board{width: width, height: height, tiles: make([][]*Tile, height)}
	for y := 0; y < height; y++ {
		b.tiles[y] = make([]*Tile, width)
		for x := 0; x < width; x++ {
			t := build(x, y)
			t.X, t.Y = x, y
			b.tiles[y][x] = t
		}
	}
	return b
}

// GenerateBoard lays out the default map: a river down the middle column, one region
// per quadrant and an artifact buried in every nth tile.
func GenerateBoard(s Settings, artifacts []int) *Board {
	riverX := s.Width / 2
	n := 0
	return NewBoard(s.Width, s.Height, func(x, y int) *Tile {
		t := &Tile{Price: s.TilePrice, Yield: 1, Region: regionOf(x, y, s.Width, s.Height)}
		if x == riverX {
			t.River = true
			t.Yield = 2
		}
		if s.ArtifactEveryNthTile > 0 && len(artifacts) > 0 && (y*s.Width+x+1)%s.ArtifactEveryNthTile == 0 {
			t.hidden = artifacts[n%len(artifacts)]
			n++
		}
		return t
	})
}

func regionOf(x, y, w, h int) Region {
	west := x < (w+1)/2
	north := y < (h+1)/2
	switch {
	case north && west:
		return RegionNorthWest
	case north:
		return RegionNorthEast
	case west:
		return RegionSouthWest
	default:
		return RegionSouthEast
	}
}

func (b *Board) Width() int  { return b.width }
func (b *Board) Height() int { return b.height }

// Tile returns the tile at x,y or false when out of bounds.
func (b *Board) Tile(x, y int) (*Tile, bool) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return nil, false
	}
	return b.tiles[y][x], true
}

// SetTile replaces the tile at x,y. Out of bounds coordinates are ignored.
func (b *Board) SetTile(x, y int, t *Tile) bool {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return false
	}
	t.X, t.Y = x, y
	b.tiles[y][x] = t
	return true
}

// Neighbors returns the orthogonal neighbours of x,y: two in a corner, three on an
// edge, four inside.
func (b *Board) Neighbors(x, y int) []*Tile {
	var out []*Tile
	for _, d := range [4][2]int{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} {
		if t, ok := b.Tile(x+d[0], y+d[1]); ok {
			out = append(out, t)
		}
	}
	return out
}

func (b *Board) RiverTiles() []*Tile {
	var out []*Tile
	b.Each(func(t *Tile) {
		if t.River {
			out = append(out, t)
		}
	})
	return out
}

// Each visits tiles row by row.
func (b *Board) Each(fn func(t *Tile)) {
	for _, row := range b.tiles {
		for _, t := range row {
			fn(t)
		}
	}
}

// Reset clears ownership, occupants and traps in place.
func (b *Board) Reset() {
	b.Each(func(t *Tile) { t.release() })
}
