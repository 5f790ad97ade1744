package game

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/network"
)

// Settings are the per-game rule parameters.
type Settings struct {
	Width                int
	Height               int
	RoundLimit           int
	StartRunes           int
	StartEnergy          int
	MaxEnergy            int
	MaxPlayers           int
	TilePrice            int
	EnergyYieldThreshold int
	ArtifactEveryNthTile int
}

// DefaultSettings mirrors the default configuration.
func DefaultSettings() Settings {
	return Settings{
		Width:                8,
		Height:               8,
		RoundLimit:           20,
		StartRunes:           20,
		MaxEnergy:            3,
		MaxPlayers:           4,
		TilePrice:            10,
		EnergyYieldThreshold: 1,
		ArtifactEveryNthTile: 7,
	}
}

// Event is a notification produced while the lock is held and delivered after it is
// released. An empty To means every player in the game.
type Event struct {
	To  string
	Cmd network.Command
}

// Game is the authoritative state of one lobby's match. All access goes through
// Update (write lock) or View (read lock); the World is never reachable otherwise.
type Game struct {
	mu    sync.RWMutex
	world *World
}

// NewGame seats players in order on a freshly generated board.
func NewGame(s Settings, cat *catalog.Catalog, behaviors *Behaviors, players []string) (*Game, error) {
	var hidden []int
	for _, d := range cat.All(catalog.KindArtifact) {
		hidden = append(hidden, d.ID)
	}
	return NewGameWithBoard(s, cat, behaviors, GenerateBoard(s, hidden), players)
}

// NewGameWithBoard is NewGame on a caller-built board.
func NewGameWithBoard(s Settings, cat *catalog.Catalog, behaviors *Behaviors, board *Board, players []string) (*Game, error) {
	if s.RoundLimit < 1 {
		return nil, fmt.Errorf("round limit must be positive, got %d", s.RoundLimit)
	}
	if behaviors == nil {
		behaviors = NewBehaviors()
	}
	w := &World{
		settings:  s,
		catalog:   cat,
		behaviors: behaviors,
		board:     board,
		roster:    newRoster(s.MaxPlayers),
		turns:     newTurnManager(s.RoundLimit),
	}
	seats := make([]*Player, len(players))
	for i, name := range players {
		seats[i] = newPlayer(name, s.StartRunes, s.StartEnergy, s.MaxEnergy)
	}
	if err := w.roster.assign(seats); err != nil {
		return nil, err
	}
	return &Game{world: w}, nil
}

// Update runs fn under the write lock. Events emitted by fn are returned only when fn
// succeeds.
func (g *Game) Update(fn func(w *World) error) ([]Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.world.events = g.world.events[:0]
	if err := fn(g.world); err != nil {
		g.world.events = g.world.events[:0]
		return nil, err
	}
	out := append([]Event(nil), g.world.events...)
	g.world.events = g.world.events[:0]
	return out, nil
}

// View runs fn under the read lock. fn must not mutate the world.
func (g *Game) View(fn func(w *World)) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	fn(g.world)
}

func (g *Game) BuyTile(actor string, x, y int) error {
	_, err := g.Update(func(w *World) error { return w.BuyTile(actor, x, y) })
	return err
}

func (g *Game) PlaceStructure(actor string, x, y, id int) error {
	_, err := g.Update(func(w *World) error { return w.PlaceStructure(actor, x, y, id) })
	return err
}

func (g *Game) UseStructure(actor string, x, y int) error {
	_, err := g.Update(func(w *World) error { return w.UseStructure(actor, x, y) })
	return err
}

func (g *Game) PlaceStatue(actor string, x, y, id int) error {
	_, err := g.Update(func(w *World) error { return w.PlaceStatue(actor, x, y, id) })
	return err
}

func (g *Game) UpgradeStatue(actor string, x, y int) error {
	_, err := g.Update(func(w *World) error { return w.UpgradeStatue(actor, x, y) })
	return err
}

func (g *Game) UseStatue(actor string, x, y int, params string) error {
	_, err := g.Update(func(w *World) error { return w.UseStatue(actor, x, y, params) })
	return err
}

func (g *Game) UseFieldArtifact(actor string, id, x, y int) error {
	_, err := g.Update(func(w *World) error { return w.UseFieldArtifact(actor, id, x, y) })
	return err
}

func (g *Game) UsePlayerArtifact(actor string, id int, target string) error {
	_, err := g.Update(func(w *World) error { return w.UsePlayerArtifact(actor, id, target) })
	return err
}

// Start announces the opening turn. The first player collects no income.
func (g *Game) Start() []Event {
	events, _ := g.Update(func(w *World) error {
		if current := w.roster.At(w.turns.Index()); current != nil {
			w.Emit("", network.NewCommand(network.CodeTurn, current.Name, strconv.Itoa(w.turns.Round())))
		}
		return nil
	})
	return events
}

// NextTurn advances the turn unconditionally and reports whether the game is over.
func (g *Game) NextTurn() bool {
	var over bool
	_, _ = g.Update(func(w *World) error {
		over = w.NextTurn()
		return nil
	})
	return over
}

// RemovePlayer takes a departed player out of the game.
func (g *Game) RemovePlayer(name string) []Event {
	events, _ := g.Update(func(w *World) error {
		w.RemovePlayer(name)
		return nil
	})
	return events
}

// End stops the game early; the ranking is frozen as it stands.
func (g *Game) End() []Event {
	events, _ := g.Update(func(w *World) error {
		w.finish()
		return nil
	})
	return events
}

func (g *Game) Over() bool {
	var over bool
	g.View(func(w *World) { over = w.turns.Over() })
	return over
}

func (g *Game) Ranking() []Standing {
	var r []Standing
	g.View(func(w *World) { r = w.roster.Ranking() })
	return r
}

// CurrentPlayer returns the name of the player whose turn it is.
func (g *Game) CurrentPlayer() string {
	var name string
	g.View(func(w *World) { name = w.CurrentPlayer() })
	return name
}

func (g *Game) Round() int {
	var round int
	g.View(func(w *World) { round = w.turns.Round() })
	return round
}

func (g *Game) Players() []string {
	var names []string
	g.View(func(w *World) { names = w.roster.Names() })
	return names
}
