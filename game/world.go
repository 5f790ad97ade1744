package game

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/network"
)

// World is the state aggregate behind a Game's lock: board, roster and turns.
// A *World is only handed out inside Game.Update / Game.View and to behaviors that
// run within them.
type World struct {
	settings  Settings
	catalog   *catalog.Catalog
	behaviors *Behaviors
	board     *Board
	roster    *Roster
	turns     *TurnManager
	events    []Event
}

func (w *World) Settings() Settings        { return w.settings }
func (w *World) Catalog() *catalog.Catalog { return w.catalog }
func (w *World) Board() *Board             { return w.board }
func (w *World) Roster() *Roster           { return w.roster }
func (w *World) Turns() *TurnManager       { return w.turns }
func (w *World) Player(name string) (*Player, bool) {
	return w.roster.Get(name)
}

// Emit queues a notification for delivery once the lock is released.
func (w *World) Emit(to string, cmd network.Command) {
	w.events = append(w.events, Event{To: to, Cmd: cmd})
}

// CurrentPlayer is the name of the seat whose turn it is.
func (w *World) CurrentPlayer() string {
	if p := w.roster.At(w.turns.Index()); p != nil {
		return p.Name
	}
	return ""
}

// RequireTurn fails unless actor is seated, the game is running and it is actor's turn.
func (w *World) RequireTurn(actor string) error {
	if w.turns.Over() {
		return errs.ErrGameOver
	}
	p, ok := w.roster.Get(actor)
	if !ok {
		return errs.ErrPlayerNotFound
	}
	if w.CurrentPlayer() != p.Name {
		return errs.WithDetail(errs.ErrNotYourTurn, "current player is "+w.CurrentPlayer())
	}
	return nil
}

func (w *World) actor(name string) (*Player, error) {
	p, ok := w.roster.Get(name)
	if !ok {
		return nil, errs.WithDetail(errs.ErrPlayerNotFound, name)
	}
	return p, nil
}

func (w *World) tile(x, y int) (*Tile, error) {
	t, ok := w.board.Tile(x, y)
	if !ok {
		return nil, errs.WithDetail(errs.ErrTileNotFound, fmt.Sprintf("%d,%d", x, y))
	}
	return t, nil
}

func insufficient(have, need int) error {
	return errs.WithDetail(errs.ErrInsufficientRunes, fmt.Sprintf("need %d, have %d", need, have))
}

// BuyTile transfers an unpurchased tile to actor for its price. A buried artifact goes
// to the buyer; an armed trap set by someone else goes off.
func (w *World) BuyTile(actor string, x, y int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	t, err := w.tile(x, y)
	if err != nil {
		return err
	}
	if t.purchased {
		return errs.ErrTilePurchased
	}
	if p.runes < t.Price {
		return insufficient(p.runes, t.Price)
	}

	p.AddRunes(-t.Price)
	t.SetPurchased(true)
	t.SetOwner(p.Name)
	p.addTile(t)

	if id := t.hidden; id != 0 {
		t.hidden = 0
		if def, ok := w.catalog.Lookup(id, catalog.KindArtifact); ok {
			p.addArtifact(newArtifact(def))
			w.Emit(p.Name, network.NewCommand(network.CodeUpdate, p.Name, "FIND", strconv.Itoa(def.ID)))
		}
	}
	if trap := t.trap; trap != nil {
		t.setTrap(nil)
		if trap.Setter != p.Name && w.behaviors.Artifacts.ExecuteTrap(w, trap, p, t) {
			w.Emit("", network.NewCommand(network.CodeUpdate, p.Name, "TRAP", t.String()))
		}
	}
	return nil
}

// PlaceStructure builds a structure from the catalog on a free tile actor owns.
func (w *World) PlaceStructure(actor string, x, y, id int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	def, ok := w.catalog.Lookup(id, catalog.KindStructure)
	if !ok {
		return errs.WithDetail(errs.ErrEntityNotFound, "structure "+strconv.Itoa(id))
	}
	t, err := w.placementTile(p, x, y)
	if err != nil {
		return err
	}
	if def.RiverOnly && !t.River {
		return errs.WithDetail(errs.ErrInvalidParameters, def.Name+" must stand on a river")
	}
	if p.runes < def.Price {
		return insufficient(p.runes, def.Price)
	}

	p.AddRunes(-def.Price)
	s := &Structure{Def: def, X: x, Y: y, owner: p.Name, lastUsed: -1}
	t.SetOccupant(s)
	p.addStructure(s)
	return nil
}

// UseStructure runs the behavior of a structure actor owns, once per turn, paying its
// energy cost on success.
func (w *World) UseStructure(actor string, x, y int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	t, err := w.tile(x, y)
	if err != nil {
		return err
	}
	s, ok := t.Structure()
	if !ok {
		return errs.WithDetail(errs.ErrEntityNotFound, "no structure on "+t.String())
	}
	if s.owner != p.Name {
		return errs.ErrEntityNotOwned
	}
	if s.lastUsed == w.turns.Seq() {
		return errs.WithDetail(errs.ErrEffectFailed, "already used this turn")
	}
	if p.energy < s.Def.EnergyCost {
		return errs.WithDetail(errs.ErrInsufficientEnergy,
			fmt.Sprintf("need %d, have %d", s.Def.EnergyCost, p.energy))
	}
	if !w.behaviors.Structures.Execute(w, p, s) {
		return errs.WithDetail(errs.ErrEffectFailed, s.Def.Name)
	}
	p.AddEnergy(-s.Def.EnergyCost)
	s.lastUsed = w.turns.Seq()
	return nil
}

// PlaceStatue erects actor's single statue on a free tile they own.
func (w *World) PlaceStatue(actor string, x, y, id int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	if p.statue != nil {
		return errs.ErrStatueAlreadyPlaced
	}
	def, ok := w.catalog.Lookup(id, catalog.KindStatue)
	if !ok {
		return errs.WithDetail(errs.ErrEntityNotFound, "statue "+strconv.Itoa(id))
	}
	t, err := w.placementTile(p, x, y)
	if err != nil {
		return err
	}
	if p.runes < def.Price {
		return insufficient(p.runes, def.Price)
	}

	p.AddRunes(-def.Price)
	s := &Statue{Def: def, X: x, Y: y, owner: p.Name, level: 1, lastUsed: -1}
	t.SetOccupant(s)
	p.statue = s
	return nil
}

func (w *World) placementTile(p *Player, x, y int) (*Tile, error) {
	t, err := w.tile(x, y)
	if err != nil {
		return nil, err
	}
	if !t.OwnedBy(p.Name) {
		return nil, errs.ErrTileNotOwned
	}
	if t.occupant != nil {
		return nil, errs.ErrTileOccupied
	}
	return t, nil
}

func (w *World) ownedStatue(p *Player, x, y int) (*Statue, error) {
	t, err := w.tile(x, y)
	if err != nil {
		return nil, err
	}
	s, ok := t.Statue()
	if !ok {
		return nil, errs.WithDetail(errs.ErrEntityNotFound, "no statue on "+t.String())
	}
	if s.owner != p.Name {
		return nil, errs.ErrEntityNotOwned
	}
	return s, nil
}

// UpgradeStatue raises the statue on x,y by one level for its upgrade price.
func (w *World) UpgradeStatue(actor string, x, y int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	s, err := w.ownedStatue(p, x, y)
	if err != nil {
		return err
	}
	if s.level >= MaxStatueLevel {
		return errs.ErrMaxLevel
	}
	if p.runes < s.Def.UpgradePrice {
		return insufficient(p.runes, s.Def.UpgradePrice)
	}
	p.AddRunes(-s.Def.UpgradePrice)
	s.level++
	return nil
}

// UseStatue parses params, checks the statue's declared requirements and runs its
// behavior, once per turn.
func (w *World) UseStatue(actor string, x, y int, params string) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	s, err := w.ownedStatue(p, x, y)
	if err != nil {
		return err
	}
	if s.lastUsed == w.turns.Seq() {
		return errs.WithDetail(errs.ErrEffectFailed, "already used this turn")
	}
	behavior, ok := w.behaviors.Statues.Lookup(s.Def.Key())
	if !ok {
		return errs.WithDetail(errs.ErrEffectFailed, s.Def.Name)
	}
	raw, ok := network.ParseParams(params)
	if !ok {
		return errs.WithDetail(errs.ErrInvalidParameters, "malformed parameter string")
	}
	if missing := raw.Missing(behavior.Requires...); len(missing) > 0 {
		return errs.WithDetail(errs.ErrInvalidParameters, "missing "+strings.Join(missing, ","))
	}
	bag, err := w.resolveParams(p, raw)
	if err != nil {
		return err
	}
	if !behavior.Effect(w, p, s, bag) {
		return errs.WithDetail(errs.ErrEffectFailed, s.Def.Name)
	}
	s.lastUsed = w.turns.Seq()
	return nil
}

// UseFieldArtifact aims a held artifact at a tile. TRAP artifacts arm a trap on an
// unpurchased tile; FIELD artifacts dispatch to the field behaviors. The artifact is
// consumed only on success.
func (w *World) UseFieldArtifact(actor string, id, x, y int) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	a, ok := p.Artifact(id)
	if !ok {
		return errs.ErrArtifactNotOwned
	}
	t, err := w.tile(x, y)
	if err != nil {
		return err
	}
	switch a.Def.UseType {
	case catalog.UseTrap:
		if t.purchased {
			return errs.ErrTilePurchased
		}
		if t.trap != nil {
			return errs.WithDetail(errs.ErrTileOccupied, "tile is already trapped")
		}
		t.setTrap(&Trap{Def: a.Def, Setter: p.Name})
	case catalog.UseField:
		if !w.behaviors.Artifacts.ExecuteField(w, p, a, t) {
			return errs.WithDetail(errs.ErrEffectFailed, a.Def.Name)
		}
	default:
		return errs.WithDetail(errs.ErrInvalidParameters, a.Def.Name+" targets a player")
	}
	p.consume(a)
	return nil
}

// UsePlayerArtifact aims a held PLAYER artifact at the named target, possibly actor.
func (w *World) UsePlayerArtifact(actor string, id int, target string) error {
	p, err := w.actor(actor)
	if err != nil {
		return err
	}
	a, ok := p.Artifact(id)
	if !ok {
		return errs.ErrArtifactNotOwned
	}
	victim, ok := w.roster.Get(target)
	if !ok {
		return errs.WithDetail(errs.ErrTargetNotFound, target)
	}
	if a.Def.UseType != catalog.UsePlayer {
		return errs.WithDetail(errs.ErrInvalidParameters, a.Def.Name+" targets a tile")
	}
	if !w.behaviors.Artifacts.ExecutePlayer(w, p, a, victim) {
		return errs.WithDetail(errs.ErrEffectFailed, a.Def.Name)
	}
	p.consume(a)
	return nil
}

// EndTurn is NextTurn guarded by the turn check.
func (w *World) EndTurn(actor string) error {
	if err := w.RequireTurn(actor); err != nil {
		return err
	}
	w.NextTurn()
	return nil
}

// NextTurn advances round-robin. When the round limit is reached the game ends and the
// ranking is announced; otherwise the new current player collects income.
func (w *World) NextTurn() bool {
	if w.turns.Over() {
		return true
	}
	w.turns.next(w.roster.Len())
	if w.turns.Over() {
		w.announceEnd()
		return true
	}
	w.startTurn()
	return false
}

func (w *World) startTurn() {
	current := w.roster.At(w.turns.Index())
	if current == nil {
		return
	}
	w.ResourcesIncome(current)
	w.Emit("", network.NewCommand(network.CodeTurn, current.Name, strconv.Itoa(w.turns.Round())))
}

// ResourcesIncome credits p with the yield of every owned tile, then credits each owned
// structure as runes when its yield exceeds the energy threshold, else as energy.
func (w *World) ResourcesIncome(p *Player) {
	runes, energy := 0, 0
	for _, t := range p.tiles {
		runes += t.Yield
	}
	for _, s := range p.structures {
		if s.Def.Yield > w.settings.EnergyYieldThreshold {
			runes += s.Def.Yield
		} else {
			energy += s.Def.Yield
		}
	}
	p.AddRunes(int(float64(runes) * p.Multiplier(CategoryRunes)))
	p.AddEnergy(int(float64(energy) * p.Multiplier(CategoryEnergy)))
}

// RemovePlayer releases everything name owned and repairs the turn order. A game left
// with fewer than two players ends.
func (w *World) RemovePlayer(name string) {
	p, ok := w.roster.Get(name)
	if !ok {
		return
	}
	for _, t := range p.tiles {
		t.release()
	}
	w.board.Each(func(t *Tile) {
		if t.trap != nil && t.trap.Setter == p.Name {
			t.setTrap(nil)
		}
	})
	seat := w.roster.remove(name)
	if w.turns.Over() {
		return
	}
	changed := w.turns.seatRemoved(seat, w.roster.Len())
	if w.roster.Len() < 2 {
		w.turns.end()
	}
	if w.turns.Over() {
		w.announceEnd()
		return
	}
	if changed {
		w.startTurn()
	}
}

func (w *World) finish() {
	if w.turns.Over() {
		return
	}
	w.turns.end()
	w.announceEnd()
}

func (w *World) announceEnd() {
	w.Emit("", network.NewCommand(network.CodeGameEnded, EncodeRanking(w.roster.Ranking())))
}

// EncodeRanking renders standings as name:runes;name:runes.
func EncodeRanking(r []Standing) string {
	if len(r) == 0 {
		return "NONE"
	}
	parts := make([]string, len(r))
	for i, s := range r {
		parts[i] = s.Name + ":" + strconv.Itoa(s.Runes)
	}
	return strings.Join(parts, ";")
}

// TileInfo describes a tile for TINF without revealing buried artifacts or traps.
func (w *World) TileInfo(t *Tile) network.Params {
	info := network.Params{
		"PRICE":     strconv.Itoa(t.Price),
		"YIELD":     strconv.Itoa(t.Yield),
		"RIVER":     strconv.FormatBool(t.River),
		"REGION":    string(t.Region),
		"PURCHASED": strconv.FormatBool(t.purchased),
	}
	if t.owner != "" {
		info["OWNER"] = t.owner
	}
	if o := t.occupant; o != nil {
		info["OCCUPANT"] = o.Definition().Name
		if s, ok := o.(*Statue); ok {
			info["LEVEL"] = strconv.Itoa(s.level)
		}
	}
	return info
}

// PlayerInfo describes a player for PINF.
func (w *World) PlayerInfo(p *Player) network.Params {
	info := network.Params{
		"RUNES":      strconv.Itoa(p.runes),
		"ENERGY":     strconv.Itoa(p.energy),
		"TILES":      strconv.Itoa(len(p.tiles)),
		"STRUCTURES": strconv.Itoa(len(p.structures)),
	}
	if p.statue != nil {
		info["STATUE"] = p.statue.Def.Name + "@" + strconv.Itoa(p.statue.level)
	}
	if len(p.artifacts) > 0 {
		ids := make([]string, len(p.artifacts))
		for i, a := range p.artifacts {
			ids[i] = strconv.Itoa(a.Def.ID)
		}
		info["ARTIFACTS"] = strings.Join(ids, ",")
	}
	return info
}
