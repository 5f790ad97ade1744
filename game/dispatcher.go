package game

import (
	"strconv"
	"strings"

	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/network"
)

// Notifier delivers game notifications to the players of one lobby.
type Notifier interface {
	Broadcast(cmd network.Command)
	SendTo(player string, cmd network.Command)
}

// Dispatcher routes in-game commands to the action handlers. Actions run under the
// game's write lock; notifications go out after it is released.
type Dispatcher struct {
	game   *Game
	notify Notifier
}

func NewDispatcher(g *Game, n Notifier) *Dispatcher {
	return &Dispatcher{game: g, notify: n}
}

// Handles reports whether code is an in-game command.
func Handles(code string) bool {
	switch code {
	case network.CodeBuyTile, network.CodePlaceStructure, network.CodeUseStructure,
		network.CodePlaceStatue, network.CodeUpgradeStatue, network.CodeUseStatue,
		network.CodeUseFieldArt, network.CodeUsePlayerArt, network.CodeEndTurn,
		network.CodeGetTile, network.CodeGetPlayer:
		return true
	}
	return false
}

// Handle executes cmd for actor and returns the reply for actor alone.
func (d *Dispatcher) Handle(actor string, cmd network.Command) (network.Command, error) {
	switch cmd.Code {
	case network.CodeGetTile:
		return d.tileInfo(cmd)
	case network.CodeGetPlayer:
		return d.playerInfo(cmd)
	case network.CodeEndTurn:
		return d.act(actor, cmd, func(w *World) error { return w.EndTurn(actor) }, false)
	}

	action, err := d.action(actor, cmd)
	if err != nil {
		return network.Command{}, err
	}
	return d.act(actor, cmd, func(w *World) error {
		if err := w.RequireTurn(actor); err != nil {
			return err
		}
		return action(w)
	}, true)
}

func (d *Dispatcher) action(actor string, cmd network.Command) (func(w *World) error, error) {
	ints, err := intArgs(cmd)
	if err != nil {
		return nil, err
	}
	switch cmd.Code {
	case network.CodeBuyTile:
		return func(w *World) error { return w.BuyTile(actor, ints[0], ints[1]) }, nil
	case network.CodePlaceStructure:
		return func(w *World) error { return w.PlaceStructure(actor, ints[0], ints[1], ints[2]) }, nil
	case network.CodeUseStructure:
		return func(w *World) error { return w.UseStructure(actor, ints[0], ints[1]) }, nil
	case network.CodePlaceStatue:
		return func(w *World) error { return w.PlaceStatue(actor, ints[0], ints[1], ints[2]) }, nil
	case network.CodeUpgradeStatue:
		return func(w *World) error { return w.UpgradeStatue(actor, ints[0], ints[1]) }, nil
	case network.CodeUseStatue:
		params := cmd.Arg(2)
		return func(w *World) error { return w.UseStatue(actor, ints[0], ints[1], params) }, nil
	case network.CodeUseFieldArt:
		return func(w *World) error { return w.UseFieldArtifact(actor, ints[0], ints[1], ints[2]) }, nil
	case network.CodeUsePlayerArt:
		target := cmd.Arg(1)
		return func(w *World) error { return w.UsePlayerArtifact(actor, ints[0], target) }, nil
	}
	return nil, errs.WithDetail(errs.ErrInvalidCommand, cmd.Code+" is not a game action")
}

// intArgs decodes the numeric leading arguments of an action.
func intArgs(cmd network.Command) ([]int, error) {
	var n int
	switch cmd.Code {
	case network.CodeBuyTile, network.CodeUseStructure, network.CodeUpgradeStatue,
		network.CodeUseStatue, network.CodeGetTile:
		n = 2
	case network.CodePlaceStructure, network.CodePlaceStatue, network.CodeUseFieldArt:
		n = 3
	case network.CodeUsePlayerArt:
		n = 1
	}
	if len(cmd.Args) < n {
		return nil, errs.WithDetail(errs.ErrInvalidCommand, "missing arguments")
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(strings.TrimSpace(cmd.Args[i]))
		if err != nil {
			return nil, errs.WithDetail(errs.ErrInvalidCommand, "not a number: "+cmd.Args[i])
		}
		out[i] = v
	}
	return out, nil
}

func (d *Dispatcher) act(actor string, cmd network.Command, fn func(w *World) error, announce bool) (network.Command, error) {
	var resources []network.Command
	events, err := d.game.Update(func(w *World) error {
		if err := fn(w); err != nil {
			return err
		}
		for _, p := range w.roster.players {
			resources = append(resources, network.NewCommand(network.CodeResources,
				p.Name, strconv.Itoa(p.runes), strconv.Itoa(p.energy)))
		}
		return nil
	})
	if err != nil {
		return network.Command{}, err
	}

	if announce {
		d.notify.Broadcast(network.NewCommand(network.CodeUpdate, actor, cmd.Code, strings.Join(cmd.Args, ",")))
	}
	for _, r := range resources {
		d.notify.Broadcast(r)
	}
	d.Deliver(events)
	return network.OK(cmd), nil
}

// Deliver sends events produced under the lock.
func (d *Dispatcher) Deliver(events []Event) {
	for _, e := range events {
		if e.To == "" {
			d.notify.Broadcast(e.Cmd)
		} else {
			d.notify.SendTo(e.To, e.Cmd)
		}
	}
}

func (d *Dispatcher) tileInfo(cmd network.Command) (network.Command, error) {
	ints, err := intArgs(cmd)
	if err != nil {
		return network.Command{}, err
	}
	var (
		info  network.Params
		found bool
	)
	d.game.View(func(w *World) {
		if t, ok := w.board.Tile(ints[0], ints[1]); ok {
			info, found = w.TileInfo(t), true
		}
	})
	if !found {
		return network.Command{}, errs.ErrTileNotFound
	}
	return network.NewCommand(network.CodeTileInfo, cmd.Arg(0), cmd.Arg(1), info.Encode()), nil
}

func (d *Dispatcher) playerInfo(cmd network.Command) (network.Command, error) {
	name := cmd.Arg(0)
	var (
		info  network.Params
		found bool
	)
	d.game.View(func(w *World) {
		if p, ok := w.roster.Get(name); ok {
			info, found = w.PlayerInfo(p), true
			name = p.Name
		}
	})
	if !found {
		return network.Command{}, errs.WithDetail(errs.ErrPlayerNotFound, name)
	}
	return network.NewCommand(network.CodePlayerInfo, name, info.Encode()), nil
}
