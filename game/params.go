package game

import (
	"strconv"
	"strings"

	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/network"
)

// Statue parameter keys.
const (
	ParamPlayer    = "PLAYER"
	ParamTile      = "TILE"
	ParamStructure = "STRUCTURE"
	ParamArtifact  = "ARTIFACT"
)

// StatueParams is the resolved parameter bag handed to statue behaviors. Fields whose
// key was not supplied are nil.
type StatueParams struct {
	Player    *Player
	Tile      *Tile
	Structure *Structure
	Artifact  *Artifact
}

func (w *World) resolveParams(actor *Player, raw network.Params) (StatueParams, error) {
	var bag StatueParams
	if name, ok := raw[ParamPlayer]; ok {
		p, found := w.roster.Get(name)
		if !found {
			return bag, errs.WithDetail(errs.ErrTargetNotFound, name)
		}
		bag.Player = p
	}
	if v, ok := raw[ParamTile]; ok {
		t, err := w.tileParam(v)
		if err != nil {
			return bag, err
		}
		bag.Tile = t
	}
	if v, ok := raw[ParamStructure]; ok {
		t, err := w.tileParam(v)
		if err != nil {
			return bag, err
		}
		s, found := t.Structure()
		if !found {
			return bag, errs.WithDetail(errs.ErrEntityNotFound, "no structure on "+t.String())
		}
		bag.Structure = s
	}
	if v, ok := raw[ParamArtifact]; ok {
		id, err := strconv.Atoi(v)
		if err != nil {
			return bag, errs.WithDetail(errs.ErrInvalidParameters, "artifact id "+v)
		}
		a, found := actor.Artifact(id)
		if !found {
			return bag, errs.ErrArtifactNotOwned
		}
		bag.Artifact = a
	}
	return bag, nil
}

// tileParam decodes "x,y" into a board tile.
func (w *World) tileParam(v string) (*Tile, error) {
	xs, ys, ok := strings.Cut(v, ",")
	if !ok {
		return nil, errs.WithDetail(errs.ErrInvalidParameters, "tile "+v)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(xs))
	y, errY := strconv.Atoi(strings.TrimSpace(ys))
	if errX != nil || errY != nil {
		return nil, errs.WithDetail(errs.ErrInvalidParameters, "tile "+v)
	}
	return w.tile(x, y)
}
