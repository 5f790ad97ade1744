package game

import (
	"fmt"
	"sort"

	"golang.org/x/text/cases"
)

// Roster keeps players in seat order. Lookups ignore case, like registered names.
type Roster struct {
	players []*Player
	byName  map[string]*Player // folded name
	max     int
}

func newRoster(max int) *Roster {
	return &Roster{byName: make(map[string]*Player), max: max}
}

// assign seats players in the given order. The roster must be empty.
func (r *Roster) assign(players []*Player) error {
	if len(players) == 0 {
		return fmt.Errorf("a game needs at least one player")
	}
	if len(players) > r.max {
		return fmt.Errorf("roster holds at most %d players, got %d", r.max, len(players))
	}
	for _, p := range players {
		key := fold(p.Name)
		if _, dup := r.byName[key]; dup {
			return fmt.Errorf("duplicate player %s", p.Name)
		}
		r.byName[key] = p
	}
	r.players = append(r.players[:0], players...)
	return nil
}

func fold(name string) string {
	return cases.Fold().String(name)
}

func (r *Roster) Get(name string) (*Player, bool) {
	p, ok := r.byName[fold(name)]
	return p, ok
}

func (r *Roster) At(i int) *Player {
	if i < 0 || i >= len(r.players) {
		return nil
	}
	return r.players[i]
}

func (r *Roster) Len() int { return len(r.players) }

func (r *Roster) Players() []*Player {
	return append([]*Player(nil), r.players...)
}

func (r *Roster) Names() []string {
	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}
	return names
}

// remove drops name and returns its former seat index, or -1.
func (r *Roster) remove(name string) int {
	target, ok := r.byName[fold(name)]
	if !ok {
		return -1
	}
	delete(r.byName, fold(name))
	for i, p := range r.players {
		if p == target {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return i
		}
	}
	return -1
}

// Standing is one line of the final ranking.
type Standing struct {
	Name  string
	Runes int
}

// Ranking orders players by descending runes, ties broken by name.
func (r *Roster) Ranking() []Standing {
	out := make([]Standing, len(r.players))
	for i, p := range r.players {
		out[i] = Standing{Name: p.Name, Runes: p.runes}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Runes != out[j].Runes {
			return out[i].Runes > out[j].Runes
		}
		return out[i].Name < out[j].Name
	})
	return out
}
