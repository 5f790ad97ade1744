package game

import (
	"sync"
	"testing"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/network"
)

func testSettings() Settings {
	s := DefaultSettings()
	s.Width, s.Height = 4, 4
	s.RoundLimit = 5
	s.ArtifactEveryNthTile = 0
	return s
}

func newTestGame(t *testing.T, players ...string) *Game {
	t.Helper()
	g, err := NewGame(testSettings(), catalog.Default(), NewBehaviors(), players)
	if err != nil {
		t.Fatalf("NewGame failed: %v", err)
	}
	return g
}

// mutate runs fn under the write lock for test setup.
func mutate(t *testing.T, g *Game, fn func(w *World)) {
	t.Helper()
	if _, err := g.Update(func(w *World) error { fn(w); return nil }); err != nil {
		t.Fatal(err)
	}
}

func player(t *testing.T, g *Game, name string) (runes, energy int) {
	t.Helper()
	found := false
	g.View(func(w *World) {
		p, ok := w.Player(name)
		if ok {
			runes, energy, found = p.Runes(), p.Energy(), true
		}
	})
	if !found {
		t.Fatalf("player %s not found", name)
	}
	return runes, energy
}

func giveArtifact(t *testing.T, g *Game, name string, id int) {
	t.Helper()
	mutate(t, g, func(w *World) {
		def, ok := w.Catalog().Get(id)
		if !ok {
			t.Fatalf("catalog has no %d", id)
		}
		p, _ := w.Player(name)
		p.addArtifact(newArtifact(def))
	})
}

func setRunes(t *testing.T, g *Game, name string, runes int) {
	t.Helper()
	mutate(t, g, func(w *World) {
		p, _ := w.Player(name)
		p.runes = runes
	})
}

// recordingNotifier captures dispatcher output.
type recordingNotifier struct {
	mu        sync.Mutex
	broadcast []network.Command
	direct    map[string][]network.Command
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{direct: map[string][]network.Command{}}
}

func (r *recordingNotifier) Broadcast(cmd network.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, cmd)
}

func (r *recordingNotifier) SendTo(player string, cmd network.Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct[player] = append(r.direct[player], cmd)
}

func (r *recordingNotifier) codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.broadcast))
	for i, c := range r.broadcast {
		out[i] = c.Code
	}
	return out
}

func (r *recordingNotifier) last(code string) (network.Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.broadcast) - 1; i >= 0; i-- {
		if r.broadcast[i].Code == code {
			return r.broadcast[i], true
		}
	}
	return network.Command{}, false
}
