// lobby/lobby.go
package lobby

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/network"
	"github.com/wfunc/runeserver/state"
)

// Rules is what a lobby needs to build its game.
type Rules struct {
	Settings  game.Settings
	Catalog   *catalog.Catalog
	Behaviors *game.Behaviors
	// OnEnd receives the final ranking of every game that ends.
	OnEnd func(lobby string, ranking []game.Standing)
}

// Lobby is a named room with a fixed capacity and a WAITING -> IN_GAME -> ENDED
// lifecycle. Membership changes and transitions are serialized by mu; broadcasts read
// a copy-on-write snapshot of the player list and never take mu.
type Lobby struct {
	ID           string
	Capacity     int
	CreatedAt    time.Time
	StateMachine state.StateMachine
	rules        Rules
	broadcaster  Broadcaster
	players      atomic.Pointer[[]string]
	mu           sync.Mutex
}

// NewLobby creates a lobby in the WAITING state.
func NewLobby(id string, capacity int, rules Rules, broadcaster Broadcaster) *Lobby {
	l := &Lobby{
		ID:          id,
		Capacity:    capacity,
		CreatedAt:   time.Now(),
		rules:       rules,
		broadcaster: broadcaster,
	}
	l.players.Store(&[]string{})

	sm := state.NewBaseStateMachine(state.NewWaitingState(l))
	_ = sm.AddTransition(state.Waiting, state.InGame, func() bool { return len(l.Players()) == l.Capacity })
	_ = sm.AddTransition(state.InGame, state.Ended, nil)
	l.StateMachine = sm
	return l
}

// --- state.LobbyContext ---

func (l *Lobby) GetID() string {
	return l.ID
}

// Broadcast sends cmd to every player currently in the lobby.
func (l *Lobby) Broadcast(cmd network.Command) {
	for _, name := range l.Players() {
		l.SendTo(name, cmd)
	}
}

// SendTo sends cmd to one player. Delivery failures are the session layer's concern.
func (l *Lobby) SendTo(player string, cmd network.Command) {
	if l.broadcaster == nil {
		return
	}
	if err := l.broadcaster.SendToPlayer(player, cmd); err != nil {
		logger.Log.Debugf("Lobby %s could not reach %s: %v", l.ID, player, err)
	}
}

// --- membership ---

// Players returns the players in join order.
func (l *Lobby) Players() []string {
	return *l.players.Load()
}

func (l *Lobby) HasPlayer(name string) bool {
	for _, p := range l.Players() {
		if p == name {
			return true
		}
	}
	return false
}

// Status is the id of the current lifecycle state.
func (l *Lobby) Status() string {
	return l.StateMachine.GetCurrentState().GetID()
}

// AddPlayer seats name while the lobby is WAITING and under capacity.
func (l *Lobby) AddPlayer(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Status() != state.Waiting {
		return errs.ErrGameStarted
	}
	current := l.Players()
	if len(current) >= l.Capacity {
		return errs.ErrLobbyFull
	}
	for _, p := range current {
		if p == name {
			return errs.ErrAlreadyInLobby
		}
	}
	next := append(append(make([]string, 0, len(current)+1), current...), name)
	l.players.Store(&next)
	return nil
}

// RemovePlayer drops name. In a running game the player loses their seat and the
// others are told; a game left with fewer than two players ends. It reports whether
// the lobby is now empty.
func (l *Lobby) RemovePlayer(name string) (empty bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.Players()
	next := make([]string, 0, len(current))
	for _, p := range current {
		if p != name {
			next = append(next, p)
		}
	}
	if len(next) == len(current) {
		return len(current) == 0
	}
	l.players.Store(&next)

	if inGame, ok := l.StateMachine.GetCurrentState().(*state.InGameState); ok {
		l.Broadcast(network.NewCommand(network.CodeDisconnected, name))
		inGame.RemovePlayer(name)
		if inGame.Game.Over() {
			l.endLocked(inGame)
		}
	}
	return len(next) == 0
}

// --- lifecycle ---

// StartGame builds the game and enters IN_GAME. It succeeds only from WAITING with
// exactly Capacity players.
func (l *Lobby) StartGame() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.Status() != state.Waiting {
		return errs.ErrGameStarted
	}
	players := l.Players()
	if len(players) != l.Capacity {
		return errs.WithDetail(errs.ErrLobbyNotReady,
			strconv.Itoa(len(players))+"/"+strconv.Itoa(l.Capacity)+" players")
	}
	g, err := game.NewGame(l.rules.Settings, l.rules.Catalog, l.rules.Behaviors, players)
	if err != nil {
		return errs.Wrap(errs.CodeInternal, err)
	}
	if err := l.StateMachine.ChangeState(state.NewInGameState(l, g)); err != nil {
		return errs.ErrGameStarted
	}
	return nil
}

// EndGame moves a running game to ENDED. Ending a lobby that is not IN_GAME fails.
func (l *Lobby) EndGame() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	inGame, ok := l.StateMachine.GetCurrentState().(*state.InGameState)
	if !ok {
		return errs.ErrNotInGame
	}
	l.endLocked(inGame)
	return nil
}

func (l *Lobby) endLocked(inGame *state.InGameState) {
	ended := state.NewEndedState(l, inGame.Game, l.rules.OnEnd)
	if err := l.StateMachine.ChangeState(ended); err != nil {
		logger.Log.Errorf("Lobby %s could not end its game: %v", l.ID, err)
	}
}

// Game returns the lobby's game once started.
func (l *Lobby) Game() (*game.Game, bool) {
	switch s := l.StateMachine.GetCurrentState().(type) {
	case *state.InGameState:
		return s.Game, true
	case *state.EndedState:
		return s.Game, true
	}
	return nil, false
}

// HandleCommand forwards a game command from player to the current state. A command
// that finishes the game moves the lobby to ENDED.
func (l *Lobby) HandleCommand(player string, cmd network.Command) (network.Command, error) {
	if !l.HasPlayer(player) {
		return network.Command{}, errs.ErrNotInLobby
	}
	current := l.StateMachine.GetCurrentState()
	reply, err := current.HandleAction(player, cmd)
	if err != nil {
		return reply, err
	}
	if inGame, ok := current.(*state.InGameState); ok && inGame.Game.Over() {
		l.mu.Lock()
		if l.StateMachine.GetCurrentState() == current {
			l.endLocked(inGame)
		}
		l.mu.Unlock()
	}
	return reply, nil
}

// Summary renders the lobby for LIST as name:count/capacity:STATUS.
func (l *Lobby) Summary() string {
	return l.ID + ":" + strconv.Itoa(len(l.Players())) + "/" + strconv.Itoa(l.Capacity) + ":" + l.Status()
}

// --- lobby manager ---

// Manager owns every lobby, keyed by case-folded id.
type Manager struct {
	lobbies map[string]*Lobby
	rules   Rules
	mutex   sync.RWMutex
}

// NewLobbyManager builds a manager whose lobbies play by rules.
func NewLobbyManager(rules Rules) *Manager {
	return &Manager{
		lobbies: make(map[string]*Lobby),
		rules:   rules,
	}
}

func key(id string) string {
	return strings.ToLower(id)
}

// CreateLobby registers a new lobby. Capacity must be between 2 and the game's
// maximum player count.
func (m *Manager) CreateLobby(id string, capacity int, broadcaster Broadcaster) (*Lobby, error) {
	if id == "" {
		return nil, errs.WithDetail(errs.ErrInvalidCommand, "empty lobby name")
	}
	if capacity < 2 || (m.rules.Settings.MaxPlayers > 0 && capacity > m.rules.Settings.MaxPlayers) {
		return nil, errs.WithDetail(errs.ErrInvalidCapacity,
			"capacity must be 2.."+strconv.Itoa(m.rules.Settings.MaxPlayers))
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.lobbies[key(id)]; exists {
		return nil, errs.ErrLobbyExists
	}
	l := NewLobby(id, capacity, m.rules, broadcaster)
	m.lobbies[key(id)] = l
	logger.Log.Infof("Lobby %s created with capacity %d", id, capacity)
	return l, nil
}

// RemoveIfEmpty deletes the lobby when nobody is left in it.
func (m *Manager) RemoveIfEmpty(id string) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	l, exists := m.lobbies[key(id)]
	if !exists || len(l.Players()) > 0 {
		return false
	}
	delete(m.lobbies, key(id))
	logger.Log.Infof("Lobby %s removed", id)
	return true
}

func (m *Manager) GetLobby(id string) (*Lobby, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	l, exists := m.lobbies[key(id)]
	return l, exists
}

// Lobbies returns every lobby ordered by creation time.
func (m *Manager) Lobbies() []*Lobby {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]*Lobby, 0, len(m.lobbies))
	for _, l := range m.lobbies {
		out = append(out, l)
	}
	sortLobbies(out)
	return out
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.lobbies)
}

func sortLobbies(ls []*Lobby) {
	sort.Slice(ls, func(i, j int) bool {
		if !ls[i].CreatedAt.Equal(ls[j].CreatedAt) {
			return ls[i].CreatedAt.Before(ls[j].CreatedAt)
		}
		return ls[i].ID < ls[j].ID
	})
}
