package state

import (
	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/network"
)

// Lobby lifecycle state ids. They double as the status shown in lobby listings.
const (
	Waiting = "WAITING"
	InGame  = "IN_GAME"
	Ended   = "ENDED"
)

// LobbyStateBase carries the id and lobby shared by every lobby state.
type LobbyStateBase struct {
	ID    string
	Lobby LobbyContext
}

func (s *LobbyStateBase) GetID() string {
	return s.ID
}

func (s *LobbyStateBase) OnEnter() {}

func (s *LobbyStateBase) OnExit() {}

// HandleAction refuses game commands outside a running game.
func (s *LobbyStateBase) HandleAction(player string, cmd network.Command) (network.Command, error) {
	return network.Command{}, errs.ErrNotInGame
}

// WaitingState collects players until the lobby is started.
type WaitingState struct {
	LobbyStateBase
}

func NewWaitingState(lobby LobbyContext) *WaitingState {
	return &WaitingState{LobbyStateBase{ID: Waiting, Lobby: lobby}}
}

// InGameState owns the running game and forwards commands to its dispatcher.
type InGameState struct {
	LobbyStateBase
	Game       *game.Game
	dispatcher *game.Dispatcher
}

func NewInGameState(lobby LobbyContext, g *game.Game) *InGameState {
	return &InGameState{
		LobbyStateBase: LobbyStateBase{ID: InGame, Lobby: lobby},
		Game:           g,
		dispatcher:     game.NewDispatcher(g, lobby),
	}
}

// OnEnter announces the first player and the opening turn.
func (s *InGameState) OnEnter() {
	logger.Log.Infof("Lobby %s started a game with %v", s.Lobby.GetID(), s.Game.Players())
	s.Lobby.Broadcast(network.NewCommand(network.CodeGameStarted, s.Game.CurrentPlayer()))
	s.dispatcher.Deliver(s.Game.Start())
}

func (s *InGameState) HandleAction(player string, cmd network.Command) (network.Command, error) {
	return s.dispatcher.Handle(player, cmd)
}

// RemovePlayer takes a departed player out of the running game.
func (s *InGameState) RemovePlayer(player string) {
	s.dispatcher.Deliver(s.Game.RemovePlayer(player))
}

// EndedState freezes the final ranking. Entering it announces the ranking unless the
// game already did, then reports it to OnEnd.
type EndedState struct {
	LobbyStateBase
	Game  *game.Game
	OnEnd func(lobby string, ranking []game.Standing)
}

func NewEndedState(lobby LobbyContext, g *game.Game, onEnd func(string, []game.Standing)) *EndedState {
	return &EndedState{
		LobbyStateBase: LobbyStateBase{ID: Ended, Lobby: lobby},
		Game:           g,
		OnEnd:          onEnd,
	}
}

func (s *EndedState) OnEnter() {
	for _, e := range s.Game.End() {
		if e.To == "" {
			s.Lobby.Broadcast(e.Cmd)
		} else {
			s.Lobby.SendTo(e.To, e.Cmd)
		}
	}
	ranking := s.Game.Ranking()
	logger.Log.Infof("Lobby %s game ended: %s", s.Lobby.GetID(), game.EncodeRanking(ranking))
	if s.OnEnd != nil {
		s.OnEnd(s.Lobby.GetID(), ranking)
	}
}

func (s *EndedState) HandleAction(player string, cmd network.Command) (network.Command, error) {
	return network.Command{}, errs.WithDetail(errs.ErrNotInGame, "game has ended")
}
