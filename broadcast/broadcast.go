// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/lobby"
	"github.com/wfunc/runeserver/network"
	"github.com/wfunc/runeserver/session"
)

var (
	ErrLobbyNotFound = errs.ErrLobbyNotFound
)

// 广播接口
type Broadcaster interface {
	BroadcastToLobby(lobbyID string, cmd network.Command) error
	BroadcastToAll(cmd network.Command) error
	SendToPlayer(name string, cmd network.Command) error
}

// LobbyBroadcaster resolves player names to sessions.
type LobbyBroadcaster struct {
	lobbyManager   *lobby.Manager
	sessionManager *session.Manager
}

func NewLobbyBroadcaster(lobbyManager *lobby.Manager, sessionManager *session.Manager) *LobbyBroadcaster {
	return &LobbyBroadcaster{
		lobbyManager:   lobbyManager,
		sessionManager: sessionManager,
	}
}

func (b *LobbyBroadcaster) BroadcastToLobby(lobbyID string, cmd network.Command) error {
	l, exists := b.lobbyManager.GetLobby(lobbyID)
	if !exists {
		return ErrLobbyNotFound
	}
	l.Broadcast(cmd)
	return nil
}

// BroadcastToAll reaches every registered, connected player. Failed sends are left to
// the liveness sweep.
func (b *LobbyBroadcaster) BroadcastToAll(cmd network.Command) error {
	for _, s := range b.sessionManager.All() {
		if s.Player() == "" {
			continue
		}
		_ = s.Send(cmd)
	}
	return nil
}

// SendToPlayer delivers cmd to the session registered as name. Players inside their
// reconnect grace period silently miss it.
func (b *LobbyBroadcaster) SendToPlayer(name string, cmd network.Command) error {
	s, ok := b.sessionManager.GetByPlayer(name)
	if !ok {
		return errs.WithDetail(errs.ErrPlayerNotFound, name)
	}
	if err := s.Send(cmd); err != nil && !errors.Is(err, session.ErrNotConnected) {
		return err
	}
	return nil
}
