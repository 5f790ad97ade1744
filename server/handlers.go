package server

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/lobby"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/network"
	"github.com/wfunc/runeserver/session"
	"github.com/wfunc/runeserver/state"
)

type handlerFunc func(s *GameServer, sess *session.Session, cmd network.Command) (network.Command, error)

// adminHandlers are answered by the server itself; in-game codes go to the session's
// lobby.
var adminHandlers = map[string]handlerFunc{
	network.CodePing:      (*GameServer).handlePing,
	network.CodeRegister:  (*GameServer).handleRegister,
	network.CodeRename:    (*GameServer).handleRename,
	network.CodeCreate:    (*GameServer).handleCreate,
	network.CodeJoin:      (*GameServer).handleJoin,
	network.CodeLeave:     (*GameServer).handleLeave,
	network.CodeStart:     (*GameServer).handleStart,
	network.CodeList:      (*GameServer).handleList,
	network.CodeListPlrs:  (*GameServer).handleListPlayers,
	network.CodeChatAll:   (*GameServer).handleChatAll,
	network.CodeChatLobby: (*GameServer).handleChatLobby,
	network.CodeChatPriv:  (*GameServer).handleChatPrivate,
}

// unregistered commands allowed before RGST.
var unregistered = map[string]bool{
	network.CodePing:     true,
	network.CodeRegister: true,
	network.CodeList:     true,
	network.CodeListPlrs: true,
}

// handleLine processes one received line. It returns the session that owns the
// connection afterwards (RCON swaps it) and whether the read loop must stop.
func (s *GameServer) handleLine(sess *session.Session, conn network.Connection, line string) (*session.Session, bool) {
	cmd, err := network.Decode(line)
	if err != nil {
		s.reject(conn, err)
		return sess, false
	}
	switch cmd.Code {
	case network.CodeOK, network.CodeErr, network.CodeTest:
		return sess, false
	}
	if !sess.Allow() {
		s.reject(conn, errs.ErrRateLimited)
		return sess, false
	}

	s.monitor.CommandReceived(cmd.Code)
	start := time.Now()
	defer func() { s.monitor.ObserveCommandLatency(time.Since(start)) }()

	switch cmd.Code {
	case network.CodeExit:
		_ = conn.Send(network.OK(cmd))
		s.evict(sess, "exit")
		return sess, true
	case network.CodeReconnect:
		resumed, err := s.reconnect(sess, conn, cmd.Arg(0))
		if err != nil {
			s.reject(conn, err)
			return sess, false
		}
		extra := []string{resumed.Player()}
		if id := resumed.Lobby(); id != "" {
			extra = append(extra, id)
		}
		_ = conn.Send(network.OK(cmd, extra...))
		return resumed, false
	}

	reply, err := s.dispatch(sess, cmd)
	if err != nil {
		s.reject(conn, err)
		return sess, false
	}
	if reply.Code != "" {
		if err := conn.Send(reply); err != nil {
			logger.Log.Debugf("Session %s reply failed: %v", sess.ID, err)
		}
	}
	return sess, false
}

// dispatch runs a decoded client command for sess.
func (s *GameServer) dispatch(sess *session.Session, cmd network.Command) (network.Command, error) {
	if !unregistered[cmd.Code] && sess.Player() == "" {
		return network.Command{}, errs.ErrNotRegistered
	}
	if h, ok := adminHandlers[cmd.Code]; ok {
		return h(s, sess, cmd)
	}
	if game.Handles(cmd.Code) {
		return s.handleGame(sess, cmd)
	}
	return network.Command{}, errs.WithDetail(errs.ErrInvalidCommand, cmd.Code+" is not a client command")
}

func (s *GameServer) reject(conn network.Connection, err error) {
	s.monitor.CommandRejected(errs.CodeOf(err).Reason())
	if sendErr := conn.Send(network.Err(err)); sendErr != nil {
		logger.Log.Debugf("Error reply to %s failed: %v", conn.RemoteAddr(), sendErr)
	}
}

// reconnect moves conn from the fresh session onto the session holding token.
func (s *GameServer) reconnect(fresh *session.Session, conn network.Connection, token string) (*session.Session, error) {
	if fresh.Player() != "" {
		return nil, errs.WithDetail(errs.ErrInvalidCommand, "already registered")
	}
	target, ok := s.sessionManager.GetByToken(token)
	if !ok || target == fresh {
		return nil, errs.ErrUnknownSession
	}
	now := s.now()
	if target.Status() != session.StatusDisconnected {
		// the client is back before its old connection timed out
		target.Disconnect(now)
	}
	if err := target.Resume(conn, now); err != nil {
		return nil, err
	}
	if s.sessionManager.Remove(fresh.ID) {
		s.monitor.SessionClosed()
	}
	logger.Log.Infof("Session %s (%s) resumed from %s", target.ID, target.Player(), conn.RemoteAddr())
	return target, nil
}

func (s *GameServer) handlePing(_ *session.Session, cmd network.Command) (network.Command, error) {
	return network.OK(cmd), nil
}

func (s *GameServer) handleRegister(sess *session.Session, cmd network.Command) (network.Command, error) {
	if name := sess.Player(); name != "" {
		return network.Command{}, errs.WithDetail(errs.ErrInvalidCommand, "already registered as "+name)
	}
	assigned, err := s.sessionManager.ClaimName(sess, cmd.Arg(0))
	if err != nil {
		return network.Command{}, err
	}
	logger.Log.Infof("Session %s registered as %s", sess.ID, assigned)
	return network.OK(cmd, assigned), nil
}

func (s *GameServer) handleRename(sess *session.Session, cmd network.Command) (network.Command, error) {
	if sess.Lobby() != "" {
		return network.Command{}, errs.WithDetail(errs.ErrAlreadyInLobby, "leave the lobby to rename")
	}
	old := sess.Player()
	assigned, err := s.sessionManager.ClaimName(sess, cmd.Arg(0))
	if err != nil {
		return network.Command{}, err
	}
	logger.Log.Infof("Session %s renamed %s to %s", sess.ID, old, assigned)
	return network.OK(cmd, assigned), nil
}

func (s *GameServer) handleCreate(sess *session.Session, cmd network.Command) (network.Command, error) {
	name := cmd.Arg(0)
	if !session.ValidName(name) {
		return network.Command{}, errs.WithDetail(errs.ErrInvalidCommand, "invalid lobby name")
	}
	capacity, err := strconv.Atoi(cmd.Arg(1))
	if err != nil {
		return network.Command{}, errs.WithDetail(errs.ErrInvalidCapacity, cmd.Arg(1))
	}
	if _, err := s.lobbyManager.CreateLobby(name, capacity, s.broadcaster); err != nil {
		return network.Command{}, err
	}
	s.monitor.SetActiveLobbies(s.lobbyManager.Count())
	logger.Log.Infof("%s created lobby %s", sess.Player(), name)
	return network.OK(cmd), nil
}

// requireSelf checks that a player argument names the sender.
func requireSelf(sess *session.Session, player string) error {
	if !strings.EqualFold(player, sess.Player()) {
		return errs.WithDetail(errs.ErrNameMismatch, player)
	}
	return nil
}

func (s *GameServer) currentLobby(sess *session.Session) (*lobby.Lobby, error) {
	id := sess.Lobby()
	if id == "" {
		return nil, errs.ErrNotInLobby
	}
	l, ok := s.lobbyManager.GetLobby(id)
	if !ok {
		sess.SetLobby("")
		return nil, errs.ErrNotInLobby
	}
	return l, nil
}

func (s *GameServer) handleJoin(sess *session.Session, cmd network.Command) (network.Command, error) {
	if err := requireSelf(sess, cmd.Arg(0)); err != nil {
		return network.Command{}, err
	}
	if sess.Lobby() != "" {
		return network.Command{}, errs.ErrAlreadyInLobby
	}
	l, ok := s.lobbyManager.GetLobby(cmd.Arg(1))
	if !ok {
		return network.Command{}, errs.WithDetail(errs.ErrLobbyNotFound, cmd.Arg(1))
	}
	name := sess.Player()
	if err := l.AddPlayer(name); err != nil {
		return network.Command{}, err
	}
	// the lobby may have been reclaimed as empty between lookup and join
	if current, ok := s.lobbyManager.GetLobby(l.ID); !ok || current != l {
		l.RemovePlayer(name)
		return network.Command{}, errs.WithDetail(errs.ErrLobbyNotFound, cmd.Arg(1))
	}
	sess.SetLobby(l.ID)
	logger.Log.Infof("%s joined lobby %s", name, l.ID)
	l.Broadcast(network.NewCommand(network.CodeJoin, name, l.ID))
	return network.Command{}, nil
}

func (s *GameServer) handleLeave(sess *session.Session, cmd network.Command) (network.Command, error) {
	if err := requireSelf(sess, cmd.Arg(0)); err != nil {
		return network.Command{}, err
	}
	if _, err := s.currentLobby(sess); err != nil {
		return network.Command{}, err
	}
	s.leaveLobby(sess, sess.Lobby(), true)
	return network.Command{}, nil
}

// leaveLobby takes sess out of lobby id, telling the remaining players, and deletes the
// lobby once it is empty.
func (s *GameServer) leaveLobby(sess *session.Session, id string, notifySelf bool) {
	sess.SetLobby("")
	l, ok := s.lobbyManager.GetLobby(id)
	if !ok {
		return
	}
	name := sess.Player()
	leav := network.NewCommand(network.CodeLeave, name)
	if notifySelf {
		_ = sess.Send(leav)
	}
	empty := l.RemovePlayer(name)
	l.Broadcast(leav)
	logger.Log.Infof("%s left lobby %s", name, l.ID)
	if empty {
		s.lobbyManager.RemoveIfEmpty(id)
	}
	s.monitor.SetActiveLobbies(s.lobbyManager.Count())
}

func (s *GameServer) handleStart(sess *session.Session, _ network.Command) (network.Command, error) {
	l, err := s.currentLobby(sess)
	if err != nil {
		return network.Command{}, err
	}
	if err := l.StartGame(); err != nil {
		return network.Command{}, err
	}
	s.monitor.GameStarted()
	return network.Command{}, nil
}

func (s *GameServer) handleList(_ *session.Session, _ network.Command) (network.Command, error) {
	lobbies := s.lobbyManager.Lobbies()
	summaries := make([]string, 0, len(lobbies))
	for _, l := range lobbies {
		summaries = append(summaries, l.Summary())
	}
	return network.NewCommand(network.CodeLobbies, strings.Join(summaries, ";")), nil
}

func (s *GameServer) handleListPlayers(sess *session.Session, cmd network.Command) (network.Command, error) {
	var names []string
	switch cmd.Arg(0) {
	case network.ListModeServer:
		names = s.sessionManager.Names()
		sort.Strings(names)
	case network.ListModeGame:
		l, err := s.currentLobby(sess)
		if err != nil {
			return network.Command{}, err
		}
		if l.Status() != state.InGame {
			return network.Command{}, errs.ErrNotInGame
		}
		names = l.Players()
	case network.ListModeLobby:
		l, ok := s.lobbyManager.GetLobby(cmd.Arg(1))
		if !ok {
			return network.Command{}, errs.WithDetail(errs.ErrLobbyNotFound, cmd.Arg(1))
		}
		names = l.Players()
	}
	return network.NewCommand(network.CodePlayers, strings.Join(names, ",")), nil
}

func (s *GameServer) handleChatAll(sess *session.Session, cmd network.Command) (network.Command, error) {
	if err := requireSelf(sess, cmd.Arg(0)); err != nil {
		return network.Command{}, err
	}
	_ = s.broadcaster.BroadcastToAll(network.NewCommand(network.CodeChatAll, sess.Player(), cmd.Arg(1)))
	return network.Command{}, nil
}

func (s *GameServer) handleChatLobby(sess *session.Session, cmd network.Command) (network.Command, error) {
	if err := requireSelf(sess, cmd.Arg(0)); err != nil {
		return network.Command{}, err
	}
	l, err := s.currentLobby(sess)
	if err != nil {
		return network.Command{}, err
	}
	msg := network.NewCommand(network.CodeChatLobby, sess.Player(), cmd.Arg(1))
	return network.Command{}, s.broadcaster.BroadcastToLobby(l.GetID(), msg)
}

// handleChatPrivate delivers to the recipient and echoes to the sender.
func (s *GameServer) handleChatPrivate(sess *session.Session, cmd network.Command) (network.Command, error) {
	if err := requireSelf(sess, cmd.Arg(0)); err != nil {
		return network.Command{}, err
	}
	recipient, ok := s.sessionManager.GetByPlayer(cmd.Arg(1))
	if !ok {
		return network.Command{}, errs.WithDetail(errs.ErrPlayerNotFound, cmd.Arg(1))
	}
	msg := network.NewCommand(network.CodeChatPriv, sess.Player(), recipient.Player(), cmd.Arg(2))
	if err := s.broadcaster.SendToPlayer(recipient.Player(), msg); err != nil {
		return network.Command{}, err
	}
	if recipient != sess {
		return msg, nil
	}
	return network.Command{}, nil
}

func (s *GameServer) handleGame(sess *session.Session, cmd network.Command) (network.Command, error) {
	l, err := s.currentLobby(sess)
	if err != nil {
		return network.Command{}, err
	}
	return l.HandleCommand(sess.Player(), cmd)
}
