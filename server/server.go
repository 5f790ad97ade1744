package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/wfunc/runeserver/broadcast"
	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/config"
	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/lobby"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/monitor"
	"github.com/wfunc/runeserver/network"
	runerpc "github.com/wfunc/runeserver/rpc"
	"github.com/wfunc/runeserver/services"
	"github.com/wfunc/runeserver/session"
	"github.com/wfunc/runeserver/timer"
)

// recordTimeout bounds one leaderboard write after a game ends.
const recordTimeout = 5 * time.Second

type GameServer struct {
	cfg            *config.Config
	lobbyManager   *lobby.Manager
	sessionManager *session.Manager
	leaderboard    *services.LeaderboardService
	broadcaster    *broadcast.LobbyBroadcaster
	monitor        *monitor.Monitor
	timers         *timer.TimerManager
	upgrader       websocket.Upgrader
	now            func() time.Time
	sweepMutex     sync.Mutex
	shutdownOnce   sync.Once
}

// NewGameServer wires the registries. A nil leaderboard disables score recording.
func NewGameServer(cfg *config.Config, cat *catalog.Catalog, behaviors *game.Behaviors, leaderboard *services.LeaderboardService) *GameServer {
	if leaderboard == nil {
		leaderboard = services.NewLeaderboardService(nil)
	}
	s := &GameServer{
		cfg:            cfg,
		sessionManager: session.NewManager(),
		leaderboard:    leaderboard,
		monitor:        monitor.NewMonitor("rune"),
		now:            time.Now,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 允许所有跨域请求
			},
		},
	}

	rules := lobby.Rules{
		Settings:  settingsFrom(cfg.Game),
		Catalog:   cat,
		Behaviors: behaviors,
		OnEnd:     s.gameEnded,
	}
	s.lobbyManager = lobby.NewLobbyManager(rules)

	// 初始化广播器
	s.broadcaster = broadcast.NewLobbyBroadcaster(s.lobbyManager, s.sessionManager)
	return s
}

func settingsFrom(c config.GameConfig) game.Settings {
	var s game.Settings
	s.Width = c.BoardWidth
	s.Height = c.BoardHeight
	s.RoundLimit = c.RoundLimit
	s.StartRunes = c.StartRunes
	s.StartEnergy = c.StartEnergy
	s.MaxEnergy = c.MaxEnergy
	s.MaxPlayers = c.MaxPlayers
	s.TilePrice = c.TilePrice
	s.EnergyYieldThreshold = c.EnergyYieldThreshold
	s.ArtifactEveryNthTile = c.ArtifactEveryNthTile
	return s
}

func (s *GameServer) Lobbies() *lobby.Manager {
	return s.lobbyManager
}

func (s *GameServer) Sessions() *session.Manager {
	return s.sessionManager
}

func (s *GameServer) Monitor() *monitor.Monitor {
	return s.monitor
}

func (s *GameServer) gameEnded(lobbyID string, ranking []game.Standing) {
	s.monitor.GameEnded()
	s.leaderboard.RecordGameAsync(lobbyID, ranking, recordTimeout)
}

// Run listens on the configured addresses and serves until ctx is cancelled.
func (s *GameServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Server.TCPAddress)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Server.TCPAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts protocol connections on ln, starts the optional websocket, admin RPC,
// health and metrics listeners, and blocks until ctx is cancelled or one of them fails.
// Connected clients receive STDN before their connections are closed.
func (s *GameServer) Serve(ctx context.Context, ln net.Listener) error {
	g, ctx := errgroup.WithContext(ctx)

	conns := new(errgroup.Group)
	conns.SetLimit(s.cfg.Server.MaxConnections)

	var closers []func()
	closers = append(closers, func() { ln.Close() })

	if addr := s.cfg.Server.WSAddress; addr != "" {
		wsLn, err := net.Listen("tcp", addr)
		if err != nil {
			ln.Close()
			return fmt.Errorf("listen websocket %s: %w", addr, err)
		}
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
			s.handleWebSocket(w, r, conns)
		})
		srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		closers = append(closers, func() { srv.Close() })
		g.Go(func() error {
			logger.Log.Infof("WebSocket listening on %s", wsLn.Addr())
			if err := srv.Serve(wsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("websocket: %w", err)
			}
			return nil
		})
	}

	if addr := s.cfg.Server.RPCAddress; addr != "" {
		rpcServer, err := runerpc.NewServer(addr)
		if err != nil {
			return s.abort(closers, fmt.Errorf("listen rpc %s: %w", addr, err))
		}
		if err := rpcServer.Register(runerpc.NewAdminService(s.lobbyManager, s.leaderboard)); err != nil {
			rpcServer.Stop()
			return s.abort(closers, fmt.Errorf("register rpc: %w", err))
		}
		closers = append(closers, rpcServer.Stop)
		go rpcServer.Start()
	}

	var health *runerpc.HealthServer
	if addr := s.cfg.Server.HealthAddress; addr != "" {
		h, err := runerpc.NewHealthServer(addr)
		if err != nil {
			return s.abort(closers, fmt.Errorf("listen health %s: %w", addr, err))
		}
		health = h
		closers = append(closers, h.Stop)
		g.Go(h.Start)
	}

	if addr := s.cfg.Server.MetricsAddress; addr != "" {
		g.Go(func() error { return s.monitor.Serve(ctx, addr) })
	}

	g.Go(func() error { return s.acceptLoop(ctx, ln, conns) })

	s.timers = timer.NewTimerManager()
	pc := s.cfg.Session
	s.timers.AddTimer(pc.PingInterval, pc.PingInterval, s.pingAll)
	s.timers.AddTimer(pc.SweepInterval, pc.SweepInterval, func() { s.Sweep(s.now()) })

	if health != nil {
		health.SetServing(true)
	}
	logger.Log.Infof("Game server listening on %s", ln.Addr())

	g.Go(func() error {
		<-ctx.Done()
		if health != nil {
			health.SetServing(false)
		}
		s.timers.Stop()
		for _, c := range closers {
			c()
		}
		s.Shutdown()
		return nil
	})

	err := g.Wait()
	conns.Wait()
	return err
}

func (s *GameServer) abort(closers []func(), err error) error {
	for _, c := range closers {
		c()
	}
	return err
}

func (s *GameServer) acceptLoop(ctx context.Context, ln net.Listener, conns *errgroup.Group) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			logger.Log.Errorf("Accept error: %v", err)
			continue
		}
		c := network.NewTCPConnection(conn)
		if !conns.TryGo(func() error { s.ServeConn(c); return nil }) {
			logger.Log.Warnf("Connection limit reached, rejecting %s", conn.RemoteAddr())
			conn.Close()
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request, conns *errgroup.Group) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	c := network.NewWSConnection(conn)
	if !conns.TryGo(func() error { s.ServeConn(c); return nil }) {
		logger.Log.Warnf("Connection limit reached, rejecting %s", conn.RemoteAddr())
		conn.Close()
	}
}

// Shutdown tells every connected client STDN and closes all sessions. It is safe to
// call more than once.
func (s *GameServer) Shutdown() {
	s.shutdownOnce.Do(func() {
		logger.Log.Info("Shutting down game server")
		stdn := network.NewCommand(network.CodeShutdown)
		for _, sess := range s.sessionManager.All() {
			_ = sess.Send(stdn)
		}
		for _, sess := range s.sessionManager.All() {
			s.evict(sess, "shutdown")
		}
	})
}

// ServeConn runs one connection's read loop until the peer goes away, EXIT arrives or
// the session is closed by the sweep.
func (s *GameServer) ServeConn(conn network.Connection) {
	pc := s.cfg.Session
	conn.SetHeartbeat(pc.Timeout)
	sess := session.NewSession(conn, rate.NewLimiter(rate.Limit(pc.CommandRate), pc.CommandBurst))
	s.sessionManager.Add(sess)
	s.monitor.SessionOpened()

	logger.Log.Infof("New connection from %s, session ID: %s", conn.RemoteAddr(), sess.ID)
	if err := conn.Send(network.NewCommand(network.CodeSession, sess.Token)); err != nil {
		s.evict(sess, "handshake failed")
		return
	}

	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, network.ErrLineTooLong) {
				_ = conn.Send(network.Err(errs.WithDetail(errs.ErrInvalidCommand, "line too long")))
			}
			s.connectionLost(sess, conn, err)
			return
		}
		sess.Touch(s.now())

		next, done := s.handleLine(sess, conn, line)
		if done {
			return
		}
		sess = next
	}
}

// connectionLost starts the grace period of a registered session. Sessions that never
// registered have nothing to resume and are removed at once.
func (s *GameServer) connectionLost(sess *session.Session, conn network.Connection, cause error) {
	if sess.Player() == "" {
		if sess.Conn() == conn {
			s.evict(sess, "connection closed")
		}
		return
	}
	if sess.Drop(conn, s.now()) {
		logger.Log.Infof("Session %s (%s) disconnected: %v", sess.ID, sess.Player(), cause)
	}
}

// evict removes the session for good: it leaves its lobby, frees its name and its
// connection is closed.
func (s *GameServer) evict(sess *session.Session, reason string) {
	if !s.sessionManager.Remove(sess.ID) {
		return
	}
	if id := sess.Lobby(); id != "" {
		s.leaveLobby(sess, id, false)
	}
	_ = sess.Close()
	s.monitor.SessionClosed()
	logger.Log.Infof("Session %s (%s) removed: %s", sess.ID, sess.Player(), reason)
}

func (s *GameServer) pingAll() {
	ping := network.NewCommand(network.CodePing)
	for _, sess := range s.sessionManager.All() {
		conn := sess.Conn()
		if conn == nil {
			continue
		}
		if err := conn.Send(ping); err != nil {
			s.connectionLost(sess, conn, err)
		}
	}
}
