package rpc

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/runeserver/lobby"
	"github.com/wfunc/runeserver/logger"
	"github.com/wfunc/runeserver/services"
)

// ServiceName is the net/rpc name AdminService is registered under.
const ServiceName = "Admin"

// Server manages the RPC listener.
type Server struct {
	listener net.Listener
	address  string
	rpc      *rpc.Server
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  listener.Addr().String(),
		rpc:      rpc.NewServer(),
	}, nil
}

// Register exposes svc under ServiceName.
func (s *Server) Register(svc *AdminService) error {
	return s.rpc.RegisterName(ServiceName, svc)
}

// Addr is the bound listener address.
func (s *Server) Addr() string {
	return s.address
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go s.rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// AdminService is the struct that exposes RPC methods.
type AdminService struct {
	lobbies     *lobby.Manager
	leaderboard *services.LeaderboardService
	timeout     time.Duration
}

// NewAdminService creates a new AdminService.
func NewAdminService(lobbies *lobby.Manager, leaderboard *services.LeaderboardService) *AdminService {
	return &AdminService{lobbies: lobbies, leaderboard: leaderboard, timeout: 5 * time.Second}
}

type ListLobbiesArgs struct{}

type LobbyInfo struct {
	Name     string
	Capacity int
	Status   string
	Players  []string
}

type ListLobbiesReply struct {
	Lobbies []LobbyInfo
}

// ListLobbies reports every lobby ordered by creation time.
func (a *AdminService) ListLobbies(_ *ListLobbiesArgs, reply *ListLobbiesReply) error {
	for _, l := range a.lobbies.Lobbies() {
		reply.Lobbies = append(reply.Lobbies, LobbyInfo{
			Name:     l.ID,
			Capacity: l.Capacity,
			Status:   l.Status(),
			Players:  append([]string(nil), l.Players()...),
		})
	}
	return nil
}

type LeaderboardArgs struct {
	Limit int
}

type ScoreInfo struct {
	Player string
	Total  int64
	Games  int
	Best   int64
}

type LeaderboardReply struct {
	Scores []ScoreInfo
}

// Leaderboard returns the top Limit players (10 when unset).
func (a *AdminService) Leaderboard(args *LeaderboardArgs, reply *LeaderboardReply) error {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	scores, err := a.leaderboard.Top(ctx, limit)
	if err != nil {
		return err
	}
	for _, s := range scores {
		reply.Scores = append(reply.Scores, ScoreInfo{Player: s.Player, Total: s.Total, Games: s.Games, Best: s.Best})
	}
	return nil
}

type HistoryArgs struct {
	Player string
}

type GameRecord struct {
	Lobby string
	Runes int64
	At    time.Time
}

type HistoryReply struct {
	Games []GameRecord
}

// History returns every recorded game of one player, oldest first.
func (a *AdminService) History(args *HistoryArgs, reply *HistoryReply) error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	entries, err := a.leaderboard.History(ctx, args.Player)
	if err != nil {
		return err
	}
	for _, e := range entries {
		reply.Games = append(reply.Games, GameRecord{Lobby: e.Lobby, Runes: e.Runes, At: e.CreatedAt})
	}
	return nil
}

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	listener net.Listener
	grpc     *grpc.Server
	health   *health.Server
}

// NewHealthServer binds addr and reports NOT_SERVING until SetServing(true).
func NewHealthServer(addr string) (*HealthServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	h := &HealthServer{
		listener: listener,
		grpc:     grpc.NewServer(),
		health:   health.NewServer(),
	}
	healthpb.RegisterHealthServer(h.grpc, h.health)
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	return h, nil
}

func (h *HealthServer) Addr() string {
	return h.listener.Addr().String()
}

// SetServing flips the overall serving status.
func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
}

// Start blocks serving gRPC until Stop.
func (h *HealthServer) Start() error {
	logger.Log.Infof("Health server listening on %s", h.Addr())
	if err := h.grpc.Serve(h.listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func (h *HealthServer) Stop() {
	h.health.Shutdown()
	h.grpc.GracefulStop()
}
