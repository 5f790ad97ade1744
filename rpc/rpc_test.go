package rpc

import (
	"context"
	"errors"
	netrpc "net/rpc"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/lobby"
	"github.com/wfunc/runeserver/network"
	"github.com/wfunc/runeserver/persistence"
	"github.com/wfunc/runeserver/services"
	"github.com/wfunc/runeserver/state"
)

type nopBroadcaster struct{}

func (nopBroadcaster) SendToPlayer(string, network.Command) error { return nil }

func newAdmin(t *testing.T, ledger persistence.Ledger) (*AdminService, *lobby.Manager) {
	t.Helper()
	rules := lobby.Rules{Settings: game.DefaultSettings(), Catalog: catalog.Default(), Behaviors: game.NewBehaviors()}
	lobbies := lobby.NewLobbyManager(rules)
	return NewAdminService(lobbies, services.NewLeaderboardService(ledger)), lobbies
}

func TestAdminService_ListLobbies(t *testing.T) {
	admin, lobbies := newAdmin(t, nil)
	l, err := lobbies.CreateLobby("Dunes", 2, nopBroadcaster{})
	if err != nil {
		t.Fatal(err)
	}
	if err := l.AddPlayer("alice"); err != nil {
		t.Fatal(err)
	}

	var reply ListLobbiesReply
	if err := admin.ListLobbies(&ListLobbiesArgs{}, &reply); err != nil {
		t.Fatalf("ListLobbies: %v", err)
	}
	if len(reply.Lobbies) != 1 {
		t.Fatalf("expected 1 lobby, got %d", len(reply.Lobbies))
	}
	info := reply.Lobbies[0]
	if info.Name != "Dunes" || info.Capacity != 2 || info.Status != state.Waiting {
		t.Errorf("unexpected lobby info %+v", info)
	}
	if len(info.Players) != 1 || info.Players[0] != "alice" {
		t.Errorf("unexpected players %v", info.Players)
	}
}

func TestAdminService_LeaderboardDisabled(t *testing.T) {
	admin, _ := newAdmin(t, nil)
	var reply LeaderboardReply
	if err := admin.Leaderboard(&LeaderboardArgs{}, &reply); !errors.Is(err, services.ErrNoLedger) {
		t.Errorf("expected ErrNoLedger, got %v", err)
	}
}

func TestServer_OverNetRPC(t *testing.T) {
	ledger, err := persistence.NewSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	admin, _ := newAdmin(t, ledger)
	if err := admin.leaderboard.RecordGame(context.Background(), "arena",
		[]game.Standing{{Name: "p2", Runes: 20}, {Name: "p1", Runes: 14}}); err != nil {
		t.Fatal(err)
	}

	srv, err := NewServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Register(admin); err != nil {
		t.Fatalf("Register: %v", err)
	}
	go srv.Start()
	defer srv.Stop()

	client, err := netrpc.Dial("tcp", srv.Addr())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Close()

	var reply LeaderboardReply
	if err := client.Call(ServiceName+".Leaderboard", &LeaderboardArgs{Limit: 1}, &reply); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(reply.Scores) != 1 || reply.Scores[0].Player != "p2" || reply.Scores[0].Total != 20 {
		t.Errorf("unexpected scores %+v", reply.Scores)
	}

	var history HistoryReply
	if err := client.Call(ServiceName+".History", &HistoryArgs{Player: "p1"}, &history); err != nil {
		t.Fatalf("Call History: %v", err)
	}
	if len(history.Games) != 1 || history.Games[0].Lobby != "arena" || history.Games[0].Runes != 14 {
		t.Errorf("unexpected history %+v", history.Games)
	}
}

func TestAdminService_History(t *testing.T) {
	admin, _ := newAdmin(t, nil)
	var reply HistoryReply
	if err := admin.History(&HistoryArgs{Player: "p1"}, &reply); !errors.Is(err, services.ErrNoLedger) {
		t.Errorf("expected ErrNoLedger, got %v", err)
	}
}

func TestHealthServer(t *testing.T) {
	h, err := NewHealthServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewHealthServer: %v", err)
	}
	go h.Start()
	defer h.Stop()

	conn, err := grpc.NewClient("passthrough:///"+h.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("Check: %v", err)
		}
		return resp.GetStatus()
	}

	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING before start, got %v", got)
	}
	h.SetServing(true)
	if got := check(); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("expected SERVING, got %v", got)
	}
}
