package server

import (
	"bufio"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/config"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/network"
	"github.com/wfunc/runeserver/persistence"
	"github.com/wfunc/runeserver/services"
	"github.com/wfunc/runeserver/session"
	"github.com/wfunc/runeserver/state"
)

const waitTimeout = 2 * time.Second

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Game.BoardWidth = 4
	cfg.Game.BoardHeight = 4
	cfg.Game.RoundLimit = 1
	cfg.Game.ArtifactEveryNthTile = 0
	cfg.Session.GracePeriod = 0
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, leaderboard *services.LeaderboardService) (*GameServer, *fakeClock) {
	t.Helper()
	s := NewGameServer(cfg, catalog.Default(), game.NewBehaviors(), leaderboard)
	clock := &fakeClock{now: time.Now()}
	s.now = clock.Now
	return s, clock
}

// testClient is the far end of a net.Pipe. A pump goroutine drains server lines so a
// broadcast to this client never blocks the server.
type testClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
	token string
}

func connect(t *testing.T, s *GameServer) *testClient {
	t.Helper()
	server, client := net.Pipe()
	go s.ServeConn(network.NewTCPConnection(server))

	c := &testClient{t: t, conn: client, lines: make(chan string, 256)}
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(client)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
	t.Cleanup(func() { client.Close() })

	first := c.next()
	if !strings.HasPrefix(first, "SESS$") {
		t.Fatalf("expected SESS handshake, got %q", first)
	}
	c.token = strings.TrimPrefix(first, "SESS$")
	return c
}

func (c *testClient) send(line string) {
	c.t.Helper()
	if _, err := c.conn.Write([]byte(line + "\n")); err != nil {
		c.t.Fatalf("write %q: %v", line, err)
	}
}

func (c *testClient) next() string {
	c.t.Helper()
	select {
	case line, ok := <-c.lines:
		if !ok {
			c.t.Fatal("connection closed")
		}
		return line
	case <-time.After(waitTimeout):
		c.t.Fatal("timed out waiting for a line")
	}
	return ""
}

func (c *testClient) expect(want string) {
	c.t.Helper()
	if got := c.next(); got != want {
		c.t.Fatalf("expected %q, got %q", want, got)
	}
}

func (c *testClient) expectPrefix(prefix string) string {
	c.t.Helper()
	got := c.next()
	if !strings.HasPrefix(got, prefix) {
		c.t.Fatalf("expected a line starting with %q, got %q", prefix, got)
	}
	return got
}

// waitFor skips lines until want arrives.
func (c *testClient) waitFor(want string) {
	c.t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				c.t.Fatalf("connection closed before %q", want)
			}
			if line == want {
				return
			}
		case <-deadline:
			c.t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func (c *testClient) register(name string) {
	c.t.Helper()
	c.send("RGST$" + name)
	c.expect("OK$RGST$" + name + "$" + name)
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// startGame seats alice and bob in lobby den and starts it.
func startGame(t *testing.T, alice, bob *testClient) {
	t.Helper()
	alice.send("CREA$den$2")
	alice.expect("OK$CREA$den$2")
	alice.send("JOIN$alice$den")
	alice.expect("JOIN$alice$den")
	bob.send("JOIN$bob$den")
	alice.expect("JOIN$bob$den")
	bob.expect("JOIN$bob$den")
	bob.send("STRT")
	for _, c := range []*testClient{alice, bob} {
		c.expect("GSTR$alice")
		c.expect("TURN$alice$0")
	}
}

func TestGameServer_Handshake(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	c := connect(t, s)

	sess, ok := s.Sessions().GetByToken(c.token)
	if !ok {
		t.Fatal("SESS token should identify the session")
	}
	if sess.Status() != session.StatusConnecting {
		t.Errorf("expected CONNECTING before registration, got %s", sess.Status())
	}

	c.send("PING")
	c.expect("OK$PING")
}

func TestGameServer_RegisterSuffixes(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	a := connect(t, s)
	b := connect(t, s)
	c := connect(t, s)

	a.register("bob")
	b.send("RGST$Bob")
	b.expect("OK$RGST$Bob$Bob1")
	c.send("RGST$bob")
	c.expect("OK$RGST$bob$bob2")

	a.send("RGST$again")
	a.expectPrefix("ERR$100$INVALID_COMMAND")

	a.send("CHAN$robert")
	a.expect("OK$CHAN$robert$robert")
	c.send("CHAN$bob")
	c.expect("OK$CHAN$bob$bob")

	a.send("RGST$")
	a.expectPrefix("ERR$100$INVALID_COMMAND")
	b.send("CHAN$no spaces")
	b.expectPrefix("ERR$103$INVALID_NAME")
}

func TestGameServer_RejectsInvalidLines(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	c := connect(t, s)

	c.send("XXXX")
	c.expect("ERR$100$INVALID_COMMAND$unknown code XXXX")
	c.send("PSTR$1")
	c.expect("ERR$100$INVALID_COMMAND$PSTR expects 3 arguments, got 1")
	c.send("JOIN$a$b")
	c.expect("ERR$101$NOT_REGISTERED")
	c.send("TURN$a$1")
	c.expectPrefix("ERR$101$NOT_REGISTERED")

	c.register("alice")
	c.send("TURN$a$1")
	c.expect("ERR$100$INVALID_COMMAND$TURN is not a client command")
	c.send("BTIL$0$0")
	c.expect("ERR$203$NOT_IN_LOBBY")

	// reserved codes are consumed without a reply
	c.send("OK$PING")
	c.send("TEST$anything")
	c.send("PING$")
	c.expect("OK$PING")
}

func TestGameServer_LobbyCommands(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	alice := connect(t, s)
	alice.register("alice")

	alice.send("LIST")
	alice.expect("LOBS$")

	alice.send("CREA$den$9")
	alice.expectPrefix("ERR$208$INVALID_CAPACITY")
	alice.send("CREA$den$two")
	alice.expectPrefix("ERR$208$INVALID_CAPACITY")
	alice.send("CREA$den$2")
	alice.expect("OK$CREA$den$2")
	alice.send("CREA$DEN$2")
	alice.expect("ERR$202$LOBBY_EXISTS")

	alice.send("JOIN$bob$den")
	alice.expect("ERR$102$NAME_MISMATCH$bob")
	alice.send("JOIN$alice$nowhere")
	alice.expect("ERR$200$LOBBY_NOT_FOUND$nowhere")
	alice.send("JOIN$alice$den")
	alice.expect("JOIN$alice$den")
	alice.send("JOIN$alice$den")
	alice.expect("ERR$204$ALREADY_IN_LOBBY")

	alice.send("LIST")
	alice.expect("LOBS$den:1/2:WAITING")
	alice.send("LSTP$LOBBY$den")
	alice.expect("PLRS$alice")
	alice.send("LSTP$GAME")
	alice.expect("ERR$205$NOT_IN_GAME")

	alice.send("STRT")
	alice.expect("ERR$206$LOBBY_NOT_READY$1/2 players")
	alice.send("CHAN$alicia")
	alice.expectPrefix("ERR$204$ALREADY_IN_LOBBY")

	alice.send("LEAV$alice")
	alice.expect("LEAV$alice")
	eventually(t, "empty lobby deletion", func() bool { return s.Lobbies().Count() == 0 })
	alice.send("LEAV$alice")
	alice.expect("ERR$203$NOT_IN_LOBBY")
}

func TestGameServer_PlayGame(t *testing.T) {
	ledger, err := persistence.NewSQLite(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer ledger.Close()

	s, _ := newTestServer(t, testConfig(), services.NewLeaderboardService(ledger))
	alice := connect(t, s)
	bob := connect(t, s)
	alice.register("alice")
	bob.register("bob")
	startGame(t, alice, bob)

	l, _ := s.Lobbies().GetLobby("den")
	if l.Status() != state.InGame {
		t.Fatalf("expected IN_GAME, got %s", l.Status())
	}

	bob.send("JOIN$bob$den")
	bob.expect("ERR$204$ALREADY_IN_LOBBY")
	bob.send("BTIL$0$0")
	bob.expect("ERR$300$NOT_YOUR_TURN$current player is alice")

	alice.send("BTIL$0$0")
	for _, c := range []*testClient{alice, bob} {
		c.expect("UPDT$alice$BTIL$0,0")
		c.expect("PRES$alice$10$0")
		c.expect("PRES$bob$20$0")
	}
	alice.expect("OK$BTIL$0$0")

	bob.send("GTIL$0$0")
	tinf := bob.expectPrefix("TINF$0$0$")
	if !strings.Contains(tinf, "OWNER:alice") {
		t.Errorf("tile info should name the owner, got %q", tinf)
	}
	bob.send("LSTP$GAME")
	bob.expect("PLRS$alice,bob")

	alice.send("ENDT")
	alice.waitFor("TURN$bob$0")
	alice.expect("OK$ENDT")
	bob.waitFor("TURN$bob$0")

	bob.send("ENDT")
	for _, c := range []*testClient{alice, bob} {
		c.waitFor("GEND$bob:20;alice:10")
	}
	bob.expect("OK$ENDT")

	if l.Status() != state.Ended {
		t.Fatalf("expected ENDED, got %s", l.Status())
	}
	bob.send("ENDT")
	bob.expectPrefix("ERR$205$NOT_IN_GAME")

	eventually(t, "scores in the ledger", func() bool {
		entries, err := ledger.Load(context.Background(), "")
		return err == nil && len(entries) == 2
	})
	top, err := ledger.Top(context.Background(), 1)
	if err != nil || len(top) != 1 || top[0].Player != "bob" || top[0].Total != 20 {
		t.Errorf("unexpected leaderboard %+v (%v)", top, err)
	}
}

func TestGameServer_Chat(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	alice := connect(t, s)
	bob := connect(t, s)
	alice.register("alice")
	bob.register("bob")

	alice.send("CHTG$alice$hello all")
	alice.expect("CHTG$alice$hello all")
	bob.expect("CHTG$alice$hello all")

	alice.send("CHTG$bob$spoof")
	alice.expect("ERR$102$NAME_MISMATCH$bob")

	alice.send("CHTP$alice$bob$psst")
	bob.expect("CHTP$alice$bob$psst")
	alice.expect("CHTP$alice$bob$psst")

	alice.send("CHTP$alice$carol$psst")
	alice.expect("ERR$400$PLAYER_NOT_FOUND$carol")

	alice.send("CHTL$alice$anyone")
	alice.expect("ERR$203$NOT_IN_LOBBY")

	alice.send("LSTP$SERVER")
	alice.expect("PLRS$alice,bob")
}

func TestGameServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Session.CommandRate = 0.001
	cfg.Session.CommandBurst = 2
	s, _ := newTestServer(t, cfg, nil)
	c := connect(t, s)

	c.send("PING")
	c.expect("OK$PING")
	c.send("PING")
	c.expect("OK$PING")
	c.send("PING")
	c.expect("ERR$500$RATE_LIMITED")
}

func TestGameServer_Exit(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	c := connect(t, s)
	c.register("alice")

	c.send("EXIT")
	c.expect("OK$EXIT")
	select {
	case _, ok := <-c.lines:
		if ok {
			t.Fatal("expected the connection to close after EXIT")
		}
	case <-time.After(waitTimeout):
		t.Fatal("connection still open after EXIT")
	}
	if s.Sessions().Count() != 0 {
		t.Errorf("EXIT should remove the session, %d left", s.Sessions().Count())
	}
	if _, ok := s.Sessions().GetByPlayer("alice"); ok {
		t.Error("EXIT should free the name")
	}
}

func TestGameServer_Reconnect(t *testing.T) {
	cfg := testConfig()
	cfg.Session.GracePeriod = time.Minute
	s, _ := newTestServer(t, cfg, nil)

	alice := connect(t, s)
	alice.register("alice")
	alice.send("CREA$den$2")
	alice.expect("OK$CREA$den$2")
	alice.send("JOIN$alice$den")
	alice.expect("JOIN$alice$den")

	sess, _ := s.Sessions().GetByToken(alice.token)
	alice.conn.Close()
	eventually(t, "disconnect", func() bool { return sess.Status() == session.StatusDisconnected })

	s.Sweep(s.now())
	if _, ok := s.Sessions().Get(sess.ID); !ok {
		t.Fatal("a session inside its grace period must survive the sweep")
	}

	again := connect(t, s)
	again.send("RCON$not-a-token")
	again.expect("ERR$104$UNKNOWN_SESSION")
	again.send("RCON$" + alice.token)
	again.expect("OK$RCON$" + alice.token + "$alice$den")

	if sess.Status() != session.StatusActive {
		t.Errorf("expected ACTIVE after resume, got %s", sess.Status())
	}
	if s.Sessions().Count() != 1 {
		t.Errorf("the handshake session should be folded into the resumed one, got %d sessions", s.Sessions().Count())
	}

	again.send("LSTP$LOBBY$den")
	again.expect("PLRS$alice")
}

func TestGameServer_SweepGraceBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.Session.GracePeriod = time.Minute
	s, clock := newTestServer(t, cfg, nil)

	alice := connect(t, s)
	alice.register("alice")
	sess, _ := s.Sessions().GetByToken(alice.token)
	alice.conn.Close()
	eventually(t, "disconnect", func() bool { return sess.Status() == session.StatusDisconnected })

	clock.Advance(time.Minute)
	s.Sweep(clock.Now())
	if _, ok := s.Sessions().Get(sess.ID); !ok {
		t.Fatal("a session exactly at the end of its grace period must survive")
	}

	clock.Advance(time.Millisecond)
	s.Sweep(clock.Now())
	if _, ok := s.Sessions().Get(sess.ID); ok {
		t.Error("a session past its grace period should be evicted")
	}
}

func TestGraceExpired(t *testing.T) {
	tests := []struct {
		d, grace time.Duration
		want     bool
	}{
		{0, 0, true},
		{time.Second, 0, true},
		{time.Minute, time.Minute, false},
		{time.Minute + 1, time.Minute, true},
	}
	for _, tt := range tests {
		if got := graceExpired(tt.d, tt.grace); got != tt.want {
			t.Errorf("graceExpired(%s, %s) = %v, want %v", tt.d, tt.grace, got, tt.want)
		}
	}
}

func TestGameServer_SweepEvictsSilentPlayers(t *testing.T) {
	s, clock := newTestServer(t, testConfig(), nil)
	alice := connect(t, s)
	bob := connect(t, s)
	alice.register("alice")
	bob.register("bob")
	startGame(t, alice, bob)

	clock.Advance(s.cfg.Session.Timeout + time.Second)
	bob.send("PING")
	bob.expect("OK$PING")

	s.Sweep(clock.Now())

	bob.waitFor("DISC$alice")
	bob.waitFor("GEND$bob:20")
	bob.waitFor("LEAV$alice")

	if s.Sessions().Count() != 1 {
		t.Fatalf("expected only bob to remain, got %d sessions", s.Sessions().Count())
	}
	l, ok := s.Lobbies().GetLobby("den")
	if !ok {
		t.Fatal("lobby with a remaining player must survive")
	}
	if l.Status() != state.Ended {
		t.Errorf("a game left with one player should end, got %s", l.Status())
	}

	clock.Advance(s.cfg.Session.Timeout + time.Second)
	s.Sweep(clock.Now())
	if s.Sessions().Count() != 0 {
		t.Errorf("silent bob should be evicted, %d sessions left", s.Sessions().Count())
	}
	if s.Lobbies().Count() != 0 {
		t.Errorf("emptied lobby should be deleted, %d left", s.Lobbies().Count())
	}
}

func TestGameServer_ServeAndShutdown(t *testing.T) {
	s, _ := newTestServer(t, testConfig(), nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)
	_ = conn.SetReadDeadline(time.Now().Add(waitTimeout))

	line, err := reader.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "SESS$") {
		t.Fatalf("expected SESS, got %q (%v)", line, err)
	}
	if _, err := conn.Write([]byte("RGST$alice\n")); err != nil {
		t.Fatal(err)
	}
	if line, _ := reader.ReadString('\n'); line != "OK$RGST$alice$alice\n" {
		t.Fatalf("unexpected reply %q", line)
	}

	cancel()
	if line, _ := reader.ReadString('\n'); line != "STDN$\n" {
		t.Errorf("expected STDN on shutdown, got %q", line)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(waitTimeout):
		t.Fatal("Serve did not return after cancel")
	}
}
