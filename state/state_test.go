package state

import (
	"sync"
	"testing"

	"github.com/wfunc/runeserver/catalog"
	"github.com/wfunc/runeserver/errs"
	"github.com/wfunc/runeserver/game"
	"github.com/wfunc/runeserver/network"
)

// MockState is a test double for the State interface.
// It helps us track which methods have been called.
type MockState struct {
	ID            string
	OnEnterCalled bool
	OnExitCalled  bool
}

func (m *MockState) OnEnter() {
	m.OnEnterCalled = true
}

func (m *MockState) OnExit() {
	m.OnExitCalled = true
}

func (m *MockState) GetID() string {
	return m.ID
}

func (m *MockState) HandleAction(player string, cmd network.Command) (network.Command, error) {
	return network.OK(cmd), nil
}

// reset clears the call tracking flags.
func (m *MockState) reset() {
	m.OnEnterCalled = false
	m.OnExitCalled = false
}

// MockLobby records what states send to the lobby.
type MockLobby struct {
	mu   sync.Mutex
	sent []network.Command
}

func (m *MockLobby) GetID() string { return "mock" }

func (m *MockLobby) Broadcast(cmd network.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, cmd)
}

func (m *MockLobby) SendTo(player string, cmd network.Command) {
	m.Broadcast(cmd)
}

func (m *MockLobby) codes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, c := range m.sent {
		out[i] = c.Code
	}
	return out
}

func TestStateMachine_InitialState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	sm := NewBaseStateMachine(initialState)

	if !initialState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the initial state")
	}

	if sm.GetCurrentState() != initialState {
		t.Error("GetCurrentState should return the initial state")
	}
}

func TestStateMachine_ChangeState(t *testing.T) {
	initialState := &MockState{ID: "initial"}
	nextState := &MockState{ID: "next"}

	sm := NewBaseStateMachine(initialState)
	if err := sm.AddTransition("initial", "next", nil); err != nil {
		t.Fatal(err)
	}
	initialState.reset() // Reset after initialization

	err := sm.ChangeState(nextState)
	if err != nil {
		t.Fatalf("ChangeState should not return an error, but got: %v", err)
	}

	if !initialState.OnExitCalled {
		t.Error("Expected OnExit to be called on the old state")
	}

	if !nextState.OnEnterCalled {
		t.Error("Expected OnEnter to be called on the new state")
	}

	if sm.GetCurrentState() != nextState {
		t.Error("GetCurrentState should return the new state")
	}
}

func TestStateMachine_UndeclaredTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	sm := NewBaseStateMachine(stateA)

	if err := sm.ChangeState(stateB); err != ErrTransitionNotAllowed {
		t.Fatalf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if stateB.OnEnterCalled {
		t.Error("OnEnter should not be called on a refused state")
	}

	if err := sm.AddTransition("A", "B", nil); err != nil {
		t.Fatal(err)
	}
	if err := sm.ChangeState(stateB); err != nil {
		t.Fatalf("declared transition failed: %v", err)
	}
	if err := sm.ChangeState(&MockState{ID: "B"}); err != ErrTransitionNotAllowed {
		t.Errorf("B -> B was never declared, got %v", err)
	}
	if err := sm.AddTransition("", "B", nil); err == nil {
		t.Error("empty ids should be rejected")
	}
}

func TestStateMachine_AddAndUseTransition(t *testing.T) {
	stateA := &MockState{ID: "A"}
	stateB := &MockState{ID: "B"}
	stateC := &MockState{ID: "C"}

	sm := NewBaseStateMachine(stateA)

	// Add a valid transition from A to B
	err := sm.AddTransition("A", "B", func() bool { return true })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// Add a blocked transition from B to C
	err = sm.AddTransition("B", "C", func() bool { return false })
	if err != nil {
		t.Fatalf("AddTransition failed: %v", err)
	}

	// --- Test valid transition ---
	stateA.reset()
	err = sm.ChangeState(stateB)
	if err != nil {
		t.Errorf("Expected transition from A to B to be allowed, but got error: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to be B, but got %s", sm.GetCurrentState().GetID())
	}

	// --- Test blocked transition ---
	stateB.reset()
	err = sm.ChangeState(stateC)
	if err != ErrTransitionNotAllowed {
		t.Errorf("Expected ErrTransitionNotAllowed, but got: %v", err)
	}
	if sm.GetCurrentState().GetID() != "B" {
		t.Errorf("Expected current state to remain B after a blocked transition, but got %s", sm.GetCurrentState().GetID())
	}
	if stateB.OnExitCalled {
		t.Error("OnExit should not be called on the current state if transition is blocked")
	}
	if stateC.OnEnterCalled {
		t.Error("OnEnter should not be called on the new state if transition is blocked")
	}
}

func newGame(t *testing.T) *game.Game {
	t.Helper()
	s := game.DefaultSettings()
	s.RoundLimit = 2
	g, err := game.NewGame(s, catalog.Default(), nil, []string{"alice", "bob"})
	if err != nil {
		t.Fatal(err)
	}
	return g
}

func TestWaitingState_RefusesGameCommands(t *testing.T) {
	s := NewWaitingState(&MockLobby{})
	_, err := s.HandleAction("alice", network.NewCommand("BTIL", "0", "0"))
	if err != errs.ErrNotInGame {
		t.Errorf("Expected NOT_IN_GAME, got %v", err)
	}
}

func TestInGameState_Lifecycle(t *testing.T) {
	lobby := &MockLobby{}
	g := newGame(t)
	inGame := NewInGameState(lobby, g)
	inGame.OnEnter()

	codes := lobby.codes()
	if len(codes) != 2 || codes[0] != "GSTR" || codes[1] != "TURN" {
		t.Fatalf("Expected GSTR then TURN, got %v", codes)
	}

	reply, err := inGame.HandleAction("alice", network.NewCommand("ENDT"))
	if err != nil || reply.Code != "OK" {
		t.Fatalf("ENDT failed: %v %v", reply, err)
	}
	if g.CurrentPlayer() != "bob" {
		t.Errorf("Expected bob's turn, got %s", g.CurrentPlayer())
	}

	var (
		gotLobby   string
		gotRanking []game.Standing
	)
	ended := NewEndedState(lobby, g, func(l string, r []game.Standing) {
		gotLobby, gotRanking = l, r
	})
	ended.OnEnter()
	if gotLobby != "mock" || len(gotRanking) != 2 {
		t.Errorf("OnEnd not called with the ranking: %q %v", gotLobby, gotRanking)
	}
	if codes := lobby.codes(); codes[len(codes)-1] != "GEND" {
		t.Errorf("Expected the ranking to be announced, got %v", codes)
	}
	if _, err := ended.HandleAction("bob", network.NewCommand("ENDT")); errs.CodeOf(err) != errs.CodeNotInGame {
		t.Errorf("Expected NOT_IN_GAME after the end, got %v", err)
	}
}
