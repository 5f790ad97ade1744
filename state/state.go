package state

import (
	"errors"
	"sync"

	"github.com/wfunc/runeserver/network"
)

// StateMachine drives a lobby through its lifecycle. Only declared transitions are
// allowed.
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from, to string, condition func() bool) error
}

// State is one phase of the lifecycle.
type State interface {
	OnEnter()
	OnExit()
	GetID() string
	HandleAction(player string, cmd network.Command) (network.Command, error)
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine refuses any transition that was not declared with AddTransition or
// whose condition returns false.
type BaseStateMachine struct {
	currentState State
	transitions  map[string]map[string]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[string]map[string]func() bool),
	}
	initialState.OnEnter()
	return machine
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	conditions, ok := sm.transitions[sm.currentState.GetID()]
	if !ok {
		return ErrTransitionNotAllowed
	}
	condition, ok := conditions[newState.GetID()]
	if !ok || (condition != nil && !condition()) {
		return ErrTransitionNotAllowed
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// AddTransition declares from -> to. A nil condition always allows it.
func (sm *BaseStateMachine) AddTransition(from, to string, condition func() bool) error {
	if from == "" || to == "" {
		return errors.New("state ids must not be empty")
	}
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[string]func() bool)
	}
	sm.transitions[from][to] = condition
	return nil
}
