// state/interfaces.go
package state

import "github.com/wfunc/runeserver/game"

// LobbyContext is what a lobby state needs from its lobby. Broadcast and SendTo must
// not block on the lobby's own membership lock; states call them from OnEnter while a
// transition is in progress.
type LobbyContext interface {
	game.Notifier
	GetID() string
}
