package lobby

import "github.com/wfunc/runeserver/network"

// Broadcaster delivers a line to one connected player by name.
// This is defined here to break the import cycle between lobby and broadcast.
type Broadcaster interface {
	SendToPlayer(name string, cmd network.Command) error
}
