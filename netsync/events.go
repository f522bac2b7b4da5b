package netsync

import (
	"fmt"

	"velum/protocol"
)

type EventKind int

const (
	EventHello EventKind = iota
	EventJoined
	EventMoved
	EventLeft
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventHello:
		return "hello"
	case EventJoined:
		return "joined"
	case EventMoved:
		return "moved"
	case EventLeft:
		return "left"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one inbound notification, queued for the client loop.
type Event struct {
	Kind EventKind

	// hello
	Self   string
	Roster map[string]protocol.PlayerState

	// joined, moved
	State protocol.PlayerState

	// left
	ID string

	// disconnected
	Err error
}
