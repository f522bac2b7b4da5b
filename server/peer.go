package server

import "velum/protocol"

// PeerID is the relay-wide identity of one connection.
type PeerID string

// Sender is the outbound half of a peer connection.
type Sender interface {
	Enqueue(b []byte)
	Close()
}

// Peer is one connected client as the relay sees it. The relay trusts the
// pose it reports.
type Peer struct {
	ID    PeerID
	State protocol.PlayerState
	Conn  Sender
}

// Move is an inbound pose report.
type Move struct {
	From  PeerID
	State protocol.PlayerState
}

// membership is a join or leave. Both travel on one queue so a leave can
// never overtake the join it undoes. A leave names its connection so a stale
// leave cannot evict a newer connection that reused the id.
type membership struct {
	ID      PeerID
	Conn    Sender
	Leaving bool
}

func spawnState(id PeerID) protocol.PlayerState {
	return protocol.PlayerState{ID: string(id), Rotation: [4]float64{0, 0, 0, 1}}
}
