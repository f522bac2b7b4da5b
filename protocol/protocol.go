package protocol

import (
	"encoding/json"
	"errors"
	"math"
)

// Message types carried in Envelope.T.
const (
	MsgHello            = "hello"            // relay -> client, once on connect
	MsgUserConnected    = "userConnected"    // relay -> others
	MsgPlayerMoved      = "playerMoved"      // relay -> others
	MsgUserDisconnected = "userDisconnected" // relay -> others
	MsgPlayerMove       = "playerMove"       // client -> relay
)

const (
	ClientTickHz = 60
	RelayTickHz  = 20
)

var (
	ErrMissingID = errors.New("missing id")
	ErrNonFinite = errors.New("non-finite pose component")
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}

// PlayerState is the pose of one vehicle as it travels on the wire.
// Rotation is a quaternion in x, y, z, w order.
type PlayerState struct {
	ID       string     `json:"id"`
	Position [3]float64 `json:"position"`
	Rotation [4]float64 `json:"rotation"`
}

// Validate rejects states that cannot be attributed to a peer or that would
// poison interpolation.
func (s PlayerState) Validate() error {
	if s.ID == "" {
		return ErrMissingID
	}
	for _, v := range s.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	for _, v := range s.Rotation {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// Hello seeds the roster. Self is the id the relay assigned to the receiver.
type Hello struct {
	Self    string                 `json:"self"`
	Players map[string]PlayerState `json:"players"`
}

type UserDisconnected struct {
	ID string `json:"id"`
}
