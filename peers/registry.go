// Package peers mirrors remote vehicles: one PeerState per connected peer,
// each with the latest received pose and the pose currently being drawn.
package peers

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"

	"velum/protocol"
)

type Pose struct {
	Position    mgl64.Vec3
	Orientation mgl64.Quat
}

// PoseFromWire converts a wire state. Rotation is x, y, z, w; it is
// normalized, and a zero quaternion becomes identity.
func PoseFromWire(s protocol.PlayerState) Pose {
	q := mgl64.Quat{W: s.Rotation[3], V: mgl64.Vec3{s.Rotation[0], s.Rotation[1], s.Rotation[2]}}
	return Pose{
		Position:    mgl64.Vec3{s.Position[0], s.Position[1], s.Position[2]},
		Orientation: q.Normalize(),
	}
}

// Wire converts back to the wire form for id.
func (p Pose) Wire(id string) protocol.PlayerState {
	q := p.Orientation
	return protocol.PlayerState{
		ID:       id,
		Position: [3]float64{p.Position[0], p.Position[1], p.Position[2]},
		Rotation: [4]float64{q.V[0], q.V[1], q.V[2], q.W},
	}
}

type PeerState struct {
	ID       string
	Target   Pose
	Rendered Pose
}

// Registry holds the PeerStates. It is owned by the client loop and is not
// safe for concurrent use.
type Registry struct {
	self  string
	peers map[string]*PeerState
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*PeerState)}
}

// SetSelf records the local id; it is never mirrored.
func (r *Registry) SetSelf(id string) {
	r.self = id
	delete(r.peers, id)
}

func (r *Registry) Self() string { return r.self }

// Seed adds every roster entry except self.
func (r *Registry) Seed(roster map[string]Pose) {
	for id, p := range roster {
		r.Join(id, p)
	}
}

// Join creates the peer if absent. A repeated join only refreshes the target.
func (r *Registry) Join(id string, p Pose) bool {
	return r.upsert(id, p)
}

// Move sets the target pose. An unknown id is created on the spot so a lost
// or reordered join does not hide the peer. Reports whether it was created.
func (r *Registry) Move(id string, p Pose) bool {
	return r.upsert(id, p)
}

func (r *Registry) upsert(id string, p Pose) bool {
	if id == "" || id == r.self {
		return false
	}
	if ps, ok := r.peers[id]; ok {
		ps.Target = p
		return false
	}
	r.peers[id] = &PeerState{ID: id, Target: p, Rendered: p}
	return true
}

func (r *Registry) Leave(id string) bool {
	if _, ok := r.peers[id]; !ok {
		return false
	}
	delete(r.peers, id)
	return true
}

// Clear drops every peer, as on transport loss.
func (r *Registry) Clear() {
	clear(r.peers)
}

func (r *Registry) Get(id string) (PeerState, bool) {
	ps, ok := r.peers[id]
	if !ok {
		return PeerState{}, false
	}
	return *ps, true
}

func (r *Registry) Len() int { return len(r.peers) }

// IDs returns peer ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Rendered returns the drawn pose of every peer.
func (r *Registry) Rendered() map[string]Pose {
	out := make(map[string]Pose, len(r.peers))
	for id, ps := range r.peers {
		out[id] = ps.Rendered
	}
	return out
}
