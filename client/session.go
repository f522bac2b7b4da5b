// Package client composes the local vehicle, the minigame, the ledger and
// the peer mirror into one per-player session driven by a frame loop.
//
// Tick, HandleKey, OnContact, SetInHarbor, Repair and SellAll must all be
// called from the same goroutine. Network events are queued by the
// transport and applied at the start of each Tick.
package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"velum/catalog"
	"velum/economy"
	"velum/minigame"
	"velum/netsync"
	"velum/peers"
	"velum/protocol"
	"velum/store"
	"velum/vehicle"
)

var ErrNotInHarbor = errors.New("not in harbor")

// Key codes, as reported by a keyboard layer.
const (
	KeyForward  = "KeyW"
	KeyBackward = "KeyS"
	KeyLeft     = "KeyA"
	KeyRight    = "KeyD"
	KeyFish     = "KeyF"
	KeyResolve  = "Space"
)

// Transport is the synchronization channel as the session uses it.
type Transport interface {
	ID() string
	Connected() bool
	Drain(fn func(netsync.Event)) int
	SendPose(protocol.PlayerState) error
	Close() error
}

// Persistence saves the player record.
type Persistence interface {
	SavePlayer(ctx context.Context, id string, rec store.Record) error
}

// Integrator is implemented by bodies that advance their own pose and
// report obstacle contacts, such as vehicle.KinematicBody.
type Integrator interface {
	Integrate(dt float64) []string
}

type Deps struct {
	PlayerID string
	Record   store.Record
	Body     vehicle.Body
	Stats    vehicle.Stats
	Minigame minigame.Config
	Rewards  *minigame.RewardTable
	Prices   map[string]int
	Rand     *rand.Rand

	Store            Persistence
	SnapshotInterval time.Duration

	SmoothingRate float64
	OnOutcome     func(minigame.Outcome)
	Logger        *zap.SugaredLogger
}

// View is a read-only picture of the session for a HUD.
type View struct {
	Position      [3]float64
	Speed         float64
	Durability    int
	LowDurability bool
	InHarbor      bool
	Connected     bool
	Economy       economy.Snapshot
	Minigame      minigame.Session
	Peers         map[string]peers.Pose
}

type Session struct {
	id       string
	nickname string
	log      *zap.SugaredLogger

	body     vehicle.Body
	stats    vehicle.Stats
	controls vehicle.Controls
	hull     *vehicle.Hull
	inHarbor bool

	ledger *economy.Ledger
	game   *minigame.Engine

	transport Transport
	registry  *peers.Registry
	interp    peers.Interpolator

	store         Persistence
	snapEvery     time.Duration
	sinceSnapshot time.Duration
	saving        atomic.Bool
	saves         sync.WaitGroup
	onOutcome     func(minigame.Outcome)
}

func New(d Deps) (*Session, error) {
	if d.PlayerID == "" {
		return nil, errors.New("client: empty player id")
	}
	if d.Body == nil {
		return nil, errors.New("client: nil body")
	}
	if err := d.Stats.Validate(); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if err := d.Minigame.Validate(); err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	if d.Rewards == nil {
		d.Rewards = minigame.DefaultRewards()
	}
	if d.Prices == nil {
		d.Prices = catalog.Prices(catalog.Items)
	}
	if d.Rand == nil {
		d.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if d.SmoothingRate <= 0 {
		d.SmoothingRate = peers.DefaultSmoothingRate
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop().Sugar()
	}

	s := &Session{
		id:        d.PlayerID,
		nickname:  d.Record.Nickname,
		log:       d.Logger,
		body:      d.Body,
		stats:     d.Stats,
		hull:      vehicle.NewHull(d.Record.Durability),
		ledger:    economy.NewLedger(d.Record.Currency, d.Record.Inventory, d.Prices),
		registry:  peers.NewRegistry(),
		interp:    peers.Interpolator{Rate: d.SmoothingRate},
		store:     d.Store,
		snapEvery: d.SnapshotInterval,
		onOutcome: d.OnOutcome,
	}
	s.registry.SetSelf(d.PlayerID)
	s.game = minigame.New(d.Minigame, d.Rewards, d.Rand, s.handleOutcome)
	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Ledger() *economy.Ledger { return s.ledger }

func (s *Session) Hull() *vehicle.Hull { return s.hull }

func (s *Session) Minigame() *minigame.Engine { return s.game }

func (s *Session) Peers() *peers.Registry { return s.registry }

// Attach starts using t for pose exchange. Any previous transport is closed.
func (s *Session) Attach(t Transport) {
	s.Detach()
	s.transport = t
}

// Detach closes the transport and forgets every peer.
func (s *Session) Detach() {
	if s.transport == nil {
		return
	}
	_ = s.transport.Close()
	s.transport = nil
	s.registry.Clear()
}

func (s *Session) Connected() bool {
	return s.transport != nil && s.transport.Connected()
}

// HandleKey applies a key press or release and reports whether the key is
// bound.
func (s *Session) HandleKey(code string, pressed bool) bool {
	switch code {
	case KeyForward, "ArrowUp":
		s.controls.Forward = pressed
	case KeyBackward, "ArrowDown":
		s.controls.Backward = pressed
	case KeyLeft, "ArrowLeft":
		s.controls.Left = pressed
	case KeyRight, "ArrowRight":
		s.controls.Right = pressed
	case KeyFish:
		if pressed {
			s.game.Start()
		}
	case KeyResolve:
		if pressed {
			s.game.Resolve()
		}
	default:
		return false
	}
	return true
}

// OnContact is the physics collision callback.
func (s *Session) OnContact(tag string) {
	if vehicle.ApplyContact(s.hull, tag) {
		s.log.Debugf("hit %s, durability %d", tag, s.hull.Durability())
	}
}

// SetInHarbor is the harbor zone sensor callback.
func (s *Session) SetInHarbor(in bool) { s.inHarbor = in }

func (s *Session) Repair() (int, error) {
	if !s.inHarbor {
		return 0, ErrNotInHarbor
	}
	cost, err := s.ledger.Repair(s.hull)
	if err != nil {
		return cost, err
	}
	s.log.Infof("repaired hull for %d", cost)
	return cost, nil
}

func (s *Session) SellAll() (int, error) {
	if !s.inHarbor {
		return 0, ErrNotInHarbor
	}
	total, err := s.ledger.SellAll()
	if err != nil {
		return 0, err
	}
	s.log.Infof("sold catch for %d", total)
	return total, nil
}

// Tick runs one frame of dt seconds: apply queued network events, drive the
// vehicle, publish the pose, ease peers and advance the minigame.
func (s *Session) Tick(dt float64) {
	if dt < 0 {
		dt = 0
	}
	s.applyEvents()

	vehicle.Drive(s.body, s.stats, s.controls, dt)
	if in, ok := s.body.(Integrator); ok {
		for _, tag := range in.Integrate(dt) {
			s.OnContact(tag)
		}
	}

	if s.Connected() {
		pose := peers.Pose{Position: s.body.Position(), Orientation: s.body.Orientation()}
		if err := s.transport.SendPose(pose.Wire(s.id)); err != nil && !errors.Is(err, netsync.ErrNotConnected) {
			s.log.Warnf("send pose: %v", err)
		}
	}

	s.interp.Step(s.registry, dt)
	s.game.Advance(dt)
	s.maybeSnapshot(time.Duration(dt * float64(time.Second)))
}

func (s *Session) applyEvents() {
	if s.transport == nil {
		return
	}
	disconnected := false
	s.transport.Drain(func(ev netsync.Event) {
		switch ev.Kind {
		case netsync.EventHello:
			roster := make(map[string]peers.Pose, len(ev.Roster))
			for id, st := range ev.Roster {
				roster[id] = peers.PoseFromWire(st)
			}
			if ev.Self != "" && ev.Self != s.id {
				s.log.Warnf("relay calls us %q, expected %q", ev.Self, s.id)
				s.registry.SetSelf(ev.Self)
			}
			s.registry.Seed(roster)
		case netsync.EventJoined:
			s.registry.Join(ev.State.ID, peers.PoseFromWire(ev.State))
		case netsync.EventMoved:
			s.registry.Move(ev.State.ID, peers.PoseFromWire(ev.State))
		case netsync.EventLeft:
			s.registry.Leave(ev.ID)
		case netsync.EventDisconnected:
			disconnected = true
		}
	})
	if disconnected {
		s.log.Infof("relay disconnected, dropping %d peers", s.registry.Len())
		s.Detach()
	}
}

func (s *Session) handleOutcome(out minigame.Outcome) {
	if out.Success {
		if err := s.ledger.ApplyCatch(out.Reward.ID); err != nil {
			s.log.Errorf("apply catch %q: %v", out.Reward.ID, err)
		} else {
			s.log.Infof("caught %s (%s)", out.Reward.Name, out.Reward.Tier)
		}
	}
	if s.onOutcome != nil {
		s.onOutcome(out)
	}
}

// Record builds the persisted form of the current state.
func (s *Session) Record() store.Record {
	eco := s.ledger.Snapshot()
	p := s.body.Position()
	return store.Record{
		Nickname:     s.nickname,
		Currency:     eco.Currency,
		Durability:   s.hull.Durability(),
		Inventory:    eco.Inventory,
		LastPosition: [3]float64{p[0], p[1], p[2]},
	}
}

// maybeSnapshot saves in the background once per interval. A save still in
// flight skips the next one rather than queueing behind it.
func (s *Session) maybeSnapshot(elapsed time.Duration) {
	if s.store == nil || s.snapEvery <= 0 {
		return
	}
	s.sinceSnapshot += elapsed
	if s.sinceSnapshot < s.snapEvery {
		return
	}
	if !s.saving.CompareAndSwap(false, true) {
		return
	}
	s.sinceSnapshot = 0
	rec := s.Record()
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		defer s.saving.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.SavePlayer(ctx, s.id, rec); err != nil {
			s.log.Warnf("snapshot: %v", err)
		}
	}()
}

// View reports the session state for display.
func (s *Session) View() View {
	m := vehicle.Motion{Velocity: s.body.Velocity(), AngularVelocity: s.body.AngularVelocity()}
	p := s.body.Position()
	return View{
		Position:      [3]float64{p[0], p[1], p[2]},
		Speed:         m.Speed(),
		Durability:    s.hull.Durability(),
		LowDurability: s.hull.Low(),
		InHarbor:      s.inHarbor,
		Connected:     s.Connected(),
		Economy:       s.ledger.Snapshot(),
		Minigame:      s.game.Snapshot(),
		Peers:         s.registry.Rendered(),
	}
}

// Close detaches from the relay, waits for a background save and writes a
// final snapshot.
func (s *Session) Close(ctx context.Context) error {
	s.Detach()
	s.saves.Wait()
	if s.store == nil {
		return nil
	}
	if err := s.store.SavePlayer(ctx, s.id, s.Record()); err != nil {
		return fmt.Errorf("final snapshot: %w", err)
	}
	return nil
}
