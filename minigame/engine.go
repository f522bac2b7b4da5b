// Package minigame implements the single-shot timing interaction: an
// indicator bounces along a track and the player tries to stop it inside a
// randomly placed window.
package minigame

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"velum/catalog"
)

type State int

const (
	Idle State = iota
	Active
	Resolved
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Resolved:
		return "resolved"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type Config struct {
	TrackLength     float64       `mapstructure:"trackLength"`
	Speed           float64       `mapstructure:"speed"` // track units per second
	MinWidth        float64       `mapstructure:"minWidth"`
	MaxWidth        float64       `mapstructure:"maxWidth"`
	DisplayDuration time.Duration `mapstructure:"displayDuration"`
}

var DefaultConfig = Config{
	TrackLength:     400,
	Speed:           150,
	MinWidth:        50,
	MaxWidth:        100,
	DisplayDuration: 2 * time.Second,
}

func (c Config) Validate() error {
	if c.TrackLength <= 0 || c.Speed <= 0 {
		return fmt.Errorf("trackLength and speed must be > 0")
	}
	if c.MinWidth <= 0 || c.MaxWidth < c.MinWidth || c.MaxWidth >= c.TrackLength {
		return fmt.Errorf("window width range [%v,%v) invalid for track %v", c.MinWidth, c.MaxWidth, c.TrackLength)
	}
	if c.DisplayDuration < 0 {
		return fmt.Errorf("displayDuration must be >= 0")
	}
	return nil
}

// Outcome is emitted once per session.
type Outcome struct {
	Success     bool
	Reward      catalog.Item // zero unless Success
	Position    float64
	WindowStart float64
	WindowWidth float64
}

// Session is a read-only view for the UI.
type Session struct {
	State       State
	Position    float64
	Direction   float64
	WindowStart float64
	WindowWidth float64
	Last        *Outcome
}

// Engine runs one session at a time: Idle -> Active -> Resolved -> Idle.
//
// armed is claimed with a compare-and-swap before anything else in Resolve,
// so any number of resolve triggers, from any goroutine, resolve a session
// at most once.
type Engine struct {
	cfg       Config
	rewards   *RewardTable
	onOutcome func(Outcome)

	armed atomic.Bool

	mu          sync.Mutex
	rng         *rand.Rand
	state       State
	pos         float64
	dir         float64
	winStart    float64
	winWidth    float64
	displayLeft float64
	last        *Outcome
}

// New builds an idle engine. onOutcome runs on the goroutine that resolved
// the session, after the engine has already moved to Resolved.
func New(cfg Config, rewards *RewardTable, rng *rand.Rand, onOutcome func(Outcome)) *Engine {
	e := &Engine{
		cfg:       cfg,
		rewards:   rewards,
		onOutcome: onOutcome,
		rng:       rng,
		dir:       1,
	}
	e.armed.Store(true)
	return e
}

// Start begins a session. Only permitted while Idle.
func (e *Engine) Start() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != Idle {
		return false
	}
	e.winWidth = e.cfg.MinWidth + e.rng.Float64()*(e.cfg.MaxWidth-e.cfg.MinWidth)
	e.winStart = e.rng.Float64() * (e.cfg.TrackLength - e.winWidth)
	e.pos = 0
	e.dir = 1
	e.last = nil
	e.state = Active
	e.armed.Store(false)
	return true
}

// Advance moves the indicator while Active and counts down the result
// display while Resolved. dt is in seconds.
func (e *Engine) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case Active:
		if e.armed.Load() {
			return
		}
		e.pos += e.dir * e.cfg.Speed * dt
		if e.pos >= e.cfg.TrackLength {
			e.pos = e.cfg.TrackLength
			e.dir = -1
		} else if e.pos <= 0 {
			e.pos = 0
			e.dir = 1
		}
	case Resolved:
		e.displayLeft -= dt
		if e.displayLeft <= 0 {
			e.displayLeft = 0
			e.state = Idle
		}
	}
}

// Resolve stops the indicator and scores it against the window read at this
// moment. It returns false when the trigger was ignored.
func (e *Engine) Resolve() bool {
	if !e.armed.CompareAndSwap(false, true) {
		return false
	}

	e.mu.Lock()
	if e.state != Active {
		e.mu.Unlock()
		return false
	}
	out := Outcome{
		Position:    e.pos,
		WindowStart: e.winStart,
		WindowWidth: e.winWidth,
	}
	out.Success = e.pos >= e.winStart && e.pos <= e.winStart+e.winWidth
	if out.Success {
		out.Reward = e.rewards.Draw(e.rng)
	}
	e.state = Resolved
	e.displayLeft = e.cfg.DisplayDuration.Seconds()
	e.last = &out
	e.mu.Unlock()

	if e.onOutcome != nil {
		e.onOutcome(out)
	}
	return true
}

// Cancel abandons an active session without an outcome.
func (e *Engine) Cancel() bool {
	if !e.armed.CompareAndSwap(false, true) {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = Idle
	return true
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) Snapshot() Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Session{
		State:       e.state,
		Position:    e.pos,
		Direction:   e.dir,
		WindowStart: e.winStart,
		WindowWidth: e.winWidth,
	}
	if e.last != nil {
		last := *e.last
		s.Last = &last
	}
	return s
}
