package minigame

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, seed uint64, onOutcome func(Outcome)) *Engine {
	t.Helper()
	require.NoError(t, DefaultConfig.Validate())
	return New(DefaultConfig, DefaultRewards(), rand.New(rand.NewPCG(seed, seed+1)), onOutcome)
}

// advanceTo moves a freshly started indicator to pos (no bounce).
func advanceTo(e *Engine, pos float64) {
	e.Advance(pos / e.cfg.Speed)
}

func TestStartInitializesSession(t *testing.T) {
	e := newTestEngine(t, 1, nil)
	require.Equal(t, Idle, e.State())
	require.True(t, e.Start())

	s := e.Snapshot()
	assert.Equal(t, Active, s.State)
	assert.Equal(t, 0.0, s.Position)
	assert.Equal(t, 1.0, s.Direction)
	assert.GreaterOrEqual(t, s.WindowWidth, DefaultConfig.MinWidth)
	assert.Less(t, s.WindowWidth, DefaultConfig.MaxWidth)
	assert.GreaterOrEqual(t, s.WindowStart, 0.0)
	assert.Less(t, s.WindowStart, DefaultConfig.TrackLength-s.WindowWidth)
}

func TestStartOnlyFromIdle(t *testing.T) {
	e := newTestEngine(t, 2, nil)
	require.True(t, e.Start())
	assert.False(t, e.Start(), "already active")

	require.True(t, e.Resolve())
	assert.False(t, e.Start(), "still showing result")
}

func TestIndicatorBouncesAtBothEnds(t *testing.T) {
	e := newTestEngine(t, 3, nil)
	require.True(t, e.Start())

	e.Advance(10)
	s := e.Snapshot()
	assert.Equal(t, DefaultConfig.TrackLength, s.Position)
	assert.Equal(t, -1.0, s.Direction)

	e.Advance(1)
	assert.InDelta(t, DefaultConfig.TrackLength-DefaultConfig.Speed, e.Snapshot().Position, 1e-9)

	e.Advance(10)
	s = e.Snapshot()
	assert.Equal(t, 0.0, s.Position)
	assert.Equal(t, 1.0, s.Direction)
}

func TestAdvanceIsFrameRateIndependent(t *testing.T) {
	a := newTestEngine(t, 4, nil)
	b := newTestEngine(t, 4, nil)
	require.True(t, a.Start())
	require.True(t, b.Start())

	a.Advance(1)
	for i := 0; i < 144; i++ {
		b.Advance(1.0 / 144)
	}
	assert.InDelta(t, a.Snapshot().Position, b.Snapshot().Position, 1e-6)
}

func TestResolveInsideWindowSucceedsWithReward(t *testing.T) {
	var got []Outcome
	e := newTestEngine(t, 5, func(o Outcome) { got = append(got, o) })
	require.True(t, e.Start())

	s := e.Snapshot()
	advanceTo(e, s.WindowStart+s.WindowWidth/2)
	require.True(t, e.Resolve())

	require.Len(t, got, 1)
	assert.True(t, got[0].Success)
	assert.NotEmpty(t, got[0].Reward.ID)
	assert.Equal(t, Resolved, e.State())
}

func TestResolveOutsideWindowFails(t *testing.T) {
	var got []Outcome
	e := newTestEngine(t, 6, func(o Outcome) { got = append(got, o) })
	require.True(t, e.Start())

	s := e.Snapshot()
	end := s.WindowStart + s.WindowWidth
	if end+1 < DefaultConfig.TrackLength {
		advanceTo(e, end+1)
	} else {
		advanceTo(e, s.WindowStart-1)
	}
	require.True(t, e.Resolve())

	require.Len(t, got, 1)
	assert.False(t, got[0].Success)
	assert.Empty(t, got[0].Reward.ID)
}

func TestFullCycleResolvesExactlyOnce(t *testing.T) {
	var calls int
	e := newTestEngine(t, 7, func(Outcome) { calls++ })

	assert.False(t, e.Resolve(), "trigger while idle is ignored")
	require.True(t, e.Start())
	e.Advance(0.7)
	require.True(t, e.Resolve())
	for i := 0; i < 20; i++ {
		assert.False(t, e.Resolve())
	}
	assert.Equal(t, Resolved, e.State())

	frozen := e.Snapshot().Position
	e.Advance(0.5)
	assert.Equal(t, frozen, e.Snapshot().Position, "indicator stops once resolved")
	assert.Equal(t, Resolved, e.State())

	e.Advance(DefaultConfig.DisplayDuration.Seconds())
	assert.Equal(t, Idle, e.State())
	assert.False(t, e.Resolve())
	assert.Equal(t, 1, calls)

	require.True(t, e.Start(), "a new session may begin once idle")
}

func TestConcurrentResolveTriggersResolveOnce(t *testing.T) {
	var calls atomic.Int32
	e := newTestEngine(t, 8, func(Outcome) { calls.Add(1) })
	require.True(t, e.Start())
	e.Advance(0.3)

	var wg sync.WaitGroup
	var accepted atomic.Int32
	start := make(chan struct{})
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if e.Resolve() {
				accepted.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), accepted.Load())
	assert.Equal(t, int32(1), calls.Load())
}

func TestCancelDropsSessionWithoutOutcome(t *testing.T) {
	var calls int
	e := newTestEngine(t, 9, func(Outcome) { calls++ })
	require.True(t, e.Start())
	require.True(t, e.Cancel())
	assert.Equal(t, Idle, e.State())
	assert.False(t, e.Resolve())
	assert.False(t, e.Cancel())
	assert.Zero(t, calls)
}

func TestConfigValidate(t *testing.T) {
	bad := DefaultConfig
	bad.MaxWidth = bad.TrackLength
	assert.Error(t, bad.Validate())

	bad = DefaultConfig
	bad.Speed = 0
	assert.Error(t, bad.Validate())
}
