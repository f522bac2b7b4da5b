package server

import (
	"time"

	"velum/protocol"
)

var tickInterval = time.Second / protocol.RelayTickHz // 50ms

// StartTicker starts the room's single tick goroutine.
func (r *Room) StartTicker() {
	if r.tickerStarted {
		return
	}
	r.tickerStarted = true
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-r.quit:
				r.closeAll()
				return
			case <-ticker.C:
				// drain inputs -> relay what moved
				start := time.Now()
				r.BeginTick()
				r.ProcessInputs()
				r.BroadcastDelta()
				r.metrics.AddTick(time.Since(start).Nanoseconds())
			}
		}
	}()
}

// Stop ends the tick goroutine and disconnects every peer.
func (r *Room) Stop() {
	r.stopOnce.Do(func() { close(r.quit) })
}
