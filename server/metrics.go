package server

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "velum/server"

type relayInstruments struct {
	joins     metric.Int64Counter
	leaves    metric.Int64Counter
	accepted  metric.Int64Counter
	relayed   metric.Int64Counter
	discarded metric.Int64Counter
	tickTime  metric.Int64Histogram
}

var (
	instrumentsOnce sync.Once
	instruments     relayInstruments
)

func counter(m metric.Meter, name, desc string) metric.Int64Counter {
	c, err := m.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		Log.Warnf("creating %s counter: %v", name, err)
		return noop.Int64Counter{}
	}
	return c
}

func relayMetrics() *relayInstruments {
	instrumentsOnce.Do(func() {
		m := otel.Meter(instrumentationName)
		instruments.joins = counter(m, "relay.peers.joined", "Peers that joined a room")
		instruments.leaves = counter(m, "relay.peers.left", "Peers that left a room")
		instruments.accepted = counter(m, "relay.moves.accepted", "Pose reports accepted")
		instruments.relayed = counter(m, "relay.moves.relayed", "playerMoved broadcasts")
		instruments.discarded = counter(m, "relay.moves.discarded", "Pose reports dropped before the tick")
		h, err := m.Int64Histogram("relay.tick.duration",
			metric.WithDescription("Tick processing time"), metric.WithUnit("ns"))
		if err != nil {
			Log.Warnf("creating tick histogram: %v", err)
			h = noop.Int64Histogram{}
		}
		instruments.tickTime = h
	})
	return &instruments
}

// RoomMetrics counts what one room did. The counters back the JSON metrics
// endpoint and the influx exporter; the same events also go to the global
// otel meter tagged with the room id.
type RoomMetrics struct {
	TickCount         int64
	Joins             int64
	Leaves            int64
	MovesAccepted     int64
	MovesRelayed      int64
	RateLimited       int64
	Malformed         int64
	DropsSimulated    int64
	ChanFullDiscarded int64
	TotalTickNs       int64

	otel  *relayInstruments
	attrs metric.MeasurementOption
}

func NewRoomMetrics(room string) *RoomMetrics {
	return &RoomMetrics{
		otel:  relayMetrics(),
		attrs: metric.WithAttributes(attribute.String("room", room)),
	}
}

func (m *RoomMetrics) IncJoins() {
	atomic.AddInt64(&m.Joins, 1)
	m.otel.joins.Add(context.Background(), 1, m.attrs)
}

func (m *RoomMetrics) IncLeaves() {
	atomic.AddInt64(&m.Leaves, 1)
	m.otel.leaves.Add(context.Background(), 1, m.attrs)
}

func (m *RoomMetrics) IncAccepted() {
	atomic.AddInt64(&m.MovesAccepted, 1)
	m.otel.accepted.Add(context.Background(), 1, m.attrs)
}

func (m *RoomMetrics) IncRelayed() {
	atomic.AddInt64(&m.MovesRelayed, 1)
	m.otel.relayed.Add(context.Background(), 1, m.attrs)
}

func (m *RoomMetrics) IncRateLimited() { m.discard(&m.RateLimited, "rate_limited") }

func (m *RoomMetrics) IncMalformed() { m.discard(&m.Malformed, "malformed") }

func (m *RoomMetrics) IncDropsSimulated() { m.discard(&m.DropsSimulated, "simulated_drop") }

func (m *RoomMetrics) IncChanFullDiscarded() { m.discard(&m.ChanFullDiscarded, "queue_full") }

func (m *RoomMetrics) discard(n *int64, reason string) {
	atomic.AddInt64(n, 1)
	m.otel.discarded.Add(context.Background(), 1, m.attrs,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *RoomMetrics) AddTick(ns int64) {
	atomic.AddInt64(&m.TickCount, 1)
	atomic.AddInt64(&m.TotalTickNs, ns)
	m.otel.tickTime.Record(context.Background(), ns, m.attrs)
}

// Snapshot returns a read-only copy for HTTP output and export.
func (m *RoomMetrics) Snapshot() map[string]any {
	tick := atomic.LoadInt64(&m.TickCount)
	total := atomic.LoadInt64(&m.TotalTickNs)
	var avgMs float64
	if tick > 0 {
		avgMs = float64(total) / float64(tick) / 1e6
	}
	return map[string]any{
		"tick_count":          tick,
		"joins":               atomic.LoadInt64(&m.Joins),
		"leaves":              atomic.LoadInt64(&m.Leaves),
		"moves_accepted":      atomic.LoadInt64(&m.MovesAccepted),
		"moves_relayed":       atomic.LoadInt64(&m.MovesRelayed),
		"rate_limited":        atomic.LoadInt64(&m.RateLimited),
		"malformed":           atomic.LoadInt64(&m.Malformed),
		"drops_simulated":     atomic.LoadInt64(&m.DropsSimulated),
		"chan_full_discarded": atomic.LoadInt64(&m.ChanFullDiscarded),
		"avg_tick_ms":         avgMs,
	}
}
