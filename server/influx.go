package server

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxConfig points the exporter at an InfluxDB v2 bucket.
type InfluxConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Token    string        `mapstructure:"token"`
	Org      string        `mapstructure:"org"`
	Bucket   string        `mapstructure:"bucket"`
	Interval time.Duration `mapstructure:"interval"`
}

// InfluxExporter periodically writes every room's counters as "relay"
// points tagged with the room id.
type InfluxExporter struct {
	rooms    *RoomManager
	client   influxdb2.Client
	writer   influxdb2_api.WriteAPI
	interval time.Duration
}

func NewInfluxExporter(cfg InfluxConfig, rooms *RoomManager) (*InfluxExporter, error) {
	if cfg.URL == "" || cfg.Bucket == "" {
		return nil, errors.New("influx: url and bucket are required")
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(500).
			SetFlushInterval(1000))
	writer := client.WriteAPI(cfg.Org, cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			Log.Errorf("influx: write to bucket %s: %v", cfg.Bucket, writeErr)
		}
	}(writer.Errors())

	return &InfluxExporter{rooms: rooms, client: client, writer: writer, interval: cfg.Interval}, nil
}

// Run exports on every interval until ctx is done, then flushes.
func (e *InfluxExporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			e.writer.Flush()
			return nil
		case <-ticker.C:
			e.exportOnce(time.Now())
		}
	}
}

func (e *InfluxExporter) exportOnce(now time.Time) {
	for _, room := range e.rooms.Rooms() {
		fields := room.Metrics().Snapshot()
		fields["peers"] = room.NumPeers()
		e.writer.WritePoint(influxdb2.NewPoint("relay",
			map[string]string{"room": room.ID}, fields, now))
	}
}

// Flush forces buffered points out.
func (e *InfluxExporter) Flush() { e.writer.Flush() }

func (e *InfluxExporter) Close() {
	e.writer.Flush()
	e.client.Close()
}
