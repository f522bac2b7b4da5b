package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"velum/config"
	"velum/server"
)

// Velum relay: serves the websocket relay plus admin and metrics endpoints.
func main() {
	var addr, configDir string
	flag.StringVar(&addr, "addr", "", "server listen address, e.g. :8080 (overrides config)")
	flag.StringVar(&configDir, "config", ".", "directory holding velum.cfg.json and .env")
	flag.Parse()

	if err := config.Load(configDir); err != nil {
		panic(err)
	}
	if addr == "" {
		addr = config.Addr()
	}
	if err := server.InitLogger(config.LogFile(), config.LogLevel()); err != nil {
		panic(err)
	}
	defer server.SyncLogger()

	server.ConfigureDefault(config.Relay())
	rm := server.GetRoomManager()
	// pre-create the default room so a first client finds it ticking
	_ = rm.GetOrCreateRoom(server.DefaultRoom)

	mux := http.NewServeMux()
	rm.Routes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		server.Log.Infof("Velum relay listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if ic := config.Influx(); ic.Enabled {
		exporter, err := server.NewInfluxExporter(ic, rm)
		if err != nil {
			server.Log.Fatalf("influx: %v", err)
		}
		defer exporter.Close()
		g.Go(func() error { return exporter.Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		server.Log.Info("Shutting down...")
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		rm.StopAll()
		return err
	})

	if err := g.Wait(); err != nil {
		server.Log.Errorf("relay: %v", err)
	}
}
