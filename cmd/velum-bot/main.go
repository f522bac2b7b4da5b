// velum-bot is a headless client: it loads a player from the store, joins a
// relay, cruises around an obstacle field, fishes, and trades whenever it
// passes the harbor.
package main

import (
	"context"
	"errors"
	"flag"
	"math/rand/v2"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"velum/client"
	"velum/config"
	"velum/minigame"
	"velum/netsync"
	"velum/protocol"
	"velum/server"
	"velum/store"
	"velum/vehicle"
)

var (
	harborCenter = mgl64.Vec3{0, 0, 0}
	harborRadius = 6.0
)

func main() {
	var configDir, player string
	var duration time.Duration
	flag.StringVar(&configDir, "config", ".", "directory holding velum.cfg.json and .env")
	flag.StringVar(&player, "player", "", "player id (overrides client.player)")
	flag.DurationVar(&duration, "duration", 0, "stop after this long; 0 runs until interrupted")
	flag.Parse()

	if err := config.Load(configDir); err != nil {
		panic(err)
	}
	if err := server.InitLogger("velum-bot.log", config.LogLevel()); err != nil {
		panic(err)
	}
	defer server.SyncLogger()
	log := server.Log

	if err := run(player, duration, log); err != nil {
		log.Errorf("bot stopped: %v", err)
		os.Exit(1)
	}
}

func run(player string, duration time.Duration, log *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	cc := config.Client()
	if player != "" {
		cc.Player = player
	}
	if cc.Player == "" {
		return errors.New("no player id: set -player or client.player")
	}
	stats, err := config.Vehicle()
	if err != nil {
		return err
	}
	mg, err := config.Minigame()
	if err != nil {
		return err
	}

	st, err := store.Open(config.Store(), log)
	if err != nil {
		return err
	}
	defer st.Close()

	rec, err := st.CreatePlayerIfAbsent(ctx, cc.Player, cc.Nickname)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	p := rec.LastPosition
	body := vehicle.NewKinematicBody(mgl64.Vec3{p[0], p[1], p[2]}, mgl64.QuatIdent(), 1)
	body.Obstacles = scatterRocks(rng, 12)

	sess, err := client.New(client.Deps{
		PlayerID:         cc.Player,
		Record:           rec,
		Body:             body,
		Stats:            stats,
		Minigame:         mg,
		Rand:             rng,
		Store:            st,
		SnapshotInterval: cc.SnapshotInterval,
		Logger:           log.With("player", cc.Player),
	})
	if err != nil {
		return err
	}

	relayURL, err := joinURL(cc.RelayURL, cc.Room, cc.Player)
	if err != nil {
		return err
	}

	want := make(chan struct{}, 1)
	ready := make(chan *netsync.Channel)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dialLoop(ctx, relayURL, log, want, ready)
		return nil
	})
	g.Go(func() error {
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := sess.Close(cctx); err != nil {
				log.Warnf("close session: %v", err)
			}
		}()
		drive(ctx, sess, body, rng, log, want, ready)
		return nil
	})
	return g.Wait()
}

// dialLoop connects whenever asked, retrying with backoff, and hands each
// new channel to the frame loop.
func dialLoop(ctx context.Context, relayURL string, log *zap.SugaredLogger, want <-chan struct{}, ready chan<- *netsync.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-want:
		}
		backoff := 500 * time.Millisecond
		for {
			dctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			ch, err := netsync.Dial(dctx, relayURL, netsync.Options{Logger: log})
			cancel()
			if err == nil {
				select {
				case ready <- ch:
				case <-ctx.Done():
					_ = ch.Close()
					return
				}
				break
			}
			log.Warnf("dial %s: %v (retry in %s)", relayURL, err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, 10*time.Second)
		}
	}
}

// drive is the frame loop. It owns the session.
func drive(ctx context.Context, sess *client.Session, body *vehicle.KinematicBody, rng *rand.Rand, log *zap.SugaredLogger, want chan<- struct{}, ready <-chan *netsync.Channel) {
	frame := time.Second / protocol.ClientTickHz
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	last := time.Now()
	dialing := false
	var steerLeft time.Duration
	fishAt := last.Add(3 * time.Second)
	var resolveAt time.Time

	sess.HandleKey(client.KeyForward, true)
	for {
		if !sess.Connected() && !dialing {
			select {
			case want <- struct{}{}:
				dialing = true
			default:
			}
		}
		select {
		case <-ctx.Done():
			return
		case ch := <-ready:
			sess.Attach(ch)
			dialing = false
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			// wander: hold a turn key for a random stretch, then straighten out
			steerLeft -= dt
			if steerLeft <= 0 {
				turn := rng.IntN(3)
				sess.HandleKey(client.KeyLeft, turn == 0)
				sess.HandleKey(client.KeyRight, turn == 1)
				steerLeft = time.Duration(500+rng.IntN(2500)) * time.Millisecond
			}

			switch sess.Minigame().State() {
			case minigame.Idle:
				if now.After(fishAt) {
					sess.HandleKey(client.KeyFish, true)
					resolveAt = now.Add(time.Duration(300+rng.IntN(2500)) * time.Millisecond)
				}
			case minigame.Active:
				if now.After(resolveAt) {
					sess.HandleKey(client.KeyResolve, true)
					fishAt = now.Add(time.Duration(2+rng.IntN(6)) * time.Second)
				}
			}

			inHarbor := body.Position().Sub(harborCenter).Len() <= harborRadius
			if inHarbor != sess.View().InHarbor {
				sess.SetInHarbor(inHarbor)
				if inHarbor {
					trade(sess, log)
				}
			}

			sess.Tick(dt.Seconds())
		}
	}
}

func trade(sess *client.Session, log *zap.SugaredLogger) {
	if _, err := sess.SellAll(); err != nil {
		log.Debugf("sell: %v", err)
	}
	if _, err := sess.Repair(); err != nil {
		log.Debugf("repair: %v", err)
	}
}

func scatterRocks(rng *rand.Rand, n int) []vehicle.Obstacle {
	out := make([]vehicle.Obstacle, 0, n)
	for len(out) < n {
		c := mgl64.Vec3{rng.Float64()*80 - 40, 0, rng.Float64()*80 - 40}
		if c.Sub(harborCenter).Len() < harborRadius+2 {
			continue
		}
		out = append(out, vehicle.Obstacle{Center: c, Radius: 0.5 + rng.Float64()*1.5, Tag: vehicle.ObstacleTag})
	}
	return out
}

func joinURL(base, room, player string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("room", room)
	q.Set("player", player)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
