// Package config loads settings from defaults, an optional velum.cfg.json,
// an optional .env file and VELUM_* environment variables, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"velum/minigame"
	"velum/server"
	"velum/store"
	"velum/vehicle"
)

const (
	FileName  = "velum.cfg.json"
	EnvPrefix = "VELUM"
)

// ClientConfig is what a game client or bot needs to join a relay.
type ClientConfig struct {
	RelayURL         string
	Room             string
	Player           string
	Nickname         string
	SnapshotInterval time.Duration
}

// Load reads configuration from configDir and sets default values.
func Load(configDir string) error {
	if err := godotenv.Load(filepath.Join(configDir, ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error reading .env: %w", err)
	}

	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logFile", "velum.log")
	viper.SetDefault("addr", ":8080")

	viper.SetDefault("vehicle.acceleration", vehicle.DefaultStats.Acceleration)
	viper.SetDefault("vehicle.maxSpeed", vehicle.DefaultStats.MaxSpeed)
	viper.SetDefault("vehicle.backwardMaxSpeed", vehicle.DefaultStats.BackwardMaxSpeed)
	viper.SetDefault("vehicle.rotationSpeed", vehicle.DefaultStats.RotationSpeed)
	viper.SetDefault("vehicle.drag", vehicle.DefaultStats.Drag)
	viper.SetDefault("vehicle.angularDrag", vehicle.DefaultStats.AngularDrag)

	viper.SetDefault("minigame.trackLength", minigame.DefaultConfig.TrackLength)
	viper.SetDefault("minigame.speed", minigame.DefaultConfig.Speed)
	viper.SetDefault("minigame.minWidth", minigame.DefaultConfig.MinWidth)
	viper.SetDefault("minigame.maxWidth", minigame.DefaultConfig.MaxWidth)
	viper.SetDefault("minigame.displayDuration", minigame.DefaultConfig.DisplayDuration)

	viper.SetDefault("relay.maxMovesPerTick", 0)
	viper.SetDefault("relay.simulateDropProb", 0.0)

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.dsn", "")
	viper.SetDefault("store.path", "velum.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.url", "http://localhost:8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "velum")
	viper.SetDefault("influx.bucket", "relay")
	viper.SetDefault("influx.interval", 10*time.Second)

	viper.SetDefault("client.relayURL", "ws://localhost:8080/ws")
	viper.SetDefault("client.room", server.DefaultRoom)
	viper.SetDefault("client.player", "")
	viper.SetDefault("client.nickname", store.DefaultNickname)
	viper.SetDefault("client.snapshotInterval", 10*time.Second)

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func GetString(key string) string {
	return viper.GetString(key)
}

func LogLevel() string { return viper.GetString("logLevel") }

func LogFile() string { return viper.GetString("logFile") }

func Addr() string { return viper.GetString("addr") }

// Vehicle returns the validated motion stats.
func Vehicle() (vehicle.Stats, error) {
	s := vehicle.Stats{
		Acceleration:     viper.GetFloat64("vehicle.acceleration"),
		MaxSpeed:         viper.GetFloat64("vehicle.maxSpeed"),
		BackwardMaxSpeed: viper.GetFloat64("vehicle.backwardMaxSpeed"),
		RotationSpeed:    viper.GetFloat64("vehicle.rotationSpeed"),
		Drag:             viper.GetFloat64("vehicle.drag"),
		AngularDrag:      viper.GetFloat64("vehicle.angularDrag"),
	}
	if err := s.Validate(); err != nil {
		return vehicle.Stats{}, fmt.Errorf("vehicle config: %w", err)
	}
	return s, nil
}

// Minigame returns the validated timing minigame settings.
func Minigame() (minigame.Config, error) {
	c := minigame.Config{
		TrackLength:     viper.GetFloat64("minigame.trackLength"),
		Speed:           viper.GetFloat64("minigame.speed"),
		MinWidth:        viper.GetFloat64("minigame.minWidth"),
		MaxWidth:        viper.GetFloat64("minigame.maxWidth"),
		DisplayDuration: viper.GetDuration("minigame.displayDuration"),
	}
	if err := c.Validate(); err != nil {
		return minigame.Config{}, fmt.Errorf("minigame config: %w", err)
	}
	return c, nil
}

func Relay() server.Settings {
	return server.Settings{
		MaxMovesPerTick:  viper.GetInt("relay.maxMovesPerTick"),
		SimulateDropProb: viper.GetFloat64("relay.simulateDropProb"),
	}
}

func Store() store.Config {
	return store.Config{
		Driver: viper.GetString("store.driver"),
		DSN:    viper.GetString("store.dsn"),
		Path:   viper.GetString("store.path"),
	}
}

func Influx() server.InfluxConfig {
	return server.InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		URL:      viper.GetString("influx.url"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
		Bucket:   viper.GetString("influx.bucket"),
		Interval: viper.GetDuration("influx.interval"),
	}
}

func Client() ClientConfig {
	return ClientConfig{
		RelayURL:         viper.GetString("client.relayURL"),
		Room:             viper.GetString("client.room"),
		Player:           viper.GetString("client.player"),
		Nickname:         viper.GetString("client.nickname"),
		SnapshotInterval: viper.GetDuration("client.snapshotInterval"),
	}
}
