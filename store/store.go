// Package store persists player records: currency, durability, inventory and
// last position. SQLite is the default; Postgres is used when configured.
package store

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"velum/vehicle"
)

const DefaultNickname = "Adventurer"

var ErrNotFound = errors.New("player not found")

type Config struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`    // postgres DSN
	Path   string `mapstructure:"path"`   // sqlite file; empty means in-memory
}

// Player is the persisted row.
type Player struct {
	ID         string `gorm:"primaryKey"`
	Nickname   string
	Currency   int
	Durability int
	Inventory  datatypes.JSONType[map[string]int]
	LastX      float64
	LastY      float64
	LastZ      float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Record is what the game loads and saves.
type Record struct {
	Nickname     string
	Currency     int
	Durability   int
	Inventory    map[string]int
	LastPosition [3]float64
}

func (p Player) record() Record {
	inv := p.Inventory.Data()
	if inv == nil {
		inv = map[string]int{}
	}
	return Record{
		Nickname:     p.Nickname,
		Currency:     p.Currency,
		Durability:   p.Durability,
		Inventory:    inv,
		LastPosition: [3]float64{p.LastX, p.LastY, p.LastZ},
	}
}

type Store struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// Open connects and migrates the schema.
func Open(cfg Config, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	gcfg := &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		}), gcfg)
	case "sqlite", "":
		path := cfg.Path
		if path == "" {
			// a private shared-cache name keeps separate stores apart
			path = fmt.Sprintf("file:velum-%s?mode=memory&cache=shared", uuid.NewString())
		}
		gcfg.PrepareStmt = true
		db, err = gorm.Open(sqlite.Open(path), gcfg)
		if err == nil {
			err = db.Exec("PRAGMA busy_timeout = 5000;").Error
		}
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&Player{}); err != nil {
		return nil, fmt.Errorf("migrate players: %w", err)
	}
	log.Infof("store ready: driver=%s", db.Dialector.Name())
	return &Store{db: db, log: log}, nil
}

func (s *Store) LoadPlayer(ctx context.Context, id string) (Record, error) {
	var p Player
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("load player %s: %w", id, err)
	}
	return p.record(), nil
}

// CreatePlayerIfAbsent returns the stored record, creating a fresh one
// (no currency, full hull, empty hold, origin) on first sight.
func (s *Store) CreatePlayerIfAbsent(ctx context.Context, id, nickname string) (Record, error) {
	if id == "" {
		return Record{}, fmt.Errorf("create player: empty id")
	}
	if nickname == "" {
		nickname = DefaultNickname
	}
	p := Player{}
	res := s.db.WithContext(ctx).
		Where(Player{ID: id}).
		Attrs(Player{
			Nickname:   nickname,
			Durability: vehicle.MaxDurability,
			Inventory:  datatypes.NewJSONType(map[string]int{}),
		}).
		FirstOrCreate(&p)
	if res.Error != nil {
		return Record{}, fmt.Errorf("create player %s: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Infof("new player created: %s", id)
	}
	return p.record(), nil
}

// SavePlayer snapshots rec over an existing row.
func (s *Store) SavePlayer(ctx context.Context, id string, rec Record) error {
	inv := maps.Clone(rec.Inventory)
	if inv == nil {
		inv = map[string]int{}
	}
	res := s.db.WithContext(ctx).Model(&Player{}).Where("id = ?", id).Updates(map[string]any{
		"currency":   rec.Currency,
		"durability": rec.Durability,
		"inventory":  datatypes.NewJSONType(inv),
		"last_x":     rec.LastPosition[0],
		"last_y":     rec.LastPosition[1],
		"last_z":     rec.LastPosition[2],
	})
	if res.Error != nil {
		return fmt.Errorf("save player %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
