package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "velum.db")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCreatePlayerIfAbsentDefaults(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.CreatePlayerIfAbsent(context.Background(), "u1", "")
	require.NoError(t, err)

	assert.Equal(t, DefaultNickname, rec.Nickname)
	assert.Equal(t, 0, rec.Currency)
	assert.Equal(t, 100, rec.Durability)
	assert.Empty(t, rec.Inventory)
	assert.Equal(t, [3]float64{}, rec.LastPosition)
}

func TestCreatePlayerIfAbsentKeepsExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.CreatePlayerIfAbsent(ctx, "u1", "Captain")
	require.NoError(t, err)
	require.NoError(t, s.SavePlayer(ctx, "u1", Record{
		Currency:     42,
		Durability:   65,
		Inventory:    map[string]int{"mackerel": 3},
		LastPosition: [3]float64{1, 0, -7},
	}))

	rec, err := s.CreatePlayerIfAbsent(ctx, "u1", "Someone else")
	require.NoError(t, err)
	assert.Equal(t, "Captain", rec.Nickname)
	assert.Equal(t, 42, rec.Currency)
	assert.Equal(t, 65, rec.Durability)
	assert.Equal(t, map[string]int{"mackerel": 3}, rec.Inventory)
	assert.Equal(t, [3]float64{1, 0, -7}, rec.LastPosition)
}

func TestLoadPlayer(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LoadPlayer(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreatePlayerIfAbsent(ctx, "u2", "Skipper")
	require.NoError(t, err)
	rec, err := s.LoadPlayer(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "Skipper", rec.Nickname)
}

func TestSavePlayerUnknownID(t *testing.T) {
	s := openTestStore(t)
	err := s.SavePlayer(context.Background(), "ghost", Record{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveEmptiesInventory(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	_, err := s.CreatePlayerIfAbsent(ctx, "u3", "")
	require.NoError(t, err)
	require.NoError(t, s.SavePlayer(ctx, "u3", Record{Durability: 100, Inventory: map[string]int{"saury": 1}}))
	require.NoError(t, s.SavePlayer(ctx, "u3", Record{Durability: 100}))

	rec, err := s.LoadPlayer(ctx, "u3")
	require.NoError(t, err)
	assert.Empty(t, rec.Inventory)
}

func TestInMemoryStoresAreIsolated(t *testing.T) {
	a, err := Open(Config{}, nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(Config{}, nil)
	require.NoError(t, err)
	defer b.Close()

	ctx := context.Background()
	_, err = a.CreatePlayerIfAbsent(ctx, "u", "")
	require.NoError(t, err)
	_, err = b.LoadPlayer(ctx, "u")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"}, nil)
	assert.Error(t, err)
}
