package vehicle

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHullClamps(t *testing.T) {
	assert.Equal(t, MaxDurability, NewHull(250).Durability())
	assert.Equal(t, 0, NewHull(-4).Durability())
}

func TestObstacleContactCostsFive(t *testing.T) {
	h := NewHull(100)
	assert.True(t, ApplyContact(h, ObstacleTag))
	assert.Equal(t, 95, h.Durability())
	assert.True(t, ApplyContact(h, "rock"))
	assert.Equal(t, 90, h.Durability())
}

func TestNonObstacleContactIsIgnored(t *testing.T) {
	h := NewHull(100)
	assert.False(t, ApplyContact(h, "harbor"))
	assert.False(t, ApplyContact(h, ""))
	assert.False(t, ApplyContact(nil, ObstacleTag))
	assert.Equal(t, 100, h.Durability())
}

func TestRepeatedContactsFloorAtZero(t *testing.T) {
	h := NewHull(12)
	for i := 0; i < 10; i++ {
		ApplyContact(h, ObstacleTag)
	}
	assert.Equal(t, 0, h.Durability())
}

func TestDurabilityNeverIncreasesWithoutRestore(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	tags := []string{ObstacleTag, "buoy", "rock", "harbor"}
	h := NewHull(MaxDurability)
	prev := h.Durability()
	for i := 0; i < 500; i++ {
		ApplyContact(h, tags[rng.IntN(len(tags))])
		d := h.Durability()
		assert.LessOrEqual(t, d, prev)
		assert.GreaterOrEqual(t, d, 0)
		prev = d
	}
	h.Restore()
	assert.Equal(t, MaxDurability, h.Durability())
}

func TestLowDurability(t *testing.T) {
	assert.False(t, NewHull(31).Low())
	assert.True(t, NewHull(30).Low())
}
