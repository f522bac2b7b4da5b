package minigame

import (
	"fmt"
	"math/rand/v2"

	"velum/catalog"
)

// TierWeight is a cumulative probability bucket. A draw below Cumulative
// (and at or above the previous bucket) lands in Tier.
type TierWeight struct {
	Tier       catalog.Tier
	Cumulative float64
}

// DefaultTierWeights: 5% rare, 25% uncommon, 70% common.
var DefaultTierWeights = []TierWeight{
	{Tier: catalog.Rare, Cumulative: 0.05},
	{Tier: catalog.Uncommon, Cumulative: 0.30},
	{Tier: catalog.Common, Cumulative: 1.0},
}

// RewardTable draws a tier first, then one item uniformly within it.
type RewardTable struct {
	weights []TierWeight
	byTier  map[catalog.Tier][]catalog.Item
}

func NewRewardTable(items []catalog.Item, weights []TierWeight) (*RewardTable, error) {
	if len(weights) == 0 {
		return nil, fmt.Errorf("reward table: no tier weights")
	}
	byTier := make(map[catalog.Tier][]catalog.Item)
	for _, it := range items {
		byTier[it.Tier] = append(byTier[it.Tier], it)
	}
	prev := 0.0
	for _, w := range weights {
		if w.Cumulative <= prev || w.Cumulative > 1 {
			return nil, fmt.Errorf("reward table: cumulative weight %v for %s out of order", w.Cumulative, w.Tier)
		}
		if len(byTier[w.Tier]) == 0 {
			return nil, fmt.Errorf("reward table: tier %s has no items", w.Tier)
		}
		prev = w.Cumulative
	}
	if prev != 1 {
		return nil, fmt.Errorf("reward table: weights end at %v, want 1", prev)
	}
	return &RewardTable{weights: weights, byTier: byTier}, nil
}

// DefaultRewards is the catalog with the default weights.
func DefaultRewards() *RewardTable {
	t, err := NewRewardTable(catalog.Items, DefaultTierWeights)
	if err != nil {
		panic(err)
	}
	return t
}

// Draw picks one reward.
func (t *RewardTable) Draw(rng *rand.Rand) catalog.Item {
	r := rng.Float64()
	tier := t.weights[len(t.weights)-1].Tier
	for _, w := range t.weights {
		if r < w.Cumulative {
			tier = w.Tier
			break
		}
	}
	pool := t.byTier[tier]
	return pool[rng.IntN(len(pool))]
}
