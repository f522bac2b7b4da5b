// Package catalog holds the static item table shared by the catch minigame
// (reward identifiers and rarity) and the harbor (sell prices).
package catalog

// Tier is the rarity bucket of an item.
type Tier int

const (
	Common Tier = iota
	Uncommon
	Rare
)

func (t Tier) String() string {
	switch t {
	case Common:
		return "common"
	case Uncommon:
		return "uncommon"
	case Rare:
		return "rare"
	default:
		return "unknown"
	}
}

// Item is one catchable reward.
type Item struct {
	ID    string
	Name  string
	Value int
	Tier  Tier
}

// Items is the default catch table.
var Items = []Item{
	{ID: "mackerel", Name: "Mackerel", Value: 10, Tier: Common},
	{ID: "saury", Name: "Pacific saury", Value: 12, Tier: Common},
	{ID: "flatfish", Name: "Olive flounder", Value: 25, Tier: Uncommon},
	{ID: "rockfish", Name: "Black rockfish", Value: 28, Tier: Uncommon},
	{ID: "red-seabream", Name: "Red seabream", Value: 80, Tier: Rare},
	{ID: "longtooth-grouper", Name: "Longtooth grouper", Value: 150, Tier: Rare},
}

// Prices maps item id to sell value.
func Prices(items []Item) map[string]int {
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.ID] = it.Value
	}
	return out
}

// Lookup returns the item with the given id.
func Lookup(items []Item, id string) (Item, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
