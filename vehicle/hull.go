package vehicle

const (
	MaxDurability = 100
	// LowDurability is the threshold at or below which the hull smokes.
	LowDurability = 30
)

// Hull tracks durability. The zero value is a wrecked hull; use NewHull.
type Hull struct {
	durability int
}

func NewHull(durability int) *Hull {
	return &Hull{durability: clampDurability(durability)}
}

func (h *Hull) Durability() int { return h.durability }

// Damage subtracts n, floored at zero, and returns the new durability.
func (h *Hull) Damage(n int) int {
	if n > 0 {
		h.durability = clampDurability(h.durability - n)
	}
	return h.durability
}

// Restore sets durability back to full.
func (h *Hull) Restore() { h.durability = MaxDurability }

func (h *Hull) Low() bool { return h.durability*100 <= LowDurability*MaxDurability }

func clampDurability(d int) int {
	if d < 0 {
		return 0
	}
	if d > MaxDurability {
		return MaxDurability
	}
	return d
}
