package vehicle

const (
	ObstacleTag = "obstacle"
	// rockTag is what older scenes still put on obstacles.
	rockTag       = "rock"
	ContactDamage = 5
)

func IsObstacle(tag string) bool {
	return tag == ObstacleTag || tag == rockTag
}

// ApplyContact runs the collision rule for a contact with an object carrying
// tag. Every obstacle contact costs ContactDamage; there is no debounce.
// It reports whether the hull was hit.
func ApplyContact(h *Hull, tag string) bool {
	if h == nil || !IsObstacle(tag) {
		return false
	}
	h.Damage(ContactDamage)
	return true
}
