package state

import "time"

// DroppedItem is a ground item instance. Display fields are denormalized so
// clients can render it without a template round trip.
type DroppedItem struct {
	ID         string  `json:"id"`
	TemplateID string  `json:"templateId"`
	Name       string  `json:"name"`
	ItemType   string  `json:"itemType"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Quantity   int     `json:"quantity"`
	DroppedAt  int64   `json:"droppedAt"`
	DespawnAt  int64   `json:"despawnAt"`
}

// Visible reports whether the item is still renderable and pickable.
func (d *DroppedItem) Visible(now time.Time) bool {
	return d != nil && d.Quantity > 0 && now.UnixMilli() < d.DespawnAt
}

// Expired reports whether the despawn TTL has elapsed.
func (d *DroppedItem) Expired(now time.Time) bool {
	return d != nil && now.UnixMilli() >= d.DespawnAt
}
