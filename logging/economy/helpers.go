package economy

import (
	"context"

	"emberwake/server/logging"
)

const (
	// EventItemsDropped is emitted when loot lands on the ground.
	EventItemsDropped logging.EventType = "economy.items_dropped"
	// EventItemPickedUp is emitted on a successful pickup claim.
	EventItemPickedUp logging.EventType = "economy.item_picked_up"
	// EventItemPickupFailed is emitted when a pickup loses the claim race.
	EventItemPickupFailed logging.EventType = "economy.item_pickup_failed"
	// EventItemDespawned is emitted when a ground item's TTL expires.
	EventItemDespawned logging.EventType = "economy.item_despawned"
	// EventItemGrantFailed is emitted when an inventory insert fails.
	EventItemGrantFailed logging.EventType = "economy.item_grant_failed"
)

// ItemsDroppedPayload describes a batch of new ground items.
type ItemsDroppedPayload struct {
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// ItemPickedUpPayload describes a successful pickup.
type ItemPickedUpPayload struct {
	ItemID     string `json:"itemId"`
	TemplateID string `json:"templateId"`
	Quantity   int    `json:"quantity"`
}

// ItemPickupFailedPayload describes why a pickup failed.
type ItemPickupFailedPayload struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
}

// ItemDespawnedPayload describes a TTL expiry.
type ItemDespawnedPayload struct {
	TemplateID string `json:"templateId"`
	Quantity   int    `json:"quantity"`
}

// ItemGrantFailedPayload describes a failed inventory insert.
type ItemGrantFailedPayload struct {
	TemplateID string `json:"templateId"`
	Quantity   int    `json:"quantity"`
	Reason     string `json:"reason"`
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryGameplay,
		Payload:  payload,
	})
}

// ItemsDropped publishes a loot-drop event.
func ItemsDropped(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemsDroppedPayload) {
	publish(ctx, pub, EventItemsDropped, tick, actor, logging.SeverityInfo, payload)
}

// ItemPickedUp publishes a successful pickup event.
func ItemPickedUp(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemPickedUpPayload) {
	publish(ctx, pub, EventItemPickedUp, tick, actor, logging.SeverityInfo, payload)
}

// ItemPickupFailed publishes a lost-claim event.
func ItemPickupFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemPickupFailedPayload) {
	publish(ctx, pub, EventItemPickupFailed, tick, actor, logging.SeverityDebug, payload)
}

// ItemDespawned publishes a TTL-expiry event.
func ItemDespawned(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemDespawnedPayload) {
	publish(ctx, pub, EventItemDespawned, tick, actor, logging.SeverityDebug, payload)
}

// ItemGrantFailed publishes a failed-insert event.
func ItemGrantFailed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload ItemGrantFailedPayload) {
	publish(ctx, pub, EventItemGrantFailed, tick, actor, logging.SeverityWarn, payload)
}
