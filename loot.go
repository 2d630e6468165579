package server

import (
	"context"
	"time"

	"github.com/google/uuid"

	"emberwake/server/internal/content"
	"emberwake/server/internal/state"
	"emberwake/server/logging"
	loggingeconomy "emberwake/server/logging/economy"
)

// lootScatterRadius spreads multi-item drops around the corpse so stacks do
// not sit on the same pixel.
const lootScatterRadius = 18.0

// rollLoot rolls an enemy's drop table and places the results on the ground.
func (z *Zone) rollLoot(now time.Time, enemy *enemyState) {
	var dropped []state.DroppedItem
	for _, entry := range enemy.tpl.Loot {
		if z.rng.Float64() > entry.Chance {
			continue
		}
		tpl, ok := z.catalog.Item(entry.ItemID)
		if !ok {
			continue
		}
		qty := entry.MinQty
		if entry.MaxQty > entry.MinQty {
			qty += z.rng.Intn(entry.MaxQty - entry.MinQty + 1)
		}
		if qty <= 0 {
			qty = 1
		}
		x, y := enemy.X, enemy.Y
		if len(enemy.tpl.Loot) > 1 {
			x, y = clampToZone(
				x+(z.rng.Float64()*2-1)*lootScatterRadius,
				y+(z.rng.Float64()*2-1)*lootScatterRadius,
			)
		}
		dropped = append(dropped, z.placeItem(tpl, x, y, qty, now))
	}
	if len(dropped) == 0 {
		return
	}
	z.events.broadcast(itemsDroppedMessage{
		Ver:   ProtocolVersion,
		Type:  "itemsDropped",
		Items: dropped,
	})
	loggingeconomy.ItemsDropped(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: enemy.ID, Kind: enemyKind},
		loggingeconomy.ItemsDroppedPayload{Count: len(dropped), Reason: "loot"})
}

// placeItem registers a ground item with the standard despawn deadline.
func (z *Zone) placeItem(tpl content.ItemTemplate, x, y float64, qty int, now time.Time) state.DroppedItem {
	item := state.DroppedItem{
		ID:         "drop-" + uuid.NewString(),
		TemplateID: tpl.ID,
		Name:       tpl.Name,
		ItemType:   string(tpl.Class),
		X:          x,
		Y:          y,
		Quantity:   qty,
		DroppedAt:  now.UnixMilli(),
		DespawnAt:  now.Add(itemDespawnTTL).UnixMilli(),
	}
	z.droppedItems[item.ID] = &item
	z.itemOrder = append(z.itemOrder, item.ID)
	return item
}

// handlePickupCommand resolves an in-range pickup immediately; otherwise the
// character walks to the item and the attempt resolves on arrival.
func (z *Zone) handlePickupCommand(cs *characterState, cmd Command, now time.Time) {
	item, ok := z.droppedItems[cmd.Pickup.ItemID]
	if !ok || !item.Visible(now) {
		z.events.reject(cmd, CommandRejectInvalid, "unknown_item")
		return
	}

	cs.pendingAttack = ""

	if distance(cs.X, cs.Y, item.X, item.Y) <= pickupRange {
		cs.moveTarget = nil
		cs.pendingPickup = ""
		if z.attemptPickup(cs, item.ID, cmd.Seq, now) {
			z.events.ack(cmd)
		}
		return
	}

	cs.pendingPickup = item.ID
	cs.pendingSeq = cmd.Seq
	cs.moveTarget = &vec2{X: item.X, Y: item.Y}
	if err := cs.TransitionTo(state.CharacterMovingToLoot); err != nil {
		cs.pendingPickup = ""
		cs.pendingSeq = 0
		cs.moveTarget = nil
		z.events.reject(cmd, CommandRejectInvalid, err.Error())
		return
	}
	z.events.ack(cmd)
}

// resolvePendingPickup runs when a looting walk arrives at its target.
func (z *Zone) resolvePendingPickup(cs *characterState, now time.Time) {
	itemID := cs.pendingPickup
	seq := cs.pendingSeq
	cs.pendingPickup = ""
	cs.pendingSeq = 0
	if itemID != "" {
		z.attemptPickup(cs, itemID, seq, now)
	}
	cs.settleIdle()
}

// attemptPickup claims a ground item for a character. Exactly one claimant
// can win; everyone else observes the item already gone.
func (z *Zone) attemptPickup(cs *characterState, itemID string, seq uint64, now time.Time) bool {
	item, ok := z.droppedItems[itemID]
	if !ok || !item.Visible(now) {
		z.pickupFailed(cs, itemID, seq, "already_claimed")
		return false
	}
	if distance(cs.X, cs.Y, item.X, item.Y) > pickupRange {
		z.pickupFailed(cs, itemID, seq, "out_of_range")
		return false
	}
	tpl, ok := z.catalog.Item(item.TemplateID)
	if !ok {
		z.pickupFailed(cs, itemID, seq, "unknown_template")
		return false
	}

	stack := state.ItemStack{
		InstanceID: "item-" + uuid.NewString(),
		TemplateID: item.TemplateID,
		Quantity:   item.Quantity,
		AcquiredAt: now.UnixMilli(),
	}
	if _, err := cs.inventory.Add(stack, tpl.Stackable()); err != nil {
		loggingeconomy.ItemGrantFailed(context.Background(), z.publisher, z.currentTick,
			logging.EntityRef{ID: cs.ID, Kind: characterKind},
			loggingeconomy.ItemGrantFailedPayload{TemplateID: item.TemplateID, Quantity: item.Quantity, Reason: "inventory_full"})
		z.pickupFailed(cs, itemID, seq, "inventory_full")
		return false
	}

	delete(z.droppedItems, itemID)
	z.itemOrder = removeID(z.itemOrder, itemID)

	z.events.broadcast(itemPickedUpMessage{
		Ver:         ProtocolVersion,
		Type:        "itemPickedUp",
		ItemID:      itemID,
		CharacterID: cs.ID,
	})
	z.sendInventoryUpdate(cs)
	loggingeconomy.ItemPickedUp(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingeconomy.ItemPickedUpPayload{ItemID: itemID, TemplateID: item.TemplateID, Quantity: item.Quantity})
	return true
}

func (z *Zone) pickupFailed(cs *characterState, itemID string, seq uint64, reason string) {
	if seq != 0 {
		z.events.reject(Command{SessionID: cs.sessionID, Seq: seq}, CommandRejectInvalid, reason)
	}
	loggingeconomy.ItemPickupFailed(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: characterKind},
		loggingeconomy.ItemPickupFailedPayload{ItemID: itemID, Reason: reason})
}

// sweepExpiredItems despawns ground items whose TTL elapsed.
func (z *Zone) sweepExpiredItems(now time.Time) {
	for _, id := range append([]string(nil), z.itemOrder...) {
		item, ok := z.droppedItems[id]
		if !ok || !item.Expired(now) {
			continue
		}
		delete(z.droppedItems, id)
		z.itemOrder = removeID(z.itemOrder, id)
		z.events.broadcast(itemDespawnedMessage{
			Ver:    ProtocolVersion,
			Type:   "itemDespawned",
			ItemID: id,
		})
		loggingeconomy.ItemDespawned(context.Background(), z.publisher, z.currentTick,
			logging.EntityRef{ID: id, Kind: logging.EntityKindItem},
			loggingeconomy.ItemDespawnedPayload{TemplateID: item.TemplateID, Quantity: item.Quantity})
	}
}
