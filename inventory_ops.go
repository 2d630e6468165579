package server

import (
	"errors"
	"time"

	"emberwake/server/internal/state"
)

// recomputeDerivedStats rebuilds a character's stat line from its level and
// equipped items. Health never exceeds the recomputed maximum.
func (z *Zone) recomputeDerivedStats(cs *characterState) {
	maxHealth, attack, defense := baseStatsForLevel(cs.Level)
	for _, entry := range cs.equipment.Slots {
		if tpl, ok := z.catalog.Item(entry.Item.TemplateID); ok {
			maxHealth += tpl.HealthBonus
			attack += tpl.AttackBonus
			defense += tpl.DefenseBonus
		}
	}
	cs.MaxHealth = maxHealth
	cs.Attack = attack
	cs.Defense = defense
	if cs.Health > maxHealth {
		cs.Health = maxHealth
	}
}

// findInventoryItem locates an occupied slot by item instance id.
func findInventoryItem(inv *state.Inventory, instanceID string) (int, state.ItemStack, bool) {
	for i := range inv.Slots {
		if inv.Slots[i].Occupied && inv.Slots[i].Item.InstanceID == instanceID {
			return i, inv.Slots[i].Item, true
		}
	}
	return -1, state.ItemStack{}, false
}

// handleEquipCommand moves an inventory item into its equipment slot. If the
// slot is taken, the displaced item swaps back into the freed inventory slot.
func (z *Zone) handleEquipCommand(cs *characterState, cmd Command) {
	slot, stack, ok := findInventoryItem(&cs.inventory, cmd.Equip.InventoryItemID)
	if !ok {
		z.events.reject(cmd, CommandRejectInvalid, "unknown_item")
		return
	}
	tpl, ok := z.catalog.Item(stack.TemplateID)
	if !ok || !tpl.Equippable() {
		z.events.reject(cmd, CommandRejectInvalid, "not_equippable")
		return
	}
	equipSlot := state.EquipSlot(tpl.EquipSlot)
	if !state.ValidEquipSlot(equipSlot) {
		z.events.reject(cmd, CommandRejectInvalid, "invalid_slot")
		return
	}

	removed, err := cs.inventory.RemoveAt(slot, stack.Quantity)
	if err != nil {
		z.events.reject(cmd, CommandRejectInvalid, errReason(err))
		return
	}
	if displaced, had := cs.equipment.Remove(equipSlot); had {
		// The freed slot is guaranteed open for the displaced item.
		if _, err := cs.inventory.Add(displaced, false); err != nil {
			cs.inventory.Add(removed, false)
			cs.equipment.Set(equipSlot, displaced)
			z.events.reject(cmd, CommandRejectInvalid, errReason(err))
			return
		}
	}
	cs.equipment.Set(equipSlot, removed)
	z.recomputeDerivedStats(cs)

	z.sendInventoryUpdate(cs)
	z.sendEquipmentUpdate(cs)
	z.events.ack(cmd)
}

// handleUnequipCommand returns an equipped item to the inventory. The item
// stays equipped when the inventory has no room.
func (z *Zone) handleUnequipCommand(cs *characterState, cmd Command) {
	equipSlot := state.EquipSlot(cmd.Unequip.Slot)
	if !state.ValidEquipSlot(equipSlot) {
		z.events.reject(cmd, CommandRejectInvalid, "invalid_slot")
		return
	}
	stack, ok := cs.equipment.Get(equipSlot)
	if !ok {
		z.events.reject(cmd, CommandRejectInvalid, "slot_empty")
		return
	}
	if _, err := cs.inventory.Add(stack, false); err != nil {
		z.events.reject(cmd, CommandRejectInvalid, errReason(err))
		return
	}
	cs.equipment.Remove(equipSlot)
	z.recomputeDerivedStats(cs)

	z.sendInventoryUpdate(cs)
	z.sendEquipmentUpdate(cs)
	z.events.ack(cmd)
}

func (z *Zone) handleMoveInventoryCommand(cs *characterState, cmd Command) {
	if err := cs.inventory.Move(cmd.MoveItem.FromIndex, cmd.MoveItem.ToIndex); err != nil {
		z.events.reject(cmd, CommandRejectInvalid, errReason(err))
		return
	}
	z.sendInventoryUpdate(cs)
	z.events.ack(cmd)
}

// handleDropInventoryCommand moves a full inventory stack to the ground at
// the character's feet.
func (z *Zone) handleDropInventoryCommand(cs *characterState, cmd Command, now time.Time) {
	stack, ok := cs.inventory.Get(cmd.DropItem.InventoryIndex)
	if !ok {
		z.events.reject(cmd, CommandRejectInvalid, "slot_empty")
		return
	}
	tpl, tplOK := z.catalog.Item(stack.TemplateID)
	if !tplOK {
		z.events.reject(cmd, CommandRejectInvalid, "unknown_template")
		return
	}
	removed, err := cs.inventory.RemoveAt(cmd.DropItem.InventoryIndex, stack.Quantity)
	if err != nil {
		z.events.reject(cmd, CommandRejectInvalid, errReason(err))
		return
	}

	item := z.placeItem(tpl, cs.X, cs.Y, removed.Quantity, now)
	z.events.broadcast(itemsDroppedMessage{
		Ver:   ProtocolVersion,
		Type:  "itemsDropped",
		Items: []state.DroppedItem{item},
	})
	z.sendInventoryUpdate(cs)
	z.events.ack(cmd)
}

// Sort orders accepted by sortInventoryCommand.
const (
	SortByName   = "name"
	SortByType   = "type"
	SortByNewest = "newest"
)

func (z *Zone) handleSortInventoryCommand(cs *characterState, cmd Command) {
	var less func(a, b state.ItemStack) bool
	switch cmd.Sort.SortType {
	case SortByName:
		less = func(a, b state.ItemStack) bool {
			return z.templateName(a.TemplateID) < z.templateName(b.TemplateID)
		}
	case SortByType:
		less = func(a, b state.ItemStack) bool {
			ta, tb := z.templateClass(a.TemplateID), z.templateClass(b.TemplateID)
			if ta != tb {
				return ta < tb
			}
			return z.templateName(a.TemplateID) < z.templateName(b.TemplateID)
		}
	case SortByNewest:
		less = func(a, b state.ItemStack) bool {
			return a.AcquiredAt > b.AcquiredAt
		}
	default:
		z.events.reject(cmd, CommandRejectInvalid, "unknown_sort")
		return
	}
	cs.inventory.SortStable(less)
	z.sendInventoryUpdate(cs)
	z.events.ack(cmd)
}

func (z *Zone) templateName(templateID string) string {
	if tpl, ok := z.catalog.Item(templateID); ok {
		return tpl.Name
	}
	return templateID
}

func (z *Zone) templateClass(templateID string) string {
	if tpl, ok := z.catalog.Item(templateID); ok {
		return string(tpl.Class)
	}
	return ""
}

// sendInventoryUpdate ships the full inventory to the owning session only.
func (z *Zone) sendInventoryUpdate(cs *characterState) {
	snapshot := cs.inventory.Clone()
	z.events.sendTo(cs.sessionID, inventoryUpdateMessage{
		Ver:   ProtocolVersion,
		Type:  "inventoryUpdate",
		Slots: snapshot.Slots,
	})
}

// sendEquipmentUpdate ships the equipped list and derived stat totals to the
// owning session only.
func (z *Zone) sendEquipmentUpdate(cs *characterState) {
	snapshot := cs.equipment.Clone()
	z.events.sendTo(cs.sessionID, equipmentUpdateMessage{
		Ver:         ProtocolVersion,
		Type:        "equipmentUpdate",
		CharacterID: cs.ID,
		Items:       snapshot.Slots,
		Attack:      cs.Attack,
		Defense:     cs.Defense,
		MaxHealth:   cs.MaxHealth,
	})
}

func errReason(err error) string {
	switch {
	case errors.Is(err, state.ErrInventoryFull):
		return "inventory_full"
	case errors.Is(err, state.ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, state.ErrSlotEmpty):
		return "slot_empty"
	case errors.Is(err, state.ErrInsufficientQuantity):
		return "insufficient_quantity"
	default:
		return "invalid"
	}
}
