package server

import (
	"testing"
	"time"

	"emberwake/server/internal/state"
)

func giveItem(t *testing.T, z *Zone, cs *characterState, templateID, instanceID string, qty int) int {
	t.Helper()
	tpl, ok := z.catalog.Item(templateID)
	if !ok {
		t.Fatalf("unknown test item template %q", templateID)
	}
	slot, err := cs.inventory.Add(state.ItemStack{
		InstanceID: instanceID,
		TemplateID: templateID,
		Quantity:   qty,
	}, tpl.Stackable())
	if err != nil {
		t.Fatalf("unexpected error granting %s: %v", templateID, err)
	}
	return slot
}

func TestEquipAppliesStatBonuses(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "iron_sword", "sword-1", 1)

	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandEquipItem,
		Seq:       1,
		Equip:     &EquipCommand{InventoryItemID: "sword-1"},
	})
	z.ClearEvents()

	if _, ok := findPrivate[commandAckMessage](out, cs.sessionID); !ok {
		t.Fatalf("expected commandAck for equip")
	}
	stack, equipped := cs.equipment.Get(state.EquipSlotMainHand)
	if !equipped || stack.InstanceID != "sword-1" {
		t.Fatalf("expected sword equipped, got %+v", stack)
	}
	if cs.inventory.Count() != 0 {
		t.Fatalf("expected item out of the inventory once equipped")
	}
	if cs.Attack != 15 {
		t.Fatalf("expected attack 10+5 with sword, got %d", cs.Attack)
	}

	update, ok := findPrivate[equipmentUpdateMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected private equipmentUpdate")
	}
	if update.Attack != 15 {
		t.Fatalf("expected derived attack 15 in update, got %d", update.Attack)
	}
	if _, ok := findPrivate[inventoryUpdateMessage](out, cs.sessionID); !ok {
		t.Fatalf("expected private inventoryUpdate alongside equip")
	}
}

func TestEquipSwapsOccupiedSlot(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "iron_sword", "sword-1", 1)
	giveItem(t, z, cs, "iron_sword", "sword-2", 1)

	now := time.Now()
	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 1,
		Equip: &EquipCommand{InventoryItemID: "sword-1"},
	})
	z.ClearEvents()
	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 2,
		Equip: &EquipCommand{InventoryItemID: "sword-2"},
	})
	z.ClearEvents()

	stack, _ := cs.equipment.Get(state.EquipSlotMainHand)
	if stack.InstanceID != "sword-2" {
		t.Fatalf("expected second sword equipped, got %q", stack.InstanceID)
	}
	if cs.inventory.Count() != 1 {
		t.Fatalf("expected displaced sword back in inventory")
	}
	_, displaced, ok := findInventoryItem(&cs.inventory, "sword-1")
	if !ok || displaced.InstanceID != "sword-1" {
		t.Fatalf("expected sword-1 in inventory after the swap")
	}
	if cs.Attack != 15 {
		t.Fatalf("expected single sword bonus, got attack %d", cs.Attack)
	}
}

func TestEquipRejectsNonEquippableItems(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "rat_pelt", "pelt-1", 3)

	out := stepZoneTest(z, time.Now(), Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 1,
		Equip: &EquipCommand{InventoryItemID: "pelt-1"},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected commandReject for a material")
	}
	if reject.Detail != "not_equippable" {
		t.Fatalf("expected not_equippable detail, got %q", reject.Detail)
	}
	if cs.inventory.Count() != 1 {
		t.Fatalf("expected pelt untouched")
	}
}

func TestUnequipRoundTripRestoresBaseStats(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "bear_charm", "charm-1", 1)
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 1,
		Equip: &EquipCommand{InventoryItemID: "charm-1"},
	})
	z.ClearEvents()
	if cs.MaxHealth != 120 {
		t.Fatalf("expected 120 max health with charm, got %d", cs.MaxHealth)
	}

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandUnequipItem, Seq: 2,
		Unequip: &UnequipCommand{Slot: string(state.EquipSlotAccessory)},
	})
	z.ClearEvents()

	if len(cs.equipment.Slots) != 0 {
		t.Fatalf("expected empty equipment after unequip")
	}
	if cs.inventory.Count() != 1 {
		t.Fatalf("expected charm back in inventory")
	}
	if cs.MaxHealth != 100 {
		t.Fatalf("expected base max health restored, got %d", cs.MaxHealth)
	}
}

func TestUnequipClampsExcessHealth(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "bear_charm", "charm-1", 1)
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 1,
		Equip: &EquipCommand{InventoryItemID: "charm-1"},
	})
	z.ClearEvents()
	cs.SetHealth(120)

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandUnequipItem, Seq: 2,
		Unequip: &UnequipCommand{Slot: string(state.EquipSlotAccessory)},
	})
	z.ClearEvents()

	if cs.Health != 100 {
		t.Fatalf("expected health clamped to new max 100, got %d", cs.Health)
	}
}

func TestUnequipFailsWhenInventoryFull(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "iron_sword", "sword-1", 1)
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandEquipItem, Seq: 1,
		Equip: &EquipCommand{InventoryItemID: "sword-1"},
	})
	z.ClearEvents()

	for i := cs.inventory.Count(); i < state.DefaultInventoryCapacity; i++ {
		giveItem(t, z, cs, "oak_shield", "filler", 1)
	}

	out := stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandUnequipItem, Seq: 2,
		Unequip: &UnequipCommand{Slot: string(state.EquipSlotMainHand)},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected commandReject when inventory is full")
	}
	if reject.Detail != "inventory_full" {
		t.Fatalf("expected inventory_full detail, got %q", reject.Detail)
	}
	if _, equipped := cs.equipment.Get(state.EquipSlotMainHand); !equipped {
		t.Fatalf("expected sword to stay equipped")
	}
}

func TestDropInventoryItemCreatesGroundItem(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	slot := giveItem(t, z, cs, "rat_pelt", "pelt-1", 4)

	out := stepZoneTest(z, time.Now(), Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandDropInventory, Seq: 1,
		DropItem: &DropItemCommand{InventoryIndex: slot},
	})
	z.ClearEvents()

	drops, ok := findBroadcast[itemsDroppedMessage](out)
	if !ok {
		t.Fatalf("expected itemsDropped broadcast")
	}
	if len(drops.Items) != 1 || drops.Items[0].Quantity != 4 {
		t.Fatalf("expected full stack on the ground, got %+v", drops.Items)
	}
	if drops.Items[0].X != cs.X || drops.Items[0].Y != cs.Y {
		t.Fatalf("expected drop at the character's feet")
	}
	if cs.inventory.Count() != 0 {
		t.Fatalf("expected emptied inventory slot")
	}
	if len(z.droppedItems) != 1 {
		t.Fatalf("expected one ground item, got %d", len(z.droppedItems))
	}
}

func TestSortInventoryByNameAndNewest(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	cs.inventory.Add(state.ItemStack{InstanceID: "a", TemplateID: "oak_shield", Quantity: 1, AcquiredAt: 10}, false)
	cs.inventory.Add(state.ItemStack{InstanceID: "b", TemplateID: "bear_charm", Quantity: 1, AcquiredAt: 30}, false)
	cs.inventory.Add(state.ItemStack{InstanceID: "c", TemplateID: "iron_sword", Quantity: 1, AcquiredAt: 20}, false)
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandSortInventory, Seq: 1,
		Sort: &SortCommand{SortType: SortByName},
	})
	z.ClearEvents()

	// Bear Charm, Iron Sword, Oak Shield.
	want := []string{"b", "c", "a"}
	for i, instanceID := range want {
		stack, ok := cs.inventory.Get(i)
		if !ok || stack.InstanceID != instanceID {
			t.Fatalf("name sort slot %d: expected %q, got %+v", i, instanceID, stack)
		}
	}

	stepZoneTest(z, now, Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandSortInventory, Seq: 2,
		Sort: &SortCommand{SortType: SortByNewest},
	})
	z.ClearEvents()

	want = []string{"b", "c", "a"} // acquired 30, 20, 10
	for i, instanceID := range want {
		stack, ok := cs.inventory.Get(i)
		if !ok || stack.InstanceID != instanceID {
			t.Fatalf("newest sort slot %d: expected %q, got %+v", i, instanceID, stack)
		}
	}
}

func TestSortInventoryRejectsUnknownOrder(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")

	out := stepZoneTest(z, time.Now(), Command{
		ActorID: "char-1", SessionID: cs.sessionID, Type: CommandSortInventory, Seq: 1,
		Sort: &SortCommand{SortType: "by_vibes"},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected commandReject for unknown sort order")
	}
	if reject.Detail != "unknown_sort" {
		t.Fatalf("expected unknown_sort detail, got %q", reject.Detail)
	}
}

func TestRequestInventoryAndEquipmentReturnPrivateSnapshots(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	giveItem(t, z, cs, "rat_pelt", "pelt-1", 2)

	out := stepZoneTest(z, time.Now(),
		Command{ActorID: "char-1", SessionID: cs.sessionID, Type: CommandRequestInventory, Seq: 1},
		Command{ActorID: "char-1", SessionID: cs.sessionID, Type: CommandRequestEquipment, Seq: 2},
	)
	z.ClearEvents()

	inv, ok := findPrivate[inventoryUpdateMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected inventoryUpdate")
	}
	if len(inv.Slots) != state.DefaultInventoryCapacity {
		t.Fatalf("expected full slot array, got %d", len(inv.Slots))
	}
	if !inv.Slots[0].Occupied || inv.Slots[0].Item.Quantity != 2 {
		t.Fatalf("expected pelt stack in slot 0, got %+v", inv.Slots[0])
	}
	if _, ok := findPrivate[equipmentUpdateMessage](out, cs.sessionID); !ok {
		t.Fatalf("expected equipmentUpdate")
	}
}
