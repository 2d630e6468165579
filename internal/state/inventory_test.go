package state

import (
	"errors"
	"testing"
)

func TestInventoryAddMergesStackableTemplates(t *testing.T) {
	inv := NewInventory(4)

	slot, err := inv.Add(ItemStack{InstanceID: "a", TemplateID: "wolf_pelt", Quantity: 2}, true)
	if err != nil {
		t.Fatalf("unexpected error adding first stack: %v", err)
	}
	if slot != 0 {
		t.Fatalf("expected slot 0, got %d", slot)
	}

	merged, err := inv.Add(ItemStack{InstanceID: "b", TemplateID: "wolf_pelt", Quantity: 3}, true)
	if err != nil {
		t.Fatalf("unexpected error merging stack: %v", err)
	}
	if merged != slot {
		t.Fatalf("expected merge into slot %d, got %d", slot, merged)
	}
	stack, ok := inv.Get(slot)
	if !ok || stack.Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %+v", stack)
	}
	if inv.Count() != 1 {
		t.Fatalf("expected one occupied slot, got %d", inv.Count())
	}
}

func TestInventoryAddNonStackableUsesSeparateSlots(t *testing.T) {
	inv := NewInventory(4)
	if _, err := inv.Add(ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := inv.Add(ItemStack{InstanceID: "b", TemplateID: "iron_sword", Quantity: 1}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Count() != 2 {
		t.Fatalf("expected two occupied slots, got %d", inv.Count())
	}
}

func TestInventoryAddFailsWhenFull(t *testing.T) {
	inv := NewInventory(2)
	inv.Add(ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1}, false)
	inv.Add(ItemStack{InstanceID: "b", TemplateID: "iron_sword", Quantity: 1}, false)

	if _, err := inv.Add(ItemStack{InstanceID: "c", TemplateID: "iron_sword", Quantity: 1}, false); !errors.Is(err, ErrInventoryFull) {
		t.Fatalf("expected ErrInventoryFull, got %v", err)
	}
}

func TestInventoryRemoveAtSplitsAndClears(t *testing.T) {
	inv := NewInventory(4)
	inv.Add(ItemStack{InstanceID: "a", TemplateID: "wolf_pelt", Quantity: 5}, true)

	removed, err := inv.RemoveAt(0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if removed.Quantity != 2 {
		t.Fatalf("expected removed quantity 2, got %d", removed.Quantity)
	}
	stack, _ := inv.Get(0)
	if stack.Quantity != 3 {
		t.Fatalf("expected 3 remaining, got %d", stack.Quantity)
	}

	if _, err := inv.RemoveAt(0, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := inv.Get(0); ok {
		t.Fatalf("expected slot cleared after removing full quantity")
	}
	if _, err := inv.RemoveAt(0, 1); !errors.Is(err, ErrSlotEmpty) {
		t.Fatalf("expected ErrSlotEmpty, got %v", err)
	}
}

func TestInventoryMoveSwapsOccupiedSlots(t *testing.T) {
	inv := NewInventory(4)
	inv.Add(ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1}, false)
	inv.Add(ItemStack{InstanceID: "b", TemplateID: "oak_shield", Quantity: 1}, false)

	if err := inv.Move(0, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first, _ := inv.Get(0)
	second, _ := inv.Get(1)
	if first.TemplateID != "oak_shield" || second.TemplateID != "iron_sword" {
		t.Fatalf("expected swap, got %q and %q", first.TemplateID, second.TemplateID)
	}

	if err := inv.Move(1, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := inv.Get(1); ok {
		t.Fatalf("expected origin slot freed after move to empty slot")
	}
	moved, ok := inv.Get(3)
	if !ok || moved.TemplateID != "iron_sword" {
		t.Fatalf("expected sword in slot 3, got %+v", moved)
	}
}

func TestInventoryMoveRejectsOutOfRangeSlots(t *testing.T) {
	inv := NewInventory(2)
	inv.Add(ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1}, false)
	if err := inv.Move(0, 5); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
	if err := inv.Move(-1, 0); !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("expected ErrInvalidSlot, got %v", err)
	}
}

func TestSortStableCompactsAndKeepsEqualOrder(t *testing.T) {
	inv := NewInventory(6)
	inv.Slots[1] = InventorySlot{Occupied: true, Item: ItemStack{InstanceID: "b", TemplateID: "beta", AcquiredAt: 5}}
	inv.Slots[3] = InventorySlot{Occupied: true, Item: ItemStack{InstanceID: "a", TemplateID: "alpha", AcquiredAt: 5}}
	inv.Slots[4] = InventorySlot{Occupied: true, Item: ItemStack{InstanceID: "c", TemplateID: "gamma", AcquiredAt: 9}}

	inv.SortStable(func(a, b ItemStack) bool { return a.AcquiredAt > b.AcquiredAt })

	if !inv.Slots[0].Occupied || inv.Slots[0].Item.InstanceID != "c" {
		t.Fatalf("expected newest stack first, got %+v", inv.Slots[0])
	}
	// Equal keys keep their compacted order.
	if inv.Slots[1].Item.InstanceID != "b" || inv.Slots[2].Item.InstanceID != "a" {
		t.Fatalf("expected stable order b then a, got %q then %q",
			inv.Slots[1].Item.InstanceID, inv.Slots[2].Item.InstanceID)
	}
	for i := 3; i < len(inv.Slots); i++ {
		if inv.Slots[i].Occupied {
			t.Fatalf("expected trailing slots empty after compaction, slot %d occupied", i)
		}
	}
}

func TestEquipmentSetAndRemoveRoundTrip(t *testing.T) {
	eq := NewEquipment()
	eq.Set(EquipSlotMainHand, ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1})
	eq.Set(EquipSlotBody, ItemStack{InstanceID: "b", TemplateID: "leather_vest", Quantity: 1})

	stack, ok := eq.Get(EquipSlotMainHand)
	if !ok || stack.TemplateID != "iron_sword" {
		t.Fatalf("expected sword in main hand, got %+v", stack)
	}

	removed, ok := eq.Remove(EquipSlotMainHand)
	if !ok || removed.TemplateID != "iron_sword" {
		t.Fatalf("expected removed sword, got %+v", removed)
	}
	if _, ok := eq.Get(EquipSlotMainHand); ok {
		t.Fatalf("expected empty main hand after removal")
	}
	if len(eq.Slots) != 1 {
		t.Fatalf("expected one remaining entry, got %d", len(eq.Slots))
	}
}

func TestEquipmentSetReplacesOccupant(t *testing.T) {
	eq := NewEquipment()
	eq.Set(EquipSlotMainHand, ItemStack{InstanceID: "a", TemplateID: "iron_sword", Quantity: 1})
	eq.Set(EquipSlotMainHand, ItemStack{InstanceID: "b", TemplateID: "steel_sword", Quantity: 1})

	stack, _ := eq.Get(EquipSlotMainHand)
	if stack.TemplateID != "steel_sword" {
		t.Fatalf("expected replacement, got %q", stack.TemplateID)
	}
	if len(eq.Slots) != 1 {
		t.Fatalf("expected single entry, got %d", len(eq.Slots))
	}
}
