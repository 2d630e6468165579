package state

import "sort"

// EquipSlot identifies a wearable location on a character.
type EquipSlot string

const (
	EquipSlotMainHand  EquipSlot = "main_hand"
	EquipSlotOffHand   EquipSlot = "off_hand"
	EquipSlotHead      EquipSlot = "head"
	EquipSlotBody      EquipSlot = "body"
	EquipSlotAccessory EquipSlot = "accessory"
)

var equipSlotRank = map[EquipSlot]int{
	EquipSlotMainHand:  0,
	EquipSlotOffHand:   1,
	EquipSlotHead:      2,
	EquipSlotBody:      3,
	EquipSlotAccessory: 4,
}

// EquipSlotRank orders slots deterministically for serialization.
func EquipSlotRank(slot EquipSlot) int {
	if rank, ok := equipSlotRank[slot]; ok {
		return rank
	}
	return len(equipSlotRank)
}

// ValidEquipSlot reports whether the slot name is known.
func ValidEquipSlot(slot EquipSlot) bool {
	_, ok := equipSlotRank[slot]
	return ok
}

// EquippedItem stores the item occupying a specific equipment slot.
type EquippedItem struct {
	Slot EquipSlot `json:"slot"`
	Item ItemStack `json:"item"`
}

// Equipment holds the deterministic equipped item list for a character. An
// item is either here or in the inventory, never both.
type Equipment struct {
	Slots []EquippedItem `json:"slots,omitempty"`
}

// NewEquipment returns an empty equipment container.
func NewEquipment() Equipment {
	return Equipment{}
}

// Clone returns a copy safe to hand to another goroutine.
func (e Equipment) Clone() Equipment {
	if len(e.Slots) == 0 {
		return Equipment{}
	}
	cloned := make([]EquippedItem, len(e.Slots))
	copy(cloned, e.Slots)
	return Equipment{Slots: cloned}
}

// Get returns the stack equipped in the slot.
func (e *Equipment) Get(slot EquipSlot) (ItemStack, bool) {
	if e == nil {
		return ItemStack{}, false
	}
	for _, entry := range e.Slots {
		if entry.Slot == slot {
			return entry.Item, true
		}
	}
	return ItemStack{}, false
}

// Set places a stack into the slot, replacing any current occupant.
func (e *Equipment) Set(slot EquipSlot, stack ItemStack) {
	if e == nil {
		return
	}
	if stack.Quantity <= 0 {
		stack.Quantity = 1
	}
	for i := range e.Slots {
		if e.Slots[i].Slot == slot {
			e.Slots[i].Item = stack
			return
		}
	}
	e.Slots = append(e.Slots, EquippedItem{Slot: slot, Item: stack})
	e.sortSlots()
}

// Remove clears the slot and returns what was equipped there.
func (e *Equipment) Remove(slot EquipSlot) (ItemStack, bool) {
	if e == nil || len(e.Slots) == 0 {
		return ItemStack{}, false
	}
	for i := range e.Slots {
		if e.Slots[i].Slot != slot {
			continue
		}
		removed := e.Slots[i].Item
		e.Slots = append(e.Slots[:i], e.Slots[i+1:]...)
		return removed, true
	}
	return ItemStack{}, false
}

func (e *Equipment) sortSlots() {
	if len(e.Slots) <= 1 {
		return
	}
	sort.Slice(e.Slots, func(i, j int) bool {
		ri := EquipSlotRank(e.Slots[i].Slot)
		rj := EquipSlotRank(e.Slots[j].Slot)
		if ri == rj {
			return string(e.Slots[i].Slot) < string(e.Slots[j].Slot)
		}
		return ri < rj
	})
}
