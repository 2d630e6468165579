package state

import "errors"

// DefaultInventoryCapacity is the fixed slot count for character inventories.
const DefaultInventoryCapacity = 24

var (
	ErrInventoryFull        = errors.New("inventory_full")
	ErrInvalidSlot          = errors.New("invalid_slot")
	ErrSlotEmpty            = errors.New("slot_empty")
	ErrInsufficientQuantity = errors.New("insufficient_quantity")
)

// ItemStack is an owned item instance. Quantity is always >= 1 while the
// stack exists; only stackable templates ever exceed 1.
type ItemStack struct {
	InstanceID string `json:"instanceId"`
	TemplateID string `json:"templateId"`
	Quantity   int    `json:"quantity"`
	// AcquiredAt is a unix-milli timestamp used for recency ordering.
	AcquiredAt int64 `json:"acquiredAt,omitempty"`
}

// InventorySlot is an explicit optional value. Occupied distinguishes an
// empty slot from a zero-valued stack so there is no sentinel ambiguity.
type InventorySlot struct {
	Occupied bool      `json:"occupied"`
	Item     ItemStack `json:"item,omitempty"`
}

// Inventory is a fixed-capacity, order-significant slot array. Slot order
// matters to the owning client's UI but carries no simulation meaning.
type Inventory struct {
	Slots []InventorySlot `json:"slots"`
}

// NewInventory returns an empty inventory with the given capacity.
func NewInventory(capacity int) Inventory {
	if capacity <= 0 {
		capacity = DefaultInventoryCapacity
	}
	return Inventory{Slots: make([]InventorySlot, capacity)}
}

// Clone returns a deep copy safe to hand to another goroutine.
func (inv Inventory) Clone() Inventory {
	cloned := make([]InventorySlot, len(inv.Slots))
	copy(cloned, inv.Slots)
	return Inventory{Slots: cloned}
}

// FirstFree returns the lowest unoccupied slot index.
func (inv *Inventory) FirstFree() (int, bool) {
	for i := range inv.Slots {
		if !inv.Slots[i].Occupied {
			return i, true
		}
	}
	return -1, false
}

// Get returns the stack at the given slot.
func (inv *Inventory) Get(slot int) (ItemStack, bool) {
	if slot < 0 || slot >= len(inv.Slots) || !inv.Slots[slot].Occupied {
		return ItemStack{}, false
	}
	return inv.Slots[slot].Item, true
}

// Add inserts a stack, merging into an existing stack of the same template
// when the template is stackable, otherwise taking the first free slot. It
// returns the slot index used.
func (inv *Inventory) Add(stack ItemStack, stackable bool) (int, error) {
	if stack.Quantity <= 0 || stack.TemplateID == "" {
		return -1, ErrSlotEmpty
	}
	if stackable {
		for i := range inv.Slots {
			if inv.Slots[i].Occupied && inv.Slots[i].Item.TemplateID == stack.TemplateID {
				inv.Slots[i].Item.Quantity += stack.Quantity
				return i, nil
			}
		}
	}
	slot, ok := inv.FirstFree()
	if !ok {
		return -1, ErrInventoryFull
	}
	inv.Slots[slot] = InventorySlot{Occupied: true, Item: stack}
	return slot, nil
}

// RemoveAt takes qty items out of the slot, clearing it when emptied. The
// removed portion is returned as its own stack.
func (inv *Inventory) RemoveAt(slot, qty int) (ItemStack, error) {
	if slot < 0 || slot >= len(inv.Slots) {
		return ItemStack{}, ErrInvalidSlot
	}
	if !inv.Slots[slot].Occupied {
		return ItemStack{}, ErrSlotEmpty
	}
	held := inv.Slots[slot].Item
	if qty <= 0 || qty > held.Quantity {
		return ItemStack{}, ErrInsufficientQuantity
	}
	removed := held
	removed.Quantity = qty
	if qty == held.Quantity {
		inv.Slots[slot] = InventorySlot{}
	} else {
		inv.Slots[slot].Item.Quantity -= qty
	}
	return removed, nil
}

// Move relocates or swaps slot contents. Moving onto an occupied slot swaps
// the two stacks; moving onto a free slot relocates.
func (inv *Inventory) Move(from, to int) error {
	if from < 0 || from >= len(inv.Slots) || to < 0 || to >= len(inv.Slots) {
		return ErrInvalidSlot
	}
	if from == to {
		return nil
	}
	if !inv.Slots[from].Occupied {
		return ErrSlotEmpty
	}
	inv.Slots[from], inv.Slots[to] = inv.Slots[to], inv.Slots[from]
	return nil
}

// Compact shifts occupied slots to the front preserving relative order.
func (inv *Inventory) Compact() {
	next := 0
	for i := range inv.Slots {
		if inv.Slots[i].Occupied {
			if i != next {
				inv.Slots[next] = inv.Slots[i]
				inv.Slots[i] = InventorySlot{}
			}
			next++
		}
	}
}

// SortStable compacts the inventory then orders occupied slots by the given
// comparison. Used by the client-requested inventory sort.
func (inv *Inventory) SortStable(less func(a, b ItemStack) bool) {
	inv.Compact()
	occupied := 0
	for occupied < len(inv.Slots) && inv.Slots[occupied].Occupied {
		occupied++
	}
	// Insertion sort keeps equal elements in slot order.
	for i := 1; i < occupied; i++ {
		for j := i; j > 0 && less(inv.Slots[j].Item, inv.Slots[j-1].Item); j-- {
			inv.Slots[j], inv.Slots[j-1] = inv.Slots[j-1], inv.Slots[j]
		}
	}
}

// Count returns the number of occupied slots.
func (inv *Inventory) Count() int {
	total := 0
	for i := range inv.Slots {
		if inv.Slots[i].Occupied {
			total++
		}
	}
	return total
}
