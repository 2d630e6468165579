package server

import (
	"time"
)

// CommandType enumerates the client and AI intents applied on the next tick.
type CommandType string

const (
	CommandMove             CommandType = "Move"
	CommandAttack           CommandType = "Attack"
	CommandPickupItem       CommandType = "PickupItem"
	CommandEquipItem        CommandType = "EquipItem"
	CommandUnequipItem      CommandType = "UnequipItem"
	CommandMoveInventory    CommandType = "MoveInventory"
	CommandDropInventory    CommandType = "DropInventory"
	CommandSortInventory    CommandType = "SortInventory"
	CommandRequestInventory CommandType = "RequestInventory"
	CommandRequestEquipment CommandType = "RequestEquipment"
	CommandChat             CommandType = "Chat"
	CommandHeartbeat        CommandType = "Heartbeat"
)

// Command is an intent captured for processing on the next tick. Only the
// payload matching Type is set.
type Command struct {
	OriginTick uint64
	ActorID    string // character id
	SessionID  string
	Type       CommandType
	Seq        uint64 // client command sequence for acks, 0 when unacked
	IssuedAt   time.Time

	Move      *MoveCommand
	Attack    *AttackCommand
	Pickup    *PickupCommand
	Equip     *EquipCommand
	Unequip   *UnequipCommand
	MoveItem  *MoveItemCommand
	DropItem  *DropItemCommand
	Sort      *SortCommand
	Chat      *ChatCommand
	Heartbeat *HeartbeatCommand
}

// MoveCommand carries the desired destination point.
type MoveCommand struct {
	TargetX float64
	TargetY float64
}

// AttackCommand identifies the entity to attack.
type AttackCommand struct {
	TargetID string
}

// PickupCommand identifies the ground item to claim.
type PickupCommand struct {
	ItemID string
}

// EquipCommand identifies an inventory item instance to equip.
type EquipCommand struct {
	InventoryItemID string
}

// UnequipCommand identifies the equipment slot to clear.
type UnequipCommand struct {
	Slot string
}

// MoveItemCommand relocates or swaps inventory slots.
type MoveItemCommand struct {
	FromIndex int
	ToIndex   int
}

// DropItemCommand drops the stack held in an inventory slot.
type DropItemCommand struct {
	InventoryIndex int
}

// SortCommand reorders the inventory.
type SortCommand struct {
	SortType string // "name", "type", or "newest"
}

// ChatCommand carries a zone chat line.
type ChatCommand struct {
	Message string
}

// HeartbeatCommand updates connectivity metadata for a session.
type HeartbeatCommand struct {
	ReceivedAt time.Time
	ClientSent int64
	RTT        time.Duration
}

// Command reject reasons surfaced through commandReject acknowledgments.
const (
	CommandRejectUnknownActor = "unknown_actor"
	CommandRejectQueueLimit   = "queue_limit"
	CommandRejectDead         = "dead"
	CommandRejectInvalid      = "invalid"
)

// coalesces reports whether a newer command of the same type from the same
// actor supersedes this one. Only the most recent move target matters, so a
// flood of move commands collapses to latest-wins instead of filling the
// queue.
func (c Command) coalesces() bool {
	return c.Type == CommandMove
}
