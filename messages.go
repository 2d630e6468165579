package server

import (
	"emberwake/server/internal/state"
)

// EntityUpdate is one entry in the per-tick batched delta. Only fields that
// changed since the previous tick are populated; position always ships as an
// x/y pair.
type EntityUpdate struct {
	ID     string   `json:"id"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Health *int     `json:"health,omitempty"`
	State  *string  `json:"state,omitempty"`
}

type entityUpdateMessage struct {
	Ver        int            `json:"ver"`
	Type       string         `json:"type"`
	Tick       uint64         `json:"t"`
	ServerTime int64          `json:"serverTime"`
	Updates    []EntityUpdate `json:"updates"`
}

type zoneStateMessage struct {
	Ver          int                 `json:"ver"`
	Type         string              `json:"type"`
	Tick         uint64              `json:"t"`
	ZoneID       string              `json:"zoneId"`
	CharacterID  string              `json:"characterId"`
	TickRate     int                 `json:"tickRate"`
	Characters   []state.Character   `json:"characters"`
	Enemies      []state.Enemy       `json:"enemies"`
	DroppedItems []state.DroppedItem `json:"droppedItems,omitempty"`
}

type playerJoinedMessage struct {
	Ver       int             `json:"ver"`
	Type      string          `json:"type"`
	Character state.Character `json:"character"`
}

type playerLeftMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	CharacterID string `json:"characterId"`
}

// combatActionMessage carries every attack resolved in one tick.
type combatActionMessage struct {
	Ver     int                 `json:"ver"`
	Type    string              `json:"type"`
	Tick    uint64              `json:"t"`
	Actions []combatActionEntry `json:"actions"`
}

type combatActionEntry struct {
	AttackerID string `json:"attackerId"`
	TargetID   string `json:"targetId"`
	Damage     int    `json:"damage"`
}

type entityDiedMessage struct {
	Ver      int    `json:"ver"`
	Type     string `json:"type"`
	EntityID string `json:"entityId"`
	KillerID string `json:"killerId,omitempty"`
}

type enemySpawnedMessage struct {
	Ver   int         `json:"ver"`
	Type  string      `json:"type"`
	Enemy state.Enemy `json:"enemy"`
}

type itemsDroppedMessage struct {
	Ver   int                 `json:"ver"`
	Type  string              `json:"type"`
	Items []state.DroppedItem `json:"items"`
}

type itemPickedUpMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	ItemID      string `json:"itemId"`
	CharacterID string `json:"characterId"`
}

type itemDespawnedMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	ItemID string `json:"itemId"`
}

// inventoryUpdateMessage is private to the owning session.
type inventoryUpdateMessage struct {
	Ver   int                   `json:"ver"`
	Type  string                `json:"type"`
	Slots []state.InventorySlot `json:"slots"`
}

type equipmentUpdateMessage struct {
	Ver         int                  `json:"ver"`
	Type        string               `json:"type"`
	CharacterID string               `json:"characterId"`
	Items       []state.EquippedItem `json:"equipment"`
	// Derived totals so the client never recomputes stats itself.
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
	MaxHealth int `json:"maxHealth"`
}

type xpUpdateMessage struct {
	Ver         int    `json:"ver"`
	Type        string `json:"type"`
	CharacterID string `json:"characterId"`
	XP          int64  `json:"xp"`
	Level       int    `json:"level"`
	NextLevel   int64  `json:"xpToNextLevel"`
}

type baseStats struct {
	MaxHealth int `json:"maxHealth"`
	Attack    int `json:"attack"`
	Defense   int `json:"defense"`
}

type levelUpNotificationMessage struct {
	Ver         int       `json:"ver"`
	Type        string    `json:"type"`
	CharacterID string    `json:"characterId"`
	NewLevel    int       `json:"newLevel"`
	NewStats    baseStats `json:"newBaseStats"`
	XP          int64     `json:"xp"`
	NextLevel   int64     `json:"xpToNextLevel"`
}

type chatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	SenderName string `json:"senderName"`
	Message    string `json:"message"`
	Timestamp  int64  `json:"timestamp"`
}

type commandAckMessage struct {
	Ver  int    `json:"ver"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	Tick uint64 `json:"t"`
}

type commandRejectMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Tick   uint64 `json:"t"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

type heartbeatMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime,omitempty"`
	RTTMillis  int64  `json:"rttMillis,omitempty"`
}
