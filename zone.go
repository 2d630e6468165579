package server

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"emberwake/server/internal/content"
	"emberwake/server/internal/state"
	"emberwake/server/logging"
	logginglifecycle "emberwake/server/logging/lifecycle"
)

// characterState is the authoritative per-character record. The embedded
// Character is the wire-visible portion; the rest is tick bookkeeping that
// never leaves the server.
type characterState struct {
	state.Character
	sessionID string
	inventory state.Inventory
	equipment state.Equipment

	moveTarget    *vec2
	pendingAttack string // enemy id for move-then-attack
	pendingPickup string // item id for move-to-loot
	pendingSeq    uint64 // ack sequence for the deferred pickup

	nextAttackAt  time.Time
	respawnAt     time.Time
	lastHeartbeat time.Time
	lastRTT       time.Duration
}

// enemyState is the authoritative per-enemy record.
type enemyState struct {
	state.Enemy
	tpl          content.EnemyTemplate
	anchor       vec2
	wanderRadius float64
	nest         *nestState

	moveTarget   *vec2
	aggressorID  string
	nextAttackAt time.Time
	nextWanderAt time.Time
	fleeUntil    time.Time
}

// nestState tracks a spawn table entry and its pending respawns.
type nestState struct {
	cfg      content.SpawnNest
	alive    int
	respawns []time.Time
}

// ZoneConfig tunes a single zone simulation.
type ZoneConfig struct {
	ID       string
	Seed     int64
	TickRate int
	// SpawnX/SpawnY is where joining and respawning characters are placed.
	SpawnX float64
	SpawnY float64
}

func (cfg ZoneConfig) normalized() ZoneConfig {
	if cfg.ID == "" {
		cfg.ID = "zone-1"
	}
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if cfg.SpawnX == 0 && cfg.SpawnY == 0 {
		cfg.SpawnX = defaultSpawnX
		cfg.SpawnY = defaultSpawnY
	}
	return cfg
}

// Zone owns the authoritative state for one spatial area. All mutation
// happens on the owning runtime's tick, so none of the maps need their own
// locks.
type Zone struct {
	cfg     ZoneConfig
	catalog *content.Catalog

	characters     map[string]*characterState
	characterOrder []string
	enemies        map[string]*enemyState
	enemyOrder     []string
	droppedItems   map[string]*state.DroppedItem
	itemOrder      []string
	nests          []*nestState

	rng         *rand.Rand
	publisher   logging.Publisher
	currentTick uint64
	nextEnemyID uint64

	events *tickEvents
}

// NewZone constructs a zone and seeds its spawn nests.
func NewZone(cfg ZoneConfig, catalog *content.Catalog, publisher logging.Publisher) *Zone {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	seed := normalized.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	z := &Zone{
		cfg:          normalized,
		catalog:      catalog,
		characters:   make(map[string]*characterState),
		enemies:      make(map[string]*enemyState),
		droppedItems: make(map[string]*state.DroppedItem),
		rng:          rand.New(rand.NewSource(seed)),
		publisher:    publisher,
		events:       newTickEvents(),
	}
	for _, nest := range catalog.Nests() {
		z.nests = append(z.nests, &nestState{cfg: nest})
	}
	z.spawnInitialEnemies(time.Now())
	return z
}

// ID returns the zone identifier.
func (z *Zone) ID() string {
	return z.cfg.ID
}

// HasCharacter reports whether the zone currently tracks the character.
func (z *Zone) HasCharacter(id string) bool {
	_, ok := z.characters[id]
	return ok
}

// AddCharacter places a character into the zone at the spawn point and
// announces the join.
func (z *Zone) AddCharacter(cs *characterState) {
	if cs == nil || cs.ID == "" {
		return
	}
	if _, exists := z.characters[cs.ID]; exists {
		return
	}
	if cs.X == 0 && cs.Y == 0 {
		cs.X = z.cfg.SpawnX
		cs.Y = z.cfg.SpawnY
	}
	if cs.State == "" {
		cs.State = state.CharacterIdle
	}
	z.characters[cs.ID] = cs
	z.characterOrder = append(z.characterOrder, cs.ID)

	z.events.broadcast(playerJoinedMessage{
		Ver:       ProtocolVersion,
		Type:      "playerJoined",
		Character: cs.Character,
	})
	logginglifecycle.CharacterJoined(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: cs.ID, Kind: logging.EntityKindCharacter},
		logginglifecycle.CharacterJoinedPayload{ZoneID: z.cfg.ID, Name: cs.Name})
}

// RemoveCharacter drops a character from live zone state and announces the
// leave. The caller persists the final record outside the tick.
func (z *Zone) RemoveCharacter(id, reason string) bool {
	if _, ok := z.characters[id]; !ok {
		return false
	}
	delete(z.characters, id)
	z.characterOrder = removeID(z.characterOrder, id)
	for _, enemy := range z.enemies {
		if enemy.TargetID == id {
			enemy.ClearTarget()
		}
		if enemy.aggressorID == id {
			enemy.aggressorID = ""
		}
	}
	z.events.broadcast(playerLeftMessage{
		Ver:         ProtocolVersion,
		Type:        "playerLeft",
		CharacterID: id,
	})
	logginglifecycle.CharacterLeft(context.Background(), z.publisher, z.currentTick,
		logging.EntityRef{ID: id, Kind: logging.EntityKindCharacter},
		logginglifecycle.CharacterLeftPayload{ZoneID: z.cfg.ID, Reason: reason})
	return true
}

// Snapshot copies the wire-visible zone state for the enterZone response.
func (z *Zone) Snapshot(now time.Time) ([]state.Character, []state.Enemy, []state.DroppedItem) {
	characters := make([]state.Character, 0, len(z.characters))
	for _, id := range z.characterOrder {
		if cs, ok := z.characters[id]; ok {
			characters = append(characters, cs.Character)
		}
	}
	enemies := make([]state.Enemy, 0, len(z.enemies))
	for _, id := range z.enemyOrder {
		if enemy, ok := z.enemies[id]; ok {
			enemies = append(enemies, enemy.Enemy)
		}
	}
	items := make([]state.DroppedItem, 0, len(z.droppedItems))
	for _, id := range z.itemOrder {
		if item, ok := z.droppedItems[id]; ok && item.Visible(now) {
			items = append(items, *item)
		}
	}
	return characters, enemies, items
}

// entitySnapshot captures the delta-relevant fields before a tick.
type entitySnapshot struct {
	x      float64
	y      float64
	health int
	state  string
}

// Step advances the simulation one tick, applying all staged commands and
// AI decisions in a fixed order. The returned output carries everything the
// broadcaster needs; zone state is not touched again until the next Step.
func (z *Zone) Step(tick uint64, now time.Time, dt float64, commands []Command) *TickOutput {
	if dt <= 0 {
		dt = 1.0 / float64(z.cfg.TickRate)
	}
	z.currentTick = tick
	z.events.tick = tick

	prev := z.snapshotEntities()

	// AI decisions first, then client commands, both in stable order.
	staged := z.runAI(now)
	for _, cmd := range commands {
		z.applyCommand(cmd, now, &staged)
	}

	z.advanceMovement(now, dt, &staged)
	z.resolveAttacks(now, staged.attacks)
	z.events.flushActions()
	z.sweepDeadEnemies(now)
	z.sweepTargetInvariant()
	z.respawnDueCharacters(now)
	z.refillNests(now)
	z.sweepExpiredItems(now)

	z.collectDeltas(prev)

	return z.events.output()
}

// stagedIntents accumulates per-tick intents between phases.
type stagedIntents struct {
	attacks []attackIntent
}

type attackIntent struct {
	attackerID   string
	targetID     string
	attackerKind logging.EntityKind
}

func (z *Zone) snapshotEntities() map[string]entitySnapshot {
	prev := make(map[string]entitySnapshot, len(z.characters)+len(z.enemies))
	for id, cs := range z.characters {
		prev[id] = entitySnapshot{x: cs.X, y: cs.Y, health: cs.Health, state: string(cs.State)}
	}
	for id, enemy := range z.enemies {
		prev[id] = entitySnapshot{x: enemy.X, y: enemy.Y, health: enemy.Health, state: string(enemy.State)}
	}
	return prev
}

func (z *Zone) collectDeltas(prev map[string]entitySnapshot) {
	for _, id := range z.characterOrder {
		cs, ok := z.characters[id]
		if !ok {
			continue
		}
		z.appendDelta(id, prev, cs.X, cs.Y, cs.Health, string(cs.State))
	}
	for _, id := range z.enemyOrder {
		enemy, ok := z.enemies[id]
		if !ok {
			continue
		}
		z.appendDelta(id, prev, enemy.X, enemy.Y, enemy.Health, string(enemy.State))
	}
}

func (z *Zone) appendDelta(id string, prev map[string]entitySnapshot, x, y float64, health int, stateLabel string) {
	before, existed := prev[id]
	update := EntityUpdate{ID: id}
	changed := false
	if !existed || before.x != x || before.y != y {
		vx, vy := x, y
		update.X = &vx
		update.Y = &vy
		changed = true
	}
	if !existed || before.health != health {
		vh := health
		update.Health = &vh
		changed = true
	}
	if !existed || before.state != stateLabel {
		vs := stateLabel
		update.State = &vs
		changed = true
	}
	if changed {
		z.events.addUpdate(update)
	}
}

// applyCommand validates and applies one staged command. Stale commands are
// dropped silently; precondition failures are rejected through the ack
// channel with a user-facing reason.
func (z *Zone) applyCommand(cmd Command, now time.Time, staged *stagedIntents) {
	cs, ok := z.characters[cmd.ActorID]
	if !ok {
		z.events.reject(cmd, CommandRejectUnknownActor, "")
		return
	}

	if cmd.Type == CommandHeartbeat {
		if cmd.Heartbeat != nil {
			cs.lastHeartbeat = cmd.Heartbeat.ReceivedAt
			cs.lastRTT = cmd.Heartbeat.RTT
		}
		return
	}

	// Dead characters cannot initiate anything until respawn.
	if cs.State == state.CharacterDead {
		z.events.reject(cmd, CommandRejectDead, "")
		return
	}

	switch cmd.Type {
	case CommandMove:
		if cmd.Move == nil {
			return
		}
		x, y := clampToZone(cmd.Move.TargetX, cmd.Move.TargetY)
		cs.moveTarget = &vec2{X: x, Y: y}
		cs.pendingAttack = ""
		cs.pendingPickup = ""
		if err := cs.TransitionTo(state.CharacterMoving); err == nil {
			z.events.ack(cmd)
		}
	case CommandAttack:
		if cmd.Attack == nil {
			return
		}
		z.stageCharacterAttack(cs, cmd, now, staged)
	case CommandPickupItem:
		if cmd.Pickup == nil {
			return
		}
		z.handlePickupCommand(cs, cmd, now)
	case CommandEquipItem:
		if cmd.Equip == nil {
			return
		}
		z.handleEquipCommand(cs, cmd)
	case CommandUnequipItem:
		if cmd.Unequip == nil {
			return
		}
		z.handleUnequipCommand(cs, cmd)
	case CommandMoveInventory:
		if cmd.MoveItem == nil {
			return
		}
		z.handleMoveInventoryCommand(cs, cmd)
	case CommandDropInventory:
		if cmd.DropItem == nil {
			return
		}
		z.handleDropInventoryCommand(cs, cmd, now)
	case CommandSortInventory:
		if cmd.Sort == nil {
			return
		}
		z.handleSortInventoryCommand(cs, cmd)
	case CommandRequestInventory:
		z.sendInventoryUpdate(cs)
		z.events.ack(cmd)
	case CommandRequestEquipment:
		z.sendEquipmentUpdate(cs)
		z.events.ack(cmd)
	case CommandChat:
		if cmd.Chat == nil {
			return
		}
		z.handleChatCommand(cs, cmd, now)
	}
}

func (z *Zone) handleChatCommand(cs *characterState, cmd Command, now time.Time) {
	message := cmd.Chat.Message
	if message == "" {
		return
	}
	if len(message) > maxChatLength {
		message = message[:maxChatLength]
	}
	z.events.broadcast(chatMessage{
		Ver:        ProtocolVersion,
		Type:       "chatMessage",
		SenderName: cs.Name,
		Message:    message,
		Timestamp:  now.UnixMilli(),
	})
	z.events.ack(cmd)
}

func (z *Zone) respawnDueCharacters(now time.Time) {
	for _, id := range z.characterOrder {
		cs, ok := z.characters[id]
		if !ok || cs.State != state.CharacterDead {
			continue
		}
		if cs.respawnAt.IsZero() || now.Before(cs.respawnAt) {
			continue
		}
		if err := cs.Respawn(z.cfg.SpawnX, z.cfg.SpawnY); err != nil {
			continue
		}
		cs.respawnAt = time.Time{}
		cs.moveTarget = nil
		cs.pendingAttack = ""
		cs.pendingPickup = ""
	}
}

// ClearEvents drops the accumulated tick output. The hub calls this once
// fan-out for the tick has finished; anything appended afterwards rides the
// next tick.
func (z *Zone) ClearEvents() {
	z.events.reset(z.currentTick)
}

// staleCharacterIDs lists characters whose sessions stopped heartbeating.
func (z *Zone) staleCharacterIDs(now time.Time) []string {
	cutoff := now.Add(-disconnectAfter)
	var stale []string
	for _, id := range z.characterOrder {
		cs, ok := z.characters[id]
		if !ok || cs.lastHeartbeat.IsZero() {
			continue
		}
		if cs.lastHeartbeat.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	return stale
}

func (z *Zone) entityRef(id string) logging.EntityRef {
	if _, ok := z.characters[id]; ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindCharacter}
	}
	if _, ok := z.enemies[id]; ok {
		return logging.EntityRef{ID: id, Kind: logging.EntityKindEnemy}
	}
	return logging.EntityRef{ID: id, Kind: logging.EntityKindUnknown}
}

func removeID(order []string, id string) []string {
	for i, candidate := range order {
		if candidate == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// newCharacterState builds a live character from persistent fields, deriving
// base stats from level.
func newCharacterState(id, sessionID, name string, level int, xp int64) *characterState {
	if level < 1 {
		level = 1
	}
	maxHealth, attack, defense := baseStatsForLevel(level)
	return &characterState{
		Character: state.Character{
			ID:        id,
			Name:      name,
			Level:     level,
			XP:        xp,
			Health:    maxHealth,
			MaxHealth: maxHealth,
			Attack:    attack,
			Defense:   defense,
			State:     state.CharacterIdle,
		},
		sessionID: sessionID,
		inventory: state.NewInventory(state.DefaultInventoryCapacity),
		equipment: state.NewEquipment(),
	}
}

func (z *Zone) nextEnemyInstanceID(templateID string) string {
	z.nextEnemyID++
	return fmt.Sprintf("enemy-%s-%d", templateID, z.nextEnemyID)
}
