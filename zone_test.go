package server

import (
	"context"
	"testing"
	"time"

	"emberwake/server/internal/content"
	"emberwake/server/internal/state"
	"emberwake/server/logging"
	loggingeconomy "emberwake/server/logging/economy"
	"emberwake/server/logging/sinks"
)

const testPackYAML = `
items:
  - id: iron_sword
    name: Iron Sword
    class: weapon
    equipSlot: main_hand
    attackBonus: 5
  - id: oak_shield
    name: Oak Shield
    class: armor
    equipSlot: off_hand
    defenseBonus: 3
  - id: bear_charm
    name: Bear Charm
    class: accessory
    equipSlot: accessory
    healthBonus: 20
  - id: rat_pelt
    name: Rat Pelt
    class: material
enemies:
  - id: training_dummy
    name: Training Dummy
    maxHealth: 30
    attack: 8
    defense: 2
    moveSpeed: 0
    attackRange: 24
    attackCooldownMs: 1000
    xpReward: 120
    stationary: true
    loot:
      - itemId: rat_pelt
        chance: 1.0
        minQty: 1
        maxQty: 1
  - id: iron_wall
    name: Iron Wall
    maxHealth: 500
    attack: 1
    defense: 100
    moveSpeed: 0
    attackRange: 24
    attackCooldownMs: 1000
    xpReward: 1
    stationary: true
  - id: hungry_wolf
    name: Hungry Wolf
    maxHealth: 40
    attack: 12
    defense: 1
    moveSpeed: 120
    attackRange: 24
    attackCooldownMs: 800
    aggroRadius: 200
    xpReward: 60
    aggressive: true
    canFlee: true
    fleeThreshold: 0.5
nests: []
`

func testCatalog(t *testing.T) *content.Catalog {
	t.Helper()
	catalog, err := content.Parse([]byte(testPackYAML))
	if err != nil {
		t.Fatalf("parse test content pack: %v", err)
	}
	return catalog
}

func newTestZone(t *testing.T) *Zone {
	t.Helper()
	z := NewZone(ZoneConfig{ID: "test-zone", Seed: 1, TickRate: defaultTickRate}, testCatalog(t), nil)
	z.ClearEvents()
	return z
}

func addTestCharacter(z *Zone, id string) *characterState {
	cs := newCharacterState(id, "sess-"+id, "Tester", 1, 0)
	z.AddCharacter(cs)
	z.ClearEvents()
	return cs
}

func addTestEnemy(t *testing.T, z *Zone, templateID string, x, y float64) *enemyState {
	t.Helper()
	tpl, ok := z.catalog.Enemy(templateID)
	if !ok {
		t.Fatalf("unknown test enemy template %q", templateID)
	}
	enemy := z.spawnEnemy(tpl, nil, x, y)
	z.ClearEvents()
	return enemy
}

// stepZoneTest advances the zone one tick at the standard interval.
func stepZoneTest(z *Zone, now time.Time, commands ...Command) *TickOutput {
	out := z.Step(z.currentTick+1, now, 1.0/float64(defaultTickRate), commands)
	return out
}

func findBroadcast[T any](out *TickOutput) (T, bool) {
	for _, msg := range out.Broadcasts {
		if typed, ok := msg.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func findPrivate[T any](out *TickOutput, sessionID string) (T, bool) {
	for _, msg := range out.Private[sessionID] {
		if typed, ok := msg.(T); ok {
			return typed, true
		}
	}
	var zero T
	return zero, false
}

func TestMoveCommandWalksToTargetAndIdles(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	start := time.Now()

	out := stepZoneTest(z, start, Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandMove,
		Seq:       1,
		Move:      &MoveCommand{TargetX: cs.X + 50, TargetY: cs.Y},
	})
	if _, ok := findPrivate[commandAckMessage](out, cs.sessionID); !ok {
		t.Fatalf("expected commandAck for accepted move")
	}
	if cs.State != state.CharacterMoving {
		t.Fatalf("expected moving state, got %s", cs.State)
	}
	z.ClearEvents()

	for i := 0; i < 20 && cs.State == state.CharacterMoving; i++ {
		start = start.Add(time.Second / defaultTickRate)
		stepZoneTest(z, start)
		z.ClearEvents()
	}
	if cs.State != state.CharacterIdle {
		t.Fatalf("expected idle after arrival, got %s", cs.State)
	}
	if cs.X != defaultSpawnX+50 || cs.Y != defaultSpawnY {
		t.Fatalf("expected arrival at (%v,%v), got (%v,%v)", defaultSpawnX+50, defaultSpawnY, cs.X, cs.Y)
	}
}

func TestMoveTargetClampsToZoneBounds(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID: "char-1",
		Type:    CommandMove,
		Move:    &MoveCommand{TargetX: -500, TargetY: zoneHeight * 2},
	})
	z.ClearEvents()
	if cs.moveTarget == nil {
		t.Fatalf("expected a clamped move target")
	}
	if cs.moveTarget.X != 0 || cs.moveTarget.Y != zoneHeight {
		t.Fatalf("expected target clamped to (0,%v), got (%v,%v)", float64(zoneHeight), cs.moveTarget.X, cs.moveTarget.Y)
	}
}

func TestAttackDamageFloorsAtOne(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "iron_wall", cs.X+10, cs.Y)

	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       1,
		Attack:    &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()

	action, ok := findBroadcast[combatActionMessage](out)
	if !ok {
		t.Fatalf("expected combatAction broadcast")
	}
	if len(action.Actions) != 1 {
		t.Fatalf("expected one resolved attack in the batch, got %d", len(action.Actions))
	}
	if action.Actions[0].Damage != 1 {
		t.Fatalf("expected floor damage of 1 against heavy armor, got %d", action.Actions[0].Damage)
	}
	if enemy.Health != enemy.MaxHealth-1 {
		t.Fatalf("expected one point of damage applied, got health %d", enemy.Health)
	}
}

func TestStaleAttackIntentsDropSilently(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")

	// Target never existed; the command dies without a reply.
	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       1,
		Attack:    &AttackCommand{TargetID: "enemy-missing"},
	})
	z.ClearEvents()
	if _, ok := findPrivate[commandRejectMessage](out, cs.sessionID); ok {
		t.Fatalf("expected no reject for a stale target")
	}
	if _, ok := findPrivate[commandAckMessage](out, cs.sessionID); ok {
		t.Fatalf("expected no ack for a stale target")
	}
}

func TestOnCooldownAttackDropsSilently(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "iron_wall", cs.X+10, cs.Y)

	now := time.Now()
	stepZoneTest(z, now, Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       1,
		Attack:    &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()

	// A second swing inside the cooldown window lands nothing and says
	// nothing.
	out := stepZoneTest(z, now.Add(100*time.Millisecond), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       2,
		Attack:    &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()
	if _, ok := findPrivate[commandRejectMessage](out, cs.sessionID); ok {
		t.Fatalf("expected no reject for an on-cooldown swing")
	}
	if _, ok := findBroadcast[combatActionMessage](out); ok {
		t.Fatalf("expected no attack resolved inside the cooldown")
	}
	if enemy.Health != enemy.MaxHealth-1 {
		t.Fatalf("expected only the first swing applied, got health %d", enemy.Health)
	}
}

func TestKillAwardsExperienceAndDropsLoot(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "training_dummy", cs.X+10, cs.Y)
	enemy.Health = 1

	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       7,
		Attack:    &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()

	died, ok := findBroadcast[entityDiedMessage](out)
	if !ok {
		t.Fatalf("expected entityDied broadcast")
	}
	if died.EntityID != enemy.ID || died.KillerID != cs.ID {
		t.Fatalf("unexpected entityDied payload: %+v", died)
	}

	drops, ok := findBroadcast[itemsDroppedMessage](out)
	if !ok {
		t.Fatalf("expected itemsDropped broadcast from guaranteed loot")
	}
	if len(drops.Items) != 1 || drops.Items[0].TemplateID != "rat_pelt" {
		t.Fatalf("expected one rat_pelt drop, got %+v", drops.Items)
	}

	note, ok := findPrivate[levelUpNotificationMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected private levelUpNotification")
	}
	if note.XP != 120 || note.NewLevel != 2 {
		t.Fatalf("expected level 2 at 120 xp, got %+v", note)
	}
	// The notification supersedes the plain xp event on a boundary tick.
	if _, ok := findPrivate[xpUpdateMessage](out, cs.sessionID); ok {
		t.Fatalf("expected no xpUpdate on a level-up tick")
	}

	if _, exists := z.enemies[enemy.ID]; exists {
		t.Fatalf("expected dead enemy removed from zone")
	}
}

func TestOutOfRangeAttackConvertsToTrackedMove(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "training_dummy", cs.X+300, cs.Y)

	now := time.Now()
	out := stepZoneTest(z, now, Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandAttack,
		Seq:       1,
		Attack:    &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()
	if _, ok := findPrivate[commandAckMessage](out, cs.sessionID); !ok {
		t.Fatalf("expected commandAck for converted attack")
	}
	if cs.State != state.CharacterMoving {
		t.Fatalf("expected moving state after conversion, got %s", cs.State)
	}
	if cs.pendingAttack != enemy.ID {
		t.Fatalf("expected tracked attack on %s, got %q", enemy.ID, cs.pendingAttack)
	}

	var hit bool
	for i := 0; i < 60 && !hit; i++ {
		now = now.Add(time.Second / defaultTickRate)
		out := stepZoneTest(z, now)
		if _, ok := findBroadcast[combatActionMessage](out); ok {
			hit = true
		}
		z.ClearEvents()
	}
	if !hit {
		t.Fatalf("expected tracked attack to land after closing distance")
	}
	if enemy.Health >= enemy.MaxHealth {
		t.Fatalf("expected damage applied, got health %d", enemy.Health)
	}
}

func TestDeadCharactersCannotAct(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	cs.SetHealth(0)
	cs.respawnAt = time.Now().Add(time.Hour)

	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandMove,
		Seq:       3,
		Move:      &MoveCommand{TargetX: 100, TargetY: 100},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected commandReject for a dead actor")
	}
	if reject.Reason != CommandRejectDead {
		t.Fatalf("expected reason %q, got %q", CommandRejectDead, reject.Reason)
	}
}

func TestCharacterRespawnsAfterDelay(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	cs.X, cs.Y = 900, 400
	now := time.Now()
	cs.SetHealth(0)
	cs.respawnAt = now.Add(characterRespawnDelay)

	stepZoneTest(z, now.Add(time.Second))
	z.ClearEvents()
	if cs.State != state.CharacterDead {
		t.Fatalf("expected still dead before the respawn delay, got %s", cs.State)
	}

	stepZoneTest(z, now.Add(characterRespawnDelay+time.Second))
	z.ClearEvents()
	if cs.State != state.CharacterIdle {
		t.Fatalf("expected idle after respawn, got %s", cs.State)
	}
	if cs.Health != cs.MaxHealth {
		t.Fatalf("expected full health after respawn, got %d", cs.Health)
	}
	if cs.X != defaultSpawnX || cs.Y != defaultSpawnY {
		t.Fatalf("expected respawn at spawn point, got (%v,%v)", cs.X, cs.Y)
	}
}

func TestPickupHasSingleClaimant(t *testing.T) {
	z := newTestZone(t)
	first := addTestCharacter(z, "char-1")
	second := addTestCharacter(z, "char-2")
	now := time.Now()

	tpl, _ := z.catalog.Item("iron_sword")
	item := z.placeItem(tpl, first.X+5, first.Y, 1, now)
	second.X, second.Y = first.X, first.Y
	z.ClearEvents()

	out := stepZoneTest(z, now,
		Command{ActorID: "char-1", SessionID: first.sessionID, Type: CommandPickupItem, Seq: 1, Pickup: &PickupCommand{ItemID: item.ID}},
		Command{ActorID: "char-2", SessionID: second.sessionID, Type: CommandPickupItem, Seq: 1, Pickup: &PickupCommand{ItemID: item.ID}},
	)
	z.ClearEvents()

	picked, ok := findBroadcast[itemPickedUpMessage](out)
	if !ok {
		t.Fatalf("expected itemPickedUp broadcast")
	}
	if picked.CharacterID != "char-1" {
		t.Fatalf("expected first claimant to win, got %s", picked.CharacterID)
	}
	if first.inventory.Count() != 1 {
		t.Fatalf("expected winner to hold the item")
	}
	if second.inventory.Count() != 0 {
		t.Fatalf("expected loser inventory empty")
	}
	reject, ok := findPrivate[commandRejectMessage](out, second.sessionID)
	if !ok {
		t.Fatalf("expected commandReject for losing claimant")
	}
	if reject.Detail != "already_claimed" {
		t.Fatalf("expected already_claimed detail, got %q", reject.Detail)
	}
	if _, exists := z.droppedItems[item.ID]; exists {
		t.Fatalf("expected claimed item removed from ground")
	}
}

func TestOutOfRangePickupWalksToItem(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	now := time.Now()

	tpl, _ := z.catalog.Item("rat_pelt")
	item := z.placeItem(tpl, cs.X+200, cs.Y, 3, now)
	z.ClearEvents()

	stepZoneTest(z, now, Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandPickupItem,
		Seq:       1,
		Pickup:    &PickupCommand{ItemID: item.ID},
	})
	z.ClearEvents()
	if cs.State != state.CharacterMovingToLoot {
		t.Fatalf("expected moving_to_loot, got %s", cs.State)
	}

	var picked bool
	for i := 0; i < 60 && !picked; i++ {
		now = now.Add(time.Second / defaultTickRate)
		out := stepZoneTest(z, now)
		if _, ok := findBroadcast[itemPickedUpMessage](out); ok {
			picked = true
		}
		z.ClearEvents()
	}
	if !picked {
		t.Fatalf("expected pickup after walking to the item")
	}
	if cs.inventory.Count() != 1 {
		t.Fatalf("expected one inventory stack, got %d", cs.inventory.Count())
	}
	stack, _ := cs.inventory.Get(0)
	if stack.Quantity != 3 {
		t.Fatalf("expected stack quantity 3, got %d", stack.Quantity)
	}
	if cs.State != state.CharacterIdle {
		t.Fatalf("expected idle after loot, got %s", cs.State)
	}
}

func TestPickupFailsWhenInventoryFull(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	now := time.Now()
	for i := 0; i < state.DefaultInventoryCapacity; i++ {
		if _, err := cs.inventory.Add(state.ItemStack{InstanceID: "filler", TemplateID: "iron_sword", Quantity: 1}, false); err != nil {
			t.Fatalf("unexpected error filling inventory: %v", err)
		}
	}

	tpl, _ := z.catalog.Item("oak_shield")
	item := z.placeItem(tpl, cs.X+5, cs.Y, 1, now)
	z.ClearEvents()

	out := stepZoneTest(z, now, Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandPickupItem,
		Seq:       2,
		Pickup:    &PickupCommand{ItemID: item.ID},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, cs.sessionID)
	if !ok {
		t.Fatalf("expected commandReject when inventory is full")
	}
	if reject.Detail != "inventory_full" {
		t.Fatalf("expected inventory_full detail, got %q", reject.Detail)
	}
	if _, exists := z.droppedItems[item.ID]; !exists {
		t.Fatalf("expected item to stay on the ground")
	}
}

func TestFailedGrantPublishesEconomyEvent(t *testing.T) {
	sink := sinks.NewMemory()
	router, err := logging.NewRouter(logging.SystemClock{}, logging.DefaultConfig(), map[string]logging.Sink{"memory": sink})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	z := NewZone(ZoneConfig{ID: "test-zone", Seed: 1, TickRate: defaultTickRate}, testCatalog(t), router)
	z.ClearEvents()
	cs := addTestCharacter(z, "char-1")
	now := time.Now()
	for i := 0; i < state.DefaultInventoryCapacity; i++ {
		if _, err := cs.inventory.Add(state.ItemStack{InstanceID: "filler", TemplateID: "iron_sword", Quantity: 1}, false); err != nil {
			t.Fatalf("unexpected error filling inventory: %v", err)
		}
	}
	tpl, _ := z.catalog.Item("oak_shield")
	item := z.placeItem(tpl, cs.X+5, cs.Y, 1, now)
	z.ClearEvents()

	stepZoneTest(z, now, Command{
		ActorID: "char-1",
		Type:    CommandPickupItem,
		Pickup:  &PickupCommand{ItemID: item.ID},
	})
	z.ClearEvents()
	if err := router.Close(context.Background()); err != nil {
		t.Fatalf("close router: %v", err)
	}

	events := sink.EventsOfType(loggingeconomy.EventItemGrantFailed)
	if len(events) != 1 {
		t.Fatalf("expected one failed-grant event, got %d", len(events))
	}
	payload, ok := events[0].Payload.(loggingeconomy.ItemGrantFailedPayload)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].Payload)
	}
	if payload.TemplateID != "oak_shield" || payload.Reason != "inventory_full" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestGroundItemDespawnsAfterTTL(t *testing.T) {
	z := newTestZone(t)
	now := time.Now()
	tpl, _ := z.catalog.Item("rat_pelt")
	item := z.placeItem(tpl, 100, 100, 1, now)
	z.ClearEvents()

	stepZoneTest(z, now.Add(itemDespawnTTL-time.Second))
	z.ClearEvents()
	if _, exists := z.droppedItems[item.ID]; !exists {
		t.Fatalf("expected item alive before TTL")
	}

	out := stepZoneTest(z, now.Add(itemDespawnTTL+time.Second))
	z.ClearEvents()
	if _, exists := z.droppedItems[item.ID]; exists {
		t.Fatalf("expected item removed after TTL")
	}
	despawn, ok := findBroadcast[itemDespawnedMessage](out)
	if !ok {
		t.Fatalf("expected itemDespawned broadcast")
	}
	if despawn.ItemID != item.ID {
		t.Fatalf("expected despawn for %s, got %s", item.ID, despawn.ItemID)
	}
}

func TestEntityUpdateBatchHasOneEntryPerEntity(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "iron_wall", cs.X+10, cs.Y)

	// Move and take damage in the same tick; both changes coalesce into one
	// update entry for the character.
	out := stepZoneTest(z, time.Now(),
		Command{ActorID: "char-1", Type: CommandAttack, Attack: &AttackCommand{TargetID: enemy.ID}},
	)
	z.ClearEvents()

	seen := make(map[string]int)
	for _, update := range out.Updates {
		seen[update.ID]++
	}
	for id, count := range seen {
		if count != 1 {
			t.Fatalf("expected one update entry for %s, got %d", id, count)
		}
	}
	if seen[enemy.ID] != 1 {
		t.Fatalf("expected damaged enemy in the batch")
	}
	found := false
	for _, update := range out.Updates {
		if update.ID == enemy.ID {
			found = true
			if update.Health == nil || *update.Health != enemy.Health {
				t.Fatalf("expected health delta for damaged enemy, got %+v", update)
			}
			if update.X != nil {
				t.Fatalf("expected no position delta for a stationary enemy")
			}
		}
	}
	if !found {
		t.Fatalf("expected enemy entry in update batch")
	}
}

func TestUnchangedEntitiesProduceNoUpdates(t *testing.T) {
	z := newTestZone(t)
	addTestCharacter(z, "char-1")

	stepZoneTest(z, time.Now())
	z.ClearEvents()
	out := stepZoneTest(z, time.Now())
	z.ClearEvents()
	if len(out.Updates) != 0 {
		t.Fatalf("expected empty update batch for a quiet tick, got %d entries", len(out.Updates))
	}
}

func TestEnemyTargetInvariantClearsOnLeave(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "hungry_wolf", cs.X+50, cs.Y)

	stepZoneTest(z, time.Now())
	z.ClearEvents()
	if enemy.TargetID != cs.ID {
		t.Fatalf("expected aggressive wolf to target the character, got %q", enemy.TargetID)
	}

	z.RemoveCharacter(cs.ID, "left")
	z.ClearEvents()
	if enemy.TargetID != "" {
		t.Fatalf("expected target cleared when the character left")
	}
	if enemy.State == state.EnemyChasing || enemy.State == state.EnemyAttacking {
		t.Fatalf("expected enemy out of combat states, got %s", enemy.State)
	}
}

func TestEnemyFleesBelowThreshold(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "hungry_wolf", cs.X+50, cs.Y)

	stepZoneTest(z, time.Now())
	z.ClearEvents()
	if enemy.TargetID != cs.ID {
		t.Fatalf("expected wolf to acquire a target first")
	}

	enemy.Health = enemy.MaxHealth / 4
	stepZoneTest(z, time.Now())
	z.ClearEvents()
	if enemy.State != state.EnemyFleeing {
		t.Fatalf("expected fleeing below half health, got %s", enemy.State)
	}
	if enemy.TargetID != "" {
		t.Fatalf("expected fleeing enemy to drop its target")
	}
}

func TestWoundedEnemyFleesWithoutLiveTarget(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "hungry_wolf", cs.X+500, cs.Y)

	// Target already cleared, but the attacker is still remembered.
	enemy.aggressorID = cs.ID
	enemy.Health = enemy.MaxHealth / 4

	stepZoneTest(z, time.Now())
	z.ClearEvents()
	if enemy.State != state.EnemyFleeing {
		t.Fatalf("expected wounded enemy to flee its aggressor, got %s", enemy.State)
	}
	if enemy.moveTarget == nil || enemy.moveTarget.X <= enemy.anchor.X {
		t.Fatalf("expected flight away from the attacker, got %+v", enemy.moveTarget)
	}
}

func TestEnemyRetaliatesWhenAttacked(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	enemy := addTestEnemy(t, z, "training_dummy", cs.X+10, cs.Y)

	stepZoneTest(z, time.Now(), Command{
		ActorID: "char-1",
		Type:    CommandAttack,
		Attack:  &AttackCommand{TargetID: enemy.ID},
	})
	z.ClearEvents()

	stepZoneTest(z, time.Now())
	z.ClearEvents()
	if enemy.TargetID != cs.ID {
		t.Fatalf("expected non-aggressive enemy to retaliate, target %q", enemy.TargetID)
	}
}

func TestChatBroadcastsAndTruncates(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")

	long := make([]byte, maxChatLength*2)
	for i := range long {
		long[i] = 'a'
	}
	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "char-1",
		SessionID: cs.sessionID,
		Type:      CommandChat,
		Seq:       1,
		Chat:      &ChatCommand{Message: string(long)},
	})
	z.ClearEvents()

	msg, ok := findBroadcast[chatMessage](out)
	if !ok {
		t.Fatalf("expected chatMessage broadcast")
	}
	if len(msg.Message) != maxChatLength {
		t.Fatalf("expected message truncated to %d, got %d", maxChatLength, len(msg.Message))
	}
	if msg.SenderName != cs.Name {
		t.Fatalf("expected sender name %q, got %q", cs.Name, msg.SenderName)
	}
}

func TestHeartbeatCommandRecordsBeat(t *testing.T) {
	z := newTestZone(t)
	cs := addTestCharacter(z, "char-1")
	now := time.Now()

	stepZoneTest(z, now, Command{
		ActorID:   "char-1",
		Type:      CommandHeartbeat,
		Heartbeat: &HeartbeatCommand{ReceivedAt: now, RTT: 35 * time.Millisecond},
	})
	z.ClearEvents()

	if !cs.lastHeartbeat.Equal(now) {
		t.Fatalf("expected heartbeat recorded")
	}
	if cs.lastRTT != 35*time.Millisecond {
		t.Fatalf("expected rtt recorded, got %v", cs.lastRTT)
	}

	stale := z.staleCharacterIDs(now.Add(disconnectAfter + time.Second))
	if len(stale) != 1 || stale[0] != cs.ID {
		t.Fatalf("expected character flagged stale after timeout, got %v", stale)
	}
	if stale := z.staleCharacterIDs(now.Add(time.Second)); len(stale) != 0 {
		t.Fatalf("expected no stale characters inside the window, got %v", stale)
	}
}

func TestUnknownActorCommandRejected(t *testing.T) {
	z := newTestZone(t)
	out := stepZoneTest(z, time.Now(), Command{
		ActorID:   "ghost",
		SessionID: "sess-ghost",
		Type:      CommandMove,
		Seq:       9,
		Move:      &MoveCommand{TargetX: 1, TargetY: 1},
	})
	z.ClearEvents()

	reject, ok := findPrivate[commandRejectMessage](out, "sess-ghost")
	if !ok {
		t.Fatalf("expected commandReject for unknown actor")
	}
	if reject.Reason != CommandRejectUnknownActor {
		t.Fatalf("expected reason %q, got %q", CommandRejectUnknownActor, reject.Reason)
	}
}
