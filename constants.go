package server

import "time"

// ProtocolVersion is stamped on every wire message.
const ProtocolVersion = 1

const (
	defaultTickRate = 15 // ticks per second

	heartbeatInterval = 2 * time.Second
	disconnectAfter   = 3 * heartbeatInterval

	zoneWidth  = 1600.0
	zoneHeight = 900.0

	characterMoveSpeed      = 160.0 // pixels per second
	characterAttackRange    = 32.0
	characterAttackCooldown = time.Second
	characterRespawnDelay   = 5 * time.Second

	// Distance at which a moving entity counts as arrived at its target.
	arriveThreshold = 4.0

	pickupRange    = 40.0
	itemDespawnTTL = 60 * time.Second

	defaultSpawnX = 200.0
	defaultSpawnY = 200.0

	maxChatLength = 256

	commandQueueCapacity = 1024
	perActorCommandLimit = 32

	outboundQueueSize = 64
)
