package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"emberwake/server/internal/content"
	"emberwake/server/internal/journal"
	"emberwake/server/internal/store"
	"emberwake/server/logging"
	logginglifecycle "emberwake/server/logging/lifecycle"
)

var (
	// ErrUnknownZone is returned when a join names a zone the hub does not run.
	ErrUnknownZone = errors.New("unknown_zone")
	// ErrUnknownSession is returned when a command references a closed session.
	ErrUnknownSession = errors.New("unknown_session")
)

// HubConfig tunes the hub and the zones it runs.
type HubConfig struct {
	TickRate int
	Zones    []ZoneConfig
}

func (cfg HubConfig) normalized() HubConfig {
	if cfg.TickRate <= 0 {
		cfg.TickRate = defaultTickRate
	}
	if len(cfg.Zones) == 0 {
		cfg.Zones = []ZoneConfig{{ID: "zone-1"}}
	}
	for i := range cfg.Zones {
		if cfg.Zones[i].TickRate <= 0 {
			cfg.Zones[i].TickRate = cfg.TickRate
		}
	}
	return cfg
}

// Session is one connected client's attachment to the hub. The transport
// layer drains Outbound and forwards each payload as one websocket message.
type Session struct {
	ID          string
	CharacterID string
	ZoneID      string

	outbound chan []byte
	done     chan struct{}
	once     sync.Once
}

// Outbound is the payload stream for the transport writer.
func (s *Session) Outbound() <-chan []byte {
	return s.outbound
}

// Done closes when the hub detaches the session.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close detaches the session. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

// send queues a payload without blocking. Reports false when the client is
// too slow to keep up.
func (s *Session) send(payload []byte) bool {
	select {
	case <-s.done:
		return false
	case s.outbound <- payload:
		return true
	default:
		return false
	}
}

// zoneRuntime pairs a zone with its command queue and subscriber set. The
// mutex serializes every mutation of the zone; the tick loop and the
// join/leave/command paths all take it.
type zoneRuntime struct {
	mu       sync.Mutex
	zone     *Zone
	tick     uint64
	pending  []Command
	perActor map[string]int
	sessions map[string]*Session
}

// Hub owns every zone runtime and the session registry. Zones tick on
// independent goroutines; nothing crosses zone boundaries mid-tick.
type Hub struct {
	mu       sync.Mutex
	runtimes map[string]*zoneRuntime
	sessions map[string]*Session

	cfg       HubConfig
	catalog   *content.Catalog
	repo      store.CharacterRepository
	publisher logging.Publisher
	recorder  *journal.Recorder
	router    *logging.Router
	startedAt time.Time
}

// HubOption customizes hub construction.
type HubOption func(*Hub)

// WithJournal records every tick's output to the recorder.
func WithJournal(recorder *journal.Recorder) HubOption {
	return func(h *Hub) { h.recorder = recorder }
}

// WithRouterStats includes logging router counters in diagnostics.
func WithRouterStats(router *logging.Router) HubOption {
	return func(h *Hub) { h.router = router }
}

// NewHub builds a hub and its zones.
func NewHub(cfg HubConfig, catalog *content.Catalog, repo store.CharacterRepository, publisher logging.Publisher, opts ...HubOption) *Hub {
	normalized := cfg.normalized()
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	if repo == nil {
		repo = store.NewMemoryRepository()
	}
	h := &Hub{
		runtimes:  make(map[string]*zoneRuntime, len(normalized.Zones)),
		sessions:  make(map[string]*Session),
		cfg:       normalized,
		catalog:   catalog,
		repo:      repo,
		publisher: publisher,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	for _, zoneCfg := range normalized.Zones {
		zone := NewZone(zoneCfg, catalog, publisher)
		zone.ClearEvents()
		h.runtimes[zone.ID()] = &zoneRuntime{
			zone:     zone,
			perActor: make(map[string]int),
			sessions: make(map[string]*Session),
		}
	}
	return h
}

// RunSimulation ticks every zone until the context is cancelled. Each zone
// runs its own loop so a busy zone never delays a quiet one.
func (h *Hub) RunSimulation(ctx context.Context) {
	interval := time.Second / time.Duration(h.cfg.TickRate)
	var wg sync.WaitGroup
	for _, rt := range h.runtimeList() {
		wg.Add(1)
		go func(rt *zoneRuntime) {
			defer wg.Done()
			h.runZone(ctx, rt, interval)
		}(rt)
	}
	wg.Wait()
}

func (h *Hub) runtimeList() []*zoneRuntime {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := make([]*zoneRuntime, 0, len(h.runtimes))
	for _, rt := range h.runtimes {
		list = append(list, rt)
	}
	return list
}

func (h *Hub) runZone(ctx context.Context, rt *zoneRuntime, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			h.stepZone(rt, now, dt)
		}
	}
}

// stepZone runs one tick: reap stale sessions, drain the queue, step the
// simulation, fan out, clear. Everything inside the runtime lock.
func (h *Hub) stepZone(rt *zoneRuntime, now time.Time, dt float64) {
	rt.mu.Lock()

	staleRecords, staleSessions := h.reapStaleLocked(rt, now)

	commands := rt.pending
	rt.pending = nil
	clear(rt.perActor)

	rt.tick++
	out := rt.zone.Step(rt.tick, now, dt, commands)

	if h.recorder != nil {
		_ = h.recorder.Record(journalEntry{
			Tick:       out.Tick,
			ZoneID:     rt.zone.ID(),
			ServerTime: now.UnixMilli(),
			Updates:    out.Updates,
			Broadcasts: out.Broadcasts,
		})
	}

	slow := rt.fanOutLocked(out, now)
	rt.zone.ClearEvents()
	rt.mu.Unlock()

	for _, record := range staleRecords {
		h.persist(record)
	}
	for _, session := range staleSessions {
		h.detachSession(session, "timeout")
	}
	for _, session := range slow {
		h.Leave(session.ID, "slow_consumer")
	}
}

type journalEntry struct {
	Tick       uint64         `json:"t"`
	ZoneID     string         `json:"zoneId"`
	ServerTime int64          `json:"serverTime"`
	Updates    []EntityUpdate `json:"updates,omitempty"`
	Broadcasts []any          `json:"broadcasts,omitempty"`
}

// reapStaleLocked removes characters whose sessions stopped heartbeating and
// returns their final records plus the sessions to detach.
func (h *Hub) reapStaleLocked(rt *zoneRuntime, now time.Time) ([]store.CharacterRecord, []*Session) {
	var records []store.CharacterRecord
	var sessions []*Session
	for _, id := range rt.zone.staleCharacterIDs(now) {
		cs, ok := rt.zone.characters[id]
		if !ok {
			continue
		}
		records = append(records, characterRecordOf(cs))
		if session, exists := rt.sessions[cs.sessionID]; exists {
			sessions = append(sessions, session)
			delete(rt.sessions, cs.sessionID)
		}
		rt.zone.RemoveCharacter(id, "timeout")
	}
	return records, sessions
}

// fanOutLocked delivers one tick's output: the batched entity delta first,
// then each discrete event in order, then the private per-session messages.
// Returns sessions that could not keep up.
func (rt *zoneRuntime) fanOutLocked(out *TickOutput, now time.Time) []*Session {
	var slow map[string]*Session
	markSlow := func(session *Session) {
		if slow == nil {
			slow = make(map[string]*Session)
		}
		slow[session.ID] = session
	}
	sendAll := func(payload []byte) {
		for _, session := range rt.sessions {
			if !session.send(payload) {
				markSlow(session)
			}
		}
	}

	if len(out.Updates) > 0 {
		payload, err := json.Marshal(entityUpdateMessage{
			Ver:        ProtocolVersion,
			Type:       "entityUpdate",
			Tick:       out.Tick,
			ServerTime: now.UnixMilli(),
			Updates:    out.Updates,
		})
		if err == nil {
			sendAll(payload)
		}
	}
	for _, msg := range out.Broadcasts {
		payload, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		sendAll(payload)
	}
	for sessionID, msgs := range out.Private {
		session, ok := rt.sessions[sessionID]
		if !ok {
			continue
		}
		for _, msg := range msgs {
			payload, err := json.Marshal(msg)
			if err != nil {
				continue
			}
			if !session.send(payload) {
				markSlow(session)
			}
		}
	}

	if len(slow) == 0 {
		return nil
	}
	list := make([]*Session, 0, len(slow))
	for _, session := range slow {
		list = append(list, session)
	}
	return list
}

// Join attaches an authenticated principal to a zone, loading persistent
// progression or creating a fresh character. The returned session carries
// the outbound stream; the zoneState payload is the client's full snapshot.
func (h *Hub) Join(ctx context.Context, principal Principal, zoneID string) (*Session, []byte, error) {
	if zoneID == "" {
		zoneID = h.cfg.Zones[0].ID
	}
	h.mu.Lock()
	rt, ok := h.runtimes[zoneID]
	h.mu.Unlock()
	if !ok {
		return nil, nil, ErrUnknownZone
	}

	record, err := h.repo.Load(ctx, principal.CharacterID)
	if errors.Is(err, store.ErrNotFound) {
		record = store.CharacterRecord{
			ID:    principal.CharacterID,
			Name:  principal.DisplayName,
			Level: 1,
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("load character: %w", err)
	}

	session := &Session{
		ID:          "session-" + uuid.NewString(),
		CharacterID: principal.CharacterID,
		ZoneID:      zoneID,
		outbound:    make(chan []byte, outboundQueueSize),
		done:        make(chan struct{}),
	}

	// A second login for the same character replaces the first.
	h.evictCharacter(principal.CharacterID)

	cs := newCharacterState(record.ID, session.ID, record.Name, record.Level, record.XP)
	if len(record.Inventory.Slots) > 0 {
		cs.inventory = record.Inventory.Clone()
	}
	cs.equipment = record.Equipment.Clone()

	rt.mu.Lock()
	rt.zone.recomputeDerivedStats(cs)
	cs.Health = cs.MaxHealth
	cs.lastHeartbeat = time.Now()
	rt.zone.AddCharacter(cs)
	rt.sessions[session.ID] = session

	characters, enemies, items := rt.zone.Snapshot(time.Now())
	snapshot := zoneStateMessage{
		Ver:          ProtocolVersion,
		Type:         "zoneState",
		Tick:         rt.tick,
		ZoneID:       zoneID,
		CharacterID:  cs.ID,
		TickRate:     h.cfg.TickRate,
		Characters:   characters,
		Enemies:      enemies,
		DroppedItems: items,
	}
	rt.mu.Unlock()

	h.mu.Lock()
	h.sessions[session.ID] = session
	h.mu.Unlock()

	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.Leave(session.ID, "snapshot_failed")
		return nil, nil, err
	}
	return session, payload, nil
}

// evictCharacter detaches any live session currently driving the character.
func (h *Hub) evictCharacter(characterID string) {
	h.mu.Lock()
	var victim *Session
	for _, session := range h.sessions {
		if session.CharacterID == characterID {
			victim = session
			break
		}
	}
	h.mu.Unlock()
	if victim != nil {
		h.Leave(victim.ID, "replaced")
	}
}

// Leave removes the session's character from its zone, persists it, and
// closes the session.
func (h *Hub) Leave(sessionID, reason string) {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	if ok {
		delete(h.sessions, sessionID)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	rt := h.runtimeFor(session.ZoneID)
	if rt != nil {
		rt.mu.Lock()
		delete(rt.sessions, sessionID)
		var record *store.CharacterRecord
		if cs, exists := rt.zone.characters[session.CharacterID]; exists && cs.sessionID == sessionID {
			r := characterRecordOf(cs)
			record = &r
			rt.zone.RemoveCharacter(session.CharacterID, reason)
		}
		rt.mu.Unlock()
		if record != nil {
			h.persist(*record)
		}
	}

	session.Close()
	logginglifecycle.SessionDisconnected(context.Background(), h.publisher, 0,
		logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		logginglifecycle.SessionDisconnectedPayload{Reason: reason})
}

// detachSession closes a session whose character was already removed on the
// tick (heartbeat timeout).
func (h *Hub) detachSession(session *Session, reason string) {
	h.mu.Lock()
	delete(h.sessions, session.ID)
	h.mu.Unlock()
	session.Close()
	logginglifecycle.SessionDisconnected(context.Background(), h.publisher, 0,
		logging.EntityRef{ID: session.ID, Kind: logging.EntityKindSession},
		logginglifecycle.SessionDisconnectedPayload{Reason: reason})
}

func (h *Hub) runtimeFor(zoneID string) *zoneRuntime {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.runtimes[zoneID]
}

func (h *Hub) persist(record store.CharacterRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.repo.Save(ctx, record); err != nil {
		h.publisher.Publish(ctx, logging.Event{
			Type:     "store.save_failed",
			Severity: logging.SeverityError,
			Category: logging.CategorySystem,
			Actor:    logging.EntityRef{ID: record.ID, Kind: logging.EntityKindCharacter},
			Payload:  map[string]string{"error": err.Error()},
		})
	}
}

func characterRecordOf(cs *characterState) store.CharacterRecord {
	return store.CharacterRecord{
		ID:        cs.ID,
		Name:      cs.Name,
		Level:     cs.Level,
		XP:        cs.XP,
		Inventory: cs.inventory.Clone(),
		Equipment: cs.equipment.Clone(),
	}
}

// EnqueueCommand stages a command for the session's zone. Move commands
// coalesce per actor; the per-actor queue limit rejects floods immediately.
func (h *Hub) EnqueueCommand(sessionID string, cmd Command) error {
	h.mu.Lock()
	session, ok := h.sessions[sessionID]
	h.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}
	rt := h.runtimeFor(session.ZoneID)
	if rt == nil {
		return ErrUnknownZone
	}

	cmd.SessionID = sessionID
	cmd.ActorID = session.CharacterID
	cmd.IssuedAt = time.Now()

	rt.mu.Lock()
	defer rt.mu.Unlock()
	cmd.OriginTick = rt.tick

	if cmd.coalesces() {
		for i := range rt.pending {
			if rt.pending[i].ActorID == cmd.ActorID && rt.pending[i].Type == cmd.Type {
				rt.pending[i] = cmd
				return nil
			}
		}
	}

	if len(rt.pending) >= commandQueueCapacity || rt.perActor[cmd.ActorID] >= perActorCommandLimit {
		h.rejectDirect(session, cmd, CommandRejectQueueLimit)
		return nil
	}
	rt.pending = append(rt.pending, cmd)
	rt.perActor[cmd.ActorID]++
	return nil
}

// rejectDirect bypasses the tick and answers a command immediately.
func (h *Hub) rejectDirect(session *Session, cmd Command, reason string) {
	if cmd.Seq == 0 {
		return
	}
	payload, err := json.Marshal(commandRejectMessage{
		Ver:    ProtocolVersion,
		Type:   "commandReject",
		Seq:    cmd.Seq,
		Reason: reason,
	})
	if err != nil {
		return
	}
	session.send(payload)
}

// HeartbeatReply builds the direct heartbeat response for the transport.
func HeartbeatReply(now time.Time, clientTime int64, rtt time.Duration) ([]byte, error) {
	return json.Marshal(heartbeatMessage{
		Ver:        ProtocolVersion,
		Type:       "heartbeat",
		ServerTime: now.UnixMilli(),
		ClientTime: clientTime,
		RTTMillis:  rtt.Milliseconds(),
	})
}

// DiagnosticsSnapshot summarizes hub health for the diagnostics endpoint.
type DiagnosticsSnapshot struct {
	UptimeSeconds int64                `json:"uptimeSeconds"`
	TickRate      int                  `json:"tickRate"`
	Sessions      int                  `json:"sessions"`
	Zones         []ZoneDiagnostics    `json:"zones"`
	Journal       bool                 `json:"journal"`
	RouterStats   *logging.RouterStats `json:"router,omitempty"`
}

// ZoneDiagnostics is one zone's live entity census.
type ZoneDiagnostics struct {
	ID           string `json:"id"`
	Tick         uint64 `json:"t"`
	Characters   int    `json:"characters"`
	Enemies      int    `json:"enemies"`
	DroppedItems int    `json:"droppedItems"`
	QueuedCmds   int    `json:"queuedCommands"`
}

// Diagnostics captures a point-in-time view of every zone.
func (h *Hub) Diagnostics() DiagnosticsSnapshot {
	h.mu.Lock()
	sessionCount := len(h.sessions)
	runtimes := make([]*zoneRuntime, 0, len(h.runtimes))
	for _, rt := range h.runtimes {
		runtimes = append(runtimes, rt)
	}
	h.mu.Unlock()

	snap := DiagnosticsSnapshot{
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		TickRate:      h.cfg.TickRate,
		Sessions:      sessionCount,
		Journal:       h.recorder != nil,
	}
	if h.router != nil {
		stats := h.router.Stats()
		snap.RouterStats = &stats
	}
	for _, rt := range runtimes {
		rt.mu.Lock()
		snap.Zones = append(snap.Zones, ZoneDiagnostics{
			ID:           rt.zone.ID(),
			Tick:         rt.tick,
			Characters:   len(rt.zone.characters),
			Enemies:      len(rt.zone.enemies),
			DroppedItems: len(rt.zone.droppedItems),
			QueuedCmds:   len(rt.pending),
		})
		rt.mu.Unlock()
	}
	return snap
}

// Close detaches every session and persists their characters.
func (h *Hub) Close() {
	h.mu.Lock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	h.mu.Unlock()
	for _, id := range ids {
		h.Leave(id, "shutdown")
	}
}
