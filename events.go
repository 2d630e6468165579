package server

// tickEvents accumulates everything a single Step produces: the coalesced
// entity delta batch, ordered lifecycle broadcasts, and private per-session
// messages. It is reset at the top of every tick and drained by the hub
// afterwards, so it needs no locking.
type tickEvents struct {
	tick       uint64
	updates    []EntityUpdate
	updateIdx  map[string]int
	actions    []combatActionEntry
	broadcasts []any
	private    map[string][]any
}

func newTickEvents() *tickEvents {
	return &tickEvents{
		updateIdx: make(map[string]int),
		private:   make(map[string][]any),
	}
}

func (e *tickEvents) reset(tick uint64) {
	e.tick = tick
	e.updates = e.updates[:0]
	e.actions = e.actions[:0]
	e.broadcasts = e.broadcasts[:0]
	clear(e.updateIdx)
	clear(e.private)
}

// addUpdate merges an entity delta into the batch. At most one entry per
// entity per tick; later fields overwrite earlier ones.
func (e *tickEvents) addUpdate(update EntityUpdate) {
	if idx, ok := e.updateIdx[update.ID]; ok {
		existing := &e.updates[idx]
		if update.X != nil {
			existing.X = update.X
			existing.Y = update.Y
		}
		if update.Health != nil {
			existing.Health = update.Health
		}
		if update.State != nil {
			existing.State = update.State
		}
		return
	}
	e.updateIdx[update.ID] = len(e.updates)
	e.updates = append(e.updates, update)
}

// addAction appends a resolved attack to this tick's combat batch.
func (e *tickEvents) addAction(entry combatActionEntry) {
	e.actions = append(e.actions, entry)
}

// flushActions turns the accumulated combat batch into a single broadcast.
func (e *tickEvents) flushActions() {
	if len(e.actions) == 0 {
		return
	}
	e.broadcast(combatActionMessage{
		Ver:     ProtocolVersion,
		Type:    "combatAction",
		Tick:    e.tick,
		Actions: append([]combatActionEntry(nil), e.actions...),
	})
	e.actions = e.actions[:0]
}

func (e *tickEvents) broadcast(msg any) {
	e.broadcasts = append(e.broadcasts, msg)
}

func (e *tickEvents) sendTo(sessionID string, msg any) {
	if sessionID == "" {
		return
	}
	e.private[sessionID] = append(e.private[sessionID], msg)
}

func (e *tickEvents) ack(cmd Command) {
	if cmd.SessionID == "" || cmd.Seq == 0 {
		return
	}
	e.sendTo(cmd.SessionID, commandAckMessage{
		Ver:  ProtocolVersion,
		Type: "commandAck",
		Seq:  cmd.Seq,
		Tick: e.tick,
	})
}

func (e *tickEvents) reject(cmd Command, reason, detail string) {
	if cmd.SessionID == "" || cmd.Seq == 0 {
		return
	}
	e.sendTo(cmd.SessionID, commandRejectMessage{
		Ver:    ProtocolVersion,
		Type:   "commandReject",
		Seq:    cmd.Seq,
		Tick:   e.tick,
		Reason: reason,
		Detail: detail,
	})
}

// TickOutput is what one Step hands to the broadcaster. Everything is copied
// out of the collector, so resetting for the next tick cannot disturb a batch
// already handed off.
type TickOutput struct {
	Tick       uint64
	Updates    []EntityUpdate
	Broadcasts []any
	Private    map[string][]any
}

func (e *tickEvents) output() *TickOutput {
	out := &TickOutput{
		Tick:       e.tick,
		Updates:    append([]EntityUpdate(nil), e.updates...),
		Broadcasts: append([]any(nil), e.broadcasts...),
		Private:    make(map[string][]any, len(e.private)),
	}
	for sessionID, msgs := range e.private {
		out.Private[sessionID] = append([]any(nil), msgs...)
	}
	return out
}
