// Package net exposes the hub over HTTP: a websocket endpoint for game
// sessions plus health and diagnostics endpoints.
package net

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	server "emberwake/server"
	"emberwake/server/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	joinDeadline   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server wires the hub into an http.Handler.
type Server struct {
	hub       *server.Hub
	auth      server.Authenticator
	publisher logging.Publisher
}

// NewServer builds the HTTP surface over a hub.
func NewServer(hub *server.Hub, auth server.Authenticator, publisher logging.Publisher) *Server {
	if auth == nil {
		auth = server.AllowAllAuthenticator{}
	}
	if publisher == nil {
		publisher = logging.NopPublisher{}
	}
	return &Server{hub: hub, auth: auth, publisher: publisher}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/diagnostics", s.handleDiagnostics)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.hub.Diagnostics())
}

// clientMessage is the flat envelope every inbound websocket message uses.
// Type selects which fields matter.
type clientMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq,omitempty"`

	Token  string `json:"token,omitempty"`
	ZoneID string `json:"zoneId,omitempty"`

	Target          *pointPayload `json:"target,omitempty"`
	TargetID        string        `json:"targetId,omitempty"`
	ItemID          string        `json:"itemId,omitempty"`
	InventoryItemID string        `json:"inventoryItemId,omitempty"`
	CharacterID     string        `json:"characterId,omitempty"`
	Slot            string        `json:"slot,omitempty"`

	FromIndex      int    `json:"fromIndex,omitempty"`
	ToIndex        int    `json:"toIndex,omitempty"`
	InventoryIndex int    `json:"inventoryIndex,omitempty"`
	SortType       string `json:"sortType,omitempty"`
	Message        string `json:"message,omitempty"`

	ClientTime     int64 `json:"clientTime,omitempty"`
	LastServerTime int64 `json:"lastServerTime,omitempty"`
}

type pointPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn.SetReadLimit(maxMessageSize)

	session, err := s.join(r.Context(), conn)
	if err != nil {
		writeError(conn, "join_failed", err.Error())
		conn.Close()
		return
	}

	go s.writeLoop(conn, session)
	s.readLoop(conn, session)
}

// join performs the enterZone handshake: the first message authenticates and
// places the character, and the zone snapshot goes straight back.
func (s *Server) join(ctx context.Context, conn *websocket.Conn) (*server.Session, error) {
	conn.SetReadDeadline(time.Now().Add(joinDeadline))
	var msg clientMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	if msg.Type != "enterZone" {
		return nil, server.ErrUnauthenticated
	}
	principal, err := s.auth.Authenticate(ctx, msg.Token)
	if err != nil {
		return nil, err
	}
	session, snapshot, err := s.hub.Join(ctx, principal, msg.ZoneID)
	if err != nil {
		return nil, err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, snapshot); err != nil {
		s.hub.Leave(session.ID, "handshake_write_failed")
		return nil, err
	}
	return session, nil
}

// writeLoop drains the session's outbound stream onto the socket and keeps
// the connection alive with pings.
func (s *Server) writeLoop(conn *websocket.Conn, session *server.Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-session.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case payload := <-session.Outbound():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.hub.Leave(session.ID, "write_failed")
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.hub.Leave(session.ID, "ping_failed")
				return
			}
		}
	}
}

// readLoop translates inbound messages into hub commands until the socket
// closes.
func (s *Server) readLoop(conn *websocket.Conn, session *server.Session) {
	defer func() {
		s.hub.Leave(session.ID, "socket_closed")
		conn.Close()
	}()
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))
		if msg.Type == "heartbeat" {
			s.handleHeartbeat(conn, session, msg)
			continue
		}
		if msg.CharacterID != "" && msg.CharacterID != session.CharacterID {
			// Commands only ever apply to the session's own character.
			continue
		}
		cmd, ok := commandFrom(msg)
		if !ok {
			writeError(conn, "unknown_command", msg.Type)
			continue
		}
		if err := s.hub.EnqueueCommand(session.ID, cmd); err != nil {
			return
		}
	}
}

// handleHeartbeat answers directly off the read loop and records the beat on
// the tick via a staged command.
func (s *Server) handleHeartbeat(conn *websocket.Conn, session *server.Session, msg clientMessage) {
	now := time.Now()
	var rtt time.Duration
	if msg.LastServerTime > 0 {
		rtt = now.Sub(time.UnixMilli(msg.LastServerTime))
		if rtt < 0 {
			rtt = 0
		}
	}
	s.hub.EnqueueCommand(session.ID, server.Command{
		Type: server.CommandHeartbeat,
		Heartbeat: &server.HeartbeatCommand{
			ReceivedAt: now,
			ClientSent: msg.ClientTime,
			RTT:        rtt,
		},
	})
	payload, err := server.HeartbeatReply(now, msg.ClientTime, rtt)
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, payload)
}

// commandFrom maps a wire message onto a simulation command.
func commandFrom(msg clientMessage) (server.Command, bool) {
	cmd := server.Command{Seq: msg.Seq}
	switch msg.Type {
	case "moveCommand":
		if msg.Target == nil {
			return server.Command{}, false
		}
		cmd.Type = server.CommandMove
		cmd.Move = &server.MoveCommand{TargetX: msg.Target.X, TargetY: msg.Target.Y}
	case "attackCommand":
		cmd.Type = server.CommandAttack
		cmd.Attack = &server.AttackCommand{TargetID: msg.TargetID}
	case "pickupItemCommand":
		cmd.Type = server.CommandPickupItem
		cmd.Pickup = &server.PickupCommand{ItemID: msg.ItemID}
	case "equipItemCommand":
		cmd.Type = server.CommandEquipItem
		cmd.Equip = &server.EquipCommand{InventoryItemID: msg.InventoryItemID}
	case "unequipItem":
		cmd.Type = server.CommandUnequipItem
		cmd.Unequip = &server.UnequipCommand{Slot: msg.Slot}
	case "moveInventoryItem":
		cmd.Type = server.CommandMoveInventory
		cmd.MoveItem = &server.MoveItemCommand{FromIndex: msg.FromIndex, ToIndex: msg.ToIndex}
	case "dropInventoryItem":
		cmd.Type = server.CommandDropInventory
		cmd.DropItem = &server.DropItemCommand{InventoryIndex: msg.InventoryIndex}
	case "sortInventoryCommand":
		cmd.Type = server.CommandSortInventory
		cmd.Sort = &server.SortCommand{SortType: msg.SortType}
	case "requestInventory":
		cmd.Type = server.CommandRequestInventory
	case "requestEquipment":
		cmd.Type = server.CommandRequestEquipment
	case "sendMessage":
		cmd.Type = server.CommandChat
		cmd.Chat = &server.ChatCommand{Message: msg.Message}
	default:
		return server.Command{}, false
	}
	return cmd, true
}

func writeError(conn *websocket.Conn, code, message string) {
	payload, err := json.Marshal(map[string]any{
		"ver":     server.ProtocolVersion,
		"type":    "error",
		"code":    code,
		"message": message,
	})
	if err != nil {
		return
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.TextMessage, payload)
}
