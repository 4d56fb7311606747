package protocol

import "encoding/json"

// Server-to-client signals. Each marshals to a flat JSON object with a
// "type" discriminator, matching what the game client expects.

type AssignMessage struct {
	Type         MessageKind     `json:"type"`
	Host         bool            `json:"host"`
	OpponentName string          `json:"opponentName,omitempty"`
	Reconnecting bool            `json:"reconnecting"`
	GameState    json.RawMessage `json:"gameState,omitempty"`
}

func NewAssignMessage(host bool, opponentName string, reconnecting bool, gameState json.RawMessage) *AssignMessage {
	return &AssignMessage{
		Type:         KindAssign,
		Host:         host,
		OpponentName: opponentName,
		Reconnecting: reconnecting,
		GameState:    gameState,
	}
}

type OpponentMessage struct {
	Type         MessageKind `json:"type"`
	Name         string      `json:"name"`
	Reconnecting bool        `json:"reconnecting"`
}

func NewOpponentMessage(name string, reconnecting bool) *OpponentMessage {
	return &OpponentMessage{Type: KindOpponent, Name: name, Reconnecting: reconnecting}
}

type ReadyStateMessage struct {
	Type       MessageKind `json:"type"`
	HostReady  bool        `json:"hostReady"`
	GuestReady bool        `json:"guestReady"`
}

func NewReadyStateMessage(hostReady, guestReady bool) *ReadyStateMessage {
	return &ReadyStateMessage{Type: KindReadyState, HostReady: hostReady, GuestReady: guestReady}
}

type GameStartMessage struct {
	Type MessageKind `json:"type"`
}

func NewGameStartMessage() *GameStartMessage {
	return &GameStartMessage{Type: KindGameStart}
}

type OpponentDisconnectedMessage struct {
	Type MessageKind `json:"type"`
	Name string      `json:"name"`
}

func NewOpponentDisconnectedMessage(name string) *OpponentDisconnectedMessage {
	return &OpponentDisconnectedMessage{Type: KindOpponentDisconnected, Name: name}
}

type CleanupMessage struct {
	Type   MessageKind `json:"type"`
	Reason string      `json:"reason"`
}

func NewCleanupMessage(reason string) *CleanupMessage {
	return &CleanupMessage{Type: KindCleanup, Reason: reason}
}

type PingMessage struct {
	Type MessageKind `json:"type"`
}

func NewPingMessage() *PingMessage {
	return &PingMessage{Type: KindPing}
}

type PongMessageOut struct {
	Type MessageKind `json:"type"`
}

func NewPongMessage() *PongMessageOut {
	return &PongMessageOut{Type: KindPong}
}

// Encode marshals a server message for the wire. The message types above
// cannot fail to marshal, so errors collapse to a nil frame the transport
// layer treats as a failed send.
func Encode(msg interface{}) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil
	}
	return data
}
