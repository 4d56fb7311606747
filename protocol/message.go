package protocol

import (
	"encoding/json"
	"fmt"
)

type MessageKind = string

const (
	// Sent by the server.
	KindAssign               MessageKind = "assign"
	KindOpponent             MessageKind = "opponent"
	KindReadyState           MessageKind = "ready_state"
	KindGameStart            MessageKind = "game_start"
	KindOpponentDisconnected MessageKind = "opponent_disconnected"
	KindCleanup              MessageKind = "cleanup"
	KindPing                 MessageKind = "ping"

	// Sent by a client.
	KindPong      MessageKind = "pong"
	KindReady     MessageKind = "ready"
	KindGameState MessageKind = "gameState"
	KindLeave     MessageKind = "leave"
)

// Cleanup reasons reported to a still-live side of a torn down match.
const (
	CleanupReasonOpponentLeft = "opponent_left"
	CleanupReasonGameOver     = "game_over"
)

// ClientMessage is one inbound frame after kind dispatch. Control messages
// parse into concrete types; everything else stays a RawMessage and is
// relayed verbatim.
type ClientMessage interface {
	GetKind() MessageKind
}

type messageBuilder = func(data []byte) (ClientMessage, error)

var messagesRegistry = map[MessageKind]messageBuilder{
	KindPong:      buildPongMessage,
	KindReady:     buildReadyMessage,
	KindLeave:     buildLeaveMessage,
	KindGameState: buildGameStateMessage,
}

type PongMessage struct{}

func (m *PongMessage) GetKind() MessageKind { return KindPong }

func buildPongMessage([]byte) (ClientMessage, error) {
	return &PongMessage{}, nil
}

type ReadyMessage struct{}

func (m *ReadyMessage) GetKind() MessageKind { return KindReady }

func buildReadyMessage([]byte) (ClientMessage, error) {
	return &ReadyMessage{}, nil
}

type LeaveMessage struct{}

func (m *LeaveMessage) GetKind() MessageKind { return KindLeave }

func buildLeaveMessage([]byte) (ClientMessage, error) {
	return &LeaveMessage{}, nil
}

// GameStateMessage carries the authoritative state snapshot from the host.
// The snapshot itself is opaque to the relay except for the terminal flag.
type GameStateMessage struct {
	State json.RawMessage `json:"state"`
}

func (m *GameStateMessage) GetKind() MessageKind { return KindGameState }

func buildGameStateMessage(data []byte) (ClientMessage, error) {
	msg := &GameStateMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to decode gameState message: %w", err)
	}
	return msg, nil
}

// GameOver reports whether the snapshot carries the terminal game flag.
// Validation of the winner belongs to the persistence layer, not here.
func (m *GameStateMessage) GameOver() bool {
	if len(m.State) == 0 {
		return false
	}

	var probe struct {
		GameOver bool `json:"gameOver"`
	}
	if err := json.Unmarshal(m.State, &probe); err != nil {
		return false
	}
	return probe.GameOver
}

// RawMessage is any inbound frame whose kind the relay does not consume
// itself. Data is the original frame, kept byte-for-byte for forwarding.
type RawMessage struct {
	Kind MessageKind
	Data []byte
}

func (m *RawMessage) GetKind() MessageKind { return m.Kind }

// ParseClientMessage dispatches an inbound frame by its "type" field.
// Unknown kinds — including valid JSON that is not an object at all — are
// returned as RawMessage for verbatim forwarding; only frames that fail to
// parse as JSON are an error and get dropped by the caller.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type MessageKind `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		if json.Valid(data) {
			return &RawMessage{Data: data}, nil
		}
		return nil, fmt.Errorf("failed to decode message envelope: %w", err)
	}

	builder, exists := messagesRegistry[envelope.Type]
	if !exists {
		return &RawMessage{Kind: envelope.Type, Data: data}, nil
	}

	return builder(data)
}
