package protocol

import (
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParseClientMessageDispatchesControlKinds(t *testing.T) {
	for _, tc := range []struct {
		name     string
		frame    string
		expected ClientMessage
	}{
		{"pong", `{"type":"pong"}`, &PongMessage{}},
		{"ready", `{"type":"ready"}`, &ReadyMessage{}},
		{"leave", `{"type":"leave"}`, &LeaveMessage{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.frame))
			require.NoError(t, err)
			assert.IsType(t, tc.expected, msg)
		})
	}
}

func TestParseClientMessageGameState(t *testing.T) {
	frame := []byte(`{"type":"gameState","state":{"ball":{"x":1},"gameOver":false}}`)

	msg, err := ParseClientMessage(frame)
	require.NoError(t, err)

	gs, ok := msg.(*GameStateMessage)
	require.True(t, ok)
	assert.JSONEq(t, `{"ball":{"x":1},"gameOver":false}`, string(gs.State))
	assert.False(t, gs.GameOver())
}

func TestGameStateGameOverProbe(t *testing.T) {
	gs := &GameStateMessage{State: []byte(`{"scores":[11,3],"gameOver":true}`)}
	assert.True(t, gs.GameOver())

	gs = &GameStateMessage{State: []byte(`{"scores":[1,0]}`)}
	assert.False(t, gs.GameOver())

	gs = &GameStateMessage{}
	assert.False(t, gs.GameOver())

	// A malformed snapshot never reads as terminal.
	gs = &GameStateMessage{State: []byte(`"not an object"`)}
	assert.False(t, gs.GameOver())
}

func TestParseClientMessageKeepsUnknownKindsRaw(t *testing.T) {
	frame := []byte(`{"type":"paddleMove","y":12.5,"padding":"é"}`)

	msg, err := ParseClientMessage(frame)
	require.NoError(t, err)

	raw, ok := msg.(*RawMessage)
	require.True(t, ok)
	assert.Equal(t, "paddleMove", raw.GetKind())
	assert.Equal(t, frame, raw.Data, "raw frames must be preserved byte-for-byte")
}

func TestParseClientMessageKeepsNonObjectJsonRaw(t *testing.T) {
	// Any JSON-parseable frame is relayable, not just objects with a type.
	for _, frame := range []string{`[1,2,3]`, `"hi"`, `42`} {
		msg, err := ParseClientMessage([]byte(frame))
		require.NoError(t, err, frame)

		raw, ok := msg.(*RawMessage)
		require.True(t, ok, frame)
		assert.Equal(t, []byte(frame), raw.Data)
	}
}

func TestParseClientMessageRejectsNonJsonFrames(t *testing.T) {
	_, err := ParseClientMessage([]byte("not json at all"))
	assert.Error(t, err)
}

func TestEncodeAssignOmitsEmptyOptionalFields(t *testing.T) {
	data := Encode(NewAssignMessage(true, "", false, nil))
	assert.JSONEq(t, `{"type":"assign","host":true,"reconnecting":false}`, string(data))

	data = Encode(NewAssignMessage(false, "alice", true, []byte(`{"scores":[1,2]}`)))
	assert.JSONEq(t,
		`{"type":"assign","host":false,"opponentName":"alice","reconnecting":true,"gameState":{"scores":[1,2]}}`,
		string(data))
}

func TestEncodeCleanupCarriesReason(t *testing.T) {
	data := Encode(NewCleanupMessage(CleanupReasonOpponentLeft))
	assert.JSONEq(t, `{"type":"cleanup","reason":"opponent_left"}`, string(data))
}
