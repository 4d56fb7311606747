package registry

import (
	"go.uber.org/zap"
	"match-relay/applog"
)

// match is one registry entry. All access goes through the Registry mutex.
type match struct {
	key           string
	state         State
	host          *Connection
	guest         *Connection
	lastGameState []byte // flate-compressed snapshot for reconnect replay
}

func newMatch(key string) *match {
	return &match{
		key:   key,
		state: StateAwaitingPeer,
	}
}

// transition moves the match to a new lifecycle state, refusing edges the
// state machine does not define.
func (m *match) transition(to State) bool {
	if m.state == to {
		return true
	}
	if !m.state.canTransitionTo(to) {
		applog.Warn("Refusing illegal match state transition",
			zap.String("matchKey", m.key),
			zap.String("from", m.state.String()),
			zap.String("to", to.String()),
		)
		return false
	}
	m.state = to
	return true
}

func (m *match) occupant(role Role) *Connection {
	if role == RoleHost {
		return m.host
	}
	return m.guest
}

func (m *match) setOccupant(role Role, conn *Connection) {
	if role == RoleHost {
		m.host = conn
	} else {
		m.guest = conn
	}
}

func (m *match) peerOf(role Role) *Connection {
	if role == RoleHost {
		return m.guest
	}
	return m.host
}

func (m *match) empty() bool {
	return m.host == nil && m.guest == nil
}

func (m *match) hostReady() bool {
	return m.host != nil && m.host.ready
}

func (m *match) guestReady() bool {
	return m.guest != nil && m.guest.ready
}
