package registry

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"match-relay/applog"
	"match-relay/protocol"
	"match-relay/session"
	"time"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

// Connection binds a transport to exactly one (match, role, user) triple.
// The id distinguishes this transport from a superseded one for the same
// user, so a slow-closing old connection cannot clobber its replacement.
//
// Mutable fields (ready, lastPing) are guarded by the owning Registry's
// mutex while the connection is registered.
type Connection struct {
	id        string
	transport Transport
	identity  session.Identity
	role      Role
	ready     bool
	lastPing  time.Time
}

func newConnection(transport Transport, identity session.Identity, role Role, now time.Time) *Connection {
	return &Connection{
		id:        uuid.NewString(),
		transport: transport,
		identity:  identity,
		role:      role,
		lastPing:  now,
	}
}

func (c *Connection) Id() string {
	return c.id
}

func (c *Connection) Identity() session.Identity {
	return c.identity
}

func (c *Connection) Role() Role {
	return c.role
}

// TrySend writes a frame to the connection, treating any failure as "peer
// unreachable". Send failures are logged and swallowed; they must never
// propagate into another connection's handling logic.
func (c *Connection) TrySend(data []byte) bool {
	if c == nil || len(data) == 0 {
		return false
	}

	if err := c.transport.WriteMessage(data); err != nil {
		applog.Debug("Dropped message to unreachable connection",
			zap.String("connectionId", c.id),
			zap.Uint("userId", c.identity.UserId),
			zap.Error(err),
		)
		return false
	}
	return true
}

// TrySendMessage marshals and sends a server signal, fire-and-forget.
func (c *Connection) TrySendMessage(msg interface{}) bool {
	return c.TrySend(protocol.Encode(msg))
}

// Close force-closes the underlying transport, best-effort.
func (c *Connection) Close() {
	if c == nil {
		return
	}
	_ = c.transport.Close()
}
