package relay

import (
	"context"
	"errors"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"match-relay/applog"
	"match-relay/protocol"
	"match-relay/registry"
	"match-relay/session"
	"sync"
	"time"
)

// Engine runs the message pump for every relay connection. Each connection
// gets one pump goroutine reading inbound frames and one keepalive
// goroutine; everything the pump touches in the registry happens under the
// registry's own mutex.
type Engine struct {
	registry     *registry.Registry
	pingInterval time.Duration
	clock        clock.Clock
}

func NewEngine(reg *registry.Registry, pingInterval time.Duration, clk clock.Clock) *Engine {
	return &Engine{
		registry:     reg,
		pingInterval: pingInterval,
		clock:        clk,
	}
}

// HandleConnection drives one authenticated transport for its whole life:
// role assignment, the assign/opponent signals, the pump loop, and the
// exactly-once disconnect transition. It blocks until the transport closes.
func (e *Engine) HandleConnection(ctx context.Context, transport registry.Transport, matchKey string, identity session.Identity) {
	result, err := e.registry.Assign(matchKey, transport, identity)
	if err != nil {
		if errors.Is(err, registry.ErrMatchFull) {
			applog.Warn("Rejecting connection, match is full",
				zap.String("matchKey", matchKey),
				zap.Uint("userId", identity.UserId),
			)
		} else {
			applog.FromContext(ctx).Error("Role assignment failed", zap.Error(err))
		}
		_ = transport.Close()
		return
	}

	conn := result.Connection
	ctx = applog.AddContextFields(ctx,
		zap.String("matchKey", matchKey),
		zap.Uint("userId", identity.UserId),
		zap.String("role", string(result.Role)),
	)

	applog.FromContext(ctx).Info("Connection assigned",
		zap.Bool("reconnecting", result.Reconnecting),
		zap.String("opponentName", result.OpponentName),
	)

	conn.TrySendMessage(protocol.NewAssignMessage(
		result.Role == registry.RoleHost,
		result.OpponentName,
		result.Reconnecting,
		result.GameState,
	))

	// The host learns about a guest joining; a (re)joining host stays
	// silent towards the guest, mirroring the original handshake.
	if result.Role == registry.RoleGuest && result.Peer != nil {
		result.Peer.TrySendMessage(protocol.NewOpponentMessage(identity.DisplayName, result.Reconnecting))
	}

	pumpCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var disconnectOnce sync.Once
	disconnect := func() {
		disconnectOnce.Do(func() {
			cancel()
			_ = transport.Close()
			e.registry.Disconnect(matchKey, result.Role, conn.Id())
		})
	}
	defer disconnect()

	go e.keepalive(pumpCtx, conn)

	e.pump(pumpCtx, transport, conn, matchKey, result.Role)
}

// keepalive sends a ping every pingInterval until the connection context
// is done. Missed pings do not evict the connection; the transport's own
// timeout handles a dead peer.
func (e *Engine) keepalive(ctx context.Context, conn *registry.Connection) {
	ticker := e.clock.Ticker(e.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if !conn.TrySendMessage(protocol.NewPingMessage()) {
				applog.FromContext(ctx).Debug("Keepalive ping not delivered")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) pump(ctx context.Context, transport registry.Transport, conn *registry.Connection, matchKey string, role registry.Role) {
	for {
		data, err := transport.ReadMessage()
		if err != nil {
			applog.FromContext(ctx).Debug("Connection read loop ended", zap.Error(err))
			return
		}

		msg, err := protocol.ParseClientMessage(data)
		if err != nil {
			applog.FromContext(ctx).Error("Dropping unparsable inbound frame", zap.Error(err))
			continue
		}

		switch m := msg.(type) {
		case *protocol.PongMessage:
			e.registry.Touch(matchKey, role, conn.Id())

		case *protocol.ReadyMessage:
			e.handleReady(ctx, matchKey, role, conn.Id())

		case *protocol.LeaveMessage:
			applog.FromContext(ctx).Info("Participant left the match explicitly")
			return

		case *protocol.GameStateMessage:
			e.registry.StoreGameState(matchKey, m.State)
			e.forward(ctx, matchKey, role, data)
			if m.GameOver() {
				e.registry.Conclude(matchKey)
			}

		case *protocol.RawMessage:
			e.forward(ctx, matchKey, role, data)
		}
	}
}

// handleReady flips the sender's ready flag, broadcasts the handshake pair
// to both sides and, once both are ready, attempts the start signal on both
// sides regardless of individual send failures.
func (e *Engine) handleReady(ctx context.Context, matchKey string, role registry.Role, connId string) {
	state := e.registry.SetReady(matchKey, role, connId)
	if state == nil {
		return
	}

	applog.FromContext(ctx).Info("Participant ready",
		zap.Bool("hostReady", state.HostReady),
		zap.Bool("guestReady", state.GuestReady),
	)

	readyState := protocol.NewReadyStateMessage(state.HostReady, state.GuestReady)
	state.Host.TrySendMessage(readyState)
	state.Guest.TrySendMessage(readyState)

	if state.Started {
		applog.FromContext(ctx).Info("Both participants ready, starting game")
		start := protocol.NewGameStartMessage()
		if !state.Host.TrySendMessage(start) {
			applog.FromContext(ctx).Warn("Failed to deliver start signal to host")
		}
		if !state.Guest.TrySendMessage(start) {
			applog.FromContext(ctx).Warn("Failed to deliver start signal to guest")
		}
	}
}

// forward relays a frame verbatim to the other occupant of the match. An
// empty or unreachable peer slot drops the frame silently; the relay is
// best-effort, never a durable channel.
func (e *Engine) forward(ctx context.Context, matchKey string, role registry.Role, data []byte) {
	peer := e.registry.Peer(matchKey, role)
	if peer == nil {
		return
	}

	if !peer.TrySend(data) {
		applog.FromContext(ctx).Debug("Peer unreachable, relayed frame dropped")
	}
}
