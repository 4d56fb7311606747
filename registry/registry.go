package registry

import (
	"errors"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"match-relay/applog"
	"match-relay/protocol"
	"match-relay/session"
	"sync"
	"time"
)

// ErrMatchFull is returned when a third distinct user attempts to join a
// match that already has two different occupants. The rejected connection
// must be closed without touching the registry.
var ErrMatchFull = errors.New("match already has two occupants")

// Registry owns every live match in the process. All compound operations
// (role assignment, release, ready flags, state snapshots, teardown) run
// under one mutex so no connection goroutine ever observes a half-applied
// mutation.
type Registry struct {
	mu      sync.Mutex
	matches map[string]*match
	clock   clock.Clock
}

func New(clk clock.Clock) *Registry {
	return &Registry{
		matches: make(map[string]*match),
		clock:   clk,
	}
}

// AssignResult describes the outcome of a successful role assignment.
type AssignResult struct {
	Connection   *Connection
	Role         Role
	Reconnecting bool
	// OpponentName is set when the other slot is occupied at assign time.
	OpponentName string
	// Peer is the other occupant at assign time, if any. Used to notify the
	// host when a guest (re)joins.
	Peer *Connection
	// GameState is the inflated last snapshot, present only on reconnect.
	GameState []byte
}

// Assign places a new transport into the match identified by matchKey,
// creating the entry lazily. The first user becomes host; a second distinct
// user becomes guest; a returning user gets their previous role back and
// their stale transport is force-closed (reconnection supersession).
func (r *Registry) Assign(matchKey string, transport Transport, identity session.Identity) (*AssignResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		m = newMatch(matchKey)
		r.matches[matchKey] = m
	}

	var role Role
	switch {
	case m.host == nil || m.host.identity.UserId == identity.UserId:
		role = RoleHost
	case m.guest == nil || m.guest.identity.UserId == identity.UserId:
		role = RoleGuest
	default:
		// Two different occupants already present. The entry is left
		// untouched; an entry created just above cannot reach this branch.
		return nil, ErrMatchFull
	}

	stale := m.occupant(role)
	reconnecting := stale != nil

	conn := newConnection(transport, identity, role, r.clock.Now())

	if stale != nil {
		applog.Info("Superseding stale connection for reconnecting user",
			zap.String("matchKey", matchKey),
			zap.String("role", string(role)),
			zap.Uint("userId", identity.UserId),
			zap.String("staleConnectionId", stale.id),
		)
		stale.Close()
	}

	m.setOccupant(role, conn)

	if role == RoleGuest && m.state == StateAwaitingPeer {
		m.transition(StateReadyPending)
	}

	result := &AssignResult{
		Connection:   conn,
		Role:         role,
		Reconnecting: reconnecting,
		Peer:         m.peerOf(role),
	}
	if result.Peer != nil {
		result.OpponentName = result.Peer.identity.DisplayName
	}

	if reconnecting && m.lastGameState != nil {
		state, err := decompressBlob(m.lastGameState)
		if err != nil {
			applog.Error("Failed to inflate stored game state for replay",
				zap.String("matchKey", matchKey),
				zap.Error(err),
			)
		} else {
			result.GameState = state
		}
	}

	return result, nil
}

// Release removes the occupant of (matchKey, role) only if it is still the
// connection identified by connId, then garbage-collects the entry when
// both slots are empty. Reports whether the connection was removed.
func (r *Registry) Release(matchKey string, role Role, connId string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked(matchKey, role, connId)
}

func (r *Registry) releaseLocked(matchKey string, role Role, connId string) bool {
	m, exists := r.matches[matchKey]
	if !exists {
		return false
	}

	occupant := m.occupant(role)
	if occupant == nil || occupant.id != connId {
		// A newer connection already superseded this one.
		return false
	}

	m.setOccupant(role, nil)
	if m.empty() {
		delete(r.matches, matchKey)
	}
	return true
}

// Disconnect is the single close path for a registered connection. If the
// connection is still the registered occupant it is released, the remaining
// side (if any) is told the opponent disconnected, and the match is torn
// down. A superseded or already-released connection is a no-op.
func (r *Registry) Disconnect(matchKey string, role Role, connId string) {
	r.mu.Lock()

	m, exists := r.matches[matchKey]
	if !exists {
		r.mu.Unlock()
		return
	}

	occupant := m.occupant(role)
	if occupant == nil || occupant.id != connId {
		r.mu.Unlock()
		return
	}

	r.releaseLocked(matchKey, role, connId)

	// releaseLocked deleted the entry if this was the last occupant.
	if _, stillThere := r.matches[matchKey]; !stillThere {
		r.mu.Unlock()
		applog.Debug("Removed empty match",
			zap.String("matchKey", matchKey),
		)
		return
	}

	peer := m.peerOf(role)
	departedName := occupant.identity.DisplayName

	// A match never continues with a single side present.
	doomed := r.teardownLocked(matchKey, protocol.CleanupReasonOpponentLeft)
	r.mu.Unlock()

	if peer != nil {
		applog.Info("Notifying remaining participant about disconnect",
			zap.String("matchKey", matchKey),
			zap.Uint("remainingUserId", peer.identity.UserId),
		)
		peer.TrySendMessage(protocol.NewOpponentDisconnectedMessage(departedName))
	}
	sendCleanup(doomed, protocol.CleanupReasonOpponentLeft)
}

// Teardown force-closes whichever occupants are still live after sending
// them one cleanup signal, then deletes the entry. Idempotent: tearing down
// an absent match is a no-op.
func (r *Registry) Teardown(matchKey string, reason string) {
	r.mu.Lock()
	doomed := r.teardownLocked(matchKey, reason)
	r.mu.Unlock()
	sendCleanup(doomed, reason)
}

// teardownLocked unregisters the match and returns the occupants that still
// owe a cleanup signal. It never writes to a transport: a stalled peer's
// write deadline must not block registry operations on unrelated matches,
// so the caller delivers the signal via sendCleanup after unlocking.
func (r *Registry) teardownLocked(matchKey string, reason string) []*Connection {
	m, exists := r.matches[matchKey]
	if !exists {
		return nil
	}

	applog.Info("Tearing down match",
		zap.String("matchKey", matchKey),
		zap.String("reason", reason),
		zap.String("state", m.state.String()),
	)

	m.transition(StateConcluded)

	var doomed []*Connection
	for _, conn := range []*Connection{m.host, m.guest} {
		if conn != nil {
			doomed = append(doomed, conn)
		}
	}

	m.host = nil
	m.guest = nil
	delete(r.matches, matchKey)
	return doomed
}

func sendCleanup(conns []*Connection, reason string) {
	for _, conn := range conns {
		conn.TrySendMessage(protocol.NewCleanupMessage(reason))
		conn.Close()
	}
}

// Conclude tears the match down because a relayed payload carried the
// terminal game flag. Unlike Disconnect there is no opponent-disconnected
// signal; the game ended normally. Only an in-progress match concludes.
func (r *Registry) Conclude(matchKey string) {
	r.mu.Lock()

	m, exists := r.matches[matchKey]
	if !exists || m.state != StateInProgress {
		r.mu.Unlock()
		return
	}

	doomed := r.teardownLocked(matchKey, protocol.CleanupReasonGameOver)
	r.mu.Unlock()
	sendCleanup(doomed, protocol.CleanupReasonGameOver)
}

// ReadyResult is a snapshot of the handshake after a ready signal.
type ReadyResult struct {
	HostReady  bool
	GuestReady bool
	// Started is true when both flags are set; the caller must attempt the
	// start signal on both sides even if one send fails.
	Started bool
	Host    *Connection
	Guest   *Connection
}

// SetReady marks the connection's ready flag and reports the resulting
// handshake state. When both sides are ready the match moves to in
// progress. Returns nil if the connection is no longer registered.
func (r *Registry) SetReady(matchKey string, role Role, connId string) *ReadyResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return nil
	}

	occupant := m.occupant(role)
	if occupant == nil || occupant.id != connId {
		return nil
	}

	occupant.ready = true

	result := &ReadyResult{
		HostReady:  m.hostReady(),
		GuestReady: m.guestReady(),
		Host:       m.host,
		Guest:      m.guest,
	}

	if result.HostReady && result.GuestReady {
		result.Started = m.state == StateInProgress || m.transition(StateInProgress)
	}

	return result
}

// Touch refreshes the liveness timestamp of a connection after a pong.
func (r *Registry) Touch(matchKey string, role Role, connId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return
	}

	occupant := m.occupant(role)
	if occupant == nil || occupant.id != connId {
		return
	}

	occupant.lastPing = r.clock.Now()
}

// LastPing reports the liveness timestamp of the occupant of (matchKey,
// role), if one is registered.
func (r *Registry) LastPing(matchKey string, role Role) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return time.Time{}, false
	}

	occupant := m.occupant(role)
	if occupant == nil {
		return time.Time{}, false
	}
	return occupant.lastPing, true
}

// StoreGameState replaces the match's last snapshot with the given payload.
// No other registry field changes.
func (r *Registry) StoreGameState(matchKey string, state []byte) {
	if len(state) == 0 {
		return
	}

	compressed, err := compressBlob(state)
	if err != nil {
		applog.Error("Failed to compress game state snapshot",
			zap.String("matchKey", matchKey),
			zap.Error(err),
		)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return
	}
	m.lastGameState = compressed
}

// Peer returns the other occupant of the match, or nil when the slot is
// empty. The returned connection may be closed concurrently; senders rely
// on TrySend failing harmlessly in that case.
func (r *Registry) Peer(matchKey string, role Role) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return nil
	}
	return m.peerOf(role)
}

// MatchState reports the lifecycle state of a match, if it exists.
func (r *Registry) MatchState(matchKey string) (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, exists := r.matches[matchKey]
	if !exists {
		return StateConcluded, false
	}
	return m.state, true
}

// ActiveMatches reports how many live match entries the registry holds.
func (r *Registry) ActiveMatches() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}
