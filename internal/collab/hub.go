// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package collab

import "sync"

// Session is one active connection for one tab of one user to one canvas.
type Session struct {
	ID       string // socket id
	UserID   int64
	Username string
	CanvasID int64
	TabID    string
	socket   Socket
}

// transaction tracks one user's open begin_transaction/commit/abort bundle.
// At most one may be active per (user, canvas), per §4.2.
type transaction struct {
	ID       string
	UserID   int64
	CanvasID int64
	Source   string
}

// Hub is the collaboration manager's shared mutable state: process-wide
// session, room, and transaction registries guarded by one mutex, per §9's
// "shared mutable session maps" guidance.
type Hub struct {
	mu sync.RWMutex

	socketSessions map[string]*Session       // socket id -> session
	userSockets    map[int64]map[string]bool // userID -> set of socket ids
	canvasRooms    map[int64]map[string]bool // canvasID -> set of socket ids
	activeTxns     map[txnKey]*transaction    // (userID, canvasID) -> open transaction
}

type txnKey struct {
	UserID   int64
	CanvasID int64
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{
		socketSessions: make(map[string]*Session),
		userSockets:    make(map[int64]map[string]bool),
		canvasRooms:    make(map[int64]map[string]bool),
		activeTxns:     make(map[txnKey]*transaction),
	}
}

// register adds a new socket with no canvas joined yet.
func (h *Hub) register(sessionID string, socket Socket) *Session {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess := &Session{ID: sessionID, socket: socket}
	h.socketSessions[sessionID] = sess
	return sess
}

// unregister removes a socket from every registry it was part of, returning
// whether the departing user's last session on that canvas just left (for
// user_left vs. tab_closed routing).
func (h *Hub) unregister(sessionID string) (sess *Session, wasLastSessionForUser bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.socketSessions[sessionID]
	if !ok {
		return nil, false
	}
	delete(h.socketSessions, sessionID)

	if sess.CanvasID != 0 {
		if room := h.canvasRooms[sess.CanvasID]; room != nil {
			delete(room, sessionID)
			if len(room) == 0 {
				delete(h.canvasRooms, sess.CanvasID)
			}
		}
	}

	if sockets := h.userSockets[sess.UserID]; sockets != nil {
		delete(sockets, sessionID)
		if len(sockets) == 0 {
			delete(h.userSockets, sess.UserID)
		}
	}

	if sess.CanvasID != 0 {
		wasLastSessionForUser = true
		for other := range h.userSockets[sess.UserID] {
			if os, ok := h.socketSessions[other]; ok && os.CanvasID == sess.CanvasID {
				wasLastSessionForUser = false
				break
			}
		}
	}

	// Active transactions are not closed here: a dropped socket leaves its
	// transaction bundle as an orphan rather than auto-aborting it, per §9.

	return sess, wasLastSessionForUser
}

// join attaches a session to a canvas room, reporting whether this is the
// user's first session on that canvas (for user_joined vs. a silent tab
// open) and the other sockets already present (for room reconciliation).
func (h *Hub) join(sessionID string, userID int64, username string, canvasID int64, tabID string) (isFirstSessionForUser bool, otherSocketIDs []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess := h.socketSessions[sessionID]
	sess.UserID = userID
	sess.Username = username
	sess.CanvasID = canvasID
	sess.TabID = tabID

	if h.userSockets[userID] == nil {
		h.userSockets[userID] = make(map[string]bool)
	}
	h.userSockets[userID][sessionID] = true

	if h.canvasRooms[canvasID] == nil {
		h.canvasRooms[canvasID] = make(map[string]bool)
	}
	isFirstSessionForUser = true
	for other := range h.canvasRooms[canvasID] {
		otherSocketIDs = append(otherSocketIDs, other)
		if os, ok := h.socketSessions[other]; ok && os.UserID == userID {
			isFirstSessionForUser = false
		}
	}
	h.canvasRooms[canvasID][sessionID] = true

	return isFirstSessionForUser, otherSocketIDs
}

// leave detaches a session from its canvas room without closing the socket
// (leave_canvas), reporting whether the user's last session on that canvas
// just left.
func (h *Hub) leave(sessionID string) (wasLastSessionOnCanvas bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sess, ok := h.socketSessions[sessionID]
	if !ok || sess.CanvasID == 0 {
		return false
	}
	canvasID := sess.CanvasID

	if room := h.canvasRooms[canvasID]; room != nil {
		delete(room, sessionID)
		if len(room) == 0 {
			delete(h.canvasRooms, canvasID)
		}
	}

	stillOnCanvas := false
	for other := range h.userSockets[sess.UserID] {
		if other == sessionID {
			continue
		}
		if os, ok := h.socketSessions[other]; ok && os.CanvasID == canvasID {
			stillOnCanvas = true
			break
		}
	}

	sess.CanvasID = 0
	sess.TabID = ""

	return !stillOnCanvas
}

// session looks up a session by socket id.
func (h *Hub) session(sessionID string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.socketSessions[sessionID]
	return sess, ok
}

// roomSockets returns every socket id currently joined to canvasID.
func (h *Hub) roomSockets(canvasID int64) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room := h.canvasRooms[canvasID]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	return ids
}

// userSocketIDs returns every socket id belonging to userID.
func (h *Hub) userSocketIDs(userID int64) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sockets := h.userSockets[userID]
	ids := make([]string, 0, len(sockets))
	for id := range sockets {
		ids = append(ids, id)
	}
	return ids
}

// activeUsers summarizes distinct users with at least one session on
// canvasID, for the active_users egress event and invariant 5.
type ActiveUser struct {
	UserID   int64
	Username string
	TabCount int
}

func (h *Hub) activeUsers(canvasID int64) []ActiveUser {
	h.mu.RLock()
	defer h.mu.RUnlock()

	counts := make(map[int64]*ActiveUser)
	for id := range h.canvasRooms[canvasID] {
		sess := h.socketSessions[id]
		if sess == nil {
			continue
		}
		u, ok := counts[sess.UserID]
		if !ok {
			u = &ActiveUser{UserID: sess.UserID, Username: sess.Username}
			counts[sess.UserID] = u
		}
		u.TabCount++
	}

	out := make([]ActiveUser, 0, len(counts))
	for _, u := range counts {
		out = append(out, *u)
	}
	return out
}

// beginTransaction records a new active transaction for (userID, canvasID),
// rejecting a second concurrent one per §4.2's "at most one active
// transaction per (user, canvas)".
func (h *Hub) beginTransaction(userID, canvasID int64, txnID, source string) (*transaction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := txnKey{UserID: userID, CanvasID: canvasID}
	if _, exists := h.activeTxns[key]; exists {
		return nil, false
	}
	tx := &transaction{ID: txnID, UserID: userID, CanvasID: canvasID, Source: source}
	h.activeTxns[key] = tx
	return tx, true
}

// endTransaction closes whatever transaction is active for (userID,
// canvasID), returning it if one existed.
func (h *Hub) endTransaction(userID, canvasID int64) (*transaction, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := txnKey{UserID: userID, CanvasID: canvasID}
	tx, ok := h.activeTxns[key]
	if ok {
		delete(h.activeTxns, key)
	}
	return tx, ok
}

// activeTransaction returns the currently open transaction id for (userID,
// canvasID), if any, for attaching transactionId to subsequent operations.
func (h *Hub) activeTransaction(userID, canvasID int64) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tx, ok := h.activeTxns[txnKey{UserID: userID, CanvasID: canvasID}]
	if !ok {
		return "", false
	}
	return tx.ID, true
}

// send delivers msg to one socket id, silently dropping it if the socket
// has since disconnected (the unregister race is expected, not an error).
func (h *Hub) send(sessionID string, msg Outbound) {
	h.mu.RLock()
	sess, ok := h.socketSessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	_ = sess.socket.Send(msg)
}

// broadcastRoom sends msg to every socket in canvasID's room.
func (h *Hub) broadcastRoom(canvasID int64, msg Outbound) {
	for _, id := range h.roomSockets(canvasID) {
		h.send(id, msg)
	}
}

// broadcastRoomExceptUser sends msg to every socket in canvasID's room that
// does not belong to excludeUserID, per the remote_undo/remote_redo rule.
func (h *Hub) broadcastRoomExceptUser(canvasID, excludeUserID int64, msg Outbound) {
	h.mu.RLock()
	room := h.canvasRooms[canvasID]
	ids := make([]string, 0, len(room))
	for id := range room {
		if sess := h.socketSessions[id]; sess != nil && sess.UserID != excludeUserID {
			ids = append(ids, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range ids {
		h.send(id, msg)
	}
}

// broadcastUser sends msg to every socket belonging to userID (cross-tab
// sync for undo_state_update).
func (h *Hub) broadcastUser(userID int64, msg Outbound) {
	for _, id := range h.userSocketIDs(userID) {
		h.send(id, msg)
	}
}

// pickReconciliationTarget chooses an existing room socket to ask for the
// current scene state on behalf of a joiner, preferring one belonging to
// the same user (so the bootstrap has a consistent view), per §4.2's room
// reconciliation rule.
func pickReconciliationTarget(others []string, sessions map[string]*Session, joinerUserID int64) (string, bool) {
	for _, id := range others {
		if sess := sessions[id]; sess != nil && sess.UserID == joinerUserID {
			return id, true
		}
	}
	if len(others) > 0 {
		return others[0], true
	}
	return "", false
}
