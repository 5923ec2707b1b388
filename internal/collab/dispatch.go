// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rotoshake/canvasd/internal/canvas"
	"github.com/rotoshake/canvasd/internal/canvasevents"
	"github.com/rotoshake/canvasd/internal/history"
	"github.com/rotoshake/canvasd/internal/store"
	"github.com/rotoshake/canvasd/internal/undo"
)

// CanvasManager is the slice of the canvas state manager the hub drives.
type CanvasManager interface {
	ExecuteOperation(ctx context.Context, canvasID int64, op *canvas.Operation, userID int64) *canvas.Result
	CurrentState(ctx context.Context, canvasID int64) (*canvas.CanvasState, error)
}

// UndoManager is the slice of the undo/redo sync the hub drives.
type UndoManager interface {
	Undo(ctx context.Context, userID, canvasID int64) *undo.Result
	Redo(ctx context.Context, userID, canvasID int64) *undo.Result
	ClearUndoHistory(ctx context.Context, canvasID int64) error
	GetUndoState(ctx context.Context, userID, canvasID int64) (history.UndoState, error)
	UndoHistory(ctx context.Context, userID, canvasID int64, limit int, showAllUsers bool) ([]*store.Operation, error)
}

// HistoryRecorder is the slice of the operation history the hub drives
// directly (the undo/redo orchestrator drives the rest).
type HistoryRecorder interface {
	RecordOperation(ctx context.Context, userID, canvasID int64, opID, transactionID string) error
}

// SessionStore is the slice of the persistence facade the hub needs for
// identity, presence, transactions, and the sync_check backlog.
type SessionStore interface {
	GetOrCreateUser(ctx context.Context, username, displayName string) (*store.User, error)
	UpsertSession(ctx context.Context, s store.Session) error
	RemoveSession(ctx context.Context, socketID string) error
	ListOperationsSince(ctx context.Context, canvasID, lastSequence int64) ([]*store.Operation, error)
	StateVersion(ctx context.Context, canvasID int64) (int64, error)
	Transaction(ctx context.Context, fn func(*store.Tx) error) error
	BeginTransaction(ctx context.Context, tx *store.Tx, id string, userID, canvasID int64, source string) error
	GetActiveTransactionForUser(ctx context.Context, userID, canvasID int64) (*store.TransactionRecord, error)
	SetTransactionState(ctx context.Context, id string, state store.TransactionState) error
}

// Dispatcher wires a Hub's sessions and rooms to the canvas state manager,
// the undo/redo sync, and the operation history, translating ingress
// messages into calls on those managers and routing the resulting egress
// events per §4.2's rules.
type Dispatcher struct {
	hub     *Hub
	canvas  CanvasManager
	undo    UndoManager
	history HistoryRecorder
	store   SessionStore
}

// NewDispatcher builds a Dispatcher over a fresh Hub.
func NewDispatcher(cm CanvasManager, um UndoManager, hm HistoryRecorder, s SessionStore) *Dispatcher {
	return &Dispatcher{
		hub:     NewHub(),
		canvas:  cm,
		undo:    um,
		history: hm,
		store:   s,
	}
}

// Connect registers a new socket and returns its session id, the handle
// callers use for Dispatch and Disconnect.
func (d *Dispatcher) Connect(socket Socket) string {
	id := uuid.NewString()
	d.hub.register(id, socket)
	return id
}

// Disconnect tears a socket's session down: removes it from its room,
// fires user_left if it was the departing user's last session, and drops
// the presence row. Active transactions are left untouched (see §9).
func (d *Dispatcher) Disconnect(ctx context.Context, sessionID string) {
	sess, wasLast := d.hub.unregister(sessionID)
	if sess == nil {
		return
	}
	_ = d.store.RemoveSession(ctx, sessionID)

	if sess.CanvasID == 0 {
		return
	}
	if wasLast {
		d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtUserLeft, Data: map[string]interface{}{
			"userId": sess.UserID, "username": sess.Username,
		}})
	} else {
		d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtTabClosed, Data: map[string]interface{}{
			"userId": sess.UserID, "tabId": sess.TabID,
		}})
	}
}

// SubscribeMedia hooks the dispatcher up to the media pipeline's event bus,
// forwarding upload-received and transcode progress to the owning canvas room as
// video_processing_update egress messages. Returns the subscription ids so
// the caller can Unsubscribe on shutdown, though the bus's own Close makes
// that optional in practice.
func (d *Dispatcher) SubscribeMedia(bus canvasevents.EventBus) ([]canvasevents.SubscriptionID, error) {
	var subs []canvasevents.SubscriptionID

	id, err := bus.SubscribeAsync("video.processing.*", d.forwardMediaEvent, 64)
	if err != nil {
		return subs, fmt.Errorf("subscribe video.processing.*: %w", err)
	}
	subs = append(subs, id)

	id, err = bus.SubscribeAsync(canvasevents.EventUploadReceived, d.forwardMediaEvent, 64)
	if err != nil {
		return subs, fmt.Errorf("subscribe %s: %w", canvasevents.EventUploadReceived, err)
	}
	subs = append(subs, id)

	return subs, nil
}

// forwardMediaEvent relays a canvasevents.Event published by the media
// pipeline to every socket in its canvas room. Events with no canvas id
// (e.g. an orphan-file sweep) are dropped rather than broadcast globally.
func (d *Dispatcher) forwardMediaEvent(ctx context.Context, event canvasevents.Event) error {
	canvasID, err := strconv.ParseInt(event.CanvasID, 10, 64)
	if err != nil || canvasID == 0 {
		return nil
	}
	d.hub.broadcastRoom(canvasID, Outbound{Type: EvtVideoProcessingUpdate, Data: map[string]interface{}{
		"event":   event.Type,
		"payload": event.Payload,
	}})
	return nil
}

// Dispatch routes one decoded ingress message for sessionID.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, msg Inbound) {
	switch msg.Type {
	case MsgJoinCanvas:
		d.handleJoinCanvas(ctx, sessionID, msg.Data)
	case MsgLeaveCanvas:
		d.handleLeaveCanvas(ctx, sessionID)
	case MsgExecuteOperation, MsgCanvasOperation:
		d.handleExecuteOperation(ctx, sessionID, msg.Data)
	case MsgRequestFullSync:
		d.handleRequestFullSync(ctx, sessionID)
	case MsgSyncCheck:
		d.handleSyncCheck(ctx, sessionID, msg.Data)
	case MsgUndoOperation:
		d.handleUndo(ctx, sessionID)
	case MsgRedoOperation:
		d.handleRedo(ctx, sessionID)
	case MsgRequestUndoState:
		d.handleRequestUndoState(ctx, sessionID)
	case MsgGetUndoHistory:
		d.handleGetUndoHistory(ctx, sessionID, msg.Data)
	case MsgClearUndoHistory:
		d.handleClearUndoHistory(ctx, sessionID)
	case MsgBeginTransaction:
		d.handleBeginTransaction(ctx, sessionID, msg.Data)
	case MsgCommitTransaction:
		d.handleCommitTransaction(ctx, sessionID)
	case MsgAbortTransaction:
		d.handleAbortTransaction(ctx, sessionID)
	case MsgPing:
		d.handlePing(sessionID, msg.Data)
	default:
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{
			"error": fmt.Sprintf("unknown message type %q", msg.Type),
		}})
	}
}

func stringField(data map[string]interface{}, key string) string {
	v, _ := data[key].(string)
	return v
}

func int64Field(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	}
	return 0
}

func (d *Dispatcher) handleJoinCanvas(ctx context.Context, sessionID string, data map[string]interface{}) {
	canvasID := int64Field(data, "canvasId")
	username := stringField(data, "username")
	displayName := stringField(data, "displayName")
	if displayName == "" {
		displayName = username
	}
	tabID := stringField(data, "tabId")
	if tabID == "" {
		tabID = fmt.Sprintf("tab-%d", time.Now().UnixMilli())
	}

	user, err := d.store.GetOrCreateUser(ctx, username, displayName)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}

	isFirst, others := d.hub.join(sessionID, user.ID, user.Username, canvasID, tabID)
	_ = d.store.UpsertSession(ctx, store.Session{SocketID: sessionID, UserID: user.ID, CanvasID: canvasID, TabID: tabID})

	state, err := d.canvas.CurrentState(ctx, canvasID)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}

	d.hub.send(sessionID, Outbound{Type: EvtCanvasJoined, Data: map[string]interface{}{
		"canvasId": canvasID,
		"userId":   user.ID,
		"username": user.Username,
		"color":    user.Color,
		"nodes":    state.Nodes,
		"version":  state.StateVersion,
	}})

	// Room reconciliation: ask an existing socket (preferring the same user)
	// to push the joiner the current scene, a client-to-client shortcut the
	// joiner can fall back from via request_full_sync.
	sessions := make(map[string]*Session)
	for _, id := range others {
		if s, ok := d.hub.session(id); ok {
			sessions[id] = s
		}
	}
	if target, ok := pickReconciliationTarget(others, sessions, user.ID); ok {
		d.hub.send(target, Outbound{Type: EvtRequestCanvasState, Data: map[string]interface{}{
			"forSocketId": sessionID,
		}})
	}

	if isFirst {
		d.hub.broadcastRoom(canvasID, Outbound{Type: EvtUserJoined, Data: map[string]interface{}{
			"userId": user.ID, "username": user.Username, "color": user.Color,
		}})
	}
	d.broadcastActiveUsers(canvasID)
}

func (d *Dispatcher) broadcastActiveUsers(canvasID int64) {
	users := d.hub.activeUsers(canvasID)
	d.hub.broadcastRoom(canvasID, Outbound{Type: EvtActiveUsers, Data: users})
}

func (d *Dispatcher) handleLeaveCanvas(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	canvasID, userID, tabID := sess.CanvasID, sess.UserID, sess.TabID
	wasLast := d.hub.leave(sessionID)
	_ = d.store.RemoveSession(ctx, sessionID)

	if wasLast {
		d.hub.broadcastRoom(canvasID, Outbound{Type: EvtUserLeft, Data: map[string]interface{}{"userId": userID}})
	} else {
		d.hub.broadcastRoom(canvasID, Outbound{Type: EvtTabClosed, Data: map[string]interface{}{"userId": userID, "tabId": tabID}})
	}
	d.broadcastActiveUsers(canvasID)
}

func (d *Dispatcher) handleExecuteOperation(ctx context.Context, sessionID string, data map[string]interface{}) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}

	raw, _ := json.Marshal(data)
	if len(raw) > maxOperationPayloadBytes {
		d.hub.send(sessionID, Outbound{Type: EvtOperationRejected, Data: map[string]interface{}{
			"error": "Operation too large",
		}})
		return
	}

	op := &canvas.Operation{
		ID:     stringField(data, "id"),
		Type:   stringField(data, "type"),
		Params: mapField(data, "params"),
	}
	if ud, ok := data["undoData"].(map[string]interface{}); ok {
		op.UndoData = ud
	}
	if txID, ok := d.hub.activeTransaction(sess.UserID, sess.CanvasID); ok {
		op.TransactionID = txID
	}

	result := d.canvas.ExecuteOperation(ctx, sess.CanvasID, op, sess.UserID)
	if !result.Success {
		d.hub.send(sessionID, Outbound{Type: EvtOperationRejected, Data: map[string]interface{}{
			"operationId": op.ID, "error": result.Error,
		}})
		return
	}

	if err := d.history.RecordOperation(ctx, sess.UserID, sess.CanvasID, op.ID, op.TransactionID); err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}

	d.hub.send(sessionID, Outbound{Type: EvtOperationAck, Data: map[string]interface{}{
		"operationId": op.ID, "stateVersion": result.StateVersion,
	}})

	if result.Changes == nil || !result.Changes.IsEmpty() {
		d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtStateUpdate, Data: map[string]interface{}{
			"operationId":  op.ID,
			"stateVersion": result.StateVersion,
			"changes":      result.Changes,
			"userId":       sess.UserID,
		}})
	}
	d.broadcastUndoStateToUser(ctx, sess.UserID, sess.CanvasID)
}

func mapField(data map[string]interface{}, key string) map[string]interface{} {
	if m, ok := data[key].(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func (d *Dispatcher) handleRequestFullSync(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	state, err := d.canvas.CurrentState(ctx, sess.CanvasID)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}
	d.hub.send(sessionID, Outbound{Type: EvtFullStateSync, Data: map[string]interface{}{
		"nodes": state.Nodes, "version": state.StateVersion,
	}})
}

func (d *Dispatcher) handleSyncCheck(ctx context.Context, sessionID string, data map[string]interface{}) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	lastSeq := int64Field(data, "lastSequence")
	ops, err := d.store.ListOperationsSince(ctx, sess.CanvasID, lastSeq)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}
	d.hub.send(sessionID, Outbound{Type: EvtSyncResponse, Data: map[string]interface{}{"operations": ops}})
}

func (d *Dispatcher) handleUndo(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	res := d.undo.Undo(ctx, sess.UserID, sess.CanvasID)
	if !res.Success {
		d.hub.send(sessionID, Outbound{Type: EvtUndoFailed, Data: map[string]interface{}{"reason": res.Reason}})
		return
	}

	d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtStateUpdate, Data: map[string]interface{}{
		"stateVersion": res.StateVersion, "changes": res.Changes, "userId": sess.UserID,
	}})
	d.hub.broadcastUser(sess.UserID, Outbound{Type: EvtUndoStateUpdate, Data: map[string]interface{}{
		"undoState": res.UndoState,
	}})
	d.hub.send(sessionID, Outbound{Type: EvtUndoSuccess, Data: map[string]interface{}{
		"conflicts": res.ConflictingOperationIDs,
	}})
	d.hub.broadcastRoomExceptUser(sess.CanvasID, sess.UserID, Outbound{Type: EvtRemoteUndo, Data: map[string]interface{}{
		"userId": sess.UserID,
	}})
}

func (d *Dispatcher) handleRedo(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	res := d.undo.Redo(ctx, sess.UserID, sess.CanvasID)
	if !res.Success {
		d.hub.send(sessionID, Outbound{Type: EvtRedoFailed, Data: map[string]interface{}{"reason": res.Reason}})
		return
	}

	d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtStateUpdate, Data: map[string]interface{}{
		"stateVersion": res.StateVersion, "changes": res.Changes, "userId": sess.UserID,
	}})
	d.hub.broadcastUser(sess.UserID, Outbound{Type: EvtUndoStateUpdate, Data: map[string]interface{}{
		"undoState": res.UndoState,
	}})
	d.hub.send(sessionID, Outbound{Type: EvtRedoSuccess, Data: nil})
	d.hub.broadcastRoomExceptUser(sess.CanvasID, sess.UserID, Outbound{Type: EvtRemoteRedo, Data: map[string]interface{}{
		"userId": sess.UserID,
	}})
}

func (d *Dispatcher) broadcastUndoStateToUser(ctx context.Context, userID, canvasID int64) {
	state, err := d.undo.GetUndoState(ctx, userID, canvasID)
	if err != nil {
		return
	}
	d.hub.broadcastUser(userID, Outbound{Type: EvtUndoStateUpdate, Data: map[string]interface{}{"undoState": state}})
}

func (d *Dispatcher) handleRequestUndoState(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	state, err := d.undo.GetUndoState(ctx, sess.UserID, sess.CanvasID)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}
	d.hub.send(sessionID, Outbound{Type: EvtUndoStateUpdate, Data: map[string]interface{}{"undoState": state}})
}

func (d *Dispatcher) handleGetUndoHistory(ctx context.Context, sessionID string, data map[string]interface{}) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	limit := int(int64Field(data, "limit"))
	if limit <= 0 {
		limit = 50
	}
	showAll, _ := data["showAllUsers"].(bool)

	ops, err := d.undo.UndoHistory(ctx, sess.UserID, sess.CanvasID, limit, showAll)
	if err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}
	d.hub.send(sessionID, Outbound{Type: EvtUndoHistory, Data: map[string]interface{}{"operations": ops}})
}

func (d *Dispatcher) handleClearUndoHistory(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	if err := d.undo.ClearUndoHistory(ctx, sess.CanvasID); err != nil {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}
	d.hub.broadcastRoom(sess.CanvasID, Outbound{Type: EvtUndoHistoryCleared, Data: map[string]interface{}{
		"cleared":   true,
		"undoState": history.UndoState{},
	}})
}

func (d *Dispatcher) handleBeginTransaction(ctx context.Context, sessionID string, data map[string]interface{}) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	source := stringField(data, "source")
	txID := uuid.NewString()

	if _, ok := d.hub.beginTransaction(sess.UserID, sess.CanvasID, txID, source); !ok {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{
			"error": "a transaction is already active for this user on this canvas",
		}})
		return
	}

	if err := d.store.Transaction(ctx, func(tx *store.Tx) error {
		return d.store.BeginTransaction(ctx, tx, txID, sess.UserID, sess.CanvasID, source)
	}); err != nil {
		d.hub.endTransaction(sess.UserID, sess.CanvasID)
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": err.Error()}})
		return
	}

	d.hub.send(sessionID, Outbound{Type: EvtTransactionStarted, Data: map[string]interface{}{"transactionId": txID}})
}

func (d *Dispatcher) handleCommitTransaction(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	tx, ok := d.hub.endTransaction(sess.UserID, sess.CanvasID)
	if !ok {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": "no active transaction"}})
		return
	}
	_ = d.store.SetTransactionState(ctx, tx.ID, store.TransactionCommitted)
	d.hub.send(sessionID, Outbound{Type: EvtTransactionCommitted, Data: map[string]interface{}{"transactionId": tx.ID}})
}

// handleAbortTransaction closes the bundle without rolling back any
// operation already applied under it, per §9: abort is a bookkeeping
// boundary only, not a state-reverting action.
func (d *Dispatcher) handleAbortTransaction(ctx context.Context, sessionID string) {
	sess, ok := d.hub.session(sessionID)
	if !ok || sess.CanvasID == 0 {
		return
	}
	tx, ok := d.hub.endTransaction(sess.UserID, sess.CanvasID)
	if !ok {
		d.hub.send(sessionID, Outbound{Type: EvtError, Data: map[string]interface{}{"error": "no active transaction"}})
		return
	}
	_ = d.store.SetTransactionState(ctx, tx.ID, store.TransactionAborted)
	d.hub.send(sessionID, Outbound{Type: EvtTransactionAborted, Data: map[string]interface{}{"transactionId": tx.ID}})
}

func (d *Dispatcher) handlePing(sessionID string, data map[string]interface{}) {
	d.hub.send(sessionID, Outbound{Type: EvtPong, Data: map[string]interface{}{"ts": data["ts"]}})
}
