// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package collab

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// wsSocket adapts a gorilla/websocket connection to Socket. Writes are
// serialized through outbox since gorilla connections are not safe for
// concurrent writers, unlike reads, which happen on a single dedicated
// goroutine.
type wsSocket struct {
	conn   *websocket.Conn
	outbox chan Outbound
	closed chan struct{}
}

func newWSSocket(conn *websocket.Conn) *wsSocket {
	return &wsSocket{
		conn:   conn,
		outbox: make(chan Outbound, 64),
		closed: make(chan struct{}),
	}
}

func (s *wsSocket) Send(msg Outbound) error {
	select {
	case s.outbox <- msg:
		return nil
	case <-s.closed:
		return websocket.ErrCloseSent
	}
}

func (s *wsSocket) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return s.conn.Close()
}

// writePump serializes every queued Send plus the ping ticker onto the one
// connection goroutine allowed to write.
func (s *wsSocket) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-s.outbox:
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.closed:
			return
		}
	}
}

// ServeWS upgrades an HTTP request to a WebSocket, registers the connection
// with the dispatcher, and runs its read/write pumps until the client
// disconnects. Call from the HTTP handler that owns the /ws route.
func (d *Dispatcher) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	socket := newWSSocket(conn)
	sessionID := d.Connect(socket)
	ctx := r.Context()

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go socket.writePump()

	defer func() {
		socket.Close()
		d.Disconnect(context.Background(), sessionID)
	}()

	for {
		var msg Inbound
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		d.Dispatch(ctx, sessionID, msg)
	}
}
