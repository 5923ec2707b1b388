// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package collab

// Socket is the minimal transport surface the hub needs to reach a single
// connection. Production use is wsSocket (gorilla/websocket); tests use a
// fake that records sent messages, so dispatch logic is exercised without a
// real network round trip.
type Socket interface {
	Send(msg Outbound) error
	Close() error
}
