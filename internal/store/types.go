// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// User is a collaborator identity, keyed by username.
type User struct {
	ID          int64
	Username    string
	DisplayName string
	Color       string
	CreatedAt   time.Time
}

// Canvas is a persisted scene: the JSON blob lives in CanvasData.
type Canvas struct {
	ID           int64
	Name         string
	Description  string
	OwnerID      int64
	CanvasData   string // serialized {nodes: Node[], version: int}
	LastModified time.Time
}

// OperationState is the lifecycle state of a recorded operation.
type OperationState string

const (
	OperationApplied OperationState = "applied"
	OperationUndone  OperationState = "undone"
)

// Operation is an append-only log row backing undo/redo reconstruction.
type Operation struct {
	ID             string
	Type           string
	Params         string // JSON
	UndoData       string // JSON, may be empty
	UserID         int64
	CanvasID       int64
	TransactionID  string
	SequenceNumber int64
	State          OperationState
	Timestamp      time.Time
	UndoneAt       *time.Time
	UndoneBy       *int64
	RedoneAt       *time.Time
	RedoneBy       *int64
}

// ProcessingStatus tracks a file's derivative-generation progress.
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingFailed     ProcessingStatus = "failed"
)

// File is an uploaded asset, deduplicated by content hash.
type File struct {
	Filename         string
	OriginalName     string
	MimeType         string
	Size             int64
	Hash             string
	UserID           int64
	CanvasID         int64 // 0 when unset
	ProcessedFormats string // JSON map of format -> filename
	ProcessingStatus ProcessingStatus
	ProcessingError  string
	CreatedAt        time.Time
}

// TransactionState is the lifecycle state of an undo transaction bundle.
type TransactionState string

const (
	TransactionActive    TransactionState = "active"
	TransactionCommitted TransactionState = "committed"
	TransactionAborted   TransactionState = "aborted"
)

// TransactionRecord is the persisted row for an active_transactions entry.
type TransactionRecord struct {
	ID        string
	UserID    int64
	CanvasID  int64
	Source    string
	State     TransactionState
	StartedAt time.Time
}
