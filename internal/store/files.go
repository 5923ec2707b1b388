// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
)

func scanFile(row interface{ Scan(...interface{}) error }) (*File, error) {
	var f File
	var canvasID sql.NullInt64
	err := row.Scan(&f.Filename, &f.OriginalName, &f.MimeType, &f.Size, &f.Hash,
		&f.UserID, &canvasID, &f.ProcessedFormats, &f.ProcessingStatus, &f.ProcessingError, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	f.CanvasID = canvasID.Int64
	return &f, nil
}

const fileColumns = `filename, original_name, mime_type, size, hash, user_id, canvas_id,
	processed_formats, processing_status, processing_error, created_at`

// InsertFile records a newly stored upload.
func (db *DB) InsertFile(ctx context.Context, f *File) error {
	var canvasID interface{}
	if f.CanvasID != 0 {
		canvasID = f.CanvasID
	}
	if f.ProcessingStatus == "" {
		f.ProcessingStatus = ProcessingPending
	}
	if f.ProcessedFormats == "" {
		f.ProcessedFormats = "{}"
	}

	_, err := db.Exec(ctx, `
		INSERT INTO files (filename, original_name, mime_type, size, hash, user_id, canvas_id, processed_formats, processing_status, processing_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Filename, f.OriginalName, f.MimeType, f.Size, f.Hash, f.UserID, canvasID,
		f.ProcessedFormats, f.ProcessingStatus, f.ProcessingError)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}
	return nil
}

// GetFileByFilename fetches a file by its stored name.
func (db *DB) GetFileByFilename(ctx context.Context, filename string) (*File, error) {
	var f *File
	err := db.Get(ctx, `SELECT `+fileColumns+` FROM files WHERE filename = ?`,
		[]interface{}{filename},
		func(row *sql.Row) error {
			var scanErr error
			f, scanErr = scanFile(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// GetFileByHash finds an existing upload with the same content hash, the
// dedup lookup performed before storing a new upload.
func (db *DB) GetFileByHash(ctx context.Context, hash string) (*File, error) {
	var f *File
	err := db.Get(ctx, `SELECT `+fileColumns+` FROM files WHERE hash = ? LIMIT 1`,
		[]interface{}{hash},
		func(row *sql.Row) error {
			var scanErr error
			f, scanErr = scanFile(row)
			return scanErr
		})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// UpdateProcessingStatus records progress or terminal outcome for a
// derivative-generation pipeline run (thumbnails, transcodes).
func (db *DB) UpdateProcessingStatus(ctx context.Context, filename string, status ProcessingStatus, processingError string) error {
	_, err := db.Exec(ctx,
		`UPDATE files SET processing_status = ?, processing_error = ? WHERE filename = ?`,
		status, processingError, filename)
	if err != nil {
		return fmt.Errorf("update processing status: %w", err)
	}
	return nil
}

// UpdateProcessedFormats overwrites the format->filename map once derivatives
// are ready.
func (db *DB) UpdateProcessedFormats(ctx context.Context, filename, processedFormatsJSON string) error {
	_, err := db.Exec(ctx,
		`UPDATE files SET processed_formats = ? WHERE filename = ?`, processedFormatsJSON, filename)
	if err != nil {
		return fmt.Errorf("update processed formats: %w", err)
	}
	return nil
}

// BindFileToCanvas associates a previously-uploaded file with the canvas a
// node now references it from.
func (db *DB) BindFileToCanvas(ctx context.Context, filename string, canvasID int64) error {
	_, err := db.Exec(ctx, `UPDATE files SET canvas_id = ? WHERE filename = ?`, canvasID, filename)
	if err != nil {
		return fmt.Errorf("bind file to canvas: %w", err)
	}
	return nil
}

// ListUnreferencedFiles returns files not bound to any canvas, the candidate
// set for a cleanup sweep.
func (db *DB) ListUnreferencedFiles(ctx context.Context) ([]*File, error) {
	var files []*File
	err := db.All(ctx, `SELECT `+fileColumns+` FROM files WHERE canvas_id IS NULL`, nil,
		func(rows *sql.Rows) error {
			f, err := scanFile(rows)
			if err != nil {
				return err
			}
			files = append(files, f)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("list unreferenced files: %w", err)
	}
	return files, nil
}

// DeleteFile removes a file's database row. The caller is responsible for
// removing the backing blob(s) from the filesystem first.
func (db *DB) DeleteFile(ctx context.Context, filename string) error {
	_, err := db.Exec(ctx, `DELETE FROM files WHERE filename = ?`, filename)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
