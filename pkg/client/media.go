// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
)

// MediaClient provides access to upload operations.
//
// Access this client through [Client.Media]:
//
//	result, err := client.Media.Upload(ctx, "diagram.png", nil)
type MediaClient struct {
	c *Client
}

// UploadOptions carries optional binding metadata for an upload.
type UploadOptions struct {
	UserID   int64
	CanvasID int64
	// ShowProgress renders a terminal progress bar tracking bytes sent.
	ShowProgress bool
}

// Upload streams a file to POST /api/upload, deduplicated server-side by
// content hash. Image uploads return with thumbnails already generated;
// video uploads return with Processing set, the transcode still running.
func (m *MediaClient) Upload(ctx context.Context, path string, opts *UploadOptions) (*UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)

	var reader io.Reader = f
	var bar *pb.ProgressBar
	if opts != nil && opts.ShowProgress {
		bar = pb.Full.Start64(info.Size())
		reader = bar.NewProxyReader(f)
	}

	go func() {
		err := func() error {
			part, err := form.CreateFormFile("file", filepath.Base(path))
			if err != nil {
				return err
			}
			if _, err := io.Copy(part, reader); err != nil {
				return err
			}
			if opts != nil && opts.UserID != 0 {
				if err := form.WriteField("userId", fmt.Sprintf("%d", opts.UserID)); err != nil {
					return err
				}
			}
			if opts != nil && opts.CanvasID != 0 {
				if err := form.WriteField("canvasId", fmt.Sprintf("%d", opts.CanvasID)); err != nil {
					return err
				}
			}
			return form.Close()
		}()
		pw.CloseWithError(err)
	}()

	body, status, err := m.c.doRaw(ctx, "POST", "/api/upload", form.FormDataContentType(), pr)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return nil, err
	}

	var result UploadResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse upload response (status %d): %w", status, err)
	}
	if !result.Success {
		return nil, &APIError{Code: "UPLOAD_FAILED", Message: result.Error}
	}
	return &result, nil
}
