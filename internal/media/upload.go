// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotoshake/canvasd/internal/canvasevents"
	"github.com/rotoshake/canvasd/internal/store"
)

// now is a package-level clock hook; it defaults to time.Now().UnixMilli().
var now = nowImpl

// UploadHandler serves POST /api/upload.
type UploadHandler struct {
	db          *store.DB
	storage     *Storage
	thumbs      *Thumbnailer
	videos      *VideoQueue
	bus         canvasevents.EventBus
	maxBytes    int64
	ffprobePath string
}

// UploadDeps bundles the collaborators an UploadHandler needs.
type UploadDeps struct {
	DB          *store.DB
	Storage     *Storage
	Thumbs      *Thumbnailer
	Videos      *VideoQueue
	Bus         canvasevents.EventBus
	MaxBytes    int64
	FFprobePath string
}

// NewUploadHandler builds an UploadHandler.
func NewUploadHandler(d UploadDeps) *UploadHandler {
	return &UploadHandler{
		db: d.DB, storage: d.Storage, thumbs: d.Thumbs, videos: d.Videos,
		bus: d.Bus, maxBytes: d.MaxBytes, ffprobePath: d.FFprobePath,
	}
}

type uploadResponse struct {
	Success        bool   `json:"success"`
	URL            string `json:"url"`
	Hash           string `json:"hash"`
	Filename       string `json:"filename"`
	ServerFilename string `json:"serverFilename"`
	Size           int64  `json:"size"`
	Processing     bool   `json:"processing,omitempty"`
}

// ServeHTTP stores the uploaded file, deduplicating by content hash, then
// either synchronously generates thumbnails (images) or enqueues a transcode
// (video) before responding.
func (h *UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeUploadError(w, http.StatusBadRequest, "upload exceeds the maximum allowed size")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeUploadError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	var userID, canvasID int64
	if v := r.FormValue("userId"); v != "" {
		userID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := r.FormValue("canvasId"); v != "" {
		canvasID, _ = strconv.ParseInt(v, 10, 64)
	}

	hash, size, err := HashReader(file)
	if err != nil {
		writeUploadError(w, http.StatusInternalServerError, "failed to hash upload")
		return
	}

	ctx := r.Context()
	if existing, err := h.db.GetFileByHash(ctx, hash); err == nil && existing != nil {
		writeUploadJSON(w, uploadResponse{
			Success: true, URL: "/uploads/" + existing.Filename, Hash: hash,
			Filename: existing.Filename, ServerFilename: existing.Filename, Size: existing.Size,
		})
		return
	}

	ext := filepath.Ext(header.Filename)
	filename, err := GenerateFilename(now(), ext)
	if err != nil {
		writeUploadError(w, http.StatusInternalServerError, "failed to name upload")
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		writeUploadError(w, http.StatusInternalServerError, "failed to rewind upload")
		return
	}
	if err := h.store(filename, file); err != nil {
		writeUploadError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	rec := &store.File{
		Filename: filename, OriginalName: header.Filename, MimeType: mimeType,
		Size: size, Hash: hash, UserID: userID, CanvasID: canvasID,
	}
	if err := h.db.InsertFile(ctx, rec); err != nil {
		writeUploadError(w, http.StatusInternalServerError, "failed to record upload")
		return
	}
	h.publish(canvasevents.EventUploadReceived, canvasID, map[string]interface{}{
		"filename": filename, "hash": hash, "size": size,
	})

	resp := uploadResponse{
		Success: true, URL: "/uploads/" + filename, Hash: hash,
		Filename: filename, ServerFilename: filename, Size: size,
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		h.processImage(ctx, filename)
	case strings.HasPrefix(mimeType, "video/"):
		h.enqueueVideo(filename, canvasID)
		resp.Processing = true
	}

	writeUploadJSON(w, resp)
}

func (h *UploadHandler) publish(eventType string, canvasID int64, payload map[string]interface{}) {
	if h.bus == nil {
		return
	}
	_ = h.bus.Publish(context.Background(), canvasevents.Event{
		Type: eventType, CanvasID: strconv.FormatInt(canvasID, 10), Payload: payload,
	})
}

func (h *UploadHandler) store(filename string, r io.Reader) error {
	dst, err := h.storage.Fs.Create(h.storage.UploadPath(filename))
	if err != nil {
		return err
	}
	defer dst.Close()
	_, err = io.Copy(dst, r)
	return err
}

func (h *UploadHandler) processImage(ctx context.Context, filename string) {
	f, err := h.storage.Fs.Open(h.storage.UploadPath(filename))
	if err != nil {
		return
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		h.db.UpdateProcessingStatus(ctx, filename, store.ProcessingFailed, err.Error())
		return
	}
	if err := h.thumbs.Generate(ctx, img, Basename(filename)); err != nil {
		h.db.UpdateProcessingStatus(ctx, filename, store.ProcessingFailed, err.Error())
		return
	}
	h.db.UpdateProcessingStatus(ctx, filename, store.ProcessingCompleted, "")
}

func (h *UploadHandler) enqueueVideo(filename string, canvasID int64) {
	full, err := absPathFor(h.storage, h.storage.UploadPath(filename))
	if err != nil {
		return
	}
	duration := probeDuration(h.ffprobePath, full)
	h.videos.Enqueue(VideoJob{Filename: filename, SourcePath: full, CanvasID: canvasID, DurationS: duration})
}

func writeUploadJSON(w http.ResponseWriter, resp uploadResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	encodeJSON(w, resp)
}

func writeUploadError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encodeJSON(w, map[string]interface{}{"success": false, "error": message})
}
