// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"encoding/json"
	"image"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/rotoshake/canvasd/internal/store"
)

// ServeHandler answers GET /uploads/:filename and GET /thumbnails/:size/:filename.
type ServeHandler struct {
	db      *store.DB
	storage *Storage
}

// NewServeHandler builds a ServeHandler.
func NewServeHandler(db *store.DB, storage *Storage) *ServeHandler {
	return &ServeHandler{db: db, storage: storage}
}

func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
}

// Upload serves an uploaded file, content-negotiating a video's processed
// formats against the request's Accept header before falling back to the
// original.
func (h *ServeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	filename := mux.Vars(r)["filename"]

	rec, err := h.db.GetFileByFilename(r.Context(), filename)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	servePath := h.storage.UploadPath(filename)
	if strings.HasPrefix(rec.MimeType, "video/") && rec.ProcessedFormats != "" && rec.ProcessedFormats != "{}" {
		var formats map[string]string
		if err := json.Unmarshal([]byte(rec.ProcessedFormats), &formats); err == nil {
			accept := r.Header.Get("Accept")
			basename := Basename(filename)
			if webm, ok := formats["webm"]; ok && strings.Contains(accept, "webm") {
				servePath = h.storage.TranscodePath(basename, "webm")
				_ = webm
			} else if mp4, ok := formats["mp4"]; ok {
				servePath = h.storage.TranscodePath(basename, "mp4")
				_ = mp4
			}
		}
	}

	f, err := h.storage.Fs.Open(servePath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.NotFound(w, r)
		return
	}
	http.ServeContent(w, r, filename, info.ModTime(), f)
}

// Thumbnail serves a generated thumbnail.
func (h *ServeHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	setCORS(w)
	vars := mux.Vars(r)
	size, err := strconv.Atoi(vars["size"])
	if err != nil {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	basename := Basename(vars["filename"])

	f, err := h.storage.Fs.Open(h.storage.ThumbnailPath(size, basename))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "image/webp")
	info, _ := f.Stat()
	http.ServeContent(w, r, vars["filename"], info.ModTime(), f)
}

// GenerateHandler answers POST /api/thumbnails/generate, regenerating
// requested sizes for an already-uploaded file by hash.
type GenerateHandler struct {
	db     *store.DB
	thumbs *Thumbnailer
}

// NewGenerateHandler builds a GenerateHandler.
func NewGenerateHandler(db *store.DB, thumbs *Thumbnailer) *GenerateHandler {
	return &GenerateHandler{db: db, thumbs: thumbs}
}

type generateRequest struct {
	Hash  string `json:"hash"`
	Sizes []int  `json:"sizes"`
}

func (h *GenerateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rec, err := h.db.GetFileByHash(r.Context(), req.Hash)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	f, err := h.thumbs.storage.Fs.Open(h.thumbs.storage.UploadPath(rec.Filename))
	if err != nil {
		http.Error(w, "source file missing", http.StatusNotFound)
		return
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		http.Error(w, "source is not a decodable image", http.StatusBadRequest)
		return
	}

	sizes := req.Sizes
	if len(sizes) == 0 {
		sizes = h.thumbs.sizes
	}
	requested := &Thumbnailer{storage: h.thumbs.storage, encoder: h.thumbs.encoder, sizes: sizes, batch: h.thumbs.batch, quality: h.thumbs.quality}
	if err := requested.Generate(r.Context(), img, Basename(rec.Filename)); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	urls := make(map[string]string, len(sizes))
	for _, size := range sizes {
		urls[strconv.Itoa(size)] = "/thumbnails/" + strconv.Itoa(size) + "/" + Basename(rec.Filename) + ".webp"
	}
	w.Header().Set("Content-Type", "application/json")
	encodeJSON(w, map[string]interface{}{"urls": urls})
}
