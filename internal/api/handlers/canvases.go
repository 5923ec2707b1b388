// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/asaskevich/govalidator"
	"github.com/gorilla/mux"

	"github.com/rotoshake/canvasd/internal/store"
)

// CanvasHandler serves the canvas CRUD and viewport HTTP endpoints.
type CanvasHandler struct {
	db *store.DB
}

// NewCanvasHandler builds a CanvasHandler over the persistence facade.
func NewCanvasHandler(db *store.DB) *CanvasHandler {
	return &CanvasHandler{db: db}
}

type createCanvasRequest struct {
	Name        string `json:"name" valid:"required,stringlength(1|200)"`
	Description string `json:"description" valid:"stringlength(0|2000),optional"`
	OwnerID     int64  `json:"ownerId" valid:"required"`
}

// List returns every canvas the requesting user owns or collaborates on.
func (h *CanvasHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("userId"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "userId query parameter is required")
		return
	}

	canvases, err := h.db.ListCanvasesForUser(r.Context(), userID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, canvases)
}

// Create makes a new, empty canvas.
func (h *CanvasHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createCanvasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}

	c, err := h.db.CreateCanvas(r.Context(), req.Name, req.Description, req.OwnerID)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, c)
}

func canvasIDFromPath(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// Get returns one canvas's metadata and current scene blob.
func (h *CanvasHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := canvasIDFromPath(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid canvas id")
		return
	}
	c, err := h.db.GetCanvas(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, ErrCanvasNotFound, "canvas not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

type updateCanvasRequest struct {
	Name        string `json:"name" valid:"required,stringlength(1|200)"`
	Description string `json:"description" valid:"stringlength(0|2000),optional"`
}

// Update renames or re-describes a canvas.
func (h *CanvasHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := canvasIDFromPath(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid canvas id")
		return
	}
	var req updateCanvasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if _, err := govalidator.ValidateStruct(req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	if err := h.db.UpdateCanvasMeta(r.Context(), id, req.Name, req.Description); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	c, err := h.db.GetCanvas(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, c)
}

// Delete removes a canvas and everything keyed to it.
func (h *CanvasHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := canvasIDFromPath(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid canvas id")
		return
	}
	if err := h.db.DeleteCanvas(r.Context(), id); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// GetState returns a canvas's scene blob and version, the HTTP analogue of
// request_full_sync.
func (h *CanvasHandler) GetState(w http.ResponseWriter, r *http.Request) {
	id, err := canvasIDFromPath(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid canvas id")
		return
	}
	c, err := h.db.GetCanvas(r.Context(), id)
	if errors.Is(err, sql.ErrNoRows) {
		WriteError(w, http.StatusNotFound, ErrCanvasNotFound, "canvas not found")
		return
	}
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	version, err := h.db.StateVersion(r.Context(), id)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"canvasData": c.CanvasData,
		"version":    version,
	})
}

type navigationStatePatch struct {
	NavigationState struct {
		Scale     float64    `json:"scale"`
		Offset    [2]float64 `json:"offset"`
		Timestamp int64      `json:"timestamp"`
	} `json:"navigation_state"`
	UserID int64 `json:"userId"`
}

// PatchState persists a user's pan/zoom viewport for a canvas. scale must
// fall in (0, 20] per the viewport contract.
func (h *CanvasHandler) PatchState(w http.ResponseWriter, r *http.Request) {
	id, err := canvasIDFromPath(r)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid canvas id")
		return
	}
	var req navigationStatePatch
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	scale := req.NavigationState.Scale
	if scale <= 0 || scale > 20 {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "scale must be in (0, 20]")
		return
	}

	v := store.Viewport{
		UserID:   req.UserID,
		CanvasID: id,
		Scale:    scale,
		OffsetX:  req.NavigationState.Offset[0],
		OffsetY:  req.NavigationState.Offset[1],
	}
	if err := h.db.SaveViewport(r.Context(), v); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PutState is the non-partial form of PatchState, same viewport contract.
func (h *CanvasHandler) PutState(w http.ResponseWriter, r *http.Request) {
	h.PatchState(w, r)
}
