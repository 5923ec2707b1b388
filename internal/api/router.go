// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/rotoshake/canvasd/internal/api/handlers"
	"github.com/rotoshake/canvasd/internal/api/middleware"
	"github.com/rotoshake/canvasd/internal/collab"
	"github.com/rotoshake/canvasd/internal/media"
	"github.com/rotoshake/canvasd/internal/store"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string // Path to TLS certificate file
	TLSKey  string // Path to TLS private key file
}

// Dependencies holds everything the router needs to wire canvas-domain
// routes: the persistence facade, the WebSocket dispatcher, and the media
// pipeline's handlers.
type Dependencies struct {
	DB          *store.DB
	Dispatcher  *collab.Dispatcher
	Upload      *media.UploadHandler
	Serve       *media.ServeHandler
	Generate    *media.GenerateHandler
	Maintenance *media.MaintenanceHandler
	CORSOrigins []string
	Version     string
}

// NewRouter builds the canvasd HTTP + WebSocket router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	if len(deps.CORSOrigins) > 0 {
		r.Use(middleware.NewCORS(deps.CORSOrigins))
	} else {
		r.Use(middleware.CORS)
	}

	health := handlers.NewHealthHandler(deps.Version, []string{"thumbnails", "video_processing", "cleanup"})
	r.HandleFunc("/health", health.ServeHTTP).Methods("GET")

	r.HandleFunc("/ws", deps.Dispatcher.ServeWS)

	canvases := handlers.NewCanvasHandler(deps.DB)
	r.HandleFunc("/canvases", canvases.List).Methods("GET")
	r.HandleFunc("/canvases", canvases.Create).Methods("POST")
	r.HandleFunc("/canvases/{id}", canvases.Get).Methods("GET")
	r.HandleFunc("/canvases/{id}", canvases.Update).Methods("PUT")
	r.HandleFunc("/canvases/{id}", canvases.Delete).Methods("DELETE")
	r.HandleFunc("/canvases/{id}/state", canvases.GetState).Methods("GET")
	r.HandleFunc("/canvases/{id}/state", canvases.PutState).Methods("PUT")
	r.HandleFunc("/canvases/{id}/state", canvases.PatchState).Methods("PATCH")

	if deps.Upload != nil {
		r.Handle("/api/upload", deps.Upload).Methods("POST")
	}
	if deps.Serve != nil {
		r.HandleFunc("/uploads/{filename}", deps.Serve.Upload).Methods("GET")
		r.HandleFunc("/thumbnails/{size}/{filename}", deps.Serve.Thumbnail).Methods("GET")
	}
	if deps.Generate != nil {
		r.Handle("/api/thumbnails/generate", deps.Generate).Methods("POST")
	}
	if deps.Maintenance != nil {
		r.HandleFunc("/database/cleanup", deps.Maintenance.Cleanup).Methods("POST")
		r.HandleFunc("/database/size", deps.Maintenance.Size).Methods("GET")
		r.HandleFunc("/debug/wipe-database", deps.Maintenance.Wipe).Methods("POST")
	}

	r.PathPrefix("/debug/pprof/").Handler(http.DefaultServeMux)

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ListenAndServe starts the server. If TLS is configured (tls_cert and
// tls_key), uses HTTPS.
func (s *Server) ListenAndServe() error {
	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	if tlsEnabled {
		certPath := expandPath(s.cfg.TLSCert)
		keyPath := expandPath(s.cfg.TLSKey)
		log.Printf("API server listening on https://%s (TLS enabled)", addr)
		return s.server.ListenAndServeTLS(certPath, keyPath)
	}

	log.Printf("API server listening on http://%s", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
