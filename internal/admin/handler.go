// Package admin serves the operator endpoints on a separate port.
package admin

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/andresuchdata/order-tracker/internal/cache"
	"github.com/andresuchdata/order-tracker/internal/dataset"
	"github.com/andresuchdata/order-tracker/internal/drive"
	"github.com/andresuchdata/order-tracker/internal/storage"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// SnapshotController is satisfied by *cache.SnapshotCache.
type SnapshotController interface {
	Load(ctx context.Context) (*dataset.Dataset, error)
	Invalidate(ctx context.Context)
	Status() cache.SnapshotStatus
}

// FileBrowser is satisfied by *drive.Service.
type FileBrowser interface {
	ListFiles(ctx context.Context, folderID string) ([]*drive.File, error)
	FindFolderByPath(ctx context.Context, path string) (string, error)
}

type Handler struct {
	snapshots SnapshotController
	files     FileBrowser
	objects   storage.ObjectStorage
}

// NewHandler builds the admin handler. files and objects may be nil when the
// deployment does not read from Drive or a bucket.
func NewHandler(snapshots SnapshotController, files FileBrowser, objects storage.ObjectStorage) *Handler {
	return &Handler{
		snapshots: snapshots,
		files:     files,
		objects:   objects,
	}
}

func (h *Handler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.Health).Methods("GET")
	router.HandleFunc("/admin/cache", h.CacheStatus).Methods("GET")
	router.HandleFunc("/admin/cache/refresh", h.RefreshCache).Methods("POST")
	router.HandleFunc("/admin/drive/files", h.ListDriveFiles).Methods("GET")
	router.HandleFunc("/admin/storage/objects", h.ListObjects).Methods("GET")
}

// NewRouter returns a mux router with every admin route registered.
func NewRouter(h *Handler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) CacheStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshots.Status())
}

// RefreshCache drops the current snapshot and loads a new one right away.
// A failed reload answers 502 with the status so the operator sees the error.
func (h *Handler) RefreshCache(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.snapshots.Invalidate(r.Context())

	_, err := h.snapshots.Load(r.Context())
	status := h.snapshots.Status()
	if err != nil {
		log.Warn().Err(err).Msg("admin: cache refresh failed")
		writeJSON(w, http.StatusBadGateway, status)
		return
	}

	log.Info().
		Int("rows", status.Rows).
		Dur("took", time.Since(start)).
		Msg("admin: cache refreshed")
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) ListDriveFiles(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		http.Error(w, "drive source is not configured", http.StatusNotFound)
		return
	}

	query := r.URL.Query()
	folderID := query.Get("folderId")
	folderPath := query.Get("path")

	var err error
	if folderPath != "" {
		folderID, err = h.files.FindFolderByPath(r.Context(), folderPath)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
	}
	files, err := h.files.ListFiles(r.Context(), folderID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, files)
}

func (h *Handler) ListObjects(w http.ResponseWriter, r *http.Request) {
	if h.objects == nil {
		http.Error(w, "s3 source is not configured", http.StatusNotFound)
		return
	}

	objects, err := h.objects.ListObjects(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, objects)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("admin: failed to encode response")
	}
}
