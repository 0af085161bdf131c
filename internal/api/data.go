package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/threadsight/threadsight/internal/models"
	"github.com/threadsight/threadsight/internal/runstore"
)

// DataHandler serves query endpoints against published run snapshots. All
// reads go to the latest run of the requested source.
type DataHandler struct {
	store  *runstore.Store
	logger *slog.Logger
}

// NewDataHandler creates the snapshot query handler.
func NewDataHandler(store *runstore.Store, logger *slog.Logger) *DataHandler {
	return &DataHandler{store: store, logger: logger}
}

// Sources lists every source with at least one published run.
func (h *DataHandler) Sources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"sources": h.store.Sources(),
	})
}

// Snapshot returns the full latest snapshot for a source.
func (h *DataHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, snap)
}

// Metadata returns only the metadata block of the latest snapshot.
func (h *DataHandler) Metadata(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	meta, err := h.store.LatestMetadata(source)
	if err != nil {
		h.storeError(w, source, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, meta)
}

// Categories returns the per-category statistics of the latest snapshot.
func (h *DataHandler) Categories(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"source":     snap.Metadata.Source,
		"categories": snap.Categories,
	})
}

// Insights returns all insights of the latest snapshot.
func (h *DataHandler) Insights(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w, r)
	if !ok {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"source":   snap.Metadata.Source,
		"insights": snap.Insights,
	})
}

// Insight returns a single insight by ID from the latest snapshot.
func (h *DataHandler) Insight(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.latest(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	for _, in := range snap.Insights {
		if in.ID == id {
			writeJSON(w, h.logger, http.StatusOK, in)
			return
		}
	}
	writeError(w, h.logger, http.StatusNotFound, "insight not found: "+id)
}

// History lists all published runs for a source, oldest first.
func (h *DataHandler) History(w http.ResponseWriter, r *http.Request) {
	source := r.PathValue("source")

	runs, err := h.store.History(source)
	if err != nil {
		h.storeError(w, source, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{
		"source": source,
		"runs":   runs,
	})
}

func (h *DataHandler) latest(w http.ResponseWriter, r *http.Request) (*models.Snapshot, bool) {
	source := r.PathValue("source")

	s, err := h.store.Latest(source)
	if err != nil {
		h.storeError(w, source, err)
		return nil, false
	}
	return s, true
}

func (h *DataHandler) storeError(w http.ResponseWriter, source string, err error) {
	if errors.Is(err, runstore.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, "no published runs for source: "+source)
		return
	}
	h.logger.Error("snapshot read failed", "source", source, "error", err)
	writeError(w, h.logger, http.StatusInternalServerError, "failed to load snapshot")
}
