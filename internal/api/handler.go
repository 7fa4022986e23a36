package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"pausee/internal/engine"
	"pausee/internal/storage"
)

// Cycles is the scheduler as seen by the ops API.
type Cycles interface {
	Trigger() bool
	Last() (engine.CycleReport, bool)
}

type OpsHandler struct {
	Cycles Cycles
	Store  engine.StateStore
}

func NewOpsHandler(c Cycles, store engine.StateStore) *OpsHandler {
	return &OpsHandler{Cycles: c, Store: store}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Status returns the last cycle report, 204 before the first cycle finishes.
func (h *OpsHandler) Status(w http.ResponseWriter, _ *http.Request) {
	rep, ok := h.Cycles.Last()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// Paused lists the persisted paused records, smallest first.
func (h *OpsHandler) Paused(w http.ResponseWriter, r *http.Request) {
	set, err := h.Store.Load(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("load paused state")
		code := "storage_unavailable"
		if errors.Is(err, storage.ErrCorrupt) {
			code = "storage_corrupt"
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": code})
		return
	}
	writeJSON(w, http.StatusOK, set.Sorted())
}

// TriggerCycle queues a cycle; concurrent requests collapse into one run.
func (h *OpsHandler) TriggerCycle(w http.ResponseWriter, _ *http.Request) {
	queued := h.Cycles.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]bool{"queued": queued})
}
