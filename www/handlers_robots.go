package www

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (h *Handlers) apiListRobots(w http.ResponseWriter, r *http.Request) {
	h.jsonOK(w, h.engine.Register().Snapshot())
}

func (h *Handlers) apiGetRobot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, ok := h.engine.Register().Get(id)
	if !ok {
		h.jsonError(w, "robot not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, state)
}

func (h *Handlers) apiRobotHistory(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		h.jsonError(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	list, err := db.ListRobotRegistry()
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, list)
}

func (h *Handlers) apiAuditLog(w http.ResponseWriter, r *http.Request) {
	db := h.engine.DB()
	if db == nil {
		h.jsonError(w, "no database configured", http.StatusServiceUnavailable)
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if robot := r.URL.Query().Get("robot_id"); robot != "" {
		entries, err := db.ListEntityAudit("robot", robot)
		if err != nil {
			h.jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.jsonOK(w, entries)
		return
	}
	entries, err := db.ListAuditLog(limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.jsonOK(w, entries)
}

func (h *Handlers) apiEvictRobot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.engine.Evict(id, h.getUsername(r)) {
		h.jsonError(w, "robot not found", http.StatusNotFound)
		return
	}
	h.jsonOK(w, map[string]string{"status": "ok", "robot_id": id})
}
