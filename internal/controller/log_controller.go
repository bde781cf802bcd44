package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/service"
)

type LogController struct {
	LogService *service.LogService
}

func (c *LogController) Routes(r chi.Router) {
	r.Get("/", c.ListLogs)
	r.Get("/stats", c.Stats)
	r.Get("/{id}", c.GetLog)
	r.Delete("/{id}", c.DeleteLog)
}

func (c *LogController) ListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.LogService.ListLogs(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}

func (c *LogController) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.LogService.Stats(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (c *LogController) GetLog(w http.ResponseWriter, r *http.Request) {
	l, err := c.LogService.GetLog(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, l)
}

func (c *LogController) DeleteLog(w http.ResponseWriter, r *http.Request) {
	if err := c.LogService.DeleteLog(r.Context(), UserID(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
