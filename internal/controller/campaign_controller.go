// internal/controller/campaign_controller.go
package controller

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/service"
)

type CampaignController struct {
	CampaignService *service.CampaignService
	LogService      *service.LogService
}

func (c *CampaignController) Routes(r chi.Router) {
	r.Post("/", c.CreateCampaign)
	r.Get("/", c.ListCampaigns)
	r.Get("/with-stats", c.ListCampaignsWithStats)
	r.Get("/{id}", c.GetCampaign)
	r.Put("/{id}", c.UpdateCampaign)
	r.Delete("/{id}", c.DeleteCampaign)
	r.Get("/{id}/stats", c.GetCampaignStats)
	r.Get("/{id}/logs", c.ListCampaignLogs)
	r.Post("/{id}/send", c.SendCampaign)
	r.Post("/{id}/personalized-preview", c.PersonalizedPreview)
}

func (c *CampaignController) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CampaignInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}

	campaign, err := c.CampaignService.CreateCampaign(r.Context(), UserID(r), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, campaign)
}

func (c *CampaignController) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))

	campaigns, pagination, err := c.CampaignService.ListCampaigns(r.Context(), UserID(r), page, pageSize)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"data":       campaigns,
		"pagination": pagination, // total_count, total_pages, page, page_size
	})
}

func (c *CampaignController) ListCampaignsWithStats(w http.ResponseWriter, r *http.Request) {
	campaigns, err := c.CampaignService.ListCampaignsWithStats(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, campaigns)
}

func (c *CampaignController) GetCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := c.CampaignService.GetCampaign(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	var body service.CampaignInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	campaign, err := c.CampaignService.UpdateCampaign(r.Context(), UserID(r), chi.URLParam(r, "id"), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, campaign)
}

func (c *CampaignController) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := c.CampaignService.DeleteCampaign(r.Context(), UserID(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (c *CampaignController) GetCampaignStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.CampaignService.GetCampaignStats(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

func (c *CampaignController) ListCampaignLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.LogService.ListByCampaign(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}

// SendCampaign returns once every customer's send was accepted or rejected;
// delivery outcomes arrive later.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	result, err := c.CampaignService.SendCampaignMessages(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

func (c *CampaignController) PersonalizedPreview(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CustomerID       string  `json:"customer_id"`
		OverrideTemplate *string `json:"override_template"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}

	rendered, err := c.CampaignService.RenderPreview(r.Context(), UserID(r), chi.URLParam(r, "id"), body.CustomerID, body.OverrideTemplate)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"rendered_message": rendered,
		"used_template":    body.OverrideTemplate,
		"customer_id":      body.CustomerID,
	})
}
