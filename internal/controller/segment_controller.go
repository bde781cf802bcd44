package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/service"
)

type SegmentController struct {
	SegmentService *service.SegmentService
}

func (c *SegmentController) Routes(r chi.Router) {
	r.Post("/", c.CreateRule)
	r.Get("/", c.ListRules)
	r.Get("/{id}", c.GetRule)
	r.Put("/{id}", c.UpdateRule)
	r.Delete("/{id}", c.DeleteRule)
	r.Get("/{id}/customers", c.SegmentCustomers)
}

func (c *SegmentController) CreateRule(w http.ResponseWriter, r *http.Request) {
	var body service.SegmentRuleInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	rule, err := c.SegmentService.CreateRule(r.Context(), UserID(r), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, rule)
}

func (c *SegmentController) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := c.SegmentService.ListRules(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rules)
}

func (c *SegmentController) GetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := c.SegmentService.GetRule(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rule)
}

func (c *SegmentController) UpdateRule(w http.ResponseWriter, r *http.Request) {
	var body service.SegmentRuleInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	rule, err := c.SegmentService.UpdateRule(r.Context(), UserID(r), chi.URLParam(r, "id"), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, rule)
}

func (c *SegmentController) DeleteRule(w http.ResponseWriter, r *http.Request) {
	if err := c.SegmentService.DeleteRule(r.Context(), UserID(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// SegmentCustomers evaluates the rule against the caller's own customers.
func (c *SegmentController) SegmentCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := c.SegmentService.CustomersForSegment(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, customers)
}
