package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/service"
)

type OrderController struct {
	OrderService *service.OrderService
}

func (c *OrderController) Routes(r chi.Router) {
	r.Post("/", c.AddOrder)
	r.Post("/bulk", c.ImportOrders)
	r.Get("/", c.ListOrders)
	r.Get("/customer/{customerId}", c.ListCustomerOrders)
	r.Get("/{id}", c.GetOrder)
	r.Put("/{id}", c.UpdateOrder)
	r.Delete("/{id}", c.DeleteOrder)
}

func (c *OrderController) AddOrder(w http.ResponseWriter, r *http.Request) {
	var body service.OrderInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	order, customer, err := c.OrderService.AddOrder(r.Context(), UserID(r), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"order": order, "customer": customer})
}

func (c *OrderController) ImportOrders(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Orders []service.OrderInput `json:"orders"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	orders, err := c.OrderService.ImportOrders(r.Context(), UserID(r), body.Orders)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"imported": len(orders), "orders": orders})
}

func (c *OrderController) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := c.OrderService.ListOrders(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, orders)
}

func (c *OrderController) ListCustomerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := c.OrderService.ListCustomerOrders(r.Context(), UserID(r), chi.URLParam(r, "customerId"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, orders)
}

func (c *OrderController) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := c.OrderService.GetOrder(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

func (c *OrderController) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var body service.OrderInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	order, err := c.OrderService.UpdateOrder(r.Context(), UserID(r), chi.URLParam(r, "id"), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, order)
}

func (c *OrderController) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := c.OrderService.DeleteOrder(r.Context(), UserID(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}
