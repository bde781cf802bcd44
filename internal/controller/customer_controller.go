package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/unclebandit/campaign-delivery/internal/model"
	"github.com/unclebandit/campaign-delivery/internal/service"
)

type CustomerController struct {
	CustomerService *service.CustomerService
	LogService      *service.LogService
	OrderService    *service.OrderService
}

func (c *CustomerController) Routes(r chi.Router) {
	r.Post("/", c.CreateCustomer)
	r.Post("/bulk", c.ImportCustomers)
	r.Get("/", c.ListCustomers)
	r.Get("/{id}", c.GetCustomer)
	r.Put("/{id}", c.UpdateCustomer)
	r.Delete("/{id}", c.DeleteCustomer)
	r.Post("/{id}/purchases", c.RecordPurchase)
	r.Get("/{id}/logs", c.ListCustomerLogs)
}

func (c *CustomerController) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	var body service.CustomerInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	customer, err := c.CustomerService.CreateCustomer(r.Context(), UserID(r), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, customer)
}

func (c *CustomerController) ImportCustomers(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Customers []service.CustomerInput `json:"customers"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	customers, err := c.CustomerService.ImportCustomers(r.Context(), UserID(r), body.Customers)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, map[string]any{"imported": len(customers), "customers": customers})
}

func (c *CustomerController) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := c.CustomerService.ListCustomers(r.Context(), UserID(r))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, customers)
}

func (c *CustomerController) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := c.CustomerService.GetCustomer(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, customer)
}

func (c *CustomerController) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var body service.CustomerInput
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	customer, err := c.CustomerService.UpdateCustomer(r.Context(), UserID(r), chi.URLParam(r, "id"), body)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, customer)
}

func (c *CustomerController) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := c.CustomerService.DeleteCustomer(r.Context(), UserID(r), chi.URLParam(r, "id")); err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

// RecordPurchase places an item-less order for the amount and returns the
// customer with its new totals.
func (c *CustomerController) RecordPurchase(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Amount float64 `json:"amount"`
	}
	if err := DecodeJSON(r, &body); err != nil {
		RespondError(w, err)
		return
	}
	in := service.OrderInput{CustomerID: chi.URLParam(r, "id"), Total: body.Amount, Status: model.OrderStatusCompleted}
	_, customer, err := c.OrderService.AddOrder(r.Context(), UserID(r), in)
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, customer)
}

func (c *CustomerController) ListCustomerLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := c.LogService.ListByCustomer(r.Context(), UserID(r), chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, logs)
}
