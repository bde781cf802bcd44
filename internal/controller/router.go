package controller

import (
	"github.com/go-chi/chi/v5"
)

// Controllers groups the tenant-scoped API.
type Controllers struct {
	Campaigns *CampaignController
	Customers *CustomerController
	Orders    *OrderController
	Segments  *SegmentController
	Logs      *LogController
}

// Mount registers every tenant route under r, behind RequireTenant.
func (c *Controllers) Mount(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireTenant)
		r.Route("/campaigns", c.Campaigns.Routes)
		r.Route("/customers", c.Customers.Routes)
		r.Route("/orders", c.Orders.Routes)
		r.Route("/segment-rules", c.Segments.Routes)
		r.Route("/communication-logs", c.Logs.Routes)
	})
}
