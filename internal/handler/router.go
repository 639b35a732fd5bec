package handler

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts every spec.md §6 operation as a POST route under
// /api/v1, grouped the way the teacher's cmd/server mounts auctions/bids/
// vehicles as separate sub-routers.
func (d *Deps) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/finance", func(r chi.Router) {
			r.Post("/vehicle", d.FinanceVehicle)
			r.Post("/payment", d.FinancePayment)
			r.Post("/loan", d.TakeLoan)
			r.Post("/vanilla-loan-payment", d.VanillaLoanPayment)
			r.Post("/lease", d.LeaseVehicle)
			r.Post("/lease/end", d.LeaseEnd)
			r.Post("/lease/terminate", d.TerminateLease)
			r.Post("/lease/renew", d.LeaseRenewal)
			r.Post("/payment-config", d.SetPaymentConfig)
		})
		r.Route("/land", func(r chi.Router) {
			r.Post("/purchase", d.PurchaseLandCash)
			r.Post("/lease", d.LandLease)
			r.Post("/lease/buyout", d.LandLeaseBuyout)
		})
		r.Route("/marketplace", func(r chi.Router) {
			r.Post("/search", d.RequestUsedItem)
			r.Post("/search/cancel", d.CancelSearch)
			r.Post("/listing/decline", d.DeclineListing)
			r.Post("/listing/inspect", d.InspectListing)
			r.Post("/listing/negotiate", d.NegotiateListing)
			r.Post("/listing/purchase", d.PurchaseListing)
			r.Post("/sale", d.CreateSaleListing)
			r.Post("/sale/action", d.SaleListingAction)
			r.Post("/sale/price", d.ModifyListingPrice)
			r.Post("/trade-in", d.TradeInVehicle)
		})
		r.Route("/service", func(r chi.Router) {
			r.Post("/repair", d.RepairVehicle)
			r.Post("/field-repair", d.FieldRepair)
			r.Post("/fluids", d.RefillFluids)
			r.Post("/tires", d.ReplaceTires)
			r.Post("/restoration/start", d.StartRestoration)
			r.Post("/restoration/stop", d.StopRestoration)
			r.Post("/restoration/cooldown", d.SetRestorationCooldown)
			r.Post("/truck/discovery", d.ServiceTruckDiscovery)
			r.Post("/truck/purchase", d.ServiceTruckPurchase)
		})
	})
}
