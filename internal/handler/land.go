package handler

import (
	"net/http"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/money"
)

type purchaseLandCashRequest struct {
	LandID domain.LandId `json:"landId" validate:"required"`
	Price  money.Amount  `json:"price" validate:"gte=0"`
}

// PurchaseLandCash handles POST /api/v1/land/purchase.
func (d *Deps) PurchaseLandCash(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[purchaseLandCashRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.PurchaseLandCash(events.PurchaseLandCashParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		LandID: body.LandID,
		Price:  body.Price,
	})
	writeResponse(w, resp)
}

type landLeaseRequest struct {
	LandID         domain.LandId `json:"landId" validate:"required"`
	MonthlyPayment money.Amount  `json:"monthlyPayment" validate:"gte=0"`
	TermMonths     int           `json:"termMonths" validate:"gte=1"`
	Price          money.Amount  `json:"price" validate:"gte=0"`
}

// LandLease handles POST /api/v1/land/lease.
func (d *Deps) LandLease(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[landLeaseRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.LandLease(events.LandLeaseParams{
		ConnID:         connIDFor(farmID),
		FarmID:         farmID,
		LandID:         body.LandID,
		MonthlyPayment: body.MonthlyPayment,
		TermMonths:     body.TermMonths,
		Price:          body.Price,
	})
	writeResponse(w, resp)
}

type landLeaseBuyoutRequest struct {
	DealID string `json:"dealId" validate:"required"`
}

// LandLeaseBuyout handles POST /api/v1/land/lease/buyout.
func (d *Deps) LandLeaseBuyout(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[landLeaseBuyoutRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.LandLeaseBuyout(events.LandLeaseBuyoutParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		DealID: body.DealID,
	})
	writeResponse(w, resp)
}
