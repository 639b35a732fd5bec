package handler

import (
	"net/http"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/money"
)

type requestUsedItemRequest struct {
	Tier      marketplace.AgentTier   `json:"tier"`
	Quality   marketplace.QualityTier `json:"quality"`
	BasePrice money.Amount            `json:"basePrice" validate:"gte=0"`
}

// RequestUsedItem handles POST /api/v1/marketplace/search.
func (d *Deps) RequestUsedItem(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[requestUsedItemRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.RequestUsedItem(events.RequestUsedItemParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		Tier:      body.Tier,
		Quality:   body.Quality,
		BasePrice: body.BasePrice,
	})
	writeResponse(w, resp)
}

type cancelSearchRequest struct {
	SearchID string `json:"searchId" validate:"required"`
}

// CancelSearch handles POST /api/v1/marketplace/search/cancel.
func (d *Deps) CancelSearch(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[cancelSearchRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.CancelSearch(events.CancelSearchParams{
		ConnID:   connIDFor(farmID),
		FarmID:   farmID,
		SearchID: body.SearchID,
	})
	writeResponse(w, resp)
}

type declineListingRequest struct {
	ListingID string `json:"listingId" validate:"required"`
}

// DeclineListing handles POST /api/v1/marketplace/listing/decline.
func (d *Deps) DeclineListing(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[declineListingRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.DeclineListing(events.DeclineListingParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		ListingID: body.ListingID,
	})
	writeResponse(w, resp)
}

type createSaleListingRequest struct {
	VehicleID  domain.VehicleId        `json:"vehicleId" validate:"required"`
	Tier       marketplace.AgentTier   `json:"tier"`
	Private    bool                    `json:"private"`
	PriceTier  marketplace.PriceTier   `json:"priceTier"`
	FairMarket money.Amount            `json:"fairMarket" validate:"gte=0"`
	RepairPct  float64                 `json:"repairPct" validate:"gte=0,lte=1"`
	PaintPct   float64                 `json:"paintPct" validate:"gte=0,lte=1"`
}

// CreateSaleListing handles POST /api/v1/marketplace/sale.
func (d *Deps) CreateSaleListing(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[createSaleListingRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.CreateSaleListing(events.CreateSaleListingParams{
		ConnID:     connIDFor(farmID),
		FarmID:     farmID,
		VehicleID:  body.VehicleID,
		Tier:       body.Tier,
		Private:    body.Private,
		PriceTier:  body.PriceTier,
		FairMarket: body.FairMarket,
		RepairPct:  body.RepairPct,
		PaintPct:   body.PaintPct,
	})
	writeResponse(w, resp)
}

type saleListingActionRequest struct {
	SaleID string `json:"saleId" validate:"required"`
}

// SaleListingAction handles POST /api/v1/marketplace/sale/action.
func (d *Deps) SaleListingAction(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[saleListingActionRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.SaleListingAction(events.SaleListingActionParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		SaleID: body.SaleID,
	})
	writeResponse(w, resp)
}

type modifyListingPriceRequest struct {
	SaleID   string       `json:"saleId" validate:"required"`
	NewPrice money.Amount `json:"newPrice" validate:"gte=0"`
}

// ModifyListingPrice handles POST /api/v1/marketplace/sale/price.
func (d *Deps) ModifyListingPrice(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[modifyListingPriceRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.ModifyListingPrice(events.ModifyListingPriceParams{
		ConnID:   connIDFor(farmID),
		FarmID:   farmID,
		SaleID:   body.SaleID,
		NewPrice: body.NewPrice,
	})
	writeResponse(w, resp)
}

type inspectListingRequest struct {
	ListingID string `json:"listingId" validate:"required"`
}

// InspectListing handles POST /api/v1/marketplace/listing/inspect.
func (d *Deps) InspectListing(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[inspectListingRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.InspectListing(events.InspectListingParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		ListingID: body.ListingID,
	})
	writeResponse(w, resp)
}

type negotiateListingRequest struct {
	ListingID string                        `json:"listingId" validate:"required"`
	Action    marketplace.NegotiationAction `json:"action"`
	OfferPct  float64                       `json:"offerPct" validate:"gte=0,lte=200"`
}

// NegotiateListing handles POST /api/v1/marketplace/listing/negotiate.
func (d *Deps) NegotiateListing(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[negotiateListingRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.NegotiateListing(events.NegotiateListingParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		ListingID: body.ListingID,
		Action:    body.Action,
		OfferPct:  body.OfferPct,
	})
	writeResponse(w, resp)
}

type purchaseListingRequest struct {
	ListingID string `json:"listingId" validate:"required"`
}

// PurchaseListing handles POST /api/v1/marketplace/listing/purchase.
func (d *Deps) PurchaseListing(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[purchaseListingRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.PurchaseListing(events.PurchaseListingParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		ListingID: body.ListingID,
	})
	writeResponse(w, resp)
}

type tradeInVehicleRequest struct {
	VehicleID domain.VehicleId `json:"vehicleId" validate:"required"`
	ListingID string           `json:"listingId" validate:"required"`
	OfferPct  float64          `json:"offerPct" validate:"gte=0,lte=1"`
}

// TradeInVehicle handles POST /api/v1/marketplace/trade-in.
func (d *Deps) TradeInVehicle(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[tradeInVehicleRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.TradeInVehicle(events.TradeInVehicleParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		VehicleID: body.VehicleID,
		ListingID: body.ListingID,
		OfferPct:  body.OfferPct,
	})
	writeResponse(w, resp)
}
