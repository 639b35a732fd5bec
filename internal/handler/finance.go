package handler

import (
	"net/http"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/money"
)

type financeVehicleRequest struct {
	VehicleID   domain.VehicleId         `json:"vehicleId" validate:"required"`
	BasePrice   money.Amount             `json:"basePrice" validate:"gte=0"`
	DownPayment money.Amount             `json:"downPayment" validate:"gte=0"`
	CashBack    money.Amount             `json:"cashBack" validate:"gte=0"`
	TermMonths  int                      `json:"termMonths" validate:"gte=1"`
	Collateral  []finance.CollateralItem `json:"collateral"`
}

// FinanceVehicle handles POST /api/v1/finance/vehicle.
func (d *Deps) FinanceVehicle(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[financeVehicleRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.FinanceVehicle(events.FinanceVehicleParams{
		ConnID:      connIDFor(farmID),
		FarmID:      farmID,
		VehicleID:   body.VehicleID,
		BasePrice:   body.BasePrice,
		DownPayment: body.DownPayment,
		CashBack:    body.CashBack,
		TermMonths:  body.TermMonths,
		Collateral:  body.Collateral,
	})
	writeResponse(w, resp)
}

type financePaymentRequest struct {
	DealID string       `json:"dealId" validate:"required"`
	Amount money.Amount `json:"amount" validate:"gte=0"`
}

// FinancePayment handles POST /api/v1/finance/payment.
func (d *Deps) FinancePayment(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[financePaymentRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.FinancePayment(events.FinancePaymentParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		DealID: body.DealID,
		Amount: body.Amount,
	})
	writeResponse(w, resp)
}

type takeLoanRequest struct {
	Amount     money.Amount `json:"amount" validate:"gte=0"`
	TermMonths int          `json:"termMonths" validate:"gte=1"`
}

// TakeLoan handles POST /api/v1/finance/loan.
func (d *Deps) TakeLoan(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[takeLoanRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.TakeLoan(events.TakeLoanParams{
		ConnID:     connIDFor(farmID),
		FarmID:     farmID,
		Amount:     body.Amount,
		TermMonths: body.TermMonths,
	})
	writeResponse(w, resp)
}

type vanillaLoanPaymentRequest struct {
	ExtID  string `json:"extId" validate:"required"`
	OnTime bool   `json:"onTime"`
}

// VanillaLoanPayment handles POST /api/v1/finance/vanilla-loan-payment.
func (d *Deps) VanillaLoanPayment(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[vanillaLoanPaymentRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.VanillaLoanPayment(events.VanillaLoanPaymentParams{
		ConnID: connIDFor(farmID),
		FarmID: farmID,
		ExtID:  body.ExtID,
		OnTime: body.OnTime,
	})
	writeResponse(w, resp)
}

type leaseVehicleRequest struct {
	VehicleID      domain.VehicleId `json:"vehicleId" validate:"required"`
	ResidualValue  money.Amount     `json:"residualValue" validate:"gte=0"`
	Deposit        money.Amount     `json:"deposit" validate:"gte=0"`
	MonthlyPayment money.Amount     `json:"monthlyPayment" validate:"gte=0"`
	TermMonths     int              `json:"termMonths" validate:"gte=1"`
}

// LeaseVehicle handles POST /api/v1/finance/lease.
func (d *Deps) LeaseVehicle(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[leaseVehicleRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.LeaseVehicle(events.LeaseVehicleParams{
		ConnID:         connIDFor(farmID),
		FarmID:         farmID,
		VehicleID:      body.VehicleID,
		ResidualValue:  body.ResidualValue,
		Deposit:        body.Deposit,
		MonthlyPayment: body.MonthlyPayment,
		TermMonths:     body.TermMonths,
	})
	writeResponse(w, resp)
}

type leaseEndRequest struct {
	DealID         string              `json:"dealId" validate:"required"`
	Choice         finance.LeaseChoice `json:"choice"`
	Damage         float64             `json:"damage" validate:"gte=0"`
	EquityRollover money.Amount        `json:"equityRollover" validate:"gte=0"`
}

// LeaseEnd handles POST /api/v1/finance/lease/end.
func (d *Deps) LeaseEnd(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[leaseEndRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.LeaseEnd(events.LeaseEndParams{
		ConnID:         connIDFor(farmID),
		FarmID:         farmID,
		DealID:         body.DealID,
		Choice:         body.Choice,
		Damage:         body.Damage,
		EquityRollover: body.EquityRollover,
	})
	writeResponse(w, resp)
}

type terminateLeaseRequest struct {
	DealID    string       `json:"dealId" validate:"required"`
	BasePrice money.Amount `json:"basePrice" validate:"gte=0"`
	Damage    float64      `json:"damage" validate:"gte=0"`
}

// TerminateLease handles POST /api/v1/finance/lease/terminate.
func (d *Deps) TerminateLease(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[terminateLeaseRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.TerminateLease(events.TerminateLeaseParams{
		ConnID:    connIDFor(farmID),
		FarmID:    farmID,
		DealID:    body.DealID,
		BasePrice: body.BasePrice,
		Damage:    body.Damage,
	})
	writeResponse(w, resp)
}

type leaseRenewalRequest struct {
	DealID         string       `json:"dealId" validate:"required"`
	EquityRollover money.Amount `json:"equityRollover" validate:"gte=0"`
}

// LeaseRenewal handles POST /api/v1/finance/lease/renew.
func (d *Deps) LeaseRenewal(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[leaseRenewalRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.LeaseRenewal(events.LeaseRenewalParams{
		ConnID:         connIDFor(farmID),
		FarmID:         farmID,
		DealID:         body.DealID,
		EquityRollover: body.EquityRollover,
	})
	writeResponse(w, resp)
}

type setPaymentConfigRequest struct {
	DealID     string              `json:"dealId" validate:"required"`
	Mode       finance.PaymentMode `json:"mode"`
	Multiplier float64             `json:"multiplier" validate:"gte=0"`
	Custom     money.Amount        `json:"custom" validate:"gte=0"`
}

// SetPaymentConfig handles POST /api/v1/finance/payment-config.
func (d *Deps) SetPaymentConfig(w http.ResponseWriter, r *http.Request) {
	farmID, ok := farmIDFromRequest(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthenticated"})
		return
	}
	body, err := decodeAndValidate[setPaymentConfigRequest](r, d.Validate)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	resp := d.Dispatcher.SetPaymentConfig(events.SetPaymentConfigParams{
		ConnID:     connIDFor(farmID),
		FarmID:     farmID,
		DealID:     body.DealID,
		Mode:       body.Mode,
		Multiplier: body.Multiplier,
		Custom:     body.Custom,
	})
	writeResponse(w, resp)
}
