package marketplace

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/rng"
)

// PriceTier is the seller's ask class (spec.md §4.4).
type PriceTier int

const (
	Quick PriceTier = iota
	MarketTier
	Premium
)

// SaleStatus is the lifecycle of a seller-side SaleListing.
type SaleStatus int

const (
	SaleActive SaleStatus = iota
	SaleSold
	SaleExpired
	SaleCancelled
)

// Offer is a single bid received against a SaleListing (kept for parity with
// the buy-side Listing.negotiation trail; the sale flow itself resolves in
// one roll per spec.md §4.4, but individual offers are recorded for UI/report
// purposes).
type Offer struct {
	AmountPct float64
	At        domain.Millis
}

// SaleListing is the seller-side counterpart to Listing (spec.md §3).
type SaleListing struct {
	ID            string
	FarmID        domain.FarmId
	VehicleID     domain.VehicleId
	AgentTier     AgentTier
	PriceTier     PriceTier
	AskPrice      money.Amount
	FairMarket    money.Amount
	Status        SaleStatus
	CreatedAt     domain.Millis
	CompletesAt   domain.Millis
	Offers        []Offer
	extendedOnce  bool
}

type saleAgentParams struct {
	feePct              float64
	minMonths, maxMonths int
	baseSuccessPct      int
}

func saleAgentFor(t AgentTier) saleAgentParams {
	// Covers the three agent tiers of spec.md §4.4's table; the fourth,
	// Private, is PrivateSaleParams below, which CreateSaleListing selects
	// when private is true.
	switch t {
	case Local:
		return saleAgentParams{feePct: 0.02, minMonths: 1, maxMonths: 2, baseSuccessPct: 70}
	case Regional:
		return saleAgentParams{feePct: 0.04, minMonths: 2, maxMonths: 4, baseSuccessPct: 85}
	default: // National
		return saleAgentParams{feePct: 0.06, minMonths: 4, maxMonths: 6, baseSuccessPct: 95}
	}
}

// PrivateSaleParams is the zero-fee, 3-6 month private listing class, kept
// distinct from AgentTier since spec.md §4.4 lists it alongside, not inside,
// the three agent tiers.
var PrivateSaleParams = saleAgentParams{feePct: 0, minMonths: 3, maxMonths: 6, baseSuccessPct: 50}

func priceTierModifier(t PriceTier) (priceLo, priceHi float64, successDelta int) {
	switch t {
	case Quick:
		return 0.75, 0.85, 15
	case Premium:
		return 1.15, 1.30, -20
	default: // MarketTier
		return 0.95, 1.05, 0
	}
}

// ErrPremiumRequirementsNotMet is returned when a Premium-tier sale listing
// is requested without repair>=95% and paint>=80%.
type ErrPremiumRequirementsNotMet struct{}

func (ErrPremiumRequirementsNotMet) Error() string {
	return "marketplace: premium price tier requires repair>=95% and paint>=80%"
}

// CreateSaleListing opens a seller-side sale for vehicleID. private=true
// selects the zero-fee Private class instead of tier's agent fee schedule.
func (m *Market) CreateSaleListing(farmID domain.FarmId, vehicleID domain.VehicleId, tier AgentTier, private bool, priceTier PriceTier, fairMarket money.Amount, repairPct, paintPct float64, now domain.Millis) (*SaleListing, error) {
	if priceTier == Premium && (repairPct < 0.95 || paintPct < 0.80) {
		return nil, ErrPremiumRequirementsNotMet{}
	}

	params := saleAgentFor(tier)
	if private {
		params = PrivateSaleParams
	}
	priceLo, priceHi, _ := priceTierModifier(priceTier)

	nonce := m.nextNonce()
	priceFrac := rng.RollRange(m.seed, "sale.priceFrac", nonce, priceLo, priceHi)
	months := rng.RollInt(m.seed, "sale.duration", nonce+1, params.minMonths, params.maxMonths)

	s := &SaleListing{
		ID:          uuid.NewString(),
		FarmID:      farmID,
		VehicleID:   vehicleID,
		AgentTier:   tier,
		PriceTier:   priceTier,
		AskPrice:    fairMarket.Mul(priceFrac),
		FairMarket:  fairMarket,
		Status:      SaleActive,
		CreatedAt:   now,
		CompletesAt: now.Add(domain.Millis(months) * 30 * domain.Day),
	}
	m.sales[s.ID] = s
	return s, nil
}

// SaleListingByID looks up a sale listing by id.
func (m *Market) SaleListingByID(id string) (*SaleListing, error) {
	s, ok := m.sales[id]
	if !ok {
		return nil, fmt.Errorf("marketplace: unknown sale listing %q", id)
	}
	return s, nil
}

// CancelSaleListing withdraws an active sale listing.
func (m *Market) CancelSaleListing(id string) error {
	s, err := m.SaleListingByID(id)
	if err != nil {
		return err
	}
	if s.Status != SaleActive {
		return fmt.Errorf("marketplace: sale listing %q is not active", id)
	}
	s.Status = SaleCancelled
	return nil
}

// SaleResult reports the outcome of a sale-window resolution.
type SaleResult struct {
	Sold     bool
	Extended bool
	Proceeds money.Amount
	Fee      money.Amount
}

// TickSales resolves every sale listing whose window has elapsed: rolls
// success against the tier/price-tier-modified chance; on failure extends
// the window once (spec.md §4.4), then expires it.
func (m *Market) TickSales(now domain.Millis) map[string]SaleResult {
	results := make(map[string]SaleResult)
	for id, s := range m.sales {
		if s.Status != SaleActive || now.Before(s.CompletesAt) {
			continue
		}
		params := saleAgentFor(s.AgentTier)
		_, _, successDelta := priceTierModifier(s.PriceTier)
		successPct := params.baseSuccessPct + successDelta
		if successPct < 0 {
			successPct = 0
		}
		if successPct > 100 {
			successPct = 100
		}

		nonce := m.nextNonce()
		roll := rng.RollInt(m.seed, "sale.success", nonce, 1, 100)
		s.Offers = append(s.Offers, Offer{AmountPct: float64(roll), At: now})
		if roll <= successPct {
			fee := s.AskPrice.Mul(params.feePct)
			s.Status = SaleSold
			results[id] = SaleResult{Sold: true, Proceeds: s.AskPrice - fee, Fee: fee}
			continue
		}

		if !s.extendedOnce {
			s.extendedOnce = true
			months := rng.RollInt(m.seed, "sale.extend", nonce+1, params.minMonths, params.maxMonths)
			s.CompletesAt = now.Add(domain.Millis(months) * 30 * domain.Day)
			results[id] = SaleResult{Extended: true}
			continue
		}

		s.Status = SaleExpired
		results[id] = SaleResult{}
	}
	return results
}
