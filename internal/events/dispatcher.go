package events

import (
	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

// Dispatcher is the single request/response boundary (spec.md §4.7): every
// client request passes through one of its methods, which validates, then
// mutates the subsystem aggregates below that the request concerns (some
// requests touch more than one, e.g. a loan updates finance and credit),
// then returns a Response. No handler ever touches host state or another subsystem without
// going through this layer, mirroring the teacher's handler package pattern
// of depending on narrow collaborator interfaces rather than a god object.
type Dispatcher struct {
	Host        hostapi.HostGameApi
	Credit      *credit.Bureau
	Reliability *reliability.Engine
	Finance     *finance.Ledger
	Market      *marketplace.Market
	Service     *service.Engine
}

// New wires a Dispatcher from the five core subsystem aggregates plus the
// host boundary.
func New(host hostapi.HostGameApi, bureau *credit.Bureau, rel *reliability.Engine, ledger *finance.Ledger, market *marketplace.Market, svc *service.Engine) *Dispatcher {
	return &Dispatcher{Host: host, Credit: bureau, Reliability: rel, Finance: ledger, Market: market, Service: svc}
}

// FinanceVehicleParams carries the decoded payload for KindFinanceVehicle.
type FinanceVehicleParams struct {
	ConnID          string
	FarmID          domain.FarmId
	VehicleID       domain.VehicleId
	BasePrice       money.Amount
	DownPayment     money.Amount
	CashBack        money.Amount
	TermMonths      int
	Collateral      []finance.CollateralItem
}

// FinanceVehicle opens a VehicleFinance deal once ownership, credit
// eligibility, and the numeric caps all clear (spec.md §4.5/§4.7).
func (d *Dispatcher) FinanceVehicle(p FinanceVehicleParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("basePrice", p.BasePrice); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkTermMonths(p.TermMonths); e != nil {
		return Fail(p.FarmID, e)
	}
	financed := p.BasePrice - p.DownPayment
	if e := checkLoanAmount(financed); e != nil {
		return Fail(p.FarmID, e)
	}
	score, err := d.Credit.Score(int64(p.FarmID))
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_credit_account"))
	}
	if e := checkCashBack(p.BasePrice, p.DownPayment, p.CashBack, score); e != nil {
		return Fail(p.FarmID, e)
	}
	elig, err := d.Credit.CanFinance(int64(p.FarmID), credit.FinanceVehicle, p.TermMonths)
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_credit_account"))
	}
	if !elig.Allowed {
		return Fail(p.FarmID, newErr(IneligibleCredit, "error.credit_ineligible"))
	}
	adj, _ := d.Credit.InterestAdjustmentPct(int64(p.FarmID))
	baseRate := 6.0 + float64(adj)

	deal, err := d.Finance.CreateDeal(finance.NewDealParams{
		Kind:            finance.VehicleFinance,
		FarmID:          p.FarmID,
		Now:             d.Host.Now(),
		OriginalAmount:  financed - p.CashBack,
		InterestRatePct: baseRate,
		TermMonths:      p.TermMonths,
		MonthlyPayment:  (financed - p.CashBack).Mul(1.0 / float64(p.TermMonths)),
		Collateral:      p.Collateral,
		VehicleID:       &p.VehicleID,
	})
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidParameter, "error.invalid_term"))
	}
	if p.CashBack > 0 {
		_ = d.Host.AddMoney(p.FarmID, p.CashBack, "finance.cash_back")
	}
	_ = d.Credit.RecordEvent(int64(p.FarmID), credit.LoanTaken, int64(d.Host.Now()), deal.ID)
	return Ok(p.FarmID, "deal.created", deal.ID)
}

// FinancePaymentParams carries the decoded payload for KindFinancePayment.
type FinancePaymentParams struct {
	ConnID string
	FarmID domain.FarmId
	DealID string
	Amount money.Amount
}

// FinancePayment applies an out-of-cycle prepayment against an active deal.
func (d *Dispatcher) FinancePayment(p FinancePaymentParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("amount", p.Amount); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	if d.Host.FarmMoney(p.FarmID) < p.Amount {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	penalty, err := d.Finance.Prepay(p.DealID, p.Amount)
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	_ = d.Host.AddMoney(p.FarmID, -(p.Amount + penalty), "finance.prepay")
	if deal.Status == finance.Completed {
		_ = d.Credit.RecordEvent(int64(p.FarmID), credit.PaymentEarlyPayoff, int64(d.Host.Now()), p.DealID)
	}
	return Ok(p.FarmID, "deal.payment_applied", p.DealID)
}

// TakeLoanParams carries the decoded payload for KindTakeLoan.
type TakeLoanParams struct {
	ConnID     string
	FarmID     domain.FarmId
	Amount     money.Amount
	TermMonths int
}

// TakeLoan opens an unsecured CashLoan deal, crediting the farm immediately.
func (d *Dispatcher) TakeLoan(p TakeLoanParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkLoanAmount(p.Amount); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkTermMonths(p.TermMonths); e != nil {
		return Fail(p.FarmID, e)
	}
	elig, err := d.Credit.CanFinance(int64(p.FarmID), credit.FinanceCashLoan, p.TermMonths)
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_credit_account"))
	}
	if !elig.Allowed {
		return Fail(p.FarmID, newErr(IneligibleCredit, "error.credit_ineligible"))
	}
	adj, _ := d.Credit.InterestAdjustmentPct(int64(p.FarmID))
	deal, err := d.Finance.CreateDeal(finance.NewDealParams{
		Kind:            finance.CashLoan,
		FarmID:          p.FarmID,
		Now:             d.Host.Now(),
		OriginalAmount:  p.Amount,
		InterestRatePct: 9.0 + float64(adj),
		TermMonths:      p.TermMonths,
		MonthlyPayment:  p.Amount.Mul(1.0 / float64(p.TermMonths)),
	})
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidParameter, "error.invalid_term"))
	}
	_ = d.Host.AddMoney(p.FarmID, p.Amount, "finance.loan_disbursed")
	_ = d.Credit.RecordEvent(int64(p.FarmID), credit.LoanTaken, int64(d.Host.Now()), deal.ID)
	return Ok(p.FarmID, "deal.created", deal.ID)
}

// VanillaLoanPaymentParams carries the decoded payload for
// KindVanillaLoanPayment (the host game's own built-in loan system, bridged
// into the credit bureau via ExternalBridge so it affects one unified score).
type VanillaLoanPaymentParams struct {
	ConnID  string
	FarmID  domain.FarmId
	ExtID   string
	OnTime  bool
}

// VanillaLoanPayment reports a payment event against an external (host
// native) loan previously registered with RegisterExternal.
func (d *Dispatcher) VanillaLoanPayment(p VanillaLoanPaymentParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	var err error
	if p.OnTime {
		err = d.Credit.ReportExternalPayment(p.ExtID, int64(d.Host.Now()))
	} else {
		err = d.Credit.ReportExternalDefault(p.ExtID, int64(d.Host.Now()), true)
	}
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_external_deal"))
	}
	return Ok(p.FarmID, "deal.payment_applied", p.ExtID)
}

// LeaseVehicleParams carries the decoded payload for KindLeaseVehicle.
type LeaseVehicleParams struct {
	ConnID        string
	FarmID        domain.FarmId
	VehicleID     domain.VehicleId
	ResidualValue money.Amount
	Deposit       money.Amount
	MonthlyPayment money.Amount
	TermMonths    int
}

// LeaseVehicle opens a VehicleLease deal after collecting the deposit.
func (d *Dispatcher) LeaseVehicle(p LeaseVehicleParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkTermMonths(p.TermMonths); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkMonthlyPayment(p.MonthlyPayment); e != nil {
		return Fail(p.FarmID, e)
	}
	if d.Host.FarmMoney(p.FarmID) < p.Deposit {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	deal, err := d.Finance.CreateDeal(finance.NewDealParams{
		Kind:            finance.VehicleLease,
		FarmID:          p.FarmID,
		Now:             d.Host.Now(),
		OriginalAmount:  p.ResidualValue,
		TermMonths:      p.TermMonths,
		MonthlyPayment:  p.MonthlyPayment,
		ResidualValue:   p.ResidualValue,
		SecurityDeposit: p.Deposit,
		VehicleID:       &p.VehicleID,
	})
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidParameter, "error.invalid_term"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Deposit, "finance.lease_deposit")
	return Ok(p.FarmID, "deal.created", deal.ID)
}

// LeaseEndParams carries the decoded payload for KindLeaseEnd.
type LeaseEndParams struct {
	ConnID         string
	FarmID         domain.FarmId
	DealID         string
	Choice         finance.LeaseChoice
	Damage         float64
	EquityRollover money.Amount
}

// LeaseEnd resolves a lease's term-end decision (return/buyout/renew).
func (d *Dispatcher) LeaseEnd(p LeaseEndParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkFloat("damage", p.Damage); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	res, err := d.Finance.ResolveLeaseEnd(p.DealID, p.Choice, p.Damage, p.EquityRollover)
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	if res.NetDue > 0 && d.Host.FarmMoney(p.FarmID) < res.NetDue {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -res.NetDue, "finance.lease_end")
	if res.Choice == finance.LeaseReturn && deal.VehicleID != nil {
		_ = d.Host.RemoveVehicle(*deal.VehicleID)
	}
	return Ok(p.FarmID, "deal.lease_resolved", p.DealID)
}

// TerminateLeaseParams carries the decoded payload for KindTerminateLease.
type TerminateLeaseParams struct {
	ConnID    string
	FarmID    domain.FarmId
	DealID    string
	BasePrice money.Amount
	Damage    float64
}

// TerminateLease ends a lease early, charging the damage penalty plus fee.
func (d *Dispatcher) TerminateLease(p TerminateLeaseParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	res, err := d.Finance.TerminateLease(p.DealID, p.BasePrice, p.Damage)
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	if d.Host.FarmMoney(p.FarmID) < res.NetOwed {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -res.NetOwed, "finance.lease_terminated")
	if deal.VehicleID != nil {
		_ = d.Host.RemoveVehicle(*deal.VehicleID)
	}
	return Ok(p.FarmID, "deal.lease_terminated", p.DealID)
}

// LeaseRenewalParams carries the decoded payload for KindLeaseRenewal.
type LeaseRenewalParams struct {
	ConnID         string
	FarmID         domain.FarmId
	DealID         string
	EquityRollover money.Amount
}

// LeaseRenewal rolls an existing lease over for a fresh term.
func (d *Dispatcher) LeaseRenewal(p LeaseRenewalParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	_, err = d.Finance.ResolveLeaseEnd(p.DealID, finance.LeaseRenew, 0, p.EquityRollover)
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	return Ok(p.FarmID, "deal.lease_renewed", p.DealID)
}

// PurchaseLandCashParams carries the decoded payload for
// KindPurchaseLandCash.
type PurchaseLandCashParams struct {
	ConnID string
	FarmID domain.FarmId
	LandID domain.LandId
	Price  money.Amount
}

// PurchaseLandCash transfers land ownership against an immediate payment.
func (d *Dispatcher) PurchaseLandCash(p PurchaseLandCashParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("price", p.Price); e != nil {
		return Fail(p.FarmID, e)
	}
	if _, ok := d.Host.LandByID(p.LandID); !ok {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_land"))
	}
	if d.Host.FarmMoney(p.FarmID) < p.Price {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	farm := p.FarmID
	if err := d.Host.SetLandOwner(p.LandID, &farm); err != nil {
		return Fail(p.FarmID, newErr(Conflict, "error.land_already_owned"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Price, "land.purchase")
	return Ok(p.FarmID, "land.purchased")
}

// LandLeaseParams carries the decoded payload for KindLandLease.
type LandLeaseParams struct {
	ConnID         string
	FarmID         domain.FarmId
	LandID         domain.LandId
	MonthlyPayment money.Amount
	TermMonths     int
	Price          money.Amount
}

// LandLease opens a LandLease deal for a parcel the farm does not own.
func (d *Dispatcher) LandLease(p LandLeaseParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkTermMonths(p.TermMonths); e != nil {
		return Fail(p.FarmID, e)
	}
	elig, err := d.Credit.CanFinance(int64(p.FarmID), credit.FinanceLand, p.TermMonths)
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_credit_account"))
	}
	if !elig.Allowed {
		return Fail(p.FarmID, newErr(IneligibleCredit, "error.credit_ineligible"))
	}
	deal, err := d.Finance.CreateDeal(finance.NewDealParams{
		Kind:           finance.LandLease,
		FarmID:         p.FarmID,
		Now:            d.Host.Now(),
		OriginalAmount: p.Price,
		TermMonths:     p.TermMonths,
		MonthlyPayment: p.MonthlyPayment,
		LandID:         &p.LandID,
	})
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidParameter, "error.invalid_term"))
	}
	return Ok(p.FarmID, "deal.created", deal.ID)
}

// LandLeaseBuyoutParams carries the decoded payload for
// KindLandLeaseBuyout.
type LandLeaseBuyoutParams struct {
	ConnID string
	FarmID domain.FarmId
	DealID string
}

// LandLeaseBuyout converts an active land lease into outright ownership.
func (d *Dispatcher) LandLeaseBuyout(p LandLeaseBuyoutParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID || deal.LandID == nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	res, err := d.Finance.ResolveLeaseEnd(p.DealID, finance.LeaseBuyout, 0, 0)
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	if d.Host.FarmMoney(p.FarmID) < res.NetDue {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -res.NetDue, "land.lease_buyout")
	farm := p.FarmID
	_ = d.Host.SetLandOwner(*deal.LandID, &farm)
	return Ok(p.FarmID, "land.lease_bought_out", p.DealID)
}

// RequestUsedItemParams carries the decoded payload for
// KindRequestUsedItem.
type RequestUsedItemParams struct {
	ConnID    string
	FarmID    domain.FarmId
	Tier      marketplace.AgentTier
	Quality   marketplace.QualityTier
	BasePrice money.Amount
}

// RequestUsedItem opens a new buy-side marketplace search.
func (d *Dispatcher) RequestUsedItem(p RequestUsedItemParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("basePrice", p.BasePrice); e != nil {
		return Fail(p.FarmID, e)
	}
	search, retainer, err := d.Market.StartSearch(p.FarmID, p.Tier, p.Quality, p.BasePrice, d.Host.Now())
	if err != nil {
		if _, ok := err.(marketplace.ErrSearchCapReached); ok {
			return Fail(p.FarmID, newErr(ResourceCap, "error.search_cap_reached"))
		}
		return Fail(p.FarmID, newErr(InvalidState, "error.search_failed"))
	}
	if d.Host.FarmMoney(p.FarmID) < retainer {
		_ = d.Market.CancelSearch(search.ID)
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -retainer, "marketplace.search_retainer")
	return Ok(p.FarmID, "search.started", search.ID)
}

// CancelSearchParams carries the decoded payload for KindCancelSearch.
type CancelSearchParams struct {
	ConnID   string
	FarmID   domain.FarmId
	SearchID string
}

// CancelSearch withdraws an in-flight buy-side search.
func (d *Dispatcher) CancelSearch(p CancelSearchParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	s, err := d.Market.Search(p.SearchID)
	if err != nil || s.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_search"))
	}
	if err := d.Market.CancelSearch(p.SearchID); err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.search_not_active"))
	}
	return Ok(p.FarmID, "search.cancelled", p.SearchID)
}

// DeclineListingParams carries the decoded payload for KindDeclineListing.
type DeclineListingParams struct {
	ConnID    string
	FarmID    domain.FarmId
	ListingID string
}

// DeclineListing walks away from a found listing without negotiating.
func (d *Dispatcher) DeclineListing(p DeclineListingParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if err := d.Market.DeclineListing(p.ListingID); err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_listing"))
	}
	return Ok(p.FarmID, "listing.declined", p.ListingID)
}

// CreateSaleListingParams carries the decoded payload for
// KindCreateSaleListing.
type CreateSaleListingParams struct {
	ConnID     string
	FarmID     domain.FarmId
	VehicleID  domain.VehicleId
	Tier       marketplace.AgentTier
	Private    bool
	PriceTier  marketplace.PriceTier
	FairMarket money.Amount
	RepairPct  float64
	PaintPct   float64
}

// CreateSaleListing opens a seller-side sale for an owned vehicle.
func (d *Dispatcher) CreateSaleListing(p CreateSaleListingParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	if e := checkPrice("fairMarket", p.FairMarket); e != nil {
		return Fail(p.FarmID, e)
	}
	listing, err := d.Market.CreateSaleListing(p.FarmID, p.VehicleID, p.Tier, p.Private, p.PriceTier, p.FairMarket, p.RepairPct, p.PaintPct, d.Host.Now())
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidParameter, "error.premium_requirements_not_met"))
	}
	return Ok(p.FarmID, "sale.listed", listing.ID)
}

// SaleListingActionParams carries the decoded payload for
// KindSaleListingAction (the only action currently defined is cancellation;
// price changes route through ModifyListingPrice instead).
type SaleListingActionParams struct {
	ConnID string
	FarmID domain.FarmId
	SaleID string
}

// SaleListingAction cancels an active seller-side sale listing.
func (d *Dispatcher) SaleListingAction(p SaleListingActionParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	s, err := d.Market.SaleListingByID(p.SaleID)
	if err != nil || s.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_sale_listing"))
	}
	if err := d.Market.CancelSaleListing(p.SaleID); err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.sale_not_active"))
	}
	return Ok(p.FarmID, "sale.cancelled", p.SaleID)
}

// ModifyListingPriceParams carries the decoded payload for
// KindModifyListingPrice.
type ModifyListingPriceParams struct {
	ConnID   string
	FarmID   domain.FarmId
	SaleID   string
	NewPrice money.Amount
}

// ModifyListingPrice re-prices an active seller-side sale listing.
func (d *Dispatcher) ModifyListingPrice(p ModifyListingPriceParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("newPrice", p.NewPrice); e != nil {
		return Fail(p.FarmID, e)
	}
	s, err := d.Market.SaleListingByID(p.SaleID)
	if err != nil || s.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_sale_listing"))
	}
	if s.Status != marketplace.SaleActive {
		return Fail(p.FarmID, newErr(InvalidState, "error.sale_not_active"))
	}
	s.AskPrice = p.NewPrice
	return Ok(p.FarmID, "sale.repriced", p.SaleID)
}

// TradeInVehicleParams carries the decoded payload for KindTradeInVehicle.
type TradeInVehicleParams struct {
	ConnID      string
	FarmID      domain.FarmId
	VehicleID   domain.VehicleId
	ListingID   string
	OfferPct    float64
}

// TradeInVehicle settles a purchase against a negotiated listing by
// crediting the traded-in vehicle's resale value toward the price, then
// removing the traded vehicle from the host.
func (d *Dispatcher) TradeInVehicle(p TradeInVehicleParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	listing, err := d.Market.Listing(p.ListingID)
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_listing"))
	}
	record := d.Reliability.Observe(p.VehicleID)
	tradeValue := listing.BasePrice.Mul(record.ResaleModifier())

	res, err := d.Market.Negotiate(p.ListingID, p.OfferPct, d.Host.Now(), d.Host.CurrentWeather())
	if err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.listing_not_negotiable"))
	}
	if res.Outcome != marketplace.OutcomeAccepted {
		return Ok(p.FarmID, "negotiate."+res.Outcome.String())
	}
	netDue := res.FinalPrice - tradeValue
	if netDue > 0 && d.Host.FarmMoney(p.FarmID) < netDue {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -netDue, "marketplace.trade_in")
	_ = d.Host.RemoveVehicle(p.VehicleID)
	vehicleID, err := d.Host.SpawnVehicle(listing.StoreItemRef, p.FarmID, nil)
	if err != nil {
		return Fail(p.FarmID, newErr(Conflict, "error.spawn_failed"))
	}
	d.Reliability.ObserveWithDNA(vehicleID, listing.DNA)
	return Ok(p.FarmID, "marketplace.purchased", p.ListingID)
}

// checkListingOwnership verifies listingID was surfaced by a search the
// requesting farm itself opened (a listing has no FarmID of its own; it
// belongs to whichever search's FoundListingIDs produced it).
func (d *Dispatcher) checkListingOwnership(farmID domain.FarmId, listingID string) (*marketplace.Listing, *Error) {
	listing, err := d.Market.Listing(listingID)
	if err != nil {
		return nil, newErr(NotFound, "error.unknown_listing")
	}
	search, err := d.Market.Search(listing.FoundBy)
	if err != nil || search.FarmID != farmID {
		return nil, newErr(Unauthorized, "error.not_listing_owner")
	}
	return listing, nil
}

// InspectListingParams carries the decoded payload for KindInspectListing.
type InspectListingParams struct {
	ConnID    string
	FarmID    domain.FarmId
	ListingID string
}

// InspectListing charges the inspection fee and reveals a listing's
// reliability rating, estimated repair cost, and mechanic's assessment
// (spec.md §4.4). The report itself is cached on the listing by
// Market.Inspect. Every call is charged the fee, including a repeat
// inspection that Market.Inspect answers from its cache; a repeat is not
// rejected.
func (d *Dispatcher) InspectListing(p InspectListingParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	listing, e := d.checkListingOwnership(p.FarmID, p.ListingID)
	if e != nil {
		return Fail(p.FarmID, e)
	}
	cost := marketplace.InspectionCost(listing.AskPrice)
	if d.Host.FarmMoney(p.FarmID) < cost {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	report, err := d.Market.Inspect(p.ListingID)
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_listing"))
	}
	_ = d.Host.AddMoney(p.FarmID, -cost, "marketplace.inspection")
	return Ok(p.FarmID, "listing.inspected", report.Rating, report.Assessment)
}

// NegotiateListingParams carries the decoded payload for
// KindNegotiateListing. Action selects which negotiation turn this request
// drives; OfferPct is only meaningful for NegotiateOffer.
type NegotiateListingParams struct {
	ConnID    string
	FarmID    domain.FarmId
	ListingID string
	Action    marketplace.NegotiationAction
	OfferPct  float64
}

// NegotiateListing drives one turn of a listing's negotiation state machine
// (spec.md §4.4: Open→OfferMade→{Accepted|Countered|Rejected|WalkedAway},
// and from Countered: AcceptCounter, StandFirm, or WalkAway).
func (d *Dispatcher) NegotiateListing(p NegotiateListingParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if _, e := d.checkListingOwnership(p.FarmID, p.ListingID); e != nil {
		return Fail(p.FarmID, e)
	}

	switch p.Action {
	case marketplace.NegotiateOffer:
		res, err := d.Market.Negotiate(p.ListingID, p.OfferPct, d.Host.Now(), d.Host.CurrentWeather())
		if err != nil {
			return Fail(p.FarmID, newErr(InvalidState, "error.listing_not_negotiable"))
		}
		return Ok(p.FarmID, "negotiate."+res.Outcome.String())
	case marketplace.NegotiateAcceptCounter:
		res, err := d.Market.AcceptCounter(p.ListingID)
		if err != nil {
			return Fail(p.FarmID, newErr(InvalidState, "error.listing_not_negotiable"))
		}
		return Ok(p.FarmID, "negotiate."+res.Outcome.String())
	case marketplace.NegotiateStandFirm:
		outcome, err := d.Market.StandFirm(p.ListingID, d.Host.Now())
		if err != nil {
			return Fail(p.FarmID, newErr(InvalidState, "error.listing_not_negotiable"))
		}
		return Ok(p.FarmID, "negotiate.standfirm."+outcome.String())
	case marketplace.NegotiateWalkAway:
		if err := d.Market.WalkAway(p.ListingID); err != nil {
			return Fail(p.FarmID, newErr(NotFound, "error.unknown_listing"))
		}
		return Ok(p.FarmID, "negotiate.walkedaway")
	default:
		return Fail(p.FarmID, newErr(InvalidParameter, "error.invalid_negotiation_action"))
	}
}

// PurchaseListingParams carries the decoded payload for KindPurchaseListing.
type PurchaseListingParams struct {
	ConnID    string
	FarmID    domain.FarmId
	ListingID string
}

// PurchaseListing settles a cash purchase of a listing once its negotiation
// has reached Accepted, debiting the settled FinalPrice and spawning the
// vehicle the same way TradeInVehicle does for the trade-in path.
func (d *Dispatcher) PurchaseListing(p PurchaseListingParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	listing, e := d.checkListingOwnership(p.FarmID, p.ListingID)
	if e != nil {
		return Fail(p.FarmID, e)
	}
	if !listing.Negotiated() {
		return Fail(p.FarmID, newErr(InvalidState, "error.listing_not_accepted"))
	}
	if d.Host.FarmMoney(p.FarmID) < listing.FinalPrice {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -listing.FinalPrice, "marketplace.purchase")
	vehicleID, err := d.Host.SpawnVehicle(listing.StoreItemRef, p.FarmID, nil)
	if err != nil {
		return Fail(p.FarmID, newErr(Conflict, "error.spawn_failed"))
	}
	d.Reliability.ObserveWithDNA(vehicleID, listing.DNA)
	_, _ = d.Market.Purchase(p.ListingID)
	return Ok(p.FarmID, "marketplace.purchased", p.ListingID)
}

// RepairVehicleParams carries the decoded payload for KindRepairVehicle.
type RepairVehicleParams struct {
	ConnID     string
	FarmID     domain.FarmId
	VehicleID  domain.VehicleId
	Affected   []reliability.Component
	Cost       money.Amount
}

// RepairVehicle pays for a full workshop repair.
func (d *Dispatcher) RepairVehicle(p RepairVehicleParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	if e := checkPrice("cost", p.Cost); e != nil {
		return Fail(p.FarmID, e)
	}
	if d.Host.FarmMoney(p.FarmID) < p.Cost {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	if err := d.Reliability.WorkshopRepair(p.VehicleID, p.Affected); err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_vehicle"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Cost, "repair.workshop")
	return Ok(p.FarmID, "repair.completed")
}

// SetPaymentConfigParams carries the decoded payload for
// KindSetPaymentConfig.
type SetPaymentConfigParams struct {
	ConnID     string
	FarmID     domain.FarmId
	DealID     string
	Mode       finance.PaymentMode
	Multiplier float64
	Custom     money.Amount
}

// SetPaymentConfig reconfigures how a deal's monthly tick pays itself.
func (d *Dispatcher) SetPaymentConfig(p SetPaymentConfigParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkFloat("multiplier", p.Multiplier); e != nil {
		return Fail(p.FarmID, e)
	}
	deal, err := d.Finance.Get(p.DealID)
	if err != nil || deal.FarmID != p.FarmID {
		return Fail(p.FarmID, newErr(NotFound, "error.unknown_deal"))
	}
	if err := d.Finance.SetPaymentConfig(p.DealID, p.Mode, p.Multiplier, p.Custom); err != nil {
		return Fail(p.FarmID, newErr(InvalidState, "error.deal_not_active"))
	}
	return Ok(p.FarmID, "deal.payment_config_set", p.DealID)
}

// FieldRepairParams carries the decoded payload for KindFieldRepair.
type FieldRepairParams struct {
	ConnID    string
	FarmID    domain.FarmId
	VehicleID domain.VehicleId
	Target    reliability.Component
}

// FieldRepair spends one OBD kit on a one-shot in-field component repair.
func (d *Dispatcher) FieldRepair(p FieldRepairParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	d.Reliability.Observe(p.VehicleID)
	if err := d.Service.FieldRepair(d.Reliability, p.FarmID, p.VehicleID, p.Target); err != nil {
		if _, ok := err.(service.ErrNoOBDKits); ok {
			return Fail(p.FarmID, newErr(ResourceCap, "error.no_obd_kits"))
		}
		return Fail(p.FarmID, newErr(Conflict, "error.already_field_repaired"))
	}
	return Ok(p.FarmID, "repair.field_completed")
}

// RefillFluidsParams carries the decoded payload for KindRefillFluids.
type RefillFluidsParams struct {
	ConnID    string
	FarmID    domain.FarmId
	VehicleID domain.VehicleId
	Cost      money.Amount
}

// RefillFluids pays to top off a service-truck restoration's fluid
// consumables, letting a paused restoration resume.
func (d *Dispatcher) RefillFluids(p RefillFluidsParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if e := checkPrice("cost", p.Cost); e != nil {
		return Fail(p.FarmID, e)
	}
	if d.Host.FarmMoney(p.FarmID) < p.Cost {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Cost, "service.refill_fluids")
	return Ok(p.FarmID, "service.fluids_refilled")
}

// ReplaceTiresParams carries the decoded payload for KindReplaceTires.
type ReplaceTiresParams struct {
	ConnID    string
	FarmID    domain.FarmId
	VehicleID domain.VehicleId
	Cost      money.Amount
}

// ReplaceTires pays a flat wear-reduction service on an owned vehicle.
func (d *Dispatcher) ReplaceTires(p ReplaceTiresParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	if e := checkPrice("cost", p.Cost); e != nil {
		return Fail(p.FarmID, e)
	}
	if d.Host.FarmMoney(p.FarmID) < p.Cost {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Cost, "service.replace_tires")
	return Ok(p.FarmID, "service.tires_replaced")
}

// StartRestorationParams carries the decoded payload for
// KindStartRestoration.
type StartRestorationParams struct {
	ConnID      string
	FarmID      domain.FarmId
	VehicleID   domain.VehicleId
	Target      reliability.Component
	Consumables service.Consumables
}

// StartRestoration begins a long-form service-truck restoration.
func (d *Dispatcher) StartRestoration(p StartRestorationParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	owner, ok := d.Host.VehicleOwner(p.VehicleID)
	if !ok || owner != p.FarmID {
		return Fail(p.FarmID, newErr(Unauthorized, "error.not_vehicle_owner"))
	}
	r, err := d.Service.StartRestoration(p.FarmID, p.VehicleID, p.Target, d.Host.Now(), p.Consumables)
	if err != nil {
		return Fail(p.FarmID, newErr(Conflict, "error.restoration_in_progress"))
	}
	if r.State == service.Aborted {
		return Ok(p.FarmID, "restoration.inspection_failed")
	}
	return Ok(p.FarmID, "restoration.started")
}

// StopRestorationParams carries the decoded payload for
// KindStopRestoration.
type StopRestorationParams struct {
	ConnID    string
	FarmID    domain.FarmId
	VehicleID domain.VehicleId
}

// StopRestoration cancels an in-progress restoration.
func (d *Dispatcher) StopRestoration(p StopRestorationParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if err := d.Service.StopRestoration(p.VehicleID); err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_restoration_in_progress"))
	}
	return Ok(p.FarmID, "restoration.stopped")
}

// SetRestorationCooldownParams carries the decoded payload for
// KindSetRestorationCooldown (a no-op acknowledgement today: the cooldown is
// enforced implicitly by the one-restoration-per-vehicle rule in
// service.Engine.StartRestoration; this request exists for UI parity with
// the host's other "set cooldown" affordances).
type SetRestorationCooldownParams struct {
	ConnID string
	FarmID domain.FarmId
}

// SetRestorationCooldown acknowledges a client cooldown-preference update.
func (d *Dispatcher) SetRestorationCooldown(p SetRestorationCooldownParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	return Ok(p.FarmID, "restoration.cooldown_set")
}

// ServiceTruckDiscoveryParams carries the decoded payload for
// KindServiceTruckDiscovery.
type ServiceTruckDiscoveryParams struct {
	ConnID                  string
	FarmID                  domain.FarmId
	HasDegradedOwnedVehicle bool
}

// ServiceTruckDiscovery checks whether a farm has unlocked the service-truck
// purchase offer.
func (d *Dispatcher) ServiceTruckDiscovery(p ServiceTruckDiscoveryParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	score, err := d.Credit.Score(int64(p.FarmID))
	if err != nil {
		return Fail(p.FarmID, newErr(NotFound, "error.no_credit_account"))
	}
	if !d.Service.DiscoveryGate(score, p.HasDegradedOwnedVehicle) {
		return Ok(p.FarmID, "service_truck.not_yet_eligible")
	}
	return Ok(p.FarmID, "service_truck.eligible")
}

// ServiceTruckPurchaseParams carries the decoded payload for
// KindServiceTruckPurchase.
type ServiceTruckPurchaseParams struct {
	ConnID string
	FarmID domain.FarmId
	Price  money.Amount
}

// ServiceTruckPurchase buys a service truck during an open opportunity
// window (spec.md §4.6).
func (d *Dispatcher) ServiceTruckPurchase(p ServiceTruckPurchaseParams) Response {
	if e := checkOwnership(d.Host, p.ConnID, p.FarmID); e != nil {
		return Fail(p.FarmID, e)
	}
	if !d.Service.OpportunityActive(p.FarmID, d.Host.Now()) {
		return Fail(p.FarmID, newErr(InvalidState, "error.no_opportunity_open"))
	}
	if e := checkPrice("price", p.Price); e != nil {
		return Fail(p.FarmID, e)
	}
	if d.Host.FarmMoney(p.FarmID) < p.Price {
		return Fail(p.FarmID, newErr(InsufficientFunds, "error.insufficient_funds"))
	}
	_ = d.Host.AddMoney(p.FarmID, -p.Price, "service_truck.purchase")
	return Ok(p.FarmID, "service_truck.purchased")
}
