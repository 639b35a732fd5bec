// Package finance implements the finance ledger (spec.md §4.5 / §3): active
// deals across all seven kinds, monthly amortization, payment modes,
// prepayment penalties, lease equity/renewal, and repossession.
//
// Grounded on the teacher's bidengine/worker.go shape (one small record per
// tracked entity, advanced by an explicit call rather than a goroutine) and
// on credit.Bureau's pattern of a single aggregate holding an id-keyed map
// plus sentinel errors, one per failure kind (bidengine/errors.go).
package finance

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
)

// Kind is the tagged deal variant (spec.md §3).
type Kind int

const (
	VehicleFinance Kind = iota
	VehicleLease
	LandFinance
	LandLease
	CashLoan
	RepairFinance
	ExternalDeal
)

func (k Kind) String() string {
	switch k {
	case VehicleFinance:
		return "VehicleFinance"
	case VehicleLease:
		return "VehicleLease"
	case LandFinance:
		return "LandFinance"
	case LandLease:
		return "LandLease"
	case CashLoan:
		return "CashLoan"
	case RepairFinance:
		return "RepairFinance"
	case ExternalDeal:
		return "ExternalDeal"
	default:
		return "Unknown"
	}
}

func (k Kind) isLease() bool { return k == VehicleLease || k == LandLease }
func (k Kind) isLand() bool  { return k == LandFinance || k == LandLease }

// Status is the deal lifecycle state.
type Status int

const (
	Active Status = iota
	Completed
	Terminated
	Defaulted
)

func (s Status) String() string {
	switch s {
	case Completed:
		return "Completed"
	case Terminated:
		return "Terminated"
	case Defaulted:
		return "Defaulted"
	default:
		return "Active"
	}
}

// PaymentMode controls how the monthly tick treats a deal.
type PaymentMode int

const (
	Skip PaymentMode = iota
	Minimum
	Standard
	Extra
	Custom
)

// CollateralItem is a host-visible asset pledged against a loan.
type CollateralItem struct {
	Ref   string
	Value money.Amount
}

// Deal is the shared-header + variant-payload record for every financial
// obligation tracked by the ledger (spec.md §3).
type Deal struct {
	ID              string
	Kind            Kind
	FarmID          domain.FarmId
	CreatedAt       domain.Millis
	Status          Status
	OriginalAmount  money.Amount
	CurrentBalance  money.Amount
	InterestRatePct float64
	TermMonths      int
	MonthsPaid      int

	MonthlyPayment       money.Amount
	PaymentMode          PaymentMode
	CustomPaymentAmount  money.Amount
	PaymentMultiplier    float64
	MissedPayments       int
	ConsecutiveMissed    int
	TotalInterestPaid    money.Amount
	Collateral           []CollateralItem
	ItemName             string

	// Lease-only fields.
	ResidualValue     money.Amount
	SecurityDeposit   money.Amount
	AccumulatedEquity money.Amount

	// Host-resolved collateral identifiers for repossession.
	VehicleID *domain.VehicleId
	LandID    *domain.LandId
}

// ErrUnknownDeal is returned for operations against an unknown deal id.
type ErrUnknownDeal struct{ ID string }

func (e ErrUnknownDeal) Error() string { return fmt.Sprintf("finance: unknown deal %q", e.ID) }

// ErrDealNotActive is returned when an operation requires an Active deal.
type ErrDealNotActive struct {
	ID     string
	Status Status
}

func (e ErrDealNotActive) Error() string {
	return fmt.Sprintf("finance: deal %q is not active (status=%s)", e.ID, e.Status)
}

// ErrInvalidTerm is returned for a term outside [1, 360] months.
type ErrInvalidTerm struct{ TermMonths int }

func (e ErrInvalidTerm) Error() string {
	return fmt.Sprintf("finance: invalid term %d months", e.TermMonths)
}

// NewDealParams carries the caller-supplied fields for CreateDeal.
type NewDealParams struct {
	Kind              Kind
	FarmID            domain.FarmId
	Now               domain.Millis
	OriginalAmount    money.Amount
	InterestRatePct   float64
	TermMonths        int
	MonthlyPayment    money.Amount
	ItemName          string
	Collateral        []CollateralItem
	ResidualValue     money.Amount
	SecurityDeposit   money.Amount
	VehicleID         *domain.VehicleId
	LandID            *domain.LandId
}

// Ledger is the aggregate finance subsystem: one Deal per active/closed
// obligation, keyed by a stable string id (google/uuid, matching the
// teacher's id-minting convention).
type Ledger struct {
	deals map[string]*Deal
}

// New constructs an empty ledger.
func New() *Ledger {
	return &Ledger{deals: make(map[string]*Deal)}
}

// CreateDeal opens a new deal in Active status with PaymentMode=Standard.
func (l *Ledger) CreateDeal(p NewDealParams) (*Deal, error) {
	if p.TermMonths < 1 || p.TermMonths > 360 {
		return nil, ErrInvalidTerm{p.TermMonths}
	}
	d := &Deal{
		ID:                uuid.NewString(),
		Kind:              p.Kind,
		FarmID:            p.FarmID,
		CreatedAt:         p.Now,
		Status:            Active,
		OriginalAmount:    p.OriginalAmount,
		CurrentBalance:    p.OriginalAmount,
		InterestRatePct:   p.InterestRatePct,
		TermMonths:        p.TermMonths,
		MonthlyPayment:    p.MonthlyPayment,
		PaymentMode:       Standard,
		PaymentMultiplier: 1.0,
		ItemName:          p.ItemName,
		Collateral:        p.Collateral,
		ResidualValue:     p.ResidualValue,
		SecurityDeposit:   p.SecurityDeposit,
		VehicleID:         p.VehicleID,
		LandID:            p.LandID,
	}
	l.deals[d.ID] = d
	return d, nil
}

// Get returns a deal by id.
func (l *Ledger) Get(id string) (*Deal, error) {
	d, ok := l.deals[id]
	if !ok {
		return nil, ErrUnknownDeal{id}
	}
	return d, nil
}

// All returns every deal in the ledger regardless of farm, sorted by id for
// stable iteration (used by the monthly tick, which processes every active
// deal across every farm in one deterministic pass).
func (l *Ledger) All() []*Deal {
	out := make([]*Deal, 0, len(l.deals))
	for _, d := range l.deals {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ForFarm returns every deal belonging to farmID, sorted by id for stable
// iteration (spec.md §5: the monthly tick processes deals "in a stable
// deal-id-sorted order").
func (l *Ledger) ForFarm(farmID domain.FarmId) []*Deal {
	var out []*Deal
	for _, d := range l.deals {
		if d.FarmID == farmID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetPaymentConfig validates and applies a new payment mode/multiplier/custom
// amount to an active deal (spec.md §4.7 SetPaymentConfig request).
func (l *Ledger) SetPaymentConfig(id string, mode PaymentMode, multiplier float64, custom money.Amount) error {
	d, err := l.Get(id)
	if err != nil {
		return err
	}
	if d.Status != Active {
		return ErrDealNotActive{id, d.Status}
	}
	if multiplier < 1.0 {
		multiplier = 1.0
	}
	if multiplier > 3.0 {
		multiplier = 3.0
	}
	d.PaymentMode = mode
	d.PaymentMultiplier = multiplier
	d.CustomPaymentAmount = custom
	return nil
}

// negativeAmortizationCap returns the documented ceiling on currentBalance
// under repeated Skip: max(2*original, 1.5*collateralValue).
func (d *Deal) negativeAmortizationCap() money.Amount {
	cap1 := d.OriginalAmount.Mul(2.0)
	var collateralTotal money.Amount
	for _, c := range d.Collateral {
		collateralTotal += c.Value
	}
	cap2 := collateralTotal.Mul(1.5)
	if cap2 > cap1 {
		return cap2
	}
	return cap1
}

// MonthResult reports what the monthly tick did to one deal. CreditEvents
// is a slice, not a single optional value: a month that both misses its
// payment and trips the 3rd-consecutive-miss repossession clause reports
// both PaymentMissed and LandSeized/AssetSeized, since the repossession is
// a consequence of the miss, not a replacement for it.
type MonthResult struct {
	DealID          string
	InterestAccrued money.Amount
	PaidAmount      money.Amount
	PrincipalPaid   money.Amount
	CreditEvents    []credit.EventKind
	BecameDefaulted bool
	Repossessed     bool
	Note            string
}

// AmortizeMonth advances one deal by one month tick, applying its
// PaymentMode per spec.md §4.5. Deals that are not Active are left
// untouched (spec.md §7: a precondition violation aborts that deal's
// month, it never raises).
func (l *Ledger) AmortizeMonth(id string, now domain.Millis) (MonthResult, error) {
	d, err := l.Get(id)
	if err != nil {
		return MonthResult{}, err
	}
	res := MonthResult{DealID: id}
	if d.Status != Active {
		res.Note = "deal not active, month skipped"
		return res, nil
	}

	interest := d.CurrentBalance.Mul(d.InterestRatePct / 12.0 / 100.0)
	res.InterestAccrued = interest

	basePayment := d.MonthlyPayment.Mul(d.PaymentMultiplier)
	if d.PaymentMode == Custom {
		basePayment = d.CustomPaymentAmount
	}

	switch d.PaymentMode {
	case Skip:
		d.CurrentBalance += interest
		cap := d.negativeAmortizationCap()
		if d.CurrentBalance > cap {
			d.CurrentBalance = cap
		}
		d.MissedPayments++
		d.ConsecutiveMissed++
		res.CreditEvents = append(res.CreditEvents, credit.PaymentMissed)
	case Minimum:
		d.CurrentBalance -= 0 // interest-only, balance unchanged net of interest
		res.PaidAmount = interest
		d.TotalInterestPaid += interest
		d.ConsecutiveMissed = 0
		d.MonthsPaid++
		res.CreditEvents = append(res.CreditEvents, credit.PaymentOnTime)
	default: // Standard, Extra, Custom
		res.PaidAmount = basePayment
		principal := basePayment - interest
		res.PrincipalPaid = principal
		d.TotalInterestPaid += interest
		if principal < 0 {
			d.CurrentBalance -= principal // grows balance
		} else {
			d.CurrentBalance -= principal
		}
		if d.CurrentBalance < 0 {
			d.CurrentBalance = 0
		}
		d.ConsecutiveMissed = 0
		d.MonthsPaid++
		res.CreditEvents = append(res.CreditEvents, credit.PaymentOnTime)
	}

	if d.CurrentBalance <= 0 && d.PaymentMode != Skip {
		d.Status = Completed
	}

	if d.ConsecutiveMissed >= 3 {
		if d.Kind.isLand() {
			d.Status = Defaulted
			res.BecameDefaulted = true
			res.Repossessed = true
			res.CreditEvents = append(res.CreditEvents, credit.LandSeized)
		} else if len(d.Collateral) > 0 {
			d.Status = Defaulted
			res.BecameDefaulted = true
			res.Repossessed = true
			res.CreditEvents = append(res.CreditEvents, credit.AssetSeized)
		}
	}

	return res, nil
}

// Prepay applies a prepayment (vehicle/land finance only) reducing balance
// by amount, minus a penalty computed from remaining-term fraction.
func (l *Ledger) Prepay(id string, amount money.Amount) (penalty money.Amount, err error) {
	d, err := l.Get(id)
	if err != nil {
		return 0, err
	}
	if d.Status != Active {
		return 0, ErrDealNotActive{id, d.Status}
	}
	if d.Kind == VehicleFinance || d.Kind == LandFinance {
		remainingMonths := d.TermMonths - d.MonthsPaid
		frac := float64(remainingMonths) / float64(d.TermMonths)
		excess := frac - 0.5
		if excess < 0 {
			excess = 0
		}
		penalty = d.CurrentBalance.Mul(0.02 * excess)
	}
	d.CurrentBalance -= amount
	if d.CurrentBalance <= 0 {
		d.CurrentBalance = 0
		d.Status = Completed
	}
	return penalty, nil
}

// TerminateLeaseResult reports the settlement of an early lease termination.
type TerminateLeaseResult struct {
	DamagePenalty        money.Amount
	EarlyTerminationFee  money.Amount
	NetOwed              money.Amount
}

// TerminateLease ends a lease early: damage penalty basePrice*damage*0.5 plus
// an early-termination fee residualValue*0.05, per spec.md §4.5.
func (l *Ledger) TerminateLease(id string, basePrice money.Amount, damage float64) (TerminateLeaseResult, error) {
	d, err := l.Get(id)
	if err != nil {
		return TerminateLeaseResult{}, err
	}
	if !d.Kind.isLease() {
		return TerminateLeaseResult{}, fmt.Errorf("finance: deal %q is not a lease", id)
	}
	if d.Status != Active {
		return TerminateLeaseResult{}, ErrDealNotActive{id, d.Status}
	}
	res := TerminateLeaseResult{
		DamagePenalty:       basePrice.Mul(damage * 0.5),
		EarlyTerminationFee: d.ResidualValue.Mul(0.05),
	}
	res.NetOwed = res.DamagePenalty + res.EarlyTerminationFee
	d.Status = Terminated
	return res, nil
}

// LeaseChoice is the player's decision at lease term end.
type LeaseChoice int

const (
	LeaseReturn LeaseChoice = iota
	LeaseBuyout
	LeaseRenew
)

// LeaseEndResult reports the settlement of a lease-end decision.
type LeaseEndResult struct {
	Choice          LeaseChoice
	DepositRefund   money.Amount
	DamagePenalty   money.Amount
	BuyoutPrice     money.Amount
	NetDue          money.Amount // positive = farm owes, negative = farm is refunded
}

// ResolveLeaseEnd applies the player's choice at lease term end.
func (l *Ledger) ResolveLeaseEnd(id string, choice LeaseChoice, damage float64, equityRollover money.Amount) (LeaseEndResult, error) {
	d, err := l.Get(id)
	if err != nil {
		return LeaseEndResult{}, err
	}
	if !d.Kind.isLease() {
		return LeaseEndResult{}, fmt.Errorf("finance: deal %q is not a lease", id)
	}
	if d.Status != Active {
		return LeaseEndResult{}, ErrDealNotActive{id, d.Status}
	}

	res := LeaseEndResult{Choice: choice}
	switch choice {
	case LeaseReturn:
		res.DamagePenalty = d.SecurityDeposit.Mul(damage)
		res.DepositRefund = d.SecurityDeposit - res.DamagePenalty
		if res.DepositRefund < 0 {
			res.DepositRefund = 0
		}
		res.NetDue = -res.DepositRefund
		d.Status = Completed
	case LeaseBuyout:
		res.BuyoutPrice = d.ResidualValue - d.AccumulatedEquity
		if res.BuyoutPrice < 0 {
			res.BuyoutPrice = 0
		}
		res.DepositRefund = d.SecurityDeposit
		res.NetDue = res.BuyoutPrice - res.DepositRefund
		d.Status = Completed
	case LeaseRenew:
		d.MonthsPaid = 0
		d.AccumulatedEquity += equityRollover
		res.NetDue = 0
	}
	return res, nil
}

// ExternalBridge wires finance-side external-deal events (§4.5 "external
// deal credit impact") through to the credit bureau via the bureau's own
// RegisterExternal/report*/closeExternal calls — the ledger itself never
// stores external-deal state, the bureau owns that per spec.md §4.2.
type ExternalBridge struct {
	Bureau *credit.Bureau
}
