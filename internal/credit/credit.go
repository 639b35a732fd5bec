// Package credit implements the credit bureau (spec.md §4.2): a numeric
// score derived purely from an event log, a rating tier, interest-rate
// adjustments, and financing eligibility gates.
//
// The bureau is grounded on the teacher's habit of keeping one small
// sentinel-error file per subsystem (internal/bidengine/errors.go) and one
// append-only log driving derived state, the same shape as the teacher's
// bids table feeding AuctionState.BidCount/Version.
package credit

import (
	"fmt"

	"github.com/google/uuid"
)

// Rating is the derived credit tier.
type Rating int

const (
	RatingVeryPoor Rating = iota
	RatingPoor
	RatingFair
	RatingGood
	RatingExcellent
)

func (r Rating) String() string {
	switch r {
	case RatingExcellent:
		return "Excellent"
	case RatingGood:
		return "Good"
	case RatingFair:
		return "Fair"
	case RatingPoor:
		return "Poor"
	default:
		return "VeryPoor"
	}
}

// AtLeast reports whether r meets or exceeds the given floor.
func (r Rating) AtLeast(floor Rating) bool { return r >= floor }

// RatingForScore partitions a score into its rating tier per spec.md §3.
func RatingForScore(score int) Rating {
	switch {
	case score >= 750:
		return RatingExcellent
	case score >= 700:
		return RatingGood
	case score >= 650:
		return RatingFair
	case score >= 600:
		return RatingPoor
	default:
		return RatingVeryPoor
	}
}

// EventKind is a credit-affecting occurrence. Deltas are fixed by spec.md §4.2.
type EventKind int

const (
	PaymentOnTime EventKind = iota
	PaymentEarlyPayoff
	PaymentMissed
	AssetSeized
	LoanTaken
	DealPaidOff
	LandSeized
	ExternalLate
	ExternalMissed
)

func (k EventKind) delta() int {
	switch k {
	case PaymentOnTime:
		return 5
	case PaymentEarlyPayoff:
		return 50
	case PaymentMissed:
		return -25
	case AssetSeized:
		return -100
	case LoanTaken:
		return 0
	case DealPaidOff:
		return 10
	case LandSeized:
		return -75
	case ExternalLate:
		return -10
	case ExternalMissed:
		return -25
	default:
		return 0
	}
}

func (k EventKind) String() string {
	switch k {
	case PaymentOnTime:
		return "payment_on_time"
	case PaymentEarlyPayoff:
		return "payment_early_payoff"
	case PaymentMissed:
		return "payment_missed"
	case AssetSeized:
		return "asset_seized"
	case LoanTaken:
		return "loan_taken"
	case DealPaidOff:
		return "deal_paid_off"
	case LandSeized:
		return "land_seized"
	case ExternalLate:
		return "external_late"
	case ExternalMissed:
		return "external_missed"
	default:
		return "unknown"
	}
}

// Event is one append-only log entry.
type Event struct {
	When      int64
	Kind      EventKind
	Magnitude int
	Note      string
}

// Stats tracks simple running payment counters, derived alongside the log.
type Stats struct {
	TotalPayments int
	OnTime        int
	Late          int
	Missed        int
	CurrentStreak int
	LongestStreak int
}

// Account is a per-farm credit history. Score is always recomputed from
// Events plus the baseline — never stored and mutated directly — so replay
// of the same log always yields the same score (spec.md §8 determinism).
type Account struct {
	Events []Event
	Stats  Stats
}

const baselineScore = 650
const minScore = 300
const maxScore = 850

// Score recomputes the clamped score from the event log.
func (a *Account) Score() int {
	total := baselineScore
	for _, e := range a.Events {
		total += e.Magnitude
	}
	return clamp(total, minScore, maxScore)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// FinanceKind names the deal kind a financing gate applies to.
type FinanceKind int

const (
	FinanceVehicle FinanceKind = iota
	FinanceLand
	FinanceCashLoan
	FinanceRepair
)

// EligibilityResult is the outcome of a CanFinance check.
type EligibilityResult struct {
	Allowed          bool
	MinScoreRequired int
}

// ErrInvalidFarm is returned for any operation referencing an unknown farm.
type ErrInvalidFarm struct{ FarmID int64 }

func (e ErrInvalidFarm) Error() string { return fmt.Sprintf("credit: invalid farm %d", e.FarmID) }

// ErrDuplicateExternalID is returned when registering an external deal ID
// that is already in use.
type ErrDuplicateExternalID struct{ ID string }

func (e ErrDuplicateExternalID) Error() string {
	return fmt.Sprintf("credit: duplicate external id %q", e.ID)
}

// ErrUnknownExternalID is returned for operations against an unregistered
// external deal handle.
type ErrUnknownExternalID struct{ ID string }

func (e ErrUnknownExternalID) Error() string {
	return fmt.Sprintf("credit: unknown external id %q", e.ID)
}

// externalDeal tracks a mod-to-mod registered deal for credit-impact reporting.
type externalDeal struct {
	modName string
	farmID  int64
	dealID  string
	closed  bool
}

// Bureau is the aggregate credit subsystem: one Account per farm, plus the
// external-deal registry backing §4.2's registerExternal/report*/closeExternal.
type Bureau struct {
	accounts  map[int64]*Account
	externals map[string]*externalDeal
	knownFarm func(int64) bool
}

// NewBureau constructs an empty bureau. knownFarm validates farm existence
// (via the host adapter); nil means "accept any farm" (used in isolated tests).
func NewBureau(knownFarm func(int64) bool) *Bureau {
	return &Bureau{
		accounts:  make(map[int64]*Account),
		externals: make(map[string]*externalDeal),
		knownFarm: knownFarm,
	}
}

func (b *Bureau) account(farmID int64) (*Account, error) {
	if b.knownFarm != nil && !b.knownFarm(farmID) {
		return nil, ErrInvalidFarm{farmID}
	}
	a, ok := b.accounts[farmID]
	if !ok {
		a = &Account{}
		b.accounts[farmID] = a
	}
	return a, nil
}

// Score returns a farm's current credit score, creating its account on first use.
func (b *Bureau) Score(farmID int64) (int, error) {
	a, err := b.account(farmID)
	if err != nil {
		return 0, err
	}
	return a.Score(), nil
}

// Rating returns a farm's current rating tier.
func (b *Bureau) Rating(farmID int64) (Rating, error) {
	score, err := b.Score(farmID)
	if err != nil {
		return 0, err
	}
	return RatingForScore(score), nil
}

// InterestAdjustmentPct returns the piecewise rate adjustment for a farm's
// current rating, in [-1.5, +3.0] percentage points, per spec.md §4.2.
func (b *Bureau) InterestAdjustmentPct(farmID int64) (float32, error) {
	r, err := b.Rating(farmID)
	if err != nil {
		return 0, err
	}
	switch r {
	case RatingExcellent:
		return -1.5, nil
	case RatingGood:
		return -0.5, nil
	case RatingFair:
		return 0.5, nil
	case RatingPoor:
		return 1.5, nil
	default:
		return 3.0, nil
	}
}

// CanFinance evaluates the term/rating gate for a financing request.
func (b *Bureau) CanFinance(farmID int64, kind FinanceKind, requestedTermMonths int) (EligibilityResult, error) {
	r, err := b.Rating(farmID)
	if err != nil {
		return EligibilityResult{}, err
	}
	switch kind {
	case FinanceVehicle:
		switch {
		case requestedTermMonths <= 60:
			return EligibilityResult{Allowed: true}, nil
		case requestedTermMonths <= 120:
			return gate(r, RatingFair, 650), nil
		default:
			return gate(r, RatingGood, 700), nil
		}
	case FinanceLand:
		switch {
		case requestedTermMonths <= 120:
			return EligibilityResult{Allowed: true}, nil
		case requestedTermMonths <= 240:
			return gate(r, RatingGood, 700), nil
		default:
			return gate(r, RatingExcellent, 750), nil
		}
	case FinanceCashLoan, FinanceRepair:
		return gate(r, RatingPoor, 600), nil
	default:
		return EligibilityResult{}, fmt.Errorf("credit: unknown finance kind %d", kind)
	}
}

func gate(r Rating, floor Rating, minScore int) EligibilityResult {
	if r.AtLeast(floor) {
		return EligibilityResult{Allowed: true}
	}
	return EligibilityResult{Allowed: false, MinScoreRequired: minScore}
}

// RecordEvent appends a credit event and keeps Stats in sync.
func (b *Bureau) RecordEvent(farmID int64, kind EventKind, when int64, note string) error {
	a, err := b.account(farmID)
	if err != nil {
		return err
	}
	a.Events = append(a.Events, Event{When: when, Kind: kind, Magnitude: kind.delta(), Note: note})

	switch kind {
	case PaymentOnTime, PaymentEarlyPayoff, DealPaidOff:
		a.Stats.TotalPayments++
		a.Stats.OnTime++
		a.Stats.CurrentStreak++
		if a.Stats.CurrentStreak > a.Stats.LongestStreak {
			a.Stats.LongestStreak = a.Stats.CurrentStreak
		}
	case PaymentMissed, ExternalMissed:
		a.Stats.TotalPayments++
		a.Stats.Missed++
		a.Stats.CurrentStreak = 0
	case ExternalLate:
		a.Stats.TotalPayments++
		a.Stats.Late++
		a.Stats.CurrentStreak = 0
	}
	return nil
}

// RegisterExternal registers a mod-to-mod deal for credit tracking and
// returns its external handle.
func (b *Bureau) RegisterExternal(modName string, dealID string, farmID int64) (string, error) {
	if _, err := b.account(farmID); err != nil {
		return "", err
	}
	extID := uuid.NewString()
	if _, exists := b.externals[extID]; exists {
		return "", ErrDuplicateExternalID{extID}
	}
	b.externals[extID] = &externalDeal{modName: modName, farmID: farmID, dealID: dealID}
	return extID, nil
}

func (b *Bureau) lookupExternal(extID string) (*externalDeal, error) {
	ext, ok := b.externals[extID]
	if !ok || ext.closed {
		return nil, ErrUnknownExternalID{extID}
	}
	return ext, nil
}

// ReportExternalPayment records an on-time external payment (+5).
func (b *Bureau) ReportExternalPayment(extID string, when int64) error {
	ext, err := b.lookupExternal(extID)
	if err != nil {
		return err
	}
	return b.RecordEvent(ext.farmID, PaymentOnTime, when, "external:"+ext.modName)
}

// ReportExternalDefault records a late (-10) or missed (-25) external payment.
func (b *Bureau) ReportExternalDefault(extID string, when int64, isLate bool) error {
	ext, err := b.lookupExternal(extID)
	if err != nil {
		return err
	}
	kind := ExternalMissed
	if isLate {
		kind = ExternalLate
	}
	return b.RecordEvent(ext.farmID, kind, when, "external:"+ext.modName)
}

// CloseExternal closes an external deal handle; optionally recording a
// payoff credit event if reason indicates successful completion.
func (b *Bureau) CloseExternal(extID string, when int64, paidOff bool) error {
	ext, err := b.lookupExternal(extID)
	if err != nil {
		return err
	}
	ext.closed = true
	if paidOff {
		return b.RecordEvent(ext.farmID, DealPaidOff, when, "external:"+ext.modName)
	}
	return nil
}
