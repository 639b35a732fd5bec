package marketplace

import (
	"fmt"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/rng"
)

// negotiationState is the per-listing negotiation phase (spec.md §4.4).
type negotiationState int

const (
	negOpen negotiationState = iota
	negOfferMade
	negCountered
	negAccepted
	negRejected
	negWalkedAway
)

// NegotiationOutcome reports what happened to one Negotiate call.
type NegotiationOutcome int

const (
	OutcomeAccepted NegotiationOutcome = iota
	OutcomeCountered
	OutcomeRejected
	OutcomeWalkedAway
)

func (o NegotiationOutcome) String() string {
	switch o {
	case OutcomeAccepted:
		return "Accepted"
	case OutcomeCountered:
		return "Countered"
	case OutcomeRejected:
		return "Rejected"
	default:
		return "WalkedAway"
	}
}

// NegotiationResult is the outcome of a Negotiate/StandFirm/AcceptCounter call.
type NegotiationResult struct {
	Outcome     NegotiationOutcome
	CounterPct  float64 // valid when Outcome==Countered
	FinalPrice  money.Amount
}

// NegotiationAction selects which negotiation turn a NegotiateListing
// request drives (spec.md §4.4's Open→OfferMade→{...} state machine).
type NegotiationAction int

const (
	NegotiateOffer NegotiationAction = iota
	NegotiateStandFirm
	NegotiateAcceptCounter
	NegotiateWalkAway
)

// ErrListingNotAccepted reports a purchase attempted before negotiation
// reached an Accepted outcome.
type ErrListingNotAccepted struct{ ID string }

func (e ErrListingNotAccepted) Error() string {
	return fmt.Sprintf("marketplace: listing %q has not reached an accepted negotiation", e.ID)
}

// daysOnMarket returns how many whole days a listing has been live.
func daysOnMarket(l *Listing, now domain.Millis) float64 {
	elapsed := now - l.CreatedAt
	if elapsed < 0 {
		return 0
	}
	return float64(elapsed) / float64(domain.Day)
}

// effectiveThreshold computes the acceptance threshold after every
// spec.md §4.4 modifier: time-on-market, damage, hours, price, weather.
func effectiveThreshold(l *Listing, now domain.Millis, hours float64, weather domain.Weather) float64 {
	threshold := l.SellerPersonality.acceptanceThreshold()

	days := daysOnMarket(l, now)
	marketBonus := days * 0.3
	if marketBonus > 10 {
		marketBonus = 10
	}
	threshold -= marketBonus

	if l.Damage > 0.20 {
		threshold -= 5
	}
	if hours > 5000 {
		threshold -= 3
	}
	if l.AskPrice > 200_000_00 {
		threshold -= 5
	}

	threshold -= weather.NegotiationBonus()
	return threshold
}

// Negotiate evaluates a buyer's offer (as a percent of ask price, e.g. 90
// for 90%) against the listing's effective acceptance threshold.
func (m *Market) Negotiate(id string, offerPct float64, now domain.Millis, weather domain.Weather) (NegotiationResult, error) {
	l, err := m.Listing(id)
	if err != nil {
		return NegotiationResult{}, err
	}
	if l.walkedAway {
		return NegotiationResult{}, ErrNotNegotiable{id}
	}
	if l.LockedUntil != 0 && now.Before(l.LockedUntil) {
		return NegotiationResult{}, ErrListingLocked{id, l.LockedUntil}
	}
	if l.negotiation != negOpen && l.negotiation != negCountered && l.negotiation != negRejected {
		return NegotiationResult{}, ErrNotNegotiable{id}
	}

	threshold := effectiveThreshold(l, now, l.Hours, weather)
	l.lastOfferPct = offerPct

	switch {
	case offerPct >= threshold:
		l.negotiation = negAccepted
		l.FinalPrice = l.AskPrice.Mul(offerPct / 100.0)
		return NegotiationResult{Outcome: OutcomeAccepted, FinalPrice: l.FinalPrice}, nil
	case offerPct >= threshold-10:
		mid := (offerPct + threshold) / 2.0
		l.negotiation = negCountered
		l.lastCounterPct = mid
		return NegotiationResult{Outcome: OutcomeCountered, CounterPct: mid}, nil
	case offerPct >= threshold-20:
		l.negotiation = negRejected
		return NegotiationResult{Outcome: OutcomeRejected}, nil
	default:
		l.negotiation = negWalkedAway
		l.walkedAway = true
		delete(m.listings, id)
		return NegotiationResult{Outcome: OutcomeWalkedAway}, nil
	}
}

// AcceptCounter accepts the seller's last counter-offer.
func (m *Market) AcceptCounter(id string) (NegotiationResult, error) {
	l, err := m.Listing(id)
	if err != nil {
		return NegotiationResult{}, err
	}
	if l.negotiation != negCountered {
		return NegotiationResult{}, ErrNotNegotiable{id}
	}
	l.negotiation = negAccepted
	l.FinalPrice = l.AskPrice.Mul(l.lastCounterPct / 100.0)
	return NegotiationResult{Outcome: OutcomeAccepted, FinalPrice: l.FinalPrice}, nil
}

// WalkAway permanently abandons negotiation on a listing; it is removed.
func (m *Market) WalkAway(id string) error {
	l, err := m.Listing(id)
	if err != nil {
		return err
	}
	l.walkedAway = true
	delete(m.listings, id)
	return nil
}

// StandFirmOutcome is the result of a StandFirm dice roll.
type StandFirmOutcome int

const (
	StandFirmCaved StandFirmOutcome = iota
	StandFirmHeld
	StandFirmWalked
)

func (o StandFirmOutcome) String() string {
	switch o {
	case StandFirmCaved:
		return "Caved"
	case StandFirmHeld:
		return "Held"
	default:
		return "Walked"
	}
}

// Negotiated reports whether the listing's negotiation has reached an
// Accepted outcome and FinalPrice is settled.
func (l *Listing) Negotiated() bool { return l.negotiation == negAccepted }

// StandFirm rolls the spec.md §4.4 dice: <0.30 the seller caves (accepts
// the player's original offer), <0.80 the counter holds, else the seller
// walks and the listing is locked for one game-hour.
func (m *Market) StandFirm(id string, now domain.Millis) (StandFirmOutcome, error) {
	l, err := m.Listing(id)
	if err != nil {
		return 0, err
	}
	if l.negotiation != negCountered {
		return 0, ErrNotNegotiable{id}
	}
	nonce := m.nextNonce()
	roll := rng.Roll(m.seed, "negotiate.standfirm", nonce)
	switch {
	case roll < 0.30:
		l.negotiation = negAccepted
		l.FinalPrice = l.AskPrice.Mul(l.lastOfferPct / 100.0)
		return StandFirmCaved, nil
	case roll < 0.80:
		return StandFirmHeld, nil
	default:
		l.negotiation = negOpen
		l.LockedUntil = now.Add(domain.Hour)
		return StandFirmWalked, nil
	}
}

// Purchase finalizes a cash buy of a listing whose negotiation has reached
// Accepted (via Negotiate, AcceptCounter, or a caved StandFirm roll),
// returning the listing (for its FinalPrice/StoreItemRef/DNA) and removing
// it from the market. It never runs for a trade-in purchase, which settles
// through TradeInVehicle's own combined negotiate-then-spawn call instead.
func (m *Market) Purchase(id string) (*Listing, error) {
	l, err := m.Listing(id)
	if err != nil {
		return nil, err
	}
	if l.negotiation != negAccepted {
		return nil, ErrListingNotAccepted{id}
	}
	delete(m.listings, id)
	return l, nil
}
