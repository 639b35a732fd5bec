// Package marketplace implements the used-equipment marketplace (spec.md
// §4.4): agent-based search producing listings, inspection, the negotiation
// state machine, and the seller-side sale-listing flow.
//
// Grounded on the teacher's bidengine package: per-entity maps advanced by
// an explicit tick rather than goroutines (here, per-farm SearchRequest and
// per-vehicle Listing/SaleListing records), and on reliability.Engine's
// pattern of deriving every random decision from rng.Roll with a fixed tag
// so replays are byte-identical (spec.md §8).
package marketplace

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/money"
	"github.com/usedplus/core/internal/rng"
)

// AgentTier is the buy/sell agent quality tier.
type AgentTier int

const (
	Local AgentTier = iota
	Regional
	National
)

// QualityTier is the buyer's desired condition class.
type QualityTier int

const (
	QualityAny QualityTier = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

// Generation is the listing's age bucket.
type Generation int

const (
	Recent Generation = iota
	Mid
	Old
)

// SellerPersonality drives a listing's negotiation acceptance threshold.
type SellerPersonality int

const (
	Desperate SellerPersonality = iota
	Motivated
	Reasonable
	Firm
	Immovable
)

func (p SellerPersonality) acceptanceThreshold() float64 {
	switch p {
	case Desperate:
		return 65
	case Motivated:
		return 75
	case Reasonable:
		return 85
	case Firm:
		return 92
	default: // Immovable
		return 98
	}
}

// searchTierParams is the per-tier retainer/timing/generation table from
// spec.md §4.4.
type searchTierParams struct {
	retainer        money.Amount
	percentOfBase   float64
	minDays, maxDays int
	genRecentPct, genMidPct, genOldPct int
	conditionBias   float64 // +30% Local, -30% National, 0 Regional
	maxListings     int
}

func tierParams(t AgentTier) searchTierParams {
	switch t {
	case Local:
		return searchTierParams{retainer: 500_00, percentOfBase: 0, minDays: 1, maxDays: 7,
			genRecentPct: 20, genMidPct: 50, genOldPct: 30, conditionBias: 0.30, maxListings: 2}
	case Regional:
		return searchTierParams{retainer: 1000_00, percentOfBase: 0.005, minDays: 7, maxDays: 21,
			genRecentPct: 40, genMidPct: 40, genOldPct: 20, conditionBias: 0, maxListings: 3}
	default: // National
		return searchTierParams{retainer: 2000_00, percentOfBase: 0.008, minDays: 14, maxDays: 42,
			genRecentPct: 55, genMidPct: 35, genOldPct: 10, conditionBias: -0.30, maxListings: 4}
	}
}

type qualityRange struct {
	priceLo, priceHi   float64
	damageLo, damageHi float64
	wearLo, wearHi     float64
}

func qualityParams(q QualityTier) qualityRange {
	switch q {
	case QualityPoor:
		return qualityRange{0.22, 0.38, 0.55, 0.80, 0.60, 0.85}
	case QualityFair:
		return qualityRange{0.50, 0.66, 0.15, 0.35, 0.18, 0.40}
	case QualityGood:
		return qualityRange{0.65, 0.80, 0.04, 0.16, 0.05, 0.20}
	case QualityExcellent:
		return qualityRange{0.80, 0.94, 0, 0.06, 0, 0.08}
	default: // Any
		return qualityRange{0.35, 0.52, 0.30, 0.60, 0.35, 0.65}
	}
}

// dnaTierWeights returns the (Lemon, Average, Workhorse, Legendary) weight
// distribution a seller personality biases listing DNA toward.
func dnaTierWeights(p SellerPersonality) [4]int {
	switch p {
	case Desperate:
		return [4]int{60, 30, 10, 0}
	case Motivated:
		return [4]int{30, 50, 20, 0}
	case Reasonable:
		return [4]int{15, 60, 25, 0}
	case Firm:
		return [4]int{5, 45, 45, 5}
	default: // Immovable
		return [4]int{0, 10, 45, 45}
	}
}

// ReliabilitySnapshot is the frozen per-component reliability captured into
// a listing at generation time.
type ReliabilitySnapshot struct {
	EngineR, HydraulicR, ElectricalR float64
}

func (s ReliabilitySnapshot) avg() float64 {
	return (s.EngineR + s.HydraulicR + s.ElectricalR) / 3.0
}

// InspectionReport is the cached result of inspecting a listing.
type InspectionReport struct {
	EngineR, HydraulicR, ElectricalR float64
	Rating                           string
	EstimatedRepairCost              money.Amount
	Assessment                       string
	Hours                            float64
	Damage, Wear                     float64
}

// Listing is a discoverable used-vehicle sale candidate (spec.md §3).
type Listing struct {
	ID                  string
	StoreItemRef        string
	BasePrice           money.Amount
	Generation          Generation
	Hours               float64
	Damage, Wear        float64
	Reliability         ReliabilitySnapshot
	DNA                 float64 // hidden from the player, surfaced only via inspection-derived rating
	SellerPersonality   SellerPersonality
	AskPrice            money.Amount
	CreatedAt           domain.Millis
	LockedUntil         domain.Millis
	FoundBy             string

	// FinalPrice is the settled purchase price once negotiation reaches
	// Accepted (by Negotiate, AcceptCounter, or a caved StandFirm roll),
	// read by a later PurchaseListing request.
	FinalPrice money.Amount

	negotiation    negotiationState
	lastOfferPct   float64
	lastCounterPct float64
	inspection     *InspectionReport
	walkedAway     bool
}

// SearchRequest is an in-flight or completed buy-side agent search.
type SearchRequest struct {
	ID             string
	FarmID         domain.FarmId
	AgentTier      AgentTier
	QualityTier    QualityTier
	RetainerPaid   money.Amount
	OpenedAt       domain.Millis
	CompletesAt    domain.Millis
	Status         SearchStatus
	FoundListingIDs []string
	basePrice      money.Amount
}

// SearchStatus is the lifecycle of a SearchRequest.
type SearchStatus int

const (
	SearchActive SearchStatus = iota
	SearchCompleted
	SearchCancelled
)

// MaxActiveSearches is the per-farm search cap (spec.md §3/§9).
const MaxActiveSearches = 5

// Errors.
type ErrSearchCapReached struct{ FarmID domain.FarmId }

func (e ErrSearchCapReached) Error() string {
	return fmt.Sprintf("marketplace: farm %d already has %d active searches", e.FarmID, MaxActiveSearches)
}

type ErrUnknownSearch struct{ ID string }

func (e ErrUnknownSearch) Error() string { return fmt.Sprintf("marketplace: unknown search %q", e.ID) }

type ErrUnknownListing struct{ ID string }

func (e ErrUnknownListing) Error() string { return fmt.Sprintf("marketplace: unknown listing %q", e.ID) }

type ErrListingLocked struct {
	ID          string
	LockedUntil domain.Millis
}

func (e ErrListingLocked) Error() string {
	return fmt.Sprintf("marketplace: listing %q locked until %d", e.ID, e.LockedUntil)
}

type ErrNotNegotiable struct{ ID string }

func (e ErrNotNegotiable) Error() string {
	return fmt.Sprintf("marketplace: listing %q is not open for negotiation", e.ID)
}

// Market is the aggregate buy-side marketplace subsystem.
type Market struct {
	seed     int64
	searches map[string]*SearchRequest
	listings map[string]*Listing
	sales    map[string]*SaleListing
	rollSeq  int64
}

// New constructs an empty marketplace seeded from the core's master seed.
func New(seed int64) *Market {
	return &Market{
		seed:     seed,
		searches: make(map[string]*SearchRequest),
		listings: make(map[string]*Listing),
		sales:    make(map[string]*SaleListing),
	}
}

func (m *Market) nextNonce() int64 {
	m.rollSeq++
	return m.rollSeq
}

// ActiveSearchCount returns the number of Active searches for a farm.
func (m *Market) ActiveSearchCount(farmID domain.FarmId) int {
	n := 0
	for _, s := range m.searches {
		if s.FarmID == farmID && s.Status == SearchActive {
			n++
		}
	}
	return n
}

// StartSearch opens a new buy-side search. The retainer is the caller's
// responsibility to debit via HostGameApi.AddMoney; this returns the amount
// owed so the caller (events layer) can do so atomically with validation.
func (m *Market) StartSearch(farmID domain.FarmId, tier AgentTier, quality QualityTier, basePrice money.Amount, now domain.Millis) (*SearchRequest, money.Amount, error) {
	if m.ActiveSearchCount(farmID) >= MaxActiveSearches {
		return nil, 0, ErrSearchCapReached{farmID}
	}
	p := tierParams(tier)
	retainer := p.retainer + basePrice.Mul(p.percentOfBase)

	days := rng.RollInt(m.seed, "search.duration", m.nextNonce(), p.minDays, p.maxDays)
	completesAt := now.Add(domain.Millis(days) * domain.Day)

	s := &SearchRequest{
		ID:           uuid.NewString(),
		FarmID:       farmID,
		AgentTier:    tier,
		QualityTier:  quality,
		RetainerPaid: retainer,
		OpenedAt:     now,
		CompletesAt:  completesAt,
		Status:       SearchActive,
		basePrice:    basePrice,
	}
	m.searches[s.ID] = s
	return s, retainer, nil
}

// CancelSearch cancels an active search; no refund is modeled (spec.md is
// silent — the retainer pays for agent time already spent).
func (m *Market) CancelSearch(searchID string) error {
	s, ok := m.searches[searchID]
	if !ok {
		return ErrUnknownSearch{searchID}
	}
	if s.Status != SearchActive {
		return fmt.Errorf("marketplace: search %q is not active", searchID)
	}
	s.Status = SearchCancelled
	return nil
}

// TickSearches completes every active search whose completion time has
// elapsed, generating 1..N listings for each (spec.md §4.4). Returns the
// ids of newly completed searches.
func (m *Market) TickSearches(now domain.Millis) []string {
	var completed []string
	ids := make([]string, 0, len(m.searches))
	for id := range m.searches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		s := m.searches[id]
		if s.Status != SearchActive || now.Before(s.CompletesAt) {
			continue
		}
		m.completeSearch(s, now)
		completed = append(completed, id)
	}
	return completed
}

func (m *Market) completeSearch(s *SearchRequest, now domain.Millis) {
	p := tierParams(s.AgentTier)
	n := rng.RollInt(m.seed, "search.count", m.nextNonce(), 1, p.maxListings)
	for i := 0; i < n; i++ {
		l := m.generateListing(s, p, now)
		m.listings[l.ID] = l
		s.FoundListingIDs = append(s.FoundListingIDs, l.ID)
	}
	s.Status = SearchCompleted
}

func (m *Market) generateListing(s *SearchRequest, p searchTierParams, now domain.Millis) *Listing {
	nonce := m.nextNonce()
	q := qualityParams(s.QualityTier)

	gen := pickGeneration(m.seed, nonce, p)
	personality := pickPersonality(m.seed, nonce)
	dna := pickDNA(m.seed, nonce, personality)

	damage := rng.RollRange(m.seed, "listing.damage", nonce+1, q.damageLo, q.damageHi)
	wear := rng.RollRange(m.seed, "listing.wear", nonce+2, q.wearLo, q.wearHi)
	damage = clamp01(damage * (1 + p.conditionBias))
	wear = clamp01(wear * (1 + p.conditionBias))

	priceFrac := rng.RollRange(m.seed, "listing.priceFrac", nonce+3, q.priceLo, q.priceHi)
	basePrice := s.basePrice
	if basePrice == 0 {
		basePrice = 100_000_00
	}
	askPrice := basePrice.Mul(priceFrac)

	avgR := 1.0 - (damage+wear)/2.0
	snapshot := ReliabilitySnapshot{
		EngineR:     clamp01(avgR + rng.RollRange(m.seed, "listing.rEngine", nonce+4, -0.05, 0.05)),
		HydraulicR:  clamp01(avgR + rng.RollRange(m.seed, "listing.rHyd", nonce+5, -0.05, 0.05)),
		ElectricalR: clamp01(avgR + rng.RollRange(m.seed, "listing.rElec", nonce+6, -0.05, 0.05)),
	}

	hours := rng.RollRange(m.seed, "listing.hours", nonce+7, float64(gen)*2000, float64(gen)*2000+3000)

	return &Listing{
		ID:                uuid.NewString(),
		StoreItemRef:      fmt.Sprintf("used:%s", s.basePriceRefOrDefault()),
		BasePrice:         basePrice,
		Generation:        gen,
		Hours:             hours,
		Damage:            damage,
		Wear:              wear,
		Reliability:       snapshot,
		DNA:               dna,
		SellerPersonality: personality,
		AskPrice:          askPrice,
		CreatedAt:         now,
		FoundBy:           s.ID,
		negotiation:       negOpen,
	}
}

func (s *SearchRequest) basePriceRefOrDefault() string {
	return s.basePrice.String()
}

func pickGeneration(seed, nonce int64, p searchTierParams) Generation {
	r := rng.RollInt(seed, "listing.generation", nonce, 1, 100)
	if r <= p.genRecentPct {
		return Recent
	}
	if r <= p.genRecentPct+p.genMidPct {
		return Mid
	}
	return Old
}

func pickPersonality(seed, nonce int64) SellerPersonality {
	r := rng.RollInt(seed, "listing.personality", nonce, 1, 100)
	switch {
	case r <= 20:
		return Desperate
	case r <= 45:
		return Motivated
	case r <= 75:
		return Reasonable
	case r <= 93:
		return Firm
	default:
		return Immovable
	}
}

func pickDNA(seed, nonce int64, personality SellerPersonality) float64 {
	weights := dnaTierWeights(personality)
	total := weights[0] + weights[1] + weights[2] + weights[3]
	if total == 0 {
		total = 1
	}
	r := rng.RollInt(seed, "listing.dnaTier", nonce+20, 1, total)
	var tier int
	acc := 0
	for i, w := range weights {
		acc += w
		if r <= acc {
			tier = i
			break
		}
	}
	lo, hi := tierDNARange(tier)
	return rng.RollRange(seed, "dna", nonce+21, lo, hi)
}

func tierDNARange(tier int) (lo, hi float64) {
	switch tier {
	case 0:
		return 0, 0.30
	case 1:
		return 0.30, 0.70
	case 2:
		return 0.70, 0.90
	default:
		return 0.90, 1.0
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Listing looks up a listing by id.
func (m *Market) Listing(id string) (*Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, ErrUnknownListing{id}
	}
	return l, nil
}

// Search looks up a search request by id.
func (m *Market) Search(id string) (*SearchRequest, error) {
	s, ok := m.searches[id]
	if !ok {
		return nil, ErrUnknownSearch{id}
	}
	return s, nil
}

// DeclineListing removes a listing without negotiation.
func (m *Market) DeclineListing(id string) error {
	if _, err := m.Listing(id); err != nil {
		return err
	}
	delete(m.listings, id)
	return nil
}

// InspectionCost is min(2000, 200 + 0.01*askPrice), per spec.md §4.4.
func InspectionCost(askPrice money.Amount) money.Amount {
	cost := money.Amount(200_00) + askPrice.Mul(0.01)
	return money.Clamp(cost, 0, 2000_00)
}

var mechanicAssessments = buildAssessmentTable()

// Inspect produces (or returns the cached) inspection report for a listing.
// The cache is invalidated if hours/damage/wear have drifted past the
// documented thresholds (spec.md §4.4).
func (m *Market) Inspect(id string) (InspectionReport, error) {
	l, err := m.Listing(id)
	if err != nil {
		return InspectionReport{}, err
	}
	if l.inspection != nil {
		cached := *l.inspection
		if absf(cached.Hours-l.Hours) <= 10 && absf(cached.Damage-l.Damage) <= 0.05 && absf(cached.Wear-l.Wear) <= 0.05 {
			return cached, nil
		}
	}
	avgR := l.Reliability.avg()
	rating := "Fair"
	switch {
	case avgR >= 0.85:
		rating = "Excellent"
	case avgR >= 0.70:
		rating = "Good"
	case avgR >= 0.50:
		rating = "Fair"
	case avgR >= 0.30:
		rating = "Poor"
	default:
		rating = "Very Poor"
	}
	report := InspectionReport{
		EngineR:              l.Reliability.EngineR,
		HydraulicR:           l.Reliability.HydraulicR,
		ElectricalR:          l.Reliability.ElectricalR,
		Rating:               rating,
		EstimatedRepairCost:  l.BasePrice.Mul((1 - avgR) * 0.15),
		Assessment:           assessmentFor(l.DNA),
		Hours:                l.Hours,
		Damage:               l.Damage,
		Wear:                 l.Wear,
	}
	l.inspection = &report
	return report, nil
}

func assessmentFor(dna float64) string {
	tier := 0
	switch {
	case dna >= 0.90:
		tier = 3
	case dna >= 0.70:
		tier = 2
	case dna >= 0.30:
		tier = 1
	}
	sub := int(dna*100) % 5
	return mechanicAssessments[tier][sub]
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
