package marketplace

// Snapshot is the serializable form of a Market, used by internal/persistence
// to save/load the whole core (spec.md §2 C9).
type Snapshot struct {
	Searches map[string]SearchRequest   `json:"searches"`
	Listings map[string]listingSnapshot `json:"listings"`
	Sales    map[string]saleSnapshot    `json:"sales"`
	RollSeq  int64                      `json:"roll_seq"`
}

type listingSnapshot struct {
	Listing
	Negotiation    negotiationState  `json:"negotiation"`
	LastCounterPct float64           `json:"last_counter_pct"`
	Inspection     *InspectionReport `json:"inspection,omitempty"`
	WalkedAway     bool              `json:"walked_away"`
}

type saleSnapshot struct {
	SaleListing
	ExtendedOnce bool `json:"extended_once"`
}

// Export captures every search, listing, and sale-listing for persistence.
func (m *Market) Export() Snapshot {
	snap := Snapshot{
		Searches: make(map[string]SearchRequest, len(m.searches)),
		Listings: make(map[string]listingSnapshot, len(m.listings)),
		Sales:    make(map[string]saleSnapshot, len(m.sales)),
		RollSeq:  m.rollSeq,
	}
	for id, s := range m.searches {
		snap.Searches[id] = *s
	}
	for id, l := range m.listings {
		snap.Listings[id] = listingSnapshot{
			Listing: *l, Negotiation: l.negotiation, LastCounterPct: l.lastCounterPct,
			Inspection: l.inspection, WalkedAway: l.walkedAway,
		}
	}
	for id, s := range m.sales {
		snap.Sales[id] = saleSnapshot{SaleListing: *s, ExtendedOnce: s.extendedOnce}
	}
	return snap
}

// Restore replaces the market's searches/listings/sales with a previously
// exported Snapshot, preserving the master seed already set at New.
func (m *Market) Restore(snap Snapshot) {
	m.searches = make(map[string]*SearchRequest, len(snap.Searches))
	for id, s := range snap.Searches {
		req := s
		m.searches[id] = &req
	}
	m.listings = make(map[string]*Listing, len(snap.Listings))
	for id, ls := range snap.Listings {
		l := ls.Listing
		l.negotiation = ls.Negotiation
		l.lastCounterPct = ls.LastCounterPct
		l.inspection = ls.Inspection
		l.walkedAway = ls.WalkedAway
		m.listings[id] = &l
	}
	m.sales = make(map[string]*SaleListing, len(snap.Sales))
	for id, ss := range snap.Sales {
		s := ss.SaleListing
		s.extendedOnce = ss.ExtendedOnce
		m.sales[id] = &s
	}
	m.rollSeq = snap.RollSeq
}
