package core

import (
	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

// Snapshot is the full serializable state of a Core (spec.md §2 C9: "snapshot
// save/load of all core state"). It is the unit internal/persistence.Store
// saves and loads — a plain data aggregate, never the live Core itself, so a
// restored run can be replayed deterministically from this point forward.
type Snapshot struct {
	Credit      credit.Snapshot      `json:"credit"`
	Reliability reliability.Snapshot `json:"reliability"`
	Finance     finance.Snapshot     `json:"finance"`
	Market      marketplace.Snapshot `json:"market"`
	Service     service.Snapshot     `json:"service"`
}

// Snapshot captures every subsystem's state into one serializable value.
func (c *Core) Snapshot() Snapshot {
	return Snapshot{
		Credit:      c.Credit.Export(),
		Reliability: c.Reliability.Export(),
		Finance:     c.Finance.Export(),
		Market:      c.Market.Export(),
		Service:     c.Service.Export(),
	}
}

// Restore replaces every subsystem's state with a previously captured
// Snapshot. The Core must already be constructed (via New, with the same
// master seed the snapshot was taken under) so its RNG streams and host
// binding are in place before state is restored on top.
func (c *Core) Restore(snap Snapshot) {
	c.Credit.Restore(snap.Credit)
	c.Reliability.Restore(snap.Reliability)
	c.Finance.Restore(snap.Finance)
	c.Market.Restore(snap.Market)
	c.Service.Restore(snap.Service)
}
