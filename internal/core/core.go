// Package core wires the five tightly coupled subsystems (credit,
// reliability, finance, marketplace, service) and the host boundary into a
// single aggregate, exposing the explicit tick methods and request-dispatch
// entrypoint spec.md §9 calls for: "a single Core aggregate passed
// explicitly, never a package-level singleton."
//
// Grounded on the teacher's internal/bidengine.Engine, which plays the same
// role for the auction domain — one struct holding every collaborator the
// request handlers need, constructed once at startup and passed down.
package core

import (
	"log/slog"

	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/events"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/hostapi"
	"github.com/usedplus/core/internal/marketplace"
	"github.com/usedplus/core/internal/reliability"
	"github.com/usedplus/core/internal/service"
)

// Core is the single authoritative aggregate. Every subsystem is an
// exported field so handlers, tests, and the tick methods below can reach
// them directly, matching the teacher's pattern of exposing its Engine's
// collaborators rather than hiding them behind indirection layers.
type Core struct {
	Host        hostapi.HostGameApi
	Credit      *credit.Bureau
	Reliability *reliability.Engine
	Finance     *finance.Ledger
	Market      *marketplace.Market
	Service     *service.Engine
	Dispatcher  *events.Dispatcher

	// Events is the in-process publish/subscribe bus embedding code can
	// register against for state-change notifications (spec.md §6's
	// "event subscription for {onCreditScoreChanged, ...}") without going
	// through a network transport.
	Events *events.Bus

	log *slog.Logger
}

// New constructs a fully wired Core from a master seed and a host
// implementation. The same seed feeds every subsystem's RNG so a fixed
// (seed, tick log) pair reproduces an identical run (spec.md §8).
func New(seed int64, host hostapi.HostGameApi, inv *service.Inventory, log *slog.Logger) *Core {
	if log == nil {
		log = slog.Default()
	}
	bureau := credit.NewBureau(func(id int64) bool { return host.FarmExists(domain.FarmId(id)) })
	rel := reliability.New(seed, reliability.DefaultConfig())
	ledger := finance.New()
	market := marketplace.New(seed)
	svc := service.New(seed, inv)

	c := &Core{
		Host:        host,
		Credit:      bureau,
		Reliability: rel,
		Finance:     ledger,
		Market:      market,
		Service:     svc,
		Events:      events.NewBus(),
		log:         log,
	}
	c.Dispatcher = events.New(host, bureau, rel, ledger, market, svc)
	return c
}

// MonthTickResult summarizes one monthly-tick pass across every deal and
// search/sale window, for logging/report purposes.
type MonthTickResult struct {
	DealsProcessed    int
	Defaults          int
	Repossessions     int
	SearchesCompleted []string
	SalesResolved     map[string]marketplace.SaleResult
}

// MonthTick advances every active deal by one amortization period, then
// resolves every elapsed marketplace search/sale window, applying
// repossession and credit-event side effects through Host/Credit. Deals are
// processed in stable id order (spec.md §5) so a replay with the same tick
// log is deterministic regardless of map iteration order.
func (c *Core) MonthTick(now domain.Millis) MonthTickResult {
	res := MonthTickResult{SalesResolved: make(map[string]marketplace.SaleResult)}

	for _, deal := range c.Finance.All() {
		if deal.Status != finance.Active {
			continue
		}
		mr, err := c.Finance.AmortizeMonth(deal.ID, now)
		if err != nil {
			c.log.Error("month_tick_amortize_failed", "deal_id", deal.ID, "err", err)
			continue
		}
		res.DealsProcessed++
		if mr.PaidAmount > 0 {
			_ = c.Host.AddMoney(deal.FarmID, -mr.PaidAmount, "finance.monthly_payment")
		}
		for _, ev := range mr.CreditEvents {
			_ = c.Credit.RecordEvent(int64(deal.FarmID), ev, int64(now), deal.ID)
		}
		if len(mr.CreditEvents) > 0 {
			c.notifyCreditScoreChanged(deal.FarmID)
		}
		if mr.BecameDefaulted {
			res.Defaults++
		}
		if mr.Repossessed {
			res.Repossessions++
			c.repossess(deal)
		}
	}

	res.SearchesCompleted = c.Market.TickSearches(now)
	res.SalesResolved = c.Market.TickSales(now)
	for saleID, result := range res.SalesResolved {
		if !result.Sold {
			continue
		}
		sale, err := c.Market.SaleListingByID(saleID)
		if err != nil {
			continue
		}
		_ = c.Host.AddMoney(sale.FarmID, result.Proceeds-result.Fee, "marketplace.sale_proceeds")
		_ = c.Host.RemoveVehicle(sale.VehicleID)
		_ = c.Credit.RecordEvent(int64(sale.FarmID), credit.DealPaidOff, int64(now), saleID)
		c.notifyCreditScoreChanged(sale.FarmID)
	}

	c.Events.Publish(events.Notification{Kind: "MonthTickCompleted", MessageKey: "notice.month_tick"})
	return res
}

// notifyCreditScoreChanged publishes the farm's freshly recomputed score on
// the event bus, letting embedding code react (spec.md §6's
// onCreditScoreChanged) without querying the bureau on every tick.
func (c *Core) notifyCreditScoreChanged(farmID domain.FarmId) {
	farm := farmID
	c.Events.Publish(events.Notification{
		Kind:       "CreditScoreChanged",
		FarmID:     &farm,
		MessageKey: "notice.credit_score_changed",
	})
}

func (c *Core) repossess(deal *finance.Deal) {
	if deal.VehicleID != nil {
		_ = c.Host.RemoveVehicle(*deal.VehicleID)
	}
	if deal.LandID != nil {
		_ = c.Host.SetLandOwner(*deal.LandID, nil)
	}
}

// FrameTickResult summarizes one sub-second malfunction-evaluation pass.
type FrameTickResult struct {
	Malfunctions int
	Seizures     int
}

// FrameTick advances every vehicle the reliability engine has observed by
// dtSeconds, pulling live damage/hours/load from the host for each. It does
// not touch long-form restorations: those advance in whole game-hours
// through HourTick, while the malfunction state machine ticks continuously.
func (c *Core) FrameTick(now domain.Millis, dtSeconds float64) FrameTickResult {
	var res FrameTickResult
	for _, vehicleID := range c.Reliability.TrackedVehicles() {
		v, ok := c.Host.VehicleByID(vehicleID)
		if !ok {
			continue
		}
		result, err := c.Reliability.FrameTick(vehicleID, reliability.TickInput{
			Now:       now,
			DtSeconds: dtSeconds,
			Damage:    v.Damage,
			Hours:     v.Hours,
			Load:      v.Load,
		})
		if err != nil {
			c.log.Error("frame_tick_failed", "vehicle_id", vehicleID, "err", err)
			continue
		}
		if result.Triggered != nil {
			res.Malfunctions++
		}
		if result.Seized != nil {
			res.Seizures++
		}
	}
	return res
}

// HourTick advances every vehicle's in-progress long-form restoration by
// one whole game-hour (spec.md §4.6).
func (c *Core) HourTick(now domain.Millis) {
	for _, vehicleID := range c.Reliability.TrackedVehicles() {
		res, err := c.Service.TickRestoration(c.Reliability, vehicleID, now)
		if err != nil {
			continue
		}
		if res.DamagePenalty > 0 {
			_ = c.Host.AddVehicleDamage(vehicleID, res.DamagePenalty)
		}
	}
}
