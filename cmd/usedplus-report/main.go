// Command usedplus-report prints a farm's credit, active finance deals, and
// vehicle reliability standing from the persisted simulation state, for
// operators who want a quick ledger check without standing up the full HTTP
// harness. Grounded on polybot's console reporter
// (internal/adapters/notify/console.go): a tablewriter table plus a short
// narrative summary, read-only against whatever internal/persistence.Store
// backend cmd/server is configured with.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/usedplus/core/internal/config"
	"github.com/usedplus/core/internal/credit"
	"github.com/usedplus/core/internal/domain"
	"github.com/usedplus/core/internal/finance"
	"github.com/usedplus/core/internal/persistence"
	"github.com/usedplus/core/internal/reliability"
)

func main() {
	farmFlag := flag.Int64("farm", 0, "farm id to report on (required)")
	flag.Parse()

	if *farmFlag == 0 {
		fmt.Fprintln(os.Stderr, "usage: usedplus-report -farm <id>")
		os.Exit(2)
	}
	farmID := domain.FarmId(*farmFlag)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open persistence store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	snap, err := store.Load(ctx)
	if err != nil {
		if err == persistence.ErrNoSnapshot {
			fmt.Println("no snapshot saved yet; nothing to report")
			return
		}
		fmt.Fprintf(os.Stderr, "load snapshot: %v\n", err)
		os.Exit(1)
	}

	bureau := credit.NewBureau(func(int64) bool { return true })
	bureau.Restore(snap.Credit)

	ledger := finance.New()
	ledger.Restore(snap.Finance)

	relEngine := reliability.New(0, reliability.DefaultConfig())
	relEngine.Restore(snap.Reliability)

	printCreditSummary(bureau, farmID)
	deals := ledger.ForFarm(farmID)
	printDeals(deals)
	printReliability(relEngine, deals)
}

func openStore(ctx context.Context, cfg *config.Config) (persistence.Store, error) {
	switch cfg.PersistenceBackend {
	case "postgres":
		return persistence.OpenPostgres(ctx, cfg.DatabaseURL)
	default:
		return persistence.OpenSQLite(cfg.SQLitePath)
	}
}

func printCreditSummary(bureau *credit.Bureau, farmID domain.FarmId) {
	score, err := bureau.Score(int64(farmID))
	if err != nil {
		fmt.Fprintf(os.Stderr, "credit score: %v\n", err)
		os.Exit(1)
	}
	rating, _ := bureau.Rating(int64(farmID))

	fmt.Printf("Farm %d credit: %d (%s)\n\n", farmID, score, rating)
}

func printDeals(deals []*finance.Deal) {
	if len(deals) == 0 {
		fmt.Println("No active finance or lease deals.")
		fmt.Println()
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"ID", "Kind", "Status", "Item", "Balance", "Monthly", "Missed", "Months Paid"})
	for _, d := range deals {
		table.Append([]string{
			d.ID,
			d.Kind.String(),
			d.Status.String(),
			d.ItemName,
			humanize.FormatFloat("#,###.##", d.CurrentBalance.Decimal().InexactFloat64()),
			humanize.FormatFloat("#,###.##", d.MonthlyPayment.Decimal().InexactFloat64()),
			fmt.Sprintf("%d", d.MissedPayments),
			fmt.Sprintf("%d/%d", d.MonthsPaid, d.TermMonths),
		})
	}
	table.Render()
	fmt.Println()
}

func printReliability(engine *reliability.Engine, deals []*finance.Deal) {
	var vehicleIDs []domain.VehicleId
	for _, d := range deals {
		if d.VehicleID != nil {
			vehicleIDs = append(vehicleIDs, *d.VehicleID)
		}
	}
	if len(vehicleIDs) == 0 {
		fmt.Println("No financed or leased vehicles to assess.")
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Vehicle", "Engine", "Hydraulic", "Electrical", "Ceiling", "Repairs", "Breakdowns", "Malfunction"})
	for _, id := range vehicleIDs {
		rec, err := engine.RecordFor(id)
		if err != nil {
			continue
		}
		malfunction := "none"
		if rec.Malfunction != nil {
			malfunction = rec.Malfunction.Kind.String()
		}
		table.Append([]string{
			fmt.Sprintf("%d", id),
			pct(rec.EngineR),
			pct(rec.HydraulicR),
			pct(rec.ElectricalR),
			pct(rec.Ceiling),
			fmt.Sprintf("%d", rec.RepairCount),
			fmt.Sprintf("%d", rec.BreakdownCount),
			malfunction,
		})
	}
	table.Render()
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
