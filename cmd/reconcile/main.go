package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fundtracer/fundtracer-backend/internal/app"
	"github.com/fundtracer/fundtracer-backend/internal/services"
)

// reconcile recomputes raised_amount for every campaign from its completed donations.
// Exit status 2 means drift was found and left unrepaired.
func main() {
	repair := flag.Bool("repair", false, "overwrite drifted raised_amount values")
	workers := flag.Int("workers", 4, "campaigns checked concurrently")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init app: %v\n", err)
		os.Exit(1)
	}

	results, err := a.Services.Campaign.ReconcileAll(ctx, services.ReconcileAllOptions{
		Repair:  *repair,
		Workers: *workers,
	})
	if err != nil {
		a.Log.Error("Reconcile failed", "error", err)
		a.Close()
		os.Exit(1)
	}

	drifted := 0
	for _, r := range results {
		if r.Consistent() {
			continue
		}
		drifted++
		fmt.Printf("%s recorded=%s computed=%s drift=%s repaired=%t\n",
			r.CampaignID, r.Recorded.StringFixed(2), r.Computed.StringFixed(2), r.Drift.StringFixed(2), r.Repaired)
	}
	fmt.Printf("checked=%d drifted=%d\n", len(results), drifted)
	a.Close()
	if drifted > 0 && !*repair {
		os.Exit(2)
	}
}
