package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/config"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/models"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/utils"
	"github.com/fbaqueriza/whatsap-inbox-gs-sub002/workflow"
)

func main() {
	ownerID := flag.String("owner-id", "", "Optional: backfill only one owner (uuid string). If empty, backfills all owners.")
	statuses := flag.String("statuses", "Pending,Processed", "Comma-separated record statuses to re-run.")
	limit := flag.Int("limit", 0, "Optional: max records to process (0 = no limit).")
	dryRun := flag.Bool("dry-run", false, "List matching records without reconciling them.")
	enqueue := flag.Bool("enqueue", false, "Publish reprocess messages to the reconciliation topic instead of running inline.")
	flag.Parse()

	ctx := context.Background()
	// Explicit DB connect (config no longer connects DB in init()).
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	// Ensure schema is up-to-date.
	models.MigrateTable()

	var statusList []models.RecordStatus
	for _, s := range strings.Split(*statuses, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		statusList = append(statusList, models.RecordStatus(s))
	}
	if len(statusList) == 0 {
		fmt.Fprintln(os.Stderr, "no statuses given")
		os.Exit(1)
	}

	listCtx := ctx
	if strings.TrimSpace(*ownerID) == "" {
		// Cross-owner listing is an internal ops operation.
		listCtx = utils.SetSkipTenantScopeInContext(ctx, true)
	}
	records, err := models.ListPaymentRecordsByStatus(listCtx, strings.TrimSpace(*ownerID), statusList, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to list records: %v\n", err)
		os.Exit(1)
	}
	if len(records) == 0 {
		fmt.Println("no records to reconcile")
		return
	}

	pipeline := workflow.NewPipeline(workflow.PipelineDeps{
		Records:   models.Store{},
		Providers: models.Store{},
		Orders:    models.Store{},
		Owners:    models.Store{},
		Logger:    config.GetLogger(),
	})

	var assigned, processed, enqueued, failed int
	start := time.Now()
	for _, record := range records {
		if *dryRun {
			fmt.Printf("would reconcile record=%s owner=%s status=%s\n", record.ID, record.OwnerId, record.Status)
			continue
		}
		if *enqueue {
			err := config.PublishReconcile(config.ReconcileMessage{
				OwnerId:  record.OwnerId,
				RecordId: record.ID,
				Action:   "reprocess",
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "record %s enqueue failed: %v\n", record.ID, err)
				failed++
				continue
			}
			enqueued++
			continue
		}
		runCtx := utils.SetOwnerIdInContext(ctx, record.OwnerId)
		result, err := pipeline.Run(runCtx, record.ID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "record %s failed: %v\n", record.ID, err)
			failed++
			continue
		}
		if result.Status == models.RecordStatusAssigned {
			assigned++
			fmt.Printf("record %s assigned provider=%d order=%d confidence=%.2f\n",
				result.ID,
				utils.DereferencePtr(result.AssignedProviderId),
				utils.DereferencePtr(result.AssignedOrderId),
				utils.DereferencePtr(result.AssignmentConfidence))
		} else {
			processed++
		}
	}

	fmt.Printf("Backfill complete: records=%d assigned=%d processed=%d enqueued=%d failed=%d elapsed=%s\n",
		len(records), assigned, processed, enqueued, failed, time.Since(start).Round(time.Millisecond))
}
