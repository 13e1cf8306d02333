package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	syncpkg "github.com/MaximoMartin/mambapp-sync/internal/sync"
)

var setupCmd = &cobra.Command{
	Use:   "setup <spreadsheet-id>",
	Short: "Configure sync against a spreadsheet",
	Long: `Configure synchronization against the given spreadsheet.

The spreadsheet must be reachable with the configured credentials; the
reachability check fetches its metadata before anything is persisted.
On success the spreadsheet id is stored durably and the sync metadata
entry is created with status CONFIGURED.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		gw, err := openGateway(ctx)
		if err != nil {
			fatalf("creating sheets client: %v", err)
		}

		manager := syncpkg.New(st, gw, nil)
		if err := manager.SetupSync(ctx, args[0]); err != nil {
			fatalf("setup failed: %v", err)
		}

		fmt.Printf("Sync configured against spreadsheet %s\n", args[0])
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a full bidirectional sync pass",
	Long: `Run a full sync pass:

  1. Download and decode the remote rows
  2. Detect local changes since the last sync
  3. Merge both sets, local wins by id
  4. Rewrite the remote range as an exact mirror of the merged set
  5. Persist the merged set locally
  6. Update the sync metadata`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		gw, err := openGateway(ctx)
		if err != nil {
			fatalf("creating sheets client: %v", err)
		}

		manager := syncpkg.New(st, gw, nil)
		start := time.Now()
		if err := manager.FullSync(ctx); err != nil {
			fatalf("full sync failed: %v", err)
		}

		count, _ := st.CountMonitorings(ctx)
		fmt.Printf("Full sync complete in %v (%d records)\n", time.Since(start).Round(time.Millisecond), count)
	},
}

var pushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push local changes to the spreadsheet (quick sync)",
	Long: `Run a quick sync pass: append local records created or modified
since the last sync to the spreadsheet. Nothing is downloaded or merged;
when there are no local changes no remote call is made.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		gw, err := openGateway(ctx)
		if err != nil {
			fatalf("creating sheets client: %v", err)
		}

		manager := syncpkg.New(st, gw, nil)
		if err := manager.QuickSync(ctx); err != nil {
			fatalf("quick sync failed: %v", err)
		}

		fmt.Println("Quick sync complete")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local store and sync status",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		count, err := st.CountMonitorings(ctx)
		if err != nil {
			fatalf("counting records: %v", err)
		}

		spreadsheetID, err := st.GetPreference(ctx, syncpkg.PrefSpreadsheetID)
		if err != nil {
			fatalf("reading preferences: %v", err)
		}

		fmt.Printf("\nMonitoring records: %d\n", count)
		if spreadsheetID == "" {
			fmt.Println("Sync: not configured (run 'mambasync setup <spreadsheet-id>')")
			fmt.Println()
			return
		}
		fmt.Printf("Spreadsheet: %s\n", spreadsheetID)

		md, err := st.GetSyncMetadata(ctx, syncpkg.Collection)
		if err != nil {
			fmt.Println("Sync metadata: missing")
			fmt.Println()
			return
		}

		fmt.Printf("Range: %s\n", md.RangeExpr)
		fmt.Printf("Status: %s\n", md.Status)
		fmt.Printf("Last remote row count: %d\n", md.LastRowCount)
		if md.LastSyncMs > 0 {
			fmt.Printf("Last sync: %s\n", time.UnixMilli(md.LastSyncMs).Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("Last sync: never")
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(statusCmd)
}
