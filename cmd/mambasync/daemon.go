package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/MaximoMartin/mambapp-sync/internal/scheduler"
	syncpkg "github.com/MaximoMartin/mambapp-sync/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync daemon (foreground)",
	Long: `Run the sync daemon in the foreground.

The daemon drives two independent triggering mechanisms against the same
orchestrator:

  1. The auto-sync loop: a quick sync at the configured interval, with a
     shorter cooldown after a failed pass.
  2. The background scheduler: an immediate full sync on start and a
     periodic full sync at a long cadence, constrained to run only when
     the network is reachable, with exponential retry backoff.

Press Ctrl+C to stop.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := daemonLogger()

		st, err := openStore(ctx)
		if err != nil {
			fatalf("opening store: %v", err)
		}
		defer st.Close()

		gw, err := openGateway(ctx)
		if err != nil {
			fatalf("creating sheets client: %v", err)
		}

		manager := syncpkg.New(st, gw, &syncpkg.Config{
			ErrorCooldown: time.Duration(viper.GetInt("sync.error_cooldown_seconds")) * time.Second,
			Logger:        logger,
		})

		sched := scheduler.New(&scheduler.Config{
			MinInterval: time.Minute,
			MaxAttempts: 3,
			BackoffBase: 30 * time.Second,
			BackoffCap:  10 * time.Minute,
			Logger:      logger,
		}, scheduler.Probes{
			NetworkAvailable: networkAvailable,
		})

		fullSyncJob := scheduler.Job{
			Key:         "full-sync",
			Run:         manager.FullSync,
			Constraints: scheduler.Constraints{RequireNetwork: true},
		}

		interval := time.Duration(viper.GetInt("sync.interval_minutes")) * time.Minute
		fullEvery := time.Duration(viper.GetInt("daemon.full_sync_hours")) * time.Hour

		logger.Printf("Daemon starting: quick sync every %v, full sync every %v", interval, fullEvery)
		fmt.Printf("Sync daemon running (quick every %v, full every %v). Press Ctrl+C to stop.\n", interval, fullEvery)

		sched.SchedulePeriodic(fullSyncJob, fullEvery)
		sched.RunImmediate(fullSyncJob)
		sched.Start()

		manager.StartAutoSync(interval)

		<-ctx.Done()
		logger.Printf("Shutdown signal received")

		manager.StopAutoSync()
		sched.Stop()
		logger.Printf("Daemon stopped")
	},
}

// daemonLogger builds the daemon's logger, routing through a rotating
// log file when one is configured.
func daemonLogger() *log.Logger {
	logFile := viper.GetString("daemon.log_file")
	if logFile == "" {
		return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
	}
	return log.New(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
	}, "[daemon] ", log.LstdFlags)
}

// networkAvailable probes reachability of the spreadsheet service.
func networkAvailable() bool {
	conn, err := net.DialTimeout("tcp", "sheets.googleapis.com:443", 3*time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
