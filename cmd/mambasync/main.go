// Command mambasync manages the local clinical monitoring store and its
// synchronization with the configured Google Sheets spreadsheet.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MaximoMartin/mambapp-sync/internal/sheets"
	"github.com/MaximoMartin/mambapp-sync/internal/store"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "mambasync",
	Short: "Clinical monitoring record store and spreadsheet sync",
	Long: `mambasync keeps a local store of clinical monitoring records and
reconciles it with a remote Google Sheets spreadsheet.

The local database is the source of truth for data entry; the spreadsheet
is a shared, human-readable mirror. A full sync downloads the remote rows,
merges them with local changes (local wins by id) and rewrites both sides;
a quick sync pushes local changes append-only.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: mambasync.yaml)")
	rootCmd.PersistentFlags().String("db", "", "path to the local database")
	_ = viper.BindPFlag("db_path", rootCmd.PersistentFlags().Lookup("db"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mambasync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetDefault("db_path", ".mambapp/monitorings.db")
	viper.SetDefault("credentials_file", "credentials.json")
	viper.SetDefault("credentials_json", "")
	viper.SetDefault("sync.interval_minutes", 15)
	viper.SetDefault("sync.error_cooldown_seconds", 30)
	viper.SetDefault("daemon.full_sync_hours", 12)
	viper.SetDefault("daemon.log_file", "")

	viper.SetEnvPrefix("MAMBASYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
			os.Exit(1)
		}
	}
}

// openStore opens the configured database and initializes the schema.
// This is the composition root for local persistence: every command
// constructs its dependencies explicitly from here.
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(viper.GetString("db_path"))
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// openGateway constructs the sheets gateway. Inline service-account
// JSON (credentials_json, typically via MAMBASYNC_CREDENTIALS_JSON)
// takes precedence over the credentials file, so deployments without a
// key file on disk can still authenticate.
func openGateway(ctx context.Context) (sheets.Gateway, error) {
	if raw := viper.GetString("credentials_json"); raw != "" {
		return sheets.NewWithCredentialsJSON(ctx, []byte(raw))
	}
	return sheets.New(ctx, viper.GetString("credentials_file"))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
