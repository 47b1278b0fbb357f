// Package cli wires the dispatch pipeline behind cobra commands.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/millhouse-foods/erpsync/internal/adapters/driven/config/file"
	"github.com/millhouse-foods/erpsync/internal/adapters/driven/storage/sqlite"
	"github.com/millhouse-foods/erpsync/internal/connectors/bakeryops"
	"github.com/millhouse-foods/erpsync/internal/connectors/jde"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driven"
	"github.com/millhouse-foods/erpsync/internal/core/ports/driving"
	"github.com/millhouse-foods/erpsync/internal/core/services"
	"github.com/millhouse-foods/erpsync/internal/logger"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var (
	verboseFlag bool
	configDir   string
	dataDir     string
)

// Package-level services, wired lazily so tests can substitute mocks.
var (
	configStore    driven.ConfigStore
	ledgerStore    driven.DispatchLedger
	dispatchRunner driving.DispatchRunner

	store *sqlite.Store
)

var rootCmd = &cobra.Command{
	Use:   "erpsync",
	Short: "Dispatch ingredient depletions from the ops system to the ERP",
	Long: `erpsync fetches ingredient depletion actions from the bakery ops
system, derives a deterministic identity for each transaction, and posts
each one to the JDE ERP at most once. Outcomes are tracked in a local
ledger so re-runs are idempotent.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "config directory (default ~/.erpsync)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.erpsync/data)")
}

// Execute runs the root command.
func Execute() error {
	defer closeStore()
	return rootCmd.Execute()
}

// initConfig opens the config store.
func initConfig() error {
	if configStore != nil {
		return nil
	}
	cfg, err := file.NewConfigStore(configDir)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	configStore = cfg
	return nil
}

// initStore opens the sqlite store and the ledger.
func initStore() error {
	if ledgerStore != nil {
		return nil
	}
	s, err := sqlite.NewStore(dataDir)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	store = s
	ledgerStore = s.DispatchLedger()
	return nil
}

// initPipeline wires the full dispatch pipeline from config.
func initPipeline() error {
	if dispatchRunner != nil {
		return nil
	}
	if err := initConfig(); err != nil {
		return err
	}
	if err := initStore(); err != nil {
		return err
	}

	opsCfg := &bakeryops.Config{
		BaseURL:  configStore.GetString("bakeryops.base_url"),
		OutletID: configStore.GetString("bakeryops.outlet_id"),
		APIToken: configStore.GetString("bakeryops.api_token"),
		PageSize: configStore.GetInt("bakeryops.page_size"),
	}
	if err := opsCfg.Validate(); err != nil {
		return err
	}

	jdeCfg := &jde.Config{
		InventoryIssueURL: configStore.GetString("jde.inventory_issue_url"),
		ItemMasterURL:     configStore.GetString("jde.item_master_url"),
		Username:          configStore.GetString("jde.username"),
		Password:          configStore.GetString("jde.password"),
		GLCategory:        configStore.GetString("jde.gl_category"),
	}
	if err := jdeCfg.Validate(); err != nil {
		return err
	}

	cache := store.ResponseCache(cacheTTL())
	gateway := jde.New(jdeCfg, cache)
	source := bakeryops.New(opsCfg)

	dispatchRunner = services.NewDispatchOrchestrator(source, ledgerStore, gateway, cache)
	return nil
}

func cacheTTL() time.Duration {
	seconds := configStore.GetInt("cache.ttl_seconds")
	if seconds <= 0 {
		return sqlite.DefaultCacheTTL
	}
	return time.Duration(seconds) * time.Second
}

func closeStore() {
	if store != nil {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store: %v", err)
		}
	}
}
