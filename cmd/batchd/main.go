package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"

	"batchtrack-backend/config"
	"batchtrack-backend/internal/api"
	"batchtrack-backend/internal/calendar"
	"batchtrack-backend/internal/can"
	"batchtrack-backend/internal/db"
	"batchtrack-backend/internal/draft"
	"batchtrack-backend/internal/eligibility"
	"batchtrack-backend/internal/identity"
	"batchtrack-backend/internal/labeling"
	"batchtrack-backend/internal/packaging"
	"batchtrack-backend/internal/processing"
	"batchtrack-backend/internal/report"
	"batchtrack-backend/internal/store"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "batchd",
	Short: "batchd tracks field collection and the processing, packaging and labeling lines",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zc := zap.NewProductionConfig()
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if configPath == "" {
			configPath = os.Getenv("CONFIG_PATH")
		}
		if configPath == "" {
			configPath = "./config/config.yaml"
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration from %s: %w", configPath, err)
		}
		logger.Info("configuration loaded", zap.String("path", configPath))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $CONFIG_PATH or ./config/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	migrateCmd.Flags().BoolVar(&seed, "seed", false, "insert default collection centers when none exist")
	reportCmd.Flags().StringVar(&reportDate, "date", "", "report date as YYYY-MM-DD (default today)")

	rootCmd.AddCommand(serveCmd, migrateCmd, reportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB connects to PostgreSQL and migrates every partition.
func openDB() (*gorm.DB, error) {
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return gormDB, nil
}

// newServices wires every lifecycle service over one store.
func newServices(gormDB *gorm.DB) api.Services {
	st := store.NewGormStore(gormDB)
	centers := store.NewCenterDirectory(gormDB, cfg.Cache.CenterTTL)
	authz := identity.NewOwnerOrAdmin(cfg.App.AdminRole)
	cal := calendar.New(cfg.App.Location)

	return api.Services{
		Drafts:      draft.NewService(st, authz, cal, centers, logger),
		Cans:        can.NewRegistry(st, authz, centers, logger),
		Processing:  processing.NewService(st, authz, cal, logger),
		Packaging:   packaging.NewService(st, authz, cal, logger),
		Labeling:    labeling.NewService(st, authz, cal, logger),
		Eligibility: eligibility.NewResolver(st),
		Reports:     report.NewAggregator(st, logger),
		Centers:     centers,
	}
}
