package main

import (
	"fmt"
	"os"
	"time"

	"covidash/internal/api"
	"covidash/internal/config"
	"covidash/internal/engine"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	cfgPath    string
	dataPath   string
	listenAddr string
	verbose    bool

	// Logger
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "covidash",
	Short: "COVID-19 India case dashboard",
	Long: `covidash serves an interactive dashboard over a static CSV of COVID-19
case records for India.

The dataset is loaded once at startup into an in-memory columnar store; the
API derives per-region daily deltas and 7-day moving averages on demand.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: runServer,
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("data") {
		cfg.Data = dataPath
	}
	if cmd.Flags().Changed("listen") {
		cfg.Listen = listenAddr
	}

	// The API is live immediately; data endpoints answer 503 until the
	// background load publishes the store.
	e := echo.New()
	e.HideBanner = true
	e.JSONSerializer = api.JSONSerializer{}
	e.Use(middleware.CORS())
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	h := api.NewHandler(nil)
	h.RegisterRoutes(e)

	go func() {
		t0 := time.Now()
		store, err := engine.Load(cfg.Data, logger)
		if err != nil {
			// Dataset unavailability is fatal; no partial dashboard.
			logger.Fatal("dataset load failed", zap.Error(err))
		}
		h.SetData(store)
		logger.Info("dashboard ready",
			zap.Int("rows", store.Len()),
			zap.Int("regions", len(store.RegionDict)),
			zap.Duration("elapsed", time.Since(t0)))
	}()

	logger.Info("listening", zap.String("addr", cfg.Listen))
	return e.Start(cfg.Listen)
}

func main() {
	rootCmd.Flags().StringVar(&dataPath, "data", "", "path of the case dataset CSV")
	rootCmd.Flags().StringVar(&listenAddr, "listen", "", "HTTP listen address")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path of an optional YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
