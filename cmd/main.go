package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"kdstore/internal/config"
	"kdstore/internal/db"
	"kdstore/internal/metrics"
	"kdstore/internal/server"
	"kdstore/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var (
	cfgFile   string
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "kdstore",
	Short: "kdstore - KD-tree embedding similarity server",
	Long: `kdstore keeps named KD-trees of embeddings, answers exact nearest
neighbour queries over HTTP and persists every tree to disk or an S3
compatible bucket under a memory budget.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "kdstore %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (environment variables override it)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "server URL for client commands")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(inspectCmd)
}

func runServer(ctx context.Context) error {
	conf, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitLogger(conf.Log.Level, conf.Log.File); err != nil {
		return err
	}
	defer logger.Sync()
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := server.Options{
		Addr:              conf.Address(),
		RequestsPerSecond: conf.RateLimit.RequestsPerSecond,
		Burst:             conf.RateLimit.Burst,
	}
	database := &db.DB{}
	if conf.Metrics.Enabled {
		m := metrics.New()
		opts.Metrics = m
		database.Observer = m
	}
	if err := database.Open(ctx, conf); err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	srv := server.New(database, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err = <-errCh:
		if err != nil {
			logger.Error("HTTP server failed", "error", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown failed", "error", err)
		}
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if cerr := database.Close(closeCtx); cerr != nil {
		logger.Error("Failed to flush trees on shutdown", "error", cerr)
		if err == nil {
			err = cerr
		}
	}
	return err
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
