package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"track-finder/internal/api"
	"track-finder/internal/app"
	"track-finder/internal/config"
)

var (
	cfg        *config.Config
	configPath string
	port       int
)

var rootCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the unpaved roads finder",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional
		_ = godotenv.Load()

		c, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := app.New(cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		if port == 0 {
			port = cfg.Server.Port
		}

		// A search may run every executor attempt back to back
		retry := cfg.Overpass.Retry()
		writeTimeout := time.Duration(retry.Attempts())*(retry.Timeout+retry.MaxBackoff) + 30*time.Second

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           api.NewRouter(env.Finder, env.Catalog, cfg.Filter.MinLengthMiles),
			ReadHeaderTimeout: 10 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       2 * time.Minute,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			shutdown(srv, 15*time.Second)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("store", cfg.Store.Path),
			zap.Duration("write_timeout", writeTimeout),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// shutdown drains in-flight requests, giving up after timeout
func shutdown(srv *http.Server, timeout time.Duration) {
	zap.L().Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Error("server shutdown", zap.Error(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./config.yaml)")
	rootCmd.Flags().IntVar(&port, "port", 0, "port to listen on (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
