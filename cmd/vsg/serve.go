package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vsg/api/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the portal API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		for _, key := range cfg.InsecureDefaults() {
			logger.Warn("credential left at its development default, set it before exposing the API", zap.String("env", key))
		}
		st, err := openStack(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer st.Close()

		service, err := app.New(cfg, app.Dependencies{
			Store:  st.store,
			Search: st.search,
			Export: st.export,
			Slot:   st.slot,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		st.search.ReindexAll()

		httpServer := app.NewHTTPServer(service, app.HTTPConfig{
			CORSOrigin:         cfg.CORSOrigin,
			LoginRatePerMinute: cfg.LoginRatePerMinute,
			Metrics:            st.metrics,
			Logger:             logger,
		})
		server := &http.Server{
			Addr:              cfg.Addr,
			Handler:           httpServer.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("VSG API listening", zap.String("addr", cfg.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("shutdown error", zap.Error(err))
		}
		return nil
	},
}
