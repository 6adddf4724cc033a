package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	h "github.com/veranemoloko/bookvault/internal/api/http"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local HTTP control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	a, err := newApp(opts, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	defer a.close()

	rootURL, err := a.resolveAPIRoot(ctx)
	if err != nil {
		a.logger.Warn("remote API unavailable, serving local archive only", "error", err)
	}
	a.connect(rootURL)

	var client h.RemoteClientI
	if rootURL != "" {
		client = a.client
	}

	router := h.NewRouter(a.archive, a.resources, client, a.logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  a.cfg.HTTPTimeout,
		WriteTimeout: a.cfg.HTTPTimeout,
		IdleTimeout:  a.cfg.HTTPTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "address", server.Addr, "api_root", rootURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown failed", "error", err)
		return err
	}
	a.logger.Info("server stopped gracefully")
	return nil
}
