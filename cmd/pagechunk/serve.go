package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/pagechunk/internal/api"
	"github.com/dgallion1/pagechunk/internal/pathstore"
	"github.com/dgallion1/pagechunk/internal/pipeline"
	"github.com/dgallion1/pagechunk/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the chunking worker pool",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateServer(); err != nil {
		return err
	}
	proc, err := newProcessor(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional collaborators stay nil interfaces when disabled.
	var (
		results pipeline.ResultStore
		docs    api.DocumentStore
		writer  pipeline.NodeWriter
		nodes   api.NodeStore
	)
	if cfg.Store.SQLitePath != "" {
		st, err := store.Open(cfg.Store.SQLitePath)
		if err != nil {
			return err
		}
		defer st.Close()
		results, docs = st, st
		log.Info().Str("path", cfg.Store.SQLitePath).Msg("result store enabled")
	}
	if cfg.Pathstore.URL != "" {
		ps := pathstore.NewClient(cfg.Pathstore.URL, cfg.Pathstore.APIKey)
		defer ps.Close()
		writer, nodes = ps, ps
		log.Info().Str("url", cfg.Pathstore.URL).Str("prefix", cfg.Pathstore.Prefix).Msg("publishing enabled")
	}

	orch := pipeline.NewOrchestrator(cfg, proc, results, writer, log)
	orch.Start(ctx)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      api.NewServer(orch, docs, nodes, cfg, log),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting pagechunk")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		orch.Stop()
		return err
	case <-ctx.Done():
	}

	// Graceful shutdown.
	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	orch.Stop()
	return nil
}
