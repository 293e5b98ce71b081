package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"star-offers/internal/config"
	"star-offers/internal/event"
	"star-offers/internal/ingest"
	"star-offers/internal/offer"
	"star-offers/internal/server"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd(logger *log.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "offers-sync",
		Short:         "Fetch star offers and write the reduced offer list to a JSON file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newRunCmd(logger))
	root.AddCommand(newServeCmd(logger))

	return root
}

func newRunCmd(logger *log.Logger) *cobra.Command {
	var (
		feedURL    string
		outputPath string
		noStage    bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch the feed once and write the offers file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("url") {
				cfg.FeedURL = feedURL
			}
			if cmd.Flags().Changed("output") {
				cfg.OutputPath = outputPath
			}
			if noStage {
				cfg.StageTempFile = false
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.svc.Run(cmd.Context())
			if err != nil {
				return err
			}
			if res.Skipped {
				logger.Println("run finished without writing offers")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&feedURL, "url", "", "feed URL (overrides "+config.FeedURL+")")
	cmd.Flags().StringVar(&outputPath, "output", "", "output file (overrides "+config.OutputPath+")")
	cmd.Flags().BoolVar(&noStage, "no-stage", false, "skip the temporary file round trip")

	return cmd
}

func newServeCmd(logger *log.Logger) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the offers file over HTTP and refresh it on demand or on an interval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cmd.Flags().Changed("addr") {
				cfg.HTTPAddr = addr
			}

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			srv := server.New(cfg.HTTPAddr, server.NewRouter(a.svc, a.repo, logger))
			server.Start(srv, logger)

			if cfg.RefreshInterval > 0 {
				go func() {
					_, _ = a.svc.Run(ctx)
					a.svc.StartPolling(ctx, cfg.RefreshInterval)
				}()
			}

			logger.Println("service started")

			// Block until we receive a signal / ctx cancelled
			<-ctx.Done()
			logger.Println("shutdown signal received, shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Printf("HTTP server shutdown error: %v", err)
			}

			logger.Println("shutdown complete")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides "+config.HTTPAddr+")")

	return cmd
}

type app struct {
	svc   *ingest.Service
	repo  offer.Repository
	close func()
}

func newApp(cfg config.Config, logger *log.Logger) (*app, error) {
	httpClient := &http.Client{Timeout: cfg.Timeout}
	feedClient := ingest.NewFeedClient(cfg.FeedURL, httpClient)

	repo := offer.NewFileRepository(cfg.OutputPath, logger)

	closeFn := func() {}
	var publisher ingest.Publisher
	if cfg.RabbitURI != "" {
		p, err := event.NewRabbitPublisher(cfg.RabbitURI, cfg.RabbitExchange, cfg.RabbitRoutingKey, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to init rabbit publisher: %w", err)
		}
		publisher = p
		closeFn = p.Close
	}

	return &app{
		svc:   ingest.NewService(feedClient, repo, publisher, cfg.StageTempFile, logger),
		repo:  repo,
		close: closeFn,
	}, nil
}
