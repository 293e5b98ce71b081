package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"star-offers/internal/ingest"
)

func main() {
	// Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[offers-sync] ", log.LstdFlags|log.Lshortfile)

	if err := newRootCmd(logger).ExecuteContext(ctx); err != nil {
		// pipeline failures are logged by the service itself
		var runErr *ingest.Error
		if !errors.As(err, &runErr) {
			logger.Printf("%v", err)
		}
		stop()
		os.Exit(1)
	}
}
