package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"star-offers/internal/offer"
)

// pollTimeout bounds a single background run.
const pollTimeout = 5 * time.Minute

type FeedClient interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

type Publisher interface {
	PublishOffersUpdated(ctx context.Context, offers []offer.Offer, outputPath string) error
}

// ticker is an interface so we can swap out time.Ticker in tests.
type ticker interface {
	C() <-chan time.Time
	Stop()
}

type tickerFactory func(d time.Duration) ticker

// timeTicker is the real implementation backed by time.Ticker.
type timeTicker struct {
	*time.Ticker
}

func (t *timeTicker) C() <-chan time.Time {
	return t.Ticker.C
}

func (t *timeTicker) Stop() {
	t.Ticker.Stop()
}

// Result describes a completed run.
type Result struct {
	Skipped    bool   `json:"skipped"`
	Count      int    `json:"count"`
	OutputPath string `json:"outputPath,omitempty"`
}

type Service struct {
	client    FeedClient
	repo      offer.Repository
	publisher Publisher // optional
	stage     bool
	stageDir  string // empty means os.TempDir
	logger    *log.Logger
	newTicker tickerFactory

	mu sync.Mutex // one run at a time
}

func NewService(client FeedClient, repo offer.Repository, publisher Publisher, stage bool, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}

	return &Service{
		client:    client,
		repo:      repo,
		publisher: publisher,
		stage:     stage,
		logger:    logger,
		newTicker: func(d time.Duration) ticker {
			return &timeTicker{time.NewTicker(d)}
		},
	}
}

// Run fetches the feed once, projects its offers and replaces the output file.
// A document without pageProps is skipped without error. Any returned error is
// an *Error and has already been logged.
func (s *Service) Run(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.run(ctx)
	if err != nil {
		err = classify(err)
		s.logger.Println(err)
		return Result{}, err
	}
	return res, nil
}

func (s *Service) run(ctx context.Context) (Result, error) {
	s.logger.Printf("fetching offers from %s", s.client.URL())

	body, err := s.client.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}

	var doc json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return Result{}, &Error{Kind: KindParse, Err: err}
	}

	if s.stage {
		if doc, err = stageThroughTempFile(s.stageDir, doc, s.logger); err != nil {
			return Result{}, err
		}
	}

	records, found, err := locateOffers(doc)
	if err != nil {
		return Result{}, err
	}
	if !found {
		s.logger.Println("could not find the specified data path in the response")
		return Result{Skipped: true}, nil
	}

	// built in full before anything is written
	offers := make([]offer.Offer, 0, len(records))
	for i, raw := range records {
		o, err := Project(raw)
		if err != nil {
			return Result{}, newError(KindOf(err), "record %d: %w", i, errors.Unwrap(err))
		}
		offers = append(offers, o)
	}
	s.logger.Printf("processed %d offers", len(offers))

	if err := s.repo.Save(ctx, offers); err != nil {
		return Result{}, err
	}
	s.logger.Printf("processed data saved to: %s", s.repo.Path())

	if s.publisher != nil {
		if err := s.publisher.PublishOffersUpdated(ctx, offers, s.repo.Path()); err != nil {
			s.logger.Printf("failed publishing offers update: %v", err)
		} else {
			s.logger.Printf("published update for %d offers to message bus", len(offers))
		}
	}

	return Result{Count: len(offers), OutputPath: s.repo.Path()}, nil
}

// StartPolling re-runs the pipeline on every tick until ctx is cancelled.
func (s *Service) StartPolling(ctx context.Context, interval time.Duration) {
	t := s.newTicker(interval)
	defer t.Stop()

	pollCount := 0

	s.logger.Printf("refreshing every %v...", interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("poller stopping - context cancelled")
			return

		case <-t.C():
			pollCount++
			s.logger.Printf("poll #%d starting refresh...", pollCount)

			pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
			// Run logs its own failures
			_, _ = s.Run(pollCtx)
			cancel()
		}
	}
}
