package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

// ValidationFacade lets the sweeper find and reject orders no officer reviewed in time.
type ValidationFacade interface {
	StaleValidations(ctx context.Context, olderThan time.Time, limit int) ([]model.Order, error)
	ExpireValidation(ctx context.Context, orderID string) error
}

// ValidationSweeper rejects pending validations older than the validation timeout.
type ValidationSweeper struct {
	facade       ValidationFacade
	pollInterval time.Duration
	timeout      time.Duration
	batchSize    int
	parallelism  int
	logger       *slog.Logger
	now          func() time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

func NewValidationSweeper(facade ValidationFacade, pollInterval, timeout time.Duration, batchSize, parallelism int, logger *slog.Logger) *ValidationSweeper {
	if parallelism <= 0 {
		parallelism = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &ValidationSweeper{
		facade:       facade,
		pollInterval: pollInterval,
		timeout:      timeout,
		batchSize:    batchSize,
		parallelism:  parallelism,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *ValidationSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				if _, err := s.Sweep(runCtx); err != nil && !errors.Is(err, context.Canceled) {
					s.logger.Error("validation sweep failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

func (s *ValidationSweeper) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Sweep rejects one batch of expired validations and returns how many were rejected.
func (s *ValidationSweeper) Sweep(ctx context.Context) (int, error) {
	orders, err := s.facade.StaleValidations(ctx, s.now().Add(-s.timeout), s.batchSize)
	if err != nil {
		return 0, err
	}

	var (
		mu       sync.Mutex
		rejected int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, order := range orders {
		orderID := order.ID
		g.Go(func() error {
			err := s.facade.ExpireValidation(gctx, orderID)
			switch {
			case err == nil:
				mu.Lock()
				rejected++
				mu.Unlock()
				s.logger.Info("validation expired", slog.String("order_id", orderID))
			case errors.Is(err, domainErrors.ErrInvalidTransition), errors.Is(err, domainErrors.ErrNotFound):
				// decided or cancelled since the batch was read
			default:
				s.logger.Error("expire validation failed",
					slog.String("order_id", orderID),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	return rejected, g.Wait()
}
