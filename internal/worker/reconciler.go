package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/polkiloo/agrilink/internal/adapter/payment"
	"github.com/polkiloo/agrilink/internal/domain/model"
)

// ReconcileFacade exposes the subset of application functionality required by the reconciler.
type ReconcileFacade interface {
	OpenReconciliations(ctx context.Context, limit int) ([]model.Reconciliation, error)
	Reconcile(ctx context.Context, entry model.Reconciliation) (bool, error)
	StaleCharges(olderThan time.Duration) []payment.PendingCharge
	SettleCharge(ctx context.Context, charge payment.PendingCharge) error
	PruneSessions(maxIdle time.Duration) int
}

// job is either a reconciliation entry or an open charge past its timeout.
type job struct {
	entry  *model.Reconciliation
	charge *payment.PendingCharge
}

// Reconciler settles overdue charges and works the reconciliation queue concurrently.
type Reconciler struct {
	facade        ReconcileFacade
	pollInterval  time.Duration
	chargeTimeout time.Duration
	batchSize     int
	workers       int
	logger        *slog.Logger

	jobs   chan job
	wg     sync.WaitGroup
	cancel context.CancelFunc
	mu     sync.Mutex
}

// NewReconciler constructs the reconciler worker pool.
func NewReconciler(facade ReconcileFacade, pollInterval, chargeTimeout time.Duration, batchSize, workers int, logger *slog.Logger) *Reconciler {
	if workers <= 0 {
		workers = 1
	}
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Reconciler{
		facade:        facade,
		pollInterval:  pollInterval,
		chargeTimeout: chargeTimeout,
		batchSize:     batchSize,
		workers:       workers,
		logger:        logger,
		jobs:          make(chan job, batchSize*workers),
	}
}

// Start launches background processing.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.worker(runCtx)
	}

	r.wg.Add(1)
	go r.dispatch(runCtx)
}

// Stop waits for all workers to finish.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.mu.Unlock()

	r.wg.Wait()
}

func (r *Reconciler) dispatch(ctx context.Context) {
	defer r.wg.Done()
	defer close(r.jobs)
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fetchAndDispatch(ctx)
		}
	}
}

func (r *Reconciler) fetchAndDispatch(ctx context.Context) {
	var batch []job
	entries, err := r.facade.OpenReconciliations(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("fetch reconciliation entries failed", slog.String("error", err.Error()))
	}
	for i := range entries {
		batch = append(batch, job{entry: &entries[i]})
	}
	charges := r.facade.StaleCharges(r.chargeTimeout)
	for i := range charges {
		batch = append(batch, job{charge: &charges[i]})
	}

	for _, j := range batch {
		select {
		case <-ctx.Done():
			return
		case r.jobs <- j:
		}
	}

	if removed := r.facade.PruneSessions(2 * r.chargeTimeout); removed > 0 {
		r.logger.Debug("idle sessions pruned", slog.Int("count", removed))
	}
}

func (r *Reconciler) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-r.jobs:
			if !ok {
				return
			}
			r.handle(ctx, j)
		}
	}
}

func (r *Reconciler) handle(ctx context.Context, j job) {
	switch {
	case j.entry != nil:
		resolved, err := r.facade.Reconcile(ctx, *j.entry)
		if err != nil {
			r.logger.Error("reconcile payment failed",
				slog.String("order_id", j.entry.OrderID),
				slog.String("reference", j.entry.Reference),
				slog.String("error", err.Error()),
			)
			return
		}
		if !resolved {
			r.logger.Warn("payment still unreconciled",
				slog.String("order_id", j.entry.OrderID),
				slog.Int("attempts", j.entry.Attempts+1),
			)
		}
	case j.charge != nil:
		if err := r.facade.SettleCharge(ctx, *j.charge); err != nil {
			r.logger.Error("settle charge failed",
				slog.String("order_id", j.charge.OrderID),
				slog.String("reference", j.charge.Reference),
				slog.String("error", err.Error()),
			)
		}
	}
}
