package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	domainErrors "github.com/polkiloo/agrilink/internal/domain/errors"
	"github.com/polkiloo/agrilink/internal/domain/model"
	testhelpers "github.com/polkiloo/agrilink/internal/test"
)

func TestSweepRejectsOnlyExpiredValidations(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	facade := &testhelpers.SweeperFacadeStub{Orders: []model.Order{
		{ID: "old", CreatedAt: now.Add(-49 * time.Hour)},
		{ID: "fresh", CreatedAt: now.Add(-time.Hour)},
		{ID: "older", CreatedAt: now.Add(-72 * time.Hour)},
	}}
	s := NewValidationSweeper(facade, time.Minute, 48*time.Hour, 10, 2, discardLogger())
	s.now = func() time.Time { return now }

	rejected, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rejected != 2 {
		t.Fatalf("expected 2 rejections, got %d", rejected)
	}
	if !facade.Cutoffs[0].Equal(now.Add(-48 * time.Hour)) {
		t.Fatalf("unexpected cutoff %v", facade.Cutoffs[0])
	}
	for _, id := range facade.Expired {
		if id == "fresh" {
			t.Fatal("fresh validation must not expire")
		}
	}
}

func TestSweepSkipsOrdersDecidedMeanwhile(t *testing.T) {
	now := time.Now()
	facade := &testhelpers.SweeperFacadeStub{
		Orders: []model.Order{
			{ID: "decided", CreatedAt: now.Add(-72 * time.Hour)},
			{ID: "gone", CreatedAt: now.Add(-72 * time.Hour)},
			{ID: "broken", CreatedAt: now.Add(-72 * time.Hour)},
			{ID: "expired", CreatedAt: now.Add(-72 * time.Hour)},
		},
		ExpireFn: func(_ context.Context, id string) error {
			switch id {
			case "decided":
				return domainErrors.ErrInvalidTransition
			case "gone":
				return domainErrors.ErrNotFound
			case "broken":
				return errors.New("db down")
			}
			return nil
		},
	}
	s := NewValidationSweeper(facade, time.Minute, 48*time.Hour, 10, 1, discardLogger())

	rejected, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("per order failures must not fail the sweep: %v", err)
	}
	if rejected != 1 || len(facade.Expired) != 1 || facade.Expired[0] != "expired" {
		t.Fatalf("expected only 'expired' rejected, got %d %v", rejected, facade.Expired)
	}
}

func TestSweepReportsFetchError(t *testing.T) {
	facade := &testhelpers.SweeperFacadeStub{StaleErr: errors.New("db down")}
	s := NewValidationSweeper(facade, time.Minute, time.Hour, 0, 0, discardLogger())
	if s.batchSize != 1 || s.parallelism != 1 {
		t.Fatalf("expected defaults of 1, got %d/%d", s.batchSize, s.parallelism)
	}
	if _, err := s.Sweep(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}
}

func TestValidationSweeperRunsOnTicker(t *testing.T) {
	facade := &testhelpers.SweeperFacadeStub{Orders: []model.Order{{ID: "old", CreatedAt: time.Now().Add(-time.Hour)}}}
	s := NewValidationSweeper(facade, 5*time.Millisecond, time.Minute, 10, 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	waitFor(t, "sweep", func() bool {
		facade.Lock()
		defer facade.Unlock()
		return len(facade.Expired) > 0
	})
	s.Stop()
	s.Stop()
}
