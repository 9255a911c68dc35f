package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/rajarshidattapy/R-Credit/internal/domain/errs"
	"github.com/rajarshidattapy/R-Credit/internal/domain/loan"
	"golang.org/x/sync/errgroup"
)

type LoanDefaulter interface {
	OverdueLoans(ctx context.Context, limit int32) ([]loan.Entity, error)
	MarkDefault(ctx context.Context, loanID string) (*loan.Entity, error)
}

type SweepResult struct {
	Scanned   int `json:"scanned"`
	Defaulted int `json:"defaulted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Sweeper defaults overdue loans. Loans of different identities are handled
// in parallel up to the configured limit; a loan that changed state in the
// meantime is counted as skipped.
type Sweeper struct {
	loans       LoanDefaulter
	logger      *slog.Logger
	batchSize   int32
	parallelism int
}

func NewSweeper(loans LoanDefaulter, logger *slog.Logger, batchSize int32, parallelism int) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	if parallelism <= 0 {
		parallelism = 4
	}
	return &Sweeper{loans: loans, logger: logger, batchSize: batchSize, parallelism: parallelism}
}

func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	overdue, err := s.loans.OverdueLoans(ctx, s.batchSize)
	if err != nil {
		return SweepResult{}, err
	}

	var defaulted, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)
	for _, item := range overdue {
		loanID := item.ID
		g.Go(func() error {
			_, err := s.loans.MarkDefault(gctx, loanID)
			switch {
			case err == nil:
				defaulted.Add(1)
			case errors.Is(err, errs.ErrInvalidTransition):
				skipped.Add(1)
			case errors.Is(err, context.Canceled):
				return err
			default:
				failed.Add(1)
				s.logger.WarnContext(gctx, "default sweep failed", "loan_id", loanID, "error", err)
			}
			return nil
		})
	}
	waitErr := g.Wait()

	return SweepResult{
		Scanned:   len(overdue),
		Defaulted: int(defaulted.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
	}, waitErr
}
