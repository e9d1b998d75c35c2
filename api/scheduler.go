/*
scheduler.go - Automated bulk accrual runner

PURPOSE:
  Periodically walks the active employees and applies any due monthly
  accrual. Because the accrual math is idempotent within a calendar
  month, running the job hourly or daily grants nothing extra; a job
  that was down for months catches employees up in a single pass.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Each employee is processed in isolation: one failure is collected
    into the run report, never aborting the rest of the run
  - Optimistic-concurrency conflicts (an approval racing the job) are
    retried a bounded number of times per employee
  - Every pass records an AccrualRun report for audit and UI display

USAGE:
  runner := NewAccrualRunner(store, ledger, calc, logger)
  runner.Start()
  // ... later
  runner.Stop()

SEE ALSO:
  - handlers.go: RunAccrual endpoint (manual trigger, same path)
  - leave/ledger.go: ApplyAccrual
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/leave"
)

// conflictRetries bounds per-employee retries when an accrual save
// races a concurrent approval.
const conflictRetries = 3

// AccrualRunner handles automated bulk accrual.
type AccrualRunner struct {
	Store         leave.Store
	Ledger        *leave.Ledger
	Calculator    *leave.Calculator
	Logger        *zap.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAccrualRunner creates a runner with a 1-hour check interval.
func NewAccrualRunner(store leave.Store, ledger *leave.Ledger, calc *leave.Calculator, logger *zap.Logger) *AccrualRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualRunner{
		Store:         store,
		Ledger:        ledger,
		Calculator:    calc,
		Logger:        logger,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		stop:          make(chan struct{}),
	}
}

// Start begins the background runner.
func (ar *AccrualRunner) Start() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if !ar.Enabled {
		ar.Logger.Info("accrual runner disabled, not starting")
		return
	}

	ar.ticker = time.NewTicker(ar.CheckInterval)
	ar.wg.Add(1)
	go ar.run()

	ar.Logger.Info("accrual runner started", zap.Duration("interval", ar.CheckInterval))
}

// Stop stops the background runner.
func (ar *AccrualRunner) Stop() {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if ar.ticker != nil {
		ar.ticker.Stop()
		close(ar.stop)
		ar.wg.Wait()
		ar.Logger.Info("accrual runner stopped")
	}
}

func (ar *AccrualRunner) run() {
	defer ar.wg.Done()

	// Run immediately on start
	if _, err := ar.RunOnce(context.Background(), time.Now().UTC()); err != nil {
		ar.Logger.Error("accrual run failed", zap.Error(err))
	}

	for {
		select {
		case <-ar.ticker.C:
			if _, err := ar.RunOnce(context.Background(), time.Now().UTC()); err != nil {
				ar.Logger.Error("accrual run failed", zap.Error(err))
			}
		case <-ar.stop:
			return
		}
	}
}

// RunOnce applies due accruals to every active employee and records a
// run report. Per-employee failures are isolated; only a failure to
// list the employees aborts the run.
func (ar *AccrualRunner) RunOnce(ctx context.Context, asOf time.Time) (leave.AccrualRun, error) {
	run := leave.AccrualRun{
		ID:        "run-" + uuid.NewString(),
		AsOf:      asOf,
		StartedAt: time.Now().UTC(),
	}

	employees, err := ar.Store.ListActiveEmployees(ctx)
	if err != nil {
		return run, err
	}

	for _, emp := range employees {
		result, applied, err := ar.accrueWithRetry(ctx, emp.ID, asOf)
		switch {
		case err != nil:
			run.Failed++
			run.Failures = append(run.Failures, leave.RunFailure{
				EmployeeID: emp.ID,
				Err:        err.Error(),
			})
			ar.Logger.Warn("accrual failed for employee",
				zap.String("employee_id", string(emp.ID)), zap.Error(err))
		case applied:
			run.Processed++
			ar.Logger.Debug("accrual applied",
				zap.String("employee_id", string(emp.ID)),
				zap.Int("months", result.MonthsElapsed))
		default:
			run.Skipped++
		}
	}

	run.FinishedAt = time.Now().UTC()
	if err := ar.Store.SaveAccrualRun(ctx, run); err != nil {
		ar.Logger.Error("failed to save accrual run report", zap.Error(err))
	}

	ar.Logger.Info("accrual run completed",
		zap.String("run_id", run.ID),
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed))

	return run, nil
}

// accrueWithRetry retries lost optimistic-concurrency races. Safe
// because the month math grants nothing twice.
func (ar *AccrualRunner) accrueWithRetry(ctx context.Context, id leave.EmployeeID, asOf time.Time) (leave.AccrualResult, bool, error) {
	var (
		result  leave.AccrualResult
		applied bool
		err     error
	)
	for attempt := 0; attempt < conflictRetries; attempt++ {
		result, applied, err = ar.Ledger.ApplyAccrual(ctx, ar.Calculator, id, asOf)
		if err == nil || !leave.IsRetryable(err) {
			return result, applied, err
		}
	}
	return result, applied, err
}

// NextRunTime returns when the next scheduled check will occur.
func (ar *AccrualRunner) NextRunTime() time.Time {
	return time.Now().Add(ar.CheckInterval)
}
