/*
scheduler.go - Automated payroll lock

PURPOSE:
  Periodically applies the paid lock to attendance days that are old enough
  to have been through payroll, so late corrections cannot slip in after the
  numbers were exported.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Cutoff is today minus LockAfterDays, in the schedule's location
  - Locks every unpaid day on or before the cutoff via PunchMachine.MarkPaid,
    so each lock is audited like a manual one
  - One failing employee does not stop the run

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - LockAfterDays: Age in days before a record is locked (default: 14)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewPayrollLockScheduler(machine, store, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: MarkPaid endpoint (manual lock)
  - timeclock/store.go: PayrollLister
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/timeclock/timeclock"
)

// SchedulerActor is recorded as the actor on audit entries written by the
// scheduler.
const SchedulerActor = "system:payroll-lock"

// PayrollLockScheduler locks aged attendance days in the background.
type PayrollLockScheduler struct {
	Machine       *timeclock.PunchMachine
	Lister        timeclock.PayrollLister
	CheckInterval time.Duration
	LockAfterDays int
	Enabled       bool
	Log           logrus.FieldLogger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPayrollLockScheduler creates a new scheduler.
func NewPayrollLockScheduler(machine *timeclock.PunchMachine, lister timeclock.PayrollLister, log logrus.FieldLogger) *PayrollLockScheduler {
	return &PayrollLockScheduler{
		Machine:       machine,
		Lister:        lister,
		CheckInterval: 1 * time.Hour,
		LockAfterDays: 14,
		Enabled:       true,
		Log:           log.WithField("component", "payroll_lock"),
	}
}

// Start begins the scheduler.
func (ps *PayrollLockScheduler) Start() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.Enabled {
		ps.Log.Info("scheduler disabled, not starting")
		return
	}
	if ps.ticker != nil {
		return
	}

	ps.ticker = time.NewTicker(ps.CheckInterval)
	ps.stop = make(chan struct{})
	ps.wg.Add(1)

	go ps.run()

	ps.Log.WithFields(logrus.Fields{
		"interval":        ps.CheckInterval.String(),
		"lock_after_days": ps.LockAfterDays,
	}).Info("scheduler started")
}

// Stop stops the scheduler and waits for an in-flight run to finish.
func (ps *PayrollLockScheduler) Stop() {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.ticker != nil {
		ps.ticker.Stop()
		close(ps.stop)
		ps.wg.Wait()
		ps.ticker = nil
		ps.Log.Info("scheduler stopped")
	}
}

func (ps *PayrollLockScheduler) run() {
	defer ps.wg.Done()

	// Run immediately on start
	ps.checkAndLock()

	for {
		select {
		case <-ps.ticker.C:
			ps.checkAndLock()
		case <-ps.stop:
			return
		}
	}
}

func (ps *PayrollLockScheduler) checkAndLock() {
	if _, err := ps.RunNow(context.Background()); err != nil {
		ps.Log.WithError(err).Error("payroll lock run failed")
	}
}

// Cutoff is the newest date a run will lock.
func (ps *PayrollLockScheduler) Cutoff() timeclock.Date {
	return ps.Machine.Today().AddDays(-ps.LockAfterDays)
}

// RunNow locks every unpaid day on or before the cutoff and returns how many
// days were locked. Per-employee failures are logged and skipped.
func (ps *PayrollLockScheduler) RunNow(ctx context.Context) (int, error) {
	cutoff := ps.Cutoff()

	spans, err := ps.Lister.UnpaidThrough(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, span := range spans {
		n, err := ps.Machine.MarkPaid(ctx, span.EmployeeID, span.Earliest, cutoff, SchedulerActor)
		if err != nil {
			ps.Log.WithError(err).WithField("employee_id", span.EmployeeID).Warn("failed to lock employee days")
			continue
		}
		total += n
	}

	ps.Log.WithFields(logrus.Fields{
		"cutoff":    cutoff.String(),
		"employees": len(spans),
		"locked":    total,
	}).Info("payroll lock run complete")
	return total, nil
}
