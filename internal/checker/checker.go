// Package checker orchestrates a single monitor probe end to end: monitor
// load from the repository, coordinator single-flight, strategy dispatch
// with bounded retry, one transactional persist of the outcome, and
// internal event emission.
package checker

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/nick2bad4u/uptime-watcher/internal/backoff"
	"github.com/nick2bad4u/uptime-watcher/internal/core"
	"github.com/nick2bad4u/uptime-watcher/internal/coordinator"
	"github.com/nick2bad4u/uptime-watcher/internal/eventbus"
	"github.com/nick2bad4u/uptime-watcher/internal/repository"
	"github.com/nick2bad4u/uptime-watcher/internal/storage"
	"github.com/nick2bad4u/uptime-watcher/pkg/metrics"
)

// Strategy dispatches a check to the monitor-type-specific service.
type Strategy interface {
	Check(ctx context.Context, monitor core.Monitor) (core.CheckResult, error)
}

// Config tunes checker behavior.
type Config struct {
	CleanupBuffer time.Duration
	HistoryLimit  int
	// PruneEvery runs the throttled pruning pass once every N completed
	// checks per monitor, rather than on every single check.
	PruneEvery int
}

// Checker executes monitor probes.
type Checker struct {
	cfg          Config
	engine       *storage.Engine
	cache        core.Cache
	monitors     *repository.MonitorRepository
	history      *repository.HistoryRepository
	coordinator  *coordinator.Coordinator
	strategy     Strategy
	backoff      backoff.Policy
	internalBus  *eventbus.Bus
	logger       *slog.Logger
	metrics      *metrics.CheckerMetrics

	checkCounts map[string]int
}

// New constructs a Checker.
func New(
	cfg Config,
	engine *storage.Engine,
	cache core.Cache,
	monitors *repository.MonitorRepository,
	history *repository.HistoryRepository,
	coord *coordinator.Coordinator,
	strategy Strategy,
	internalBus *eventbus.Bus,
	logger *slog.Logger,
	m *metrics.CheckerMetrics,
) *Checker {
	return &Checker{
		cfg:         cfg,
		engine:      engine,
		cache:       cache,
		monitors:    monitors,
		history:     history,
		coordinator: coord,
		strategy:    strategy,
		backoff:     backoff.Policy{BaseDelay: 200 * time.Millisecond, MaxDelay: 5 * time.Second, Multiplier: 2.0, Jitter: true},
		internalBus: internalBus,
		logger:      logger,
		metrics:     m,
		checkCounts: make(map[string]int),
	}
}

// Run executes the eight-step check algorithm for monitorID. manual
// distinguishes a user-initiated check from a scheduler dispatch for
// coordinator single-flight accounting. It returns the persisted
// CheckResult so the IPC manual-check fast path can return it directly to
// the caller ahead of the async broadcast.
func (c *Checker) Run(ctx context.Context, monitorID string, manual bool) (core.CheckResult, error) {
	// Step 1: load the monitor snapshot from the monitor repository. The
	// site cache is not read here; it is only invalidated after persist.
	monitor, err := c.monitors.FindByID(ctx, monitorID)
	if err != nil {
		return core.CheckResult{}, err
	}
	if monitor == nil {
		return core.CheckResult{}, core.NewNotFoundError("Checker.Run", "monitor not found")
	}

	// Step 2: begin the operation; single-flight rejects a second
	// concurrent automatic check.
	op, err := c.coordinator.Begin(ctx, monitorID, monitor.Timeout+c.cfg.CleanupBuffer, manual)
	if err != nil {
		if errors.Is(err, core.ErrOperationInFlight) {
			return core.CheckResult{}, err
		}
		return core.CheckResult{}, err
	}
	defer func() {
		if c.coordinator.Complete(op) {
			go c.runQueued(monitorID)
		}
	}()

	// Step 3: mark activeOperations via a transactional update.
	monitor.ActiveOperations = append(monitor.ActiveOperations, op.ID)
	if err := c.monitors.UpdateResult(op.Context(), *monitor); err != nil {
		return core.CheckResult{}, err
	}

	// Steps 4-5: dispatch with bounded retry.
	result, checkErr := c.runWithRetry(op.Context(), *monitor)

	if errors.Is(checkErr, core.ErrAborted) {
		monitor.ActiveOperations = removeOperation(monitor.ActiveOperations, op.ID)
		if err := c.monitors.UpdateResult(ctx, *monitor); err != nil {
			c.logger.Warn("failed to clear active operation after abort", "monitor_id", monitor.ID, "error", err)
		}
		c.publishStatusChanged(monitor.Status, monitor.Status, monitor.ID, result, true)
		return core.CheckResult{}, core.ErrAborted
	}

	previousStatus := monitor.Status
	newStatus := statusFromResult(result, checkErr)

	// Step 6: one transaction writing history, the monitor status update,
	// and a throttled prune.
	now := time.Now()
	entry := core.HistoryEntry{
		MonitorID:    monitor.ID,
		Timestamp:    now,
		Status:       resultStatusOrDown(result, checkErr),
		ResponseTime: result.ResponseTime,
		Details:      detailsOrError(result, checkErr),
	}

	monitor.Status = newStatus
	monitor.ResponseTime = &result.ResponseTime
	monitor.LastChecked = &now
	monitor.ActiveOperations = removeOperation(monitor.ActiveOperations, op.ID)

	c.checkCounts[monitor.ID]++
	shouldPrune := c.cfg.PruneEvery <= 1 || c.checkCounts[monitor.ID]%c.cfg.PruneEvery == 0

	err = c.engine.Transaction(ctx, func(tx *sql.Tx) error {
		if err := c.history.InsertTx(ctx, tx, entry); err != nil {
			return err
		}
		if err := c.monitors.UpdateResultTx(ctx, tx, *monitor); err != nil {
			return err
		}
		if shouldPrune {
			if _, err := c.history.PruneOldestTx(ctx, tx, monitor.ID, c.cfg.HistoryLimit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return core.CheckResult{}, err
	}

	c.cache.Delete(monitor.SiteIdentifier)

	if c.metrics != nil {
		c.metrics.ChecksTotal.WithLabelValues(string(monitor.Type), string(entry.Status)).Inc()
		if previousStatus != newStatus {
			c.metrics.StatusTransition.WithLabelValues(string(previousStatus), string(newStatus)).Inc()
		}
	}

	// Step 8: emit events.
	if previousStatus != newStatus {
		c.publishStatusChanged(previousStatus, newStatus, monitor.ID, result, false)
	}
	c.publishCheckCompleted(monitor.ID, result, checkErr)

	return result, nil
}

// runQueued re-dispatches the one manual check that was queued behind an
// in-flight operation, once that operation completes. It runs detached from
// the original request's context: the caller that issued the queued check
// already received core.ErrOperationInFlight and relies on the eventual
// monitor:check-completed event rather than a blocked response.
func (c *Checker) runQueued(monitorID string) {
	if _, err := c.Run(context.Background(), monitorID, true); err != nil {
		c.logger.Warn("queued manual check failed", "monitor_id", monitorID, "error", err)
	}
}

// runWithRetry races two timeouts per attempt: a base timeout of exactly
// monitor.Timeout, and the operation-level hard deadline already carried by
// ctx (monitor.Timeout + the coordinator's cleanup buffer). When the base
// timeout fires first, the attempt's context error never reaches ctx itself,
// so the result normalizes to a persisted "down"/timeout outcome rather than
// core.ErrAborted; only ctx's own expiry or cancellation - the hard kill -
// propagates as a genuine abort.
func (c *Checker) runWithRetry(ctx context.Context, monitor core.Monitor) (core.CheckResult, error) {
	attempts := monitor.RetryAttempts + 1
	var result core.CheckResult
	var lastErr error

	err := backoff.Retry(ctx, attempts, c.backoff, func(attempt int) error {
		if attempt > 0 && c.metrics != nil {
			c.metrics.RetriesTotal.WithLabelValues(string(monitor.Type)).Inc()
		}
		attemptCtx, cancel := context.WithTimeout(ctx, monitor.Timeout)
		defer cancel()

		var err error
		result, err = c.strategy.Check(attemptCtx, monitor)
		lastErr = err
		if err != nil {
			if errors.Is(err, core.ErrAborted) && ctx.Err() == nil {
				result = core.CheckResult{Status: core.HistoryDown, Details: "timeout"}
				lastErr = nil
				return errRetryableDown
			}
			return err
		}
		if result.Status == core.HistoryDown {
			return errRetryableDown
		}
		return nil
	})

	if errors.Is(lastErr, core.ErrAborted) {
		return core.CheckResult{}, core.ErrAborted
	}
	if err != nil && !errors.Is(err, errRetryableDown) {
		return result, err
	}
	return result, nil
}

var errRetryableDown = errors.New("check reported down, retrying")

func statusFromResult(result core.CheckResult, err error) core.MonitorStatus {
	if err != nil {
		return core.StatusDown
	}
	switch result.Status {
	case core.HistoryUp:
		return core.StatusUp
	case core.HistoryDegraded:
		return core.StatusDegraded
	default:
		return core.StatusDown
	}
}

func resultStatusOrDown(result core.CheckResult, err error) core.HistoryStatus {
	if err != nil {
		return core.HistoryDown
	}
	return result.Status
}

func detailsOrError(result core.CheckResult, err error) string {
	if err != nil {
		return err.Error()
	}
	return result.Details
}

func removeOperation(ops []string, id string) []string {
	out := make([]string, 0, len(ops))
	for _, op := range ops {
		if op != id {
			out = append(out, op)
		}
	}
	return out
}

func (c *Checker) publishStatusChanged(oldStatus, newStatus core.MonitorStatus, monitorID string, result core.CheckResult, aborted bool) {
	if c.internalBus == nil {
		return
	}
	payload := map[string]any{
		"monitorId":    monitorID,
		"oldStatus":    oldStatus,
		"newStatus":    newStatus,
		"responseTime": result.ResponseTime,
		"aborted":      aborted,
	}
	_ = c.internalBus.Publish(eventbus.NewEvent("internal:monitor:status-changed", payload, ""))
}

func (c *Checker) publishCheckCompleted(monitorID string, result core.CheckResult, checkErr error) {
	if c.internalBus == nil {
		return
	}
	payload := map[string]any{
		"monitorId":    monitorID,
		"status":       result.Status,
		"responseTime": result.ResponseTime,
		"details":      result.Details,
	}
	if checkErr != nil {
		payload["error"] = checkErr.Error()
	}
	_ = c.internalBus.Publish(eventbus.NewEvent("internal:monitor:check-completed", payload, ""))
}
