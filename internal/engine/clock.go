package engine

import (
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

// TargetClock is one of the two independent clocks a ticket runs against.
// Elapsed counts only active (unpaused) time; Remaining may go negative.
// BreachAt is the instant the clock crossed or will cross its target, nil
// when the clock is paused short of the target or stopped before reaching
// it.
type TargetClock struct {
	Target    time.Duration
	Elapsed   time.Duration
	Remaining time.Duration
	BreachAt  *time.Time
	Breached  bool
	Stopped   bool
}

// ClockResult is the full temporal accounting for one ticket under one
// resolved SLA. Active and Paused partition the wall-clock span from ticket
// creation to the observation instant.
type ClockResult struct {
	Intervals []domain.StatusInterval
	Active    time.Duration
	Paused    time.Duration

	Response   TargetClock
	Resolution TargetClock

	CurrentStatus    string
	CurrentEnteredAt time.Time
	CurrentActive    time.Duration
	CurrentPaused    bool
}

// BuildIntervals reconstructs the contiguous status intervals from a
// ticket's ordered change log. A ticket with no history entries is one open
// interval in its current status starting at creation. The log is expected
// to begin at creation; if it starts late the first interval is stretched
// back so the partition always covers the full lifetime.
func BuildIntervals(snapshot domain.TicketSnapshot, history []domain.StatusChange) []domain.StatusInterval {
	if len(history) == 0 {
		return []domain.StatusInterval{{
			Status:    string(snapshot.Status),
			EnteredAt: snapshot.CreatedAt,
		}}
	}

	intervals := make([]domain.StatusInterval, 0, len(history))
	for i, change := range history {
		start := change.EnteredAt
		if i == 0 && start.After(snapshot.CreatedAt) {
			start = snapshot.CreatedAt
		}
		interval := domain.StatusInterval{Status: change.Status, EnteredAt: start}
		if i+1 < len(history) {
			exit := history[i+1].EnteredAt
			interval.ExitedAt = &exit
		}
		intervals = append(intervals, interval)
	}
	return intervals
}

// Compute runs both clocks for a ticket under a resolved SLA at instant now.
func Compute(resolved *ResolvedSla, snapshot domain.TicketSnapshot, history []domain.StatusChange, now time.Time) ClockResult {
	intervals := BuildIntervals(snapshot, history)
	paused := func(status string) bool {
		// Absent policy means the clock keeps running; a missing pause
		// policy must never silently stop breach measurement.
		policy, ok := resolved.Policies[status]
		return ok && policy.IsPaused
	}

	result := ClockResult{Intervals: intervals}
	result.Active, result.Paused = splitWindow(intervals, paused, snapshot.CreatedAt, now)

	current := intervals[len(intervals)-1]
	result.CurrentStatus = current.Status
	result.CurrentEnteredAt = current.EnteredAt
	result.CurrentPaused = paused(current.Status)
	if !result.CurrentPaused && now.After(current.EnteredAt) {
		result.CurrentActive = now.Sub(current.EnteredAt)
	}

	result.Response = runClock(
		resolved.Definition.FirstResponseTarget(),
		intervals, paused, snapshot.CreatedAt, snapshot.FirstResponseAt, now,
	)
	result.Resolution = runClock(
		resolved.Definition.ResolutionTarget(),
		intervals, paused, snapshot.CreatedAt, snapshot.ResolvedAt, now,
	)
	return result
}

// runClock evaluates one target clock. stoppedAt is the milestone that ends
// the clock (first response or resolution), nil while it is still running.
func runClock(target time.Duration, intervals []domain.StatusInterval, paused func(string) bool, createdAt time.Time, stoppedAt *time.Time, now time.Time) TargetClock {
	end := now
	clock := TargetClock{Target: target}
	if stoppedAt != nil {
		end = *stoppedAt
		clock.Stopped = true
	}

	clock.Elapsed, _ = splitWindow(intervals, paused, createdAt, end)
	clock.Remaining = target - clock.Elapsed
	clock.Breached = clock.Remaining <= 0
	clock.BreachAt = breachTime(target, intervals, paused, createdAt, stoppedAt)
	return clock
}

// splitWindow partitions [from, to] into active and paused time using the
// interval statuses. The open interval is treated as ending at to, so
// active+paused always equals the window length.
func splitWindow(intervals []domain.StatusInterval, paused func(string) bool, from, to time.Time) (active, idle time.Duration) {
	for _, interval := range intervals {
		start := interval.EnteredAt
		if start.Before(from) {
			start = from
		}
		end := to
		if interval.ExitedAt != nil && interval.ExitedAt.Before(to) {
			end = *interval.ExitedAt
		}
		if !end.After(start) {
			continue
		}
		if paused(interval.Status) {
			idle += end.Sub(start)
		} else {
			active += end.Sub(start)
		}
	}
	return active, idle
}

// breachTime walks the intervals accumulating active time until the target
// is crossed. For the open final interval the crossing is extrapolated under
// the assumption the ticket stays in that status; a paused open interval
// yields nil. A stopped clock that never reached the target also yields nil.
func breachTime(target time.Duration, intervals []domain.StatusInterval, paused func(string) bool, createdAt time.Time, stoppedAt *time.Time) *time.Time {
	if target <= 0 {
		at := createdAt
		return &at
	}

	var acc time.Duration
	for _, interval := range intervals {
		start := interval.EnteredAt
		if start.Before(createdAt) {
			start = createdAt
		}
		open := interval.ExitedAt == nil

		if open && stoppedAt == nil {
			if paused(interval.Status) {
				return nil
			}
			at := start.Add(target - acc)
			return &at
		}

		end := time.Time{}
		if open {
			end = *stoppedAt
		} else {
			end = *interval.ExitedAt
			if stoppedAt != nil && stoppedAt.Before(end) {
				end = *stoppedAt
			}
		}
		if !end.After(start) {
			continue
		}
		if paused(interval.Status) {
			continue
		}
		span := end.Sub(start)
		if acc+span >= target {
			at := start.Add(target - acc)
			return &at
		}
		acc += span
	}
	return nil
}
