package fasting

import (
	"Fasting-Tracker/domain"
	"Fasting-Tracker/entities"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

const DefaultRecoveryGrace = 24 * time.Hour

type (
	StartParams struct {
		TargetDurationHours float64
		Timezone            string
		Source              domain.SessionSource
	}

	// EditParams carries a corrective edit or a backfilled session.
	// A zero TargetDurationHours keeps the session's current target on edit.
	EditParams struct {
		StartAt             time.Time
		EndAt               time.Time
		TargetDurationHours float64
		Timezone            string
	}

	// RecoveryPolicy bounds how long a fast may stay open before it is closed
	// on load: target + Grace.
	RecoveryPolicy struct {
		Grace time.Duration
	}
)

// Start opens a new fast. current is the owner's active session, if any.
func Start(current *entities.FastingSession, params StartParams, now time.Time) (*entities.FastingSession, error) {
	if current != nil && current.IsActive() {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrConflict, current.ID, current.Status)
	}
	if err := validateTarget(params.TargetDurationHours); err != nil {
		return nil, err
	}
	tz, err := normalizeTimezone(params.Timezone)
	if err != nil {
		return nil, err
	}
	source := params.Source
	if source == "" {
		source = domain.SourceManualStart
	}

	return &entities.FastingSession{
		ID:                  uuid.New(),
		Status:              domain.StatusFasting,
		StartAt:             now,
		TargetDurationHours: params.TargetDurationHours,
		Source:              source,
		Timezone:            tz,
	}, nil
}

func Pause(s *entities.FastingSession, now time.Time) (*entities.FastingSession, error) {
	if err := expectStatus(s, domain.StatusFasting, "pause"); err != nil {
		return nil, err
	}
	out := clone(s)
	out.PausedAt = &now
	out.Status = domain.StatusPaused
	out.DurationMinutes = minutes(out.Elapsed(now))
	return out, nil
}

// Resume shifts StartAt forward by the paused span so elapsed time excludes it.
func Resume(s *entities.FastingSession, now time.Time) (*entities.FastingSession, error) {
	if err := expectStatus(s, domain.StatusPaused, "resume"); err != nil {
		return nil, err
	}
	out := clone(s)
	if out.PausedAt != nil {
		if gap := now.Sub(*out.PausedAt); gap > 0 {
			out.StartAt = out.StartAt.Add(gap)
		}
	}
	out.PausedAt = nil
	out.Status = domain.StatusFasting
	out.DurationMinutes = minutes(out.Elapsed(now))
	return out, nil
}

// CompleteFast ends the fast and opens the eating window. A fast broken
// before its target is still closed, with Completed=false.
func CompleteFast(s *entities.FastingSession, now time.Time) (*entities.FastingSession, error) {
	if err := expectStatus(s, domain.StatusFasting, "complete"); err != nil {
		return nil, err
	}
	out := clone(s)
	elapsed := out.Elapsed(now)
	out.EndAt = &now
	out.DurationMinutes = minutes(elapsed)
	out.Completed = elapsed >= out.Target()
	out.Status = domain.StatusEating
	return out, nil
}

// EndEatingWindow archives the session; the owner is idle afterwards.
func EndEatingWindow(s *entities.FastingSession, now time.Time) (*entities.FastingSession, error) {
	if err := expectStatus(s, domain.StatusEating, "end eating window"); err != nil {
		return nil, err
	}
	out := clone(s)
	out.Status = domain.StatusCompleted
	return out, nil
}

// ManualEdit rewrites a session's times and archives it, whatever its state.
func ManualEdit(s *entities.FastingSession, params EditParams, now time.Time) (*entities.FastingSession, error) {
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	if err := validateRange(params.StartAt, params.EndAt, now); err != nil {
		return nil, err
	}
	out := clone(s)
	if params.TargetDurationHours != 0 {
		if err := validateTarget(params.TargetDurationHours); err != nil {
			return nil, err
		}
		out.TargetDurationHours = params.TargetDurationHours
	}
	if params.Timezone != "" {
		tz, err := normalizeTimezone(params.Timezone)
		if err != nil {
			return nil, err
		}
		out.Timezone = tz
	}
	archive(out, params.StartAt, params.EndAt, domain.SourceManualEdit)
	return out, nil
}

// Backfill records a past fast that was never tracked live.
func Backfill(params EditParams, now time.Time) (*entities.FastingSession, error) {
	if err := validateRange(params.StartAt, params.EndAt, now); err != nil {
		return nil, err
	}
	if err := validateTarget(params.TargetDurationHours); err != nil {
		return nil, err
	}
	tz, err := normalizeTimezone(params.Timezone)
	if err != nil {
		return nil, err
	}
	out := &entities.FastingSession{
		ID:                  uuid.New(),
		TargetDurationHours: params.TargetDurationHours,
		Timezone:            tz,
	}
	archive(out, params.StartAt, params.EndAt, domain.SourceBackfill)
	return out, nil
}

// AutoRecover closes a fasting or paused session that has been open longer
// than target + grace. It reports whether the session was closed.
func AutoRecover(s *entities.FastingSession, now time.Time, policy RecoveryPolicy) (*entities.FastingSession, bool) {
	if s == nil || (s.Status != domain.StatusFasting && s.Status != domain.StatusPaused) {
		return s, false
	}
	if now.Sub(s.StartAt) <= s.Target()+policy.Grace {
		return s, false
	}

	out := clone(s)
	end := now
	if out.Status == domain.StatusPaused && out.PausedAt != nil {
		end = *out.PausedAt
	}
	elapsed := end.Sub(out.StartAt)
	if elapsed < 0 {
		elapsed = 0
	}
	out.EndAt = &end
	out.PausedAt = nil
	out.DurationMinutes = minutes(elapsed)
	out.Completed = elapsed >= out.Target()
	out.Status = domain.StatusCompleted
	out.Source = domain.SourceAutoRecover
	return out, true
}

// Supersede closes an active session that lost to a newer one started at
// until, when two owners' histories are merged. The source is kept.
func Supersede(s *entities.FastingSession, until time.Time) *entities.FastingSession {
	out := clone(s)
	switch out.Status {
	case domain.StatusFasting, domain.StatusPaused:
		end := until
		if out.Status == domain.StatusPaused && out.PausedAt != nil && out.PausedAt.Before(end) {
			end = *out.PausedAt
		}
		if end.Before(out.StartAt) {
			end = out.StartAt
		}
		archive(out, out.StartAt, end, out.Source)
	case domain.StatusEating:
		out.Status = domain.StatusCompleted
	}
	return out
}

// Touch recomputes DurationMinutes of an active fast.
func Touch(s *entities.FastingSession, now time.Time) *entities.FastingSession {
	if s == nil || s.EndAt != nil {
		return s
	}
	out := clone(s)
	out.DurationMinutes = minutes(out.Elapsed(now))
	return out
}

func archive(s *entities.FastingSession, start, end time.Time, source domain.SessionSource) {
	s.StartAt = start
	s.EndAt = &end
	s.PausedAt = nil
	elapsed := end.Sub(start)
	s.DurationMinutes = minutes(elapsed)
	s.Completed = elapsed >= s.Target()
	s.Status = domain.StatusCompleted
	s.Source = source
}

func expectStatus(s *entities.FastingSession, want domain.FastingStatus, op string) error {
	if s == nil {
		return fmt.Errorf("%w: cannot %s while idle", domain.ErrInvalidTransition, op)
	}
	if s.Status != want {
		return fmt.Errorf("%w: cannot %s a %s session", domain.ErrInvalidTransition, op, s.Status)
	}
	return nil
}

func validateTarget(hours float64) error {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return fmt.Errorf("%w: target duration %v hours", domain.ErrInvalidInput, hours)
	}
	return nil
}

func validateRange(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start_at and end_at are required", domain.ErrInvalidInput)
	}
	if !end.After(start) {
		return fmt.Errorf("%w: end_at must be after start_at", domain.ErrInvalidInput)
	}
	if end.After(now) {
		return fmt.Errorf("%w: end_at is in the future", domain.ErrInvalidInput)
	}
	return nil
}

func normalizeTimezone(tz string) (string, error) {
	if tz == "" {
		return "UTC", nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("%w: unknown timezone %q", domain.ErrInvalidInput, tz)
	}
	return tz, nil
}

func minutes(d time.Duration) int {
	return int(d / time.Minute)
}

func clone(s *entities.FastingSession) *entities.FastingSession {
	out := *s
	if s.EndAt != nil {
		end := *s.EndAt
		out.EndAt = &end
	}
	if s.PausedAt != nil {
		paused := *s.PausedAt
		out.PausedAt = &paused
	}
	return &out
}
