package domain

import (
	"errors"
	"time"
)

type (
	FastingStatus string
	SessionSource string
)

const (
	StatusIdle      FastingStatus = "idle"
	StatusFasting   FastingStatus = "fasting"
	StatusEating    FastingStatus = "eating"
	StatusPaused    FastingStatus = "paused"
	StatusCompleted FastingStatus = "completed"

	SourceManualStart SessionSource = "manual_start"
	SourceManualEdit  SessionSource = "manual_edit"
	SourceBackfill    SessionSource = "backfill"
	SourceAutoRecover SessionSource = "auto_recover"
)

var (
	MessageSuccessGetCurrentFast  = "current fasting session retrieved successfully"
	MessageSuccessGetFastHistory  = "fasting history retrieved successfully"
	MessageSuccessStartFast       = "fast started successfully"
	MessageSuccessPauseFast       = "fast paused successfully"
	MessageSuccessResumeFast      = "fast resumed successfully"
	MessageSuccessCompleteFast    = "fast completed successfully"
	MessageSuccessEndEatingWindow = "eating window ended successfully"
	MessageSuccessBackfillFast    = "fasting session backfilled successfully"
	MessageSuccessEditFast        = "fasting session updated successfully"
	MessageSuccessGetStages       = "fasting stages retrieved successfully"

	MessageFailedGetCurrentFast  = "failed to retrieve current fasting session"
	MessageFailedGetFastHistory  = "failed to retrieve fasting history"
	MessageFailedStartFast       = "failed to start fast"
	MessageFailedPauseFast       = "failed to pause fast"
	MessageFailedResumeFast      = "failed to resume fast"
	MessageFailedCompleteFast    = "failed to complete fast"
	MessageFailedEndEatingWindow = "failed to end eating window"
	MessageFailedBackfillFast    = "failed to backfill fasting session"
	MessageFailedEditFast        = "failed to update fasting session"
	MessageFailedGetStages       = "failed to classify fasting stage"

	ErrSessionNotFound = errors.New("fasting session not found")
)

func (s FastingStatus) Active() bool {
	return s == StatusFasting || s == StatusEating || s == StatusPaused
}

type (
	// FastingStage is derived from elapsed hours and never persisted.
	// RangeEnd is nil for the final, unbounded phase.
	FastingStage struct {
		ID          string   `json:"id"`
		Name        string   `json:"name"`
		Description string   `json:"description"`
		RangeStart  float64  `json:"range_start"`
		RangeEnd    *float64 `json:"range_end"`
	}

	StartFastRequest struct {
		TargetDurationHours float64 `json:"target_duration_hours" validate:"required,gt=0,lte=168"`
		Timezone            string  `json:"timezone" validate:"omitempty,timezone"`
	}

	BackfillFastRequest struct {
		StartAt             time.Time `json:"start_at" validate:"required"`
		EndAt               time.Time `json:"end_at" validate:"required"`
		TargetDurationHours float64   `json:"target_duration_hours" validate:"required,gt=0,lte=168"`
		Timezone            string    `json:"timezone" validate:"omitempty,timezone"`
	}

	EditFastRequest struct {
		StartAt             time.Time `json:"start_at" validate:"required"`
		EndAt               time.Time `json:"end_at" validate:"required"`
		TargetDurationHours float64   `json:"target_duration_hours" validate:"omitempty,gt=0,lte=168"`
	}

	FastingSessionResponse struct {
		ID                  string        `json:"id"`
		Status              FastingStatus `json:"status"`
		StartAt             time.Time     `json:"start_at"`
		EndAt               *time.Time    `json:"end_at"`
		TargetDurationHours float64       `json:"target_duration_hours"`
		DurationMinutes     int           `json:"duration_minutes"`
		Completed           bool          `json:"completed"`
		Source              SessionSource `json:"source"`
		Timezone            string        `json:"timezone"`
	}

	// FastingStatusResponse describes the owner's state machine position.
	// Session and Stage are nil while idle.
	FastingStatusResponse struct {
		State        FastingStatus           `json:"state"`
		Session      *FastingSessionResponse `json:"session"`
		Stage        *FastingStage           `json:"stage"`
		ElapsedHours float64                 `json:"elapsed_hours"`
		Progress     float64                 `json:"progress"`
		Sync         *SyncResult             `json:"sync,omitempty"`
	}

	FastingHistoryResponse struct {
		Sessions []FastingSessionResponse `json:"sessions"`
	}

	StageTableResponse struct {
		Stages  []FastingStage `json:"stages"`
		Current *FastingStage  `json:"current,omitempty"`
	}
)
