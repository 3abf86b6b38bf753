package entities

import (
	"Fasting-Tracker/domain"
	"time"

	"github.com/google/uuid"
)

type FastingSession struct {
	ID                  uuid.UUID            `gorm:"type:uuid;primary_key" json:"id"`
	UserID              string               `gorm:"index" json:"user_id,omitempty"`
	Status              domain.FastingStatus `gorm:"size:16;not null" json:"status"`
	StartAt             time.Time            `gorm:"not null" json:"start_at"`
	EndAt               *time.Time           `json:"end_at"`
	TargetDurationHours float64              `json:"target_duration_hours"`
	DurationMinutes     int                  `json:"duration_minutes"`
	Completed           bool                 `json:"completed"`
	Source              domain.SessionSource `gorm:"size:16;not null" json:"source"`
	Timezone            string               `gorm:"size:64" json:"timezone"`
	PausedAt            *time.Time           `json:"paused_at,omitempty"` // set only while paused

	Timestamp
}

// Elapsed is fasting time since StartAt, excluding pauses. StartAt is shifted
// forward on every resume so the subtraction below is all that is needed.
func (s *FastingSession) Elapsed(now time.Time) time.Duration {
	var end time.Time
	switch {
	case s.EndAt != nil:
		end = *s.EndAt
	case s.Status == domain.StatusPaused && s.PausedAt != nil:
		end = *s.PausedAt
	default:
		end = now
	}
	if end.Before(s.StartAt) {
		return 0
	}
	return end.Sub(s.StartAt)
}

func (s *FastingSession) Target() time.Duration {
	return time.Duration(s.TargetDurationHours * float64(time.Hour))
}

func (s *FastingSession) IsActive() bool {
	return s.Status.Active()
}
