package entities

import (
	"Fasting-Tracker/domain"
	"time"

	"github.com/google/uuid"
)

type MealRecord struct {
	ID            uuid.UUID                  `gorm:"type:uuid;primary_key" json:"id"`
	UserID        string                     `gorm:"index" json:"user_id,omitempty"`
	EatenAt       time.Time                  `gorm:"not null;index" json:"timestamp"`
	Type          domain.MealType            `gorm:"size:16;not null" json:"type"`
	ImageURL      string                     `json:"image_url,omitempty"`
	Description   string                     `gorm:"size:500" json:"description,omitempty"`
	FoodName      string                     `gorm:"size:100" json:"food_name"`
	Calories      float64                    `json:"calories"`
	Status        domain.MealStatus          `gorm:"size:16" json:"status,omitempty"` // "", "analyzing", "done", "error"
	AIAnalysis    *domain.FoodAnalysisResult `gorm:"serializer:json" json:"ai_analysis,omitempty"`
	AnalysisError *string                    `json:"analysis_error,omitempty"`

	Timestamp
}
