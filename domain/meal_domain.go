package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"time"
)

type (
	MealType   string
	MealStatus string
)

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"

	MealStatusAnalyzing MealStatus = "analyzing"
	MealStatusDone      MealStatus = "done"
	MealStatusError     MealStatus = "error"
)

var (
	MessageSuccessLogMeal     = "meal logged successfully"
	MessageSuccessGetMeals    = "meals retrieved successfully"
	MessageSuccessDeleteMeal  = "meal deleted successfully"
	MessageSuccessAnalyzeMeal = "meal analyzed successfully"
	MessageSuccessReanalyze   = "meal analysis started"

	MessageFailedLogMeal     = "failed to log meal"
	MessageFailedGetMeals    = "failed to retrieve meals"
	MessageFailedDeleteMeal  = "failed to delete meal"
	MessageFailedAnalyzeMeal = "failed to analyze meal"
	MessageFailedReanalyze   = "failed to start meal analysis"

	MessageAnalysisUnavailable = "暂时无法分析这份餐食，请稍后重试"

	ErrMealNotFound         = errors.New("meal record not found")
	ErrAnalysisInFlight     = fmt.Errorf("%w: analysis already in flight", ErrConflict)
	ErrInvalidImageFormat   = fmt.Errorf("%w: unsupported image format", ErrInvalidInput)
	ErrImageStorageDisabled = errors.New("image storage is not configured")
	ErrNothingToAnalyze     = fmt.Errorf("%w: meal has neither description nor image", ErrInvalidInput)
)

type (
	Macros struct {
		Protein string `json:"protein"`
		Fat     string `json:"fat"`
		Carbs   string `json:"carbs"`
	}

	// FoodAnalysisResult is the normalized reply of the AI provider.
	FoodAnalysisResult struct {
		FoodName string   `json:"foodName" validate:"required"`
		Calories float64  `json:"calories" validate:"gte=0"`
		Macros   *Macros  `json:"macros,omitempty"`
		Tags     []string `json:"tags"`
		Advice   string   `json:"advice"`
		NextStep string   `json:"nextStep"`
	}

	// FoodAnalysisResponse is either a Result or an error message, never both.
	FoodAnalysisResponse struct {
		Result  *FoodAnalysisResult
		Error   bool
		Message string
	}

	ImageInput struct {
		Data     []byte
		MimeType string
	}

	// MealAnalysisInput is a meal description, an image reference, or both.
	MealAnalysisInput struct {
		Description string
		ImageRef    string
		MealType    MealType
		Image       *ImageInput
	}

	LogMealRequest struct {
		Type        MealType              `json:"type" form:"type" validate:"required,oneof=breakfast lunch dinner snack"`
		Description string                `json:"description" form:"description" validate:"omitempty,max=500"`
		FoodName    string                `json:"food_name" form:"food_name" validate:"omitempty,max=100"`
		Calories    float64               `json:"calories" form:"calories" validate:"gte=0"`
		EatenAt     *time.Time            `json:"timestamp" form:"timestamp"`
		Image       *multipart.FileHeader `json:"-" form:"-"`
	}

	AnalyzeMealRequest struct {
		Description string   `json:"description" validate:"required,max=500"`
		Type        MealType `json:"type" validate:"omitempty,oneof=breakfast lunch dinner snack"`
	}

	MealRecordResponse struct {
		ID            string              `json:"id"`
		Timestamp     time.Time           `json:"timestamp"`
		Type          MealType            `json:"type"`
		ImageURL      string              `json:"imageUrl,omitempty"`
		Description   string              `json:"description,omitempty"`
		FoodName      string              `json:"foodName"`
		Calories      float64             `json:"calories"`
		Status        MealStatus          `json:"status,omitempty"`
		AIAnalysis    *FoodAnalysisResult `json:"aiAnalysis,omitempty"`
		AnalysisError string              `json:"analysisError,omitempty"`
		Sync          *SyncResult         `json:"sync,omitempty"`
	}

	DeleteMealResponse struct {
		ID   string      `json:"id"`
		Sync *SyncResult `json:"sync,omitempty"`
	}
)

func NewFoodAnalysisSuccess(result FoodAnalysisResult) FoodAnalysisResponse {
	return FoodAnalysisResponse{Result: &result}
}

func NewFoodAnalysisError(message string) FoodAnalysisResponse {
	return FoodAnalysisResponse{Error: true, Message: message}
}

func (r FoodAnalysisResponse) MarshalJSON() ([]byte, error) {
	if r.Error || r.Result == nil {
		return json.Marshal(struct {
			Error   bool   `json:"error"`
			Message string `json:"message"`
		}{Error: true, Message: r.Message})
	}
	return json.Marshal(r.Result)
}

// ProviderError is a failure of the AI provider or the remote store.
// Transient failures (timeouts, 429/5xx, network) qualify for a retry.
type ProviderError struct {
	Op         string
	StatusCode int
	Transient  bool
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func (e *ProviderError) Is(target error) bool {
	return target == ErrProviderFailure
}

// ValidationError reports why an AI reply could not be accepted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid ai reply: %s", e.Reason)
	}
	return fmt.Sprintf("invalid ai reply: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidationFailure
}
