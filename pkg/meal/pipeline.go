package meal

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Pipeline runs one meal analysis end to end: prompt, provider call with
// retry, reply validation.
type Pipeline struct {
	provider Provider
	policy   RetryPolicy
	timeout  time.Duration
	logger   *zap.Logger
}

func NewPipeline(provider Provider, policy RetryPolicy, timeout time.Duration, logger *zap.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Pipeline{
		provider: provider,
		policy:   policy,
		timeout:  timeout,
		logger:   logger.Named("meal_analysis"),
	}
}

// Analyze never fails: provider and validation failures both become an
// error response.
func (p *Pipeline) Analyze(ctx context.Context, input domain.MealAnalysisInput) domain.FoodAnalysisResponse {
	result, err := p.Run(ctx, input)
	if err != nil {
		return domain.NewFoodAnalysisError(userMessage(err))
	}
	return domain.NewFoodAnalysisSuccess(result)
}

// Run returns the typed failure: *domain.ProviderError, *domain.ValidationError
// or domain.ErrNothingToAnalyze.
func (p *Pipeline) Run(ctx context.Context, input domain.MealAnalysisInput) (domain.FoodAnalysisResult, error) {
	if strings.TrimSpace(input.Description) == "" && !hasImage(input) {
		return domain.FoodAnalysisResult{}, domain.ErrNothingToAnalyze
	}

	prompt := BuildPrompt(input)

	var result domain.FoodAnalysisResult
	err := p.policy.Do(ctx, func(attempt int) error {
		raw, err := p.generate(ctx, prompt, input.Image)
		if err != nil {
			p.logger.Warn("ai provider call failed",
				zap.Int("attempt", attempt),
				zap.Bool("transient", IsTransient(err)),
				zap.Error(err))
			return err
		}

		result, err = ValidateResponse(raw)
		if err != nil {
			p.logger.Warn("ai reply rejected",
				zap.Int("attempt", attempt),
				zap.Int("reply_length", len(raw)),
				zap.Error(err))
			return err
		}
		return nil
	})
	if err != nil {
		return domain.FoodAnalysisResult{}, err
	}
	return result, nil
}

func (p *Pipeline) generate(ctx context.Context, prompt string, image *domain.ImageInput) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raw, err := p.provider.Generate(ctx, prompt, image)
	if err == nil {
		return raw, nil
	}

	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		return "", err
	}
	return "", &domain.ProviderError{Op: "generate", Transient: errors.Is(err, context.DeadlineExceeded), Err: err}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNothingToAnalyze):
		return "请提供餐食描述或图片"
	case errors.Is(err, domain.ErrValidationFailure):
		return fmt.Sprintf("%s（结果格式异常）", domain.MessageAnalysisUnavailable)
	default:
		return domain.MessageAnalysisUnavailable
	}
}
