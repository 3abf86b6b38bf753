package meal

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
)

// Provider is the AI collaborator. It returns the model's raw text; the
// caller never assumes that text is valid JSON.
type Provider interface {
	Generate(ctx context.Context, prompt string, image *domain.ImageInput) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, prompt string, image *domain.ImageInput) (string, error)

func (f ProviderFunc) Generate(ctx context.Context, prompt string, image *domain.ImageInput) (string, error) {
	return f(ctx, prompt, image)
}

// DisabledProvider is used when no AI key is configured. Every call fails
// with a non-transient provider error.
type DisabledProvider struct{}

func (DisabledProvider) Generate(context.Context, string, *domain.ImageInput) (string, error) {
	return "", &domain.ProviderError{Op: "generate", Err: errors.New("ai provider is not configured")}
}
