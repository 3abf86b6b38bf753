package gemini

import (
	"Fasting-Tracker/domain"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type (
	Config struct {
		APIKey string
		Model  string
		// BaseURL overrides the API endpoint, used by tests.
		BaseURL    string
		HTTPClient *http.Client
	}

	// Client sends meal prompts to Gemini and returns the raw reply text.
	Client struct {
		client *genai.Client
		model  string
	}
)

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Client{client: client, model: cfg.Model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, image *domain.ImageInput) (string, error) {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MimeType))
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.1),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return "", classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &domain.ProviderError{Op: "gemini generate", Transient: true, Err: errors.New("empty reply")}
	}
	return text, nil
}

// classify marks rate limits, server errors, timeouts and network failures
// as transient.
func classify(err error) error {
	perr := &domain.ProviderError{Op: "gemini generate", Err: err}

	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		perr.StatusCode = apiErr.Code
	case errors.As(err, &apiErrPtr):
		perr.StatusCode = apiErrPtr.Code
	}

	var netErr net.Error
	switch {
	case perr.StatusCode == http.StatusTooManyRequests, perr.StatusCode >= 500:
		perr.Transient = true
	case errors.Is(err, context.DeadlineExceeded):
		perr.Transient = true
	case perr.StatusCode == 0 && errors.As(err, &netErr):
		perr.Transient = true
	}
	return perr
}
