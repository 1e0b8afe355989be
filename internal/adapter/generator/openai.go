package generator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cwygoda/bulkseo/internal/domain"
)

// DefaultTimeout bounds a single generation call.
const DefaultTimeout = 60 * time.Second

// Config describes one OpenAI-compatible provider.
type Config struct {
	Name              string
	Pattern           string // regexp matched against the model id; empty matches all
	BaseURL           string
	APIKey            string
	RequestsPerMinute int
	Timeout           time.Duration
}

// OpenAI generates content through an OpenAI-compatible chat completions API.
type OpenAI struct {
	name    string
	pattern *regexp.Regexp
	client  openai.Client
	limiter *rate.Limiter
	timeout time.Duration
	logger  *zap.Logger
}

// NewOpenAI creates a generator for the provider described by cfg.
func NewOpenAI(cfg Config, logger *zap.Logger) (*OpenAI, error) {
	g := &OpenAI{
		name:    cfg.Name,
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("provider", cfg.Name)),
	}
	if g.name == "" {
		g.name = "openai"
	}
	if g.timeout <= 0 {
		g.timeout = DefaultTimeout
	}
	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("provider %s: invalid pattern: %w", g.name, err)
		}
		g.pattern = re
	}
	if cfg.RequestsPerMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	g.client = openai.NewClient(opts...)
	return g, nil
}

// Name returns the provider name.
func (g *OpenAI) Name() string { return g.name }

// Match reports whether this provider serves the model.
func (g *OpenAI) Match(model string) bool {
	if g.pattern == nil {
		return true
	}
	return g.pattern.MatchString(model)
}

// Generate produces SEO content for one product. Every failure is returned
// as a *domain.GenerationError.
func (g *OpenAI) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GeneratedContent, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, &domain.GenerationError{ProductID: req.ProductID, Detail: "rate limit wait", Err: err}
		}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(renderPrompt(req)),
		},
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}
	if req.UserID != "" {
		params.User = openai.String(req.UserID)
	}

	completion, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			g.logger.Warn("generation rejected",
				zap.Int64("product_id", req.ProductID),
				zap.Int("status", apiErr.StatusCode))
			return nil, &domain.GenerationError{
				ProductID: req.ProductID,
				Detail:    fmt.Sprintf("upstream returned %d", apiErr.StatusCode),
				Err:       err,
			}
		}
		return nil, &domain.GenerationError{ProductID: req.ProductID, Err: err}
	}

	if len(completion.Choices) == 0 {
		return nil, &domain.GenerationError{ProductID: req.ProductID, Detail: "no completion choices returned"}
	}

	content, err := parseContent(completion.Choices[0].Message.Content)
	if err != nil {
		return nil, &domain.GenerationError{ProductID: req.ProductID, Detail: "invalid response", Err: err}
	}
	return content, nil
}

var _ domain.ContentGenerator = (*OpenAI)(nil)
