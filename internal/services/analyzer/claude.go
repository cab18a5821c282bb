// -----------------------------------------------------------------------
// Claude Analyzer - page inference via the Anthropic API
// -----------------------------------------------------------------------

package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// ClaudeAnalyzer runs the audit prompt against Anthropic Claude
type ClaudeAnalyzer struct {
	client      anthropic.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

// NewClaudeAnalyzer creates a Claude-backed analyzer from config
func NewClaudeAnalyzer(config *common.Config, logger arbor.ILogger) (*ClaudeAnalyzer, error) {
	cfg := config.Claude
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required (set ANTHROPIC_API_KEY, GEOSCOPE_CLAUDE_API_KEY, or claude.api_key in config)")
	}

	model := cfg.Model
	if model == "" {
		model = "claude-haiku-3-5-20241022"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 8192
	}

	client := anthropic.NewClient(
		option.WithAPIKey(cfg.APIKey),
	)

	logger.Info().
		Str("model", model).
		Dur("timeout", timeout).
		Int("max_tokens", maxTokens).
		Msg("Claude analyzer initialized")

	return &ClaudeAnalyzer{
		client:      client,
		model:       model,
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// AnalyzePage runs the audit prompt and parses the structured response
func (a *ClaudeAnalyzer) AnalyzePage(ctx context.Context, content *models.PageContent) (*models.PageAnalysis, error) {
	prompt := BuildAuditPrompt(content)

	text, err := callWithRetry(ctx, a.logger, a.Name(), func() (string, error) {
		return a.generate(ctx, prompt)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInferenceFailed, err)
	}

	return ParseResponse(text), nil
}

// Verify sends a minimal prompt to confirm the provider is reachable
func (a *ClaudeAnalyzer) Verify(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := a.generate(probeCtx, verifyPrompt); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInferenceFailed, err)
	}
	return nil
}

// Name returns the provider name
func (a *ClaudeAnalyzer) Name() string {
	return string(common.LLMProviderClaude)
}

func (a *ClaudeAnalyzer) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(a.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if a.temperature > 0 {
		params.Temperature = anthropic.Float(float64(a.temperature))
	}

	resp, err := a.client.Messages.New(callCtx, params)
	if err != nil {
		return "", fmt.Errorf("Claude API call failed: %w", err)
	}

	var response strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			response.WriteString(block.Text)
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from Claude API")
	}

	return response.String(), nil
}

var _ interfaces.Analyzer = (*ClaudeAnalyzer)(nil)
