// -----------------------------------------------------------------------
// Gemini Analyzer - page inference via the Google Gemini API
// -----------------------------------------------------------------------

package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"google.golang.org/genai"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
	"github.com/ternarybob/geoscope/internal/models"
)

// GeminiAnalyzer runs the audit prompt against Google Gemini
type GeminiAnalyzer struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	logger      arbor.ILogger
}

// NewGeminiAnalyzer creates a Gemini-backed analyzer from config
func NewGeminiAnalyzer(config *common.Config, logger arbor.ILogger) (*GeminiAnalyzer, error) {
	cfg := config.Gemini
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEOSCOPE_GEMINI_API_KEY, GEMINI_API_KEY, or gemini.api_key in config)")
	}

	model := cfg.Model
	if model == "" {
		model = "gemini-3-flash-preview"
	}

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid timeout duration '%s': %w", cfg.Timeout, err)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	logger.Info().
		Str("model", model).
		Dur("timeout", timeout).
		Msg("Gemini analyzer initialized")

	return &GeminiAnalyzer{
		client:      client,
		model:       model,
		temperature: cfg.Temperature,
		timeout:     timeout,
		logger:      logger,
	}, nil
}

// AnalyzePage runs the audit prompt and parses the structured response
func (a *GeminiAnalyzer) AnalyzePage(ctx context.Context, content *models.PageContent) (*models.PageAnalysis, error) {
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
func (a *GeminiAnalyzer) Verify(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := a.generate(probeCtx, verifyPrompt); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInferenceFailed, err)
	}
	return nil
}

// Name returns the provider name
func (a *GeminiAnalyzer) Name() string {
	return string(common.LLMProviderGemini)
}

func (a *GeminiAnalyzer) generate(ctx context.Context, prompt string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(a.temperature),
	}

	resp, err := a.client.Models.GenerateContent(callCtx, a.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	var response strings.Builder
	if resp != nil && len(resp.Candidates) > 0 {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					response.WriteString(part.Text)
				}
			}
			if response.Len() > 0 {
				break
			}
		}
	}

	if response.Len() == 0 {
		return "", fmt.Errorf("no response generated from model")
	}

	return response.String(), nil
}

var _ interfaces.Analyzer = (*GeminiAnalyzer)(nil)
