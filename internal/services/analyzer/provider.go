// -----------------------------------------------------------------------
// Analyzer Provider - selects the configured LLM backend
// -----------------------------------------------------------------------

package analyzer

import (
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/geoscope/internal/common"
	"github.com/ternarybob/geoscope/internal/interfaces"
)

// NewAnalyzer builds the analyzer for the configured default provider.
func NewAnalyzer(config *common.Config, logger arbor.ILogger) (interfaces.Analyzer, error) {
	provider := config.LLM.DefaultProvider
	if provider == "" {
		provider = common.LLMProviderGemini
	}

	switch provider {
	case common.LLMProviderGemini:
		return NewGeminiAnalyzer(config, logger)
	case common.LLMProviderClaude:
		return NewClaudeAnalyzer(config, logger)
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s", provider)
	}
}
