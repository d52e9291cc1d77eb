package llm

import (
	"context"
	"time"

	"github.com/ppiankov/flagspan/internal/model"
)

// Provider defines the interface for detection model providers
type Provider interface {
	// Name returns the provider name
	Name() string

	// Detect asks the model to flag machine-like passages in a canonical text
	Detect(ctx context.Context, req DetectRequest) (*DetectResponse, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// DetectRequest contains the input for detection
type DetectRequest struct {
	// Text is the sanitized canonical text. Flags quote from it.
	Text string

	// Prompt is an optional custom prompt (if empty, use default)
	Prompt string

	// Model is the specific model to use (provider-specific)
	Model string

	// MaxTokens limits the response length
	MaxTokens int
}

// DetectResponse contains the parsed model output
type DetectResponse struct {
	// AIProbability is the model's overall estimate, 0-100
	AIProbability int `json:"ai_probability"`

	// Flags are unreconciled candidates; their offsets are not trusted
	Flags []model.FlagCandidate `json:"flags"`

	// Model is the model that generated the response
	Model string `json:"model"`

	// TokensUsed tracks token consumption
	TokensUsed int `json:"tokens_used"`

	// Cached is set by Client when the response came from the cache
	Cached bool `json:"-"`
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// MaxTokens for response generation
	MaxTokens int

	// MaxRetries bounds attempts made by Client
	MaxRetries int

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:   "", // Disabled by default
		Timeout:    60,
		MaxTokens:  2000,
		MaxRetries: 3,
	}
}

const defaultMaxTokens = 2000

const systemPrompt = "You are an editor who identifies passages that read as machine-generated. You answer with JSON only."

// requestParams resolves model and token limits from request, then config, then fallback
func requestParams(req DetectRequest, config Config, fallbackModel string) (string, int) {
	m := req.Model
	if m == "" {
		m = config.Model
	}
	if m == "" {
		m = fallbackModel
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = config.MaxTokens
	}
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return m, maxTokens
}

// promptFor returns the custom prompt or the default detection prompt
func promptFor(req DetectRequest) string {
	if req.Prompt != "" {
		return req.Prompt
	}
	return BuildPrompt(req.Text)
}

// timeoutOr converts the configured seconds, using fallback when unset
func timeoutOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
