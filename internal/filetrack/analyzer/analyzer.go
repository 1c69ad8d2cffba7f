// Package analyzer sends extracted document text to a chat completion model
// with a prompt from the catalog.
package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/lk2023060901/docsense-backend/internal/pkg/errors"
	"github.com/lk2023060901/docsense-backend/internal/pkg/logger"
	"github.com/lk2023060901/docsense-backend/internal/pkg/metrics"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "llama3"
	defaultOpenAIModel   = openai.GPT4oMini
)

// Analyzer turns document text into an analysis
type Analyzer interface {
	Analyze(ctx context.Context, text, promptID string) (string, error)
}

// Completer is satisfied by *openai.Client
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Config provider settings
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Timeout     time.Duration
}

// NewCompleter builds a go-openai client for the provider. Ollama serves
// the OpenAI-compatible API under /v1.
func NewCompleter(cfg *Config) (Completer, error) {
	switch cfg.Provider {
	case ProviderOpenAI, "":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai api key is required")
		}
		clientConfig := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			clientConfig.BaseURL = cfg.BaseURL
		}
		return openai.NewClientWithConfig(clientConfig), nil
	case ProviderOllama:
		clientConfig := openai.DefaultConfig("ollama")
		clientConfig.BaseURL = cfg.BaseURL
		if clientConfig.BaseURL == "" {
			clientConfig.BaseURL = defaultOllamaBaseURL
		}
		return openai.NewClientWithConfig(clientConfig), nil
	default:
		return nil, fmt.Errorf("unsupported analysis provider: %s", cfg.Provider)
	}
}

// LLMAnalyzer Analyzer backed by a chat completion endpoint
type LLMAnalyzer struct {
	client    Completer
	catalog   *Catalog
	tokenizer Tokenizer
	cfg       Config
	logger    *logger.Logger
}

// NewLLMAnalyzer creates an LLMAnalyzer. tokenizer may be nil when no
// prompt sets max_tokens.
func NewLLMAnalyzer(client Completer, catalog *Catalog, tokenizer Tokenizer, cfg Config, log *logger.Logger) *LLMAnalyzer {
	if cfg.Provider == "" {
		cfg.Provider = ProviderOpenAI
	}
	if cfg.Model == "" {
		if cfg.Provider == ProviderOllama {
			cfg.Model = defaultOllamaModel
		} else {
			cfg.Model = defaultOpenAIModel
		}
	}
	return &LLMAnalyzer{
		client:    client,
		catalog:   catalog,
		tokenizer: tokenizer,
		cfg:       cfg,
		logger:    logger.OrGlobal(log).Named("analyzer"),
	}
}

// Catalog prompts available to Analyze
func (a *LLMAnalyzer) Catalog() *Catalog {
	return a.catalog
}

// BuildMessages assembles the chat messages for text under prompt
func (a *LLMAnalyzer) BuildMessages(p Prompt, text string) ([]openai.ChatCompletionMessage, error) {
	body, err := a.catalog.Body(p)
	if err != nil {
		return nil, err
	}

	text = TruncateChars(text, p.MaxChars)
	if p.MaxTokens > 0 && a.tokenizer != nil {
		text = a.tokenizer.Truncate(text, p.MaxTokens)
	}

	var messages []openai.ChatCompletionMessage
	if p.SystemRole != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: p.SystemRole,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: Render(body, text),
	})
	return messages, nil
}

// Analyze runs promptID over text
func (a *LLMAnalyzer) Analyze(ctx context.Context, text, promptID string) (string, error) {
	p, err := a.catalog.Get(promptID)
	if err != nil {
		return "", err
	}
	messages, err := a.BuildMessages(p, text)
	if err != nil {
		return "", err
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: a.cfg.Temperature,
	})
	if err == nil && len(resp.Choices) == 0 {
		err = fmt.Errorf("no choices in response")
	}
	metrics.AnalysisDuration.WithLabelValues(a.cfg.Provider, metrics.Result(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		a.logger.Error("analysis request failed",
			zap.String("provider", a.cfg.Provider),
			zap.String("model", a.cfg.Model),
			zap.String("prompt_id", promptID),
			zap.Error(err))
		return "", apperrors.Wrap(err, apperrors.ErrAnalysisFailed, err.Error())
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	a.logger.Debug("analysis done",
		zap.String("prompt_id", promptID),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))
	if content == "" {
		return "", apperrors.New(apperrors.ErrAnalysisFailed, "empty completion")
	}
	return content, nil
}
