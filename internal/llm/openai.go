package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cryptobrief/refinery/internal/model"
	"github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements the Provider interface for OpenAI models.
type OpenAIProvider struct {
	client *openai.Client
	config Config
}

// NewOpenAIProvider creates a new OpenAI provider.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// IsAvailable checks if the provider is properly configured and reachable.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// Classify sends the rubric prompt and parses the verdict.
func (p *OpenAIProvider) Classify(ctx context.Context, req ClassifyRequest) (*model.Evaluation, error) {
	system := classifySystemPrompt
	if req.Format == model.FormatText {
		system = classifyTextSystemPrompt
	}

	content, err := p.complete(ctx, completeParams{
		system:    system,
		prompt:    BuildClassifyPrompt(req.Candidate, req.Rubric, req.Format),
		maxTokens: classifyMaxTokens,
		jsonMode:  req.Format != model.FormatText,
	})
	if err != nil {
		return nil, err
	}

	return ParseEvaluation(content, req.Format)
}

// Rewrite sends the style prompt and parses the refined story.
func (p *OpenAIProvider) Rewrite(ctx context.Context, req RewriteRequest) (*model.RefinedStory, error) {
	content, err := p.complete(ctx, completeParams{
		system:    rewriteSystemPrompt,
		prompt:    BuildRewritePrompt(req.Candidate),
		maxTokens: rewriteMaxTokens,
		jsonMode:  true,
	})
	if err != nil {
		return nil, err
	}

	return ParseRefinedStory(content, req.DefaultTicker)
}

type completeParams struct {
	system    string
	prompt    string
	maxTokens int
	jsonMode  bool
}

func (p *OpenAIProvider) complete(ctx context.Context, params completeParams) (string, error) {
	modelName := p.config.Model
	if modelName == "" {
		modelName = openai.GPT4oMini
	}

	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctxWithTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	chatReq := openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: params.system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: params.prompt,
			},
		},
		MaxTokens:   params.maxTokens,
		Temperature: 0.3, // Lower temperature for more focused, consistent output
	}
	if params.jsonMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := p.client.CreateChatCompletion(ctxWithTimeout, chatReq)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
