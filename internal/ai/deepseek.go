package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	deepSeekBaseURL      = "https://api.deepseek.com/"
	defaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekProvider implements Provider for the DeepSeek OpenAI-compatible
// chat completions API.
type DeepSeekProvider struct {
	client openai.Client
	apiKey string
	model  string
}

// NewDeepSeekProvider creates a DeepSeek provider. Empty model and baseURL
// select the defaults. The SDK's automatic retries are disabled.
func NewDeepSeekProvider(apiKey, model, baseURL string) *DeepSeekProvider {
	if strings.TrimSpace(model) == "" {
		model = defaultDeepSeekModel
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = deepSeekBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	apiKey = strings.TrimSpace(apiKey)

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(RequestTimeout),
	)
	return &DeepSeekProvider{client: client, apiKey: apiKey, model: strings.TrimSpace(model)}
}

func (d *DeepSeekProvider) Name() string  { return ProviderDeepSeek }
func (d *DeepSeekProvider) Model() string { return d.model }

func (d *DeepSeekProvider) Generate(ctx context.Context, a Article) (string, error) {
	if d.apiKey == "" {
		return "", errors.New("DEEPSEEK_API_KEY is missing")
	}

	start := time.Now()
	resp, err := d.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(d.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(chatSystemPrompt),
			openai.UserMessage(BuildChatUserPrompt(a)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("deepseek API failed with %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("deepseek request failed: %w", err)
	}

	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", errors.New("deepseek response did not include text output")
	}
	content := resp.Choices[0].Message.Content

	slog.Debug("DeepSeek request completed", "model", d.model, "elapsed", time.Since(start), "response_chars", len(content))
	return content, nil
}
