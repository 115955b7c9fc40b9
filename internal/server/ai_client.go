package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"pawchart/backend/internal/config"
)

type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIRequest struct {
	SystemPrompt string
	History      []ChatTurn
	UserMessage  string
}

type AIResponse struct {
	Reply string
	Model string
}

// AIClient is the single seam to the LLM provider. One attempt per call, no
// retries, no caching: a failed call surfaces immediately and the caller may
// re-submit since nothing was persisted.
type AIClient interface {
	Complete(ctx context.Context, req AIRequest) (AIResponse, error)
}

var errAINotConfigured = errors.New("OPENAI_API_KEY is not configured")

type OpenAIChatClient struct {
	client *openai.Client
	model  string
	maxTok int
	apiKey string
}

func NewOpenAIChatClient(cfg config.Config) *OpenAIChatClient {
	clientConfig := openai.DefaultConfig(strings.TrimSpace(cfg.OpenAIAPIKey))
	if baseURL := strings.TrimRight(strings.TrimSpace(cfg.OpenAIBaseURL), "/"); baseURL != "" {
		clientConfig.BaseURL = baseURL
	}
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	clientConfig.HTTPClient = &http.Client{
		Timeout: time.Duration(timeoutSeconds) * time.Second,
	}

	return &OpenAIChatClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  strings.TrimSpace(cfg.OpenAIModel),
		maxTok: cfg.AIMaxOutputTokens,
		apiKey: strings.TrimSpace(cfg.OpenAIAPIKey),
	}
}

func (c *OpenAIChatClient) Complete(ctx context.Context, req AIRequest) (AIResponse, error) {
	if c.apiKey == "" {
		return AIResponse{}, errAINotConfigured
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if prompt := strings.TrimSpace(req.SystemPrompt); prompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt,
		})
	}
	// History order is caller-supplied and preserved as-is; turns with
	// unknown roles or empty content are dropped.
	for _, turn := range req.History {
		role := strings.ToLower(strings.TrimSpace(turn.Role))
		if role != openai.ChatMessageRoleUser && role != openai.ChatMessageRoleAssistant {
			continue
		}
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: strings.TrimSpace(req.UserMessage),
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.model,
		Messages:  messages,
		MaxTokens: c.maxTok,
	})
	if err != nil {
		return AIResponse{}, fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return AIResponse{}, errors.New("openai chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return AIResponse{}, errors.New("openai chat completion returned an empty reply")
	}

	model := strings.TrimSpace(resp.Model)
	if model == "" {
		model = c.model
	}
	return AIResponse{Reply: reply, Model: model}, nil
}

// MockAIClient records every request and returns a canned reply. Tests use
// the call log both for content assertions and call-count assertions.
type MockAIClient struct {
	Reply    string
	Err      error
	Requests []AIRequest
}

func (m *MockAIClient) Complete(_ context.Context, req AIRequest) (AIResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Err != nil {
		return AIResponse{}, m.Err
	}
	reply := m.Reply
	if reply == "" {
		reply = "Mock response: " + strings.TrimSpace(req.UserMessage)
	}
	return AIResponse{Reply: reply, Model: "mock"}, nil
}

func (m *MockAIClient) CallCount() int {
	return len(m.Requests)
}
