package agent

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/tokengate/core"
	"github.com/layer-3/tokengate/ports"
	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultModel       = openai.GPT4oMini
	DefaultTemperature = 0.3
	DefaultTimeout     = 60 * time.Second

	noReply = "No reply."
)

const systemPrompt = `You are a Token-Gated AI Research Agent.

Always answer in this format:

PLAN:
- 2 to 5 bullets with the approach and its assumptions.

REASON / RESEARCH:
- short, structured reasoning without hidden chain-of-thought.
- say what you would need to verify when you are unsure.

ANSWER:
- a clear, concise final response.

Rules:
- No web browsing.
- Briefly refuse unsafe or illegal requests and offer a safe alternative.
`

type options struct {
	model       string
	baseURL     string
	temperature float32
	httpClient  *http.Client
}

// Option configures an OpenAIAgent
type Option func(*options)

// WithModel selects the chat completion model
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithBaseURL points the client at a compatible API, e.g. a proxy or a test server
func WithBaseURL(url string) Option {
	return func(o *options) { o.baseURL = url }
}

func WithTemperature(t float32) Option {
	return func(o *options) { o.temperature = t }
}

func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// OpenAIAgent implements the ChatAgent interface over the OpenAI chat completions API
type OpenAIAgent struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIAgent creates an agent authenticated with apiKey
func NewOpenAIAgent(apiKey string, opts ...Option) ports.ChatAgent {
	o := options{
		model:       DefaultModel,
		temperature: DefaultTemperature,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = o.httpClient
	if o.baseURL != "" {
		cfg.BaseURL = strings.TrimRight(o.baseURL, "/")
	}

	return &OpenAIAgent{
		client:      openai.NewClientWithConfig(cfg),
		model:       o.model,
		temperature: o.temperature,
	}
}

// Reply prepends the system prompt and returns the first completion choice
func (a *OpenAIAgent) Reply(ctx context.Context, msgs []core.ChatMessage) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		Messages:    make([]openai.ChatCompletionMessage, 0, len(msgs)+1),
	}
	req.Messages = append(req.Messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range msgs {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrAgentUnavailable, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return noReply, nil
	}
	return resp.Choices[0].Message.Content, nil
}
