package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	defaultModel     = "gpt-4o-mini"
	defaultMaxTokens = 256
	defaultTimeout   = 20 * time.Second
)

var (
	ErrEmptyReply = errors.New("llm returned an empty reply")
	ErrRefused    = errors.New("llm refused the request")
)

// Client asks a model for a reply that fits a JSON schema and decodes it into
// result.
type Client interface {
	Chat(ctx context.Context, req Request, result any) (*Response, error)
	Model() string
}

type Request struct {
	SystemPrompt string
	UserPrompt   string
	SchemaName   string
	Schema       any
	MaxTokens    int      // 0 uses the client default
	Temperature  *float64 // nil leaves it to the model
}

type Response struct {
	PromptTokens     int
	CompletionTokens int
}

type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	Timeout    time.Duration
	MaxRetries int
}

type client struct {
	api       openai.Client
	model     string
	maxTokens int
}

func New(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("llm api key is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	c := &client{
		api:       openai.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.maxTokens <= 0 {
		c.maxTokens = defaultMaxTokens
	}
	return c, nil
}

func (c *client) Model() string {
	return c.model
}

func (c *client) Chat(ctx context.Context, req Request, result any) (*Response, error) {
	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, c.params(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	usage := &Response{
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
	}
	slog.DebugContext(ctx, "llm reply received",
		"model", c.model,
		"schema", req.SchemaName,
		"latency_ms", time.Since(start).Milliseconds(),
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens)

	if len(resp.Choices) == 0 {
		return usage, ErrEmptyReply
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return usage, fmt.Errorf("%w: %s", ErrRefused, msg.Refusal)
	}
	if err := decodeReply(msg.Content, result); err != nil {
		return usage, err
	}
	return usage, nil
}

func (c *client) params(req Request) openai.ChatCompletionNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = c.maxTokens
	}

	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.SchemaName,
					Schema: req.Schema,
					Strict: openai.Bool(true),
				},
			},
		},
	}
	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	return params
}

// decodeReply unmarshals content into result. Some OpenAI-compatible
// endpoints wrap structured output in a markdown code fence.
func decodeReply(content string, result any) error {
	content = strings.TrimSpace(content)
	if rest, ok := strings.CutPrefix(content, "```"); ok {
		rest = strings.TrimPrefix(rest, "json")
		rest, _ = strings.CutSuffix(strings.TrimSpace(rest), "```")
		content = strings.TrimSpace(rest)
	}
	if content == "" {
		return ErrEmptyReply
	}
	if err := json.Unmarshal([]byte(content), result); err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	return nil
}

// GenerateSchema reflects T into an inline schema without additional
// properties, which strict structured output requires.
func GenerateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}
