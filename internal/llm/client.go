package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/cognicore/supportlens/pkg/supportlens/conversation"
	"github.com/cognicore/supportlens/pkg/supportlens/enrich"
	"github.com/cognicore/supportlens/pkg/supportlens/records"
)

// maxPromptRunes caps the conversation or record text sent in one prompt.
const maxPromptRunes = 6000

// Config configures the OpenAI-compatible client
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float64

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client calls an OpenAI-compatible chat completion endpoint. It implements
// enrich.Enricher.
type Client struct {
	api         *openai.Client
	model       string
	maxTokens   int
	temperature float64
	logger      *zap.Logger
}

var _ enrich.Enricher = (*Client)(nil)

// New creates a client. A model is required; the API key may be empty for
// self-hosted endpoints configured through BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm: model required")
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("llm: api key or base URL required")
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		oc.HTTPClient = cfg.HTTPClient
	} else {
		oc.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Client{
		api:         openai.NewClientWithConfig(oc),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		logger:      cfg.Logger,
	}, nil
}

const inquirySystem = `You extract the customer's actual question from a support conversation.
Ignore greetings, bot menus, agent replies, auto-replies, links, phone numbers and verification codes.
Reply with the inquiry only, in the customer's language, without quotes or commentary.
If the customer asked nothing, reply exactly: 문의 내용 없음`

// ExtractInquiry asks the model for the customer's inquiry in c
func (c *Client) ExtractInquiry(ctx context.Context, conv *conversation.Conversation) (string, error) {
	out, err := c.Chat(ctx, inquirySystem, formatConversation(conv))
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(out), `"`), nil
}

const summarySystem = `You summarise recurring customer inquiries for one support category.
Return a JSON object with this structure and nothing else:
{
    "faq": "short paragraph listing the most frequent questions",
    "keywords": ["keyword1", "keyword2", ...]
}`

type summaryResponse struct {
	FAQ      string   `json:"faq"`
	Keywords []string `json:"keywords"`
}

// SummarizeTag asks the model to digest the records of one tag
func (c *Client) SummarizeTag(ctx context.Context, tag string, recs []records.Record) (*enrich.TagSummary, error) {
	out, err := c.Chat(ctx, summarySystem, formatRecords(tag, recs))
	if err != nil {
		return nil, err
	}

	var resp summaryResponse
	if err := json.Unmarshal([]byte(stripFence(out)), &resp); err != nil {
		c.logger.Debug("unparseable summary response", zap.String("tag", tag), zap.String("response", out))
		return nil, fmt.Errorf("llm: parse summary: %w", err)
	}
	return &enrich.TagSummary{FAQText: strings.TrimSpace(resp.FAQ), Keywords: resp.Keywords}, nil
}

// Chat sends one system and one user message and returns the first choice
func (c *Client) Chat(ctx context.Context, system, user string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens:   c.maxTokens,
		Temperature: float32(c.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func formatConversation(conv *conversation.Conversation) string {
	var buf bytes.Buffer
	if conv.Subject != "" {
		fmt.Fprintf(&buf, "Subject: %s\n", conv.Subject)
	}
	if body := strings.TrimSpace(conv.Body); body != "" {
		fmt.Fprintf(&buf, "Description: %s\n", body)
	}
	buf.WriteString("Messages:\n")
	for _, m := range conv.Messages {
		if text := strings.TrimSpace(m.Text()); text != "" {
			fmt.Fprintf(&buf, "[%s] %s\n", m.Role, text)
		}
	}
	return truncate(buf.String())
}

func formatRecords(tag string, recs []records.Record) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Category: %s\nInquiries:\n", tag)
	for idx, r := range recs {
		fmt.Fprintf(&buf, "%d. %s\n", idx+1, r.Text)
	}
	return truncate(buf.String())
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxPromptRunes {
		return s
	}
	return string([]rune(s)[:maxPromptRunes])
}

// stripFence removes a markdown code fence around a JSON reply
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
