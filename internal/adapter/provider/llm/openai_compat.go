// Package llm implements chat-completion backends over the
// OpenAI-compatible wire format. The NVIDIA and OpenAI providers differ
// only in base URL, credential and model id.
package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"github.com/fairyhunter13/ghostradio/internal/adapter/observability"
	"github.com/fairyhunter13/ghostradio/internal/domain"
)

// readSnippet reads up to n bytes from r for error reporting.
func readSnippet(r io.Reader, n int) string {
	if r == nil || n <= 0 {
		return ""
	}
	buf := make([]byte, n)
	m, _ := io.ReadAtLeast(io.LimitReader(r, int64(n)), buf, 0)
	return string(buf[:m])
}

// OpenAICompat is one OpenAI-compatible chat backend.
type OpenAICompat struct {
	name        string
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	hc          *http.Client
}

// New constructs a backend. name is the vendor id used for rotation and
// metrics ("nvidia", "openai").
func New(name, baseURL, apiKey, model string) *OpenAICompat {
	return &OpenAICompat{
		name:        name,
		baseURL:     baseURL,
		apiKey:      apiKey,
		model:       model,
		temperature: 0.7,
		hc:          &http.Client{Timeout: domain.LLMBudget},
	}
}

// Name returns the vendor id.
func (c *OpenAICompat) Name() string { return c.name }

// Model returns the configured model id.
func (c *OpenAICompat) Model() string { return c.model }

type chatRequest struct {
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Messages    []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// Chat sends one chat completion. Transport and API failures come back as
// error values for the worker's rotate-and-retry loop.
func (c *OpenAICompat) Chat(ctx domain.Context, system, user string) (domain.ChatResult, error) {
	return c.chat(ctx, system, user, 0)
}

// Probe issues a 5-token chat to confirm the credential and model work.
func (c *OpenAICompat) Probe(ctx domain.Context) error {
	if c.apiKey == "" {
		return fmt.Errorf("op=llm.Probe provider=%s: credential missing: %w", c.name, domain.ErrNoProvider)
	}
	_, err := c.chat(ctx, "", "ping", 5)
	return err
}

func (c *OpenAICompat) chat(ctx domain.Context, system, user string, maxTokens int) (domain.ChatResult, error) {
	if c.apiKey == "" {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s: credential missing: %w", c.name, domain.ErrNoProvider)
	}
	msgs := make([]chatMessage, 0, 2)
	if system != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: system})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: user})
	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
		Messages:    msgs,
	})
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s: %w", c.name, err)
	}

	start := time.Now()
	observability.ProviderRequestsTotal.WithLabelValues(c.name, "chat").Inc()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s: %w", c.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s model=%s: %w", c.name, c.model, err)
	}
	defer func() { _ = resp.Body.Close() }()
	observability.ProviderRequestDuration.WithLabelValues(c.name, "chat").Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := readSnippet(resp.Body, 512)
		slog.Warn("chat completion rejected",
			slog.String("provider", c.name),
			slog.String("model", c.model),
			slog.Int("status", resp.StatusCode),
			slog.String("body", snippet))
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s model=%s: status %d: %s", c.name, c.model, resp.StatusCode, snippet)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s: decode: %w", c.name, err)
	}
	if len(out.Choices) == 0 {
		return domain.ChatResult{}, fmt.Errorf("op=llm.Chat provider=%s: empty choices", c.name)
	}
	content := out.Choices[0].Message.Content
	tokens := out.Usage.TotalTokens
	if tokens == 0 {
		tokens = estimateTokens(system + user + content)
	}
	return domain.ChatResult{Content: content, TokensUsed: tokens}, nil
}

// estimateTokens approximates usage when the backend omits it.
func estimateTokens(text string) int {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		// roughly four bytes per token for mixed text
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}
