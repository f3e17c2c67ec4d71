package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dgallion1/docslot/internal/schema"
)

const defaultAnthropicURL = "https://api.anthropic.com"

// Option configures a network-backed collaborator.
type Option func(*clientConfig)

type clientConfig struct {
	baseURL      string
	httpClient   *http.Client
	promptBudget int
	maxValueLen  int
}

// WithBaseURL points the client at a different API host.
func WithBaseURL(u string) Option {
	return func(c *clientConfig) { c.baseURL = strings.TrimRight(u, "/") }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) { c.httpClient = hc }
}

// WithPromptBudget bounds the document text embedded in document prompts.
func WithPromptBudget(tokens int) Option {
	return func(c *clientConfig) { c.promptBudget = tokens }
}

// WithMaxValueLen caps each generated value in runes.
func WithMaxValueLen(n int) Option {
	return func(c *clientConfig) { c.maxValueLen = n }
}

func newClientConfig(baseURL string, opts []Option) clientConfig {
	cfg := clientConfig{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: 120 * time.Second},
		promptBudget: DefaultPromptTokenBudget,
		maxValueLen:  DefaultMaxValueLen,
	}
	for _, o := range opts {
		o(&cfg)
	}
	return cfg
}

// ClaudeClient calls the Anthropic Messages API.
type ClaudeClient struct {
	apiKey string
	model  string
	cfg    clientConfig
	stats  *CallStats
}

func NewClaudeClient(apiKey, model string, opts ...Option) *ClaudeClient {
	return &ClaudeClient{
		apiKey: apiKey,
		model:  model,
		cfg:    newClientConfig(defaultAnthropicURL, opts),
		stats:  NewCallStats(time.Hour),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *ClaudeClient) Model() string { return c.model }

func (c *ClaudeClient) Stats() *CallStats { return c.stats }

// AnalyzeStructure asks Claude for the literal placeholders in the summary.
func (c *ClaudeClient) AnalyzeStructure(ctx context.Context, root *schema.Node) (Mapping, error) {
	js, err := root.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	text, err := c.complete(ctx, OpMapping, BuildMappingPrompt(js), 2048)
	if err != nil {
		return nil, err
	}
	return decodeMapping(text)
}

func (c *ClaudeClient) GenerateFreeText(ctx context.Context, original string) (string, error) {
	text, err := c.complete(ctx, OpFreeText, BuildFreeTextPrompt(original), 1024)
	if err != nil {
		return "", err
	}
	return Sanitize(text, c.cfg.maxValueLen), nil
}

func (c *ClaudeClient) GenerateTableValues(ctx context.Context, markdown string, tags []string) (map[string]string, error) {
	text, err := c.complete(ctx, OpTable, BuildTablePrompt(markdown, tags), 2048)
	if err != nil {
		return nil, err
	}
	raw, err := decodeValues(text)
	if err != nil {
		return nil, err
	}
	return sanitizeValues(raw, tags, c.cfg.maxValueLen), nil
}

func (c *ClaudeClient) GenerateDocumentValues(ctx context.Context, documentText string, tags []string) (map[string]string, error) {
	prompt := BuildDocumentPrompt(documentText, tags, c.cfg.promptBudget)
	text, err := c.complete(ctx, OpDocument, prompt, 4096)
	if err != nil {
		return nil, err
	}
	raw, err := decodeValues(text)
	if err != nil {
		return nil, err
	}
	return sanitizeValues(raw, tags, c.cfg.maxValueLen), nil
}

// complete sends one user message and returns the first text block.
func (c *ClaudeClient) complete(ctx context.Context, op, prompt string, maxTokens int) (string, error) {
	reqBody := anthropicRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt},
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	start := time.Now()
	resp, err := c.cfg.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("claude api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", &RetryableError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil {
		return "", fmt.Errorf("claude error: %s: %s", apiResp.Error.Type, apiResp.Error.Message)
	}
	if len(apiResp.Content) == 0 {
		return "", fmt.Errorf("empty response from claude")
	}
	c.stats.Record(op, time.Since(start).Milliseconds())

	return apiResp.Content[0].Text, nil
}

// Close releases resources.
func (c *ClaudeClient) Close() {
	c.cfg.httpClient.CloseIdleConnections()
}

// decodeMapping parses a JSON array of {pattern, tag} objects, dropping
// entries with an empty pattern or tag.
func decodeMapping(text string) (Mapping, error) {
	text = stripCodeBlock(text)
	var rules []Rule
	if err := json.Unmarshal([]byte(text), &rules); err != nil {
		return nil, fmt.Errorf("parse mapping json: %w (raw: %s)", err, truncate(text, 200))
	}
	out := make(Mapping, 0, len(rules))
	for _, r := range rules {
		r.Tag = CanonicalTag(r.Tag)
		if r.Pattern == "" || r.Tag == "" {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// decodeValues parses a JSON object of tag to value. Non-string scalars are
// formatted; nulls are dropped.
func decodeValues(text string) (map[string]string, error) {
	text = stripCodeBlock(text)
	var raw map[string]any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, fmt.Errorf("parse values json: %w (raw: %s)", err, truncate(text, 200))
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			out[k] = v
		default:
			out[k] = fmt.Sprint(v)
		}
	}
	return out, nil
}
