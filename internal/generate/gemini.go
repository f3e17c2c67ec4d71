package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

const (
	defaultGeminiURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultGeminiModel = "gemini-2.5-flash"
)

var (
	geminiTextPath  = jp.MustParseString("candidates[0].content.parts[0].text")
	geminiErrorPath = jp.MustParseString("error.message")
	geminiBlockPath = jp.MustParseString("promptFeedback.blockReason")
)

// GeminiClient calls the Gemini generateContent API.
type GeminiClient struct {
	apiKey string
	model  string
	cfg    clientConfig
	stats  *CallStats
}

func NewGeminiClient(apiKey, model string, opts ...Option) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiClient{
		apiKey: apiKey,
		model:  model,
		cfg:    newClientConfig(defaultGeminiURL, opts),
		stats:  NewCallStats(time.Hour),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig map[string]any  `json:"generationConfig,omitempty"`
}

func (c *GeminiClient) Model() string { return c.model }

func (c *GeminiClient) Stats() *CallStats { return c.stats }

func (c *GeminiClient) GenerateFreeText(ctx context.Context, original string) (string, error) {
	text, err := c.complete(ctx, OpFreeText, BuildFreeTextPrompt(original), "")
	if err != nil {
		return "", err
	}
	return Sanitize(text, c.cfg.maxValueLen), nil
}

func (c *GeminiClient) GenerateTableValues(ctx context.Context, markdown string, tags []string) (map[string]string, error) {
	text, err := c.complete(ctx, OpTable, BuildTablePrompt(markdown, tags), "application/json")
	if err != nil {
		return nil, err
	}
	raw, err := decodeValues(text)
	if err != nil {
		return nil, err
	}
	return sanitizeValues(raw, tags, c.cfg.maxValueLen), nil
}

func (c *GeminiClient) GenerateDocumentValues(ctx context.Context, documentText string, tags []string) (map[string]string, error) {
	prompt := BuildDocumentPrompt(documentText, tags, c.cfg.promptBudget)
	text, err := c.complete(ctx, OpDocument, prompt, "application/json")
	if err != nil {
		return nil, err
	}
	raw, err := decodeValues(text)
	if err != nil {
		return nil, err
	}
	return sanitizeValues(raw, tags, c.cfg.maxValueLen), nil
}

func (c *GeminiClient) complete(ctx context.Context, op, prompt, mimeType string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	}
	if mimeType != "" {
		reqBody.GenerationConfig = map[string]any{"responseMimeType": mimeType}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.cfg.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.cfg.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gemini api: %w", err)
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

	data, err := oj.ParseString(string(respBody))
	if err != nil {
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("gemini api status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
		}
		return "", fmt.Errorf("decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := geminiErrorPath.First(data).(string)
		if msg == "" {
			msg = truncate(string(respBody), 200)
		}
		return "", fmt.Errorf("gemini api status %d: %s", resp.StatusCode, msg)
	}

	text, ok := geminiTextPath.First(data).(string)
	if !ok {
		if reason, _ := geminiBlockPath.First(data).(string); reason != "" {
			return "", fmt.Errorf("gemini blocked prompt: %s", reason)
		}
		return "", fmt.Errorf("empty response from gemini")
	}
	c.stats.Record(op, time.Since(start).Milliseconds())
	return text, nil
}

// Close releases resources.
func (c *GeminiClient) Close() {
	c.cfg.httpClient.CloseIdleConnections()
}
