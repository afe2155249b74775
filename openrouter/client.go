package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/apex/log"

	"cleaning-cards/config"
	"cleaning-cards/llm"
	"cleaning-cards/metrics"
)

const defaultEndpoint = "https://openrouter.ai/api/v1/chat/completions"

// retryBaseDelay is doubled after each failed attempt: 800ms, then 1600ms.
const retryBaseDelay = 800 * time.Millisecond

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content any `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client calls the OpenRouter chat-completions API with per-attempt timeout
// and bounded exponential-backoff retry.
type Client struct {
	apiKey   string
	model    string
	referrer string
	title    string

	endpoint    string
	httpClient  *http.Client
	maxAttempts int
	retryBase   time.Duration
}

// NewClient creates an OpenRouter client from service configuration.
func NewClient(cfg *config.Config) *Client {
	return &Client{
		apiKey:      cfg.OpenRouterAPIKey,
		model:       cfg.OpenRouterModel,
		referrer:    cfg.Referrer,
		title:       cfg.Title,
		endpoint:    defaultEndpoint,
		httpClient:  &http.Client{Timeout: cfg.ModelTimeout},
		maxAttempts: cfg.MaxRetries + 1,
		retryBase:   retryBaseDelay,
	}
}

// SourceName identifies this provider in logs.
func (c *Client) SourceName() string {
	return "OpenRouter"
}

// Complete sends the message sequence to the model and returns the raw text
// of the first choice. Failed attempts are retried up to the configured
// budget with a blocking delay of retryBase * 2^attempt between attempts;
// the last attempt's error propagates unchanged. A missing API key and a
// canceled context are never retried.
func (c *Client) Complete(ctx context.Context, messages []llm.Message, opts llm.CallOptions) (string, error) {
	if c.apiKey == "" {
		return "", llm.ErrMissingAPIKey
	}

	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		content, err := c.doCall(ctx, messages, opts, attempt)
		if err == nil {
			return content, nil
		}
		lastErr = err

		if errors.Is(err, llm.ErrMissingAPIKey) || ctx.Err() != nil {
			return "", err
		}
		if attempt == c.maxAttempts-1 {
			break
		}

		delay := c.retryBase << attempt
		log.Warnf("model call failed (attempt %d/%d), retrying in %v: %v",
			attempt+1, c.maxAttempts, delay, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

// doCall issues one HTTP attempt. It logs model id, elapsed time, status and
// content length; the request payload (image data URLs included) is never
// logged.
func (c *Client) doCall(ctx context.Context, messages []llm.Message, opts llm.CallOptions, attempt int) (string, error) {
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referrer)
	req.Header.Set("X-Title", c.title)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start)
	metrics.ModelCallDurationSeconds.Observe(elapsed.Seconds())

	if err != nil {
		if ctx.Err() != nil {
			metrics.ModelCallsTotal.WithLabelValues("canceled").Inc()
		} else {
			metrics.ModelCallsTotal.WithLabelValues("transport_error").Inc()
		}
		log.Infof("model call: model=%s attempt=%d elapsed=%dms error=%v",
			c.model, attempt, elapsed.Milliseconds(), err)
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("transport_error").Inc()
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ModelCallsTotal.WithLabelValues("http_error").Inc()
		log.Infof("model call: model=%s attempt=%d elapsed=%dms status=%d",
			c.model, attempt, elapsed.Milliseconds(), resp.StatusCode)
		return "", &llm.HTTPError{Status: resp.StatusCode, Body: string(body)}
	}

	content, err := extractContent(body)
	if err != nil {
		metrics.ModelCallsTotal.WithLabelValues("no_content").Inc()
		log.Infof("model call: model=%s attempt=%d elapsed=%dms status=%d content_len=0",
			c.model, attempt, elapsed.Milliseconds(), resp.StatusCode)
		return "", err
	}

	metrics.ModelCallsTotal.WithLabelValues("success").Inc()
	log.Infof("model call: model=%s attempt=%d elapsed=%dms status=%d content_len=%d",
		c.model, attempt, elapsed.Milliseconds(), resp.StatusCode, len(content))
	return content, nil
}

// extractContent pulls the text of the first choice. Some providers return
// content as a part list instead of a plain string; both forms are accepted.
func extractContent(body []byte) (string, error) {
	var chatResp chatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", llm.ErrMissingContent
	}

	switch content := chatResp.Choices[0].Message.Content.(type) {
	case string:
		if content == "" {
			return "", llm.ErrMissingContent
		}
		return content, nil
	case []any:
		var buf bytes.Buffer
		for _, part := range content {
			m, ok := part.(map[string]any)
			if !ok {
				continue
			}
			if text, ok := m["text"].(string); ok {
				buf.WriteString(text)
			}
		}
		if buf.Len() == 0 {
			return "", llm.ErrMissingContent
		}
		return buf.String(), nil
	default:
		return "", llm.ErrMissingContent
	}
}
