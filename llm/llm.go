package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client abstracts the chat-completion provider used by the analyzer.
// Implementations must be concurrency-safe if shared across requests.
type Client interface {
	// Complete sends a message sequence to the model and returns the raw text
	// content of the first choice. The context cancels the in-flight HTTP call.
	Complete(ctx context.Context, messages []Message, opts CallOptions) (string, error)
	// SourceName returns a short provider label for logging (e.g. "OpenRouter").
	SourceName() string
}

// CallOptions tune a single completion call.
type CallOptions struct {
	Temperature float64
	MaxTokens   int
}

// Message is one chat message. Content is either a plain string or a list of
// typed parts (TextContent / ImageContent) for multimodal messages.
type Message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type TextContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ImageContent struct {
	Type     string   `json:"type"`
	ImageURL ImageURL `json:"image_url"`
}

// Text builds a text part.
func Text(s string) TextContent {
	return TextContent{Type: "text", Text: s}
}

// Image builds an image part from a data URL or remote URL.
func Image(url string) ImageContent {
	return ImageContent{Type: "image_url", ImageURL: ImageURL{URL: url}}
}

var (
	// ErrMissingAPIKey means the provider key is absent. Fatal, never retried.
	ErrMissingAPIKey = errors.New("missing API key")
	// ErrMissingContent means the provider response parsed but carried no
	// usable text. Retryable.
	ErrMissingContent = errors.New("no content in model response")
)

// HTTPError is a non-2xx response from the provider. Retryable.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Status, e.Body)
}
