// Package client is the Go upload transport for the cleaning-cards analysis
// endpoint. It packages a prepared photo (see the image package) into a
// multipart request and translates the HTTP response into typed results or
// errors.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"cleaning-cards/models"
)

const analysisPath = "/api/analysis/room-photo"

// ErrNoCards is returned when an initial analysis succeeds but yields zero
// cards. At this layer a photo with nothing to do is indistinguishable from a
// failed generation, so the app can prompt a retake.
var ErrNoCards = errors.New("no cards generated")

// Client posts prepared photos to the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// maxRetries is the number of additional attempts after the first, taken
	// only on transport errors and 5xx responses. All attempts of one logical
	// call share an X-Request-ID so a flaky network cannot trigger duplicate
	// model calls the server can't correlate.
	maxRetries int
}

// New creates a client for the service at baseURL (no trailing slash).
func New(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		maxRetries: 2,
	}
}

// AnalyzeRoom uploads a prepared JPEG for an initial analysis.
// A successful response with zero cards returns ErrNoCards.
func (c *Client) AnalyzeRoom(ctx context.Context, imageJPEG []byte, locale string) (*models.InitialAnalysisResult, error) {
	body, contentType, err := buildForm(imageJPEG, locale, nil)
	if err != nil {
		return nil, err
	}

	var result models.InitialAnalysisResult
	if err := c.post(ctx, body, contentType, &result); err != nil {
		return nil, err
	}
	if len(result.Cards) == 0 {
		return nil, ErrNoCards
	}
	return &result, nil
}

// AnalyzeFollowup uploads the after photo together with the before photo and
// the previous card list for a comparison pass.
func (c *Client) AnalyzeFollowup(ctx context.Context, before, after []byte, previous []models.CleaningCard, locale string) (*models.FollowupAnalysisResult, error) {
	body, contentType, err := buildForm(after, locale, &followupFields{
		previousImage: before,
		previousCards: previous,
	})
	if err != nil {
		return nil, err
	}

	var result models.FollowupAnalysisResult
	if err := c.post(ctx, body, contentType, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type followupFields struct {
	previousImage []byte
	previousCards []models.CleaningCard
}

func buildForm(imageJPEG []byte, locale string, followup *followupFields) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", "room.jpg")
	if err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	if _, err := part.Write(imageJPEG); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	if locale != "" {
		if err := w.WriteField("locale", locale); err != nil {
			return nil, "", fmt.Errorf("failed to build form: %w", err)
		}
	}

	if followup != nil {
		cardsJSON, err := json.Marshal(followup.previousCards)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode previous cards: %w", err)
		}
		fields := map[string]string{
			"mode":          models.ModeFollowup,
			"previousImage": base64.StdEncoding.EncodeToString(followup.previousImage),
			"previousCards": string(cardsJSON),
		}
		for name, value := range fields {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", fmt.Errorf("failed to build form: %w", err)
			}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to build form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// post sends the form, retrying transport errors and 5xx responses with the
// same request id. 4xx responses are never retried.
func (c *Client) post(ctx context.Context, body []byte, contentType string, out any) error {
	requestID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			log.Infof("retrying upload (attempt %d, request_id=%s): %v", attempt+1, requestID, lastErr)
			select {
			case <-time.After(time.Duration(attempt) * time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		retryable, err := c.doPost(ctx, body, contentType, requestID, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}

func (c *Client) doPost(ctx context.Context, body []byte, contentType, requestID string, out any) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analysisPath, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return true, fmt.Errorf("failed to reach analysis service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := serverErrorText(respBody, resp.StatusCode)
		return resp.StatusCode >= 500, errors.New(msg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}
	return false, nil
}

// serverErrorText prefers the server-provided error text and falls back to a
// generic status message.
func serverErrorText(body []byte, status int) string {
	var errResp models.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return errResp.Error
	}
	return fmt.Sprintf("server error (%d)", status)
}
