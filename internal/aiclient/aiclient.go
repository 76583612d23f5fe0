package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"audiototext/api-gateway/models"
)

var (
	// ErrUpstreamUnavailable indicates a transport-level failure reaching
	// the model provider.
	ErrUpstreamUnavailable = errors.New("upstream model provider unavailable")

	// ErrUpstreamRejected indicates the provider answered with an error,
	// e.g. invalid audio.
	ErrUpstreamRejected = errors.New("upstream model provider rejected the request")
)

const (
	summarySystemPrompt = "You are a helpful assistant that creates concise summaries of transcribed audio. Focus on key points and main ideas."
	titleSystemPrompt   = "You are a helpful assistant that writes a short descriptive title (at most eight words) for transcribed audio. Return only the title text."

	actionItemsPlainPrompt = "You are a helpful assistant that extracts actionable tasks from transcribed audio. Return only a JSON array of action items as strings, nothing else."
	actionItemsRichPrompt  = "You are a helpful assistant that extracts actionable tasks from transcribed audio. Return only a JSON array of objects with fields \"text\", \"priority\" (High, Medium or Low) and \"category\" (Work, Personal, Follow-Up or Idea), nothing else."
)

// Client calls the upstream model provider: speech-to-text for the
// transcript, then chat completions for summary, title and action items.
type Client struct {
	apiKey          string
	baseURL         string
	transcribeModel string
	chatModel       string
	logger          *logrus.Logger

	// No client-enforced timeout: processing legitimately takes several
	// seconds and the transport's own connection lifecycle applies.
	httpClient *http.Client
}

// New creates a Client against the given provider base URL (e.g.
// https://api.openai.com/v1).
func New(baseURL, apiKey, transcribeModel, chatModel string, logger *logrus.Logger) *Client {
	return &Client{
		apiKey:          apiKey,
		baseURL:         strings.TrimRight(baseURL, "/"),
		transcribeModel: transcribeModel,
		chatModel:       chatModel,
		logger:          logger,
		httpClient:      &http.Client{},
	}
}

// Process runs the full pipeline for one audio artifact. The plan tier only
// affects output richness: elevated tiers get priority/category tags on
// action items.
func (c *Client) Process(ctx context.Context, audio []byte, filename string, tier models.PlanTier) (*models.ProcessingResult, error) {
	c.logger.Infof("Starting transcription for %s (%d bytes, plan %s)", filename, len(audio), tier)

	transcription, err := c.transcribe(ctx, audio, filename)
	if err != nil {
		return nil, err
	}
	c.logger.Infof("Transcription complete for %s (%d chars)", filename, len(transcription))

	summary, err := c.chat(ctx, summarySystemPrompt,
		fmt.Sprintf("Please provide a concise summary of the following transcription:\n\n%s", transcription),
		300, 0.7)
	if err != nil {
		return nil, err
	}

	title, err := c.chat(ctx, titleSystemPrompt,
		fmt.Sprintf("Write a title for this transcription:\n\n%s", transcription),
		30, 0.5)
	if err != nil {
		return nil, err
	}

	itemsPrompt := actionItemsPlainPrompt
	if tier.Elevated() {
		itemsPrompt = actionItemsRichPrompt
	}
	rawItems, err := c.chat(ctx, itemsPrompt,
		fmt.Sprintf("Extract actionable tasks from this transcription:\n\n%s", transcription),
		200, 0.5)
	if err != nil {
		return nil, err
	}

	items := ParseActionItems(rawItems, tier)
	c.logger.Infof("Action items extracted for %s: %d", filename, len(items))

	result := &models.ProcessingResult{
		Transcription: transcription,
		Summary:       summary,
		ActionItems:   items,
	}
	if trimmed := strings.Trim(strings.TrimSpace(title), `"`); trimmed != "" {
		result.Title = &trimmed
	}
	return result, nil
}

func (c *Client) transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", c.transcribeModel); err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("building transcription request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		c.logger.Errorf("Transcription API error (%d): %s", resp.StatusCode, string(b))
		return "", fmt.Errorf("%w: transcription http %d", ErrUpstreamRejected, resp.StatusCode)
	}

	var parsed struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding transcription response: %v", ErrUpstreamRejected, err)
	}
	return parsed.Text, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (c *Client) chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		c.logger.Errorf("Chat API error (%d): %s", resp.StatusCode, string(b))
		return "", fmt.Errorf("%w: chat http %d", ErrUpstreamRejected, resp.StatusCode)
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding chat response: %v", ErrUpstreamRejected, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: chat response had no choices", ErrUpstreamRejected)
	}
	return parsed.Choices[0].Message.Content, nil
}
