package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// ErrNotConfigured is returned when no API key is available.
var ErrNotConfigured = errors.New("gemini api key is not configured")

// ErrEmptyReply is returned when the model answers without any text part.
var ErrEmptyReply = errors.New("gemini returned an empty reply")

// Request describes a single generation call.
type Request struct {
	System string
	Prompt string
	JSON   bool
}

// Config configures the client.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client wraps the Gemini SDK behind a single Generate call.
type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

// New connects to Gemini. A missing key yields ErrNotConfigured so callers can
// still start and report the condition per request.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: cfg.Model, timeout: cfg.Timeout, logger: logger}, nil
}

// Generate sends the prompt and concatenates the text parts of the first candidate.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	model := c.client.GenerativeModel(c.model)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	start := time.Now()
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.logger.Warn("gemini request failed", zap.String("model", c.model), zap.Duration("took", time.Since(start)), zap.Error(err))
		return "", fmt.Errorf("generate content: %w", err)
	}
	c.logger.Debug("gemini request completed", zap.String("model", c.model), zap.Duration("took", time.Since(start)))

	text := ReplyText(resp)
	if text == "" {
		return "", ErrEmptyReply
	}
	return text, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// ReplyText joins the text parts of the first candidate that has content.
func ReplyText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			return b.String()
		}
	}
	return ""
}
