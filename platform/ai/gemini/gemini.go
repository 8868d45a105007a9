// Package gemini implements the ai.Client interface on the Gemini API.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"advocate_backend/platform/ai"

	"google.golang.org/genai"
)

// Config for the Gemini client.
type Config struct {
	APIKey string
	Model  string
}

// Client calls the Gemini generate-content API.
type Client struct {
	config Config
	client *genai.Client
}

// New creates a Gemini-backed ai.Client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}

	inner, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Client{config: cfg, client: inner}, nil
}

// Complete implements ai.Client.
func (c *Client) Complete(ctx context.Context, req ai.Request) (string, error) {
	config := &genai.GenerateContentConfig{}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.JSONOnly {
		config.ResponseMIMEType = "application/json"
	}
	if req.Temperature != nil {
		config.Temperature = req.Temperature
	}

	contents := convertMessages(req.Messages)
	if len(contents) == 0 {
		return "", fmt.Errorf("gemini: empty request")
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.Model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: empty response")
	}

	return text, nil
}

func convertMessages(messages []ai.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		text := strings.TrimSpace(msg.Content)
		if text == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(text, roleFor(msg.Role)))
	}
	return contents
}

func roleFor(role string) genai.Role {
	if role == ai.RoleAssistant {
		return genai.RoleModel
	}
	return genai.RoleUser
}
