package tips

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client fetches sustainability tips from the OpenAI chat completions API.
type Client struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SustainabilityTips asks the model for five tips and returns them as
// non-empty lines.
func (c *Client) SustainabilityTips(ctx context.Context) ([]string, error) {
	if c.APIKey == "" {
		return nil, errors.New("openai api key not configured")
	}

	body := chatRequest{
		Model: "gpt-4",
		Messages: []chatMessage{
			{Role: "system", Content: "You are a sustainability expert."},
			{Role: "user", Content: "Give me 5 tips about sustainability."},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, fmt.Errorf("tips: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tips: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("tips: openai returned %d: %s", res.StatusCode, msg)
	}

	var parsed chatResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("tips: decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("tips: empty completion")
	}

	var tips []string
	for _, line := range strings.Split(parsed.Choices[0].Message.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			tips = append(tips, line)
		}
	}
	return tips, nil
}
