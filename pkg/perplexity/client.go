// Package perplexity fetches sourced company overviews from Perplexity's
// sonar models.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const (
	defaultBaseURL   = "https://api.perplexity.ai"
	defaultModel     = "sonar-pro"
	defaultMaxTokens = 600

	overviewSystem = "You research B2B sales prospects. Be precise and concise. Only state facts you can source."
)

// Client answers company research questions.
type Client interface {
	Overview(ctx context.Context, company, website string) (*Overview, error)
}

// Overview is a short sourced description of a company.
type Overview struct {
	Text      string
	Citations []string
	Tokens    int
}

// StatusError is returned when the API answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("perplexity: status %d: %s", e.StatusCode, e.Body)
}

// Config configures a Client. Zero fields take defaults.
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	MaxTokens  int
	HTTPClient *http.Client
}

type client struct {
	cfg Config
}

// New creates a Client.
func New(cfg Config) Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &client{cfg: cfg}
}

// OverviewPrompt is the user question sent for a company.
func OverviewPrompt(company, website string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Give a short factual overview of the company %q", company)
	if website != "" {
		fmt.Fprintf(&b, " (website: %s)", website)
	}
	b.WriteString(": what it sells, who it sells to, approximate size, and any recent funding, hiring, or leadership news.")
	return b.String()
}

type wireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type wireRequest struct {
	Model     string        `json:"model"`
	Messages  []wireMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type wireResponse struct {
	Choices []struct {
		Message wireMessage `json:"message"`
	} `json:"choices"`
	Citations []string `json:"citations"`
	Usage     struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *client) Overview(ctx context.Context, company, website string) (*Overview, error) {
	payload, err := json.Marshal(wireRequest{
		Model: c.cfg.Model,
		Messages: []wireMessage{
			{Role: "system", Content: overviewSystem},
			{Role: "user", Content: OverviewPrompt(company, website)},
		},
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: encode overview request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: build overview request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "perplexity: overview of %q", company)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, eris.Wrap(err, "perplexity: read overview")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var wr wireResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		return nil, eris.Wrap(err, "perplexity: decode overview")
	}

	out := &Overview{Tokens: wr.Usage.TotalTokens}
	if len(wr.Choices) > 0 {
		out.Text = strings.TrimSpace(wr.Choices[0].Message.Content)
	}
	for _, u := range wr.Citations {
		if u = strings.TrimSpace(u); u != "" {
			out.Citations = append(out.Citations, u)
		}
	}
	return out, nil
}
