// Package perplexity is a minimal client for the Perplexity Sonar search API.
package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ai-review-be/pkg/llm"
)

const DefaultBaseURL = "https://api.perplexity.ai"

type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "sonar"
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{},
	}
}

// Citation is one source returned with an answer. The API returns either bare
// URLs or objects; both decode into this shape.
type Citation struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	Date    string `json:"date"`
}

func (c *Citation) UnmarshalJSON(data []byte) error {
	var url string
	if err := json.Unmarshal(data, &url); err == nil {
		c.URL = url
		return nil
	}
	type plain Citation
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*c = Citation(p)
	return nil
}

type Answer struct {
	Text      string
	Citations []Citation
	Model     string
	Usage     llm.Usage
}

type searchRequest struct {
	Model           string        `json:"model"`
	Messages        []llm.Message `json:"messages"`
	ReturnCitations bool          `json:"return_citations"`
}

type searchResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations []Citation `json:"citations"`
	Usage     struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Search runs a single query. Non-2xx answers come back as *llm.StatusError.
func (c *Client) Search(ctx context.Context, query string) (*Answer, error) {
	body, err := json.Marshal(searchRequest{
		Model:           c.Model,
		Messages:        []llm.Message{{Role: "user", Content: query}},
		ReturnCitations: true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perplexity request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &llm.StatusError{Provider: "perplexity", StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out searchResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	answer := &Answer{
		Citations: out.Citations,
		Model:     c.Model,
		Usage: llm.Usage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
		},
	}
	if len(out.Choices) > 0 {
		answer.Text = out.Choices[0].Message.Content
	}
	return answer, nil
}
