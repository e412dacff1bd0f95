package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIClient calls the OpenAI chat completions API (or any compatible
// endpoint). This variant has no delegated-retrieval support;
// Params.RetrievalStoreID is ignored.
type OpenAIClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIClient constructs a client. baseURL should include the /v1
// prefix when overridden; empty selects the public endpoint.
func NewOpenAIClient(apiKey, baseURL string) (*OpenAIClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAIClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// Generate implements Generator using /chat/completions.
func (c *OpenAIClient) Generate(ctx context.Context, systemText, userText string, params Params) (string, error) {
	messages := make([]oaiMessage, 0, 2)
	if strings.TrimSpace(systemText) != "" {
		messages = append(messages, oaiMessage{Role: "system", Content: systemText})
	}
	messages = append(messages, oaiMessage{Role: "user", Content: userText})
	reqBody := oaiChatRequest{
		Model:       params.Model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxOutputTokens,
	}
	url := c.baseURL + "/chat/completions"

	return withRetry(ctx, params.Timeout, func(callCtx context.Context) (string, error) {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			var errResp oaiErrorResponse
			_ = json.NewDecoder(resp.Body).Decode(&errResp)
			return "", &apiError{status: resp.StatusCode, message: errResp.Error.Message}
		}
		var chatResp oaiChatResponse
		if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
			return "", err
		}
		if len(chatResp.Choices) == 0 {
			return "", nil
		}
		return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
	})
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiChatRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	Temperature float64      `json:"temperature"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
