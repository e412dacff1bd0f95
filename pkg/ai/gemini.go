package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient calls the Google AI Studio (Gemini) API.
//
// Delegated retrieval is supported: when Params.RetrievalStoreID is set, a
// File Search tool pointing at that store is attached so grounding happens
// on the provider side.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client. baseURL may be empty for the public
// endpoint.
func NewGeminiClient(apiKey, baseURL string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiClient{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: &http.Client{},
	}, nil
}

// Generate implements Generator against models/{model}:generateContent.
func (c *GeminiClient) Generate(ctx context.Context, systemText, userText string, params Params) (string, error) {
	reqBody := geminiGenerateRequest{
		Contents: []geminiContent{
			{Role: "user", Parts: []geminiPart{{Text: userText}}},
		},
		GenerationConfig: &geminiGenerationConfig{
			Temperature:     params.Temperature,
			MaxOutputTokens: params.MaxOutputTokens,
		},
	}
	if strings.TrimSpace(systemText) != "" {
		reqBody.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: systemText}},
		}
	}
	if storeID := strings.TrimSpace(params.RetrievalStoreID); storeID != "" {
		reqBody.Tools = []geminiTool{
			{FileSearch: &geminiFileSearch{FileSearchStoreNames: []string{storeID}}},
		}
	}
	// The key travels in a header, not the query string: transport errors
	// quote the full URL and those end up in logs.
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, normalizeModel(params.Model))

	return withRetry(ctx, params.Timeout, func(callCtx context.Context) (string, error) {
		var resp geminiGenerateResponse
		if err := c.doJSON(callCtx, url, reqBody, &resp); err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 {
			return "", nil
		}
		var texts []string
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.Text != "" {
				texts = append(texts, part.Text)
			}
		}
		return strings.TrimSpace(strings.Join(texts, "\n")), nil
	})
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	return strings.TrimPrefix(model, "models/")
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp geminiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return &apiError{status: resp.StatusCode, message: errResp.Error.Message}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiFileSearch struct {
	FileSearchStoreNames []string `json:"fileSearchStoreNames"`
}

type geminiTool struct {
	FileSearch *geminiFileSearch `json:"fileSearch,omitempty"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
	Tools             []geminiTool            `json:"tools,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
