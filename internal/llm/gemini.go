package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var geminiModels = map[string]string{
	"gemini-flash": "gemini-2.5-flash",
	"gemini-pro":   "gemini-2.5-pro",
}

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Gemini completes prompts with the generateContent REST endpoint.
type Gemini struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	retry      retrier
}

func NewGemini(cfg Config) *Gemini {
	modelID := geminiModels[cfg.Model]
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		modelID = geminiModels["gemini-flash"]
	}
	base := cfg.BaseURL
	if base == "" {
		base = geminiBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Gemini{
		model:      modelID,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      newRetrier(ProviderGemini, cfg.MaxAttempts),
	}
}

func (g *Gemini) Name() string { return ProviderGemini + ":" + g.model }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *geminiGenCfg   `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenCfg struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMIMEType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	body := geminiRequest{
		GenerationConfig: &geminiGenCfg{
			Temperature:     req.Temperature,
			MaxOutputTokens: maxTokensOr(req.MaxTokens, 1024),
		},
	}
	system := req.System
	if req.Schema != nil {
		system = appendSchemaInstruction(system, req.Schema)
		body.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if system != "" {
		body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: system}}}
	}
	for _, m := range req.Messages {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		body.Contents = append(body.Contents, geminiContent{Role: role, Parts: []geminiPart{{Text: m.Content}}})
	}

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	return g.retry.do(ctx, func(ctx context.Context) (string, error) {
		return g.doRequest(ctx, bodyBytes)
	})
}

func (g *Gemini) doRequest(ctx context.Context, bodyBytes []byte) (string, error) {
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", retryable(0, fmt.Errorf("send request: %w", err))
	}
	defer res.Body.Close()

	if isRetryableStatus(res.StatusCode) {
		errBody, _ := io.ReadAll(res.Body)
		return "", retryable(res.StatusCode, fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(errBody)))
	}
	if res.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(res.Body)
		return "", &statusError{status: res.StatusCode, err: fmt.Errorf("Gemini API error (status %d): %s", res.StatusCode, string(errBody))}
	}

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var resp geminiResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("parse response: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}

	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		parts = append(parts, p.Text)
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}
