package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	// DefaultGeminiEndpoint is the Generative Language API base URL.
	DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultGeminiModel is used when GEMINI_MODEL is unset.
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiProvider translates text through the Gemini generateContent API. The
// API key travels per request: it is resolved through the coordinator at
// translation time, never stored on the provider.
type GeminiProvider struct {
	endpoint string
	model    string
	client   *http.Client
}

// NewGeminiProviderFromEnv builds a Gemini provider from env vars.
//   - GEMINI_ENDPOINT (default: https://generativelanguage.googleapis.com/v1beta)
//   - GEMINI_MODEL (default: gemini-2.0-flash)
func NewGeminiProviderFromEnv() *GeminiProvider {
	return NewGeminiProvider(os.Getenv("GEMINI_ENDPOINT"), os.Getenv("GEMINI_MODEL"))
}

// NewGeminiProvider builds a Gemini provider for the given endpoint/model.
func NewGeminiProvider(endpoint, model string) *GeminiProvider {
	trimmedEndpoint := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if trimmedEndpoint == "" {
		trimmedEndpoint = DefaultGeminiEndpoint
	}
	trimmedModel := strings.TrimSpace(model)
	if trimmedModel == "" {
		trimmedModel = DefaultGeminiModel
	}
	return &GeminiProvider{
		endpoint: trimmedEndpoint,
		model:    trimmedModel,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

// ModelName returns the configured model identifier.
func (p *GeminiProvider) ModelName() string {
	if p == nil {
		return ""
	}
	return p.model
}

func (p *GeminiProvider) SupportedLanguages() []string {
	return SupportedLanguageCodes()
}

func (p *GeminiProvider) Translate(ctx context.Context, req TranslateRequest) (*TranslateResponse, error) {
	if p == nil {
		return nil, fmt.Errorf("gemini provider is nil")
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, fmt.Errorf("text is required")
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	targetLang := NormalizeLangCode(req.TargetLang)
	if targetLang == "" {
		return nil, fmt.Errorf("target language is required")
	}

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		prompt = ExpandTemplate("Translate the following text to {language}.", targetLang)
	}

	body, err := json.Marshal(geminiGenerateRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: prompt + "\n\n" + text}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal translation request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.endpoint, url.PathEscape(p.model), url.QueryEscape(apiKey))

	started := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build translation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send translation request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read translation response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errPayload geminiErrorResponse
		if unmarshalErr := json.Unmarshal(respBody, &errPayload); unmarshalErr == nil {
			if msg := strings.TrimSpace(errPayload.Error.Message); msg != "" {
				return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, msg)
			}
		}
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("decode translation response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("translation response missing candidates")
	}

	translated := strings.TrimSpace(parsed.Candidates[0].Content.Parts[0].Text)
	if translated == "" {
		return nil, fmt.Errorf("translation response was empty")
	}

	return &TranslateResponse{
		Text:         translated,
		TargetLang:   targetLang,
		ProviderName: p.Name(),
		LatencyMs:    time.Since(started).Milliseconds(),
	}, nil
}

type geminiGenerateRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type geminiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
