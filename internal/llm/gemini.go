package llm

import (
	"context"
	"fmt"
	"net/url"

	"github.com/goccy/go-json"
)

// GeminiService calls Google's generateContent endpoint
type GeminiService struct {
	client
	config ProviderConfig
}

func NewGeminiService(cfg ProviderConfig) *GeminiService {
	return &GeminiService{
		client: newClient(Gemini, cfg),
		config: cfg,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content *struct {
			Parts []struct {
				Text *string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiService) Name() string { return Gemini }

// GenerateResponse sends prompt as a single user turn
func (s *GeminiService) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     s.config.Temperature,
			TopK:            s.config.TopK,
			TopP:            s.config.TopP,
			MaxOutputTokens: s.config.MaxOutputTokens,
		},
	}

	endpoint := s.config.Endpoint + "?key=" + url.QueryEscape(s.config.APIKey)
	body, err := s.post(ctx, endpoint, nil, reqBody, geminiErrorDetail)
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ResponseFormatError{Provider: Gemini, Detail: err.Error()}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0].Text == nil {
		return "", &ResponseFormatError{Provider: Gemini, Detail: "missing candidates[0].content.parts[0].text"}
	}
	return *resp.Candidates[0].Content.Parts[0].Text, nil
}

func geminiErrorDetail(body []byte) (string, error) {
	env, err := decodeAPIError(body)
	if err != nil {
		return "", err
	}
	code := any("unknown")
	if env.Error.Code != nil {
		code = env.Error.Code
	}
	return fmt.Sprintf("%s (code: %v)", env.message(), code), nil
}
