package llm

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// DeepSeekService calls DeepSeek's chat completions endpoint
type DeepSeekService struct {
	client
	config ProviderConfig
}

func NewDeepSeekService(cfg ProviderConfig) *DeepSeekService {
	return &DeepSeekService{
		client: newClient(DeepSeek, cfg),
		config: cfg,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
}

type chatResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (s *DeepSeekService) Name() string { return DeepSeek }

// GenerateResponse sends prompt as a single user message
func (s *DeepSeekService) GenerateResponse(ctx context.Context, prompt string) (string, error) {
	reqBody := chatRequest{
		Model:       s.config.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxOutputTokens,
		TopP:        s.config.TopP,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.config.APIKey)

	body, err := s.post(ctx, s.config.Endpoint, header, reqBody, deepSeekErrorDetail)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &ResponseFormatError{Provider: DeepSeek, Detail: err.Error()}
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message == nil || resp.Choices[0].Message.Content == nil {
		return "", &ResponseFormatError{Provider: DeepSeek, Detail: "missing choices[0].message.content"}
	}
	return *resp.Choices[0].Message.Content, nil
}

func deepSeekErrorDetail(body []byte) (string, error) {
	env, err := decodeAPIError(body)
	if err != nil {
		return "", err
	}
	typ := "unknown"
	if env.Error.Type != nil {
		typ = *env.Error.Type
	}
	return fmt.Sprintf("%s (type: %s)", env.message(), typ), nil
}
