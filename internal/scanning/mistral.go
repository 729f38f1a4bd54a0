package scanning

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

// Mistral implements the Scanner interface using the Mistral chat completions API
type Mistral struct {
	baseURL      string
	apiKey       string
	model        string
	instructions Instructions
	client       *http.Client
}

// NewMistral creates a new Mistral Scanner instance. A zero timeout leaves the
// call bounded only by the request context.
func NewMistral(baseURL, apiKey, modelName string, instructions Instructions, timeout time.Duration) (*Mistral, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("mistral api key is required")
	}
	if baseURL == "" {
		baseURL = "https://api.mistral.ai"
	}
	if modelName == "" {
		modelName = "mistral-small-latest"
	}

	return &Mistral{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		model:        modelName,
		instructions: instructions,
		client:       &http.Client{Timeout: timeout},
	}, nil
}

// mistralChatRequest represents the request body for Mistral's chat API
type mistralChatRequest struct {
	Model          string                 `json:"model"`
	Messages       []mistralMessage       `json:"messages"`
	ResponseFormat *mistralResponseFormat `json:"response_format,omitempty"`
}

type mistralMessage struct {
	Role    string           `json:"role"`
	Content []mistralContent `json:"content"`
}

type mistralContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

type mistralResponseFormat struct {
	Type string `json:"type"`
}

// mistralChatResponse represents the response from Mistral's chat API
type mistralChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// buildRequest lays out the prompt and image according to the instructions
func (m *Mistral) buildRequest(base64Image string) mistralChatRequest {
	image := mistralContent{Type: "image_url", ImageURL: jpegDataURI(base64Image)}

	var messages []mistralMessage
	switch m.instructions.Mode {
	case PromptSingle:
		messages = []mistralMessage{
			{
				Role:    "user",
				Content: []mistralContent{{Type: "text", Text: m.instructions.combined()}, image},
			},
		}
	default:
		messages = []mistralMessage{
			{
				Role:    "system",
				Content: []mistralContent{{Type: "text", Text: m.instructions.System}},
			},
			{
				Role:    "user",
				Content: []mistralContent{{Type: "text", Text: m.instructions.User}, image},
			},
		}
	}

	req := mistralChatRequest{
		Model:    m.model,
		Messages: messages,
	}
	if m.instructions.Format == FormatJSONObject {
		req.ResponseFormat = &mistralResponseFormat{Type: string(FormatJSONObject)}
	}
	return req
}

// ScanReceipt sends the receipt to Mistral and parses the extracted articles
func (m *Mistral) ScanReceipt(ctx context.Context, base64Image string) (*Result, error) {
	jsonData, err := json.Marshal(m.buildRequest(base64Image))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/chat/completions", m.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling mistral API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &APIError{Provider: "mistral", StatusCode: resp.StatusCode, Body: body}
	}

	var chatResp mistralChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in mistral response")
	}

	result, err := parseResult(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}

	return result, nil
}

// Close closes the Mistral client (no-op for HTTP client)
func (m *Mistral) Close() error {
	return nil
}
