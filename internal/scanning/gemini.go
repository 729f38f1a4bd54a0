package scanning

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements the Scanner interface using Google Gemini
type Gemini struct {
	client       *genai.Client
	model        *genai.GenerativeModel
	instructions Instructions
}

// NewGemini creates a new Gemini Scanner instance
func NewGemini(apiKey string, modelName string, instructions Instructions) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if modelName == "" {
		modelName = "gemini-2.5-pro"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return &Gemini{
		client:       client,
		model:        client.GenerativeModel(modelName),
		instructions: instructions,
	}, nil
}

// parts lays out the prompt and image. Gemini has no system role in a
// single GenerateContent call, so both modes become text parts.
func (g *Gemini) parts(pngData []byte) []genai.Part {
	parts := []genai.Part{genai.ImageData("png", pngData)}
	switch g.instructions.Mode {
	case PromptSingle:
		parts = append(parts, genai.Text(g.instructions.combined()))
	default:
		parts = append(parts, genai.Text(g.instructions.System), genai.Text(g.instructions.User))
	}
	return parts
}

// ScanReceipt decodes the image, normalizes it to PNG and asks Gemini for the articles
func (g *Gemini) ScanReceipt(ctx context.Context, base64Image string) (*Result, error) {
	imageData, err := DecodeImage(base64Image)
	if err != nil {
		return nil, err
	}

	// genai.ImageData expects just the format suffix, and everything is PNG after toPNG
	pngData, _, err := toPNG(imageData)
	if err != nil {
		return nil, err
	}

	resp, err := g.model.GenerateContent(ctx, g.parts(pngData)...)
	if err != nil {
		return nil, fmt.Errorf("generating content: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from gemini")
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	result, err := parseResult(responseText.String())
	if err != nil {
		return nil, fmt.Errorf("parsing receipt data: %w", err)
	}

	return result, nil
}

// Close closes the Gemini client
func (g *Gemini) Close() error {
	return g.client.Close()
}
