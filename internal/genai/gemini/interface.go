package gemini

import (
	"context"

	"google.golang.org/genai"
)

// ContentGenerator Gemini GenerateContent 接口，*genai.Models 满足该接口
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}
