package gemini

import (
	"fmt"

	"lora-studio/common"
	"lora-studio/internal/oss"
)

// NewGeminiClientFromConfig 从配置创建 Gemini 样图生成客户端。
// 图片格式为 url 时必须提供 uploader。
func NewGeminiClientFromConfig(cfg *common.Config, uploader oss.Uploader) (*Client, error) {
	if cfg.UploadEnabled() && uploader == nil {
		return nil, fmt.Errorf("OSS uploader is required when image format is 'url'")
	}

	client, err := NewClient(Config{
		APIKey:      cfg.GenAIAPIKey,
		BaseURL:     cfg.GenAIBaseURL,
		ModelName:   cfg.GenAIModelName,
		ImageFormat: cfg.GenAIImageFormat,
		Uploader:    uploader,
		Timeout:     cfg.GenAITimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return client, nil
}
