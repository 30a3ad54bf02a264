package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"lora-studio/common"
	"lora-studio/internal/codec"
	"lora-studio/internal/oss"
	"lora-studio/internal/utils"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// SampleCount 每批并发请求的样图数量
const SampleCount = 4

// 默认请求超时时间
const defaultGenAITimeout = 60 * time.Second

// ErrGenerationFailed 底层调用失败时对外统一返回的错误，不保留原始细节
var ErrGenerationFailed = errors.New("Failed to generate images. The image and/or prompt may have been blocked or an API error occurred.")

// Client Gemini 样图生成客户端
type Client struct {
	models      ContentGenerator
	model       string
	imageFormat string // 图片输出格式: "base64" 或 "url"
	uploader    oss.Uploader
	timeout     time.Duration
	now         func() time.Time
}

// Config Gemini 客户端配置
type Config struct {
	APIKey      string        // API Key
	BaseURL     string        // 自定义 Base URL，如果为空则使用默认值
	ModelName   string        // 模型名称，例如：gemini-2.5-flash-image-preview
	ImageFormat string        // 图片输出格式: "base64" 或 "url"
	Uploader    oss.Uploader  // 图片格式为 url 时用于上传样图
	Timeout     time.Duration // 一批请求的超时时间
}

// NewClient 创建新的 Gemini 客户端，缺少 API Key 或模型名时直接失败
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return newClient(client.Models, cfg), nil
}

func newClient(models ContentGenerator, cfg Config) *Client {
	imageFormat := strings.ToLower(cfg.ImageFormat)
	if imageFormat == "" {
		imageFormat = "base64"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultGenAITimeout
	}

	return &Client{
		models:      models,
		model:       cfg.ModelName,
		imageFormat: imageFormat,
		uploader:    cfg.Uploader,
		timeout:     timeout,
		now:         time.Now,
	}
}

// Instruction 把用户提示词嵌入固定的指令模板
func Instruction(prompt string) string {
	return fmt.Sprintf("Generate a new image in a similar style and composition to the provided image, but incorporate this theme: \"%s\"", prompt)
}

// Generate 以 base 为参考图并发发起 SampleCount 个请求，返回成功提取到的样图（0 到 SampleCount 张）。
// 任一请求失败则整批失败，统一返回 ErrGenerationFailed。
func (c *Client) Generate(ctx context.Context, prompt string, base codec.File) ([]string, error) {
	log := common.WithFields(map[string]interface{}{
		"model":  c.model,
		"prompt": prompt,
	})
	log.Debug("Starting sample image generation")

	images, err := c.generate(ctx, prompt, base)
	if err != nil {
		log.WithError(err).Error("Error generating images with Gemini API")
		return nil, ErrGenerationFailed
	}

	if len(images) == 0 {
		log.Warn("Gemini API did not return any images for the prompts")
	} else {
		log.WithField("count", len(images)).Info("Sample images generated")
	}
	return images, nil
}

func (c *Client) generate(ctx context.Context, prompt string, base codec.File) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	payload, err := codec.Encode(ctx, base)
	if err != nil {
		return nil, fmt.Errorf("failed to encode base image: %w", err)
	}
	data, err := payload.Bytes()
	if err != nil {
		return nil, err
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{InlineData: &genai.Blob{Data: data, MIMEType: payload.MIMEType}},
				{Text: Instruction(prompt)},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
	}

	// 等待全部请求结束；任一失败则整批失败，但不会取消其余请求
	responses := make([]*genai.GenerateContentResponse, SampleCount)
	var group errgroup.Group
	for i := range responses {
		group.Go(func() error {
			resp, err := c.models.GenerateContent(ctx, c.model, contents, config)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return c.collect(ctx, responses)
}

// collect 按请求顺序从每个响应中至多取一张图片
func (c *Client) collect(ctx context.Context, responses []*genai.GenerateContentResponse) ([]string, error) {
	blobs := lo.FilterMap(responses, func(resp *genai.GenerateContentResponse, _ int) (*genai.Blob, bool) {
		return firstImage(resp)
	})

	images := make([]string, 0, len(blobs))
	for _, blob := range blobs {
		image, err := c.formatImage(ctx, blob)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, nil
}

// firstImage 按顺序扫描首个候选的内容，取第一张图片，忽略文本部分
func firstImage(resp *genai.GenerateContentResponse) (*genai.Blob, bool) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, false
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return nil, false
	}
	for _, part := range candidate.Content.Parts {
		if part != nil && part.InlineData != nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			return part.InlineData, true
		}
	}
	return nil, false
}

// formatImage 根据配置的图片格式返回 data URI 或上传后的 URL
func (c *Client) formatImage(ctx context.Context, blob *genai.Blob) (string, error) {
	if c.imageFormat == "url" {
		if c.uploader == nil {
			return "", fmt.Errorf("OSS is not configured but image format is set to 'url'")
		}
		key := utils.GenerateImageKey(blob.MIMEType, c.now())
		return c.uploader.Upload(ctx, key, blob.Data, blob.MIMEType)
	}
	return fmt.Sprintf("data:%s;base64,%s", blob.MIMEType, base64.StdEncoding.EncodeToString(blob.Data)), nil
}
