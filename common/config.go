package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 默认使用的 Gemini 图片模型
const DefaultGenAIModelName = "gemini-2.5-flash-image-preview"

// Config 应用配置结构
type Config struct {
	// Gemini 配置
	GenAIBaseURL   string
	GenAIAPIKey    string
	GenAIModelName string
	// 图片输出格式: base64 或 url
	GenAIImageFormat string
	// GenAI 请求超时时间（秒）
	GenAITimeoutSeconds int

	// 训练完成后进入结果页前的展示延迟（毫秒）
	RevealDelayMillis int

	// OSS 配置
	OSSEndpoint  string
	OSSRegion    string
	OSSAccessKey string
	OSSSecretKey string
	OSSBucket    string

	// 日志配置
	LogLevel  string // 日志级别: debug, info, warn, error
	LogFormat string // 日志格式: json, text
	LogOutput string // 输出位置: stdout, stderr, file
	LogFile   string // 日志文件路径（当 LogOutput 为 file 时）
}

// LoadConfig 从 .env 文件加载配置
func LoadConfig() (*Config, error) {
	// 加载 .env 文件（如果存在）
	if err := godotenv.Load(); err != nil {
		// 日志尚未初始化，默认写 stderr，不会污染 MCP 的 stdout
		Warn(".env file not found, using environment variables")
	}

	config := &Config{
		GenAIBaseURL:        getEnv("GENAI_BASE_URL", ""),
		GenAIAPIKey:         getEnv("GENAI_API_KEY", getEnv("API_KEY", "")),
		GenAIModelName:      getEnv("GENAI_MODEL_NAME", DefaultGenAIModelName),
		GenAIImageFormat:    getEnv("GENAI_IMAGE_FORMAT", "base64"),
		GenAITimeoutSeconds: getEnvInt("GENAI_TIMEOUT_SECONDS", 60),
		RevealDelayMillis:   getEnvInt("TRAINING_REVEAL_DELAY_MS", 2000),
		// OSS 配置
		OSSEndpoint:  getEnv("OSS_ENDPOINT", ""),
		OSSRegion:    getEnv("OSS_REGION", "us-east-1"),
		OSSAccessKey: getEnv("OSS_ACCESS_KEY", ""),
		OSSSecretKey: getEnv("OSS_SECRET_KEY", ""),
		OSSBucket:    getEnv("OSS_BUCKET", ""),
		// 日志配置
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogOutput: getEnv("LOG_OUTPUT", "stderr"),
		LogFile:   getEnv("LOG_FILE", ""),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	// 初始化日志系统
	logConfig := &LogConfig{
		Level:    config.LogLevel,
		Format:   config.LogFormat,
		Output:   config.LogOutput,
		FilePath: config.LogFile,
	}
	if err := InitLogger(logConfig); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return config, nil
}

// Validate 校验必需的配置，缺少 API Key 属于启动期致命错误
func (c *Config) Validate() error {
	if c.GenAIAPIKey == "" {
		return fmt.Errorf("GENAI_API_KEY (or API_KEY) environment variable not set")
	}

	switch strings.ToLower(c.GenAIImageFormat) {
	case "base64":
	case "url":
		if c.OSSBucket == "" {
			return fmt.Errorf("OSS_BUCKET is required when GENAI_IMAGE_FORMAT=url")
		}
	default:
		return fmt.Errorf("unsupported GENAI_IMAGE_FORMAT: %s", c.GenAIImageFormat)
	}

	if c.RevealDelayMillis < 0 {
		return fmt.Errorf("TRAINING_REVEAL_DELAY_MS must not be negative")
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整型环境变量
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if i, err := strconv.Atoi(value); err == nil {
		return i
	}
	return defaultValue
}

// UploadEnabled 当图片输出格式为 url 时需要把样图上传到 OSS
func (c *Config) UploadEnabled() bool {
	return strings.EqualFold(c.GenAIImageFormat, "url")
}

// GenAITimeout 返回单次 GenAI 请求的超时时间
func (c *Config) GenAITimeout() time.Duration {
	return time.Duration(c.GenAITimeoutSeconds) * time.Second
}

// RevealDelay 返回训练结果的展示延迟
func (c *Config) RevealDelay() time.Duration {
	return time.Duration(c.RevealDelayMillis) * time.Millisecond
}
