package main

import (
	"fmt"
	"os"

	"lora-studio/common"
	"lora-studio/internal/inject"
	"lora-studio/internal/tools"
	"lora-studio/internal/workflow"

	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

func main() {
	if err := run(server.ServeStdio); err != nil {
		common.Error(err)
		os.Exit(1)
	}
}

// run 组装并启动服务，返回后所有注册的服务都已关闭
func run(serve func(s *server.MCPServer, opts ...server.StdioOption) error) error {
	// 加载配置，缺少 API Key 时直接返回
	config, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// 打印配置信息（隐藏敏感信息）
	common.Info("Server starting...")
	common.Infof("GenAI Base URL: %s", config.GenAIBaseURL)
	common.Infof("GenAI Model: %s", config.GenAIModelName)
	common.Infof("Image Format: %s", config.GenAIImageFormat)
	common.Infof("API Key: %s", maskAPIKey(config.GenAIAPIKey))

	injector := inject.Setup(config)
	defer func() {
		if shutdownErr := injector.Shutdown(); shutdownErr != nil {
			common.WithError(shutdownErr).Warn("Failed to shut down services")
		}
	}()

	controller, err := do.Invoke[*workflow.Controller](injector)
	if err != nil {
		return fmt.Errorf("failed to create workflow controller: %w", err)
	}

	// 创建 MCP 服务器
	s := server.NewMCPServer(
		"LoRA Studio",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	// 注册向导 tools
	if err := tools.RegisterLoraTools(s, controller); err != nil {
		return fmt.Errorf("failed to register LoRA tools: %w", err)
	}

	common.Info("LoRA Studio MCP server ready on stdio")

	// 启动 stdio 服务器
	if err := serve(s); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// maskAPIKey 隐藏 API Key 的敏感部分
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}
