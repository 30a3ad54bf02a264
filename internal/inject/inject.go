package inject

import (
	"fmt"

	"lora-studio/common"
	"lora-studio/internal/genai/gemini"
	"lora-studio/internal/oss"
	"lora-studio/internal/workflow"

	"github.com/samber/do"
)

// Setup 按配置组装各组件：OSS 上传、Gemini 客户端和向导控制器
func Setup(cfg *common.Config) *do.Injector {
	injector := do.NewWithOpts(&do.InjectorOpts{
		Logf: func(format string, args ...any) {
			common.Debug(fmt.Sprintf(format, args...))
		},
	})

	do.ProvideValue[*common.Config](injector, cfg)

	// 只有图片格式为 url 时才需要 OSS
	do.Provide[oss.Uploader](injector, func(i *do.Injector) (oss.Uploader, error) {
		cfg := do.MustInvoke[*common.Config](i)
		if !cfg.UploadEnabled() {
			return nil, nil
		}
		return oss.NewUploaderFromConfig(cfg)
	})
	do.Provide[*gemini.Client](injector, func(i *do.Injector) (*gemini.Client, error) {
		uploader, err := do.Invoke[oss.Uploader](i)
		if err != nil {
			return nil, err
		}
		return gemini.NewGeminiClientFromConfig(do.MustInvoke[*common.Config](i), uploader)
	})
	do.Provide[workflow.Generator](injector, func(i *do.Injector) (workflow.Generator, error) {
		client, err := do.Invoke[*gemini.Client](i)
		if err != nil {
			return nil, err
		}
		return client, nil
	})
	do.Provide[*workflow.Controller](injector, func(i *do.Injector) (*workflow.Controller, error) {
		gen, err := do.Invoke[workflow.Generator](i)
		if err != nil {
			return nil, err
		}
		cfg := do.MustInvoke[*common.Config](i)
		return workflow.NewController(gen, workflow.WithRevealDelay(cfg.RevealDelay())), nil
	})

	return injector
}
