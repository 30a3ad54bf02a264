package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"lora-studio/common"
	"lora-studio/internal/dataset"
	"lora-studio/internal/training"
	"lora-studio/internal/workflow"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cast"
)

// Workflow 工具层用到的控制器能力
type Workflow interface {
	SelectDataset(files []dataset.File) workflow.Snapshot
	SubmitConfig(ctx context.Context, cfg training.Config) workflow.Snapshot
	Back() workflow.Snapshot
	GenerateMore(ctx context.Context, prompt string) ([]string, error)
	Reset() workflow.Snapshot
	Snapshot() workflow.Snapshot
}

// loraTools 把向导的每个用户操作暴露为一个 MCP tool
type loraTools struct {
	workflow Workflow
}

// RegisterLoraTools 注册 LoRA 训练向导的 MCP tools
func RegisterLoraTools(s *server.MCPServer, wf Workflow) error {
	if wf == nil {
		return fmt.Errorf("workflow controller is required")
	}
	t := &loraTools{workflow: wf}

	s.AddTool(mcp.NewTool(
		"lora_select_dataset",
		mcp.WithDescription("Select the training images. Accepts local file paths, http(s) URLs or data URIs. The first image is used as the base image for sample generation."),
		mcp.WithArray("images",
			mcp.Required(),
			mcp.Description("Image references in dataset order"),
			mcp.Items(map[string]any{"type": "string"}),
		),
		mcp.WithString("source",
			mcp.Description("How the files were provided: 'picker' keeps every file, 'drop' keeps only image/* files"),
			mcp.Enum("picker", "drop"),
			mcp.DefaultString("picker"),
		),
	), t.selectDataset)

	s.AddTool(mcp.NewTool(
		"lora_submit_config",
		mcp.WithDescription("Submit the training configuration and start training. Fields not given keep their current values. Returns immediately; poll lora_get_state for progress and results."),
		mcp.WithObject("fields",
			mcp.Description("Configuration fields keyed by name (see lora_config_options). Values are coerced from their string form."),
		),
		mcp.WithBoolean("random_seed",
			mcp.Description("Replace the seed with a random value before submitting"),
			mcp.DefaultBool(false),
		),
	), t.submitConfig)

	s.AddTool(mcp.NewTool(
		"lora_back",
		mcp.WithDescription("Go back from the configuration step to the upload step."),
	), t.back)

	s.AddTool(mcp.NewTool(
		"lora_generate_more",
		mcp.WithDescription("Generate another batch of sample images from the results step. New images are placed before the existing ones."),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Theme for the new sample images"),
		),
	), t.generateMore)

	s.AddTool(mcp.NewTool(
		"lora_reset",
		mcp.WithDescription("Start over: clear the dataset, configuration, results and errors."),
	), t.reset)

	s.AddTool(mcp.NewTool(
		"lora_get_state",
		mcp.WithDescription("Get the current wizard state, including training progress and sample images."),
	), t.getState)

	s.AddTool(mcp.NewTool(
		"lora_config_options",
		mcp.WithDescription("List the configuration fields, their default values and the allowed options."),
	), t.configOptions)

	return nil
}

func (t *loraTools) selectDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	refs, err := req.RequireStringSlice("images")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("images parameter is required: %v", err)), nil
	}

	files := make([]dataset.File, 0, len(refs))
	for _, ref := range refs {
		f, err := dataset.Load(ctx, ref)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to load image: %v", err)), nil
		}
		files = append(files, f)
	}

	switch source := req.GetString("source", "picker"); source {
	case "picker":
		files = dataset.FromPicker(files)
	case "drop":
		files = dataset.FromDrop(files)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported source: %s", source)), nil
	}

	common.WithField("count", len(files)).Debug("Dataset selected")
	return snapshotResult(t.workflow.SelectDataset(files))
}

func (t *loraTools) submitConfig(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := t.workflow.Snapshot().Config

	if raw, ok := req.GetArguments()["fields"]; ok && raw != nil {
		fields, err := cast.ToStringMapStringE(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("fields must be an object: %v", err)), nil
		}
		if err := training.ApplyFields(&cfg, fields); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}
	if req.GetBool("random_seed", false) {
		cfg.Seed = training.RandomSeed()
	}

	return snapshotResult(t.workflow.SubmitConfig(ctx, cfg))
}

func (t *loraTools) back(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return snapshotResult(t.workflow.Back())
}

func (t *loraTools) generateMore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("prompt parameter is required: %v", err)), nil
	}

	images, err := t.workflow.GenerateMore(ctx, prompt)
	if err != nil {
		if errors.Is(err, workflow.ErrBusy) {
			return mcp.NewToolResultError("a batch of sample images is already being generated"), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"images": images,
		"state":  t.workflow.Snapshot(),
	})
}

func (t *loraTools) reset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return snapshotResult(t.workflow.Reset())
}

func (t *loraTools) getState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return snapshotResult(t.workflow.Snapshot())
}

// configOptions 返回表单需要的全部选项
func (t *loraTools) configOptions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{
		"fields":           training.FieldNames(),
		"defaults":         training.DefaultConfig(),
		"modelThemes":      training.ModelThemes,
		"baseModels":       training.BaseModels,
		"networkModules":   training.NetworkModules,
		"resolutions":      training.Resolutions,
		"clipSkips":        training.ClipSkips,
		"lrSchedulers":     training.LRSchedulers,
		"optimizers":       training.Optimizers,
		"samplers":         training.Samplers,
		"sampleImageSizes": training.SampleImageSizes,
	})
}

func snapshotResult(snap workflow.Snapshot) (*mcp.CallToolResult, error) {
	return jsonResult(snap)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
