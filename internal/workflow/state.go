package workflow

import (
	"time"

	"lora-studio/internal/dataset"
	"lora-studio/internal/training"
)

// State 向导当前所处步骤
type State int

const (
	Uploading State = iota
	Configuring
	Training
	Results
)

func (s State) String() string {
	switch s {
	case Uploading:
		return "UPLOADING"
	case Configuring:
		return "CONFIGURING"
	case Training:
		return "TRAINING"
	case Results:
		return "RESULTS"
	default:
		return "UNKNOWN"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// 固定的错误文案
const (
	MsgNoImagesSelected = "No images were selected for training."
	MsgBaseImageMissing = "Base image for generation is missing. Please start over."
	MsgNoImagesReturned = "The model did not return any images. This could be due to a safety policy or an API issue."
	prefixSampleFailure = "Failed to generate sample images. "
	prefixGenerateMore  = "Failed to generate more images. "
)

// Result 训练结果：模型名和样图（data URI 或 URL），新图追加在最前面
type Result struct {
	ModelName    string   `json:"modelName"`
	SampleImages []string `json:"sampleImages"`
}

// Model 控制器持有的全部数据
type Model struct {
	State   State
	Dataset []dataset.File
	Config  training.Config
	Result  *Result
	Error   string

	// Generating 有生成请求在途
	Generating bool
	// TrainingStarted 进入 Training 的时间，用于计算模拟进度
	TrainingStarted time.Time
	// Run 每次开始训练或重置时递增，用于丢弃过期的异步回调
	Run uint64
}

// InitialModel 应用启动或重置后的数据
func InitialModel() Model {
	return Model{
		State:  Uploading,
		Config: training.DefaultConfig(),
	}
}

// EventKind 触发状态迁移的事件类型
type EventKind int

const (
	DatasetSelected EventKind = iota
	ConfigSubmitted
	Back
	GenerationSucceeded
	GenerationFailed
	RevealElapsed
	GenerateMoreRequested
	MoreGenerated
	MoreFailed
	Reset
)

func (k EventKind) String() string {
	return [...]string{
		"DatasetSelected",
		"ConfigSubmitted",
		"Back",
		"GenerationSucceeded",
		"GenerationFailed",
		"RevealElapsed",
		"GenerateMoreRequested",
		"MoreGenerated",
		"MoreFailed",
		"Reset",
	}[k]
}

// Event 一次输入，只有与 Kind 相关的字段有意义
type Event struct {
	Kind   EventKind
	Files  []dataset.File
	Config training.Config
	Prompt string
	Images []string
	Err    error
	// Run 异步回调所属的训练轮次
	Run uint64
	At  time.Time
}

// EffectKind 迁移产生的副作用类型
type EffectKind int

const (
	StartGeneration EffectKind = iota
	ScheduleReveal
	CancelReveal
	GenerateMore
)

// Effect 由控制器负责执行的副作用
type Effect struct {
	Kind   EffectKind
	Run    uint64
	Prompt string
	Base   dataset.File
}

// Transition 纯函数：根据当前数据和事件计算下一份数据以及需要执行的副作用。
// 表中未列出的 (状态, 事件) 组合原样返回，不产生副作用。
func Transition(m Model, ev Event) (Model, []Effect) {
	if ev.Kind == Reset {
		next := InitialModel()
		next.Run = m.Run + 1
		return next, []Effect{{Kind: CancelReveal, Run: m.Run}}
	}

	switch m.State {
	case Uploading:
		switch {
		case ev.Kind == DatasetSelected && len(ev.Files) > 0:
			m.Dataset = append([]dataset.File(nil), ev.Files...)
			m.State = Configuring
			return m, nil
		case ev.Kind == ConfigSubmitted && len(m.Dataset) == 0:
			// 未选择图片就提交，停留在上传页并提示
			m.Error = MsgNoImagesSelected
			return m, nil
		}

	case Configuring:
		switch ev.Kind {
		case ConfigSubmitted:
			if len(m.Dataset) == 0 {
				m.State = Uploading
				m.Error = MsgNoImagesSelected
				return m, nil
			}
			m.Config = ev.Config
			m.State = Training
			m.Error = ""
			m.Result = nil
			m.Generating = true
			m.TrainingStarted = ev.At
			m.Run++
			return m, []Effect{{
				Kind:   StartGeneration,
				Run:    m.Run,
				Prompt: ev.Config.EffectivePrompt(),
				Base:   m.Dataset[0],
			}}
		case Back:
			m.State = Uploading
			return m, nil
		}

	case Training:
		if ev.Run != m.Run {
			break
		}
		switch ev.Kind {
		case GenerationSucceeded:
			if len(ev.Images) == 0 {
				m.State = Configuring
				m.Generating = false
				m.Error = prefixSampleFailure + MsgNoImagesReturned
				return m, nil
			}
			m.Result = &Result{
				ModelName:    m.Config.ModelTheme,
				SampleImages: append([]string(nil), ev.Images...),
			}
			return m, []Effect{{Kind: ScheduleReveal, Run: m.Run}}
		case GenerationFailed:
			m.State = Configuring
			m.Generating = false
			m.Error = prefixSampleFailure + errMessage(ev.Err)
			return m, nil
		case RevealElapsed:
			if m.Result == nil {
				break
			}
			m.State = Results
			m.Generating = false
			return m, nil
		}

	case Results:
		switch ev.Kind {
		case GenerateMoreRequested:
			if m.Generating {
				break
			}
			if len(m.Dataset) == 0 {
				m.Error = MsgBaseImageMissing
				return m, nil
			}
			m.Generating = true
			m.Error = ""
			return m, []Effect{{
				Kind:   GenerateMore,
				Run:    m.Run,
				Prompt: ev.Prompt,
				Base:   m.Dataset[0],
			}}
		case MoreGenerated:
			if ev.Run != m.Run || !m.Generating {
				break
			}
			m.Generating = false
			if len(ev.Images) == 0 {
				m.Error = prefixGenerateMore + MsgNoImagesReturned
				return m, nil
			}
			m.Error = ""
			m.Result = prepend(m.Result, ev.Images)
			return m, nil
		case MoreFailed:
			if ev.Run != m.Run || !m.Generating {
				break
			}
			m.Generating = false
			m.Error = prefixGenerateMore + errMessage(ev.Err)
			return m, nil
		}
	}

	return m, nil
}

// prepend 新图放在前面，返回新的 Result，不修改原值
func prepend(r *Result, images []string) *Result {
	next := &Result{}
	var existing []string
	if r != nil {
		next.ModelName = r.ModelName
		existing = r.SampleImages
	}
	next.SampleImages = make([]string, 0, len(images)+len(existing))
	next.SampleImages = append(next.SampleImages, images...)
	next.SampleImages = append(next.SampleImages, existing...)
	return next
}

func errMessage(err error) string {
	if err == nil {
		return "An unknown error occurred."
	}
	return err.Error()
}
