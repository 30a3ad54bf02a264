package workflow

import (
	"time"

	"lora-studio/internal/dataset"
	"lora-studio/internal/training"
)

// Snapshot 控制器状态的只读副本，供展示层渲染
type Snapshot struct {
	State      State           `json:"state"`
	Dataset    []string        `json:"dataset"`
	Config     training.Config `json:"config"`
	Result     *Result         `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Generating bool            `json:"generating"`
	// Progress 仅在 Training 状态下有值
	Progress *Progress `json:"progress,omitempty"`
}

// Progress 模拟的训练进度
type Progress struct {
	Percent   int       `json:"percent"`
	Step      string    `json:"step"`
	StartedAt time.Time `json:"startedAt"`
}

func newSnapshot(m Model, now time.Time) Snapshot {
	snap := Snapshot{
		State:      m.State,
		Dataset:    dataset.Names(m.Dataset),
		Config:     m.Config,
		Error:      m.Error,
		Generating: m.Generating,
	}
	if m.Result != nil {
		snap.Result = &Result{
			ModelName:    m.Result.ModelName,
			SampleImages: append([]string(nil), m.Result.SampleImages...),
		}
	}
	if m.State == Training {
		percent, step := training.Progress(now.Sub(m.TrainingStarted))
		snap.Progress = &Progress{
			Percent:   percent,
			Step:      step,
			StartedAt: m.TrainingStarted,
		}
	}
	return snap
}
