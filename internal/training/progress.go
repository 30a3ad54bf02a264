package training

import "time"

const (
	progressTick = 120 * time.Millisecond
	stepTick     = 1500 * time.Millisecond
)

// ProgressSteps 训练进度页轮播的提示文案
var ProgressSteps = []string{
	"Initializing training environment...",
	"Loading dataset into memory...",
	"Compiling model architecture...",
	"Starting epoch 1/10...",
	"Optimizing... loss: 0.1234",
	"Epoch 5/10 complete...",
	"Calculating validation accuracy...",
	"Almost there... finalizing layers...",
	"Generating sample images...",
}

// Progress 根据训练已进行的时长计算模拟进度（百分比）和当前提示文案。
// 进度每 120ms 增加 1，封顶 100；文案每 1.5s 前进一条，停在最后一条。
func Progress(elapsed time.Duration) (int, string) {
	if elapsed < 0 {
		elapsed = 0
	}

	percent := int(elapsed / progressTick)
	if percent > 100 {
		percent = 100
	}

	step := int(elapsed / stepTick)
	if step >= len(ProgressSteps) {
		step = len(ProgressSteps) - 1
	}

	return percent, ProgressSteps[step]
}
