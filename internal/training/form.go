package training

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/spf13/cast"
)

var ErrUnknownField = errors.New("unknown training config field")

type fieldSetter func(c *Config, value string)

func stringField(set func(c *Config, v string)) fieldSetter {
	return set
}

// 数值输入：空串或非法数字一律按 0 处理
func numberField(set func(c *Config, v float64)) fieldSetter {
	return func(c *Config, value string) {
		set(c, cast.ToFloat64(strings.TrimSpace(value)))
	}
}

func boolField(set func(c *Config, v bool)) fieldSetter {
	return func(c *Config, value string) {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "on", "yes", "checked":
			set(c, true)
		default:
			set(c, cast.ToBool(strings.TrimSpace(value)))
		}
	}
}

var fieldSetters = map[string]fieldSetter{
	"modelTheme":    stringField(func(c *Config, v string) { c.ModelTheme = v }),
	"baseModel":     stringField(func(c *Config, v string) { c.BaseModel = v }),
	"networkModule": stringField(func(c *Config, v string) { c.NetworkModule = v }),
	"triggerWords":  stringField(func(c *Config, v string) { c.TriggerWords = v }),

	"repeat":           numberField(func(c *Config, v float64) { c.Repeat = v }),
	"epoch":            numberField(func(c *Config, v float64) { c.Epoch = v }),
	"saveEveryNEpochs": numberField(func(c *Config, v float64) { c.SaveEveryNEpochs = v }),
	"resolution":       stringField(func(c *Config, v string) { c.Resolution = v }),

	"seed":                      numberField(func(c *Config, v float64) { c.Seed = v }),
	"clipSkip":                  stringField(func(c *Config, v string) { c.ClipSkip = v }),
	"textEncoderLearningRate":   stringField(func(c *Config, v string) { c.TextEncoderLearningRate = v }),
	"unetLearningRate":          stringField(func(c *Config, v string) { c.UnetLearningRate = v }),
	"lrScheduler":               stringField(func(c *Config, v string) { c.LRScheduler = v }),
	"lrSchedulerNumCycles":      numberField(func(c *Config, v float64) { c.LRSchedulerNumCycles = v }),
	"numWarmupSteps":            numberField(func(c *Config, v float64) { c.NumWarmupSteps = v }),
	"optimizer":                 stringField(func(c *Config, v string) { c.Optimizer = v }),
	"networkDim":                numberField(func(c *Config, v float64) { c.NetworkDim = v }),
	"networkAlpha":              numberField(func(c *Config, v float64) { c.NetworkAlpha = v }),
	"gradientAccumulationSteps": numberField(func(c *Config, v float64) { c.GradientAccumulationSteps = v }),

	"shuffleCaption": boolField(func(c *Config, v bool) { c.ShuffleCaption = v }),
	"keepNTokens":    numberField(func(c *Config, v float64) { c.KeepNTokens = v }),

	"noiseOffset":             numberField(func(c *Config, v float64) { c.NoiseOffset = v }),
	"multiresNoiseDiscount":   numberField(func(c *Config, v float64) { c.MultiresNoiseDiscount = v }),
	"multiresNoiseIterations": numberField(func(c *Config, v float64) { c.MultiresNoiseIterations = v }),
	"convDim":                 numberField(func(c *Config, v float64) { c.ConvDim = v }),
	"convAlpha":               numberField(func(c *Config, v float64) { c.ConvAlpha = v }),

	"samplePrompt":    stringField(func(c *Config, v string) { c.SamplePrompt = v }),
	"sampleImageSize": stringField(func(c *Config, v string) { c.SampleImageSize = v }),
	"sampleSampler":   stringField(func(c *Config, v string) { c.SampleSampler = v }),
}

// ApplyField 把表单中的单个字段写入配置
func ApplyField(c *Config, name, value string) error {
	set, ok := fieldSetters[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	set(c, value)
	return nil
}

// ApplyFields 按字段名顺序写入，遇到未知字段立即返回错误
func ApplyFields(c *Config, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := ApplyField(c, name, fields[name]); err != nil {
			return err
		}
	}
	return nil
}

// FieldNames 返回所有可编辑字段名（已排序）
func FieldNames() []string {
	names := make([]string, 0, len(fieldSetters))
	for name := range fieldSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RandomSeed 随机种子，范围 [0, 1000000)
func RandomSeed() float64 {
	return float64(rand.Intn(1000000))
}
