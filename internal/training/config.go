package training

// 可选项列表，供展示层渲染下拉框
var (
	BaseModels       = []string{"Flux.1 (Dev-fp8)", "Flux.1-sde", "Flux.1-dev"}
	NetworkModules   = []string{"LoRA"}
	Resolutions      = []string{"1024x1024", "768x1024", "1024x768"}
	ClipSkips        = []string{"1", "2", "3"}
	LRSchedulers     = []string{"constant", "cosine", "linear"}
	Optimizers       = []string{"AdamW8bit", "AdamW", "SGD"}
	Samplers         = []string{"euler", "euler_a", "dpm++"}
	SampleImageSizes = []string{"768x1024", "1024x1024", "1024x768"}
)

// ModelTheme 模型主题及其预览图
type ModelTheme struct {
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

var ModelThemes = []ModelTheme{
	{Name: "Fast", ImageURL: "https://placehold.co/150x200/0d0f1e/7e8aff.png?text=Flux"},
	{Name: "Anime", ImageURL: "https://placehold.co/150x200/2a2a32/ff9e8a.png?text=Anime"},
	{Name: "Realistic", ImageURL: "https://placehold.co/150x200/3c3836/e8d8c4.png?text=Realistic"},
	{Name: "2.5D", ImageURL: "https://placehold.co/150x200/1e293b/a7f3d0.png?text=2.5D"},
	{Name: "Standard", ImageURL: "https://placehold.co/150x200/1e1b4b/6d28d9.png?text=SD3"},
}

// Config 一次训练提交的全部参数，提交后整体替换，不做取值校验
type Config struct {
	ModelTheme    string `json:"modelTheme"`
	BaseModel     string `json:"baseModel"`
	NetworkModule string `json:"networkModule"`
	TriggerWords  string `json:"triggerWords"`

	// 图像处理参数
	Repeat           float64 `json:"repeat"`
	Epoch            float64 `json:"epoch"`
	SaveEveryNEpochs float64 `json:"saveEveryNEpochs"`
	Resolution       string  `json:"resolution"`

	// 训练参数
	Seed                      float64 `json:"seed"`
	ClipSkip                  string  `json:"clipSkip"`
	TextEncoderLearningRate   string  `json:"textEncoderLearningRate"`
	UnetLearningRate          string  `json:"unetLearningRate"`
	LRScheduler               string  `json:"lrScheduler"`
	LRSchedulerNumCycles      float64 `json:"lrSchedulerNumCycles"`
	NumWarmupSteps            float64 `json:"numWarmupSteps"`
	Optimizer                 string  `json:"optimizer"`
	NetworkDim                float64 `json:"networkDim"`
	NetworkAlpha              float64 `json:"networkAlpha"`
	GradientAccumulationSteps float64 `json:"gradientAccumulationSteps"`

	// 标签参数
	ShuffleCaption bool    `json:"shuffleCaption"`
	KeepNTokens    float64 `json:"keepNTokens"`

	// 高级参数
	NoiseOffset             float64 `json:"noiseOffset"`
	MultiresNoiseDiscount   float64 `json:"multiresNoiseDiscount"`
	MultiresNoiseIterations float64 `json:"multiresNoiseIterations"`
	ConvDim                 float64 `json:"convDim"`
	ConvAlpha               float64 `json:"convAlpha"`

	// 样图设置
	SamplePrompt    string `json:"samplePrompt"`
	SampleImageSize string `json:"sampleImageSize"`
	SampleSampler   string `json:"sampleSampler"`
}

// DefaultConfig 返回默认训练参数
func DefaultConfig() Config {
	return Config{
		ModelTheme:    "Fast",
		BaseModel:     BaseModels[0],
		NetworkModule: NetworkModules[0],
		TriggerWords:  "",

		Repeat:           20,
		Epoch:            10,
		SaveEveryNEpochs: 1,
		Resolution:       Resolutions[0],

		Seed:                      0,
		ClipSkip:                  ClipSkips[0],
		TextEncoderLearningRate:   "0.00001",
		UnetLearningRate:          "0.0001",
		LRScheduler:               LRSchedulers[0],
		LRSchedulerNumCycles:      1,
		NumWarmupSteps:            0,
		Optimizer:                 Optimizers[0],
		NetworkDim:                64,
		NetworkAlpha:              32,
		GradientAccumulationSteps: 1,

		ShuffleCaption: false,
		KeepNTokens:    0,

		NoiseOffset:             0.03,
		MultiresNoiseDiscount:   0.1,
		MultiresNoiseIterations: 10,
		ConvDim:                 0,
		ConvAlpha:               0,

		SamplePrompt:    "1girl",
		SampleImageSize: SampleImageSizes[0],
		SampleSampler:   Samplers[0],
	}
}

// EffectivePrompt 返回生成样图时使用的提示词，未填写时根据触发词拼出默认提示词
func (c Config) EffectivePrompt() string {
	if c.SamplePrompt != "" {
		return c.SamplePrompt
	}
	return "cinematic photo of a " + c.TriggerWords + " character, epic fantasy, high detail, masterpiece"
}
