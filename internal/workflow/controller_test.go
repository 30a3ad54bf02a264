package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lora-studio/internal/codec"
	"lora-studio/internal/dataset"
	"lora-studio/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateCall struct {
	prompt string
	base   string
}

// fakeGenerator 依次返回预设结果；gate 非空时每次调用先等待放行
type fakeGenerator struct {
	mu      sync.Mutex
	calls   []generateCall
	results [][]string
	errs    []error
	gate    chan struct{}
	started chan struct{}
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, base codec.File) ([]string, error) {
	g.mu.Lock()
	n := len(g.calls)
	name := ""
	if f, ok := base.(dataset.File); ok {
		name = f.Name
	}
	g.calls = append(g.calls, generateCall{prompt: prompt, base: name})
	started, gate := g.started, g.gate
	g.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	if n < len(g.errs) && g.errs[n] != nil {
		return nil, g.errs[n]
	}
	if n < len(g.results) {
		return g.results[n], nil
	}
	return nil, nil
}

func (g *fakeGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

func waitSettled(t *testing.T, c *Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func fourImages() []string {
	return []string{"data:image/png;base64,MQ==", "data:image/png;base64,Mg==", "data:image/png;base64,Mw==", "data:image/png;base64,NA=="}
}

func toResults(t *testing.T, gen *fakeGenerator) *Controller {
	t.Helper()
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	waitSettled(t, c)
	require.Equal(t, Results, c.Snapshot().State)
	return c
}

func TestControllerHappyPath(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{fourImages()}}
	c := NewController(gen, WithRevealDelay(20*time.Millisecond))

	snap := c.SelectDataset([]dataset.File{imgA})
	assert.Equal(t, Configuring, snap.State)
	assert.Equal(t, []string{"imgA.png"}, snap.Dataset)

	cfg := training.DefaultConfig()
	cfg.TriggerWords = "ohwx style"
	cfg.SamplePrompt = ""
	snap = c.SubmitConfig(context.Background(), cfg)
	assert.Equal(t, Training, snap.State)
	require.NotNil(t, snap.Progress)
	assert.Equal(t, training.ProgressSteps[0], snap.Progress.Step)

	waitSettled(t, c)

	snap = c.Snapshot()
	assert.Equal(t, Results, snap.State)
	require.NotNil(t, snap.Result)
	assert.Len(t, snap.Result.SampleImages, 4)
	assert.Equal(t, "Fast", snap.Result.ModelName)
	assert.Nil(t, snap.Progress)
	assert.False(t, snap.Generating)

	require.Equal(t, 1, gen.callCount())
	assert.Equal(t, generateCall{
		prompt: "cinematic photo of a ohwx style character, epic fantasy, high detail, masterpiece",
		base:   "imgA.png",
	}, gen.calls[0])
}

func TestControllerHoldsTrainingUntilRevealDelay(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{fourImages()}}
	c := NewController(gen, WithRevealDelay(time.Hour))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())

	require.Eventually(t, func() bool {
		return c.Snapshot().Result != nil
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, Training, c.Snapshot().State)

	// 重置会取消展示延迟，后台任务随即结束
	c.Reset()
	waitSettled(t, c)
	assert.Equal(t, Uploading, c.Snapshot().State)
}

func TestControllerGenerationFailure(t *testing.T) {
	gen := &fakeGenerator{errs: []error{errors.New("Failed to generate images. The image and/or prompt may have been blocked or an API error occurred.")}}
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	waitSettled(t, c)

	snap := c.Snapshot()
	assert.Equal(t, Configuring, snap.State)
	assert.True(t, len(snap.Error) > 0)
	assert.Regexp(t, `^Failed to generate sample images\.`, snap.Error)
	assert.Nil(t, snap.Result)
}

func TestControllerZeroImages(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{{}}}
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	waitSettled(t, c)

	snap := c.Snapshot()
	assert.Equal(t, Configuring, snap.State)
	assert.Contains(t, snap.Error, "did not return any images")

	// 修改配置后可以重新提交
	gen.mu.Lock()
	gen.results = append(gen.results, fourImages())
	gen.mu.Unlock()
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	waitSettled(t, c)
	assert.Equal(t, Results, c.Snapshot().State)
	assert.Empty(t, c.Snapshot().Error)
}

func TestControllerSubmitIgnoresCallerCancellation(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{fourImages()}, gate: make(chan struct{})}
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})

	ctx, cancel := context.WithCancel(context.Background())
	c.SubmitConfig(ctx, training.DefaultConfig())
	cancel()
	close(gen.gate)

	waitSettled(t, c)
	assert.Equal(t, Results, c.Snapshot().State)
}

func TestControllerResetDiscardsInFlightGeneration(t *testing.T) {
	gen := &fakeGenerator{
		results: [][]string{fourImages()},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	<-gen.started

	snap := c.Reset()
	assert.Equal(t, Uploading, snap.State)

	close(gen.gate)
	waitSettled(t, c)

	snap = c.Snapshot()
	assert.Equal(t, Uploading, snap.State)
	assert.Nil(t, snap.Result)
	assert.Empty(t, snap.Dataset)
}

func TestControllerResetIsIdempotent(t *testing.T) {
	c := toResults(t, &fakeGenerator{results: [][]string{fourImages()}})

	first := c.Reset()
	second := c.Reset()
	for _, snap := range []Snapshot{first, second} {
		assert.Equal(t, Uploading, snap.State)
		assert.Empty(t, snap.Dataset)
		assert.Equal(t, training.DefaultConfig(), snap.Config)
		assert.Nil(t, snap.Result)
		assert.Empty(t, snap.Error)
	}
}

func TestControllerBackKeepsDataset(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(gen)
	c.SelectDataset([]dataset.File{imgA})

	snap := c.Back()
	assert.Equal(t, Uploading, snap.State)
	assert.Equal(t, []string{"imgA.png"}, snap.Dataset)

	// 已有图片时，Uploading 状态下提交配置不做任何处理
	snap = c.SubmitConfig(context.Background(), training.DefaultConfig())
	assert.Equal(t, Uploading, snap.State)
	assert.Empty(t, snap.Error)
	assert.Zero(t, gen.callCount())
}

func TestControllerSubmitWithoutDataset(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(gen, WithRevealDelay(0))

	snap := c.SubmitConfig(context.Background(), training.DefaultConfig())
	waitSettled(t, c)

	assert.Equal(t, Uploading, snap.State)
	assert.Equal(t, "No images were selected for training.", snap.Error)
	assert.Equal(t, snap, c.Snapshot())
	assert.Zero(t, gen.callCount())

	// 选择图片后可以继续
	snap = c.SelectDataset([]dataset.File{imgA})
	assert.Equal(t, Configuring, snap.State)
}

func TestControllerWaitWhenIdle(t *testing.T) {
	c := NewController(&fakeGenerator{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Wait(ctx))
}

func TestControllerWaitCoversWorkStartedBeforeIt(t *testing.T) {
	gen := &fakeGenerator{
		results: [][]string{fourImages()},
		gate:    make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	c := NewController(gen, WithRevealDelay(0))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())
	<-gen.started

	done := make(chan error, 1)
	go func() { done <- c.Wait(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("Wait returned while generation was in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(gen.gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after generation finished")
	}
	assert.Equal(t, Results, c.Snapshot().State)
}

// Wait 与提交、重置并发调用
func TestControllerWaitConcurrentWithDispatch(t *testing.T) {
	gen := &fakeGenerator{}
	c := NewController(gen, WithRevealDelay(time.Millisecond))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.SelectDataset([]dataset.File{imgA})
			c.SubmitConfig(context.Background(), training.DefaultConfig())
			c.Reset()
		}()
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			assert.NoError(t, c.Wait(ctx))
		}()
	}
	wg.Wait()

	waitSettled(t, c)
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Zero(t, c.pending)
}

func TestControllerGenerateMorePrepends(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{{"a", "b"}, {"x", "y"}}}
	c := toResults(t, gen)

	images, err := c.GenerateMore(context.Background(), "at night")
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, images)

	snap := c.Snapshot()
	assert.Equal(t, Results, snap.State)
	assert.Equal(t, []string{"x", "y", "a", "b"}, snap.Result.SampleImages)
	assert.False(t, snap.Generating)
	assert.Equal(t, generateCall{prompt: "at night", base: "imgA.png"}, gen.calls[1])
}

func TestControllerGenerateMoreFailure(t *testing.T) {
	gen := &fakeGenerator{
		results: [][]string{{"a", "b"}},
		errs:    []error{nil, errors.New("service unavailable")},
	}
	c := toResults(t, gen)

	_, err := c.GenerateMore(context.Background(), "x")
	assert.EqualError(t, err, "Failed to generate more images. service unavailable")

	snap := c.Snapshot()
	assert.Equal(t, Results, snap.State)
	assert.Equal(t, "Failed to generate more images. service unavailable", snap.Error)
	assert.Equal(t, []string{"a", "b"}, snap.Result.SampleImages)
}

func TestControllerGenerateMoreZeroImages(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{{"a", "b"}, {}}}
	c := toResults(t, gen)

	_, err := c.GenerateMore(context.Background(), "x")
	assert.ErrorContains(t, err, "did not return any images")
	assert.Equal(t, []string{"a", "b"}, c.Snapshot().Result.SampleImages)
}

func TestControllerGenerateMoreBusy(t *testing.T) {
	gen := &fakeGenerator{results: [][]string{{"a"}, {"x"}}}
	c := toResults(t, gen)

	gen.mu.Lock()
	gen.gate = make(chan struct{})
	gen.started = make(chan struct{}, 1)
	gen.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		_, err := c.GenerateMore(context.Background(), "first")
		done <- err
	}()
	<-gen.started
	assert.True(t, c.Snapshot().Generating)

	before := c.Snapshot()
	_, err := c.GenerateMore(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, before, c.Snapshot())

	close(gen.gate)
	require.NoError(t, <-done)
	assert.Equal(t, []string{"x", "a"}, c.Snapshot().Result.SampleImages)
	assert.Equal(t, 2, gen.callCount())
}

func TestControllerGenerateMoreOutsideResults(t *testing.T) {
	c := NewController(&fakeGenerator{})
	_, err := c.GenerateMore(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotInResults)
	assert.Equal(t, Uploading, c.Snapshot().State)
}

func TestControllerSubscribe(t *testing.T) {
	c := NewController(&fakeGenerator{})
	updates, cancel := c.Subscribe()

	c.SelectDataset([]dataset.File{imgA})
	c.Back()

	// 只保留最新的一份
	snap := <-updates
	assert.Equal(t, Uploading, snap.State)
	assert.Equal(t, []string{"imgA.png"}, snap.Dataset)

	cancel()
	cancel()
	_, ok := <-updates
	assert.False(t, ok)

	c.Reset()
}

func TestControllerProgressAdvances(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}

	gen := &fakeGenerator{results: [][]string{fourImages()}, gate: make(chan struct{})}
	c := NewController(gen, WithRevealDelay(0), WithClock(clock))
	c.SelectDataset([]dataset.File{imgA})
	c.SubmitConfig(context.Background(), training.DefaultConfig())

	mu.Lock()
	now = now.Add(3 * time.Second)
	mu.Unlock()

	snap := c.Snapshot()
	require.NotNil(t, snap.Progress)
	assert.Equal(t, 25, snap.Progress.Percent)
	assert.Equal(t, training.ProgressSteps[2], snap.Progress.Step)

	close(gen.gate)
	waitSettled(t, c)
}
