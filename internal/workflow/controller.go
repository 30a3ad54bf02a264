package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"lora-studio/common"
	"lora-studio/internal/codec"
	"lora-studio/internal/dataset"
	"lora-studio/internal/training"
)

// DefaultRevealDelay 生成成功后停留在训练页的时间
const DefaultRevealDelay = 2 * time.Second

var (
	// ErrBusy 已有一批“生成更多”请求在途
	ErrBusy = errors.New("a generation request is already in progress")
	// ErrNotInResults 只有结果页才能继续生成
	ErrNotInResults = errors.New("more images can only be generated from the results step")
)

// Generator 样图生成能力，由 gemini.Client 实现
type Generator interface {
	Generate(ctx context.Context, prompt string, base codec.File) ([]string, error)
}

// Controller 串行应用事件并执行副作用，是状态和数据的唯一持有者
type Controller struct {
	mu    sync.Mutex
	model Model
	gen   Generator

	revealDelay time.Duration
	revealTimer *time.Timer
	now         func() time.Time

	// 在途的后台任务数（首次生成和展示延迟），归零时关闭 idle
	pending int
	idle    chan struct{}

	subscribers map[int]chan Snapshot
	nextSubID   int
}

// Option 控制器选项
type Option func(*Controller)

// WithRevealDelay 设置展示延迟，0 表示立即进入结果页
func WithRevealDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.revealDelay = d
		}
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// NewController 创建处于 Uploading 状态的控制器
func NewController(gen Generator, opts ...Option) *Controller {
	c := &Controller{
		model:       InitialModel(),
		gen:         gen,
		revealDelay: DefaultRevealDelay,
		now:         time.Now,
		subscribers: make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SelectDataset 选择训练图片，空列表不做任何处理
func (c *Controller) SelectDataset(files []dataset.File) Snapshot {
	snap, _ := c.dispatch(Event{Kind: DatasetSelected, Files: files})
	return snap
}

// SubmitConfig 提交训练配置。进入 Training 后立即返回，生成在后台进行，
// 调用方取消 ctx 不会中断生成。
func (c *Controller) SubmitConfig(ctx context.Context, cfg training.Config) Snapshot {
	snap, _ := c.dispatchWith(context.WithoutCancel(ctx), Event{Kind: ConfigSubmitted, Config: cfg})
	return snap
}

// Back 从配置页返回上传页
func (c *Controller) Back() Snapshot {
	snap, _ := c.dispatch(Event{Kind: Back})
	return snap
}

// Reset 回到初始状态，取消待执行的展示延迟，在途请求的结果会被丢弃
func (c *Controller) Reset() Snapshot {
	snap, _ := c.dispatch(Event{Kind: Reset})
	return snap
}

// GenerateMore 以数据集第一张图为参考再生成一批样图，阻塞直到整批结束，
// 成功时返回新生成的图片。
func (c *Controller) GenerateMore(ctx context.Context, prompt string) ([]string, error) {
	snap, effects := c.dispatch(Event{Kind: GenerateMoreRequested, Prompt: prompt})

	var effect *Effect
	for i := range effects {
		if effects[i].Kind == GenerateMore {
			effect = &effects[i]
		}
	}
	if effect == nil {
		switch {
		case snap.State != Results:
			return nil, ErrNotInResults
		case snap.Error != "":
			return nil, errors.New(snap.Error)
		default:
			return nil, ErrBusy
		}
	}

	images, err := c.gen.Generate(context.WithoutCancel(ctx), effect.Prompt, effect.Base)
	if err != nil {
		c.dispatch(Event{Kind: MoreFailed, Run: effect.Run, Err: err})
		return nil, errors.New(prefixGenerateMore + errMessage(err))
	}

	c.dispatch(Event{Kind: MoreGenerated, Run: effect.Run, Images: images})
	if len(images) == 0 {
		return nil, errors.New(prefixGenerateMore + MsgNoImagesReturned)
	}
	return images, nil
}

// Snapshot 返回当前状态的只读副本
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return newSnapshot(c.model, c.now())
}

// Wait 等待后台任务（首次生成和展示延迟）结束。
// 可以和其他操作并发调用，等待期间新启动的任务也会被等待。
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe 订阅状态变化。订阅者消费过慢时旧快照会被丢弃，只保留最新的一份。
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSubID
	c.nextSubID++
	ch := make(chan Snapshot, 1)
	c.subscribers[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subscribers, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (c *Controller) dispatch(ev Event) (Snapshot, []Effect) {
	return c.dispatchWith(context.Background(), ev)
}

// dispatchWith 在锁内完成迁移并启动后台副作用，GenerateMore 副作用交给调用方执行
func (c *Controller) dispatchWith(ctx context.Context, ev Event) (Snapshot, []Effect) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	ev.At = now
	prev := c.model
	next, effects := Transition(prev, ev)
	c.model = next

	if prev.State != next.State {
		common.WithFields(map[string]interface{}{
			"event": ev.Kind.String(),
			"from":  prev.State.String(),
			"to":    next.State.String(),
		}).Info("Workflow state changed")
	}
	if next.Error != "" && next.Error != prev.Error {
		common.WithField("event", ev.Kind.String()).Warn(next.Error)
	}

	var deferred []Effect
	for _, effect := range effects {
		switch effect.Kind {
		case StartGeneration:
			c.startGeneration(ctx, effect)
		case ScheduleReveal:
			c.scheduleReveal(effect.Run)
		case CancelReveal:
			c.cancelReveal()
		default:
			deferred = append(deferred, effect)
		}
	}

	snap := newSnapshot(next, now)
	c.notify(snap)
	return snap, deferred
}

// startGeneration 调用方需持有锁
func (c *Controller) startGeneration(ctx context.Context, effect Effect) {
	c.addPending()
	go func() {
		defer c.finishPending()

		images, err := c.gen.Generate(ctx, effect.Prompt, effect.Base)
		if err != nil {
			c.dispatch(Event{Kind: GenerationFailed, Run: effect.Run, Err: err})
			return
		}
		c.dispatch(Event{Kind: GenerationSucceeded, Run: effect.Run, Images: images})
	}()
}

// scheduleReveal 调用方需持有锁
func (c *Controller) scheduleReveal(run uint64) {
	c.cancelReveal()
	c.addPending()
	c.revealTimer = time.AfterFunc(c.revealDelay, func() {
		defer c.finishPending()
		c.dispatch(Event{Kind: RevealElapsed, Run: run})
	})
}

// cancelReveal 调用方需持有锁
func (c *Controller) cancelReveal() {
	if c.revealTimer == nil {
		return
	}
	if c.revealTimer.Stop() {
		c.donePending()
	}
	c.revealTimer = nil
}

// addPending 调用方需持有锁
func (c *Controller) addPending() {
	if c.pending == 0 {
		c.idle = make(chan struct{})
	}
	c.pending++
}

// donePending 调用方需持有锁
func (c *Controller) donePending() {
	c.pending--
	if c.pending == 0 {
		close(c.idle)
	}
}

func (c *Controller) finishPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.donePending()
}

// notify 调用方需持有锁
func (c *Controller) notify(snap Snapshot) {
	for _, ch := range c.subscribers {
		select {
		case ch <- snap:
		default:
			// 丢弃未消费的旧快照
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
