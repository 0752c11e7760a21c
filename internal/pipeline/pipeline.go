// Package pipeline runs one generation request through
// Idle → Resolving → {Composing ∥ Advising} → Illustrating → Merged | Failed.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"threadpilot/internal/model"
)

// State 流水线状态
type State string

const (
	StateIdle         State = "idle"
	StateResolving    State = "resolving"
	StateComposing    State = "composing"
	StateAdvising     State = "advising"
	StateIllustrating State = "illustrating"
	StateMerged       State = "merged"
	StateFailed       State = "failed"
)

// States 按流转顺序列出全部状态
var States = []State{StateIdle, StateResolving, StateComposing, StateAdvising, StateIllustrating, StateMerged, StateFailed}

const (
	WarnOptimizationsUnavailable = "Could not generate optimization suggestions, but your thread is ready."
	WarnPlaceholderImages        = "Some images could not be generated; placeholder images were used."
)

type ContentResolver interface {
	Resolve(ctx context.Context, req model.GenerationRequest) (string, error)
}

type ThreadComposer interface {
	Compose(ctx context.Context, content string, platform model.Platform, style model.Style, threadLength int) ([]string, error)
}

// PostIllustrator 不返回错误，失败的配图已替换为占位图
type PostIllustrator interface {
	Illustrate(ctx context.Context, texts []string) *model.GeneratedThread
}

type OptimizationAdvisor interface {
	Advise(ctx context.Context, content string, platform model.Platform, audience string) (*model.OptimizationSuggestions, error)
}

// Pipeline 组件在进程内共享，每次 Run 的数据互不共享
type Pipeline struct {
	resolver    ContentResolver
	composer    ThreadComposer
	illustrator PostIllustrator
	advisor     OptimizationAdvisor
	logger      logrus.FieldLogger
	onState     func(State)
	hookMu      sync.Mutex
}

type Option func(*Pipeline)

func WithLogger(l logrus.FieldLogger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStateHook 每次状态变化时回调，调用是串行的
func WithStateHook(fn func(State)) Option {
	return func(p *Pipeline) { p.onState = fn }
}

func New(r ContentResolver, c ThreadComposer, il PostIllustrator, a OptimizationAdvisor, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:    r,
		composer:    c,
		illustrator: il,
		advisor:     a,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type run struct {
	p      *Pipeline
	logger logrus.FieldLogger
	start  time.Time
}

func (r *run) enter(s State) {
	r.logger.WithFields(logrus.Fields{
		"state":       s,
		"duration_ms": time.Since(r.start).Milliseconds(),
	}).Info("pipeline state")
	if r.p.onState == nil {
		return
	}
	r.p.hookMu.Lock()
	defer r.p.hookMu.Unlock()
	r.p.onState(s)
}

func (r *run) fail(err error) error {
	r.logger.WithError(err).Error("pipeline failed")
	r.enter(StateFailed)
	return err
}

// Run 执行一次生成。校验失败不发起任何外部调用；解析或线程生成失败时整体失败，
// 即使优化建议已经成功。合并点等待全部调用结束。
func (p *Pipeline) Run(ctx context.Context, req model.GenerationRequest) (*model.Result, error) {
	id := uuid.NewString()
	r := &run{
		p:      p,
		logger: p.logger.WithFields(logrus.Fields{"result_id": id, "platform": req.Platform}),
		start:  time.Now(),
	}

	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateResolving)
	content, err := p.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, r.fail(err)
	}

	r.enter(StateComposing)
	r.enter(StateAdvising)

	var (
		g      errgroup.Group
		thread *model.GeneratedThread
		opt    *model.OptimizationSuggestions
		optErr error
	)
	g.Go(func() error {
		texts, err := p.composer.Compose(ctx, content, req.Platform, req.Style, req.ThreadLength)
		if err != nil {
			if !model.IsGenerationError(err) {
				err = &model.GenerationError{Stage: "thread", Err: err}
			}
			return err
		}
		// 没有帖子就不是线程，无论组件是否报错
		if len(texts) == 0 {
			return &model.GenerationError{Stage: "thread", Err: model.ErrEmptyThread}
		}
		r.enter(StateIllustrating)
		thread = p.illustrator.Illustrate(ctx, texts)
		return nil
	})
	g.Go(func() error {
		opt, optErr = p.advisor.Advise(ctx, content, req.Platform, req.Audience())
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, r.fail(err)
	}

	warnings := []string{}
	if optErr != nil {
		r.logger.WithError(optErr).Warn("optimizations unavailable")
		opt = nil
		warnings = append(warnings, WarnOptimizationsUnavailable)
	}
	if thread.UsedPlaceholders() {
		r.logger.WithField("placeholders", thread.PlaceholderIndexes()).Warn("thread delivered with placeholder images")
		warnings = append(warnings, WarnPlaceholderImages)
	}
	if over := thread.OverLimit(req.Platform); len(over) > 0 {
		r.logger.WithField("posts", over).Info("posts over platform character budget")
	}

	result := &model.Result{
		ID:            id,
		Platform:      req.Platform,
		Style:         req.Style,
		Thread:        thread,
		Optimizations: opt,
		Warnings:      warnings,
		CreatedAt:     time.Now().UTC(),
	}
	r.enter(StateMerged)
	return result, nil
}
