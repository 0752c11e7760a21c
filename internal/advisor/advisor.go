// Package advisor produces the opening hook and posting-time suggestions.
// Its output is advisory: the pipeline delivers the thread without it.
package advisor

import (
	"context"
	"errors"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"threadpilot/internal/llm"
	"threadpilot/internal/model"
)

// FallbackReasoning 发布时间建议失败时的固定说明
const FallbackReasoning = "Could not generate posting time suggestions due to a temporary issue with the AI model. Please try again later."

const hookSystem = `You are an expert social media thread writer.
Given the thread content, write one compelling opening hook that captures the reader's attention immediately.
Respond with a JSON object {"hook": "..."} and nothing else.`

const hookUser = `Thread content:
{{.content}}`

const timesSystem = `You are an expert social media manager. Analyze the thread and suggest the three best posting times to maximize engagement, taking the target audience and platform into account.
Give every time as an ISO 8601 timestamp (e.g. 2024-01-01T10:00:00Z) and briefly explain your reasoning.
Respond with a JSON object {"suggestedPostTimes": ["..."], "reasoning": "..."} and nothing else.`

const timesUser = `Thread content:
{{.content}}

Target audience: {{.audience}}
Platform: {{.platform}}`

// PostingTimes 发布时间建议
type PostingTimes struct {
	SuggestedPostTimes []string `json:"suggestedPostTimes"`
	Reasoning          string   `json:"reasoning"`
}

// Advisor 两个子调用互相独立，共用同一个模型
type Advisor struct {
	hook   *llm.JSONChain
	times  *llm.JSONChain
	logger logrus.FieldLogger
}

func New(ctx context.Context, cm einomodel.BaseChatModel, logger logrus.FieldLogger) (*Advisor, error) {
	hook, err := llm.NewJSONChain(ctx, cm, hookSystem, hookUser)
	if err != nil {
		return nil, err
	}
	times, err := llm.NewJSONChain(ctx, cm, timesSystem, timesUser)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Advisor{hook: hook, times: times, logger: logger}, nil
}

// Hook 生成开篇钩子，失败返回 GenerationError
func (a *Advisor) Hook(ctx context.Context, content string) (string, error) {
	var out struct {
		Hook string `json:"hook"`
	}
	if err := a.hook.Decode(ctx, map[string]any{"content": content}, &out); err != nil {
		return "", &model.GenerationError{Stage: "hook", Err: err}
	}
	hook := strings.TrimSpace(out.Hook)
	if hook == "" {
		return "", &model.GenerationError{Stage: "hook", Err: errors.New("model returned an empty hook")}
	}
	return hook, nil
}

// isoLayouts 模型常见的 ISO 8601 写法：带或不带秒、带或不带时区
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// isISOTime 判断是否为可识别的 ISO 8601 日期时间
func isISOTime(ts string) bool {
	for _, layout := range isoLayouts {
		if _, err := time.Parse(layout, ts); err == nil {
			return true
		}
	}
	return false
}

// PostingTimes 从不返回错误：失败时给出空列表和固定说明。
// 时间按模型原样返回，只丢弃空值和无法识别为日期时间的条目；
// 全部被丢弃时说明也换成固定文案。
func (a *Advisor) PostingTimes(ctx context.Context, content string, platform model.Platform, audience string) PostingTimes {
	if strings.TrimSpace(audience) == "" {
		audience = model.DefaultAudience
	}
	var out PostingTimes
	err := a.times.Decode(ctx, map[string]any{
		"content":  content,
		"audience": audience,
		"platform": string(platform),
	}, &out)
	if err != nil {
		a.logger.WithError(err).WithField("platform", platform).Warn("posting time suggestion failed, using fallback")
		return PostingTimes{SuggestedPostTimes: []string{}, Reasoning: FallbackReasoning}
	}

	times := make([]string, 0, len(out.SuggestedPostTimes))
	for _, ts := range out.SuggestedPostTimes {
		ts = strings.TrimSpace(ts)
		if ts == "" || !isISOTime(ts) {
			a.logger.WithField("timestamp", ts).Warn("dropping malformed posting time")
			continue
		}
		times = append(times, ts)
	}
	if len(times) == 0 && len(out.SuggestedPostTimes) > 0 {
		return PostingTimes{SuggestedPostTimes: times, Reasoning: FallbackReasoning}
	}
	return PostingTimes{SuggestedPostTimes: times, Reasoning: strings.TrimSpace(out.Reasoning)}
}

// Advise 并发执行两个子调用并等待二者结束。钩子失败时返回 GenerationError，
// 调用方将其视为“优化建议不可用”。
func (a *Advisor) Advise(ctx context.Context, content string, platform model.Platform, audience string) (*model.OptimizationSuggestions, error) {
	var (
		g     errgroup.Group
		hook  string
		times PostingTimes
	)
	g.Go(func() error {
		var err error
		hook, err = a.Hook(ctx, content)
		return err
	})
	g.Go(func() error {
		times = a.PostingTimes(ctx, content, platform, audience)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &model.OptimizationSuggestions{
		Hook:               hook,
		SuggestedPostTimes: times.SuggestedPostTimes,
		Reasoning:          times.Reasoning,
	}, nil
}
