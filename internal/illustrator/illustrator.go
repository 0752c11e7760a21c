// Package illustrator requests one image per post concurrently and never
// fails: a failed image becomes the placeholder for that post only.
package illustrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"threadpilot/internal/model"
	"threadpilot/internal/tools"
)

const (
	// AspectRatio 配图固定宽高比
	AspectRatio = "16:9"

	promptPrefix = "Generate an image for a social media post with the following content: "
)

// Illustrator 帖子配图，一条帖子一次调用，彼此独立
type Illustrator struct {
	tool   einotool.InvokableTool
	logger logrus.FieldLogger
}

// New tool 通常是 tools.ImageTool
func New(tool einotool.InvokableTool, logger logrus.FieldLogger) *Illustrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Illustrator{tool: tool, logger: logger}
}

// Prompt 单条帖子的图片提示词，帖子正文原样拼接
func Prompt(text string) string {
	return promptPrefix + text
}

// Illustrate 等待全部图片调用结束后按下标合并，结果顺序与 texts 一致。
func (il *Illustrator) Illustrate(ctx context.Context, texts []string) *model.GeneratedThread {
	posts := make([]model.Post, len(texts))

	// 不使用 WithContext：单个失败不能取消其它调用
	var g errgroup.Group
	for i, text := range texts {
		g.Go(func() error {
			start := time.Now()
			img, err := il.generate(ctx, text)
			entry := il.logger.WithFields(logrus.Fields{
				"post_index":  i,
				"duration_ms": time.Since(start).Milliseconds(),
			})
			posts[i] = model.Post{Text: text}
			if err != nil {
				entry.WithError(err).Warn("image generation failed, using placeholder")
				posts[i].Image = model.PlaceholderImage
				posts[i].IsPlaceholder = true
				return nil
			}
			entry.Debug("image generated")
			posts[i].Image = img
			return nil
		})
	}
	_ = g.Wait()

	return model.NewGeneratedThread(posts)
}

func (il *Illustrator) generate(ctx context.Context, text string) (img string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image call panicked: %v", r)
		}
	}()
	if il.tool == nil {
		return "", errors.New("image tool not configured")
	}

	args, err := json.Marshal(tools.ImageToolArgs{Prompt: Prompt(text), AspectRatio: AspectRatio})
	if err != nil {
		return "", err
	}
	out, err := il.tool.InvokableRun(ctx, string(args))
	if err != nil {
		return "", err
	}
	var resp tools.ImageToolResp
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		return "", fmt.Errorf("decode image tool output: %w", err)
	}
	if resp.Image == "" {
		return "", errors.New("image tool returned no image")
	}
	return resp.Image, nil
}
