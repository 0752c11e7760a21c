package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ImageGenerator 单次文生图调用，返回 data URI
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (string, error)
}

// ImageTool 为单条帖子生成配图
type ImageTool struct {
	gen ImageGenerator
}

type ImageToolArgs struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
}

type ImageToolResp struct {
	Image string `json:"image"`
}

func NewImageTool(gen ImageGenerator) *ImageTool {
	return &ImageTool{gen: gen}
}

func (t *ImageTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"prompt":       {Type: schema.String, Required: true, Desc: "图片提示词"},
		"aspect_ratio": {Type: schema.String, Required: false, Desc: "宽高比，默认16:9"},
	}
	return &schema.ToolInfo{
		Name:        "post_image_generate",
		Desc:        "为一条社交媒体帖子生成一张配图",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

func (t *ImageTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args ImageToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", err
	}
	if args.Prompt == "" {
		return "", errors.New("prompt required")
	}
	if args.AspectRatio == "" {
		args.AspectRatio = "16:9"
	}
	img, err := t.gen.GenerateImage(ctx, args.Prompt, args.AspectRatio)
	if err != nil {
		return "", err
	}
	if img == "" {
		return "", errors.New("empty image")
	}
	b, err := json.Marshal(ImageToolResp{Image: img})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

var _ einotool.InvokableTool = (*ImageTool)(nil)
