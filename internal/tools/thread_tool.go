package tools

import (
	"context"
	"encoding/json"
	"errors"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"threadpilot/internal/model"
)

// ThreadComposer 线程生成能力，由 composer.Composer 实现
type ThreadComposer interface {
	Compose(ctx context.Context, content string, platform model.Platform, style model.Style, threadLength int) ([]string, error)
}

// ThreadTool 实现eino框架的线程生成工具
type ThreadTool struct {
	composer ThreadComposer
}

// ThreadToolArgs 线程生成请求参数
type ThreadToolArgs struct {
	Content      string `json:"content"`
	Platform     string `json:"platform"`
	Style        string `json:"style"`
	ThreadLength int    `json:"thread_length"`
}

// ThreadToolResp 线程生成响应
type ThreadToolResp struct {
	Platform model.Platform `json:"platform"`
	Thread   []string       `json:"thread"`
	Count    int            `json:"count"`
}

// NewThreadTool 创建线程生成工具实例
func NewThreadTool(c ThreadComposer) *ThreadTool {
	return &ThreadTool{composer: c}
}

// Info 获取线程生成工具信息
func (t *ThreadTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := map[string]*schema.ParameterInfo{
		"content":       {Type: schema.String, Required: true, Desc: "源文本，50到15000字符"},
		"platform":      {Type: schema.String, Required: false, Desc: "Twitter或LinkedIn，默认Twitter", Enum: []string{"Twitter", "LinkedIn"}},
		"style":         {Type: schema.String, Required: false, Desc: "Professional/Casual/Storytelling/Educational，默认Professional"},
		"thread_length": {Type: schema.Integer, Required: false, Desc: "目标帖子数，5到15"},
	}
	return &schema.ToolInfo{
		Name:        "thread_compose",
		Desc:        "把一段长文本改写成社交媒体线程",
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun 执行线程生成。参数校验与主流程一致。
func (t *ThreadTool) InvokableRun(ctx context.Context, argumentsInJSON string, opts ...einotool.Option) (string, error) {
	var args ThreadToolArgs
	if err := json.Unmarshal([]byte(argumentsInJSON), &args); err != nil {
		return "", &model.ValidationError{Field: "arguments", Reason: err.Error()}
	}

	req := model.GenerationRequest{
		InputType:    model.InputText,
		Content:      args.Content,
		Platform:     model.PlatformTwitter,
		Style:        model.StyleProfessional,
		ThreadLength: args.ThreadLength,
	}
	if args.Platform != "" {
		p, err := model.ParsePlatform(args.Platform)
		if err != nil {
			return "", &model.ValidationError{Field: "platform", Reason: err.Error()}
		}
		req.Platform = p
	}
	if args.Style != "" {
		s, err := model.ParseStyle(args.Style)
		if err != nil {
			return "", &model.ValidationError{Field: "style", Reason: err.Error()}
		}
		req.Style = s
	}
	req = req.WithDefaults()
	if err := req.Validate(); err != nil {
		return "", err
	}
	if t.composer == nil {
		return "", errors.New("composer not configured")
	}

	posts, err := t.composer.Compose(ctx, req.Content, req.Platform, req.Style, req.ThreadLength)
	if err != nil {
		return "", err
	}

	b, err := json.Marshal(ThreadToolResp{Platform: req.Platform, Thread: posts, Count: len(posts)})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// 确保ThreadTool实现了einotool.InvokableTool接口
var _ einotool.InvokableTool = (*ThreadTool)(nil)
