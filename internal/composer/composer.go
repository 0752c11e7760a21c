// Package composer turns source text into an ordered list of post texts with
// a single chat-model call.
package composer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/sirupsen/logrus"

	"threadpilot/internal/llm"
	"threadpilot/internal/model"
)

// ErrEmptyThread 模型返回空线程或无法解析
var ErrEmptyThread = model.ErrEmptyThread

const systemPrompt = `You are an expert social media content creator writing threads for {{.platform}}.
Turn the provided text into a thread that:
1. Keeps narrative coherence from the first post to the last
2. Uses a {{.style}} tone throughout
3. Has about {{.thread_length}} posts
4. Keeps every post under {{.char_limit}} characters
5. Opens with a compelling post that grabs attention and closes with a strong conclusion
6. Adds natural thread connectors where appropriate (e.g. "In the next post...")
Break thoughts at natural points, never mid-sentence. Use emojis sparingly.
Respond with a JSON object of the form {"thread": ["first post", "second post", ...]} and nothing else.`

const userPrompt = `Text:
{{.content}}

Platform: {{.platform}}
Style: {{.style}}
Thread length: {{.thread_length}}`

// Composer 线程生成器，一次请求只调用一次模型，不重试
type Composer struct {
	chain  *llm.JSONChain
	logger logrus.FieldLogger
}

// New 编译提示词链
func New(ctx context.Context, cm einomodel.BaseChatModel, logger logrus.FieldLogger) (*Composer, error) {
	chain, err := llm.NewJSONChain(ctx, cm, systemPrompt, userPrompt)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Composer{chain: chain, logger: logger}, nil
}

// Compose 生成帖子文本。任何失败（调用失败、空结果、无法解析）都是 GenerationError。
// threadLength 只是给模型的目标，实际条数以模型返回为准。
func (c *Composer) Compose(ctx context.Context, content string, platform model.Platform, style model.Style, threadLength int) ([]string, error) {
	start := time.Now()
	raw, err := c.chain.Text(ctx, map[string]any{
		"content":       content,
		"platform":      string(platform),
		"style":         string(style),
		"thread_length": threadLength,
		"char_limit":    platform.CharLimit(),
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			err = ErrEmptyThread
		}
		return nil, &model.GenerationError{Stage: "thread", Err: err}
	}

	posts, err := ParseThread(raw)
	if err != nil {
		c.logger.WithError(err).Warn("unparseable thread output")
		return nil, &model.GenerationError{Stage: "thread", Err: ErrEmptyThread}
	}

	entry := c.logger.WithFields(logrus.Fields{
		"platform":    platform,
		"posts":       len(posts),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if len(posts) != threadLength {
		entry.Infof("thread length %d differs from requested %d", len(posts), threadLength)
	} else {
		entry.Debug("thread composed")
	}
	return posts, nil
}

// ParseThread accepts {"thread": [...]} (or "tweets"/"posts"), a bare array,
// and items that are strings or objects with a content/text field. Blank items
// are dropped; an empty result is ErrEmptyThread.
func ParseThread(raw string) ([]string, error) {
	cleaned := []byte(llm.ExtractJSON(raw))

	var items []json.RawMessage
	if err := json.Unmarshal(cleaned, &items); err != nil {
		var wrapped map[string]json.RawMessage
		if err2 := json.Unmarshal(cleaned, &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode thread: %w", err)
		}
		for _, key := range []string{"thread", "tweets", "posts"} {
			if v, ok := wrapped[key]; ok {
				if err := json.Unmarshal(v, &items); err != nil {
					return nil, fmt.Errorf("decode %s: %w", key, err)
				}
				break
			}
		}
	}

	posts := make([]string, 0, len(items))
	for _, it := range items {
		if text := itemText(it); text != "" {
			posts = append(posts, text)
		}
	}
	if len(posts) == 0 {
		return nil, ErrEmptyThread
	}
	return posts, nil
}

func itemText(it json.RawMessage) string {
	var s string
	if err := json.Unmarshal(it, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Content string `json:"content"`
		Text    string `json:"text"`
	}
	if err := json.Unmarshal(it, &obj); err != nil {
		return ""
	}
	if obj.Content != "" {
		return strings.TrimSpace(obj.Content)
	}
	return strings.TrimSpace(obj.Text)
}
