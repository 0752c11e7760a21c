// Package llm builds the chat models and prompt chains shared by the
// composer and the advisor.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
)

// ErrEmptyResponse is returned when the model answers with no content.
var ErrEmptyResponse = errors.New("empty model response")

// JSONChain is a Go-template prompt piped into a chat model, compiled once
// and safe for concurrent use.
type JSONChain struct {
	runnable compose.Runnable[map[string]any, *schema.Message]
}

// NewJSONChain compiles system/user templates (text/template syntax, e.g.
// {{.content}}) in front of cm.
func NewJSONChain(ctx context.Context, cm model.BaseChatModel, system, user string) (*JSONChain, error) {
	if cm == nil {
		return nil, errors.New("chat model is required")
	}
	tpl := prompt.FromMessages(schema.GoTemplate,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl).AppendChatModel(cm)
	r, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chain: %w", err)
	}
	return &JSONChain{runnable: r}, nil
}

// Text runs the chain and returns the raw assistant content.
func (c *JSONChain) Text(ctx context.Context, vars map[string]any) (string, error) {
	msg, err := c.runnable.Invoke(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("chain invocation failed: %w", err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", ErrEmptyResponse
	}
	return msg.Content, nil
}

// Decode runs the chain and unmarshals the JSON found in the answer into out.
func (c *JSONChain) Decode(ctx context.Context, vars map[string]any, out any) error {
	content, err := c.Text(ctx, vars)
	if err != nil {
		return err
	}
	cleaned := ExtractJSON(content)
	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("failed to unmarshal model output: %w, raw: %s", err, clip(cleaned, 300))
	}
	return nil
}

// ExtractJSON strips markdown code fences and any prose around the first
// JSON object or array in raw.
func ExtractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```JSON")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
