package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

var lengthPattern = regexp.MustCompile(`(?i)thread length:\s*(\d+)`)

// MockChatModel answers with canned JSON shaped after the prompt it receives,
// for local runs without a provider key.
type MockChatModel struct{}

func (MockChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	var system, user string
	for _, m := range input {
		switch m.Role {
		case schema.System:
			system = m.Content
		case schema.User:
			user = m.Content
		}
	}
	lower := strings.ToLower(system)

	var payload any
	switch {
	case strings.Contains(lower, "posting times"):
		day := time.Now().UTC().Truncate(24 * time.Hour)
		payload = map[string]any{
			"suggestedPostTimes": []string{
				day.Add(24*time.Hour + 9*time.Hour).Format(time.RFC3339),
				day.Add(48*time.Hour + 12*time.Hour + 30*time.Minute).Format(time.RFC3339),
				day.Add(72*time.Hour + 17*time.Hour).Format(time.RFC3339),
			},
			"reasoning": "Mock reasoning: weekday mornings, lunch breaks and early evenings get the most engagement.",
		}
	case strings.Contains(lower, "opening hook"):
		payload = map[string]any{"hook": "Most people get this wrong. Here is what actually works:"}
	default:
		n := 7
		if m := lengthPattern.FindStringSubmatch(user); len(m) == 2 {
			if v, err := strconv.Atoi(m[1]); err == nil && v > 0 {
				n = v
			}
		}
		posts := make([]string, n)
		for i := range posts {
			posts[i] = fmt.Sprintf("Mock post %d of %d. In the next post we keep going.", i+1, n)
		}
		payload = map[string]any{"thread": posts}
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return schema.AssistantMessage(string(b), nil), nil
}

func (m MockChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}
