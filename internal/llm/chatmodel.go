package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Settings selects and configures one chat or image provider.
type Settings struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

// NewChatModel returns the chat model for s.Provider. The result holds no
// per-request state and is shared by every pipeline run.
func NewChatModel(ctx context.Context, s Settings) (model.BaseChatModel, error) {
	switch s.Provider {
	case "ark":
		if s.HTTPClient == nil {
			s.HTTPClient = &http.Client{}
		}
		cfg := &ark.ChatModelConfig{
			APIKey:     s.APIKey,
			HTTPClient: s.HTTPClient,
			Model:      s.Model,
		}
		if s.BaseURL != "" {
			cfg.BaseURL = strings.TrimRight(s.BaseURL, "/") + "/api/v3"
		}
		chatModel, err := ark.NewChatModel(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		return chatModel, nil
	case "openai":
		return NewOpenAIChatModel(s)
	case "mock":
		return MockChatModel{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", s.Provider)
	}
}
