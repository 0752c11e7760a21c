package llm

import (
	"context"
	"errors"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIChatModel adapts the openai-go chat completions API to eino's
// BaseChatModel so it can sit inside a compose chain.
type OpenAIChatModel struct {
	Model  string
	client openai.Client
}

func requestOptions(s Settings) ([]option.RequestOption, error) {
	if s.APIKey == "" {
		return nil, errors.New("openai api key missing; provide openai.api_key")
	}
	opts := []option.RequestOption{option.WithAPIKey(s.APIKey)}
	if s.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(s.BaseURL))
	}
	if s.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(s.HTTPClient))
	}
	return opts, nil
}

func NewOpenAIChatModel(s Settings) (*OpenAIChatModel, error) {
	if s.Model == "" {
		return nil, errors.New("llm model is required")
	}
	opts, err := requestOptions(s)
	if err != nil {
		return nil, err
	}
	return &OpenAIChatModel{Model: s.Model, client: openai.NewClient(opts...)}, nil
}

func (o *OpenAIChatModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(input))
	for _, m := range input {
		switch m.Role {
		case schema.System:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case schema.Assistant:
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.Model),
		Messages: msgs,
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: empty choices")
	}
	return schema.AssistantMessage(resp.Choices[0].Message.Content, nil), nil
}

// Stream is served from a single Generate call; nothing here consumes
// partial tokens.
func (o *OpenAIChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := o.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// OpenAIImageGenerator produces post images through the OpenAI images API.
type OpenAIImageGenerator struct {
	Model  string
	client openai.Client
}

func NewOpenAIImageGenerator(s Settings) (*OpenAIImageGenerator, error) {
	if s.Model == "" {
		return nil, errors.New("image model is required")
	}
	opts, err := requestOptions(s)
	if err != nil {
		return nil, err
	}
	return &OpenAIImageGenerator{Model: s.Model, client: openai.NewClient(opts...)}, nil
}

func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt, aspectRatio string) (string, error) {
	resp, err := g.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt:         prompt,
		Model:          openai.ImageModel(g.Model),
		Size:           openAISize(aspectRatio),
		ResponseFormat: openai.ImageGenerateParamsResponseFormatB64JSON,
		N:              openai.Int(1),
	})
	if err != nil {
		return "", err
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return "", errors.New("openai: no images returned")
	}
	return "data:image/png;base64," + resp.Data[0].B64JSON, nil
}

func openAISize(aspectRatio string) openai.ImageGenerateParamsSize {
	switch aspectRatio {
	case "16:9":
		return openai.ImageGenerateParamsSize1792x1024
	case "9:16":
		return openai.ImageGenerateParamsSize1024x1792
	default:
		return openai.ImageGenerateParamsSize1024x1024
	}
}
