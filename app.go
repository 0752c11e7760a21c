package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/sirupsen/logrus"

	"threadpilot/internal/advisor"
	"threadpilot/internal/composer"
	"threadpilot/internal/config"
	"threadpilot/internal/illustrator"
	"threadpilot/internal/llm"
	"threadpilot/internal/pipeline"
	"threadpilot/internal/resolver"
	"threadpilot/internal/tools"
	"threadpilot/internal/volc"
)

// app 进程级共享的组件，构建一次后被所有请求复用
type app struct {
	cfg        *config.Config
	pipeline   *pipeline.Pipeline
	store      *pipeline.ResultStore
	threadTool einotool.InvokableTool
	logger     logrus.FieldLogger
}

func newApp(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger) (*app, error) {
	timeout := time.Duration(cfg.Ark.TimeoutSeconds) * time.Second

	arkClient := func(mock bool) *volc.ArkClient {
		c := volc.NewArkClient(volc.Config{
			BaseURL:     cfg.Ark.BaseURL,
			APIKey:      cfg.Ark.APIKey,
			ImageModel:  cfg.Ark.ImageModel,
			VisionModel: cfg.Ark.VisionModel,
			Timeout:     timeout,
			Mock:        mock,
		})
		c.Logger = logger
		return c
	}

	textSettings := llm.Settings{Provider: cfg.Providers.Text, HTTPClient: &http.Client{Timeout: timeout}}
	switch cfg.Providers.Text {
	case config.ProviderArk:
		textSettings.Model = cfg.Ark.ChatModel
		textSettings.APIKey = cfg.Ark.APIKey
		textSettings.BaseURL = cfg.Ark.BaseURL
	case config.ProviderOpenAI:
		textSettings.Model = cfg.OpenAI.ChatModel
		textSettings.APIKey = cfg.OpenAI.APIKey
		textSettings.BaseURL = cfg.OpenAI.BaseURL
	}
	chatModel, err := llm.NewChatModel(ctx, textSettings)
	if err != nil {
		return nil, err
	}

	var images tools.ImageGenerator
	switch cfg.Providers.Image {
	case config.ProviderOpenAI:
		gen, err := llm.NewOpenAIImageGenerator(llm.Settings{
			Model:   cfg.OpenAI.ImageModel,
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("image provider: %w", err)
		}
		images = gen
	case config.ProviderMock:
		images = arkClient(true)
	default:
		images = arkClient(cfg.Ark.Mock)
	}

	// 视频转写固定走方舟。只有显式开启模拟或全部服务都是 mock 时才用模拟转写；
	// 没有密钥则不配置转写，视频链接请求以 ExtractionError 失败。
	var transcriber resolver.Transcriber
	switch {
	case cfg.Ark.Mock, cfg.Providers.Text == config.ProviderMock && cfg.Providers.Image == config.ProviderMock:
		transcriber = arkClient(true)
	case cfg.Ark.APIKey != "":
		transcriber = arkClient(false)
	default:
		logger.Warn("ark.api_key is not set, video links will be rejected")
	}

	articles := resolver.NewHTTPArticleFetcher(
		cfg.Article.FetchAttempts,
		cfg.Article.MaxChars,
		time.Duration(cfg.Article.TimeoutSeconds)*time.Second,
	)
	articles.Logger = logger
	if !cfg.Article.AllowPrivateHosts {
		articles.BlockPrivateHosts()
	}

	comp, err := composer.New(ctx, chatModel, logger)
	if err != nil {
		return nil, err
	}
	adv, err := advisor.New(ctx, chatModel, logger)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(
		resolver.New(transcriber, articles, logger),
		comp,
		illustrator.New(tools.NewImageTool(images), logger),
		adv,
		pipeline.WithLogger(logger),
	)

	logger.WithFields(logrus.Fields{
		"text_provider":  cfg.Providers.Text,
		"image_provider": cfg.Providers.Image,
		"ark_mock":       cfg.Ark.Mock,
	}).Info("pipeline ready")

	return &app{
		cfg:        cfg,
		pipeline:   pipe,
		store:      pipeline.NewResultStore(cfg.Server.ResultCacheSize),
		threadTool: tools.NewThreadTool(comp),
		logger:     logger,
	}, nil
}
