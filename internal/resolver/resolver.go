// Package resolver turns a GenerationRequest into the plain text every
// downstream generation call consumes.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"threadpilot/internal/model"
)

var errEmptyTranscript = errors.New("transcription returned no text")

// Transcriber 视频链接转文字
type Transcriber interface {
	Transcribe(ctx context.Context, videoURL string) (string, error)
}

// ArticleFetcher 抓取网页正文
type ArticleFetcher interface {
	FetchText(ctx context.Context, pageURL string) (string, error)
}

// Resolver 内容解析器，对外部服务只有转写和抓取两类调用
type Resolver struct {
	transcriber Transcriber
	articles    ArticleFetcher
	logger      logrus.FieldLogger
}

func New(t Transcriber, a ArticleFetcher, logger logrus.FieldLogger) *Resolver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{transcriber: t, articles: a, logger: logger}
}

// Resolve 返回后续调用使用的正文。文本输入原样返回；
// 链接输入失败（链接非法、不可达、结果为空）返回 ExtractionError。
func (r *Resolver) Resolve(ctx context.Context, req model.GenerationRequest) (string, error) {
	switch req.InputType {
	case model.InputText, "":
		if err := model.ValidateContent(req.Content); err != nil {
			return "", err
		}
		return req.Content, nil
	case model.InputVideoURL:
		return r.resolveRemote(ctx, "video", req.URL, func(ctx context.Context, u string) (string, error) {
			if r.transcriber == nil {
				return "", errors.New("video transcription is not configured")
			}
			return r.transcriber.Transcribe(ctx, u)
		})
	case model.InputArticleURL:
		return r.resolveRemote(ctx, "article", req.URL, func(ctx context.Context, u string) (string, error) {
			if r.articles == nil {
				return "", errors.New("article extraction is not configured")
			}
			return r.articles.FetchText(ctx, u)
		})
	default:
		return "", &model.ValidationError{Field: "inputType", Reason: fmt.Sprintf("unsupported input type %q", req.InputType)}
	}
}

func (r *Resolver) resolveRemote(ctx context.Context, source, raw string, fetch func(context.Context, string) (string, error)) (string, error) {
	u, err := parseHTTPURL(raw)
	if err != nil {
		return "", &model.ExtractionError{Source: source, Err: err}
	}

	text, err := fetch(ctx, u)
	if err != nil {
		return "", &model.ExtractionError{Source: source, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &model.ExtractionError{Source: source, Err: errEmptyTranscript}
	}

	if n := model.CountChars(text); n > model.MaxContentLength {
		r.logger.WithFields(logrus.Fields{"source": source, "chars": n}).
			Warnf("extracted text truncated to %d characters", model.MaxContentLength)
		text = model.TruncateChars(text, model.MaxContentLength)
	}
	return text, nil
}

func parseHTTPURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("malformed url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("malformed url %q: need an http(s) link", raw)
	}
	return u.String(), nil
}
