package volc

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultBase        = "https://ark.cn-beijing.volces.com"
	defaultImageModel  = "doubao-seedream-4-0-250828"
	defaultVisionModel = "doubao-seed-1-6-vision-250815"

	// 1x1 PNG pixel base64
	mockPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAASsJTYQAAAAASUVORK5CYII="

	transcribeInstruction = "Extract the spoken text from this video. Provide only the transcript."
)

// 各画幅对应的 Seedream 输出分辨率
var aspectSizes = map[string]string{
	"16:9": "2560x1440",
	"9:16": "1440x2560",
	"4:3":  "2304x1728",
	"3:4":  "1728x2304",
	"1:1":  "2048x2048",
}

// Config ArkClient 配置
type Config struct {
	BaseURL     string
	APIKey      string
	ImageModel  string
	VisionModel string
	Timeout     time.Duration
	Mock        bool
}

// ArkClient 火山方舟 HTTP 客户端，负责图片生成与视频转写，可并发复用
type ArkClient struct {
	BaseURL     string
	APIKey      string
	ImageModel  string
	VisionModel string
	HTTPClient  *http.Client
	Mock        bool
	Logger      logrus.FieldLogger
}

// NewArkClient 根据配置创建客户端
func NewArkClient(cfg Config) *ArkClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := &ArkClient{
		BaseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:      cfg.APIKey,
		ImageModel:  cfg.ImageModel,
		VisionModel: cfg.VisionModel,
		HTTPClient:  &http.Client{Timeout: timeout},
		Mock:        cfg.Mock,
		Logger:      logrus.StandardLogger(),
	}
	if c.BaseURL == "" {
		c.BaseURL = defaultBase
	}
	if c.ImageModel == "" {
		c.ImageModel = defaultImageModel
	}
	if c.VisionModel == "" {
		c.VisionModel = defaultVisionModel
	}
	return c
}

// ImageGenParams 图片生成参数
type ImageGenParams struct {
	Model       string
	Prompt      string
	Size        string
	AspectRatio string
}

// GenerateImage 生成单张图片并以 data URI 返回
func (c *ArkClient) GenerateImage(ctx context.Context, prompt, aspectRatio string) (string, error) {
	return c.GenerateImageWithParams(ctx, ImageGenParams{Prompt: prompt, AspectRatio: aspectRatio})
}

// GenerateImageWithParams 生成单张图片，服务端只返回 URL 时下载并转成 data URI
func (c *ArkClient) GenerateImageWithParams(ctx context.Context, p ImageGenParams) (string, error) {
	if c.Mock {
		return "data:image/png;base64," + mockPixel, nil
	}
	if strings.TrimSpace(p.Prompt) == "" {
		return "", errors.New("prompt required")
	}
	if p.Model == "" {
		p.Model = c.ImageModel
	}
	if p.Size == "" {
		size, ok := aspectSizes[p.AspectRatio]
		if !ok {
			size = aspectSizes["1:1"]
		}
		p.Size = size
	}
	body := map[string]any{
		"model":                       p.Model,
		"prompt":                      p.Prompt,
		"size":                        p.Size,
		"response_format":             "b64_json",
		"sequential_image_generation": "disabled",
		"watermark":                   false,
	}

	var resp struct {
		Data []struct {
			URL    string `json:"url"`
			B64    string `json:"b64_json"`
			Format string `json:"format"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.postJSON(ctx, "/api/v3/images/generations", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("image generation rejected: %s: %s", resp.Error.Code, resp.Error.Message)
	}
	for _, d := range resp.Data {
		if d.B64 != "" {
			format := d.Format
			if format == "" {
				format = "png"
			}
			return "data:image/" + format + ";base64," + d.B64, nil
		}
		if d.URL != "" {
			return c.fetchAsDataURI(ctx, d.URL)
		}
	}
	return "", errors.New("no images returned")
}

// Transcribe 使用视觉模型提取视频中的口播文本
func (c *ArkClient) Transcribe(ctx context.Context, videoURL string) (string, error) {
	if c.Mock {
		return "This is a mock transcript of the requested video. The speaker walks through three lessons " +
			"learned while shipping a product: talk to users early, keep the scope small, and measure what matters.", nil
	}
	content := []map[string]any{
		{"type": "video_url", "video_url": map[string]any{"url": videoURL}},
		{"type": "text", "text": transcribeInstruction},
	}
	reqBody := map[string]any{
		"model":    c.VisionModel,
		"messages": []map[string]any{{"role": "user", "content": content}},
	}
	var resp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.postJSON(ctx, "/api/v3/chat/completions", reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat choices")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty transcript")
	}
	return text, nil
}

func (c *ArkClient) fetchAsDataURI(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return "", err
	}
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", fmt.Errorf("download image: http %d", res.StatusCode)
	}
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	mime := res.Header.Get("Content-Type")
	if !strings.HasPrefix(mime, "image/") {
		mime = http.DetectContentType(data)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (c *ArkClient) postJSON(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	res, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	bodyBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}
	c.Logger.WithFields(logrus.Fields{
		"path":        path,
		"status":      res.StatusCode,
		"duration_ms": time.Since(start).Milliseconds(),
	}).Debug("ark request completed")
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("http %d: %s", res.StatusCode, truncate(string(bodyBytes), 512))
	}
	return json.Unmarshal(bodyBytes, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
