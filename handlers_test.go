package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"

	"threadpilot/internal/config"
	"threadpilot/internal/model"
	"threadpilot/internal/pipeline"
)

const sampleText = "Remote teams ship faster when they write things down. This note walks through how we moved planning, reviews and incident notes into shared documents over one quarter."

func newTestApp(t *testing.T, mutate func(*config.Config)) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Providers = config.Providers{Text: config.ProviderMock, Image: config.ProviderMock}
	cfg.Server.RateLimitPerSecond = 0
	if mutate != nil {
		mutate(&cfg)
	}
	logger, _ := test.NewNullLogger()
	a, err := newApp(context.Background(), &cfg, logger)
	if err != nil {
		t.Fatalf("newApp: %v", err)
	}
	return a
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func generate(t *testing.T, h http.Handler) generateResponse {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{
		InputType: "text",
		Text:      sampleText,
		Platform:  "twitter",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("generate status = %d, body %s", w.Code, w.Body.String())
	}
	var resp generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp
}

func TestGenerateEndpoint(t *testing.T) {
	a := newTestApp(t, nil)
	h := newRouter(a)

	resp := generate(t, h)
	if resp.ID == "" {
		t.Fatal("missing id")
	}
	if resp.State != pipeline.StateMerged {
		t.Errorf("state = %q", resp.State)
	}
	if resp.Platform != model.PlatformTwitter || resp.Style != model.StyleProfessional {
		t.Errorf("platform/style = %q/%q", resp.Platform, resp.Style)
	}
	if got := len(resp.Thread.Posts); got != model.DefaultThreadLength {
		t.Fatalf("posts = %d, want %d", got, model.DefaultThreadLength)
	}
	for i, p := range resp.Thread.Posts {
		if p.Image == "" || p.IsPlaceholder {
			t.Errorf("post %d image = %q placeholder=%v", i, p.Image, p.IsPlaceholder)
		}
	}
	if resp.Optimizations == nil || resp.Optimizations.Hook == "" {
		t.Errorf("optimizations = %+v", resp.Optimizations)
	}
	if len(resp.Warnings) != 0 {
		t.Errorf("warnings = %v", resp.Warnings)
	}
	if a.store.Len() != 1 {
		t.Errorf("store len = %d", a.store.Len())
	}
}

func TestGenerateRejectsShortText(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "text", Text: "too short"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "at least 50 characters") {
		t.Errorf("body = %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"state":"failed"`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGenerateRejectsUnknownPlatform(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "text", Text: sampleText, Platform: "myspace"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGenerateRejectsMalformedBody(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	req := httptest.NewRequest(http.MethodPost, "/api/threads/generate", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGenerateMalformedArticleURL(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "article", URL: "not a url"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
}

func TestGenerateRateLimited(t *testing.T) {
	h := newRouter(newTestApp(t, func(c *config.Config) {
		c.Server.RateLimitPerSecond = 0.001
		c.Server.RateLimitBurst = 1
	}))
	generate(t, h)
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "text", Text: sampleText})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestGetEditAndPreview(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	created := generate(t, h)

	w := doJSON(t, h, http.MethodGet, "/api/threads/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodPatch, "/api/threads/"+created.ID+"/posts/2", map[string]string{"text": "Edited third post."})
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body %s", w.Code, w.Body.String())
	}
	var edited generateResponse
	if err := json.Unmarshal(w.Body.Bytes(), &edited); err != nil {
		t.Fatal(err)
	}
	if got := edited.Thread.Posts[2].Text; got != "Edited third post." {
		t.Errorf("post 2 = %q", got)
	}
	if edited.Thread.Posts[2].Image != created.Thread.Posts[2].Image {
		t.Error("editing text must keep the image")
	}

	w = doJSON(t, h, http.MethodPatch, "/api/threads/"+created.ID+"/posts/99", map[string]string{"text": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("out of range patch status = %d", w.Code)
	}
	w = doJSON(t, h, http.MethodPatch, "/api/threads/"+created.ID+"/posts/two", map[string]string{"text": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric patch status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/threads/"+created.ID+"/preview", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("preview status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(w.Body.String(), "Edited third post.") {
		t.Error("preview missing edited text")
	}
}

func TestUnknownThread(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	for _, path := range []string{"/api/threads/nope", "/api/threads/nope/preview"} {
		if w := doJSON(t, h, http.MethodGet, path, nil); w.Code != http.StatusNotFound {
			t.Errorf("%s status = %d", path, w.Code)
		}
	}
	w := doJSON(t, h, http.MethodPatch, "/api/threads/nope/posts/1", map[string]string{"text": "x"})
	if w.Code != http.StatusNotFound {
		t.Errorf("patch status = %d", w.Code)
	}
}

func TestThreadComposeTool(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	w := doJSON(t, h, http.MethodPost, "/tools/thread-compose", map[string]any{
		"content":       sampleText,
		"platform":      "LinkedIn",
		"thread_length": 5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		Platform string   `json:"platform"`
		Thread   []string `json:"thread"`
		Count    int      `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Platform != "LinkedIn" || resp.Count != 5 || len(resp.Thread) != 5 {
		t.Errorf("resp = %+v", resp)
	}

	w = doJSON(t, h, http.MethodPost, "/tools/thread-compose", map[string]any{"content": "short"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("short content status = %d", w.Code)
	}
}

func TestInfoAndHealth(t *testing.T) {
	h := newRouter(newTestApp(t, nil))

	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", w.Code)
	}

	w = doJSON(t, h, http.MethodGet, "/api/info", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("info status = %d", w.Code)
	}
	var info struct {
		AspectRatio string   `json:"aspectRatio"`
		Tools       []string `json:"tools"`
		States      []string `json:"states"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.AspectRatio != "16:9" {
		t.Errorf("aspectRatio = %q", info.AspectRatio)
	}
	if len(info.Tools) != 1 || info.Tools[0] != "thread_compose" {
		t.Errorf("tools = %v", info.Tools)
	}
	if len(info.States) != len(pipeline.States) {
		t.Errorf("states = %v", info.States)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newRouter(newTestApp(t, nil))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if got := w.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q", got)
	}

	w = doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("missing generated request id")
	}
}

type brokenTool struct{}

func (brokenTool) Info(context.Context) (*schema.ToolInfo, error) {
	return nil, errors.New("tool info unavailable")
}

func (brokenTool) InvokableRun(context.Context, string, ...einotool.Option) (string, error) {
	return "", errors.New("tool unavailable")
}

func TestInfoToolError(t *testing.T) {
	a := newTestApp(t, nil)
	a.threadTool = brokenTool{}
	w := doJSON(t, newRouter(a), http.MethodGet, "/api/info", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "tool info unavailable") {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestVideoURLWithoutArkKey(t *testing.T) {
	var hits int32
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "unexpected call", http.StatusInternalServerError)
	}))
	defer provider.Close()

	a := newTestApp(t, func(c *config.Config) {
		c.Providers = config.Providers{Text: config.ProviderOpenAI, Image: config.ProviderMock}
		c.OpenAI.APIKey = "test-key"
		c.OpenAI.BaseURL = provider.URL
		c.Ark.APIKey = ""
		c.Ark.Mock = false
	})
	if err := a.cfg.Validate(); err != nil {
		t.Fatalf("config should be valid: %v", err)
	}

	w := doJSON(t, newRouter(a), http.MethodPost, "/api/threads/generate", generateRequest{
		InputType: "url",
		URL:       "https://youtu.be/real-video",
	})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "video transcription is not configured") {
		t.Errorf("body = %s", w.Body.String())
	}
	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Errorf("text provider called %d times", n)
	}
	if a.store.Len() != 0 {
		t.Errorf("store len = %d", a.store.Len())
	}
}

func TestVideoURLMockTranscription(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"all mock providers", nil},
		{"ark mock flag", func(c *config.Config) {
			c.Providers = config.Providers{Text: config.ProviderMock, Image: config.ProviderArk}
			c.Ark.Mock = true
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newRouter(newTestApp(t, tt.mutate))
			w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{
				InputType: "url",
				URL:       "https://youtu.be/demo",
			})
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestArticleURLPrivateHostRejected(t *testing.T) {
	var hits int32
	page := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("<html><body><p>" + sampleText + "</p></body></html>"))
	}))
	defer page.Close()

	h := newRouter(newTestApp(t, nil))
	w := doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "article", URL: page.URL})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("private host fetched %d times", hits)
	}

	h = newRouter(newTestApp(t, func(c *config.Config) { c.Article.AllowPrivateHosts = true }))
	w = doJSON(t, h, http.MethodPost, "/api/threads/generate", generateRequest{InputType: "article", URL: page.URL})
	if w.Code != http.StatusOK {
		t.Fatalf("allowed status = %d, body %s", w.Code, w.Body.String())
	}
}
