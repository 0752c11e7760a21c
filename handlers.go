package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"threadpilot/internal/illustrator"
	"threadpilot/internal/model"
	"threadpilot/internal/pipeline"
	"threadpilot/internal/render"
)

const requestIDHeader = "X-Request-ID"

// generateRequest POST /api/threads/generate 请求体
type generateRequest struct {
	InputType      string `json:"inputType"`
	Text           string `json:"text"`
	URL            string `json:"url"`
	Platform       string `json:"platform"`
	Style          string `json:"style"`
	ThreadLength   int    `json:"threadLength"`
	TargetAudience string `json:"targetAudience"`
}

func (r generateRequest) toModel() (model.GenerationRequest, error) {
	req := model.GenerationRequest{
		InputType:      model.InputType(r.InputType),
		Content:        r.Text,
		URL:            r.URL,
		ThreadLength:   r.ThreadLength,
		TargetAudience: r.TargetAudience,
	}
	if r.Platform != "" {
		p, err := model.ParsePlatform(r.Platform)
		if err != nil {
			return req, &model.ValidationError{Field: "platform", Reason: err.Error()}
		}
		req.Platform = p
	}
	if r.Style != "" {
		s, err := model.ParseStyle(r.Style)
		if err != nil {
			return req, &model.ValidationError{Field: "style", Reason: err.Error()}
		}
		req.Style = s
	}
	return req, nil
}

type generateResponse struct {
	ID            string                         `json:"id"`
	State         pipeline.State                 `json:"state"`
	Platform      model.Platform                 `json:"platform"`
	Style         model.Style                    `json:"style"`
	Thread        *model.GeneratedThread         `json:"thread"`
	Optimizations *model.OptimizationSuggestions `json:"optimizations"`
	Warnings      []string                       `json:"warnings"`
	OverLimit     []int                          `json:"overLimit"`
	CreatedAt     time.Time                      `json:"createdAt"`
}

func newGenerateResponse(r *model.Result) generateResponse {
	over := r.Thread.OverLimit(r.Platform)
	if over == nil {
		over = []int{}
	}
	return generateResponse{
		ID:            r.ID,
		State:         pipeline.StateMerged,
		Platform:      r.Platform,
		Style:         r.Style,
		Thread:        r.Thread,
		Optimizations: r.Optimizations,
		Warnings:      r.Warnings,
		OverLimit:     over,
		CreatedAt:     r.CreatedAt,
	}
}

// errorStatus 错误类型到 HTTP 状态码
func errorStatus(err error) int {
	switch {
	case model.IsValidationError(err):
		return http.StatusBadRequest
	case model.IsExtractionError(err):
		return http.StatusUnprocessableEntity
	case model.IsGenerationError(err):
		return http.StatusBadGateway
	case errors.Is(err, pipeline.ErrResultNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func newRouter(a *app) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(a.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.GET("/info", handleInfo(a))
	api.POST("/threads/generate", rateLimit(a.cfg.Server.RateLimitPerSecond, a.cfg.Server.RateLimitBurst), handleGenerate(a))
	api.GET("/threads/:id", handleGetThread(a))
	api.PATCH("/threads/:id/posts/:index", handleEditPost(a))
	api.GET("/threads/:id/preview", handlePreview(a))

	router.POST("/tools/thread-compose", handleThreadCompose(a))
	return router
}

// requestLogger 分配请求 ID 并记录访问日志
func requestLogger(logger logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"request_id":  id,
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request completed")
		} else {
			entry.Info("request completed")
		}
	}
}

// rateLimit 令牌桶限流，rps<=0 时不限流
func rateLimit(rps float64, burst int) gin.HandlerFunc {
	if rps <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many generation requests, please retry shortly"})
			return
		}
		c.Next()
	}
}

func handleGenerate(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body generateRequest
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "state": pipeline.StateFailed})
			return
		}
		req, err := body.toModel()
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "state": pipeline.StateFailed})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Duration(a.cfg.Server.RequestTimeoutSeconds)*time.Second)
		defer cancel()

		result, err := a.pipeline.Run(ctx, req)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error(), "state": pipeline.StateFailed})
			return
		}
		a.store.Save(result)
		c.JSON(http.StatusOK, newGenerateResponse(result))
	}
}

func handleGetThread(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := a.store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": pipeline.ErrResultNotFound.Error()})
			return
		}
		c.JSON(http.StatusOK, newGenerateResponse(result))
	}
}

func handleEditPost(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "post index must be an integer"})
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		result, err := a.store.EditPost(c.Param("id"), index, body.Text)
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, newGenerateResponse(result))
	}
}

func handlePreview(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, ok := a.store.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": pipeline.ErrResultNotFound.Error()})
			return
		}
		html, err := render.HTML(result)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	}
}

// handleThreadCompose 直接调用线程生成工具，请求体即工具参数
func handleThreadCompose(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := c.GetRawData()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		out, err := a.threadTool.InvokableRun(c.Request.Context(), string(body))
		if err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "application/json", []byte(out))
	}
}

func handleInfo(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := a.threadTool.Info(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"name":         "threadpilot",
			"states":       pipeline.States,
			"platforms":    model.Platforms,
			"styles":       model.Styles,
			"aspectRatio":  illustrator.AspectRatio,
			"tools":        []string{info.Name},
			"threadLength": gin.H{"min": model.MinThreadLength, "max": model.MaxThreadLength, "default": model.DefaultThreadLength},
			"providers":    gin.H{"text": a.cfg.Providers.Text, "image": a.cfg.Providers.Image},
		})
	}
}
