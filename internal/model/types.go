package model

import (
	"fmt"
	"strings"
	"time"
)

// InputType 用户输入的来源类型
type InputType string

const (
	InputText       InputType = "text"    // 直接粘贴的文本
	InputVideoURL   InputType = "url"     // 视频链接，需要转写
	InputArticleURL InputType = "article" // 网页文章链接，需要抓取正文
)

// Platform 目标社交平台
type Platform string

const (
	PlatformTwitter  Platform = "Twitter"
	PlatformLinkedIn Platform = "LinkedIn"
)

// Style 线程写作风格
type Style string

const (
	StyleProfessional Style = "Professional"
	StyleCasual       Style = "Casual"
	StyleStorytelling Style = "Storytelling"
	StyleEducational  Style = "Educational"
)

const (
	MinContentLength    = 50
	MaxContentLength    = 15000
	MinThreadLength     = 5
	MaxThreadLength     = 15
	DefaultThreadLength = 7
	MinAudienceLength   = 3
	MaxAudienceLength   = 100
	DefaultAudience     = "a general audience"

	TwitterCharLimit  = 280
	LinkedInCharLimit = 3000
)

// Platforms 全部支持的平台
var Platforms = []Platform{PlatformTwitter, PlatformLinkedIn}

// Styles 全部支持的风格
var Styles = []Style{StyleProfessional, StyleCasual, StyleStorytelling, StyleEducational}

// ParsePlatform 不区分大小写解析平台名称，"x" 视为 Twitter
func ParsePlatform(s string) (Platform, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "x" {
		return PlatformTwitter, nil
	}
	for _, p := range Platforms {
		if strings.ToLower(string(p)) == v {
			return p, nil
		}
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// ParseStyle 不区分大小写解析风格名称
func ParseStyle(s string) (Style, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range Styles {
		if strings.ToLower(string(st)) == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown style %q", s)
}

// CharLimit 单条帖子的字符预算
func (p Platform) CharLimit() int {
	if p == PlatformLinkedIn {
		return LinkedInCharLimit
	}
	return TwitterCharLimit
}

func (p Platform) valid() bool {
	for _, v := range Platforms {
		if v == p {
			return true
		}
	}
	return false
}

func (s Style) valid() bool {
	for _, v := range Styles {
		if v == s {
			return true
		}
	}
	return false
}

// GenerationRequest 一次用户提交，生成过程中不可变
type GenerationRequest struct {
	InputType      InputType `json:"inputType"`
	Content        string    `json:"content,omitempty"` // 文本输入
	URL            string    `json:"url,omitempty"`     // 视频或文章链接
	Platform       Platform  `json:"platform"`
	Style          Style     `json:"style"`
	ThreadLength   int       `json:"threadLength"`
	TargetAudience string    `json:"targetAudience,omitempty"`
}

// WithDefaults 补全未填写的输入类型、平台、风格和线程长度
func (r GenerationRequest) WithDefaults() GenerationRequest {
	if r.InputType == "" {
		r.InputType = InputText
	}
	if r.Platform == "" {
		r.Platform = PlatformTwitter
	}
	if r.Style == "" {
		r.Style = StyleProfessional
	}
	if r.ThreadLength == 0 {
		r.ThreadLength = DefaultThreadLength
	}
	r.TargetAudience = strings.TrimSpace(r.TargetAudience)
	return r
}

// Audience 目标受众，未填写时使用默认值
func (r GenerationRequest) Audience() string {
	if a := strings.TrimSpace(r.TargetAudience); a != "" {
		return a
	}
	return DefaultAudience
}

// OptimizationSuggestions 开篇钩子与发布时间建议，仅作参考
type OptimizationSuggestions struct {
	Hook               string   `json:"hook"`
	SuggestedPostTimes []string `json:"suggestedPostTimes"`
	Reasoning          string   `json:"reasoning"`
}

// Result 一次成功生成的合并结果
type Result struct {
	ID            string                   `json:"id"`
	Platform      Platform                 `json:"platform"`
	Style         Style                    `json:"style"`
	Thread        *GeneratedThread         `json:"thread"`
	Optimizations *OptimizationSuggestions `json:"optimizations"`
	Warnings      []string                 `json:"warnings"`
	CreatedAt     time.Time                `json:"createdAt"`
}

// Clone 深拷贝结果，避免并发读写共享切片
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Thread = r.Thread.Clone()
	if r.Optimizations != nil {
		opt := *r.Optimizations
		opt.SuggestedPostTimes = append([]string(nil), r.Optimizations.SuggestedPostTimes...)
		out.Optimizations = &opt
	}
	out.Warnings = append([]string(nil), r.Warnings...)
	return &out
}
