package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	defaultConfigFile = "threadpilot.toml"
)

// Server HTTP 服务配置
type Server struct {
	Addr                  string  `toml:"addr"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	RateLimitPerSecond    float64 `toml:"rate_limit_per_second"`
	RateLimitBurst        int     `toml:"rate_limit_burst"`
	ResultCacheSize       int     `toml:"result_cache_size"`
}

// Providers 文本和图片分别使用的模型服务
type Providers struct {
	Text  string `toml:"text"`
	Image string `toml:"image"`
}

// Ark 火山方舟配置，视频转写固定走方舟
type Ark struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	ChatModel      string `toml:"chat_model"`
	ImageModel     string `toml:"image_model"`
	VisionModel    string `toml:"vision_model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Mock           bool   `toml:"mock"`
}

// OpenAI 兼容接口配置
type OpenAI struct {
	APIKey     string `toml:"api_key"`
	BaseURL    string `toml:"base_url"`
	ChatModel  string `toml:"chat_model"`
	ImageModel string `toml:"image_model"`
}

// Article 文章链接抓取配置
type Article struct {
	FetchAttempts  uint `toml:"fetch_attempts"`
	MaxChars       int  `toml:"max_chars"`
	TimeoutSeconds int  `toml:"timeout_seconds"`

	// 默认拒绝回环、内网和链路本地地址
	AllowPrivateHosts bool `toml:"allow_private_hosts"`
}

// Logging 日志配置
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// Config 全部运行时配置
type Config struct {
	Server    Server    `toml:"server"`
	Providers Providers `toml:"providers"`
	Ark       Ark       `toml:"ark"`
	OpenAI    OpenAI    `toml:"openai"`
	Article   Article   `toml:"article"`
	Logging   Logging   `toml:"logging"`
}

// Default 返回内置默认值
func Default() Config {
	return Config{
		Server: Server{
			Addr:                  ":8080",
			RequestTimeoutSeconds: 120,
			RateLimitPerSecond:    2,
			RateLimitBurst:        5,
			ResultCacheSize:       256,
		},
		Providers: Providers{Text: ProviderArk, Image: ProviderArk},
		Ark: Ark{
			BaseURL:        "https://ark.cn-beijing.volces.com",
			ChatModel:      "doubao-seed-1-6-250615",
			ImageModel:     "doubao-seedream-4-0-250828",
			VisionModel:    "doubao-seed-1-6-vision-250815",
			TimeoutSeconds: 60,
		},
		OpenAI: OpenAI{
			ChatModel:  "gpt-4o-mini",
			ImageModel: "dall-e-3",
		},
		Article: Article{
			FetchAttempts:  3,
			MaxChars:       10000,
			TimeoutSeconds: 20,
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load 读取配置文件（不存在时使用默认值），再叠加环境变量并校验。
// 返回配置、解析后的路径以及文件是否存在。
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolvePath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv(os.Getenv)
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolvePath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigFile
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return abs, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %s is a directory", abs)
	}
	return abs, true, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("ARK_API_KEY"); v != "" {
		c.Ark.APIKey = v
	}
	if v := strings.ToLower(getenv("ARK_MOCK")); v == "1" || v == "true" {
		c.Ark.Mock = true
	}
	if v := getenv("ARK_CHAT_MODEL"); v != "" {
		c.Ark.ChatModel = v
	}
	if v := getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := getenv("THREADPILOT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("THREADPILOT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func (c *Config) normalize() {
	def := Default()
	c.Providers.Text = strings.ToLower(strings.TrimSpace(c.Providers.Text))
	c.Providers.Image = strings.ToLower(strings.TrimSpace(c.Providers.Image))
	c.Ark.APIKey = strings.TrimSpace(c.Ark.APIKey)
	c.Ark.BaseURL = strings.TrimRight(strings.TrimSpace(c.Ark.BaseURL), "/")
	c.OpenAI.APIKey = strings.TrimSpace(c.OpenAI.APIKey)
	c.OpenAI.BaseURL = strings.TrimSpace(c.OpenAI.BaseURL)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))

	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = def.Server.RequestTimeoutSeconds
	}
	if c.Server.RateLimitBurst <= 0 {
		c.Server.RateLimitBurst = def.Server.RateLimitBurst
	}
	if c.Server.ResultCacheSize <= 0 {
		c.Server.ResultCacheSize = def.Server.ResultCacheSize
	}
	if c.Ark.BaseURL == "" {
		c.Ark.BaseURL = def.Ark.BaseURL
	}
	if c.Ark.TimeoutSeconds <= 0 {
		c.Ark.TimeoutSeconds = def.Ark.TimeoutSeconds
	}
	if c.Article.FetchAttempts == 0 {
		c.Article.FetchAttempts = def.Article.FetchAttempts
	}
	if c.Article.MaxChars <= 0 {
		c.Article.MaxChars = def.Article.MaxChars
	}
	if c.Article.TimeoutSeconds <= 0 {
		c.Article.TimeoutSeconds = def.Article.TimeoutSeconds
	}
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
}

// Validate 检查服务商选择及其必需的凭据
func (c *Config) Validate() error {
	if err := checkProvider("providers.text", c.Providers.Text); err != nil {
		return err
	}
	if err := checkProvider("providers.image", c.Providers.Image); err != nil {
		return err
	}
	if c.Providers.Text == ProviderArk && c.Ark.APIKey == "" {
		return errors.New("ark.api_key (or ARK_API_KEY) is required when providers.text = \"ark\"")
	}
	if c.Providers.Image == ProviderArk && c.Ark.APIKey == "" && !c.Ark.Mock {
		return errors.New("ark.api_key (or ARK_API_KEY) is required when providers.image = \"ark\"; set ark.mock for local runs")
	}
	for _, p := range []string{c.Providers.Text, c.Providers.Image} {
		if p == ProviderOpenAI && c.OpenAI.APIKey == "" {
			return errors.New("openai.api_key (or OPENAI_API_KEY) is required when an openai provider is selected")
		}
	}
	if c.Server.RateLimitPerSecond < 0 {
		return errors.New("server.rate_limit_per_second must not be negative")
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

func checkProvider(key, value string) error {
	switch value {
	case ProviderArk, ProviderOpenAI, ProviderMock:
		return nil
	default:
		return fmt.Errorf("%s must be one of ark, openai, mock; got %q", key, value)
	}
}

// Sample 返回带注释的示例配置
func Sample() string {
	return sampleConfig
}
