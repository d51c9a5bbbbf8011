package configs

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"`
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		Port          int      `yaml:"port"`
		MaxUploadSize int64    `yaml:"max_upload_size"` // multipart请求体上限（字节）
		AllowOrigins  []string `yaml:"allow_origins"`
	} `yaml:"web"`

	Analysis AnalysisConfig `yaml:"analysis"`

	ConnectivityCheck ConnectivityCheckConfig `yaml:"connectivity_check"`

	MCP struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		BaseURL string `yaml:"base_url"`
	} `yaml:"mcp"`

	SelectedModule map[string]string     `yaml:"selected_module"`
	VLLLM          map[string]VLLMConfig `yaml:"VLLLM"`
}

// AnalysisConfig 分析流水线配置
type AnalysisConfig struct {
	MaxDimension   int           `yaml:"max_dimension"`    // 最长边上限
	JPEGQuality    int           `yaml:"jpeg_quality"`     // 重编码质量 1-100
	DecodeTimeout  time.Duration `yaml:"decode_timeout"`   // 图片解码等待上限
	MaxAttempts    int           `yaml:"max_attempts"`     // 上游调用总尝试次数
	BackoffStep    time.Duration `yaml:"backoff_step"`     // 第n次失败后等待 n*step
	AttemptTimeout time.Duration `yaml:"attempt_timeout"`  // 单次调用超时
	RetryOnTimeout bool          `yaml:"retry_on_timeout"` // 超时是否按瞬时错误重试
	RatingMin      int           `yaml:"rating_min"`
	RatingMax      int           `yaml:"rating_max"`
}

// ConnectivityCheckConfig 启动时的VLLLM连通性检查配置
type ConnectivityCheckConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
	Mode    string        `yaml:"mode"` // basic / functional
}

// SecurityConfig 图片安全配置结构
type SecurityConfig struct {
	MaxFileSize    int64    `yaml:"max_file_size"`   // 最大文件大小（字节）
	MaxPixels      int64    `yaml:"max_pixels"`      // 最大像素数量
	AllowedFormats []string `yaml:"allowed_formats"` // 允许的图片格式
}

// VLLMConfig VLLLM配置结构（视觉语言大模型）
type VLLMConfig struct {
	Type        string                 `yaml:"type"`        // openai / gemini / ollama
	ModelName   string                 `yaml:"model_name"`  // 模型名称，使用支持视觉的模型
	BaseURL     string                 `yaml:"url"`         // API地址
	APIKey      string                 `yaml:"api_key"`     // API密钥
	Temperature float64                `yaml:"temperature"` // 温度参数
	MaxTokens   int                    `yaml:"max_tokens"`  // 最大令牌数
	TopP        float64                `yaml:"top_p"`       // TopP参数
	Security    SecurityConfig         `yaml:"security"`    // 图片安全配置
	Extra       map[string]interface{} `yaml:",inline"`     // 额外配置
}

// EnvOverrides 允许通过 INDICATOR_* 环境变量覆盖的配置项
type EnvOverrides struct {
	Provider  string `envconfig:"PROVIDER"`
	Model     string `envconfig:"MODEL"`
	APIKey    string `envconfig:"API_KEY"`
	BaseURL   string `envconfig:"BASE_URL"`
	WebPort   int    `envconfig:"WEB_PORT"`
	LogLevel  string `envconfig:"LOG_LEVEL"`
	MCPEnable *bool  `envconfig:"MCP_ENABLED"`
}

// Default 返回带默认值的配置
func Default() *Config {
	cfg := &Config{}
	cfg.Server.IP = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Log.LogFormat = "json"
	cfg.Log.LogLevel = "INFO"
	cfg.Log.LogDir = "logs"
	cfg.Log.LogFile = "server.log"
	cfg.Web.Port = 8080
	cfg.Web.MaxUploadSize = 20 * 1024 * 1024
	cfg.Web.AllowOrigins = []string{"*"}
	cfg.Analysis = AnalysisConfig{
		MaxDimension:   1024,
		JPEGQuality:    80,
		DecodeTimeout:  5 * time.Second,
		MaxAttempts:    3,
		BackoffStep:    2 * time.Second,
		AttemptTimeout: 45 * time.Second,
		RetryOnTimeout: true,
		RatingMin:      1,
		RatingMax:      7,
	}
	cfg.ConnectivityCheck = ConnectivityCheckConfig{
		Enabled: true,
		Timeout: 30 * time.Second,
		Mode:    "basic",
	}
	cfg.MCP.Addr = ":8090"
	cfg.SelectedModule = map[string]string{"VLLLM": "GeminiVLLM"}
	cfg.VLLLM = map[string]VLLMConfig{
		"GeminiVLLM": {
			Type:        "gemini",
			ModelName:   "gemini-2.5-flash",
			BaseURL:     "https://generativelanguage.googleapis.com",
			Temperature: 0.9,
			TopP:        0.95,
			Security:    DefaultSecurity(),
		},
	}
	return cfg
}

// DefaultSecurity 默认的图片安全限制
func DefaultSecurity() SecurityConfig {
	return SecurityConfig{
		MaxFileSize:    20 * 1024 * 1024,
		MaxPixels:      64 * 1024 * 1024,
		AllowedFormats: []string{"jpeg", "png", "gif", "webp", "bmp", "tiff"},
	}
}

// LoadConfig 从文件加载配置，再用环境变量覆盖
func LoadConfig() (*Config, string, error) {
	path := ".config.yaml"
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = "config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, err
	}

	config, err := Parse(data)
	if err != nil {
		return nil, path, err
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, path, err
	}
	if err := config.Validate(); err != nil {
		return nil, path, err
	}

	return config, path, nil
}

// Parse 解析yaml内容，未给出的字段保留默认值
func Parse(data []byte) (*Config, error) {
	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	return config, nil
}

// ApplyEnv 读取 INDICATOR_* 环境变量并覆盖当前选中的VLLLM配置
func (c *Config) ApplyEnv() error {
	var env EnvOverrides
	if err := envconfig.Process("indicator", &env); err != nil {
		return fmt.Errorf("读取环境变量失败: %w", err)
	}

	if env.WebPort > 0 {
		c.Web.Port = env.WebPort
	}
	if env.LogLevel != "" {
		c.Log.LogLevel = env.LogLevel
	}
	if env.MCPEnable != nil {
		c.MCP.Enabled = *env.MCPEnable
	}
	if c.SelectedModule == nil {
		c.SelectedModule = map[string]string{}
	}
	if env.Provider != "" {
		c.SelectedModule["VLLLM"] = env.Provider
	}

	name := c.SelectedModule["VLLLM"]
	if name == "" {
		return nil
	}
	if c.VLLLM == nil {
		c.VLLLM = map[string]VLLMConfig{}
	}
	vc := c.VLLLM[name]
	if env.Model != "" {
		vc.ModelName = env.Model
	}
	if env.APIKey != "" {
		vc.APIKey = env.APIKey
	}
	if env.BaseURL != "" {
		vc.BaseURL = env.BaseURL
	}
	c.VLLLM[name] = vc
	return nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	a := c.Analysis
	if a.MaxDimension <= 0 {
		return fmt.Errorf("analysis.max_dimension 必须大于0 (当前 %d)", a.MaxDimension)
	}
	if a.JPEGQuality < 1 || a.JPEGQuality > 100 {
		return fmt.Errorf("analysis.jpeg_quality 必须在1-100之间 (当前 %d)", a.JPEGQuality)
	}
	if a.MaxAttempts < 1 {
		return fmt.Errorf("analysis.max_attempts 至少为1 (当前 %d)", a.MaxAttempts)
	}
	if a.BackoffStep < 0 || a.DecodeTimeout <= 0 || a.AttemptTimeout <= 0 {
		return fmt.Errorf("超时配置无效: decode=%s, attempt=%s, backoff=%s",
			a.DecodeTimeout, a.AttemptTimeout, a.BackoffStep)
	}
	if a.RatingMin >= a.RatingMax {
		return fmt.Errorf("analysis.rating_min(%d) 必须小于 rating_max(%d)", a.RatingMin, a.RatingMax)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port 无效: %d", c.Web.Port)
	}

	name := c.SelectedModule["VLLLM"]
	if name == "" {
		return fmt.Errorf("请设置 selected_module.VLLLM")
	}
	if _, ok := c.VLLLM[name]; !ok {
		return fmt.Errorf("未找到VLLLM配置: %s", name)
	}
	return nil
}

// SelectedVLLM 返回当前选中的VLLLM配置名与内容
func (c *Config) SelectedVLLM() (string, VLLMConfig) {
	name := c.SelectedModule["VLLLM"]
	vc := c.VLLLM[name]
	if vc.Security.MaxFileSize == 0 {
		vc.Security = DefaultSecurity()
	}
	return name, vc
}
