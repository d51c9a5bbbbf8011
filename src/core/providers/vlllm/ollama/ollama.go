package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "http://localhost:11434"

// Provider Ollama /api/chat 接口的VLLLM提供者
type Provider struct {
	config *vlllm.Config
	client *resty.Client
	logger *utils.Logger
}

// init 注册Ollama VLLLM提供者
func init() {
	vlllm.Register("ollama", NewProvider)
}

// NewProvider 创建Ollama VLLLM提供者实例
// 本地模型（如qwen2.5vl:7b）不需要 API key
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Generator, error) {
	if config.ModelName == "" {
		return nil, fmt.Errorf("缺少 Ollama 模型名称")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	// 兼容OpenAI风格的地址配置
	baseURL = strings.TrimSuffix(strings.TrimRight(baseURL, "/"), "/v1")

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(5 * time.Minute)
	if config.APIKey != "" {
		client.SetAuthToken(config.APIKey)
	}

	logger.Debug("Ollama VLLLM Provider创建成功", map[string]interface{}{
		"model_name": config.ModelName,
		"base_url":   baseURL,
	})

	return &Provider{config: config, client: client, logger: logger}, nil
}

// Name 提供者名称
func (p *Provider) Name() string {
	return "ollama"
}

type message struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   json.RawMessage        `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Message    message `json:"message"`
	Done       bool    `json:"done"`
	DoneReason string  `json:"done_reason"`
	EvalCount  int     `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Generate 发送单次非流式 chat 请求
func (p *Provider) Generate(ctx context.Context, req vlllm.GenerateRequest) (string, error) {
	body, err := p.buildRequest(req)
	if err != nil {
		return "", &vlllm.CallError{Provider: p.Name(), Kind: vlllm.KindFatal, Err: err}
	}

	var result chatResponse
	var apiErr errorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/chat")
	if err != nil {
		return "", vlllm.NewCallError(ctx, p.Name(), 0, err)
	}
	if resp.IsError() {
		return "", vlllm.NewCallError(ctx, p.Name(), resp.StatusCode(), fmt.Errorf("%s", apiErr.Error))
	}

	if strings.TrimSpace(result.Message.Content) == "" {
		return "", vlllm.ErrEmptyResponse
	}

	p.logger.Debug("Ollama VLLLM 返回", map[string]interface{}{
		"done_reason": result.DoneReason,
		"eval_count":  result.EvalCount,
	})
	return result.Message.Content, nil
}

func (p *Provider) buildRequest(req vlllm.GenerateRequest) (*chatRequest, error) {
	body := &chatRequest{
		Model: p.config.ModelName,
		Messages: []message{{
			Role:    "user",
			Content: req.Prompt,
			Images:  []string{base64.StdEncoding.EncodeToString(req.Image)},
		}},
		Stream:  false,
		Options: map[string]interface{}{},
	}

	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return nil, fmt.Errorf("序列化输出结构失败: %w", err)
		}
		body.Format = schema
	} else {
		body.Format = json.RawMessage(`"json"`)
	}

	if p.config.Temperature > 0 {
		body.Options["temperature"] = p.config.Temperature
	}
	if p.config.TopP > 0 {
		body.Options["top_p"] = p.config.TopP
	}
	if p.config.MaxTokens > 0 {
		body.Options["num_predict"] = p.config.MaxTokens
	}
	return body, nil
}
