package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Provider Gemini generateContent 接口的VLLLM提供者
type Provider struct {
	config *vlllm.Config
	client *resty.Client
	logger *utils.Logger
}

// init 注册Gemini VLLLM提供者
func init() {
	vlllm.Register("gemini", NewProvider)
}

// NewProvider 创建Gemini VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Generator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("缺少 Gemini API key")
	}
	if config.ModelName == "" {
		return nil, fmt.Errorf("缺少 Gemini 模型名称")
	}

	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetHeader("x-goog-api-key", config.APIKey).
		SetTimeout(2 * time.Minute)

	logger.Debug("Gemini VLLLM Provider创建成功", map[string]interface{}{
		"model_name": config.ModelName,
		"base_url":   baseURL,
	})

	return &Provider{config: config, client: client, logger: logger}, nil
}

// Name 提供者名称
func (p *Provider) Name() string {
	return "gemini"
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string                 `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]interface{} `json:"responseSchema,omitempty"`
	Temperature      *float64               `json:"temperature,omitempty"`
	TopP             *float64               `json:"topP,omitempty"`
	MaxOutputTokens  int                    `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Generate 发送单次 generateContent 请求
func (p *Provider) Generate(ctx context.Context, req vlllm.GenerateRequest) (string, error) {
	var result generateResponse
	var apiErr errorResponse

	resp, err := p.client.R().
		SetContext(ctx).
		SetPathParam("model", p.config.ModelName).
		SetBody(p.buildRequest(req)).
		SetResult(&result).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", vlllm.NewCallError(ctx, p.Name(), 0, err)
	}

	if resp.IsError() {
		callErr := vlllm.NewCallError(ctx, p.Name(), resp.StatusCode(),
			fmt.Errorf("%s: %s", apiErr.Error.Status, apiErr.Error.Message))
		if isTransientStatus(apiErr.Error.Status) {
			callErr.Kind = vlllm.KindTransient
		}
		return "", callErr
	}

	if result.PromptFeedback != nil && result.PromptFeedback.BlockReason != "" {
		return "", vlllm.NewCallError(ctx, p.Name(), 0,
			fmt.Errorf("请求被拦截: %s", result.PromptFeedback.BlockReason))
	}

	var sb strings.Builder
	for _, candidate := range result.Candidates {
		for _, pt := range candidate.Content.Parts {
			sb.WriteString(pt.Text)
		}
		if sb.Len() > 0 {
			p.logger.Debug("Gemini VLLLM 返回", map[string]interface{}{
				"finish_reason":     candidate.FinishReason,
				"prompt_tokens":     result.UsageMetadata.PromptTokenCount,
				"completion_tokens": result.UsageMetadata.CandidatesTokenCount,
			})
			break
		}
	}
	if sb.Len() == 0 {
		return "", vlllm.ErrEmptyResponse
	}
	return sb.String(), nil
}

func (p *Provider) buildRequest(req vlllm.GenerateRequest) generateRequest {
	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{InlineData: &inlineData{
					MimeType: req.MimeType,
					Data:     base64.StdEncoding.EncodeToString(req.Image),
				}},
				{Text: req.Prompt},
			},
		}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			MaxOutputTokens:  p.config.MaxTokens,
		},
	}
	if req.Schema != nil {
		body.GenerationConfig.ResponseSchema = ConvertSchema(*req.Schema)
	}
	if p.config.Temperature > 0 {
		t := p.config.Temperature
		body.GenerationConfig.Temperature = &t
	}
	if p.config.TopP > 0 {
		topP := p.config.TopP
		body.GenerationConfig.TopP = &topP
	}
	return body
}

func isTransientStatus(status string) bool {
	switch status {
	case "UNAVAILABLE", "RESOURCE_EXHAUSTED", "INTERNAL", "DEADLINE_EXCEEDED":
		return true
	}
	return false
}

// ConvertSchema 把 JSON Schema 转换为 Gemini OpenAPI 子集格式
// 类型名大写，不支持 additionalProperties
func ConvertSchema(def jsonschema.Definition) map[string]interface{} {
	out := map[string]interface{}{
		"type": strings.ToUpper(string(def.Type)),
	}
	if def.Description != "" {
		out["description"] = def.Description
	}
	if len(def.Enum) > 0 {
		out["enum"] = def.Enum
	}
	if len(def.Properties) > 0 {
		props := make(map[string]interface{}, len(def.Properties))
		for name, prop := range def.Properties {
			props[name] = ConvertSchema(prop)
		}
		out["properties"] = props
	}
	if len(def.Required) > 0 {
		out["required"] = def.Required
	}
	if def.Items != nil {
		out["items"] = ConvertSchema(*def.Items)
	}
	return out
}
