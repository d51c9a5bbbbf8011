package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

// Provider OpenAI兼容接口的VLLLM提供者，使用 json_schema 约束输出
type Provider struct {
	config *vlllm.Config
	client *openai.Client
	logger *utils.Logger
}

// init 注册OpenAI VLLLM提供者
func init() {
	vlllm.Register("openai", NewProvider)
}

// NewProvider 创建OpenAI VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (vlllm.Generator, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("缺少 OpenAI API key")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	logger.Debug("OpenAI VLLLM Provider创建成功", map[string]interface{}{
		"model_name": config.ModelName,
		"base_url":   clientConfig.BaseURL,
	})

	return &Provider{
		config: config,
		client: openai.NewClientWithConfig(clientConfig),
		logger: logger,
	}, nil
}

// Name 提供者名称
func (p *Provider) Name() string {
	return "openai"
}

// Generate 发送单次 chat completion 请求
func (p *Provider) Generate(ctx context.Context, req vlllm.GenerateRequest) (string, error) {
	request := p.buildRequest(req)

	resp, err := p.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return "", p.classify(ctx, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", vlllm.ErrEmptyResponse
	}

	p.logger.Debug("OpenAI VLLLM 返回", map[string]interface{}{
		"finish_reason":     resp.Choices[0].FinishReason,
		"prompt_tokens":     resp.Usage.PromptTokens,
		"completion_tokens": resp.Usage.CompletionTokens,
	})
	return resp.Choices[0].Message.Content, nil
}

func (p *Provider) buildRequest(req vlllm.GenerateRequest) openai.ChatCompletionRequest {
	dataURL := fmt.Sprintf("data:%s;base64,%s", req.MimeType, base64.StdEncoding.EncodeToString(req.Image))

	request := openai.ChatCompletionRequest{
		Model: p.config.ModelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: req.Prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    dataURL,
							Detail: openai.ImageURLDetailAuto,
						},
					},
				},
			},
		},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
	}

	if req.Schema != nil {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: req.Schema,
				Strict: true,
			},
		}
	} else {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return request
}

// classify 把 go-openai 的错误类型转换为 CallError
func (p *Provider) classify(ctx context.Context, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		callErr := vlllm.NewCallError(ctx, p.Name(), apiErr.HTTPStatusCode, err)
		if callErr.Kind == vlllm.KindFatal && apiErr.HTTPStatusCode == 0 {
			callErr.Kind = vlllm.ClassifyMessage(apiErr.Message)
		}
		return callErr
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return vlllm.NewCallError(ctx, p.Name(), reqErr.HTTPStatusCode, err)
	}

	return vlllm.NewCallError(ctx, p.Name(), 0, err)
}
