package vlllm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai/jsonschema"
)

//go:generate go run go.uber.org/mock/mockgen -source=vlllm.go -destination=../../../mocks/mock_generator.go -package=mocks

// Generator 视觉大模型的结构化生成接口，每次调用对应一次上游请求
type Generator interface {
	// Name 返回提供者名称，例如 openai / gemini / ollama
	Name() string
	// Generate 发送图片与提示词，要求按照 Schema 返回JSON文本
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// GenerateRequest 单次生成请求，重试时原样重发
type GenerateRequest struct {
	Image      []byte                 // 已归一化的图片数据
	MimeType   string                 // 图片MIME类型
	Prompt     string                 // 提示词
	SchemaName string                 // 输出结构名称
	Schema     *jsonschema.Definition // 输出结构
}

// Config VLLLM配置结构
type Config struct {
	Type        string
	ModelName   string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Data        map[string]interface{}
}

// ErrEmptyResponse 上游返回成功但没有可用内容
var ErrEmptyResponse = errors.New("上游返回内容为空")

// ErrorKind 上游错误分类
type ErrorKind string

const (
	KindTransient ErrorKind = "transient" // 过载、不可用，可重试
	KindTimeout   ErrorKind = "timeout"   // 单次调用超时
	KindCanceled  ErrorKind = "canceled"  // 调用方取消
	KindFatal     ErrorKind = "fatal"     // 请求错误、鉴权失败、配额等，不重试
)

// CallError 适配层分类后的上游错误
type CallError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Err        error
}

func (e *CallError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s 调用失败(%s, HTTP %d): %v", e.Provider, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s 调用失败(%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// KindOf 返回错误分类，非 CallError 一律视为 fatal
func KindOf(err error) ErrorKind {
	var callErr *CallError
	if errors.As(err, &callErr) {
		return callErr.Kind
	}
	return KindFatal
}

// ClassifyStatus 按HTTP状态码分类
func ClassifyStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return KindTransient
	case http.StatusRequestTimeout:
		return KindTimeout
	}
	return KindFatal
}

// transientMarkers 无状态码时用于识别过载的消息片段
var transientMarkers = []string{
	"overloaded",
	"unavailable",
	"try again later",
	"resource_exhausted",
	"rate limit",
	"503",
}

// ClassifyMessage 只在适配层边界使用的兜底分类
func ClassifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return KindTransient
		}
	}
	return KindFatal
}

// NewCallError 结合上下文、状态码和错误消息生成分类后的错误
func NewCallError(ctx context.Context, provider string, status int, err error) *CallError {
	ce := &CallError{Provider: provider, StatusCode: status, Err: err}

	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		ce.Kind = KindCanceled
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		ce.Kind = KindTimeout
	case status != 0:
		ce.Kind = ClassifyStatus(status)
	default:
		ce.Kind = ClassifyMessage(err.Error())
	}
	return ce
}
