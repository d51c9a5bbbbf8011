package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"indicator-server-go/src/core/prompt"
)

// Kind 分析失败的错误分类
type Kind string

const (
	KindTransient Kind = "transient" // 上游暂时不可用，可重试
	KindCongested Kind = "congested" // 重试次数耗尽，服务拥塞
	KindFatal     Kind = "fatal"     // 不可重试的上游错误
	KindTimeout   Kind = "timeout"   // 上游调用超时
	KindMalformed Kind = "malformed" // 上游返回内容不符合结构
	KindDecode    Kind = "decode"    // 图片无法解码
	KindCanceled  Kind = "canceled"  // 调用方取消
)

// ErrBusy 同一会话已有分析正在进行
var ErrBusy = errors.New("已有分析正在进行")

// Error 分析流水线错误
type Error struct {
	Kind     Kind   // 错误分类
	Op       string // 出错的阶段
	Attempts int    // 已进行的上游调用次数
	Err      error  // 底层错误
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s 失败(%s)", e.Op, e.Kind)
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s，共尝试 %d 次", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, op string, attempts int, err error) *Error {
	return &Error{Kind: kind, Op: op, Attempts: attempts, Err: err}
}

// KindOf 返回错误分类，未分类的错误视为 fatal
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindFatal
}

// IsKind 判断错误是否属于指定分类
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusCode 错误分类对应的HTTP状态码
func StatusCode(err error) int {
	if errors.Is(err, ErrBusy) {
		return http.StatusConflict
	}
	switch KindOf(err) {
	case KindDecode:
		return http.StatusBadRequest
	case KindMalformed, KindFatal:
		return http.StatusBadGateway
	case KindCongested, KindTransient:
		return http.StatusServiceUnavailable
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCanceled:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

type localized map[prompt.Language]string

var (
	msgCongested = localized{
		prompt.LangZh: "服务繁忙，请稍后再试。",
		prompt.LangEn: "The service is busy right now. Please try again later.",
		prompt.LangJa: "サービスが混み合っています。しばらくしてから再度お試しください。",
	}
	msgDecode = localized{
		prompt.LangZh: "无法读取这张图片，请换一张 JPEG、PNG 或 WEBP 图片。",
		prompt.LangEn: "This image could not be read. Please choose a JPEG, PNG or WEBP file.",
		prompt.LangJa: "画像を読み込めませんでした。JPEG、PNG、WEBP の画像を選んでください。",
	}
	msgTimeout = localized{
		prompt.LangZh: "分析超时，请稍后再试。",
		prompt.LangEn: "The analysis timed out. Please try again later.",
		prompt.LangJa: "解析がタイムアウトしました。しばらくしてから再度お試しください。",
	}
	msgCanceled = localized{
		prompt.LangZh: "分析已取消。",
		prompt.LangEn: "The analysis was canceled.",
		prompt.LangJa: "解析はキャンセルされました。",
	}
	msgBusy = localized{
		prompt.LangZh: "上一张图片还在分析中。",
		prompt.LangEn: "The previous image is still being analyzed.",
		prompt.LangJa: "前の画像を解析中です。",
	}
	msgGeneric = localized{
		prompt.LangZh: "分析失败，请检查网络连接和API配置。",
		prompt.LangEn: "Analysis failed. Please verify your network connection and API configuration.",
		prompt.LangJa: "解析に失敗しました。ネットワーク接続とAPI設定を確認してください。",
	}
)

func (m localized) get(lang prompt.Language) string {
	if msg, ok := m[lang]; ok {
		return msg
	}
	return m[prompt.DefaultLanguage]
}

// UserMessage 面向用户的错误提示，不包含上游原始错误
func UserMessage(err error, lang prompt.Language) string {
	if errors.Is(err, ErrBusy) {
		return msgBusy.get(lang)
	}
	switch KindOf(err) {
	case KindCongested, KindTransient:
		return msgCongested.get(lang)
	case KindDecode:
		return msgDecode.get(lang)
	case KindTimeout:
		return msgTimeout.get(lang)
	case KindCanceled:
		return msgCanceled.get(lang)
	}
	return msgGeneric.get(lang)
}
