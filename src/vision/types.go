package vision

import (
	"indicator-server-go/src/core/analysis"
)

// AnalyzeResponse 分析接口的标准响应
type AnalyzeResponse struct {
	Success bool                     `json:"success"`           // 是否成功
	Result  *analysis.AnalysisResult `json:"result,omitempty"`  // 分析结果（成功时）
	Message string                   `json:"message,omitempty"` // 面向用户的错误信息（失败时）
	Kind    string                   `json:"kind,omitempty"`    // 错误分类（失败时）
}

// 客户端发送的websocket消息类型
const (
	MessageAnalyze = "analyze"
	MessageReset   = "reset"
	MessageCancel  = "cancel"
)

// 服务端推送的websocket消息类型
const (
	MessageState  = "state"
	MessageDone   = "done"
	MessageFailed = "failed"
)

// ClientMessage 客户端websocket消息
type ClientMessage struct {
	Type  string `json:"type"`
	Lang  string `json:"lang,omitempty"`
	Image string `json:"image,omitempty"` // base64，允许带 data URL 前缀
}

// ServerMessage 服务端websocket消息
type ServerMessage struct {
	Type    string                   `json:"type"`
	State   analysis.State           `json:"state,omitempty"`
	Attempt int                      `json:"attempt,omitempty"`
	DelayMs int64                    `json:"delayMs,omitempty"`
	Result  *analysis.AnalysisResult `json:"result,omitempty"`
	Message string                   `json:"message,omitempty"`
	Kind    string                   `json:"kind,omitempty"`
}
