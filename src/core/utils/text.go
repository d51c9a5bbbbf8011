package utils

import (
	"encoding/json"
	"regexp"
	"strings"
)

// quoteReplacer 移除各类引号：ASCII、弯引号、中日文直角引号
var quoteReplacer = strings.NewReplacer(
	`"`, "",
	`'`, "",
	"“", "",
	"”", "",
	"‘", "",
	"’", "",
	"「", "",
	"」", "",
	"『", "",
	"』", "",
	"«", "",
	"»", "",
	"＂", "",
)

// StripQuotes 去除文本中的所有引号字符
func StripQuotes(text string) string {
	return quoteReplacer.Replace(text)
}

// JoinLines 将多行文本合并为一行，连续空白压缩为单个空格
func JoinLines(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// emphasisPattern 匹配Markdown强调标记（**粗体**、__粗体__、`代码`）
var emphasisPattern = regexp.MustCompile("\\*\\*|__|`")

// RemoveMarkdownEmphasis 移除Markdown强调符号，保留正文中的标点
func RemoveMarkdownEmphasis(text string) string {
	return emphasisPattern.ReplaceAllString(text, "")
}

// ExtractJSON 从模型回复中提取JSON对象，兼容```json代码块包裹
func ExtractJSON(response string) string {
	response = strings.TrimSpace(response)

	// 已是JSON对象时不找代码块，字段内容里可能出现```
	if json.Valid([]byte(response)) {
		return response
	}
	if strings.HasPrefix(response, "{") {
		return braceSpan(response)
	}

	if start := strings.Index(response, "```"); start != -1 {
		rest := response[start+3:]
		if end := strings.Index(rest, "```"); end != -1 {
			block := strings.TrimSpace(rest[:end])
			block = strings.TrimPrefix(block, "json")
			return strings.TrimSpace(block)
		}
	}
	return braceSpan(response)
}

// braceSpan 截取第一个 { 到最后一个 } 之间的内容
func braceSpan(response string) string {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end < start {
		return response
	}
	return response[start : end+1]
}
