package utils

import (
	"testing"
)

func TestStripQuotes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "ASCII双引号",
			input:    `"你还记得怎么呼吸吗"`,
			expected: "你还记得怎么呼吸吗",
		},
		{
			name:     "弯引号",
			input:    "“Stay still.”",
			expected: "Stay still.",
		},
		{
			name:     "直角引号",
			input:    "「じっとして」『いい子』",
			expected: "じっとしていい子",
		},
		{
			name:     "单引号",
			input:    "it's 'fine'",
			expected: "its fine",
		},
		{
			name:     "无引号",
			input:    "纯文本",
			expected: "纯文本",
		},
		{
			name:     "空字符串",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := StripQuotes(tt.input)
			if result != tt.expected {
				t.Errorf("StripQuotes(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestJoinLines(t *testing.T) {
	result := JoinLines("  第一行\n第二行\r\n\t第三行  ")
	expected := "第一行 第二行 第三行"
	if result != expected {
		t.Errorf("JoinLines = %q, want %q", result, expected)
	}
}

func TestRemoveMarkdownEmphasis(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"粗体", "这是**重点**内容", "这是重点内容"},
		{"下划线粗体", "__bold__ text", "bold text"},
		{"行内代码", "use `glossy` finish", "use glossy finish"},
		{"保留普通标点", "A-B (C) *single*", "A-B (C) *single*"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RemoveMarkdownEmphasis(tt.input)
			if result != tt.expected {
				t.Errorf("RemoveMarkdownEmphasis(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"纯JSON", `{"rating":3}`, `{"rating":3}`},
		{"代码块", "```json\n{\"rating\":3}\n```", `{"rating":3}`},
		{"无语言标记代码块", "```\n{\"rating\":3}\n```", `{"rating":3}`},
		{"前后有说明文字", "结果如下：{\"rating\":3} 完毕", `{"rating":3}`},
		{"不是JSON", "no json here", "no json here"},
		{"字段内含代码块标记", "{\"comment\":\"``` 标记 ```\"}", "{\"comment\":\"``` 标记 ```\"}"},
		{"对象后有多余文字", "{\"comment\":\"```x```\"} 完毕", "{\"comment\":\"```x```\"}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)
			if result != tt.expected {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

// 基准测试
func BenchmarkStripQuotes(b *testing.B) {
	testString := "“乖乖站好”，她说：「不要动」。\"别眨眼\""

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		StripQuotes(testString)
	}
}
