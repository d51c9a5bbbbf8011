package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLanguage(t *testing.T) {
	tests := []struct {
		input    string
		expected Language
	}{
		{"zh", LangZh},
		{"zh-CN", LangZh},
		{"en", LangEn},
		{"en-US", LangEn},
		{"ja", LangJa},
		{"ja-JP", LangJa},
		{"", LangZh},
		{"!!", LangZh},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			require.Equal(t, tt.expected, ParseLanguage(tt.input))
		})
	}
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "中文", LangZh.DisplayName())
	require.Equal(t, "English", LangEn.DisplayName())
	require.Equal(t, "日本語", LangJa.DisplayName())
}

func TestBuild_IsPureAndEmbedsLanguage(t *testing.T) {
	req := require.New(t)

	for _, lang := range Languages() {
		p := Build(lang)
		req.Equal(p, Build(lang))
		req.Contains(p, "语言设定："+lang.DisplayName())
		for _, name := range DimensionNames(lang) {
			req.Contains(p, name)
		}
	}
	req.NotEqual(Build(LangZh), Build(LangEn))
}

func TestBuild_ContainsRubricAndFields(t *testing.T) {
	req := require.New(t)
	p := Build(LangEn)

	req.Contains(p, "1% 的评估")
	for i := 1; i <= 7; i++ {
		req.Contains(p, GradeLabel(i)+"级")
	}
	for _, field := range []string{
		"rating", "summaryPhrase", "summaryPhraseZh", "summaryPhraseEn",
		"summaryHighlightKeywords", "comment", "summaryDialogue", "tags", "dimensions",
	} {
		req.Contains(p, "- "+field+":")
	}
	req.False(strings.Contains(p, "%!"), "format verbs must be fully substituted")
}

func TestBuild_UnknownLanguageFallsBack(t *testing.T) {
	require.Equal(t, Build(LangZh), Build(Language("fr")))
}

func TestGradeLabel(t *testing.T) {
	require.Equal(t, "D", GradeLabel(1))
	require.Equal(t, "A", GradeLabel(4))
	require.Equal(t, "SSS", GradeLabel(7))
	require.Equal(t, "D", GradeLabel(0))
	require.Equal(t, "D", GradeLabel(9))
}

func TestDimensionNames(t *testing.T) {
	for _, lang := range Languages() {
		require.Len(t, DimensionNames(lang), DimensionCount)
	}
	require.Equal(t, DimensionNames(LangZh), DimensionNames(Language("xx")))
}
