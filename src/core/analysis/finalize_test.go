package analysis

import (
	"strings"
	"testing"

	"indicator-server-go/src/core/prompt"

	"github.com/stretchr/testify/require"
)

func newTestFinalizer() *Finalizer {
	return NewFinalizer(1, 7, testLogger())
}

func TestFinalize_Valid(t *testing.T) {
	result, err := newTestFinalizer().Finalize(encodePayload(t, validPayload()), prompt.LangZh)
	require.NoError(t, err)

	require.Equal(t, 5, result.Rating)
	require.Equal(t, "S", result.Grade)
	require.Equal(t, "镜面般的光泽", result.SummaryPhrase)
	require.Equal(t, []string{"光泽"}, result.SummaryHighlightKeywords)
	require.Len(t, result.Dimensions, 5)
	require.Equal(t, []string{"高光", "贴身", "精工"}, result.Tags)
}

func TestFinalize_CodeFence(t *testing.T) {
	raw := "好的，结果如下：\n```json\n" + encodePayload(t, validPayload()) + "\n```"
	result, err := newTestFinalizer().Finalize(raw, prompt.LangZh)
	require.NoError(t, err)
	require.Equal(t, 5, result.Rating)
}

func TestFinalize_FenceInsideComment(t *testing.T) {
	payload := validPayload()
	payload["comment"] = "细节里没有 ``` 这样的标记 ``` 残留，做工干净。"

	result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
	require.NoError(t, err)
	require.Equal(t, "细节里没有  这样的标记  残留，做工干净。", result.Comment)
}

func TestFinalize_KeepsFirstKeyword(t *testing.T) {
	tests := []struct {
		name     string
		phrase   string
		keywords []string
		expected []string
	}{
		{"多个关键词", "光泽与轮廓的气场", []string{"光泽", "轮廓", "气场"}, []string{"光泽"}},
		{"跳过空白", "利落的轮廓", []string{"  ", " 轮廓 "}, []string{"轮廓"}},
		{"第一个不在标题中", "镜面般的光泽", []string{"不存在的词", "光泽"}, []string{"光泽"}},
		{"都不在标题中", "镜面般的光泽", []string{"轮廓", "气场"}, []string{}},
		{"没有关键词", "镜面般的光泽", []string{}, []string{}},
		{"全部为空", "镜面般的光泽", []string{"", " "}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			payload["summaryPhrase"] = tt.phrase
			payload["summaryHighlightKeywords"] = tt.keywords

			result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result.SummaryHighlightKeywords)
			for _, k := range result.SummaryHighlightKeywords {
				require.Contains(t, result.SummaryPhrase, k)
			}
		})
	}
}

func TestFinalize_CleansDialogue(t *testing.T) {
	tests := []struct {
		name     string
		dialogue string
		expected string
	}{
		{"ASCII引号", `  "Stunning work."  `, "Stunning work."},
		{"中文引号", "“真是令人惊叹的光泽。”", "真是令人惊叹的光泽。"},
		{"直角引号", "「見事な仕上がりです」", "見事な仕上がりです"},
		{"换行", "第一句\n第二句\r\n", "第一句 第二句"},
		{"单引号", "'Perfect,' she said", "Perfect, she said"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := validPayload()
			payload["summaryDialogue"] = tt.dialogue

			result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
			require.NoError(t, err)
			require.Equal(t, tt.expected, result.SummaryDialogue)
			require.False(t, strings.ContainsAny(result.SummaryDialogue, "\"'“”「」\n"))
		})
	}
}

func TestFinalize_ClampsRating(t *testing.T) {
	tests := []struct {
		rating   interface{}
		expected int
		grade    string
	}{
		{9, 7, "SSS"},
		{0, 1, "D"},
		{-3, 1, "D"},
		{7, 7, "SSS"},
		{4.6, 5, "S"},
		{1e20, 7, "SSS"},
		{-1e20, 1, "D"},
	}

	for _, tt := range tests {
		payload := validPayload()
		payload["rating"] = tt.rating

		result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
		require.NoError(t, err)
		require.Equal(t, tt.expected, result.Rating)
		require.Equal(t, tt.grade, result.Grade)
	}
}

func TestFinalize_TrimsAndStripsComment(t *testing.T) {
	payload := validPayload()
	payload["comment"] = "  **光泽**非常__出色__，`细节`到位。 \n"
	payload["summaryPhrase"] = "  镜面  "

	result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
	require.NoError(t, err)
	require.Equal(t, "光泽非常出色，细节到位。", result.Comment)
	require.Equal(t, "镜面", result.SummaryPhrase)
}

func TestFinalize_Tags(t *testing.T) {
	payload := validPayload()
	payload["tags"] = []string{" 高光 ", "高光", "", "贴身", "a", "b", "c", "d", "e"}

	result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
	require.NoError(t, err)
	require.Equal(t, []string{"高光", "贴身", "a", "b", "c", "d"}, result.Tags)
}

func TestFinalize_Dimensions(t *testing.T) {
	payload := validPayload()
	payload["dimensions"] = []map[string]interface{}{
		{"name": "光泽反射", "value": 12},
		{"name": "", "value": -1},
		{"name": "工艺细节", "value": 7.5},
		{"name": "轮廓形态", "value": 8},
		{"name": "整体气场", "value": 9},
		{"name": "多余", "value": 5},
	}

	result, err := newTestFinalizer().Finalize(encodePayload(t, payload), prompt.LangZh)
	require.NoError(t, err)
	require.Len(t, result.Dimensions, 5)
	require.Equal(t, 10.0, result.Dimensions[0].Value)
	require.Equal(t, 0.0, result.Dimensions[1].Value)
	require.Equal(t, "贴合程度", result.Dimensions[1].Name)
}

func TestFinalize_Malformed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p map[string]interface{})
		raw    string
	}{
		{name: "不是JSON", raw: "抱歉，我无法评估这张图片。"},
		{name: "JSON损坏", raw: `{"rating": 5, "comment": `},
		{name: "缺少rating", mutate: func(p map[string]interface{}) { delete(p, "rating") }},
		{name: "缺少comment", mutate: func(p map[string]interface{}) { delete(p, "comment") }},
		{name: "缺少dimensions", mutate: func(p map[string]interface{}) { delete(p, "dimensions") }},
		{name: "comment为空", mutate: func(p map[string]interface{}) { p["comment"] = "   " }},
		{name: "标签全空", mutate: func(p map[string]interface{}) { p["tags"] = []string{"", " "} }},
		{name: "维度不足", mutate: func(p map[string]interface{}) {
			p["dimensions"] = []map[string]interface{}{{"name": "a", "value": 1}}
		}},
		{name: "维度缺少value", mutate: func(p map[string]interface{}) {
			p["dimensions"] = []map[string]interface{}{
				{"name": "a", "value": 1}, {"name": "b"}, {"name": "c", "value": 1},
				{"name": "d", "value": 1}, {"name": "e", "value": 1},
			}
		}},
		{name: "rating类型错误", mutate: func(p map[string]interface{}) { p["rating"] = "high" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := tt.raw
			if tt.mutate != nil {
				payload := validPayload()
				tt.mutate(payload)
				raw = encodePayload(t, payload)
			}

			result, err := newTestFinalizer().Finalize(raw, prompt.LangZh)
			require.Nil(t, result)
			require.True(t, IsKind(err, KindMalformed), "got %v", err)
		})
	}
}

func TestResultSchema(t *testing.T) {
	schema := ResultSchema()
	require.Len(t, schema.Required, len(schema.Properties))
	for _, name := range schema.Required {
		require.Contains(t, schema.Properties, name)
	}
}
