package analysis

import (
	"indicator-server-go/src/core/prompt"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// SchemaName 结构化输出的名称
const SchemaName = "analysis_result"

// MaxTags 标签数量上限
const MaxTags = 6

// Dimension 单个评分维度
type Dimension struct {
	Name  string  `json:"name" validate:"required"`
	Value float64 `json:"value" validate:"gte=0,lte=10"`
}

// AnalysisResult 分析结果，字段名与展示层约定一致
type AnalysisResult struct {
	Rating                   int         `json:"rating"`
	Grade                    string      `json:"grade" validate:"required"`
	SummaryPhrase            string      `json:"summaryPhrase" validate:"required"`
	SummaryPhraseZh          string      `json:"summaryPhraseZh"`
	SummaryPhraseEn          string      `json:"summaryPhraseEn"`
	SummaryHighlightKeywords []string    `json:"summaryHighlightKeywords" validate:"max=1,dive,required"`
	Comment                  string      `json:"comment" validate:"required"`
	SummaryDialogue          string      `json:"summaryDialogue"`
	Tags                     []string    `json:"tags" validate:"min=1,max=6,dive,required"`
	Dimensions               []Dimension `json:"dimensions" validate:"len=5,dive"`
}

// AnalysisRequest 单次分析请求
type AnalysisRequest struct {
	Image []byte          // 原始上传数据
	Lang  prompt.Language // 输出语言
}

func stringField(desc string) jsonschema.Definition {
	return jsonschema.Definition{Type: jsonschema.String, Description: desc}
}

func stringArray(desc string) jsonschema.Definition {
	return jsonschema.Definition{
		Type:        jsonschema.Array,
		Description: desc,
		Items:       &jsonschema.Definition{Type: jsonschema.String},
	}
}

// ResultSchema 上游输出的JSON结构约束
func ResultSchema() *jsonschema.Definition {
	return &jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"rating": {
				Type:        jsonschema.Integer,
				Description: "Overall tier from 1 (D) to 7 (SSS)",
			},
			"summaryPhrase":            stringField("Short title in the requested language"),
			"summaryPhraseZh":          stringField("The title in Chinese"),
			"summaryPhraseEn":          stringField("The title in English"),
			"summaryHighlightKeywords": stringArray("At most one keyword from the title to highlight"),
			"comment":                  stringField("Detailed assessment without markdown"),
			"summaryDialogue":          stringField("One spoken line, no quotation marks"),
			"tags":                     stringArray("One to six short tags"),
			"dimensions": {
				Type:        jsonschema.Array,
				Description: "Exactly five dimension scores from 0 to 10",
				Items: &jsonschema.Definition{
					Type: jsonschema.Object,
					Properties: map[string]jsonschema.Definition{
						"name":  {Type: jsonschema.String},
						"value": {Type: jsonschema.Number},
					},
					Required:             []string{"name", "value"},
					AdditionalProperties: false,
				},
			},
		},
		Required: []string{
			"rating",
			"summaryPhrase",
			"summaryPhraseZh",
			"summaryPhraseEn",
			"summaryHighlightKeywords",
			"comment",
			"summaryDialogue",
			"tags",
			"dimensions",
		},
		AdditionalProperties: false,
	}
}
