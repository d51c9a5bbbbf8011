package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"indicator-server-go/src/core/metrics"
	"indicator-server-go/src/core/prompt"
	"indicator-server-go/src/core/utils"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type rawDimension struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
}

// rawResult 上游原始结构，指针字段用于区分缺失和零值
type rawResult struct {
	Rating                   *float64       `json:"rating"`
	SummaryPhrase            *string        `json:"summaryPhrase"`
	SummaryPhraseZh          *string        `json:"summaryPhraseZh"`
	SummaryPhraseEn          *string        `json:"summaryPhraseEn"`
	SummaryHighlightKeywords []string       `json:"summaryHighlightKeywords"`
	Comment                  *string        `json:"comment"`
	SummaryDialogue          *string        `json:"summaryDialogue"`
	Tags                     []string       `json:"tags"`
	Dimensions               []rawDimension `json:"dimensions"`
}

// Finalizer 校验并整理上游结果
type Finalizer struct {
	ratingMin int
	ratingMax int
	logger    *utils.Logger
	validate  *validator.Validate
}

// NewFinalizer 创建结果整理器，评分区间为闭区间 [ratingMin, ratingMax]
func NewFinalizer(ratingMin, ratingMax int, logger *utils.Logger) *Finalizer {
	return &Finalizer{
		ratingMin: ratingMin,
		ratingMax: ratingMax,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func malformed(format string, args ...interface{}) error {
	return newError(KindMalformed, "finalize", 0, fmt.Errorf(format, args...))
}

// Finalize 解析上游JSON并整理为最终结果，不返回部分结果
func (f *Finalizer) Finalize(raw string, lang prompt.Language) (*AnalysisResult, error) {
	payload := utils.ExtractJSON(raw)
	if payload == "" {
		return nil, malformed("返回内容中没有JSON")
	}

	var r rawResult
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return nil, malformed("解析JSON失败: %w", err)
	}

	if missing := r.missingFields(); len(missing) > 0 {
		return nil, malformed("缺少必要字段: %s", strings.Join(missing, ", "))
	}

	result := &AnalysisResult{
		SummaryPhrase:   strings.TrimSpace(*r.SummaryPhrase),
		SummaryPhraseZh: strings.TrimSpace(*r.SummaryPhraseZh),
		SummaryPhraseEn: strings.TrimSpace(*r.SummaryPhraseEn),
		Comment:         strings.TrimSpace(utils.RemoveMarkdownEmphasis(*r.Comment)),
		SummaryDialogue: cleanDialogue(*r.SummaryDialogue),
	}
	if result.SummaryPhrase == "" {
		return nil, malformed("summaryPhrase 为空")
	}
	if result.Comment == "" {
		return nil, malformed("comment 为空")
	}

	result.Rating = f.clampRating(*r.Rating)
	result.Grade = prompt.GradeLabel(result.Rating - f.ratingMin + 1)
	result.SummaryHighlightKeywords = f.firstKeyword(r.SummaryHighlightKeywords, result.SummaryPhrase)

	tags, err := f.tags(r.Tags)
	if err != nil {
		return nil, err
	}
	result.Tags = tags

	dims, err := f.dimensions(r.Dimensions, lang)
	if err != nil {
		return nil, err
	}
	result.Dimensions = dims

	if err := f.validate.Struct(result); err != nil {
		return nil, malformed("结果校验失败: %w", err)
	}

	f.checkLanguage(result.Comment, lang)
	return result, nil
}

func (r *rawResult) missingFields() []string {
	var missing []string
	if r.Rating == nil {
		missing = append(missing, "rating")
	}
	if r.SummaryPhrase == nil {
		missing = append(missing, "summaryPhrase")
	}
	if r.SummaryPhraseZh == nil {
		missing = append(missing, "summaryPhraseZh")
	}
	if r.SummaryPhraseEn == nil {
		missing = append(missing, "summaryPhraseEn")
	}
	if r.Comment == nil {
		missing = append(missing, "comment")
	}
	if r.SummaryDialogue == nil {
		missing = append(missing, "summaryDialogue")
	}
	if r.Tags == nil {
		missing = append(missing, "tags")
	}
	if r.Dimensions == nil {
		missing = append(missing, "dimensions")
	}
	return missing
}

// cleanDialogue 去掉引号和换行，台词只保留一行
func cleanDialogue(s string) string {
	return strings.TrimSpace(utils.JoinLines(utils.StripQuotes(s)))
}

func (f *Finalizer) clampRating(v float64) int {
	// 先在float64上截断，超大值转int会溢出
	clamped := int(lo.Clamp(math.Round(v), float64(f.ratingMin), float64(f.ratingMax)))
	if float64(clamped) != v {
		f.logger.Warn("评分超出范围或非整数，已修正", map[string]interface{}{
			"raw":     v,
			"clamped": clamped,
		})
		metrics.ResponseAdjustmentsTotal.WithLabelValues("rating_clamped").Inc()
	}
	return clamped
}

// firstKeyword 只保留第一个出现在标题中的关键词
func (f *Finalizer) firstKeyword(keywords []string, phrase string) []string {
	kept := lo.Filter(lo.Map(keywords, func(k string, _ int) string {
		return strings.TrimSpace(k)
	}), func(k string, _ int) bool {
		return k != "" && strings.Contains(phrase, k)
	})
	if len(kept) == 0 {
		return []string{}
	}
	if len(kept) > 1 {
		metrics.ResponseAdjustmentsTotal.WithLabelValues("keywords_truncated").Inc()
	}
	return kept[:1]
}

func (f *Finalizer) tags(raw []string) ([]string, error) {
	tags := lo.Uniq(lo.Compact(lo.Map(raw, func(t string, _ int) string {
		return strings.TrimSpace(utils.StripQuotes(t))
	})))
	if len(tags) == 0 {
		return nil, malformed("tags 为空")
	}
	if len(tags) > MaxTags {
		f.logger.Warn("标签数量超出上限，已截断", map[string]interface{}{"count": len(tags)})
		metrics.ResponseAdjustmentsTotal.WithLabelValues("tags_truncated").Inc()
		tags = tags[:MaxTags]
	}
	return tags, nil
}

func (f *Finalizer) dimensions(raw []rawDimension, lang prompt.Language) ([]Dimension, error) {
	if len(raw) < prompt.DimensionCount {
		return nil, malformed("dimensions 数量不足: %d", len(raw))
	}
	if len(raw) > prompt.DimensionCount {
		f.logger.Warn("维度数量超出，已截断", map[string]interface{}{"count": len(raw)})
		metrics.ResponseAdjustmentsTotal.WithLabelValues("dimensions_truncated").Inc()
		raw = raw[:prompt.DimensionCount]
	}

	names := prompt.DimensionNames(lang)
	dims := make([]Dimension, 0, prompt.DimensionCount)
	for i, d := range raw {
		if d.Value == nil {
			return nil, malformed("dimensions[%d] 缺少 value", i)
		}
		name := strings.TrimSpace(d.Name)
		if name == "" {
			name = names[i]
		}
		value := lo.Clamp(*d.Value, prompt.DimensionScale.Min, prompt.DimensionScale.Max)
		if value != *d.Value {
			metrics.ResponseAdjustmentsTotal.WithLabelValues("dimension_clamped").Inc()
		}
		dims = append(dims, Dimension{Name: name, Value: value})
	}
	return dims, nil
}

var detectedLanguages = map[prompt.Language]whatlanggo.Lang{
	prompt.LangZh: whatlanggo.Cmn,
	prompt.LangEn: whatlanggo.Eng,
	prompt.LangJa: whatlanggo.Jpn,
}

// checkLanguage 点评语言与请求不一致时只记录，不视为失败
func (f *Finalizer) checkLanguage(text string, lang prompt.Language) {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return
	}
	expected, ok := detectedLanguages[lang]
	if !ok || info.Lang == expected {
		return
	}
	f.logger.Warn("点评语言与请求语言不一致", map[string]interface{}{
		"requested": string(lang),
		"detected":  info.Lang.String(),
	})
	metrics.LanguageMismatchTotal.WithLabelValues(string(lang), info.Lang.String()).Inc()
}
