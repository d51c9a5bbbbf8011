package prompt

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language 输出语言
type Language string

const (
	LangZh Language = "zh"
	LangEn Language = "en"
	LangJa Language = "ja"
)

// DefaultLanguage 无法识别时使用的语言
const DefaultLanguage = LangZh

var supported = []Language{LangZh, LangEn, LangJa}

var matcher = language.NewMatcher([]language.Tag{
	language.Chinese,
	language.English,
	language.Japanese,
})

// ParseLanguage 解析BCP 47语言标签，例如 "en-US"、"zh-Hans"、"ja"
func ParseLanguage(s string) Language {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(s)
	if err != nil {
		return DefaultLanguage
	}
	_, idx, conf := matcher.Match(tag)
	if conf == language.No {
		return DefaultLanguage
	}
	return supported[idx]
}

// Tag 返回对应的语言标签
func (l Language) Tag() language.Tag {
	switch l {
	case LangEn:
		return language.English
	case LangJa:
		return language.Japanese
	default:
		return language.Chinese
	}
}

// DisplayName 语言的自称，例如 中文 / English / 日本語
func (l Language) DisplayName() string {
	return display.Self.Name(l.Tag())
}

// Valid 是否为支持的语言
func (l Language) Valid() bool {
	for _, s := range supported {
		if s == l {
			return true
		}
	}
	return false
}

// Languages 支持的语言列表
func Languages() []Language {
	out := make([]Language, len(supported))
	copy(out, supported)
	return out
}
