package prompt

// GradeLabels 评分1-7对应的等级名称
var GradeLabels = []string{"D", "C", "B", "A", "S", "SS", "SSS"}

// GradeLabel 返回评分对应的等级名称，超出范围时返回最低等级
func GradeLabel(rating int) string {
	if rating < 1 || rating > len(GradeLabels) {
		return GradeLabels[0]
	}
	return GradeLabels[rating-1]
}

// DimensionCount 固定的维度数量
const DimensionCount = 5

// DimensionScale 维度取值范围，雷达图坐标轴按此缩放
var DimensionScale = struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}{Min: 0, Max: 10}

var dimensionNames = map[Language][DimensionCount]string{
	LangZh: {"光泽反射", "贴合程度", "工艺细节", "轮廓形态", "整体气场"},
	LangEn: {"Gloss", "Fit", "Craftsmanship", "Silhouette", "Presence"},
	LangJa: {"光沢", "フィット感", "仕上げ", "シルエット", "存在感"},
}

// DimensionNames 返回该语言下固定的5个维度名称
func DimensionNames(lang Language) []string {
	names, ok := dimensionNames[lang]
	if !ok {
		names = dimensionNames[DefaultLanguage]
	}
	return names[:]
}

var tierDescriptions = [...]string{
	"D级：平庸的素材，几乎没有可圈点之处",
	"C级：勉强合格，细节粗糙",
	"B级：具备基础潜力的半成品",
	"A级：优秀的展示级作品",
	"S级：稀有的高级作品，材质与造型高度契合",
	"SS级：令人屏息的艺术品，几乎无可挑剔",
	"SSS级：传说级神作，光泽、轮廓与气场全部达到极致",
}
