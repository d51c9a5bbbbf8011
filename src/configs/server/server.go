package server

import (
	"context"
	"net/http"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/analysis"
	"indicator-server-go/src/core/prompt"
	"indicator-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

type DefaultCfgService struct {
	logger *utils.Logger
	config *configs.Config
}

// LanguageInfo 支持的语言
type LanguageInfo struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Dimensions []string `json:"dimensions"`
}

// RatingInfo 评分区间与等级名称
type RatingInfo struct {
	Min    int      `json:"min"`
	Max    int      `json:"max"`
	Grades []string `json:"grades"`
}

// CfgResponse 展示层渲染前需要的约定
type CfgResponse struct {
	Languages       []LanguageInfo `json:"languages"`
	DefaultLanguage string         `json:"defaultLanguage"`
	Rating          RatingInfo     `json:"rating"`
	DimensionScale  struct {
		Min float64 `json:"min"`
		Max float64 `json:"max"`
	} `json:"dimensionScale"`
	MaxTags int `json:"maxTags"`
}

// NewDefaultCfgService 构造函数
func NewDefaultCfgService(config *configs.Config, logger *utils.Logger) (*DefaultCfgService, error) {
	service := &DefaultCfgService{
		logger: logger,
		config: config,
	}

	return service, nil
}

// Start 实现 CfgService 接口，注册所有 Cfg 相关路由
func (s *DefaultCfgService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	apiGroup.GET("/cfg", s.handleGet)
	apiGroup.OPTIONS("/cfg", s.handleOptions)

	s.logger.Info("Cfg HTTP服务路由注册完成")
	return nil
}

// Snapshot 生成当前配置下的展示约定
func (s *DefaultCfgService) Snapshot() CfgResponse {
	var resp CfgResponse
	for _, lang := range prompt.Languages() {
		resp.Languages = append(resp.Languages, LanguageInfo{
			Code:       string(lang),
			Name:       lang.DisplayName(),
			Dimensions: prompt.DimensionNames(lang),
		})
	}
	resp.DefaultLanguage = string(prompt.DefaultLanguage)

	a := s.config.Analysis
	resp.Rating = RatingInfo{Min: a.RatingMin, Max: a.RatingMax}
	for r := a.RatingMin; r <= a.RatingMax; r++ {
		resp.Rating.Grades = append(resp.Rating.Grades, prompt.GradeLabel(r-a.RatingMin+1))
	}

	resp.DimensionScale.Min = prompt.DimensionScale.Min
	resp.DimensionScale.Max = prompt.DimensionScale.Max
	resp.MaxTags = analysis.MaxTags
	return resp
}

func (s *DefaultCfgService) handleGet(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.JSON(http.StatusOK, s.Snapshot())
}

func (s *DefaultCfgService) handleOptions(c *gin.Context) {
	c.Header("Access-Control-Allow-Origin", "*")
	c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
	c.Header("Access-Control-Allow-Headers", "Content-Type")
	c.Status(http.StatusNoContent)
}
