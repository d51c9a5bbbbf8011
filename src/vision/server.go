package vision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/analysis"
	"indicator-server-go/src/core/prompt"
	"indicator-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
)

// DefaultVisionService 图片分析HTTP服务
type DefaultVisionService struct {
	logger   *utils.Logger
	config   *configs.Config
	runner   analysis.Runner
	provider string
	model    string
}

// NewDefaultVisionService 构造函数
func NewDefaultVisionService(config *configs.Config, runner analysis.Runner, logger *utils.Logger) (*DefaultVisionService, error) {
	if runner == nil {
		return nil, fmt.Errorf("分析流水线未初始化")
	}
	name, vc := config.SelectedVLLM()
	return &DefaultVisionService{
		logger:   logger,
		config:   config,
		runner:   runner,
		provider: name,
		model:    vc.ModelName,
	}, nil
}

// Start 实现 VisionService 接口，注册所有分析相关路由
func (s *DefaultVisionService) Start(ctx context.Context, engine *gin.Engine, apiGroup *gin.RouterGroup) error {
	// GET用于状态检查，POST用于图片分析
	apiGroup.GET("/analyze", s.handleGet)
	apiGroup.POST("/analyze", s.handlePost)
	apiGroup.OPTIONS("/analyze", s.handleOptions)
	apiGroup.GET("/analyze/ws", s.handleWebSocket)

	s.logger.Info("分析HTTP服务路由注册完成")
	return nil
}

// handleOptions 处理OPTIONS请求（CORS）
func (s *DefaultVisionService) handleOptions(c *gin.Context) {
	s.addCORSHeaders(c)
	c.Status(http.StatusNoContent)
}

// handleGet 处理GET请求（状态检查）
func (s *DefaultVisionService) handleGet(c *gin.Context) {
	s.addCORSHeaders(c)
	c.String(http.StatusOK, fmt.Sprintf("分析接口运行正常，当前模型: %s (%s)", s.model, s.provider))
}

// handlePost 处理POST请求（图片分析）
func (s *DefaultVisionService) handlePost(c *gin.Context) {
	s.addCORSHeaders(c)

	data, err := s.readUpload(c)
	lang := requestLanguage(c)
	if err != nil {
		s.logger.Warn("分析请求解析失败", err)
		s.respond(c, http.StatusBadRequest, AnalyzeResponse{
			Message: err.Error(),
			Kind:    "bad_request",
		})
		return
	}

	result, err := s.runner.Run(c.Request.Context(), analysis.AnalysisRequest{
		Image: data,
		Lang:  lang,
	}, nil)
	if err != nil {
		s.respondError(c, err, lang)
		return
	}

	s.respond(c, http.StatusOK, AnalyzeResponse{Success: true, Result: result})
}

// readUpload 读取multipart表单中的图片文件
func (s *DefaultVisionService) readUpload(c *gin.Context) ([]byte, error) {
	maxSize := s.config.Web.MaxUploadSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("图片大小超过限制，最大允许%dMB", maxSize/1024/1024)
		}
		return nil, fmt.Errorf("缺少图片文件: %v", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取图片数据失败: %v", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("图片数据为空")
	}

	s.logger.Debug("收到分析请求", map[string]interface{}{
		"filename": header.Filename,
		"size":     len(data),
	})
	return data, nil
}

// requestLanguage 优先使用表单中的 lang，其次是 Accept-Language
func requestLanguage(c *gin.Context) prompt.Language {
	if lang := c.Request.FormValue("lang"); lang != "" {
		return prompt.ParseLanguage(lang)
	}
	if lang := c.Query("lang"); lang != "" {
		return prompt.ParseLanguage(lang)
	}
	accept := c.GetHeader("Accept-Language")
	if i := strings.IndexAny(accept, ",;"); i != -1 {
		accept = accept[:i]
	}
	return prompt.ParseLanguage(accept)
}

// addCORSHeaders 添加CORS头，来源不在 allow_origins 中时不返回 Allow-Origin
func (s *DefaultVisionService) addCORSHeaders(c *gin.Context) {
	if allowed := s.allowOrigin(c.GetHeader("Origin")); allowed != "" {
		c.Header("Access-Control-Allow-Origin", allowed)
	}
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "content-type, accept-language")
	c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
}

func (s *DefaultVisionService) allowOrigin(origin string) string {
	for _, o := range s.config.Web.AllowOrigins {
		if o == "*" {
			return "*"
		}
		if origin != "" && o == origin {
			return origin
		}
	}
	return ""
}

// respondError 按错误分类返回状态码和面向用户的提示，不暴露上游原始错误
func (s *DefaultVisionService) respondError(c *gin.Context, err error, lang prompt.Language) {
	s.respond(c, analysis.StatusCode(err), AnalyzeResponse{
		Message: analysis.UserMessage(err, lang),
		Kind:    string(analysis.KindOf(err)),
	})
}

func (s *DefaultVisionService) respond(c *gin.Context, status int, resp AnalyzeResponse) {
	c.JSON(status, resp)
}
