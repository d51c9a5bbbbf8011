package mcptool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/analysis"
	"indicator-server-go/src/core/prompt"
	"indicator-server-go/src/core/utils"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "indicator-server"
	serverVersion = "1.0.0"

	ToolAnalyzeImage = "analyze_image"
)

// Server 通过MCP工具对外提供图片分析
type Server struct {
	config *configs.Config
	runner analysis.Runner
	logger *utils.Logger
	mcp    *server.MCPServer
	sse    *server.SSEServer
}

// NewServer 创建MCP服务并注册工具
func NewServer(config *configs.Config, runner analysis.Runner, logger *utils.Logger) *Server {
	s := &Server{
		config: config,
		runner: runner,
		logger: logger,
		mcp: server.NewMCPServer(serverName, serverVersion,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
	}

	s.mcp.AddTool(analyzeTool(), s.handleAnalyze)

	opts := []server.SSEOption{}
	if config.MCP.BaseURL != "" {
		opts = append(opts, server.WithBaseURL(config.MCP.BaseURL))
	}
	s.sse = server.NewSSEServer(s.mcp, opts...)
	return s
}

func analyzeTool() mcp.Tool {
	langs := make([]string, 0, 3)
	for _, l := range prompt.Languages() {
		langs = append(langs, string(l))
	}

	return mcp.NewTool(ToolAnalyzeImage,
		mcp.WithDescription("Grade an image and return the structured assessment as JSON"),
		mcp.WithString("image_base64",
			mcp.Required(),
			mcp.Description("Image bytes encoded as base64, a data URL prefix is accepted"),
		),
		mcp.WithString("lang",
			mcp.Description("Output language"),
			mcp.Enum(langs...),
		),
	)
}

// handleAnalyze 工具调用入口，失败时返回工具错误而不是协议错误
func (s *Server) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()

	encoded, _ := args["image_base64"].(string)
	if encoded == "" {
		return mcp.NewToolResultError("缺少参数 image_base64"), nil
	}
	langArg, _ := args["lang"].(string)
	lang := prompt.ParseLanguage(langArg)

	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i != -1 {
		encoded = encoded[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return mcp.NewToolResultError("image_base64 不是有效的base64"), nil
	}

	result, err := s.runner.Run(ctx, analysis.AnalysisRequest{Image: data, Lang: lang}, nil)
	if err != nil {
		s.logger.Warn("MCP分析调用失败", map[string]interface{}{
			"kind": string(analysis.KindOf(err)),
		}, err)
		return mcp.NewToolResultError(analysis.UserMessage(err, lang)), nil
	}

	out, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("序列化分析结果失败: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}

// Start 启动SSE服务，阻塞直到服务关闭
func (s *Server) Start() error {
	s.logger.Info("MCP SSE服务启动", map[string]interface{}{"addr": s.config.MCP.Addr})
	if err := s.sse.Start(s.config.MCP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("MCP服务启动失败: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭SSE服务
func (s *Server) Shutdown(ctx context.Context) error {
	return s.sse.Shutdown(ctx)
}
