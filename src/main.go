package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"indicator-server-go/src/configs"
	cfgserver "indicator-server-go/src/configs/server"
	"indicator-server-go/src/core/analysis"
	"indicator-server-go/src/core/image"
	"indicator-server-go/src/core/metrics"
	"indicator-server-go/src/core/pool"
	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"
	"indicator-server-go/src/mcptool"
	"indicator-server-go/src/vision"

	// 导入所有providers以确保init函数被调用
	_ "indicator-server-go/src/core/providers/vlllm/gemini"
	_ "indicator-server-go/src/core/providers/vlllm/ollama"
	_ "indicator-server-go/src/core/providers/vlllm/openai"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func LoadConfigAndLogger() (*configs.Config, *utils.Logger, error) {
	// 加载配置,默认使用.config.yaml，INDICATOR_* 环境变量覆盖
	config, configPath, err := configs.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	// 初始化日志系统
	logger, err := utils.NewLogger(config)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(fmt.Sprintf("日志系统初始化成功, 配置文件路径: %s", configPath))

	return config, logger, nil
}

// NewPipeline 按配置组装分析流水线
func NewPipeline(config *configs.Config, logger *utils.Logger) (*analysis.Pipeline, vlllm.Generator, error) {
	name, vlllmConfig := config.SelectedVLLM()

	generator, err := vlllm.Create(vlllmConfig, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("创建VLLLM provider %s 失败: %w", name, err)
	}

	a := config.Analysis
	processor := image.NewImageProcessor(vlllmConfig.Security, image.NormalizeOptions{
		MaxDimension:  a.MaxDimension,
		Quality:       a.JPEGQuality,
		DecodeTimeout: a.DecodeTimeout,
	}, logger)
	client := analysis.NewClient(generator, analysis.PolicyFromConfig(a), logger)
	finalizer := analysis.NewFinalizer(a.RatingMin, a.RatingMax, logger)

	logger.Info(fmt.Sprintf("VLLLM provider %s 初始化成功", name), map[string]interface{}{
		"type":         vlllmConfig.Type,
		"model_name":   vlllmConfig.ModelName,
		"max_attempts": a.MaxAttempts,
		"backoff_step": a.BackoffStep.String(),
	})
	return analysis.NewPipeline(processor, client, finalizer, logger), generator, nil
}

// StartConnectivityCheck 后台检查VLLLM连通性，失败只记录日志
func StartConnectivityCheck(config *configs.Config, logger *utils.Logger, generator vlllm.Generator, g *errgroup.Group, groupCtx context.Context) {
	checkConfig := config.ConnectivityCheck
	if !checkConfig.Enabled {
		logger.Info("连通性检查已禁用，跳过检查")
		return
	}

	checker := pool.NewHealthChecker(checkConfig, logger)
	g.Go(func() error {
		checker.Check(groupCtx, generator, pool.ParseCheckMode(checkConfig.Mode))
		return nil
	})
}

func StartHttpServer(config *configs.Config, logger *utils.Logger, pipeline *analysis.Pipeline, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	// 初始化Gin引擎
	if config.Log.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	router.SetTrustedProxies([]string{"0.0.0.0"})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API路由全部挂载到/api前缀下
	apiGroup := router.Group("/api")

	// 启动Cfg服务
	cfgService, err := cfgserver.NewDefaultCfgService(config, logger)
	if err != nil {
		return nil, err
	}
	if err := cfgService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error("Cfg 服务启动失败", err)
		return nil, err
	}

	// 启动分析服务
	visionService, err := vision.NewDefaultVisionService(config, pipeline, logger)
	if err != nil {
		logger.Error("分析服务初始化失败", err)
		return nil, err
	}
	if err := visionService.Start(groupCtx, router, apiGroup); err != nil {
		logger.Error("分析服务启动失败", err)
		return nil, err
	}

	// HTTP Server（支持优雅关机）
	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.Info(fmt.Sprintf("Gin 服务已启动，访问地址: http://0.0.0.0:%d", config.Web.Port))

		// 在单独的 goroutine 中监听关闭信号
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭HTTP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP服务关闭失败", err)
			} else {
				logger.Info("HTTP服务已优雅关闭")
			}
		}()

		// ListenAndServe 返回 ErrServerClosed 时表示正常关闭
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP 服务启动失败", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func StartMCPServer(config *configs.Config, logger *utils.Logger, pipeline *analysis.Pipeline, g *errgroup.Group, groupCtx context.Context) {
	mcpServer := mcptool.NewServer(config, pipeline, logger)

	g.Go(func() error {
		go func() {
			<-groupCtx.Done()
			logger.Info("收到关闭信号，开始关闭MCP服务...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := mcpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("MCP服务关闭失败", err)
			}
		}()

		return mcpServer.Start()
	})
}

func GracefulShutdown(cancel context.CancelFunc, logger *utils.Logger, g *errgroup.Group) {
	// 监听系统信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// 等待信号
	sig := <-sigChan
	logger.Info(fmt.Sprintf("接收到系统信号: %v，开始优雅关闭服务", sig))

	// 取消上下文，通知所有服务开始关闭
	cancel()

	// 等待所有服务关闭，设置超时保护
	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.Error("服务关闭过程中出现错误", err)
			os.Exit(1)
		}
		logger.Info("所有服务已优雅关闭")
	case <-time.After(15 * time.Second):
		logger.Error("服务关闭超时，强制退出")
		os.Exit(1)
	}
}

func startServices(config *configs.Config, logger *utils.Logger, g *errgroup.Group, groupCtx context.Context) error {
	pipeline, generator, err := NewPipeline(config, logger)
	if err != nil {
		return fmt.Errorf("初始化分析流水线失败: %w", err)
	}

	StartConnectivityCheck(config, logger, generator, g, groupCtx)

	// 启动 Http 服务
	if _, err := StartHttpServer(config, logger, pipeline, g, groupCtx); err != nil {
		return fmt.Errorf("启动 Http 服务失败: %w", err)
	}

	if config.MCP.Enabled {
		StartMCPServer(config, logger, pipeline, g, groupCtx)
	}

	return nil
}

func main() {
	// 加载 .env 文件，需在读取配置之前
	if err := godotenv.Load(); err != nil {
		fmt.Println("未找到 .env 文件，使用系统环境变量")
	}

	// 加载配置和初始化日志系统
	config, logger, err := LoadConfigAndLogger()
	if err != nil {
		fmt.Println("加载配置或初始化日志系统失败:", err)
		os.Exit(1)
	}
	defer logger.Close()

	metrics.Register()

	// 创建可取消的上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 用 errgroup 管理所有服务
	g, groupCtx := errgroup.WithContext(ctx)

	// 启动所有服务
	if err := startServices(config, logger, g, groupCtx); err != nil {
		logger.Error("启动服务失败", err)
		cancel()
		os.Exit(1)
	}

	// 启动优雅关机处理
	GracefulShutdown(cancel, logger, g)

	logger.Info("程序已成功退出")
}
