package pool

import (
	"bytes"
	"context"
	"fmt"
	stdimage "image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"strings"
	"sync"
	"time"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"
)

// CheckMode 检查模式
type CheckMode int

const (
	// BasicCheck 基础检查（只验证配置和提供者实例）
	BasicCheck CheckMode = iota
	// FunctionalCheck 功能性检查（执行一次实际的生成调用）
	FunctionalCheck
)

func (m CheckMode) String() string {
	if m == FunctionalCheck {
		return "功能性"
	}
	return "基础"
}

// ParseCheckMode 解析配置中的检查模式
func ParseCheckMode(s string) CheckMode {
	if strings.EqualFold(strings.TrimSpace(s), "functional") {
		return FunctionalCheck
	}
	return BasicCheck
}

// CheckResult 检查结果
type CheckResult struct {
	Provider  string                 `json:"provider"`
	Success   bool                   `json:"success"`
	Error     string                 `json:"error,omitempty"`
	Kind      string                 `json:"kind,omitempty"`
	Details   map[string]interface{} `json:"details"`
	Duration  time.Duration          `json:"duration"`
	Timestamp time.Time              `json:"timestamp"`
	CheckMode CheckMode              `json:"check_mode"`
}

// HealthChecker VLLLM提供者连通性检查
type HealthChecker struct {
	config configs.ConnectivityCheckConfig
	logger *utils.Logger

	mu   sync.RWMutex
	last *CheckResult
}

// NewHealthChecker 创建健康检查器
func NewHealthChecker(config configs.ConnectivityCheckConfig, logger *utils.Logger) *HealthChecker {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &HealthChecker{config: config, logger: logger}
}

// Check 检查提供者，失败只记录不中断启动
func (hc *HealthChecker) Check(ctx context.Context, gen vlllm.Generator, mode CheckMode) *CheckResult {
	start := time.Now()
	result := &CheckResult{
		Timestamp: start,
		CheckMode: mode,
		Details:   make(map[string]interface{}),
	}

	if gen == nil {
		result.Error = "VLLLM提供者未创建"
		hc.store(result)
		return result
	}
	result.Provider = gen.Name()
	hc.logger.Info(fmt.Sprintf("开始执行%s检查: %s", mode, result.Provider))

	if mode == FunctionalCheck {
		checkCtx, cancel := context.WithTimeout(ctx, hc.config.Timeout)
		defer cancel()

		out, err := gen.Generate(checkCtx, vlllm.GenerateRequest{
			Image:    testImage(),
			MimeType: "image/jpeg",
			Prompt:   `Reply with the JSON object {"ok": true} and nothing else.`,
		})
		if err != nil {
			result.Error = err.Error()
			result.Kind = string(vlllm.KindOf(err))
		} else {
			result.Details["response_length"] = len(out)
		}
	}

	result.Success = result.Error == ""
	result.Duration = time.Since(start)
	hc.store(result)

	if result.Success {
		hc.logger.Info(fmt.Sprintf("%s检查通过: %s", mode, result.Provider), map[string]interface{}{
			"duration_ms": result.Duration.Milliseconds(),
		})
	} else {
		hc.logger.Warn(fmt.Sprintf("%s检查失败: %s", mode, result.Provider), map[string]interface{}{
			"kind":  result.Kind,
			"error": result.Error,
		})
	}
	return result
}

func (hc *HealthChecker) store(result *CheckResult) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.last = result
}

// LastResult 最近一次检查结果，未检查时为 nil
func (hc *HealthChecker) LastResult() *CheckResult {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.last
}

var (
	testImageOnce sync.Once
	testImageData []byte
)

// testImage 16x16 白色JPEG，用于功能性检查
func testImage() []byte {
	testImageOnce.Do(func() {
		img := stdimage.NewRGBA(stdimage.Rect(0, 0, 16, 16))
		draw.Draw(img, img.Bounds(), &stdimage.Uniform{C: color.White}, stdimage.Point{}, draw.Src)
		var buf bytes.Buffer
		_ = jpeg.Encode(&buf, img, &jpeg.Options{Quality: 80})
		testImageData = buf.Bytes()
	})
	return testImageData
}
