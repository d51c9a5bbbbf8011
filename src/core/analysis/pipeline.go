package analysis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"indicator-server-go/src/core/image"
	"indicator-server-go/src/core/metrics"
	"indicator-server-go/src/core/prompt"
	"indicator-server-go/src/core/utils"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Runner 执行一次完整分析
type Runner interface {
	Run(ctx context.Context, req AnalysisRequest, obs Observer) (*AnalysisResult, error)
}

// Pipeline 分析流水线：归一化、构建提示词、调用上游、整理结果
// 每次调用互不共享状态，可并发使用
type Pipeline struct {
	processor *image.ImageProcessor
	client    *Client
	finalizer *Finalizer
	logger    *utils.Logger
}

// NewPipeline 创建分析流水线
func NewPipeline(processor *image.ImageProcessor, client *Client, finalizer *Finalizer, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		processor: processor,
		client:    client,
		finalizer: finalizer,
		logger:    logger,
	}
}

// Provider 上游提供者名称
func (p *Pipeline) Provider() string {
	return p.client.Provider()
}

// Run 执行一次分析，失败时不返回任何部分结果
func (p *Pipeline) Run(ctx context.Context, req AnalysisRequest, obs Observer) (*AnalysisResult, error) {
	obs = observerOrNop(obs)
	requestID := uuid.New().String()
	lang := req.Lang
	if !lang.Valid() {
		lang = prompt.DefaultLanguage
	}
	start := time.Now()

	p.logger.Info("开始分析", map[string]interface{}{
		"request_id": requestID,
		"lang":       string(lang),
		"size":       len(req.Image),
		"provider":   p.client.Provider(),
	})

	result, err := p.run(ctx, req.Image, lang, requestID, obs)
	if err != nil {
		kind := KindOf(err)
		metrics.PipelineResultsTotal.WithLabelValues(string(StateFailed), string(kind)).Inc()
		p.logger.Error("分析失败", map[string]interface{}{
			"request_id": requestID,
			"kind":       string(kind),
			"elapsed_ms": time.Since(start).Milliseconds(),
		}, err)
		obs.OnEvent(Event{State: StateFailed, Err: err})
		return nil, err
	}

	metrics.PipelineResultsTotal.WithLabelValues(string(StateDone), "").Inc()
	p.logger.Info("分析完成", map[string]interface{}{
		"request_id": requestID,
		"rating":     result.Rating,
		"grade":      result.Grade,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	obs.OnEvent(Event{State: StateDone})
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, data []byte, lang prompt.Language, requestID string, obs Observer) (*AnalysisResult, error) {
	obs.OnEvent(Event{State: StateNormalizing})

	var normalized *image.NormalizedImage
	var promptText string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		img, err := p.processor.ProcessImage(gctx, data)
		if err != nil {
			return err
		}
		normalized = img
		return nil
	})
	g.Go(func() error {
		promptText = prompt.Build(lang)
		return nil
	})
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, newError(KindOf(ctx.Err()), "normalize", 0, err)
		}
		if errors.Is(err, image.ErrDecode) {
			return nil, newError(KindDecode, "normalize", 0, err)
		}
		return nil, newError(KindFatal, "normalize", 0, err)
	}
	metrics.NormalizedImagesTotal.WithLabelValues(strconv.FormatBool(normalized.Resized)).Inc()

	p.logger.Debug("图片已归一化", map[string]interface{}{
		"request_id": requestID,
		"width":      normalized.Width,
		"height":     normalized.Height,
		"bytes":      len(normalized.Data),
	})

	raw, err := p.client.Analyze(ctx, normalized, promptText, obs)
	if err != nil {
		return nil, err
	}

	obs.OnEvent(Event{State: StateFinalizing})
	return p.finalizer.Finalize(raw, lang)
}
