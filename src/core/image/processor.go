package image

import (
	"context"
	"time"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/utils"
)

// ImageProcessor 图片处理器：先做安全验证，再归一化
type ImageProcessor struct {
	validator *ImageSecurityValidator
	options   NormalizeOptions
	logger    *utils.Logger
}

// NewImageProcessor 创建新的图片处理器
func NewImageProcessor(security configs.SecurityConfig, options NormalizeOptions, logger *utils.Logger) *ImageProcessor {
	return &ImageProcessor{
		validator: NewImageSecurityValidator(&security, logger),
		options:   options,
		logger:    logger,
	}
}

// Options 返回归一化参数
func (p *ImageProcessor) Options() NormalizeOptions {
	return p.options
}

// ProcessImage 验证并归一化图片
func (p *ImageProcessor) ProcessImage(ctx context.Context, data []byte) (*NormalizedImage, error) {
	start := time.Now()

	if _, err := p.validator.Validate(data); err != nil {
		p.logger.Warn("图片验证失败", err)
		return nil, err
	}

	normalized, err := Normalize(ctx, data, p.options)
	if err != nil {
		p.logger.Warn("图片归一化失败", err)
		return nil, err
	}

	p.logger.Debug("图片处理完成", map[string]interface{}{
		"source_format": normalized.SourceFormat,
		"source_size":   len(data),
		"source_width":  normalized.SourceWidth,
		"source_height": normalized.SourceHeight,
		"width":         normalized.Width,
		"height":        normalized.Height,
		"output_size":   len(normalized.Data),
		"resized":       normalized.Resized,
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})

	return normalized, nil
}
