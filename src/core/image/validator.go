package image

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/utils"

	"github.com/gabriel-vasile/mimetype"
)

// ImageSecurityValidator 上传图片的安全验证器
type ImageSecurityValidator struct {
	config *configs.SecurityConfig
	logger *utils.Logger
}

// NewImageSecurityValidator 创建新的图片安全验证器
func NewImageSecurityValidator(config *configs.SecurityConfig, logger *utils.Logger) *ImageSecurityValidator {
	return &ImageSecurityValidator{
		config: config,
		logger: logger,
	}
}

// formatFromMIME 将MIME类型转换为格式名
func formatFromMIME(mime string) string {
	format := strings.TrimPrefix(strings.ToLower(mime), "image/")
	switch format {
	case "jpg", "pjpeg":
		return "jpeg"
	case "x-ms-bmp", "x-bmp":
		return "bmp"
	}
	return format
}

// Validate 验证上传的原始图片字节
func (v *ImageSecurityValidator) Validate(data []byte) (*ValidationResult, error) {
	if len(data) == 0 {
		return nil, &DecodeError{Reason: "图片数据为空"}
	}

	// 1. 基础大小检查
	if v.config.MaxFileSize > 0 && int64(len(data)) > v.config.MaxFileSize {
		v.logger.Warn("检测到超大文件", map[string]interface{}{
			"size":     len(data),
			"max_size": v.config.MaxFileSize,
		})
		return nil, &DecodeError{Reason: fmt.Sprintf("文件大小超限: %d bytes，最大允许: %d bytes", len(data), v.config.MaxFileSize)}
	}

	// 2. 内容嗅探，不信任客户端声明的格式
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, &DecodeError{Reason: fmt.Sprintf("不是图片文件: %s", mime.String())}
	}
	format := formatFromMIME(mime.String())
	if !v.isFormatAllowed(format) {
		return nil, &DecodeError{Reason: fmt.Sprintf("不支持的格式: %s", format)}
	}

	// 3. 只解析头部获取尺寸
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &DecodeError{Reason: "图片头部解析失败", Err: err}
	}

	totalPixels := int64(cfg.Width) * int64(cfg.Height)
	if v.config.MaxPixels > 0 && totalPixels > v.config.MaxPixels {
		return nil, &DecodeError{Reason: fmt.Sprintf("像素总数超限: %d，最大允许: %d", totalPixels, v.config.MaxPixels)}
	}

	result := &ValidationResult{
		Format:   format,
		MimeType: mime.String(),
		Width:    cfg.Width,
		Height:   cfg.Height,
		FileSize: int64(len(data)),
	}

	v.logger.Debug("图片验证成功", map[string]interface{}{
		"format": result.Format,
		"width":  result.Width,
		"height": result.Height,
		"size":   result.FileSize,
	})

	return result, nil
}

// isFormatAllowed 检查格式是否被允许，未配置时全部放行
func (v *ImageSecurityValidator) isFormatAllowed(format string) bool {
	if len(v.config.AllowedFormats) == 0 {
		return true
	}
	for _, allowed := range v.config.AllowedFormats {
		if formatFromMIME(allowed) == format {
			return true
		}
	}
	return false
}
