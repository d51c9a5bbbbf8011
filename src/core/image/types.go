package image

import (
	"errors"
	"fmt"
	"time"
)

// ErrDecode 图片无法解码（格式不支持、数据损坏或解码超时）
var ErrDecode = errors.New("图片解码失败")

// DecodeError 图片解码错误
type DecodeError struct {
	Reason string // 失败原因
	Err    error  // 底层错误
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrDecode.Error(), e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrDecode.Error(), e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is 使 errors.Is(err, ErrDecode) 成立
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// NormalizeOptions 归一化参数
type NormalizeOptions struct {
	MaxDimension  int           // 最长边上限
	Quality       int           // JPEG质量 1-100
	DecodeTimeout time.Duration // 解码等待上限
}

// DefaultNormalizeOptions 默认参数：最长边1024，质量80
func DefaultNormalizeOptions() NormalizeOptions {
	return NormalizeOptions{
		MaxDimension:  1024,
		Quality:       80,
		DecodeTimeout: 5 * time.Second,
	}
}

// NormalizedImage 归一化后的图片，发送完即丢弃
type NormalizedImage struct {
	Data         []byte // JPEG编码数据
	MimeType     string // 固定为 image/jpeg
	Width        int    // 输出宽度
	Height       int    // 输出高度
	SourceWidth  int    // 原始宽度
	SourceHeight int    // 原始高度
	SourceFormat string // 原始格式
	Resized      bool   // 是否发生了缩放
}

// ValidationResult 图片验证结果
type ValidationResult struct {
	Format   string // 实际格式
	MimeType string // 探测到的MIME类型
	Width    int    // 图片宽度
	Height   int    // 图片高度
	FileSize int64  // 文件大小
}
