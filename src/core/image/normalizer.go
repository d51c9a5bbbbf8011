package image

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"time"

	_ "image/gif" // 注册GIF解码器
	_ "image/png" // 注册PNG解码器

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"  // 注册BMP解码器
	_ "golang.org/x/image/tiff" // 注册TIFF解码器
	_ "golang.org/x/image/webp" // 注册WEBP解码器
)

// TargetSize 计算缩放后的尺寸：最长边超过maxDimension时等比缩小，否则保持不变
func TargetSize(width, height, maxDimension int) (int, int) {
	if width <= 0 || height <= 0 || maxDimension <= 0 {
		return width, height
	}

	if width > height {
		if width > maxDimension {
			height = scaleEdge(height, maxDimension, width)
			width = maxDimension
		}
	} else {
		if height > maxDimension {
			width = scaleEdge(width, maxDimension, height)
			height = maxDimension
		}
	}
	return width, height
}

// scaleEdge 按 maxEdge/long 比例缩放短边，至少保留1像素
func scaleEdge(short, maxEdge, long int) int {
	v := int(math.Round(float64(short) * float64(maxEdge) / float64(long)))
	if v < 1 {
		return 1
	}
	return v
}

type decodeResult struct {
	img    image.Image
	format string
	err    error
}

// decodeWithTimeout 在限定时间内解码图片，超时或失败都返回 DecodeError
func decodeWithTimeout(ctx context.Context, data []byte, timeout time.Duration) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Reason: "图片数据为空"}
	}
	if timeout <= 0 {
		timeout = DefaultNormalizeOptions().DecodeTimeout
	}

	done := make(chan decodeResult, 1)
	go func() {
		img, format, err := image.Decode(bytes.NewReader(data))
		done <- decodeResult{img: img, format: format, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, "", &DecodeError{Reason: "无法识别的图片数据", Err: r.err}
		}
		return r.img, r.format, nil
	case <-timer.C:
		return nil, "", &DecodeError{Reason: fmt.Sprintf("解码超过 %s", timeout)}
	case <-ctx.Done():
		return nil, "", ctx.Err()
	}
}

// Normalize 解码图片，最长边限制在 MaxDimension 内，并始终以固定质量重新编码为JPEG
func Normalize(ctx context.Context, data []byte, opts NormalizeOptions) (*NormalizedImage, error) {
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = DefaultNormalizeOptions().MaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultNormalizeOptions().Quality
	}

	src, format, err := decodeWithTimeout(ctx, data, opts.DecodeTimeout)
	if err != nil {
		return nil, err
	}

	bounds := src.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, &DecodeError{Reason: "图片尺寸为0"}
	}
	dstW, dstH := TargetSize(srcW, srcH, opts.MaxDimension)

	// 透明区域铺白底，避免JPEG编码后变黑
	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	if dstW == srcW && dstH == srcH {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: opts.Quality}); err != nil {
		return nil, fmt.Errorf("JPEG编码失败: %w", err)
	}

	return &NormalizedImage{
		Data:         buf.Bytes(),
		MimeType:     "image/jpeg",
		Width:        dstW,
		Height:       dstH,
		SourceWidth:  srcW,
		SourceHeight: srcH,
		SourceFormat: format,
		Resized:      dstW != srcW || dstH != srcH,
	}, nil
}
