package image

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y += 7 {
		for x := 0; x < w; x += 7 {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestTargetSize(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"横图超限", 4000, 2000, 1024, 1024, 512},
		{"竖图超限", 1500, 3000, 1024, 512, 1024},
		{"正方形超限", 2048, 2048, 1024, 1024, 1024},
		{"未超限不放大", 800, 600, 1024, 800, 600},
		{"正好等于上限", 1024, 300, 1024, 1024, 300},
		{"极窄横图保留1像素", 5000, 2, 1024, 1024, 1},
		{"非整除四舍五入", 3000, 1000, 1024, 1024, 341},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := TargetSize(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("TargetSize(%d, %d, %d) = %dx%d, want %dx%d", tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestTargetSize_NeverUpscales(t *testing.T) {
	for w := 1; w <= 1024; w += 97 {
		for h := 1; h <= 1024; h += 89 {
			gw, gh := TargetSize(w, h, 1024)
			if gw != w || gh != h {
				t.Fatalf("TargetSize(%d, %d) changed in-bounds image to %dx%d", w, h, gw, gh)
			}
		}
	}
}

func TestNormalize_WideImage(t *testing.T) {
	req := require.New(t)
	data := encodePNG(t, 4000, 2000)

	out, err := Normalize(context.Background(), data, DefaultNormalizeOptions())
	req.NoError(err)
	req.Equal(1024, out.Width)
	req.Equal(512, out.Height)
	req.Equal(4000, out.SourceWidth)
	req.Equal("png", out.SourceFormat)
	req.Equal("image/jpeg", out.MimeType)
	req.True(out.Resized)

	decoded, err := jpeg.Decode(bytes.NewReader(out.Data))
	req.NoError(err)
	req.Equal(1024, decoded.Bounds().Dx())
	req.Equal(512, decoded.Bounds().Dy())
}

func TestNormalize_SmallImageIsReencoded(t *testing.T) {
	req := require.New(t)
	data := encodePNG(t, 300, 200)

	out, err := Normalize(context.Background(), data, DefaultNormalizeOptions())
	req.NoError(err)
	req.False(out.Resized)
	req.Equal(300, out.Width)
	req.Equal(200, out.Height)

	_, format, err := image.DecodeConfig(bytes.NewReader(out.Data))
	req.NoError(err)
	req.Equal("jpeg", format)
}

func TestNormalize_GarbageFailsFast(t *testing.T) {
	req := require.New(t)

	start := time.Now()
	_, err := Normalize(context.Background(), []byte("definitely not an image"), DefaultNormalizeOptions())
	req.Error(err)
	req.True(errors.Is(err, ErrDecode))

	var decodeErr *DecodeError
	req.ErrorAs(err, &decodeErr)
	req.Less(time.Since(start), time.Second)
}

func TestNormalize_EmptyInput(t *testing.T) {
	_, err := Normalize(context.Background(), nil, DefaultNormalizeOptions())
	require.ErrorIs(t, err, ErrDecode)
}

func TestNormalize_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 解码可能先于取消完成，两种结果都可以接受，但不能阻塞
	done := make(chan struct{})
	go func() {
		_, _ = Normalize(ctx, encodePNG(t, 64, 64), DefaultNormalizeOptions())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Normalize blocked on canceled context")
	}
}
