package image

import (
	"bytes"
	"testing"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/utils"

	"github.com/stretchr/testify/require"
)

func newTestValidator(cfg configs.SecurityConfig) *ImageSecurityValidator {
	return NewImageSecurityValidator(&cfg, utils.NewTestLogger(&bytes.Buffer{}))
}

func TestValidate_AcceptsPNG(t *testing.T) {
	req := require.New(t)
	v := newTestValidator(configs.DefaultSecurity())

	res, err := v.Validate(encodePNG(t, 40, 30))
	req.NoError(err)
	req.Equal("png", res.Format)
	req.Equal("image/png", res.MimeType)
	req.Equal(40, res.Width)
	req.Equal(30, res.Height)
}

func TestValidate_Rejections(t *testing.T) {
	small := configs.DefaultSecurity()
	small.MaxFileSize = 10

	pixels := configs.DefaultSecurity()
	pixels.MaxPixels = 100

	onlyJPEG := configs.DefaultSecurity()
	onlyJPEG.AllowedFormats = []string{"jpeg"}

	tests := []struct {
		name string
		cfg  configs.SecurityConfig
		data []byte
	}{
		{"空数据", configs.DefaultSecurity(), nil},
		{"文件过大", small, encodePNG(t, 20, 20)},
		{"像素过多", pixels, encodePNG(t, 20, 20)},
		{"格式不允许", onlyJPEG, encodePNG(t, 20, 20)},
		{"不是图片", configs.DefaultSecurity(), []byte("<html><body>hello</body></html>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestValidator(tt.cfg).Validate(tt.data)
			require.ErrorIs(t, err, ErrDecode)
		})
	}
}

func TestFormatFromMIME(t *testing.T) {
	require.Equal(t, "jpeg", formatFromMIME("image/jpeg"))
	require.Equal(t, "jpeg", formatFromMIME("jpg"))
	require.Equal(t, "bmp", formatFromMIME("image/x-ms-bmp"))
	require.Equal(t, "webp", formatFromMIME("image/webp"))
}
