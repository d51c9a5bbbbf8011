package analysis

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"indicator-server-go/src/core/utils"

	"github.com/stretchr/testify/require"
)

func testLogger() *utils.Logger {
	return utils.NewTestLogger(io.Discard)
}

func validPayload() map[string]interface{} {
	return map[string]interface{}{
		"rating":                   5,
		"summaryPhrase":            "镜面般的光泽",
		"summaryPhraseZh":          "镜面般的光泽",
		"summaryPhraseEn":          "Mirror-like Gloss",
		"summaryHighlightKeywords": []string{"光泽"},
		"comment":                  "整体的材质反射非常均匀，轮廓线条干净利落，细节处理得相当用心。",
		"summaryDialogue":          "这件作品值得细细欣赏。",
		"tags":                     []string{"高光", "贴身", "精工"},
		"dimensions": []map[string]interface{}{
			{"name": "光泽反射", "value": 9.5},
			{"name": "贴合程度", "value": 8},
			{"name": "工艺细节", "value": 7.5},
			{"name": "轮廓形态", "value": 8},
			{"name": "整体气场", "value": 9},
		},
	}
}

func encodePayload(t *testing.T, payload map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return string(data)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type eventRecorder struct {
	events []Event
}

func (r *eventRecorder) OnEvent(e Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) states() []State {
	out := make([]State, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.State)
	}
	return out
}
