package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"indicator-server-go/src/core/prompt"

	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		kind     Kind
		expected int
	}{
		{KindDecode, http.StatusBadRequest},
		{KindMalformed, http.StatusBadGateway},
		{KindFatal, http.StatusBadGateway},
		{KindCongested, http.StatusServiceUnavailable},
		{KindTimeout, http.StatusGatewayTimeout},
		{KindCanceled, http.StatusRequestTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", newError(tt.kind, "test", 0, errors.New("x")))
			require.Equal(t, tt.expected, StatusCode(err))
		})
	}
	require.Equal(t, http.StatusConflict, StatusCode(ErrBusy))
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindCanceled, KindOf(context.Canceled))
	require.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
	require.Equal(t, KindFatal, KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestUserMessage(t *testing.T) {
	congested := newError(KindCongested, "upstream", 3, errors.New("503 UNAVAILABLE"))
	fatal := newError(KindFatal, "upstream", 1, errors.New("401 invalid key"))

	require.Equal(t, "The service is busy right now. Please try again later.", UserMessage(congested, prompt.LangEn))
	require.Equal(t, "分析失败，请检查网络连接和API配置。", UserMessage(fatal, prompt.LangZh))
	require.NotContains(t, UserMessage(fatal, prompt.LangEn), "invalid key")
	require.Equal(t, UserMessage(fatal, prompt.LangZh), UserMessage(fatal, "fr"))
}
