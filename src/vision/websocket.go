package vision

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"indicator-server-go/src/core/analysis"
	"indicator-server-go/src/core/prompt"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var ErrConnectionClosed = errors.New("websocket connection is closed")

// wsConn 封装gorilla/websocket连接，写操作串行化
// closed 只表示不再读写，底层连接由 Close 统一释放
type wsConn struct {
	conn      *websocket.Conn
	writeMu   sync.Mutex // 写操作互斥锁
	closed    int32      // 0=open, 1=closed
	closeOnce sync.Once
}

func (w *wsConn) ReadMessage() (int, []byte, error) {
	if atomic.LoadInt32(&w.closed) == 1 {
		return 0, nil, ErrConnectionClosed
	}

	w.conn.SetReadDeadline(time.Now().Add(10 * time.Minute))
	messageType, p, err := w.conn.ReadMessage()
	if err != nil {
		atomic.StoreInt32(&w.closed, 1)
		return 0, nil, err
	}
	return messageType, p, nil
}

func (w *wsConn) WriteJSON(v interface{}) error {
	if atomic.LoadInt32(&w.closed) == 1 {
		return ErrConnectionClosed
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	// 获取锁期间连接可能已关闭
	if atomic.LoadInt32(&w.closed) == 1 {
		return ErrConnectionClosed
	}

	w.conn.SetWriteDeadline(time.Now().Add(30 * time.Second))
	if err := w.conn.WriteJSON(v); err != nil {
		atomic.StoreInt32(&w.closed, 1)
		return err
	}
	return nil
}

// Close 关闭底层连接，读写失败后也必须调用
func (w *wsConn) Close() error {
	var err error
	w.closeOnce.Do(func() {
		open := atomic.SwapInt32(&w.closed, 1) == 0

		w.writeMu.Lock()
		defer w.writeMu.Unlock()

		// 连接仍可写时尝试发送关闭帧，失败不影响关闭
		if open {
			closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "connection closed")
			w.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			w.conn.WriteMessage(websocket.CloseMessage, closeMsg)
		}
		err = w.conn.Close()
	})
	return err
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket 每个连接对应一个分析会话，状态变化实时推送
func (s *DefaultVisionService) handleWebSocket(c *gin.Context) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket升级失败", err)
		return
	}
	conn := &wsConn{conn: raw}
	raw.SetReadLimit(s.config.Web.MaxUploadSize * 2)

	ctx, cancel := context.WithCancel(context.Background())
	session := analysis.NewSession(s.runner)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		conn.Close()
		s.logger.Debug("websocket连接已关闭", map[string]interface{}{"remote": c.Request.RemoteAddr})
	}()

	s.logger.Debug("websocket连接已建立", map[string]interface{}{"remote": c.Request.RemoteAddr})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.WriteJSON(ServerMessage{Type: MessageFailed, Kind: "bad_request", Message: "无效的消息格式"})
			continue
		}

		switch msg.Type {
		case MessageAnalyze:
			lang := prompt.ParseLanguage(msg.Lang)
			image, err := decodeImage(msg.Image)
			if err != nil {
				conn.WriteJSON(ServerMessage{Type: MessageFailed, Kind: "bad_request", Message: "图片数据不是有效的base64"})
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.runSession(ctx, conn, session, analysis.AnalysisRequest{Image: image, Lang: lang})
			}()
		case MessageReset:
			session.Reset()
			conn.WriteJSON(ServerMessage{Type: MessageState, State: analysis.StateIdle})
		case MessageCancel:
			session.Cancel()
		default:
			conn.WriteJSON(ServerMessage{Type: MessageFailed, Kind: "bad_request", Message: "未知的消息类型: " + msg.Type})
		}
	}
}

// runSession 执行一次分析并推送状态，终态消息在结果确定后发送
func (s *DefaultVisionService) runSession(ctx context.Context, conn *wsConn, session *analysis.Session, req analysis.AnalysisRequest) {
	obs := analysis.ObserverFunc(func(e analysis.Event) {
		if e.State.Terminal() {
			return
		}
		conn.WriteJSON(ServerMessage{
			Type:    MessageState,
			State:   e.State,
			Attempt: e.Attempt,
			DelayMs: e.Delay.Milliseconds(),
		})
	})

	result, err := session.Analyze(ctx, req, obs)
	if err != nil {
		// 被 Reset 作废的调用不再推送结果
		if errors.Is(err, analysis.ErrReset) {
			return
		}
		kind := string(analysis.KindOf(err))
		if errors.Is(err, analysis.ErrBusy) {
			kind = "busy"
		}
		conn.WriteJSON(ServerMessage{
			Type:    MessageFailed,
			State:   analysis.StateFailed,
			Kind:    kind,
			Message: analysis.UserMessage(err, req.Lang),
		})
		return
	}
	conn.WriteJSON(ServerMessage{Type: MessageDone, State: analysis.StateDone, Result: result})
}

// decodeImage 解析base64图片，兼容 data:image/...;base64, 前缀
func decodeImage(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i != -1 {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("图片数据为空")
	}
	return data, nil
}
