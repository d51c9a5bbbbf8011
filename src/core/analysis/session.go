package analysis

import (
	"context"
	"errors"
	"sync"
)

// ErrReset 调用进行中会话被 Reset，结果已作废
var ErrReset = errors.New("会话已重置")

// Session 单个客户端的分析会话
// 同一时间只允许一次分析，Reset 会取消进行中的分析并丢弃结果
type Session struct {
	runner Runner

	mu         sync.Mutex
	state      State
	result     *AnalysisResult
	err        error
	cancel     context.CancelFunc
	invocation uint64
}

// NewSession 创建分析会话
func NewSession(runner Runner) *Session {
	return &Session{runner: runner, state: StateIdle}
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Result 最近一次成功的结果，失败或重置后为 nil
func (s *Session) Result() *AnalysisResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err 最近一次失败的错误
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Analyze 开始一次新的分析，已有分析进行中时返回 ErrBusy
// 调用期间被 Reset 时返回包装 ErrReset 的错误
func (s *Session) Analyze(ctx context.Context, req AnalysisRequest, obs Observer) (*AnalysisResult, error) {
	obs = observerOrNop(obs)

	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.invocation++
	id := s.invocation
	s.cancel = cancel
	s.state = StateIdle
	s.result = nil
	s.err = nil
	s.mu.Unlock()
	defer cancel()

	tracker := ObserverFunc(func(e Event) {
		if s.apply(id, e) {
			obs.OnEvent(e)
		}
	})

	result, err := s.runner.Run(runCtx, req, tracker)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invocation != id {
		// 已被 Reset，结果作废
		return nil, newError(KindCanceled, "session", 0, ErrReset)
	}
	s.cancel = nil
	if err != nil {
		s.state = StateFailed
		s.err = err
		return nil, err
	}
	s.state = StateDone
	s.result = result
	return result, nil
}

// apply 按迁移表更新状态，过期调用的事件被丢弃
func (s *Session) apply(id uint64, e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invocation != id {
		return false
	}
	if !CanTransition(s.state, e.State) {
		return false
	}
	s.state = e.State
	return true
}

// Reset 回到 idle，取消进行中的分析并丢弃结果
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.invocation++
	s.state = StateIdle
	s.result = nil
	s.err = nil
}

// Cancel 取消进行中的分析，不清除状态
func (s *Session) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
}
