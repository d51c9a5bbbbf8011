package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// blockingRunner 在 release 关闭前阻塞，模拟进行中的分析
type blockingRunner struct {
	started chan struct{}
	release chan struct{}
	result  *AnalysisResult
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
		result:  &AnalysisResult{Rating: 6, Grade: "SS"},
	}
}

func (r *blockingRunner) Run(ctx context.Context, req AnalysisRequest, obs Observer) (*AnalysisResult, error) {
	obs.OnEvent(Event{State: StateNormalizing})
	obs.OnEvent(Event{State: StateRequesting, Attempt: 1})
	r.started <- struct{}{}

	select {
	case <-r.release:
	case <-ctx.Done():
		obs.OnEvent(Event{State: StateFailed, Err: ctx.Err()})
		return nil, newError(KindCanceled, "test", 1, ctx.Err())
	}
	if r.err != nil {
		obs.OnEvent(Event{State: StateFailed, Err: r.err})
		return nil, r.err
	}
	obs.OnEvent(Event{State: StateFinalizing})
	obs.OnEvent(Event{State: StateDone})
	return r.result, nil
}

func TestSession_Lifecycle(t *testing.T) {
	runner := newBlockingRunner()
	session := NewSession(runner)
	require.Equal(t, StateIdle, session.State())

	done := make(chan error, 1)
	go func() {
		_, err := session.Analyze(context.Background(), AnalysisRequest{}, nil)
		done <- err
	}()

	<-runner.started
	require.Equal(t, StateRequesting, session.State())

	_, err := session.Analyze(context.Background(), AnalysisRequest{}, nil)
	require.ErrorIs(t, err, ErrBusy)

	close(runner.release)
	require.NoError(t, <-done)
	require.Equal(t, StateDone, session.State())
	require.Equal(t, 6, session.Result().Rating)

	session.Reset()
	require.Equal(t, StateIdle, session.State())
	require.Nil(t, session.Result())
}

func TestSession_ResetDiscardsInFlight(t *testing.T) {
	runner := newBlockingRunner()
	session := NewSession(runner)

	var forwarded []State
	obs := ObserverFunc(func(e Event) { forwarded = append(forwarded, e.State) })

	done := make(chan error, 1)
	go func() {
		_, err := session.Analyze(context.Background(), AnalysisRequest{}, obs)
		done <- err
	}()

	<-runner.started
	session.Reset()

	select {
	case err := <-done:
		require.True(t, IsKind(err, KindCanceled))
		require.ErrorIs(t, err, ErrReset)
	case <-time.After(time.Second):
		t.Fatal("reset did not cancel the in-flight analysis")
	}

	require.Equal(t, StateIdle, session.State())
	require.Nil(t, session.Result())
	require.NotContains(t, forwarded, StateFailed)
}

func TestSession_FailureIsTerminalUntilNextAnalyze(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = newError(KindCongested, "upstream", 3, errors.New("overloaded"))
	close(runner.release)
	session := NewSession(runner)

	_, err := session.Analyze(context.Background(), AnalysisRequest{}, nil)
	require.True(t, IsKind(err, KindCongested))
	require.Equal(t, StateFailed, session.State())
	require.Nil(t, session.Result())
	<-runner.started

	runner.err = nil
	result, err := session.Analyze(context.Background(), AnalysisRequest{}, nil)
	require.NoError(t, err)
	require.Equal(t, "SS", result.Grade)
	require.Equal(t, StateDone, session.State())
	<-runner.started
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		expected bool
	}{
		{StateIdle, StateNormalizing, true},
		{StateNormalizing, StateRequesting, true},
		{StateRequesting, StateRetrying, true},
		{StateRetrying, StateRequesting, true},
		{StateRequesting, StateFinalizing, true},
		{StateFinalizing, StateDone, true},
		{StateRetrying, StateFailed, true},
		{StateDone, StateIdle, true},
		{StateIdle, StateDone, false},
		{StateNormalizing, StateDone, false},
		{StateFailed, StateRequesting, false},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSession_FailureErrorSurvivesNextAnalyze(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = newError(KindFatal, "upstream", 1, errors.New("bad request"))
	close(runner.release)
	session := NewSession(runner)

	_, failed := session.Analyze(context.Background(), AnalysisRequest{}, nil)
	<-runner.started

	// 新的调用开始后，上一次的失败仍可由错误本身判定
	runner.err = nil
	_, err := session.Analyze(context.Background(), AnalysisRequest{}, nil)
	require.NoError(t, err)
	<-runner.started

	require.True(t, IsKind(failed, KindFatal))
	require.NotErrorIs(t, failed, ErrReset)
}
