package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"indicator-server-go/src/configs"
	"indicator-server-go/src/core/image"
	"indicator-server-go/src/core/metrics"
	"indicator-server-go/src/core/providers/vlllm"
	"indicator-server-go/src/core/utils"
)

// RetryPolicy 上游调用的重试策略
type RetryPolicy struct {
	MaxAttempts    int           // 总尝试次数
	BackoffStep    time.Duration // 第n次失败后等待 n*BackoffStep
	AttemptTimeout time.Duration // 单次调用超时
	RetryOnTimeout bool          // 超时是否重试
}

// DefaultRetryPolicy 默认策略：3次，等待2s、4s，单次45s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		BackoffStep:    2 * time.Second,
		AttemptTimeout: 45 * time.Second,
		RetryOnTimeout: true,
	}
}

// PolicyFromConfig 从分析配置生成重试策略
func PolicyFromConfig(cfg configs.AnalysisConfig) RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		BackoffStep:    cfg.BackoffStep,
		AttemptTimeout: cfg.AttemptTimeout,
		RetryOnTimeout: cfg.RetryOnTimeout,
	}
}

// Delay 第 attempt 次失败后的等待时长
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return time.Duration(attempt) * p.BackoffStep
}

// Sleeper 可被取消的等待函数
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 等待 d 或直到 ctx 结束
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Client 分析客户端，负责调用上游并按策略重试
type Client struct {
	generator vlllm.Generator
	policy    RetryPolicy
	sleep     Sleeper
	logger    *utils.Logger
}

// ClientOption 客户端可选项
type ClientOption func(*Client)

// WithSleeper 替换重试等待函数
func WithSleeper(s Sleeper) ClientOption {
	return func(c *Client) {
		c.sleep = s
	}
}

// NewClient 创建分析客户端
func NewClient(generator vlllm.Generator, policy RetryPolicy, logger *utils.Logger, opts ...ClientOption) *Client {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	c := &Client{
		generator: generator,
		policy:    policy,
		sleep:     SleepContext,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Provider 上游提供者名称
func (c *Client) Provider() string {
	return c.generator.Name()
}

// Policy 当前重试策略
func (c *Client) Policy() RetryPolicy {
	return c.policy
}

// Analyze 发送图片和提示词，返回上游的原始JSON文本
// 每次重试原样重发同一请求，除尝试次数外不保留任何状态
func (c *Client) Analyze(ctx context.Context, img *image.NormalizedImage, promptText string, obs Observer) (string, error) {
	obs = observerOrNop(obs)
	provider := c.generator.Name()
	req := vlllm.GenerateRequest{
		Image:      img.Data,
		MimeType:   img.MimeType,
		Prompt:     promptText,
		SchemaName: SchemaName,
		Schema:     ResultSchema(),
	}

	var lastKind Kind
	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		obs.OnEvent(Event{State: StateRequesting, Attempt: attempt})

		raw, err := c.attempt(ctx, req, attempt)
		if err == nil {
			return raw, nil
		}

		kind := c.classify(ctx, err)
		lastKind, lastErr = kind, err

		if ctx.Err() != nil || !c.retryable(kind) {
			c.logger.Warn("上游调用失败，不再重试", map[string]interface{}{
				"provider": provider,
				"attempt":  attempt,
				"kind":     string(kind),
			}, err)
			return "", newError(kind, "upstream", attempt, err)
		}

		if attempt == c.policy.MaxAttempts {
			break
		}

		delay := c.policy.Delay(attempt)
		c.logger.Warn("上游调用失败，准备重试", map[string]interface{}{
			"provider": provider,
			"attempt":  attempt,
			"kind":     string(kind),
			"delay":    delay.String(),
		}, err)
		metrics.RetriesTotal.WithLabelValues(provider).Inc()
		obs.OnEvent(Event{State: StateRetrying, Attempt: attempt, Delay: delay, Err: err})

		if err := c.sleep(ctx, delay); err != nil {
			return "", newError(KindOf(err), "upstream", attempt, err)
		}
	}

	final := KindCongested
	if lastKind == KindTimeout {
		final = KindTimeout
	}
	c.logger.Error("上游调用重试次数耗尽", map[string]interface{}{
		"provider": provider,
		"attempts": c.policy.MaxAttempts,
		"kind":     string(final),
	}, lastErr)
	return "", newError(final, "upstream", c.policy.MaxAttempts, lastErr)
}

type generateResult struct {
	raw string
	err error
}

// attempt 执行单次调用，超时由本次调用独立计算
func (c *Client) attempt(ctx context.Context, req vlllm.GenerateRequest, attempt int) (string, error) {
	provider := c.generator.Name()
	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()

	start := time.Now()
	done := make(chan generateResult, 1)
	go func() {
		raw, err := c.generator.Generate(attemptCtx, req)
		done <- generateResult{raw: raw, err: err}
	}()

	var res generateResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res = generateResult{err: vlllm.NewCallError(attemptCtx, provider, 0, attemptCtx.Err())}
	}

	elapsed := time.Since(start)
	metrics.UpstreamDurationSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())

	outcome := "ok"
	if res.err != nil {
		outcome = string(c.classify(ctx, res.err))
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			res.err = &vlllm.CallError{Provider: provider, Kind: vlllm.KindTimeout,
				Err: fmt.Errorf("单次调用超过 %s: %w", c.policy.AttemptTimeout, res.err)}
			outcome = string(KindTimeout)
		}
	}
	metrics.UpstreamAttemptsTotal.WithLabelValues(provider, outcome).Inc()

	c.logger.Debug("上游调用结束", map[string]interface{}{
		"provider":   provider,
		"attempt":    attempt,
		"outcome":    outcome,
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return res.raw, res.err
}

// classify 把适配层错误映射为分析错误分类，父context结束优先
func (c *Client) classify(ctx context.Context, err error) Kind {
	if errors.Is(ctx.Err(), context.Canceled) {
		return KindCanceled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, vlllm.ErrEmptyResponse) {
		return KindMalformed
	}
	switch vlllm.KindOf(err) {
	case vlllm.KindTransient:
		return KindTransient
	case vlllm.KindTimeout:
		return KindTimeout
	case vlllm.KindCanceled:
		return KindCanceled
	}
	return KindFatal
}

func (c *Client) retryable(kind Kind) bool {
	switch kind {
	case KindTransient:
		return true
	case KindTimeout:
		return c.policy.RetryOnTimeout
	}
	return false
}
