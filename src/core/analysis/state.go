package analysis

import "time"

// State 单次分析的状态
type State string

const (
	StateIdle        State = "idle"
	StateNormalizing State = "normalizing"
	StateRequesting  State = "requesting"
	StateRetrying    State = "retrying"
	StateFinalizing  State = "finalizing"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// transitions 合法的状态迁移，任意状态都可以 reset 回到 idle
var transitions = map[State][]State{
	StateIdle:        {StateNormalizing},
	StateNormalizing: {StateRequesting, StateFailed},
	StateRequesting:  {StateRetrying, StateFinalizing, StateFailed},
	StateRetrying:    {StateRequesting, StateFailed},
	StateFinalizing:  {StateDone, StateFailed},
	StateDone:        {StateNormalizing},
	StateFailed:      {StateNormalizing},
}

// CanTransition 判断状态迁移是否合法
func CanTransition(from, to State) bool {
	if to == StateIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal 是否为终态
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Event 流水线状态事件
type Event struct {
	State   State         // 进入的状态
	Attempt int           // 当前上游调用序号，从1开始
	Delay   time.Duration // retrying 状态下的等待时长
	Err     error         // retrying/failed 状态下的错误
}

// Observer 接收流水线状态事件
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc 函数形式的 Observer
type ObserverFunc func(Event)

// OnEvent 实现 Observer
func (f ObserverFunc) OnEvent(e Event) { f(e) }

type nopObserver struct{}

func (nopObserver) OnEvent(Event) {}

func observerOrNop(obs Observer) Observer {
	if obs == nil {
		return nopObserver{}
	}
	return obs
}
