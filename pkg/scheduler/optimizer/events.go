package optimizer

import (
	"github.com/paiban/kaowu/pkg/model"
)

// StepEvent 迭代事件
//
// 搜索过程中 Cost 与 BestCost 来自搜索评估器（默认只含硬约束的快速模型），
// 与最终适应度不在同一量纲。运行结束时会再发出一条 Final 为 true 的事件，
// 其 Cost 为最优方案经完整约束模型评估后的适应度。
type StepEvent struct {
	Iteration   int     `json:"iteration"`
	Cost        float64 `json:"cost"`
	BestCost    float64 `json:"best_cost"`
	Temperature float64 `json:"temperature"` // 模拟退火
	Inertia     float64 `json:"inertia"`     // 粒子群
	Rate        float64 `json:"rate"`        // 接受率或个体最优更新率（百分比）
	Updates     int     `json:"updates"`     // 全局最优更新次数
	Final       bool    `json:"final"`
}

// Observer 求解事件观察者，所有回调都在求解协程中同步调用
type Observer interface {
	OnStep(event StepEvent)
	OnProgress(percent int)
	OnLog(message string)
	OnError(err error)
	OnFinished(schedule *model.Schedule)
}

// ObserverFuncs 以函数形式实现 Observer，未设置的回调被忽略
type ObserverFuncs struct {
	Step     func(StepEvent)
	Progress func(int)
	Log      func(string)
	Error    func(error)
	Finished func(*model.Schedule)
}

func (o ObserverFuncs) OnStep(event StepEvent) {
	if o.Step != nil {
		o.Step(event)
	}
}

func (o ObserverFuncs) OnProgress(percent int) {
	if o.Progress != nil {
		o.Progress(percent)
	}
}

func (o ObserverFuncs) OnLog(message string) {
	if o.Log != nil {
		o.Log(message)
	}
}

func (o ObserverFuncs) OnError(err error) {
	if o.Error != nil {
		o.Error(err)
	}
}

func (o ObserverFuncs) OnFinished(schedule *model.Schedule) {
	if o.Finished != nil {
		o.Finished(schedule)
	}
}

// MultiObserver 将事件分发给多个观察者
type MultiObserver []Observer

func (m MultiObserver) OnStep(event StepEvent) {
	for _, o := range m {
		o.OnStep(event)
	}
}

func (m MultiObserver) OnProgress(percent int) {
	for _, o := range m {
		o.OnProgress(percent)
	}
}

func (m MultiObserver) OnLog(message string) {
	for _, o := range m {
		o.OnLog(message)
	}
}

func (m MultiObserver) OnError(err error) {
	for _, o := range m {
		o.OnError(err)
	}
}

func (m MultiObserver) OnFinished(schedule *model.Schedule) {
	for _, o := range m {
		o.OnFinished(schedule)
	}
}
