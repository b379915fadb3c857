package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/langchou/batterycontrol/internal/models"
)

// 事件常量
const (
	EventReview = "review" // 检查（已检查时为刷新计时）
	EventReset  = "reset"  // 管理员重置为待检查
)

// Transition 一次状态流转的结果
type Transition struct {
	Event string               `json:"event"`
	From  models.BatteryStatus `json:"from"`
	To    models.BatteryStatus `json:"to"`
	// Refreshed 为 true 表示状态未变，仅重新盖章检查日期
	Refreshed  bool       `json:"refreshed"`
	StatusDate *time.Time `json:"status_date,omitempty"`
}

// Patch 转换为只包含状态字段的补丁
func (t *Transition) Patch(updatedBy string) *models.BatteryPatch {
	to := t.To
	return &models.BatteryPatch{
		Status:     &to,
		StatusDate: t.StatusDate,
		UpdatedBy:  updatedBy,
	}
}

// Machine 电池记录的检查状态机
// 不存在基于时间的自动回退，过期只通过告警体现
type Machine struct {
	fsm           *fsm.FSM
	onStateChange func(from, to string)
}

// NewMachine 以记录当前状态创建状态机
func NewMachine(current models.BatteryStatus, onStateChange func(from, to string)) *Machine {
	if current == "" {
		current = models.StatusPending
	}

	m := &Machine{onStateChange: onStateChange}

	m.fsm = fsm.NewFSM(
		string(current),
		fsm.Events{
			{Name: EventReview, Src: []string{string(models.StatusPending), string(models.StatusReviewed)}, Dst: string(models.StatusReviewed)},
			{Name: EventReset, Src: []string{string(models.StatusPending), string(models.StatusReviewed)}, Dst: string(models.StatusPending)},
		},
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(e.Src, e.Dst)
				}
			},
		},
	)

	return m
}

// Current 当前状态
func (m *Machine) Current() models.BatteryStatus {
	return models.BatteryStatus(m.fsm.Current())
}

// CanTransition 检查事件是否可触发
func (m *Machine) CanTransition(event string) bool {
	return m.fsm.Can(event)
}

// Trigger 触发事件，at 为检查日期盖章时间
func (m *Machine) Trigger(ctx context.Context, event string, at time.Time) (*Transition, error) {
	from := m.Current()

	err := m.fsm.Event(ctx, event)
	refreshed := false
	if err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) || noTransition.Err != nil {
			return nil, fmt.Errorf("trigger event %s: %w", event, err)
		}
		// 源状态与目标状态相同
		refreshed = true
	}

	t := &Transition{
		Event:     event,
		From:      from,
		To:        m.Current(),
		Refreshed: refreshed,
	}
	if t.To == models.StatusReviewed {
		stamp := at
		t.StatusDate = &stamp
	}
	return t, nil
}

// Review 检查：pendiente -> revisado，或在 revisado 上重新计时
func Review(ctx context.Context, rec *models.BatteryRecord, at time.Time) (*Transition, error) {
	return NewMachine(rec.Status, nil).Trigger(ctx, EventReview, at)
}

// Reset 重置为待检查并清空检查日期
func Reset(ctx context.Context, rec *models.BatteryRecord) (*Transition, error) {
	return NewMachine(rec.Status, nil).Trigger(ctx, EventReset, time.Time{})
}
