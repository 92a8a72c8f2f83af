// Package model 定义医院排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityStatus 人员实时可用状态
type AvailabilityStatus string

const (
	AvailAvailable   AvailabilityStatus = "available"   // 可分配
	AvailWorking     AvailabilityStatus = "working"     // 在岗
	AvailOnBreak     AvailabilityStatus = "on_break"    // 休息中
	AvailUnavailable AvailabilityStatus = "unavailable" // 不可用（人工设置）
)

// AvailabilityRecord 人员可用性台账（每人一条，仅由生命周期子系统修改）
type AvailabilityRecord struct {
	StaffID        uuid.UUID          `json:"staff_id" db:"staff_id"`
	Status         AvailabilityStatus `json:"status" db:"status"`
	CurrentShiftID *uuid.UUID         `json:"current_shift_id,omitempty" db:"current_shift_id"`
	AvailableFrom  *time.Time         `json:"available_from,omitempty" db:"available_from"` // 休整结束时间
	CheckedInAt    *time.Time         `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CheckedOutAt   *time.Time         `json:"checked_out_at,omitempty" db:"checked_out_at"`
	ManualHold     bool               `json:"manual_hold" db:"manual_hold"` // 人工不可用标记，不随班次自动清除
	Location       string             `json:"location,omitempty" db:"location"`
	Notes          string             `json:"notes,omitempty" db:"notes"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}

// NewAvailabilityRecord 创建初始可用性台账
func NewAvailabilityRecord(staffID uuid.UUID) *AvailabilityRecord {
	return &AvailabilityRecord{
		StaffID:   staffID,
		Status:    AvailAvailable,
		UpdatedAt: time.Now(),
	}
}

// CanTakeShiftAt 检查台账状态在某时刻是否允许接班
func (r *AvailabilityRecord) CanTakeShiftAt(t time.Time) bool {
	if r.Status == AvailUnavailable {
		return false
	}
	if r.AvailableFrom != nil && r.AvailableFrom.After(t) {
		return false
	}
	return true
}

// AvailabilityEvent 可用性变更流水（仅追加）
type AvailabilityEvent struct {
	ID      uuid.UUID          `json:"id" db:"id"`
	StaffID uuid.UUID          `json:"staff_id" db:"staff_id"`
	From    AvailabilityStatus `json:"from" db:"from_status"`
	To      AvailabilityStatus `json:"to" db:"to_status"`
	ShiftID *uuid.UUID         `json:"shift_id,omitempty" db:"shift_id"`
	Reason  string             `json:"reason" db:"reason"`
	At      time.Time          `json:"at" db:"at"`
}

// NewAvailabilityEvent 记录一次状态变更
func NewAvailabilityEvent(staffID uuid.UUID, from, to AvailabilityStatus, shiftID *uuid.UUID, reason string) *AvailabilityEvent {
	return &AvailabilityEvent{
		ID:      uuid.New(),
		StaffID: staffID,
		From:    from,
		To:      to,
		ShiftID: shiftID,
		Reason:  reason,
		At:      time.Now(),
	}
}
