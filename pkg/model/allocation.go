// Package model 定义医院排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// AllocationStatus 分配状态
type AllocationStatus string

const (
	AllocationPending   AllocationStatus = "pending"   // 待确认
	AllocationConfirmed AllocationStatus = "confirmed" // 已确认
	AllocationRejected  AllocationStatus = "rejected"  // 已拒绝
	AllocationCompleted AllocationStatus = "completed" // 已完成
)

// Allocation 人员-班次分配（一名人员担任一个岗位）
type Allocation struct {
	BaseModel
	StaffID uuid.UUID        `json:"staff_id" db:"staff_id"`
	ShiftID uuid.UUID        `json:"shift_id" db:"shift_id"`
	Role    Role             `json:"role" db:"role"`
	Status  AllocationStatus `json:"status" db:"status"`

	Confidence float64 `json:"confidence" db:"confidence"` // [0,1]
	Reasoning  string  `json:"reasoning,omitempty" db:"reasoning"`
	Override   bool    `json:"override" db:"override"` // 周工时上限人工豁免

	// 冗余的时间窗口（跨夜已展开为绝对时间），用于约束与冲突计算
	Date      string    `json:"date" db:"date"` // YYYY-MM-DD
	StartTime time.Time `json:"start_time" db:"start_time"`
	EndTime   time.Time `json:"end_time" db:"end_time"`

	CheckedInAt  *time.Time `json:"checked_in_at,omitempty" db:"checked_in_at"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty" db:"checked_out_at"`
	HoursWorked  float64    `json:"hours_worked,omitempty" db:"hours_worked"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
}

// NewAllocation 创建一条分配，时间窗口取自班次
func NewAllocation(staff *StaffMember, shift *Shift, role Role) *Allocation {
	tr := shift.TimeRange()
	return &Allocation{
		BaseModel: NewBaseModel(),
		StaffID:   staff.ID,
		ShiftID:   shift.ID,
		Role:      role,
		Status:    AllocationPending,
		Date:      shift.Date,
		StartTime: tr.Start,
		EndTime:   tr.End,
	}
}

// WorkingHours 计算分配的工作时长（小时）
func (a *Allocation) WorkingHours() float64 {
	return a.EndTime.Sub(a.StartTime).Hours()
}

// TimeRange 返回分配的绝对时间窗口
func (a *Allocation) TimeRange() TimeRange {
	return TimeRange{Start: a.StartTime, End: a.EndTime}
}

// IsActiveStatus 检查分配是否占用人员时间（待确认或已确认）
func (a *Allocation) IsActiveStatus() bool {
	return a.Status == AllocationPending || a.Status == AllocationConfirmed
}
