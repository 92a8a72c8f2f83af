// Package model 定义医院排班引擎的核心数据模型
package model

import (
	"fmt"
	"time"
)

// ShiftType 班次类型
type ShiftType string

const (
	ShiftMorning   ShiftType = "morning"   // 早班
	ShiftAfternoon ShiftType = "afternoon" // 中班
	ShiftEvening   ShiftType = "evening"   // 晚班
	ShiftNight     ShiftType = "night"     // 夜班
	ShiftOnCall    ShiftType = "on_call"   // 待命班
)

// ParseShiftType 解析班次类型字符串
func ParseShiftType(s string) (ShiftType, error) {
	switch ShiftType(s) {
	case ShiftMorning, ShiftAfternoon, ShiftEvening, ShiftNight, ShiftOnCall:
		return ShiftType(s), nil
	}
	return "", fmt.Errorf("未知班次类型: %q", s)
}

// Priority 班次优先级（有序）
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

var priorityRank = map[Priority]int{
	PriorityLow:      1,
	PriorityMedium:   2,
	PriorityHigh:     3,
	PriorityCritical: 4,
}

// Rank 返回优先级序号（low=1 … critical=4）
func (p Priority) Rank() int {
	return priorityRank[p]
}

// ShiftStatus 班次生命周期状态
type ShiftStatus string

const (
	ShiftScheduled  ShiftStatus = "scheduled"   // 已排班
	ShiftInProgress ShiftStatus = "in_progress" // 进行中
	ShiftCompleted  ShiftStatus = "completed"   // 已完成
	ShiftArchived   ShiftStatus = "archived"    // 已归档
)

// Shift 班次
type Shift struct {
	BaseModel
	Date       string     `json:"date" db:"date"` // YYYY-MM-DD
	ShiftType  ShiftType  `json:"shift_type" db:"shift_type"`
	Department Department `json:"department" db:"department"`
	StartTime  string     `json:"start_time" db:"start_time"` // HH:MM
	EndTime    string     `json:"end_time" db:"end_time"`     // HH:MM，小于等于开始时间表示跨夜

	RequiredStaff map[Role]int `json:"required_staff" db:"required_staff"` // 岗位 -> 需求人数
	MinSkillLevel int          `json:"min_skill_level" db:"min_skill_level"`
	Priority      Priority     `json:"priority" db:"priority"`
	MaxCapacity   int          `json:"max_capacity" db:"max_capacity"` // 含后备人员的最大编制

	Status      ShiftStatus `json:"status" db:"status"`
	ActualStart *time.Time  `json:"actual_start,omitempty" db:"actual_start"`
	ActualEnd   *time.Time  `json:"actual_end,omitempty" db:"actual_end"`
	Notes       string      `json:"notes,omitempty" db:"notes"`
}

// NewShift 创建并校验班次
func NewShift(date string, shiftType string, dept Department, startTime, endTime string, required map[string]int, minSkill int, priority Priority, maxCapacity int) (*Shift, error) {
	st, err := ParseShiftType(shiftType)
	if err != nil {
		return nil, err
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return nil, fmt.Errorf("非法日期 %q: %w", date, err)
	}
	if _, err := time.Parse("15:04", startTime); err != nil {
		return nil, fmt.Errorf("非法开始时间 %q: %w", startTime, err)
	}
	if _, err := time.Parse("15:04", endTime); err != nil {
		return nil, fmt.Errorf("非法结束时间 %q: %w", endTime, err)
	}
	req := make(map[Role]int, len(required))
	total := 0
	for role, n := range required {
		r, err := ParseRole(role)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("岗位 %s 需求人数必须大于 0: %d", role, n)
		}
		req[r] = n
		total += n
	}
	if len(req) == 0 {
		return nil, fmt.Errorf("班次必须至少要求一个岗位")
	}
	if minSkill < 1 || minSkill > 10 {
		return nil, fmt.Errorf("最低技能等级必须在 1-10 之间: %d", minSkill)
	}
	if maxCapacity < total {
		return nil, fmt.Errorf("最大编制 %d 小于岗位需求合计 %d", maxCapacity, total)
	}
	return &Shift{
		BaseModel:     NewBaseModel(),
		Date:          date,
		ShiftType:     st,
		Department:    dept,
		StartTime:     startTime,
		EndTime:       endTime,
		RequiredStaff: req,
		MinSkillLevel: minSkill,
		Priority:      priority,
		MaxCapacity:   maxCapacity,
		Status:        ShiftScheduled,
	}, nil
}

// TotalRequired 返回岗位需求人数合计
func (s *Shift) TotalRequired() int {
	total := 0
	for _, n := range s.RequiredStaff {
		total += n
	}
	return total
}

// IsOvernight 检查班次是否跨夜（结束时间不晚于开始时间）
func (s *Shift) IsOvernight() bool {
	return s.EndTime <= s.StartTime
}

// DurationHours 返回班次时长（小时），按 24 小时取模处理跨夜
func (s *Shift) DurationHours() float64 {
	tr := s.TimeRange()
	return tr.Duration().Hours()
}

// TimeRange 返回班次在其日期上的绝对时间窗口，跨夜班次结束于次日
func (s *Shift) TimeRange() TimeRange {
	day, _ := time.Parse("2006-01-02", s.Date)
	start := parseTimeOnDate(day, s.StartTime)
	end := parseTimeOnDate(day, s.EndTime)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return TimeRange{Start: start, End: end}
}

func parseTimeOnDate(day time.Time, hhmm string) time.Time {
	t, _ := time.Parse("15:04", hhmm)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}
