// Package model 定义医院排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// Severity 违规严重程度
type Severity string

const (
	SeverityHard Severity = "hard" // 硬约束（不可分配）
	SeveritySoft Severity = "soft" // 软约束（记录但不阻止）
)

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration 返回时间范围的持续时间
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Overlaps 检查两个时间范围是否重叠
func (tr TimeRange) Overlaps(other TimeRange) bool {
	return tr.Start.Before(other.End) && other.Start.Before(tr.End)
}

// Contains 检查时间范围是否包含某个时间点
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// Contains 检查日期（YYYY-MM-DD）是否落在范围内（闭区间）
func (dr DateRange) Contains(date string) bool {
	return date >= dr.StartDate && date <= dr.EndDate
}

// Department 科室
type Department string

const (
	DeptEmergency  Department = "emergency"  // 急诊
	DeptICU        Department = "icu"        // 重症监护
	DeptSurgery    Department = "surgery"    // 外科
	DeptPediatrics Department = "pediatrics" // 儿科
	DeptCardiology Department = "cardiology" // 心内科
	DeptGeneral    Department = "general"    // 普通科室
)
