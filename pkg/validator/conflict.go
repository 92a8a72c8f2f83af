// Package validator 提供分配集合的冲突检测
//
// 检测器无内部状态，每次调用针对传入数据完整重新推导，
// 对相同输入幂等，可在任意时点安全调用。
package validator

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// ConflictType 冲突类型
type ConflictType string

const (
	ConflictOverlap          ConflictType = "overlap"           // 同一人员时段重叠
	ConflictShortfall        ConflictType = "shortfall"         // 岗位人数不足
	ConflictOverstaffed      ConflictType = "overstaffed"       // 岗位超出需求+后备
	ConflictCapacityExceeded ConflictType = "capacity_exceeded" // 超出班次编制
)

// Conflict 一条冲突记录
type Conflict struct {
	Type        ConflictType `json:"type"`
	Severity    string       `json:"severity"` // high/medium/low
	StaffID     *uuid.UUID   `json:"staff_id,omitempty"`
	ShiftID     *uuid.UUID   `json:"shift_id,omitempty"`
	Role        model.Role   `json:"role,omitempty"`
	Date        string       `json:"date,omitempty"`
	Message     string       `json:"message"`
	Allocations []uuid.UUID  `json:"allocations,omitempty"`
}

// Report 冲突检测报告
type Report struct {
	PerStaff []Conflict           `json:"per_staff"`
	PerShift []Conflict           `json:"per_shift"`
	Total    int                  `json:"total"`
	ByType   map[ConflictType]int `json:"by_type"`
}

// DetectorConfig 检测器配置
type DetectorConfig struct {
	BackupMargin int // 每岗位允许的后备人数
}

// DefaultDetectorConfig 返回默认配置
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{BackupMargin: 1}
}

// ConflictDetector 冲突检测器
type ConflictDetector struct {
	config DetectorConfig
}

// NewConflictDetector 创建冲突检测器
func NewConflictDetector(config DetectorConfig) *ConflictDetector {
	return &ConflictDetector{config: config}
}

// Detect 对分配集合做完整冲突检测
//
// 重叠检测考虑占用时间的分配（待确认+已确认）；
// 人数与编制核对只计已确认。
func (d *ConflictDetector) Detect(allocations []*model.Allocation, shifts []*model.Shift) *Report {
	report := &Report{
		PerStaff: []Conflict{},
		PerShift: []Conflict{},
		ByType:   make(map[ConflictType]int),
	}

	d.detectStaffOverlaps(allocations, report)
	d.detectShiftStaffing(allocations, shifts, report)

	report.Total = len(report.PerStaff) + len(report.PerShift)
	for _, c := range report.PerStaff {
		report.ByType[c.Type]++
	}
	for _, c := range report.PerShift {
		report.ByType[c.Type]++
	}
	return report
}

// detectStaffOverlaps 检测每个人员内部的时段重叠
func (d *ConflictDetector) detectStaffOverlaps(allocations []*model.Allocation, report *Report) {
	byStaff := make(map[uuid.UUID][]*model.Allocation)
	for _, a := range allocations {
		if a.IsActiveStatus() {
			byStaff[a.StaffID] = append(byStaff[a.StaffID], a)
		}
	}

	staffIDs := make([]uuid.UUID, 0, len(byStaff))
	for id := range byStaff {
		staffIDs = append(staffIDs, id)
	}
	sort.Slice(staffIDs, func(i, j int) bool { return staffIDs[i].String() < staffIDs[j].String() })

	for _, staffID := range staffIDs {
		allocs := byStaff[staffID]
		sort.Slice(allocs, func(i, j int) bool { return allocs[i].StartTime.Before(allocs[j].StartTime) })

		for i := 0; i < len(allocs); i++ {
			for j := i + 1; j < len(allocs); j++ {
				// 按开始时间排序后，一旦不再重叠即可跳出内层
				if !allocs[j].StartTime.Before(allocs[i].EndTime) {
					break
				}
				id := staffID
				report.PerStaff = append(report.PerStaff, Conflict{
					Type:     ConflictOverlap,
					Severity: "high",
					StaffID:  &id,
					Date:     allocs[i].Date,
					Message: fmt.Sprintf("人员 %s 在 %s 存在重叠分配: %s-%s 与 %s-%s",
						staffID, allocs[i].Date,
						allocs[i].StartTime.Format("15:04"), allocs[i].EndTime.Format("15:04"),
						allocs[j].StartTime.Format("15:04"), allocs[j].EndTime.Format("15:04")),
					Allocations: []uuid.UUID{allocs[i].ID, allocs[j].ID},
				})
			}
		}
	}
}

// detectShiftStaffing 核对每个班次的岗位人数与编制
func (d *ConflictDetector) detectShiftStaffing(allocations []*model.Allocation, shifts []*model.Shift, report *Report) {
	confirmedByShift := make(map[uuid.UUID]map[model.Role]int)
	totalByShift := make(map[uuid.UUID]int)
	for _, a := range allocations {
		if a.Status != model.AllocationConfirmed {
			continue
		}
		if confirmedByShift[a.ShiftID] == nil {
			confirmedByShift[a.ShiftID] = make(map[model.Role]int)
		}
		confirmedByShift[a.ShiftID][a.Role]++
		totalByShift[a.ShiftID]++
	}

	for _, shift := range shifts {
		confirmed := confirmedByShift[shift.ID]
		shiftID := shift.ID

		for _, role := range orderedRoles(shift.RequiredStaff) {
			required := shift.RequiredStaff[role]
			have := confirmed[role]
			if have < required {
				report.PerShift = append(report.PerShift, Conflict{
					Type:     ConflictShortfall,
					Severity: shortfallSeverity(shift.Priority),
					ShiftID:  &shiftID,
					Role:     role,
					Date:     shift.Date,
					Message: fmt.Sprintf("班次 %s %s 岗位 %s 人数不足: 需 %d 实有 %d",
						shift.Date, shift.ShiftType, role, required, have),
				})
			}
			if have > required+d.config.BackupMargin {
				report.PerShift = append(report.PerShift, Conflict{
					Type:     ConflictOverstaffed,
					Severity: "medium",
					ShiftID:  &shiftID,
					Role:     role,
					Date:     shift.Date,
					Message: fmt.Sprintf("班次 %s %s 岗位 %s 超员: 需 %d+%d 实有 %d",
						shift.Date, shift.ShiftType, role, required, d.config.BackupMargin, have),
				})
			}
		}

		if totalByShift[shift.ID] > shift.MaxCapacity {
			report.PerShift = append(report.PerShift, Conflict{
				Type:     ConflictCapacityExceeded,
				Severity: "high",
				ShiftID:  &shiftID,
				Date:     shift.Date,
				Message: fmt.Sprintf("班次 %s %s 超出编制: 上限 %d 实有 %d",
					shift.Date, shift.ShiftType, shift.MaxCapacity, totalByShift[shift.ID]),
			})
		}
	}
}

func shortfallSeverity(p model.Priority) string {
	if p == model.PriorityCritical || p == model.PriorityHigh {
		return "high"
	}
	return "medium"
}

func orderedRoles(required map[model.Role]int) []model.Role {
	roles := make([]model.Role, 0, len(required))
	for r := range required {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}
