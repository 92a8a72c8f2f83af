// Package demand 提供班次用人需求的测算与排班模板
package demand

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/yipai/yipai/pkg/model"
)

// RoleRequirement 班次内单个岗位的需求满足情况
type RoleRequirement struct {
	Role      model.Role `json:"role"`
	Required  int        `json:"required"`
	Fulfilled int        `json:"fulfilled"` // 已确认
	Pending   int        `json:"pending"`   // 待确认
	Remaining int        `json:"remaining"`
}

// Requirement 单个班次的需求测算结果
type Requirement struct {
	ShiftID           uuid.UUID         `json:"shift_id"`
	Date              string            `json:"date"`
	ShiftType         model.ShiftType   `json:"shift_type"`
	Department        model.Department  `json:"department"`
	Roles             []RoleRequirement `json:"roles"`
	TotalRequired     int               `json:"total_required"`
	TotalFulfilled    int               `json:"total_fulfilled"`
	CapacityRemaining int               `json:"capacity_remaining"`
	FullyStaffed      bool              `json:"fully_staffed"`
	BackupSuggested   int               `json:"backup_suggested"` // 建议的备勤人数
}

// Planner 用人需求测算器
type Planner struct {
	// 高优先级班次按缺口追加的备勤余量
	backupMargin int
}

// NewPlanner 创建需求测算器；margin 为高优先级班次的备勤余量
func NewPlanner(margin int) *Planner {
	if margin < 0 {
		margin = 0
	}
	return &Planner{backupMargin: margin}
}

// Requirements 测算单个班次的岗位需求，满足人数只计已确认分配
func (p *Planner) Requirements(shift *model.Shift, allocations []*model.Allocation) *Requirement {
	confirmed := make(map[model.Role]int)
	pending := make(map[model.Role]int)
	occupied := 0
	for _, a := range allocations {
		if a.ShiftID != shift.ID {
			continue
		}
		switch a.Status {
		case model.AllocationConfirmed:
			confirmed[a.Role]++
			occupied++
		case model.AllocationPending:
			pending[a.Role]++
			occupied++
		}
	}

	req := &Requirement{
		ShiftID:    shift.ID,
		Date:       shift.Date,
		ShiftType:  shift.ShiftType,
		Department: shift.Department,
		Roles:      []RoleRequirement{},
	}

	roles := make([]model.Role, 0, len(shift.RequiredStaff))
	for role := range shift.RequiredStaff {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	fullyStaffed := true
	for _, role := range roles {
		required := shift.RequiredStaff[role]
		remaining := required - confirmed[role]
		if remaining < 0 {
			remaining = 0
		}
		if confirmed[role] < required {
			fullyStaffed = false
		}
		req.Roles = append(req.Roles, RoleRequirement{
			Role:      role,
			Required:  required,
			Fulfilled: confirmed[role],
			Pending:   pending[role],
			Remaining: remaining,
		})
		req.TotalRequired += required
		req.TotalFulfilled += confirmed[role]
	}

	req.FullyStaffed = fullyStaffed
	req.CapacityRemaining = shift.MaxCapacity - occupied
	if req.CapacityRemaining < 0 {
		req.CapacityRemaining = 0
	}
	if !fullyStaffed && shift.Priority.Rank() >= model.PriorityHigh.Rank() {
		req.BackupSuggested = p.backupMargin
	}
	return req
}

// RequirementsAll 测算一批班次的需求，按日期、班次类型排序
func (p *Planner) RequirementsAll(shifts []*model.Shift, allocations []*model.Allocation) []*Requirement {
	reqs := make([]*Requirement, 0, len(shifts))
	for _, s := range shifts {
		reqs = append(reqs, p.Requirements(s, allocations))
	}
	sort.SliceStable(reqs, func(i, j int) bool {
		if reqs[i].Date != reqs[j].Date {
			return reqs[i].Date < reqs[j].Date
		}
		return reqs[i].ShiftType < reqs[j].ShiftType
	})
	return reqs
}

// Template 科室排班模板：某类班次的岗位编制与参数
type Template struct {
	ShiftType     model.ShiftType    `json:"shift_type"`
	StartTime     string             `json:"start_time"`
	EndTime       string             `json:"end_time"`
	RequiredStaff map[model.Role]int `json:"required_staff"`
	MinSkillLevel int                `json:"min_skill_level"`
	Priority      model.Priority     `json:"priority"`
	MaxCapacity   int                `json:"max_capacity"`
}

// DefaultTemplates 返回各科室的默认排班模板
func DefaultTemplates() map[model.Department][]Template {
	return map[model.Department][]Template{
		model.DeptEmergency: {
			{ShiftType: model.ShiftMorning, StartTime: "08:00", EndTime: "16:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 2, model.RoleNurse: 4, model.RoleTechnician: 1},
				MinSkillLevel: 6, Priority: model.PriorityCritical, MaxCapacity: 9},
			{ShiftType: model.ShiftEvening, StartTime: "16:00", EndTime: "00:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 2, model.RoleNurse: 3, model.RoleTechnician: 1},
				MinSkillLevel: 6, Priority: model.PriorityCritical, MaxCapacity: 8},
			{ShiftType: model.ShiftNight, StartTime: "00:00", EndTime: "08:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 1, model.RoleNurse: 2},
				MinSkillLevel: 6, Priority: model.PriorityHigh, MaxCapacity: 5},
		},
		model.DeptICU: {
			{ShiftType: model.ShiftMorning, StartTime: "08:00", EndTime: "16:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 1, model.RoleNurse: 3},
				MinSkillLevel: 7, Priority: model.PriorityCritical, MaxCapacity: 6},
			{ShiftType: model.ShiftNight, StartTime: "20:00", EndTime: "08:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 1, model.RoleNurse: 2},
				MinSkillLevel: 7, Priority: model.PriorityCritical, MaxCapacity: 5},
		},
		model.DeptGeneral: {
			{ShiftType: model.ShiftMorning, StartTime: "08:00", EndTime: "16:00",
				RequiredStaff: map[model.Role]int{model.RolePhysician: 1, model.RoleNurse: 2, model.RoleAdministrative: 1},
				MinSkillLevel: 3, Priority: model.PriorityMedium, MaxCapacity: 6},
			{ShiftType: model.ShiftAfternoon, StartTime: "14:00", EndTime: "22:00",
				RequiredStaff: map[model.Role]int{model.RoleNurse: 2, model.RoleSupport: 1},
				MinSkillLevel: 3, Priority: model.PriorityLow, MaxCapacity: 4},
		},
	}
}

// PlanShifts 按模板为科室生成某一天的班次
func (p *Planner) PlanShifts(date string, dept model.Department, templates map[model.Department][]Template) ([]*model.Shift, error) {
	tmpls, ok := templates[dept]
	if !ok {
		return nil, fmt.Errorf("科室 %s 没有排班模板", dept)
	}

	shifts := make([]*model.Shift, 0, len(tmpls))
	for _, tmpl := range tmpls {
		required := make(map[string]int, len(tmpl.RequiredStaff))
		for role, n := range tmpl.RequiredStaff {
			required[string(role)] = n
		}
		shift, err := model.NewShift(date, string(tmpl.ShiftType), dept,
			tmpl.StartTime, tmpl.EndTime, required, tmpl.MinSkillLevel, tmpl.Priority, tmpl.MaxCapacity)
		if err != nil {
			return nil, fmt.Errorf("按模板生成 %s %s 班次失败: %w", dept, tmpl.ShiftType, err)
		}
		shifts = append(shifts, shift)
	}
	return shifts, nil
}
