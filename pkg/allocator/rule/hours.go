package rule

import "github.com/yipai/yipai/pkg/model"

// HoursRule 周工时上限规则
//
// 统计班次所在 ISO 周内已占用工时，加上本班次时长后超过
// 人员周上限即命中。默认硬约束；人员被设置豁免时降为软约束，
// 仍会记录但不阻止分配。
type HoursRule struct{}

// Name 返回规则名称
func (r *HoursRule) Name() string { return "weekly_hours" }

// Check 校验周工时上限
func (r *HoursRule) Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation {
	committed := ctx.HoursInISOWeek(staff.ID, shift.Date)
	projected := committed + shift.DurationHours()
	if projected <= float64(staff.MaxHoursPerWeek) {
		return nil
	}

	severity := model.SeverityHard
	if ctx.HasOverride(staff.ID) {
		severity = model.SeveritySoft
	}
	v := violation(OvertimeViolation, severity, r.Name(),
		"人员 %s 本周工时将达 %.1f 小时，超过上限 %d 小时", staff.Name, projected, staff.MaxHoursPerWeek)
	v.Fields = map[string]interface{}{
		"committed_hours": committed,
		"shift_hours":     shift.DurationHours(),
		"max_hours":       staff.MaxHoursPerWeek,
	}
	return []Violation{v}
}
