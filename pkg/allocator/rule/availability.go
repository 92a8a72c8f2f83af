package rule

import "github.com/yipai/yipai/pkg/model"

// AvailabilityRule 可用性规则（硬约束）
//
// 命中条件：班次日期在人员的不可用日期中，或可用性台账
// 在开班时刻不允许接班（不可用、休息中、在岗其他重叠班次、休整未结束）。
type AvailabilityRule struct{}

// Name 返回规则名称
func (r *AvailabilityRule) Name() string { return "availability" }

// Check 校验人员在班次时段的可用性
func (r *AvailabilityRule) Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation {
	var violations []Violation

	if !staff.IsActive() {
		violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
			"人员 %s 已停用", staff.Name))
		return violations
	}

	if staff.IsUnavailableOn(shift.Date) {
		violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
			"人员 %s 在 %s 不可用", staff.Name, shift.Date))
	}

	rec := ctx.Availability(staff.ID)
	if rec == nil {
		return violations
	}

	tr := shift.TimeRange()
	switch rec.Status {
	case model.AvailUnavailable:
		violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
			"人员 %s 已被标记为不可用", staff.Name))
	case model.AvailOnBreak:
		violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
			"人员 %s 正在休息中", staff.Name))
	case model.AvailWorking:
		// 在岗本身不阻止排未来班次，仅当前班次与目标班次时段重叠时阻止
		if rec.CurrentShiftID != nil {
			if cur := ctx.Shift(*rec.CurrentShiftID); cur != nil && cur.ID != shift.ID && cur.TimeRange().Overlaps(tr) {
				violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
					"人员 %s 正在班次 %s 上岗，时段重叠", staff.Name, cur.ID))
			}
		}
	}

	if rec.AvailableFrom != nil && rec.AvailableFrom.After(tr.Start) {
		violations = append(violations, violation(Unavailable, model.SeverityHard, r.Name(),
			"人员 %s 休整至 %s，晚于开班时间", staff.Name, rec.AvailableFrom.Format("2006-01-02 15:04")))
	}

	return violations
}
