package rule

import "github.com/yipai/yipai/pkg/model"

// OverlapRule 时间冲突规则（硬约束）
//
// 人员已有的待确认/已确认分配与目标班次的绝对时间窗口相交
// 即命中，跨夜班次的窗口已展开到次日。
type OverlapRule struct{}

// Name 返回规则名称
func (r *OverlapRule) Name() string { return "schedule_overlap" }

// Check 校验时间冲突
func (r *OverlapRule) Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation {
	tr := shift.TimeRange()

	var violations []Violation
	for _, a := range ctx.ActiveAllocationsForStaff(staff.ID) {
		if a.ShiftID == shift.ID {
			continue
		}
		if a.TimeRange().Overlaps(tr) {
			v := violation(ScheduleConflict, model.SeverityHard, r.Name(),
				"人员 %s 已有 %s %s-%s 的分配，与目标班次时段冲突",
				staff.Name, a.Date, a.StartTime.Format("15:04"), a.EndTime.Format("15:04"))
			v.Fields = map[string]interface{}{
				"conflicting_allocation": a.ID,
				"conflicting_shift":      a.ShiftID,
			}
			violations = append(violations, v)
		}
	}
	return violations
}
