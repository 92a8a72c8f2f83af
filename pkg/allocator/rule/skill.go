package rule

import "github.com/yipai/yipai/pkg/model"

// SkillRule 技能等级规则（硬约束）：人员技能低于班次最低要求时命中
type SkillRule struct{}

// Name 返回规则名称
func (r *SkillRule) Name() string { return "skill_level" }

// Check 校验技能等级
func (r *SkillRule) Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation {
	if staff.SkillLevel >= shift.MinSkillLevel {
		return nil
	}
	v := violation(InsufficientSkill, model.SeverityHard, r.Name(),
		"人员 %s 技能等级 %d 低于班次要求 %d", staff.Name, staff.SkillLevel, shift.MinSkillLevel)
	v.Fields = map[string]interface{}{
		"skill_level": staff.SkillLevel,
		"min_skill":   shift.MinSkillLevel,
	}
	return []Violation{v}
}
