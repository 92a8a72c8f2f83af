package rule

import "github.com/yipai/yipai/pkg/model"

// CertificationRule 资质准入规则（硬约束）
//
// 最低资质等级由外部策略给出（岗位+科室维度），资质与
// 技能是相互独立的两个维度。策略未覆盖的岗位不设门槛。
type CertificationRule struct {
	policy CertPolicy
}

// Name 返回规则名称
func (r *CertificationRule) Name() string { return "certification" }

// Check 校验人员资质是否达到岗位准入要求
func (r *CertificationRule) Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation {
	if r.policy == nil {
		return nil
	}
	required, ok := r.policy.RequiredTier(staff.Role, shift.Department)
	if !ok {
		return nil
	}
	if staff.CertTier.AtLeast(required) {
		return nil
	}
	v := violation(InsufficientCertification, model.SeverityHard, r.Name(),
		"人员 %s 资质 %s 未达到 %s 科室 %s 岗位的准入等级 %s",
		staff.Name, staff.CertTier, shift.Department, staff.Role, required)
	v.Fields = map[string]interface{}{
		"cert_tier":     staff.CertTier,
		"required_tier": required,
	}
	return []Violation{v}
}
