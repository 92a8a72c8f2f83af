// Package rule 实现人员-班次分配的约束校验
//
// 校验器对每条规则逐一求值并收集全部违规，不做短路。
// 只要不存在硬性违规，人员即视为可分配。
package rule

import (
	"fmt"

	"github.com/yipai/yipai/pkg/model"
)

// ViolationKind 违规类型
type ViolationKind string

const (
	Unavailable               ViolationKind = "unavailable"                // 人员不可用
	InsufficientSkill         ViolationKind = "insufficient_skill"         // 技能不足
	InsufficientCertification ViolationKind = "insufficient_certification" // 资质不足
	OvertimeViolation         ViolationKind = "overtime_violation"         // 超出周工时上限
	ScheduleConflict          ViolationKind = "schedule_conflict"          // 排班时间冲突
)

// Violation 一条违规记录
type Violation struct {
	Kind     ViolationKind          `json:"kind"`
	Severity model.Severity         `json:"severity"`
	RuleName string                 `json:"rule_name"`
	Message  string                 `json:"message"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// Result 单次校验结果
type Result struct {
	Eligible   bool        `json:"eligible"` // 无硬性违规
	Violations []Violation `json:"violations"`
}

// HardCount 返回硬性违规数量
func (r *Result) HardCount() int {
	n := 0
	for _, v := range r.Violations {
		if v.Severity == model.SeverityHard {
			n++
		}
	}
	return n
}

// Rule 单条约束规则
type Rule interface {
	// Name 返回规则名称
	Name() string
	// Check 对（人员，班次）求值，返回全部违规；纯函数，不得修改上下文
	Check(ctx *Context, staff *model.StaffMember, shift *model.Shift) []Violation
}

// CertPolicy 资质准入策略（外部输入）：岗位+科室 -> 最低资质等级
type CertPolicy interface {
	RequiredTier(role model.Role, dept model.Department) (model.CertTier, bool)
}

// Validator 约束校验器，按固定顺序运行全部规则
type Validator struct {
	rules []Rule
}

// NewValidator 创建校验器并注册默认规则
func NewValidator(policy CertPolicy) *Validator {
	return &Validator{
		rules: []Rule{
			&AvailabilityRule{},
			&SkillRule{},
			&CertificationRule{policy: policy},
			&HoursRule{},
			&OverlapRule{},
		},
	}
}

// Validate 校验一次候选分配，收集全部违规后给出结论
func (v *Validator) Validate(ctx *Context, staff *model.StaffMember, shift *model.Shift) *Result {
	result := &Result{Eligible: true, Violations: []Violation{}}
	for _, r := range v.rules {
		result.Violations = append(result.Violations, r.Check(ctx, staff, shift)...)
	}
	for _, viol := range result.Violations {
		if viol.Severity == model.SeverityHard {
			result.Eligible = false
			break
		}
	}
	return result
}

func violation(kind ViolationKind, severity model.Severity, ruleName, format string, args ...interface{}) Violation {
	return Violation{
		Kind:     kind,
		Severity: severity,
		RuleName: ruleName,
		Message:  fmt.Sprintf(format, args...),
	}
}
