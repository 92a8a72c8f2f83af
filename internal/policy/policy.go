// Package policy 定义医院资质准入策略
package policy

import (
	"sort"
	"sync"

	"github.com/yipai/yipai/pkg/model"
)

// Requirement 一条资质准入要求
type Requirement struct {
	Role        model.Role       `json:"role"`
	Department  model.Department `json:"department"`
	MinTier     model.CertTier   `json:"min_tier"`
	DisplayName string           `json:"display_name"`
	Description string           `json:"description"`
}

// Registry 资质准入注册表：岗位+科室 -> 最低资质等级
//
// 实现分配校验所需的准入查询接口；未登记的岗位+科室组合不设门槛。
type Registry struct {
	mu    sync.RWMutex
	rules map[model.Role]map[model.Department]Requirement
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{rules: make(map[model.Role]map[model.Department]Requirement)}
}

// NewDefaultRegistry 创建载入医院默认准入要求的注册表
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, req := range defaultRequirements() {
		r.Set(req)
	}
	return r
}

// Set 登记或覆盖一条准入要求
func (r *Registry) Set(req Requirement) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rules[req.Role] == nil {
		r.rules[req.Role] = make(map[model.Department]Requirement)
	}
	r.rules[req.Role][req.Department] = req
}

// RequiredTier 查询岗位+科室的最低资质等级；未登记返回 false
func (r *Registry) RequiredTier(role model.Role, dept model.Department) (model.CertTier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	byDept, ok := r.rules[role]
	if !ok {
		return "", false
	}
	req, ok := byDept[dept]
	if !ok {
		return "", false
	}
	return req.MinTier, true
}

// List 返回全部准入要求，按岗位、科室排序
func (r *Registry) List() []Requirement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var reqs []Requirement
	for _, byDept := range r.rules {
		for _, req := range byDept {
			reqs = append(reqs, req)
		}
	}
	sort.Slice(reqs, func(i, j int) bool {
		if reqs[i].Role != reqs[j].Role {
			return reqs[i].Role < reqs[j].Role
		}
		return reqs[i].Department < reqs[j].Department
	})
	return reqs
}

// defaultRequirements 医院默认资质准入要求
func defaultRequirements() []Requirement {
	return []Requirement{
		// =====================================================
		// 医生
		// =====================================================
		{
			Role: model.RolePhysician, Department: model.DeptEmergency, MinTier: model.CertAdvanced,
			DisplayName: "急诊医生资质",
			Description: "急诊科医生须持有高级及以上执业资质，能够独立处置急危重症。",
		},
		{
			Role: model.RolePhysician, Department: model.DeptICU, MinTier: model.CertAdvanced,
			DisplayName: "重症监护医生资质",
			Description: "重症监护医生须持有高级及以上执业资质。",
		},
		{
			Role: model.RolePhysician, Department: model.DeptSurgery, MinTier: model.CertAdvanced,
			DisplayName: "外科医生资质",
			Description: "外科手术班医生须持有高级及以上执业资质。",
		},
		{
			Role: model.RolePhysician, Department: model.DeptCardiology, MinTier: model.CertAdvanced,
			DisplayName: "心内科医生资质",
			Description: "心内科医生须持有高级及以上执业资质。",
		},
		{
			Role: model.RolePhysician, Department: model.DeptPediatrics, MinTier: model.CertIntermediate,
			DisplayName: "儿科医生资质",
			Description: "儿科医生须持有中级及以上执业资质。",
		},
		{
			Role: model.RolePhysician, Department: model.DeptGeneral, MinTier: model.CertIntermediate,
			DisplayName: "普通科室医生资质",
			Description: "普通科室医生须持有中级及以上执业资质。",
		},

		// =====================================================
		// 护士
		// =====================================================
		{
			Role: model.RoleNurse, Department: model.DeptEmergency, MinTier: model.CertIntermediate,
			DisplayName: "急诊护士资质",
			Description: "急诊科护士须持有中级及以上护理资质，具备急救处置能力。",
		},
		{
			Role: model.RoleNurse, Department: model.DeptICU, MinTier: model.CertIntermediate,
			DisplayName: "重症监护护士资质",
			Description: "重症监护护士须持有中级及以上护理资质。",
		},
		{
			Role: model.RoleNurse, Department: model.DeptSurgery, MinTier: model.CertIntermediate,
			DisplayName: "手术室护士资质",
			Description: "手术班护士须持有中级及以上护理资质。",
		},
		{
			Role: model.RoleNurse, Department: model.DeptGeneral, MinTier: model.CertBasic,
			DisplayName: "普通科室护士资质",
			Description: "普通科室护士须持有基础护理资质。",
		},

		// =====================================================
		// 技师
		// =====================================================
		{
			Role: model.RoleTechnician, Department: model.DeptICU, MinTier: model.CertIntermediate,
			DisplayName: "重症监护技师资质",
			Description: "重症监护设备技师须持有中级及以上技师资质。",
		},
		{
			Role: model.RoleTechnician, Department: model.DeptSurgery, MinTier: model.CertIntermediate,
			DisplayName: "手术室技师资质",
			Description: "手术室设备技师须持有中级及以上技师资质。",
		},

		// 行政与后勤岗位不设资质门槛
	}
}
