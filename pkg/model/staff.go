// Package model 定义医院排班引擎的核心数据模型
package model

import "fmt"

// Role 医护岗位（封闭枚举）
type Role string

const (
	RolePhysician      Role = "physician"      // 医生
	RoleNurse          Role = "nurse"          // 护士
	RoleTechnician     Role = "technician"     // 技师
	RoleAdministrative Role = "administrative" // 行政
	RoleSupport        Role = "support"        // 后勤
)

// ParseRole 解析岗位字符串，未知岗位返回错误
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RolePhysician, RoleNurse, RoleTechnician, RoleAdministrative, RoleSupport:
		return Role(s), nil
	}
	return "", fmt.Errorf("未知岗位: %q", s)
}

// AllRoles 返回全部合法岗位
func AllRoles() []Role {
	return []Role{RolePhysician, RoleNurse, RoleTechnician, RoleAdministrative, RoleSupport}
}

// CertTier 资质等级（有序枚举，独立于技能等级）
type CertTier string

const (
	CertBasic        CertTier = "basic"        // 初级
	CertIntermediate CertTier = "intermediate" // 中级
	CertAdvanced     CertTier = "advanced"     // 高级
	CertExpert       CertTier = "expert"       // 专家级
)

var certRank = map[CertTier]int{
	CertBasic:        1,
	CertIntermediate: 2,
	CertAdvanced:     3,
	CertExpert:       4,
}

// ParseCertTier 解析资质等级字符串
func ParseCertTier(s string) (CertTier, error) {
	if _, ok := certRank[CertTier(s)]; !ok {
		return "", fmt.Errorf("未知资质等级: %q", s)
	}
	return CertTier(s), nil
}

// Rank 返回资质等级序号（basic=1 … expert=4）
func (c CertTier) Rank() int {
	return certRank[c]
}

// AtLeast 检查资质是否达到要求等级
func (c CertTier) AtLeast(required CertTier) bool {
	return certRank[c] >= certRank[required]
}

// StaffStatus 人员在职状态
type StaffStatus string

const (
	StaffActive   StaffStatus = "active"   // 在职
	StaffInactive StaffStatus = "inactive" // 离职/停用
)

// StaffMember 医护人员
type StaffMember struct {
	BaseModel
	Name       string      `json:"name" db:"name"`
	Role       Role        `json:"role" db:"role"`
	Department Department  `json:"department" db:"department"`
	Status     StaffStatus `json:"status" db:"status"`

	SkillLevel      int      `json:"skill_level" db:"skill_level"`           // 1-10
	CertTier        CertTier `json:"cert_tier" db:"cert_tier"`               // 资质等级
	ExperienceYears int      `json:"experience_years" db:"experience_years"` // 从业年限
	MaxHoursPerWeek int      `json:"max_hours_per_week" db:"max_hours_per_week"`
	HourlyRate      float64  `json:"hourly_rate" db:"hourly_rate"`

	PreferredShiftTypes []ShiftType `json:"preferred_shift_types,omitempty" db:"preferred_shift_types"`
	UnavailableDates    []string    `json:"unavailable_dates,omitempty" db:"unavailable_dates"` // YYYY-MM-DD
}

// NewStaffMember 创建并校验医护人员，非法字段返回错误
func NewStaffMember(name string, role string, dept Department, skillLevel int, tier string, years int, maxHours int, rate float64) (*StaffMember, error) {
	r, err := ParseRole(role)
	if err != nil {
		return nil, err
	}
	ct, err := ParseCertTier(tier)
	if err != nil {
		return nil, err
	}
	if skillLevel < 1 || skillLevel > 10 {
		return nil, fmt.Errorf("技能等级必须在 1-10 之间: %d", skillLevel)
	}
	if years < 0 {
		return nil, fmt.Errorf("从业年限不能为负: %d", years)
	}
	if maxHours <= 0 {
		return nil, fmt.Errorf("每周最大工时必须大于 0: %d", maxHours)
	}
	if rate <= 0 {
		return nil, fmt.Errorf("时薪必须大于 0: %.2f", rate)
	}
	return &StaffMember{
		BaseModel:       NewBaseModel(),
		Name:            name,
		Role:            r,
		Department:      dept,
		Status:          StaffActive,
		SkillLevel:      skillLevel,
		CertTier:        ct,
		ExperienceYears: years,
		MaxHoursPerWeek: maxHours,
		HourlyRate:      rate,
	}, nil
}

// IsActive 检查人员是否在职
func (s *StaffMember) IsActive() bool {
	return s.Status == StaffActive
}

// PrefersShiftType 检查人员是否偏好某班次类型
func (s *StaffMember) PrefersShiftType(t ShiftType) bool {
	for _, p := range s.PreferredShiftTypes {
		if p == t {
			return true
		}
	}
	return false
}

// IsUnavailableOn 检查人员在某日期（YYYY-MM-DD）是否不可用
func (s *StaffMember) IsUnavailableOn(date string) bool {
	for _, d := range s.UnavailableDates {
		if d == date {
			return true
		}
	}
	return false
}
