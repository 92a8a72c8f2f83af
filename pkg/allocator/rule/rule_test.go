package rule

import (
	"testing"

	"github.com/yipai/yipai/pkg/model"
)

type fixedPolicy map[model.Role]model.CertTier

func (p fixedPolicy) RequiredTier(role model.Role, dept model.Department) (model.CertTier, bool) {
	t, ok := p[role]
	return t, ok
}

func newNurse(t *testing.T, name string, skill int, tier string, maxHours int) *model.StaffMember {
	t.Helper()
	s, err := model.NewStaffMember(name, "nurse", model.DeptICU, skill, tier, 5, maxHours, 50)
	if err != nil {
		t.Fatalf("NewStaffMember() error = %v", err)
	}
	return s
}

func newICUShift(t *testing.T, date, start, end string, minSkill int) *model.Shift {
	t.Helper()
	sh, err := model.NewShift(date, "morning", model.DeptICU, start, end,
		map[string]int{"nurse": 2}, minSkill, model.PriorityHigh, 3)
	if err != nil {
		t.Fatalf("NewShift() error = %v", err)
	}
	return sh
}

func TestValidator_EligibleStaff(t *testing.T) {
	staff := newNurse(t, "李娜", 8, "advanced", 40)
	shift := newICUShift(t, "2025-01-10", "08:00", "16:00", 5)
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{shift}, nil)

	result := NewValidator(nil).Validate(ctx, staff, shift)
	if !result.Eligible {
		t.Errorf("Expected eligible, got violations: %v", result.Violations)
	}
	if len(result.Violations) != 0 {
		t.Errorf("Expected 0 violations, got %d", len(result.Violations))
	}
}

func TestValidator_CollectsAllViolations(t *testing.T) {
	// 技能不足 + 资质不足 + 日期不可用，三条都要收集
	staff := newNurse(t, "王芳", 3, "basic", 40)
	staff.UnavailableDates = []string{"2025-01-10"}
	shift := newICUShift(t, "2025-01-10", "08:00", "16:00", 7)
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{shift}, nil)

	policy := fixedPolicy{model.RoleNurse: model.CertIntermediate}
	result := NewValidator(policy).Validate(ctx, staff, shift)

	if result.Eligible {
		t.Error("Expected ineligible")
	}
	if len(result.Violations) != 3 {
		t.Fatalf("Expected 3 violations, got %d: %v", len(result.Violations), result.Violations)
	}
	kinds := map[ViolationKind]bool{}
	for _, v := range result.Violations {
		kinds[v.Kind] = true
	}
	for _, k := range []ViolationKind{Unavailable, InsufficientSkill, InsufficientCertification} {
		if !kinds[k] {
			t.Errorf("Missing violation kind %s", k)
		}
	}
}

func TestOverlapRule_SameDayConflict(t *testing.T) {
	staff := newNurse(t, "刘洋", 8, "advanced", 60)
	confirmed := newICUShift(t, "2025-01-10", "08:00", "16:00", 5)
	target := newICUShift(t, "2025-01-10", "14:00", "22:00", 5)

	alloc := model.NewAllocation(staff, confirmed, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed

	ctx := NewContext([]*model.StaffMember{staff},
		[]*model.Shift{confirmed, target},
		[]*model.Allocation{alloc})

	result := NewValidator(nil).Validate(ctx, staff, target)
	if result.Eligible {
		t.Error("Expected ineligible due to overlap")
	}
	found := false
	for _, v := range result.Violations {
		if v.Kind == ScheduleConflict {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected schedule_conflict violation, got %v", result.Violations)
	}
}

func TestOverlapRule_OvernightConflict(t *testing.T) {
	staff := newNurse(t, "陈静", 8, "advanced", 60)
	night, err := model.NewShift("2025-01-10", "night", model.DeptICU, "22:00", "06:00",
		map[string]int{"nurse": 1}, 5, model.PriorityHigh, 2)
	if err != nil {
		t.Fatal(err)
	}
	// 次日凌晨的班次与前一天的夜班重叠
	early, err := model.NewShift("2025-01-11", "morning", model.DeptICU, "04:00", "12:00",
		map[string]int{"nurse": 1}, 5, model.PriorityHigh, 2)
	if err != nil {
		t.Fatal(err)
	}

	alloc := model.NewAllocation(staff, night, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{night, early}, []*model.Allocation{alloc})

	result := NewValidator(nil).Validate(ctx, staff, early)
	if result.Eligible {
		t.Error("Overnight shift should conflict with next-morning shift")
	}
}

func TestHoursRule_OverrideTurnsSoft(t *testing.T) {
	staff := newNurse(t, "赵敏", 8, "advanced", 8)
	worked := newICUShift(t, "2025-01-06", "08:00", "16:00", 5) // 周一，8小时占满
	target := newICUShift(t, "2025-01-08", "08:00", "16:00", 5) // 同一 ISO 周

	alloc := model.NewAllocation(staff, worked, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{worked, target}, []*model.Allocation{alloc})

	v := NewValidator(nil)
	result := v.Validate(ctx, staff, target)
	if result.Eligible {
		t.Error("Expected hard overtime violation without override")
	}

	ctx.SetOverride(staff.ID, true)
	result = v.Validate(ctx, staff, target)
	if !result.Eligible {
		t.Error("Override should make overtime non-blocking")
	}
	if len(result.Violations) != 1 || result.Violations[0].Kind != OvertimeViolation {
		t.Fatalf("Expected one overtime violation, got %v", result.Violations)
	}
	if result.Violations[0].Severity != model.SeveritySoft {
		t.Errorf("Expected soft severity with override, got %s", result.Violations[0].Severity)
	}
}

func TestHoursRule_DifferentISOWeekNotCounted(t *testing.T) {
	staff := newNurse(t, "孙磊", 8, "advanced", 8)
	worked := newICUShift(t, "2025-01-10", "08:00", "16:00", 5) // 第2周（周五）
	target := newICUShift(t, "2025-01-13", "08:00", "16:00", 5) // 第3周（周一）

	alloc := model.NewAllocation(staff, worked, model.RoleNurse)
	alloc.Status = model.AllocationConfirmed
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{worked, target}, []*model.Allocation{alloc})

	result := NewValidator(nil).Validate(ctx, staff, target)
	if !result.Eligible {
		t.Errorf("Hours in a previous ISO week should not count, got %v", result.Violations)
	}
}

func TestAvailabilityRule_LedgerStates(t *testing.T) {
	staff := newNurse(t, "周婷", 8, "advanced", 40)
	shift := newICUShift(t, "2025-01-10", "08:00", "16:00", 5)

	cases := []struct {
		name     string
		status   model.AvailabilityStatus
		eligible bool
	}{
		{"可分配", model.AvailAvailable, true},
		{"不可用", model.AvailUnavailable, false},
		{"休息中", model.AvailOnBreak, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{shift}, nil)
			rec := model.NewAvailabilityRecord(staff.ID)
			rec.Status = c.status
			ctx.SetAvailability([]*model.AvailabilityRecord{rec})

			result := NewValidator(nil).Validate(ctx, staff, shift)
			if result.Eligible != c.eligible {
				t.Errorf("Eligible = %v, expected %v (violations %v)", result.Eligible, c.eligible, result.Violations)
			}
		})
	}
}

func TestContext_ProvisionalBookkeeping(t *testing.T) {
	staff := newNurse(t, "吴杰", 8, "advanced", 60)
	s1 := newICUShift(t, "2025-01-10", "08:00", "16:00", 5)
	s2 := newICUShift(t, "2025-01-10", "14:00", "22:00", 5)
	ctx := NewContext([]*model.StaffMember{staff}, []*model.Shift{s1, s2}, nil)
	v := NewValidator(nil)

	alloc := model.NewAllocation(staff, s1, model.RoleNurse)
	ctx.AddAllocation(alloc)
	if v.Validate(ctx, staff, s2).Eligible {
		t.Error("Provisional allocation should block overlapping shift")
	}

	ctx.RemoveAllocation(alloc.ID)
	if !v.Validate(ctx, staff, s2).Eligible {
		t.Error("Removing provisional allocation should restore eligibility")
	}
}
