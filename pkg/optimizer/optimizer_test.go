package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/yipai/yipai/pkg/allocator/score"
	"github.com/yipai/yipai/pkg/model"
)

func nurse(t *testing.T, name string, skill int, rate float64) *model.StaffMember {
	t.Helper()
	s, err := model.NewStaffMember(name, "nurse", model.DeptICU, skill, "advanced", 5, 60, rate)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func icuShift(t *testing.T, date string, minSkill int) *model.Shift {
	t.Helper()
	sh, err := model.NewShift(date, "morning", model.DeptICU, "08:00", "16:00",
		map[string]int{"nurse": 1}, minSkill, model.PriorityHigh, 2)
	if err != nil {
		t.Fatal(err)
	}
	return sh
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxIterations = 300
	cfg.MaxTime = 2 * time.Second
	cfg.Seed = 42
	return cfg
}

func TestOptimize_FixesHardViolation(t *testing.T) {
	// 技能不足的人员占着班次，池里有合格人员：优化应换人
	weak := nurse(t, "weak", 4, 40)
	strong := nurse(t, "strong", 9, 50)
	shift := icuShift(t, "2025-01-10", 7)

	bad := model.NewAllocation(weak, shift, model.RoleNurse)
	bad.Status = model.AllocationConfirmed

	opt := NewOptimizer(nil, testConfig())
	result, err := opt.Optimize(context.Background(), &Request{
		Shifts:      []*model.Shift{shift},
		Staff:       []*model.StaffMember{weak, strong},
		Allocations: []*model.Allocation{bad},
		Strategy:    score.StrategyQuality,
	})
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}

	if result.Improvement.HardViolationsBefore != 1 {
		t.Errorf("HardViolationsBefore = %d, expected 1", result.Improvement.HardViolationsBefore)
	}
	if result.Improvement.HardViolationsAfter != 0 {
		t.Errorf("HardViolationsAfter = %d, expected 0", result.Improvement.HardViolationsAfter)
	}
	found := false
	for _, d := range result.Deltas {
		if d.Kind == DeltaReassign && d.StaffID == strong.ID && d.ShiftID == shift.ID {
			found = true
		}
		if d.Kind == DeltaUnassign && d.AllocationID != nil && *d.AllocationID == bad.ID {
			found = true // 撤销坏分配并新增也是合法修复
		}
	}
	if !found {
		t.Errorf("Expected a fix for the bad allocation, got %+v", result.Deltas)
	}
}

func TestOptimize_NeverWorsensHardCompliance(t *testing.T) {
	// 初始无违规：优化结果的硬性违规数不得增加
	a := nurse(t, "a", 8, 50)
	b := nurse(t, "b", 8, 50)
	s1 := icuShift(t, "2025-01-10", 5)
	s2 := icuShift(t, "2025-01-11", 5)

	alloc1 := model.NewAllocation(a, s1, model.RoleNurse)
	alloc1.Status = model.AllocationConfirmed
	alloc2 := model.NewAllocation(b, s2, model.RoleNurse)
	alloc2.Status = model.AllocationConfirmed

	opt := NewOptimizer(nil, testConfig())
	result, err := opt.Optimize(context.Background(), &Request{
		Shifts:      []*model.Shift{s1, s2},
		Staff:       []*model.StaffMember{a, b},
		Allocations: []*model.Allocation{alloc1, alloc2},
		Strategy:    score.StrategyBalance,
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Improvement.HardViolationsAfter > result.Improvement.HardViolationsBefore {
		t.Errorf("Hard compliance worsened: %d -> %d",
			result.Improvement.HardViolationsBefore, result.Improvement.HardViolationsAfter)
	}
	if result.Improvement.FinalScore > result.Improvement.InitialScore {
		t.Errorf("Final score %v worse than initial %v",
			result.Improvement.FinalScore, result.Improvement.InitialScore)
	}
}

func TestOptimize_FillsOpenSlot(t *testing.T) {
	// 空班次 + 空闲人员：优化应提出补缺
	a := nurse(t, "a", 8, 50)
	shift := icuShift(t, "2025-01-10", 5)

	opt := NewOptimizer(nil, testConfig())
	result, err := opt.Optimize(context.Background(), &Request{
		Shifts:      []*model.Shift{shift},
		Staff:       []*model.StaffMember{a},
		Allocations: nil,
		Strategy:    score.StrategyBalance,
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, d := range result.Deltas {
		if d.Kind == DeltaAssign && d.StaffID == a.ID && d.ShiftID == shift.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected an assign delta, got %+v", result.Deltas)
	}
}

func TestOptimize_RespectsDateRange(t *testing.T) {
	a := nurse(t, "a", 8, 50)
	inRangeShift := icuShift(t, "2025-01-10", 5)
	outOfRange := icuShift(t, "2025-02-01", 5)

	opt := NewOptimizer(nil, testConfig())
	result, err := opt.Optimize(context.Background(), &Request{
		Shifts:      []*model.Shift{inRangeShift, outOfRange},
		Staff:       []*model.StaffMember{a},
		Allocations: nil,
		Range:       model.DateRange{StartDate: "2025-01-01", EndDate: "2025-01-31"},
		Strategy:    score.StrategyBalance,
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range result.Deltas {
		if d.ShiftID == outOfRange.ID {
			t.Error("Optimizer must not touch shifts outside the date range")
		}
	}
}

func TestOptimize_BoundedRunTime(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTime = 50 * time.Millisecond
	cfg.MaxIterations = 1 << 30
	cfg.PlateauThreshold = 0

	var staff []*model.StaffMember
	var shifts []*model.Shift
	for i := 0; i < 20; i++ {
		staff = append(staff, nurse(t, "n", 8, 50))
		shifts = append(shifts, icuShift(t, "2025-01-10", 5))
	}

	opt := NewOptimizer(nil, cfg)
	start := time.Now()
	_, err := opt.Optimize(context.Background(), &Request{
		Shifts:   shifts,
		Staff:    staff,
		Strategy: score.StrategyBalance,
	})
	if err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Optimize should respect MaxTime")
	}
}

func TestOptimize_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opt := NewOptimizer(nil, testConfig())
	_, err := opt.Optimize(ctx, &Request{
		Shifts:   []*model.Shift{icuShift(t, "2025-01-10", 5)},
		Staff:    []*model.StaffMember{nurse(t, "a", 8, 50)},
		Strategy: score.StrategyBalance,
	})
	if err == nil {
		t.Error("Cancelled context should abort optimization")
	}
}
